// Package analytics aggregates booking revenue figures for the back office.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"

	"github.com/nusacamp/backend-glamping/internal/db"
)

// RevenueSummary is the aggregate financial picture of a tenant's bookings
// within a date range. Amounts are in minor currency units.
type RevenueSummary struct {
	Bookings     int64 `json:"bookings"`
	Revenue      int64 `json:"revenue"`
	Collected    int64 `json:"collected"`
	Outstanding  int64 `json:"outstanding"`
	DepositsDue  int64 `json:"depositsDue"`
	FullyPaid    int64 `json:"fullyPaid"`
	DepositPaid  int64 `json:"depositPaid"`
	PaymentOwing int64 `json:"paymentOwing"`
}

// DailyRevenue is one day of booked revenue.
type DailyRevenue struct {
	Day     string `json:"day"`
	Revenue int64  `json:"revenue"`
	Count   int64  `json:"count"`
}

// Service computes booking revenue aggregates with a short Redis cache in
// front. Recalculation rewrites stored totals in place, so a short TTL keeps
// figures honest without hammering the aggregate queries.
type Service struct {
	DB  db.DBTX
	R   *redis.Client
	TTL time.Duration
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Summary returns the revenue summary for a tenant between from and to,
// inclusive of from and exclusive of to. Cancelled bookings are excluded.
func (s *Service) Summary(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (RevenueSummary, error) {
	if s == nil || s.DB == nil {
		return RevenueSummary{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "summary", tenantID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached RevenueSummary
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	const sql = `
SELECT COUNT(*),
       COALESCE(SUM(total_amount), 0),
       COALESCE(SUM(total_amount - balance_due), 0),
       COALESCE(SUM(balance_due), 0),
       COALESCE(SUM(deposit_due), 0),
       COUNT(*) FILTER (WHERE payment_status = 'fully_paid'),
       COUNT(*) FILTER (WHERE payment_status = 'deposit_paid'),
       COUNT(*) FILTER (WHERE payment_status = 'pending')
FROM bookings
WHERE tenant_id = $1 AND status <> 'cancelled'
  AND created_at >= $2 AND created_at < $3`
	var out RevenueSummary
	err := s.DB.QueryRow(ctx, sql,
		pgtype.UUID{Bytes: tenantID, Valid: true},
		pgtype.Timestamptz{Time: from, Valid: true},
		pgtype.Timestamptz{Time: to, Valid: true},
	).Scan(&out.Bookings, &out.Revenue, &out.Collected, &out.Outstanding,
		&out.DepositsDue, &out.FullyPaid, &out.DepositPaid, &out.PaymentOwing)
	if err != nil {
		return RevenueSummary{}, fmt.Errorf("revenue summary: %w", err)
	}
	s.store(ctx, key, out)
	return out, nil
}

// Daily returns per-day booked revenue for a tenant between from and to.
func (s *Service) Daily(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyRevenue, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "daily", tenantID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []DailyRevenue
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	const sql = `
SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD'),
       COALESCE(SUM(total_amount), 0),
       COUNT(*)
FROM bookings
WHERE tenant_id = $1 AND status <> 'cancelled'
  AND created_at >= $2 AND created_at < $3
GROUP BY 1 ORDER BY 1`
	rows, err := s.DB.Query(ctx, sql,
		pgtype.UUID{Bytes: tenantID, Valid: true},
		pgtype.Timestamptz{Time: from, Valid: true},
		pgtype.Timestamptz{Time: to, Valid: true},
	)
	if err != nil {
		return nil, fmt.Errorf("daily revenue: %w", err)
	}
	defer rows.Close()
	var out []DailyRevenue
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Day, &d.Revenue, &d.Count); err != nil {
			return nil, fmt.Errorf("scan daily revenue: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.R == nil {
		return false
	}
	raw, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.R == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	_ = s.R.Set(ctx, key, raw, ttl).Err()
}
