package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type summaryDB struct {
	calls int
}

func (s *summaryDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *summaryDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (s *summaryDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.calls++
	return summaryRow{}
}

type summaryRow struct{}

func (summaryRow) Scan(dest ...any) error {
	values := []int64{3, 4500000, 3000000, 1500000, 900000, 1, 1, 1}
	for i, d := range dest {
		if p, ok := d.(*int64); ok && i < len(values) {
			*p = values[i]
		}
	}
	return nil
}

func TestSummaryCachesResult(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dbStub := &summaryDB{}
	svc := &Service{DB: dbStub, R: rdb, TTL: time.Minute}

	tenantID := uuid.New()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.Summary(context.Background(), tenantID, from, to)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if first.Revenue != 4500000 || first.Bookings != 3 {
		t.Fatalf("unexpected summary: %+v", first)
	}

	second, err := svc.Summary(context.Background(), tenantID, from, to)
	if err != nil {
		t.Fatalf("Summary (cached): %v", err)
	}
	if second != first {
		t.Fatalf("cached summary differs: %+v vs %+v", second, first)
	}
	if dbStub.calls != 1 {
		t.Fatalf("expected one database hit, got %d", dbStub.calls)
	}
}

func TestSummaryDistinctRangesMissCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dbStub := &summaryDB{}
	svc := &Service{DB: dbStub, R: rdb, TTL: time.Minute}

	tenantID := uuid.New()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Summary(context.Background(), tenantID, from, from.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if _, err := svc.Summary(context.Background(), tenantID, from, from.AddDate(0, 2, 0)); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if dbStub.calls != 2 {
		t.Fatalf("expected two database hits, got %d", dbStub.calls)
	}
}

func TestSummaryWorksWithoutRedis(t *testing.T) {
	dbStub := &summaryDB{}
	svc := &Service{DB: dbStub}
	if _, err := svc.Summary(context.Background(), uuid.New(), time.Now().Add(-time.Hour), time.Now()); err != nil {
		t.Fatalf("Summary without cache: %v", err)
	}
}
