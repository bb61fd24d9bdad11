package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nusacamp/backend-glamping/internal/db"
)

// ErrNotFound is returned when a booking id does not resolve to a row.
var ErrNotFound = errors.New("booking: not found")

const fkViolation = "23503"

// Store executes parameterized SQL against whichever connection or transaction
// the caller provides. It holds no state of its own.
type Store struct{}

// addonMeta is the on-disk shape of the add-on metadata column. Overrides and
// the voucher discount are serialization details of this column only; the rest
// of the codebase sees typed fields on AddonLine.
type addonMeta struct {
	PriceOverride    *Money `json:"price_override,omitempty"`
	SubtotalOverride *Money `json:"subtotal_override,omitempty"`
	VoucherDiscount  *Money `json:"voucher_discount_amount,omitempty"`
}

// GetBooking loads a booking row by id.
func (Store) GetBooking(ctx context.Context, q db.DBTX, id uuid.UUID) (Booking, error) {
	const sql = `
SELECT id, tenant_id, code, guest_name, guest_email, status, payment_status,
       subtotal_amount, tax_amount, discount_amount, total_amount,
       deposit_due, balance_due, tax_invoice_required,
       check_in, check_out, created_at, updated_at
FROM bookings WHERE id = $1`
	var b Booking
	var bid, tid pgtype.UUID
	var checkIn, checkOut, createdAt, updatedAt pgtype.Timestamptz
	err := q.QueryRow(ctx, sql, pgUUID(id)).Scan(
		&bid, &tid, &b.Code, &b.GuestName, &b.GuestEmail, &b.Status, &b.PaymentStatus,
		&b.Subtotal, &b.Tax, &b.Discount, &b.Total,
		&b.DepositDue, &b.BalanceDue, &b.TaxInvoiceRequired,
		&checkIn, &checkOut, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("get booking: %w", err)
	}
	b.ID = fromPG(bid)
	b.TenantID = fromPG(tid)
	b.CheckIn = timeFromPG(checkIn)
	b.CheckOut = timeFromPG(checkOut)
	b.CreatedAt = timeFromPG(createdAt)
	b.UpdatedAt = timeFromPG(updatedAt)
	return b, nil
}

// ListTentLines returns the accommodation lines of a booking.
func (Store) ListTentLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]TentLine, error) {
	const sql = `
SELECT id, booking_id, tent_id, nights, nightly_price, subtotal,
       subtotal_override, discount_amount, tax_rate_bps
FROM tent_lines WHERE booking_id = $1 ORDER BY created_at`
	rows, err := q.Query(ctx, sql, pgUUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list tent lines: %w", err)
	}
	defer rows.Close()
	var lines []TentLine
	for rows.Next() {
		var l TentLine
		var id, bid, tid pgtype.UUID
		var override pgtype.Int8
		if err := rows.Scan(&id, &bid, &tid, &l.Nights, &l.NightlyPrice, &l.Subtotal, &override, &l.Discount, &l.TaxRateBps); err != nil {
			return nil, fmt.Errorf("scan tent line: %w", err)
		}
		l.ID, l.BookingID, l.TentID = fromPG(id), fromPG(bid), fromPG(tid)
		l.SubtotalOverride = moneyPtr(override)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListAddonLines returns the add-on rows of a booking with metadata unpacked.
func (Store) ListAddonLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]AddonLine, error) {
	const sql = `
SELECT id, booking_id, addon_item_id, tent_line_id, name, pricing_mode,
       unit_price, qty, tax_rate_bps, metadata
FROM addon_lines WHERE booking_id = $1 ORDER BY created_at`
	rows, err := q.Query(ctx, sql, pgUUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list addon lines: %w", err)
	}
	defer rows.Close()
	var lines []AddonLine
	for rows.Next() {
		var l AddonLine
		var id, bid, aid, tid pgtype.UUID
		var meta []byte
		if err := rows.Scan(&id, &bid, &aid, &tid, &l.Name, &l.Mode, &l.UnitPrice, &l.Qty, &l.TaxRateBps, &meta); err != nil {
			return nil, fmt.Errorf("scan addon line: %w", err)
		}
		l.ID, l.BookingID, l.AddonItemID, l.TentLineID = fromPG(id), fromPG(bid), fromPG(aid), fromPG(tid)
		if len(meta) > 0 {
			var m addonMeta
			if err := json.Unmarshal(meta, &m); err != nil {
				return nil, fmt.Errorf("decode addon metadata: %w", err)
			}
			l.PriceOverride = m.PriceOverride
			l.SubtotalOverride = m.SubtotalOverride
			if m.VoucherDiscount != nil {
				l.VoucherDiscount = *m.VoucherDiscount
			}
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListMenuLines returns the non-cancelled menu product lines of a booking.
func (Store) ListMenuLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]MenuLine, error) {
	const sql = `
SELECT id, booking_id, tent_line_id, product_id, name, serve_date,
       unit_price, qty, subtotal_override, discount_amount, tax_rate_bps, cancelled
FROM menu_lines WHERE booking_id = $1 AND NOT cancelled ORDER BY created_at`
	rows, err := q.Query(ctx, sql, pgUUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list menu lines: %w", err)
	}
	defer rows.Close()
	var lines []MenuLine
	for rows.Next() {
		l, err := scanMenuLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetMenuLine loads a single menu line by id scoped to its booking.
func (Store) GetMenuLine(ctx context.Context, q db.DBTX, bookingID, lineID uuid.UUID) (MenuLine, error) {
	const sql = `
SELECT id, booking_id, tent_line_id, product_id, name, serve_date,
       unit_price, qty, subtotal_override, discount_amount, tax_rate_bps, cancelled
FROM menu_lines WHERE booking_id = $1 AND id = $2`
	row := q.QueryRow(ctx, sql, pgUUID(bookingID), pgUUID(lineID))
	l, err := scanMenuLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MenuLine{}, ErrNotFound
		}
		return MenuLine{}, err
	}
	return l, nil
}

// InsertMenuLine adds a menu product line to a booking.
func (Store) InsertMenuLine(ctx context.Context, q db.DBTX, l MenuLine) (uuid.UUID, error) {
	const sql = `
INSERT INTO menu_lines (id, booking_id, tent_line_id, product_id, name, serve_date,
                        unit_price, qty, subtotal_override, discount_amount, tax_rate_bps, cancelled, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, now())`
	id := uuid.New()
	_, err := q.Exec(ctx, sql, pgUUID(id), pgUUID(l.BookingID), pgUUIDPtr(l.TentLineID), pgUUID(l.ProductID),
		l.Name, pgDatePtr(l.ServeDate), l.UnitPrice, l.Qty, pgMoneyPtr(l.SubtotalOverride), pgMoneyPtr(l.Discount), l.TaxRateBps)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert menu line: %w", err)
	}
	return id, nil
}

// UpdateMenuLine rewrites the mutable fields of a menu line.
func (Store) UpdateMenuLine(ctx context.Context, q db.DBTX, l MenuLine) error {
	const sql = `
UPDATE menu_lines
SET unit_price = $3, qty = $4, subtotal_override = $5, discount_amount = $6, serve_date = $7
WHERE booking_id = $1 AND id = $2 AND NOT cancelled`
	tag, err := q.Exec(ctx, sql, pgUUID(l.BookingID), pgUUID(l.ID),
		l.UnitPrice, l.Qty, pgMoneyPtr(l.SubtotalOverride), pgMoneyPtr(l.Discount), pgDatePtr(l.ServeDate))
	if err != nil {
		return fmt.Errorf("update menu line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelMenuLine marks a menu line cancelled so it no longer contributes to totals.
func (Store) CancelMenuLine(ctx context.Context, q db.DBTX, bookingID, lineID uuid.UUID) error {
	tag, err := q.Exec(ctx, `UPDATE menu_lines SET cancelled = true WHERE booking_id = $1 AND id = $2`,
		pgUUID(bookingID), pgUUID(lineID))
	if err != nil {
		return fmt.Errorf("cancel menu line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAdditionalCosts returns the ad hoc cost rows of a booking.
func (Store) ListAdditionalCosts(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]AdditionalCost, error) {
	const sql = `
SELECT id, booking_id, label, total_price, tax_amount
FROM additional_costs WHERE booking_id = $1 ORDER BY created_at`
	rows, err := q.Query(ctx, sql, pgUUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list additional costs: %w", err)
	}
	defer rows.Close()
	var costs []AdditionalCost
	for rows.Next() {
		var c AdditionalCost
		var id, bid pgtype.UUID
		if err := rows.Scan(&id, &bid, &c.Label, &c.TotalPrice, &c.TaxAmount); err != nil {
			return nil, fmt.Errorf("scan additional cost: %w", err)
		}
		c.ID, c.BookingID = fromPG(id), fromPG(bid)
		costs = append(costs, c)
	}
	return costs, rows.Err()
}

// InsertAdditionalCost adds an ad hoc cost row.
func (Store) InsertAdditionalCost(ctx context.Context, q db.DBTX, c AdditionalCost) (uuid.UUID, error) {
	id := uuid.New()
	_, err := q.Exec(ctx, `
INSERT INTO additional_costs (id, booking_id, label, total_price, tax_amount, created_at)
VALUES ($1, $2, $3, $4, $5, now())`,
		pgUUID(id), pgUUID(c.BookingID), c.Label, c.TotalPrice, c.TaxAmount)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert additional cost: %w", err)
	}
	return id, nil
}

// DeleteAdditionalCost removes an ad hoc cost row.
func (Store) DeleteAdditionalCost(ctx context.Context, q db.DBTX, bookingID, costID uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM additional_costs WHERE booking_id = $1 AND id = $2`,
		pgUUID(bookingID), pgUUID(costID))
	if err != nil {
		return fmt.Errorf("delete additional cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SumSettledPayments returns the cumulative amount of payments in the settled family.
func (Store) SumSettledPayments(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (Money, error) {
	const sql = `
SELECT COALESCE(SUM(amount), 0) FROM payments
WHERE booking_id = $1 AND state = ANY($2)`
	states := []string{string(PaymentStateSuccessful), string(PaymentStateCompleted), string(PaymentStatePaid)}
	var total Money
	if err := q.QueryRow(ctx, sql, pgUUID(bookingID), states).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum settled payments: %w", err)
	}
	return total, nil
}

// InsertPayment records a payment against the booking.
func (Store) InsertPayment(ctx context.Context, q db.DBTX, p Payment) (uuid.UUID, error) {
	id := uuid.New()
	_, err := q.Exec(ctx, `
INSERT INTO payments (id, booking_id, amount, method, reference, state, paid_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		pgUUID(id), pgUUID(p.BookingID), p.Amount, p.Method, p.Reference, string(p.State), pgTimePtr(p.PaidAt))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert payment: %w", err)
	}
	return id, nil
}

// UpdateBookingTotals is the single write path for booking financials. The
// stored total is always derived here from the written components, never
// accepted from the caller.
func (Store) UpdateBookingTotals(ctx context.Context, q db.DBTX, u TotalsUpdate) error {
	const sql = `
UPDATE bookings
SET subtotal_amount = $2,
    tax_amount      = $3,
    discount_amount = $4,
    total_amount    = $2 + $3 - $4,
    deposit_due     = $5,
    balance_due     = $6,
    updated_at      = now()
WHERE id = $1`
	tag, err := q.Exec(ctx, sql, pgUUID(u.BookingID), u.Subtotal, u.Tax, u.Discount, u.DepositDue, u.BalanceDue)
	if err != nil {
		return fmt.Errorf("update booking totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateBookingPaymentStatus persists a payment status transition.
func (Store) UpdateBookingPaymentStatus(ctx context.Context, q db.DBTX, bookingID uuid.UUID, status PaymentStatus) error {
	tag, err := q.Exec(ctx, `UPDATE bookings SET payment_status = $2, updated_at = now() WHERE id = $1`,
		pgUUID(bookingID), string(status))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProductLines returns the non-cancelled product rows of a product-variant booking.
func (Store) ListProductLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]ProductLine, error) {
	const sql = `
SELECT id, booking_id, product_id, name, unit_price, qty, tax_amount, cancelled
FROM product_lines WHERE booking_id = $1 AND NOT cancelled ORDER BY created_at`
	rows, err := q.Query(ctx, sql, pgUUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list product lines: %w", err)
	}
	defer rows.Close()
	var lines []ProductLine
	for rows.Next() {
		var l ProductLine
		var id, bid, pid pgtype.UUID
		if err := rows.Scan(&id, &bid, &pid, &l.Name, &l.UnitPrice, &l.Qty, &l.TaxAmount, &l.Cancelled); err != nil {
			return nil, fmt.Errorf("scan product line: %w", err)
		}
		l.ID, l.BookingID, l.ProductID = fromPG(id), fromPG(bid), fromPG(pid)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdateProductTotals writes the product-variant components. Total, deposit
// and balance are derived purely from cost and tax inside this statement.
func (Store) UpdateProductTotals(ctx context.Context, q db.DBTX, u ProductTotalsUpdate) error {
	const sql = `
UPDATE bookings
SET products_cost  = $2,
    products_tax   = $3,
    total_amount   = $2 + $3,
    deposit_due    = $2 + $3,
    balance_due    = $2 + $3,
    updated_at     = now()
WHERE id = $1`
	tag, err := q.Exec(ctx, sql, pgUUID(u.BookingID), u.ProductsCost, u.ProductsTax)
	if err != nil {
		return fmt.Errorf("update product totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertStatusHistory appends one audit trail row. When the actor reference
// races a concurrent user deletion the insert is retried with a null actor
// instead of failing the surrounding edit. The first attempt runs inside a
// nested transaction; a fk violation otherwise aborts the caller's
// transaction and the retry would fail with 25P02.
func (s Store) InsertStatusHistory(ctx context.Context, q db.DBTX, e StatusHistoryEntry) error {
	err := s.insertStatusHistoryIsolated(ctx, q, e)
	var pgErr *pgconn.PgError
	if err != nil && errors.As(err, &pgErr) && pgErr.Code == fkViolation && e.ActorUserID != nil {
		e.ActorUserID = nil
		return s.insertStatusHistory(ctx, q, e)
	}
	return err
}

func (s Store) insertStatusHistoryIsolated(ctx context.Context, q db.DBTX, e StatusHistoryEntry) error {
	starter, ok := q.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		return s.insertStatusHistory(ctx, q, e)
	}
	nested, err := starter.Begin(ctx)
	if err != nil {
		return fmt.Errorf("insert status history: begin: %w", err)
	}
	if err := s.insertStatusHistory(ctx, nested, e); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	return nested.Commit(ctx)
}

func (Store) insertStatusHistory(ctx context.Context, q db.DBTX, e StatusHistoryEntry) error {
	const sql = `
INSERT INTO booking_status_history
  (id, booking_id, prev_status, new_status, prev_payment_status, new_payment_status,
   action, description, actor_user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`
	_, err := q.Exec(ctx, sql, pgUUID(uuid.New()), pgUUID(e.BookingID),
		string(e.PrevStatus), string(e.NewStatus), string(e.PrevPayStatus), string(e.NewPayStatus),
		string(e.Action), e.Description, pgUUIDPtr(e.ActorUserID))
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// ListStatusHistory returns audit trail rows newest first.
func (Store) ListStatusHistory(ctx context.Context, q db.DBTX, bookingID uuid.UUID, limit, offset int32) ([]StatusHistoryEntry, error) {
	const sql = `
SELECT id, booking_id, prev_status, new_status, prev_payment_status, new_payment_status,
       action, description, actor_user_id, created_at
FROM booking_status_history WHERE booking_id = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := q.Query(ctx, sql, pgUUID(bookingID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()
	var entries []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		var id, bid, actor pgtype.UUID
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&id, &bid, &e.PrevStatus, &e.NewStatus, &e.PrevPayStatus, &e.NewPayStatus,
			&e.Action, &e.Description, &actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		e.ID, e.BookingID = fromPG(id), fromPG(bid)
		if actor.Valid {
			u := fromPG(actor)
			e.ActorUserID = &u
		}
		e.CreatedAt = timeFromPG(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserExists reports whether the user id resolves to a stored user.
func (Store) UserExists(ctx context.Context, q db.DBTX, id uuid.UUID) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, pgUUID(id)).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

func scanMenuLine(row pgx.Row) (MenuLine, error) {
	var l MenuLine
	var id, bid, pid pgtype.UUID
	var tentLine pgtype.UUID
	var serveDate pgtype.Date
	var override, discount pgtype.Int8
	if err := row.Scan(&id, &bid, &tentLine, &pid, &l.Name, &serveDate,
		&l.UnitPrice, &l.Qty, &override, &discount, &l.TaxRateBps, &l.Cancelled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MenuLine{}, err
		}
		return MenuLine{}, fmt.Errorf("scan menu line: %w", err)
	}
	l.ID, l.BookingID, l.ProductID = fromPG(id), fromPG(bid), fromPG(pid)
	if tentLine.Valid {
		u := fromPG(tentLine)
		l.TentLineID = &u
	}
	if serveDate.Valid {
		d := serveDate.Time
		l.ServeDate = &d
	}
	l.SubtotalOverride = moneyPtr(override)
	l.Discount = moneyPtr(discount)
	return l, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}

func fromPG(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}

func moneyPtr(v pgtype.Int8) *Money {
	if !v.Valid {
		return nil
	}
	m := v.Int64
	return &m
}

func pgMoneyPtr(v *Money) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func pgDatePtr(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func pgTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timeFromPG(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
