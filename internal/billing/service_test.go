package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
)

// stubStore keeps one booking in memory and applies totals updates the same
// way the SQL write path does, so repeated recalculations see their own output.
type stubStore struct {
	booking  booking.Booking
	tents    []booking.TentLine
	addons   []booking.AddonLine
	menu     []booking.MenuLine
	costs    []booking.AdditionalCost
	products []booking.ProductLine
	paid     booking.Money

	history        []booking.StatusHistoryEntry
	totalsUpdates  int
	statusUpdates  int
	productUpdates []booking.ProductTotalsUpdate
}

func (s *stubStore) GetBooking(ctx context.Context, q db.DBTX, id uuid.UUID) (booking.Booking, error) {
	if id != s.booking.ID {
		return booking.Booking{}, booking.ErrNotFound
	}
	return s.booking, nil
}

func (s *stubStore) ListTentLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.TentLine, error) {
	return s.tents, nil
}

func (s *stubStore) ListAddonLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.AddonLine, error) {
	return s.addons, nil
}

func (s *stubStore) ListMenuLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.MenuLine, error) {
	return s.menu, nil
}

func (s *stubStore) ListAdditionalCosts(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.AdditionalCost, error) {
	return s.costs, nil
}

func (s *stubStore) ListProductLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.ProductLine, error) {
	return s.products, nil
}

func (s *stubStore) SumSettledPayments(ctx context.Context, q db.DBTX, id uuid.UUID) (booking.Money, error) {
	return s.paid, nil
}

func (s *stubStore) UpdateBookingTotals(ctx context.Context, q db.DBTX, u booking.TotalsUpdate) error {
	s.totalsUpdates++
	s.booking.Subtotal = u.Subtotal
	s.booking.Tax = u.Tax
	s.booking.Discount = u.Discount
	s.booking.Total = u.Subtotal + u.Tax - u.Discount
	s.booking.DepositDue = u.DepositDue
	s.booking.BalanceDue = u.BalanceDue
	return nil
}

func (s *stubStore) UpdateBookingPaymentStatus(ctx context.Context, q db.DBTX, id uuid.UUID, status booking.PaymentStatus) error {
	s.statusUpdates++
	s.booking.PaymentStatus = status
	return nil
}

func (s *stubStore) UpdateProductTotals(ctx context.Context, q db.DBTX, u booking.ProductTotalsUpdate) error {
	s.productUpdates = append(s.productUpdates, u)
	s.booking.Total = u.ProductsCost + u.ProductsTax
	return nil
}

func (s *stubStore) InsertStatusHistory(ctx context.Context, q db.DBTX, e booking.StatusHistoryEntry) error {
	s.history = append(s.history, e)
	return nil
}

type stubTaxer struct {
	amount booking.Money
	calls  int
}

func (t *stubTaxer) CalculatePerItemTax(ctx context.Context, q db.DBTX, id uuid.UUID) (booking.Money, error) {
	t.calls++
	return t.amount, nil
}

func newFixture(b booking.Booking) (*Service, *stubStore, *stubTaxer) {
	store := &stubStore{booking: b}
	taxer := &stubTaxer{}
	return &Service{Store: store, Tax: taxer}, store, taxer
}

func TestRecalculatePreservesDepositRatio(t *testing.T) {
	b := booking.Booking{
		ID:            uuid.New(),
		PaymentStatus: booking.PaymentStatusPending,
		Total:         1_000_000,
		DepositDue:    300_000,
	}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 1_200_000}}

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.Total != 1_200_000 {
		t.Fatalf("expected total 1200000, got %d", store.booking.Total)
	}
	if store.booking.DepositDue != 360_000 {
		t.Fatalf("expected deposit scaled to 360000, got %d", store.booking.DepositDue)
	}
}

func TestRecalculateDefaultsDepositToFullTotal(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), PaymentStatus: booking.PaymentStatusPending}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 750_000}}

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.DepositDue != 750_000 {
		t.Fatalf("expected full total as deposit, got %d", store.booking.DepositDue)
	}
}

func TestRecalculateTransitionsToDepositPaid(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), Status: booking.StatusConfirmed, PaymentStatus: booking.PaymentStatusPending}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 1_000_000}}
	store.paid = 400_000

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.PaymentStatus != booking.PaymentStatusDepositPaid {
		t.Fatalf("expected deposit_paid, got %s", store.booking.PaymentStatus)
	}
	if store.booking.BalanceDue != 600_000 {
		t.Fatalf("expected balance 600000, got %d", store.booking.BalanceDue)
	}
	if len(store.history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(store.history))
	}
	entry := store.history[0]
	if entry.Action != booking.ActionPaymentStatusAdjust {
		t.Fatalf("unexpected action %s", entry.Action)
	}
	if entry.PrevStatus != booking.StatusConfirmed || entry.NewStatus != booking.StatusConfirmed {
		t.Fatal("booking status must be snapshotted unchanged")
	}
	if entry.PrevPayStatus != booking.PaymentStatusPending || entry.NewPayStatus != booking.PaymentStatusDepositPaid {
		t.Fatalf("unexpected payment statuses %s -> %s", entry.PrevPayStatus, entry.NewPayStatus)
	}
	if entry.ActorUserID != nil {
		t.Fatal("automatic adjustment must carry no actor")
	}
}

func TestRecalculateTransitionsToFullyPaid(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), PaymentStatus: booking.PaymentStatusDepositPaid}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 1_000_000}}
	store.paid = 1_000_000

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.PaymentStatus != booking.PaymentStatusFullyPaid {
		t.Fatalf("expected fully_paid, got %s", store.booking.PaymentStatus)
	}
}

func TestRecalculateZeroPaidNeverTransitions(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), PaymentStatus: booking.PaymentStatusPending}
	svc, store, _ := newFixture(b)
	// zero paid on a zero total booking must not become fully paid
	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.PaymentStatus != booking.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", store.booking.PaymentStatus)
	}
	if store.statusUpdates != 0 || len(store.history) != 0 {
		t.Fatal("no transition or history expected with zero paid")
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), PaymentStatus: booking.PaymentStatusPending}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 900_000}}
	store.paid = 400_000

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("first Recalculate: %v", err)
	}
	after := store.booking
	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("second Recalculate: %v", err)
	}
	if store.booking != after {
		t.Fatalf("second pass changed the booking: %+v vs %+v", store.booking, after)
	}
	if len(store.history) != 1 {
		t.Fatalf("expected a single history entry, got %d", len(store.history))
	}
	if store.statusUpdates != 1 {
		t.Fatalf("expected a single status update, got %d", store.statusUpdates)
	}
}

func TestRecalculateTaxGatedByInvoiceFlag(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), PaymentStatus: booking.PaymentStatusPending}
	svc, store, taxer := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 1_000_000, TaxRateBps: 1100}}
	taxer.amount = 110_000

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.Tax != 0 {
		t.Fatalf("tax must be zero without invoice flag, got %d", store.booking.Tax)
	}
	if taxer.calls != 0 {
		t.Fatalf("taxer must not be consulted without invoice flag, called %d times", taxer.calls)
	}

	store.booking.TaxInvoiceRequired = true
	store.costs = []booking.AdditionalCost{{TotalPrice: 100_000, TaxAmount: 11_000}}
	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate with invoice: %v", err)
	}
	if taxer.calls != 1 {
		t.Fatalf("taxer must be consulted exactly once, called %d times", taxer.calls)
	}
	if store.booking.Tax != 121_000 {
		t.Fatalf("expected per-item plus additional tax 121000, got %d", store.booking.Tax)
	}
	if store.booking.Total != 1_000_000+100_000+121_000 {
		t.Fatalf("unexpected total %d", store.booking.Total)
	}
}

func TestRecalculateMissingTaxerFailsWhenRequired(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), TaxInvoiceRequired: true}
	store := &stubStore{booking: b}
	store.tents = []booking.TentLine{{Subtotal: 100_000}}
	svc := &Service{Store: store}

	if err := svc.Recalculate(context.Background(), nil, b.ID); err == nil {
		t.Fatal("expected error when invoice required but no taxer configured")
	}
}

func TestLiveTotalMatchesPersistedTotals(t *testing.T) {
	b := booking.Booking{ID: uuid.New(), PaymentStatus: booking.PaymentStatusPending, TaxInvoiceRequired: true}
	svc, store, taxer := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 800_000, Discount: 50_000}}
	store.menu = []booking.MenuLine{{UnitPrice: 30_000, Qty: 2}}
	taxer.amount = 88_000

	live, err := svc.LiveTotal(context.Background(), nil, b.ID)
	if err != nil {
		t.Fatalf("LiveTotal: %v", err)
	}
	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	persisted := Totals{
		Subtotal: store.booking.Subtotal,
		Tax:      store.booking.Tax,
		Discount: store.booking.Discount,
		Total:    store.booking.Total,
	}
	if live != persisted {
		t.Fatalf("live and persisted totals diverge: %+v vs %+v", live, persisted)
	}
}

func TestLiveTotalDoesNotWrite(t *testing.T) {
	b := booking.Booking{ID: uuid.New()}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 500_000}}

	if _, err := svc.LiveTotal(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("LiveTotal: %v", err)
	}
	if store.totalsUpdates != 0 || store.statusUpdates != 0 || len(store.history) != 0 {
		t.Fatal("LiveTotal must not persist anything")
	}
}

func TestRecalculateUnknownBooking(t *testing.T) {
	svc, _, _ := newFixture(booking.Booking{ID: uuid.New()})
	err := svc.Recalculate(context.Background(), nil, uuid.New())
	if !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestRecalculateNegativeAfterDiscountIsNotClamped(t *testing.T) {
	b := booking.Booking{ID: uuid.New()}
	svc, store, _ := newFixture(b)
	store.tents = []booking.TentLine{{Subtotal: 100_000, Discount: 150_000}}

	if err := svc.Recalculate(context.Background(), nil, b.ID); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if store.booking.Total != -50_000 {
		t.Fatalf("negative totals must surface upstream write bugs, got %d", store.booking.Total)
	}
}

func TestScaleDepositRoundsHalfUp(t *testing.T) {
	cases := []struct {
		total, oldDeposit, oldTotal, want booking.Money
	}{
		{1_200_000, 300_000, 1_000_000, 360_000},
		{1_000_001, 1, 3, 333_334},
		{500_000, 0, 1_000_000, 500_000},
		{500_000, 300_000, 0, 500_000},
		{0, 300_000, 1_000_000, 0},
		{-100, 300_000, 1_000_000, 0},
	}
	for _, c := range cases {
		if got := scaleDeposit(c.total, c.oldDeposit, c.oldTotal); got != c.want {
			t.Errorf("scaleDeposit(%d, %d, %d) = %d, want %d", c.total, c.oldDeposit, c.oldTotal, got, c.want)
		}
	}
}

func TestScaleDepositSurvivesLargeAmounts(t *testing.T) {
	// total * oldDeposit exceeds int64 for these operands; the ratio must
	// still come out exact instead of wrapping around
	cases := []struct {
		total, oldDeposit, oldTotal, want booking.Money
	}{
		{4_000_000_000_000_000_000, 3, 6, 2_000_000_000_000_000_000},
		{5_000_000_000_000, 5_000_000_000_000, 10_000_000_000_000, 2_500_000_000_000},
	}
	for _, c := range cases {
		if got := scaleDeposit(c.total, c.oldDeposit, c.oldTotal); got != c.want {
			t.Errorf("scaleDeposit(%d, %d, %d) = %d, want %d", c.total, c.oldDeposit, c.oldTotal, got, c.want)
		}
	}
}

func TestNextPaymentStatusBoundary(t *testing.T) {
	if got := nextPaymentStatus(1_000_000, 1_000_000); got != booking.PaymentStatusFullyPaid {
		t.Fatalf("paid == total must be fully_paid, got %s", got)
	}
	if got := nextPaymentStatus(999_999, 1_000_000); got != booking.PaymentStatusDepositPaid {
		t.Fatalf("paid < total must be deposit_paid, got %s", got)
	}
}
