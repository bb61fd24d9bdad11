package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/booking"
)

func TestRecalculateProductsDerivesAllThreeTotals(t *testing.T) {
	b := booking.Booking{ID: uuid.New()}
	svc, store, _ := newFixture(b)
	store.products = []booking.ProductLine{
		{UnitPrice: 50_000, Qty: 3, TaxAmount: 16_500},
		{UnitPrice: 120_000, Qty: 1},
	}

	totals, err := svc.RecalculateProducts(context.Background(), nil, b.ID)
	if err != nil {
		t.Fatalf("RecalculateProducts: %v", err)
	}
	if totals.ProductsCost != 270_000 {
		t.Fatalf("unexpected cost %d", totals.ProductsCost)
	}
	if totals.ProductsTax != 16_500 {
		t.Fatalf("unexpected tax %d", totals.ProductsTax)
	}
	want := booking.Money(286_500)
	if totals.Total != want || totals.Deposit != want || totals.Balance != want {
		t.Fatalf("total, deposit and balance must all equal cost plus tax: %+v", totals)
	}
	if len(store.productUpdates) != 1 {
		t.Fatalf("expected one persisted update, got %d", len(store.productUpdates))
	}
	u := store.productUpdates[0]
	if u.ProductsCost != 270_000 || u.ProductsTax != 16_500 {
		t.Fatalf("persisted components diverge: %+v", u)
	}
}

func TestRecalculateProductsEmptyLines(t *testing.T) {
	b := booking.Booking{ID: uuid.New()}
	svc, _, _ := newFixture(b)

	totals, err := svc.RecalculateProducts(context.Background(), nil, b.ID)
	if err != nil {
		t.Fatalf("RecalculateProducts: %v", err)
	}
	if totals.Total != 0 || totals.Deposit != 0 || totals.Balance != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestRecalculateProductsWithPoolRequiresPool(t *testing.T) {
	svc, _, _ := newFixture(booking.Booking{ID: uuid.New()})
	if _, err := svc.RecalculateProductsWithPool(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error without a configured pool")
	}
}
