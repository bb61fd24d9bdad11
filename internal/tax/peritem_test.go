package tax

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
)

type stubStore struct {
	tents  []booking.TentLine
	addons []booking.AddonLine
	menu   []booking.MenuLine
}

func (s stubStore) ListTentLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.TentLine, error) {
	return s.tents, nil
}

func (s stubStore) ListAddonLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.AddonLine, error) {
	return s.addons, nil
}

func (s stubStore) ListMenuLines(ctx context.Context, q db.DBTX, id uuid.UUID) ([]booking.MenuLine, error) {
	return s.menu, nil
}

func money(v int64) *booking.Money {
	m := booking.Money(v)
	return &m
}

func TestPerItemTaxAppliesRateToPostDiscountBase(t *testing.T) {
	calc := ItemRate{Store: stubStore{
		tents: []booking.TentLine{
			{Subtotal: 1_000_000, Discount: 100_000, TaxRateBps: 1100},
		},
		menu: []booking.MenuLine{
			{UnitPrice: 50_000, Qty: 2, Discount: money(10_000), TaxRateBps: 1000},
		},
	}}
	got, err := calc.CalculatePerItemTax(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("CalculatePerItemTax: %v", err)
	}
	// 11% of 900000 plus 10% of 90000
	if got != 99_000+9_000 {
		t.Fatalf("expected 108000, got %d", got)
	}
}

func TestPerItemTaxUsesGroupPricingForAddons(t *testing.T) {
	addonItem := uuid.New()
	tentLine := uuid.New()
	calc := ItemRate{Store: stubStore{
		addons: []booking.AddonLine{
			{AddonItemID: addonItem, TentLineID: tentLine, Mode: booking.PricingPerGroup, UnitPrice: 150_000, Qty: 2, TaxRateBps: 1000},
			{AddonItemID: addonItem, TentLineID: tentLine, Mode: booking.PricingPerGroup, UnitPrice: 200_000, Qty: 1, TaxRateBps: 1000},
		},
	}}
	got, err := calc.CalculatePerItemTax(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("CalculatePerItemTax: %v", err)
	}
	// the group's billed base is the max unit price, charged once
	if got != 20_000 {
		t.Fatalf("expected 20000, got %d", got)
	}
}

func TestPerItemTaxSkipsZeroRatesAndNegativeBases(t *testing.T) {
	calc := ItemRate{Store: stubStore{
		tents: []booking.TentLine{
			{Subtotal: 500_000, TaxRateBps: 0},
			{Subtotal: 100_000, Discount: 150_000, TaxRateBps: 1100},
		},
	}}
	got, err := calc.CalculatePerItemTax(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("CalculatePerItemTax: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected no tax, got %d", got)
	}
}

func TestPerItemTaxTruncatesTowardZero(t *testing.T) {
	calc := ItemRate{Store: stubStore{
		tents: []booking.TentLine{{Subtotal: 99_999, TaxRateBps: 1100}},
	}}
	got, err := calc.CalculatePerItemTax(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("CalculatePerItemTax: %v", err)
	}
	if got != 10_999 {
		t.Fatalf("expected truncated 10999, got %d", got)
	}
}
