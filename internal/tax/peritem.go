// Package tax computes per-item tax for a booking: each line item's own tax
// rate applied to its post-discount amount, expressed in basis points.
package tax

import (
	"context"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/billing"
	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
)

// Store is the read surface the calculator needs.
type Store interface {
	ListTentLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.TentLine, error)
	ListAddonLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.AddonLine, error)
	ListMenuLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.MenuLine, error)
}

// ItemRate calculates aggregate per-item tax from the rates stored on each line.
type ItemRate struct {
	Store Store
}

// CalculatePerItemTax implements billing.PerItemTaxer. It uses the same group
// contributions as the aggregator so taxed bases match billed amounts.
func (c ItemRate) CalculatePerItemTax(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (booking.Money, error) {
	tents, err := c.Store.ListTentLines(ctx, q, bookingID)
	if err != nil {
		return 0, err
	}
	addons, err := c.Store.ListAddonLines(ctx, q, bookingID)
	if err != nil {
		return 0, err
	}
	menu, err := c.Store.ListMenuLines(ctx, q, bookingID)
	if err != nil {
		return 0, err
	}

	var total booking.Money
	for _, l := range tents {
		total += rated(l.EffectiveSubtotal()-l.Discount, l.TaxRateBps)
	}
	for _, g := range billing.AddonGroupContributions(addons) {
		total += rated(g.Subtotal-g.Discount, g.TaxRateBps)
	}
	for _, l := range menu {
		base := l.EffectiveSubtotal()
		if l.Discount != nil {
			base -= *l.Discount
		}
		total += rated(base, l.TaxRateBps)
	}
	return total, nil
}

func rated(base booking.Money, bps int32) booking.Money {
	if base <= 0 || bps <= 0 {
		return 0
	}
	return (base * booking.Money(bps)) / 10000
}
