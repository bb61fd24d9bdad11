package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
)

// ItemTotals aggregates the monetary contributions of every item category of
// one booking. AdditionalTax is the precomputed tax carried by additional-cost
// rows; it joins the tax side of the calculation, never the subtotal.
type ItemTotals struct {
	Subtotal      booking.Money
	Discount      booking.Money
	AdditionalTax booking.Money
}

// SumBookingItems sums all four item categories of a booking. Pure read; no
// side effects beyond the queries themselves.
func (s *Service) SumBookingItems(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (ItemTotals, error) {
	tents, err := s.Store.ListTentLines(ctx, q, bookingID)
	if err != nil {
		return ItemTotals{}, err
	}
	addons, err := s.Store.ListAddonLines(ctx, q, bookingID)
	if err != nil {
		return ItemTotals{}, err
	}
	menu, err := s.Store.ListMenuLines(ctx, q, bookingID)
	if err != nil {
		return ItemTotals{}, err
	}
	costs, err := s.Store.ListAdditionalCosts(ctx, q, bookingID)
	if err != nil {
		return ItemTotals{}, err
	}

	tentSub, tentDisc := AggregateTentLines(tents)
	addonSub, addonDisc := AggregateAddonGroups(addons)
	menuSub, menuDisc := AggregateMenuLines(menu)
	costSub, costTax := AggregateAdditionalCosts(costs)

	return ItemTotals{
		Subtotal:      tentSub + addonSub + menuSub + costSub,
		Discount:      tentDisc + addonDisc + menuDisc,
		AdditionalTax: costTax,
	}, nil
}

// AggregateTentLines sums accommodation lines honouring subtotal overrides.
func AggregateTentLines(lines []booking.TentLine) (subtotal, discount booking.Money) {
	for _, l := range lines {
		subtotal += l.EffectiveSubtotal()
		discount += l.Discount
	}
	return subtotal, discount
}

type addonGroup struct {
	mode             booking.PricingMode
	priceOverride    *booking.Money
	subtotalOverride *booking.Money
	maxUnitPrice     booking.Money
	perUnitSum       booking.Money
	discount         booking.Money
	maxTaxRateBps    int32
}

// AddonGroupShare is the priced contribution of one add-on group.
type AddonGroupShare struct {
	Key        booking.AddonGroupKey
	Subtotal   booking.Money
	Discount   booking.Money
	TaxRateBps int32
}

// AddonGroupContributions collapses add-on rows into priced groups keyed by
// (addon item, tent line). Within a group a price override wins over a
// subtotal override, which wins over the pricing mode. Per-group pricing
// charges one representative price: the maximum unit price seen in the group.
// The voucher discount is counted once per group, not once per row.
func AddonGroupContributions(lines []booking.AddonLine) []AddonGroupShare {
	groups := make(map[booking.AddonGroupKey]*addonGroup)
	order := make([]booking.AddonGroupKey, 0, len(lines))

	for _, l := range lines {
		key := l.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &addonGroup{mode: l.Mode}
			groups[key] = g
			order = append(order, key)
		}
		if l.PriceOverride != nil && g.priceOverride == nil {
			g.priceOverride = l.PriceOverride
		}
		if l.SubtotalOverride != nil && g.subtotalOverride == nil {
			g.subtotalOverride = l.SubtotalOverride
		}
		if l.UnitPrice > g.maxUnitPrice {
			g.maxUnitPrice = l.UnitPrice
		}
		if l.TaxRateBps > g.maxTaxRateBps {
			g.maxTaxRateBps = l.TaxRateBps
		}
		g.perUnitSum += l.UnitPrice * booking.Money(l.Qty)
		if g.discount == 0 {
			g.discount = l.VoucherDiscount
		}
	}

	shares := make([]AddonGroupShare, 0, len(order))
	for _, key := range order {
		g := groups[key]
		share := AddonGroupShare{Key: key, Discount: g.discount, TaxRateBps: g.maxTaxRateBps}
		switch {
		case g.priceOverride != nil:
			share.Subtotal = *g.priceOverride
		case g.subtotalOverride != nil:
			share.Subtotal = *g.subtotalOverride
		case g.mode == booking.PricingPerGroup:
			share.Subtotal = g.maxUnitPrice
		default:
			share.Subtotal = g.perUnitSum
		}
		shares = append(shares, share)
	}
	return shares
}

// AggregateAddonGroups sums the group contributions of all add-on rows.
func AggregateAddonGroups(lines []booking.AddonLine) (subtotal, discount booking.Money) {
	for _, g := range AddonGroupContributions(lines) {
		subtotal += g.Subtotal
		discount += g.Discount
	}
	return subtotal, discount
}

// AggregateMenuLines sums menu product lines; a missing discount counts as zero.
func AggregateMenuLines(lines []booking.MenuLine) (subtotal, discount booking.Money) {
	for _, l := range lines {
		subtotal += l.EffectiveSubtotal()
		if l.Discount != nil {
			discount += *l.Discount
		}
	}
	return subtotal, discount
}

// AggregateAdditionalCosts sums ad hoc cost rows. The stored tax amounts are
// returned separately so they can join the tax side of the booking.
func AggregateAdditionalCosts(costs []booking.AdditionalCost) (subtotal, tax booking.Money) {
	for _, c := range costs {
		subtotal += c.TotalPrice
		tax += c.TaxAmount
	}
	return subtotal, tax
}

// AggregateProductLines sums the product-variant lines of a booking.
func AggregateProductLines(lines []booking.ProductLine) (cost, tax booking.Money) {
	for _, l := range lines {
		cost += l.Subtotal()
		tax += l.TaxAmount
	}
	return cost, tax
}
