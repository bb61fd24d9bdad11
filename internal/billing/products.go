package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
)

// ProductTotals is the financial breakdown of a product-variant booking.
// Total, Deposit and Balance are derived purely from cost and tax; the store
// applies the same formulas when persisting.
type ProductTotals struct {
	ProductsCost booking.Money `json:"productsCost"`
	ProductsTax  booking.Money `json:"productsTax"`
	Total        booking.Money `json:"totalAmount"`
	Deposit      booking.Money `json:"depositAmount"`
	Balance      booking.Money `json:"balanceAmount"`
}

// RecalculateProducts recomputes and persists the totals of a product-only
// booking within the caller's transaction.
func (s *Service) RecalculateProducts(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (ProductTotals, error) {
	lines, err := s.Store.ListProductLines(ctx, q, bookingID)
	if err != nil {
		return ProductTotals{}, err
	}
	cost, tax := AggregateProductLines(lines)
	if err := s.Store.UpdateProductTotals(ctx, q, booking.ProductTotalsUpdate{
		BookingID:    bookingID,
		ProductsCost: cost,
		ProductsTax:  tax,
	}); err != nil {
		return ProductTotals{}, err
	}
	total := cost + tax
	return ProductTotals{
		ProductsCost: cost,
		ProductsTax:  tax,
		Total:        total,
		Deposit:      total,
		Balance:      total,
	}, nil
}

// RecalculateProductsWithPool runs RecalculateProducts on a connection drawn
// from the service pool, for callers outside an existing transaction.
func (s *Service) RecalculateProductsWithPool(ctx context.Context, bookingID uuid.UUID) (ProductTotals, error) {
	if s.Pool == nil {
		return ProductTotals{}, errors.New("billing: pool not configured")
	}
	return s.RecalculateProducts(ctx, s.Pool, bookingID)
}
