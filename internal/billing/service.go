package billing

import (
	"context"
	"errors"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
	"github.com/nusacamp/backend-glamping/internal/obs"
)

// ErrBookingNotFound is returned when the booking id does not resolve.
// Callers must abort the enclosing transaction when they see it.
var ErrBookingNotFound = booking.ErrNotFound

// paymentAdjustNote is the fixed description recorded with automatic
// payment status transitions.
const paymentAdjustNote = "payment status adjusted automatically after booking total changed"

// Store is the subset of booking storage the billing service needs. Every
// method receives the caller's connection or transaction so the triggering
// edit and the recalculation commit atomically.
type Store interface {
	GetBooking(ctx context.Context, q db.DBTX, id uuid.UUID) (booking.Booking, error)
	ListTentLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.TentLine, error)
	ListAddonLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.AddonLine, error)
	ListMenuLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.MenuLine, error)
	ListAdditionalCosts(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.AdditionalCost, error)
	ListProductLines(ctx context.Context, q db.DBTX, bookingID uuid.UUID) ([]booking.ProductLine, error)
	SumSettledPayments(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (booking.Money, error)
	UpdateBookingTotals(ctx context.Context, q db.DBTX, u booking.TotalsUpdate) error
	UpdateBookingPaymentStatus(ctx context.Context, q db.DBTX, bookingID uuid.UUID, status booking.PaymentStatus) error
	UpdateProductTotals(ctx context.Context, q db.DBTX, u booking.ProductTotalsUpdate) error
	InsertStatusHistory(ctx context.Context, q db.DBTX, e booking.StatusHistoryEntry) error
}

// PerItemTaxer computes the aggregate per-item tax of a booking by applying
// each item's own tax rate to its post-discount amount. It is invoked exactly
// once per recalculation pass.
type PerItemTaxer interface {
	CalculatePerItemTax(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (booking.Money, error)
}

// Service owns booking financial recalculation: aggregation, tax, totals
// reconciliation and the automatic payment status transition.
type Service struct {
	Store Store
	Tax   PerItemTaxer
	Pool  *pgxpool.Pool
}

// Totals is the authoritative financial breakdown of a booking.
type Totals struct {
	Subtotal booking.Money `json:"subtotal"`
	Tax      booking.Money `json:"taxAmount"`
	Discount booking.Money `json:"discountAmount"`
	Total    booking.Money `json:"totalAmount"`
}

// LiveTotal computes the booking's totals without persisting anything. It
// shares the aggregation and tax paths with Recalculate so the displayed and
// stored figures can never diverge.
func (s *Service) LiveTotal(ctx context.Context, q db.DBTX, bookingID uuid.UUID) (Totals, error) {
	b, err := s.Store.GetBooking(ctx, q, bookingID)
	if err != nil {
		return Totals{}, err
	}
	return s.computeTotals(ctx, q, b)
}

// Recalculate recomputes and persists the booking's financial components,
// preserves the historical deposit ratio, and auto-transitions the payment
// status from the cumulative settled payments. It never writes the stored
// total directly; the store derives it from the written components.
func (s *Service) Recalculate(ctx context.Context, q db.DBTX, bookingID uuid.UUID) error {
	b, err := s.Store.GetBooking(ctx, q, bookingID)
	if err != nil {
		obs.CountRecalc("error")
		return err
	}

	totals, err := s.computeTotals(ctx, q, b)
	if err != nil {
		obs.CountRecalc("error")
		return err
	}

	paid, err := s.Store.SumSettledPayments(ctx, q, bookingID)
	if err != nil {
		obs.CountRecalc("error")
		return err
	}

	update := booking.TotalsUpdate{
		BookingID:  bookingID,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Discount:   totals.Discount,
		DepositDue: scaleDeposit(totals.Total, b.DepositDue, b.Total),
		BalanceDue: totals.Total - paid,
	}
	if err := s.Store.UpdateBookingTotals(ctx, q, update); err != nil {
		obs.CountRecalc("error")
		return err
	}

	if paid > 0 {
		next := nextPaymentStatus(paid, totals.Total)
		if next != b.PaymentStatus {
			if err := s.Store.UpdateBookingPaymentStatus(ctx, q, bookingID, next); err != nil {
				obs.CountRecalc("error")
				return err
			}
			entry := booking.StatusHistoryEntry{
				BookingID:     bookingID,
				PrevStatus:    b.Status,
				NewStatus:     b.Status,
				PrevPayStatus: b.PaymentStatus,
				NewPayStatus:  next,
				Action:        booking.ActionPaymentStatusAdjust,
				Description:   paymentAdjustNote,
			}
			if err := s.Store.InsertStatusHistory(ctx, q, entry); err != nil {
				obs.CountRecalc("error")
				return err
			}
			obs.CountPaymentStatusAdjust(string(next))
			obs.CountHistoryEntry(string(booking.ActionPaymentStatusAdjust))
		}
	}
	obs.CountRecalc("ok")
	return nil
}

// computeTotals runs the shared aggregation and tax pipeline. The per-item tax
// collaborator is consulted at most once per pass.
func (s *Service) computeTotals(ctx context.Context, q db.DBTX, b booking.Booking) (Totals, error) {
	items, err := s.SumBookingItems(ctx, q, b.ID)
	if err != nil {
		return Totals{}, err
	}

	// A negative result here means a stored discount exceeds the subtotal.
	// That is an upstream write bug; masking it by clamping would hide it.
	afterDiscount := items.Subtotal - items.Discount

	tax, err := s.computeTax(ctx, q, b.ID, items.AdditionalTax, b.TaxInvoiceRequired)
	if err != nil {
		return Totals{}, err
	}

	return Totals{
		Subtotal: items.Subtotal,
		Tax:      tax,
		Discount: items.Discount,
		Total:    afterDiscount + tax,
	}, nil
}

func (s *Service) computeTax(ctx context.Context, q db.DBTX, bookingID uuid.UUID, additionalTax booking.Money, taxInvoiceRequired bool) (booking.Money, error) {
	if !taxInvoiceRequired {
		return 0, nil
	}
	if s.Tax == nil {
		return 0, errors.New("billing: per-item tax calculator not configured")
	}
	perItem, err := s.Tax.CalculatePerItemTax(ctx, q, bookingID)
	if err != nil {
		return 0, err
	}
	return perItem + additionalTax, nil
}

// scaleDeposit preserves the booking's historical deposit ratio across total
// changes, with half-up rounding. When no prior deposit or total exists the
// whole amount falls due as deposit; admin-created pay-later bookings start
// without an explicit partial-deposit policy.
func scaleDeposit(total, oldDeposit, oldTotal booking.Money) booking.Money {
	if oldTotal <= 0 || oldDeposit <= 0 {
		return total
	}
	if total <= 0 {
		return 0
	}
	if total > (math.MaxInt64-oldTotal/2)/oldDeposit {
		num := new(big.Int).Mul(big.NewInt(int64(total)), big.NewInt(int64(oldDeposit)))
		num.Add(num, big.NewInt(int64(oldTotal/2)))
		num.Quo(num, big.NewInt(int64(oldTotal)))
		return booking.Money(num.Int64())
	}
	return (total*oldDeposit + oldTotal/2) / oldTotal
}

// nextPaymentStatus maps the cumulative settled amount onto a payment status.
// Callers only consult it when at least one settled payment exists.
func nextPaymentStatus(paid, total booking.Money) booking.PaymentStatus {
	if paid >= total {
		return booking.PaymentStatusFullyPaid
	}
	return booking.PaymentStatusDepositPaid
}
