package booking

import (
	"time"

	"github.com/google/uuid"
)

// Money is a monetary value in minor currency units.
type Money = int64

// Status is the lifecycle status of a booking.
type Status string

// Booking lifecycle statuses.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks how much of the booking value has been settled.
type PaymentStatus string

// Payment statuses managed by the totals reconciler.
const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusFullyPaid   PaymentStatus = "fully_paid"
)

// PaymentState is the status of an individual payment row.
type PaymentState string

// Payment row states. Only the settled family counts toward the paid total.
const (
	PaymentStateSuccessful PaymentState = "successful"
	PaymentStateCompleted  PaymentState = "completed"
	PaymentStatePaid       PaymentState = "paid"
	PaymentStatePending    PaymentState = "pending"
	PaymentStateFailed     PaymentState = "failed"
	PaymentStateRefunded   PaymentState = "refunded"
)

// Settled reports whether the payment state counts toward the cumulative paid amount.
func (s PaymentState) Settled() bool {
	switch s {
	case PaymentStateSuccessful, PaymentStateCompleted, PaymentStatePaid:
		return true
	default:
		return false
	}
}

// PricingMode selects how an add-on group is priced.
type PricingMode string

const (
	// PricingPerUnit prices each row as unit price times quantity.
	PricingPerUnit PricingMode = "per_unit"
	// PricingPerGroup charges one representative price for the whole group
	// regardless of quantity.
	PricingPerGroup PricingMode = "per_group"
)

// HistoryAction tags a status history entry with the kind of change it records.
type HistoryAction string

// History actions recorded by edits and automatic adjustments.
const (
	ActionItemAdd             HistoryAction = "item_add"
	ActionItemEdit            HistoryAction = "item_edit"
	ActionItemDelete          HistoryAction = "item_delete"
	ActionPaymentStatusAdjust HistoryAction = "payment_status_adjust"
)

// Valid reports whether the action is one an external caller may record.
func (a HistoryAction) Valid() bool {
	switch a {
	case ActionItemAdd, ActionItemEdit, ActionItemDelete, ActionPaymentStatusAdjust:
		return true
	default:
		return false
	}
}

// Booking is the authoritative reservation record. Total is derived from
// Subtotal, Tax and Discount inside the store's single write path and is
// never written independently.
type Booking struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Code               string
	GuestName          string
	GuestEmail         string
	Status             Status
	PaymentStatus      PaymentStatus
	Subtotal           Money
	Tax                Money
	Discount           Money
	Total              Money
	DepositDue         Money
	BalanceDue         Money
	TaxInvoiceRequired bool
	CheckIn            time.Time
	CheckOut           time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TentLine is one booked accommodation unit within a booking.
type TentLine struct {
	ID               uuid.UUID
	BookingID        uuid.UUID
	TentID           uuid.UUID
	Nights           int32
	NightlyPrice     Money
	Subtotal         Money
	SubtotalOverride *Money
	Discount         Money
	TaxRateBps       int32
}

// EffectiveSubtotal returns the manual override when present, else the computed subtotal.
func (l TentLine) EffectiveSubtotal() Money {
	if l.SubtotalOverride != nil {
		return *l.SubtotalOverride
	}
	return l.Subtotal
}

// AddonLine is a supplementary bookable item attached to a tent line. Rows
// sharing (AddonItemID, TentLineID) form one priced group. Price override,
// subtotal override and the voucher discount live in a JSONB metadata column
// on disk; the store exposes them as plain fields.
type AddonLine struct {
	ID               uuid.UUID
	BookingID        uuid.UUID
	AddonItemID      uuid.UUID
	TentLineID       uuid.UUID
	Name             string
	Mode             PricingMode
	UnitPrice        Money
	Qty              int32
	PriceOverride    *Money
	SubtotalOverride *Money
	VoucherDiscount  Money
	TaxRateBps       int32
}

// GroupKey identifies the add-on group the line belongs to.
func (l AddonLine) GroupKey() AddonGroupKey {
	return AddonGroupKey{AddonItemID: l.AddonItemID, TentLineID: l.TentLineID}
}

// AddonGroupKey is the composite key collapsing add-on rows into one priced group.
type AddonGroupKey struct {
	AddonItemID uuid.UUID
	TentLineID  uuid.UUID
}

// MenuLine is one ordered food or beverage product, optionally scoped to a
// tent line and a serving date.
type MenuLine struct {
	ID               uuid.UUID
	BookingID        uuid.UUID
	TentLineID       *uuid.UUID
	ProductID        uuid.UUID
	Name             string
	ServeDate        *time.Time
	UnitPrice        Money
	Qty              int32
	SubtotalOverride *Money
	Discount         *Money
	TaxRateBps       int32
	Cancelled        bool
}

// EffectiveSubtotal returns the override when present, else unit price times quantity.
func (l MenuLine) EffectiveSubtotal() Money {
	if l.SubtotalOverride != nil {
		return *l.SubtotalOverride
	}
	return l.UnitPrice * Money(l.Qty)
}

// AdditionalCost is an ad hoc fee carrying its own precomputed tax amount.
type AdditionalCost struct {
	ID         uuid.UUID
	BookingID  uuid.UUID
	Label      string
	TotalPrice Money
	TaxAmount  Money
}

// Payment records money received against a booking.
type Payment struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Amount    Money
	Method    string
	Reference string
	State     PaymentState
	PaidAt    *time.Time
	CreatedAt time.Time
}

// ProductLine belongs to the simpler product-only booking variant used by the
// generic booking-products edit flow.
type ProductLine struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	ProductID uuid.UUID
	Name      string
	UnitPrice Money
	Qty       int32
	TaxAmount Money
	Cancelled bool
}

// Subtotal returns the line contribution to products cost.
func (l ProductLine) Subtotal() Money {
	return l.UnitPrice * Money(l.Qty)
}

// StatusHistoryEntry is one append-only audit trail row.
type StatusHistoryEntry struct {
	ID              uuid.UUID
	BookingID       uuid.UUID
	PrevStatus      Status
	NewStatus       Status
	PrevPayStatus   PaymentStatus
	NewPayStatus    PaymentStatus
	Action          HistoryAction
	Description     string
	ActorUserID     *uuid.UUID
	CreatedAt       time.Time
}

// TotalsUpdate carries the recomputed financial components written back to a
// booking row. The store derives Total from these inside its write path.
type TotalsUpdate struct {
	BookingID  uuid.UUID
	Subtotal   Money
	Tax        Money
	Discount   Money
	DepositDue Money
	BalanceDue Money
}

// ProductTotalsUpdate carries the product-variant components. Total, deposit
// and balance are fully derived from cost and tax.
type ProductTotalsUpdate struct {
	BookingID    uuid.UUID
	ProductsCost Money
	ProductsTax  Money
}
