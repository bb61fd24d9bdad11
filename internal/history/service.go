// Package history maintains the append-only status history trail of bookings.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/db"
	"github.com/nusacamp/backend-glamping/internal/obs"
)

// Store defines the database operations required for history logging.
type Store interface {
	GetBooking(ctx context.Context, q db.DBTX, id uuid.UUID) (booking.Booking, error)
	UserExists(ctx context.Context, q db.DBTX, id uuid.UUID) (bool, error)
	InsertStatusHistory(ctx context.Context, q db.DBTX, e booking.StatusHistoryEntry) error
	ListStatusHistory(ctx context.Context, q db.DBTX, bookingID uuid.UUID, limit, offset int32) ([]booking.StatusHistoryEntry, error)
}

// Service appends audit trail entries for booking edits.
type Service struct {
	Store Store
}

// LogEditAction records an edit, delete or add action against a booking. The
// entry snapshots the current status and payment status into both the
// previous and new columns; this call records an action, not a transition.
// A stale actor id degrades to a null actor instead of blocking the edit.
func (s Service) LogEditAction(ctx context.Context, q db.DBTX, bookingID uuid.UUID, userID *uuid.UUID, action booking.HistoryAction, description string) error {
	switch action {
	case booking.ActionItemAdd, booking.ActionItemEdit, booking.ActionItemDelete:
	default:
		return fmt.Errorf("history: action %q cannot be recorded by callers", action)
	}

	b, err := s.Store.GetBooking(ctx, q, bookingID)
	if err != nil {
		return err
	}

	actor := userID
	if actor != nil {
		exists, err := s.Store.UserExists(ctx, q, *actor)
		if err != nil {
			return err
		}
		if !exists {
			actor = nil
		}
	}

	entry := booking.StatusHistoryEntry{
		BookingID:     bookingID,
		PrevStatus:    b.Status,
		NewStatus:     b.Status,
		PrevPayStatus: b.PaymentStatus,
		NewPayStatus:  b.PaymentStatus,
		Action:        action,
		Description:   strings.TrimSpace(description),
		ActorUserID:   actor,
	}
	if err := s.Store.InsertStatusHistory(ctx, q, entry); err != nil {
		return err
	}
	obs.CountHistoryEntry(string(action))
	return nil
}

// List returns history entries newest first.
func (s Service) List(ctx context.Context, q db.DBTX, bookingID uuid.UUID, page, perPage int) ([]booking.StatusHistoryEntry, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	return s.Store.ListStatusHistory(ctx, q, bookingID, int32(perPage), int32((page-1)*perPage))
}
