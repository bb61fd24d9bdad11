// Package notify sends guest-facing booking emails from queued tasks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/nusacamp/backend-glamping/internal/common"
	"github.com/nusacamp/backend-glamping/internal/db"
	"github.com/nusacamp/backend-glamping/internal/obs"
	"github.com/nusacamp/backend-glamping/internal/queue"
)

// bookingContact is the slice of a booking an email needs.
type bookingContact struct {
	Code       string
	GuestName  string
	GuestEmail string
	Total      int64
	BalanceDue int64
	Currency   string
}

// Notifier renders and sends booking emails.
type Notifier struct {
	DB      db.DBTX
	Email   common.EmailSender
	From    string
	Enabled bool
	Log     zerolog.Logger
}

// NewMux registers the notifier's task handlers on an asynq mux.
func (n *Notifier) NewMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskBookingPaymentStatus, n.HandlePaymentStatus)
	mux.HandleFunc(queue.TaskBookingConfirmation, n.HandleConfirmation)
	return mux
}

// HandlePaymentStatus sends the payment status change email for a booking.
func (n *Notifier) HandlePaymentStatus(ctx context.Context, task *asynq.Task) error {
	var payload queue.PaymentStatusPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("notify: decode payment status payload: %w", err)
	}
	contact, err := n.contact(ctx, payload.BookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			n.Log.Warn().Str("booking_id", payload.BookingID).Msg("booking gone, dropping email task")
			return nil
		}
		return err
	}
	subject := fmt.Sprintf("Booking %s payment update", contact.Code)
	body := paymentStatusBody(contact, payload.NewStatus)
	return n.send(contact.GuestEmail, subject, body)
}

// HandleConfirmation sends the booking confirmation email.
func (n *Notifier) HandleConfirmation(ctx context.Context, task *asynq.Task) error {
	var payload queue.ConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("notify: decode confirmation payload: %w", err)
	}
	contact, err := n.contact(ctx, payload.BookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			n.Log.Warn().Str("booking_id", payload.BookingID).Msg("booking gone, dropping email task")
			return nil
		}
		return err
	}
	subject := fmt.Sprintf("Booking %s confirmed", contact.Code)
	body := confirmationBody(contact)
	return n.send(contact.GuestEmail, subject, body)
}

func (n *Notifier) send(to, subject, html string) error {
	if !n.Enabled || n.Email == nil {
		obs.CountNotifyEmail("skipped")
		return nil
	}
	if strings.TrimSpace(to) == "" {
		obs.CountNotifyEmail("skipped")
		return nil
	}
	if err := n.Email.Send(to, subject, html); err != nil {
		obs.CountNotifyEmail("error")
		return err
	}
	obs.CountNotifyEmail("sent")
	return nil
}

func (n *Notifier) contact(ctx context.Context, bookingID string) (bookingContact, error) {
	parsed, err := parseUUID(bookingID)
	if err != nil {
		return bookingContact{}, fmt.Errorf("notify: invalid booking id %q: %w", bookingID, err)
	}
	var c bookingContact
	err = n.DB.QueryRow(ctx, `
		SELECT code, guest_name, guest_email, total_amount, balance_due, currency_code
		FROM bookings
		WHERE id = $1`, parsed).
		Scan(&c.Code, &c.GuestName, &c.GuestEmail, &c.Total, &c.BalanceDue, &c.Currency)
	if err != nil {
		return bookingContact{}, err
	}
	return c, nil
}

func parseUUID(raw string) (pgtype.UUID, error) {
	var u pgtype.UUID
	if err := u.Scan(raw); err != nil {
		return pgtype.UUID{}, err
	}
	return u, nil
}

func paymentStatusBody(c bookingContact, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", htmlEscape(c.GuestName))
	switch status {
	case "fully_paid":
		fmt.Fprintf(&b, "<p>We have received full payment for booking <strong>%s</strong>. See you at the camp!</p>", htmlEscape(c.Code))
	case "deposit_paid":
		fmt.Fprintf(&b, "<p>We have received your deposit for booking <strong>%s</strong>.</p>", htmlEscape(c.Code))
		fmt.Fprintf(&b, "<p>Remaining balance: %s %d</p>", htmlEscape(c.Currency), c.BalanceDue)
	default:
		fmt.Fprintf(&b, "<p>The payment status of booking <strong>%s</strong> is now %s.</p>", htmlEscape(c.Code), htmlEscape(status))
	}
	return b.String()
}

func confirmationBody(c bookingContact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", htmlEscape(c.GuestName))
	fmt.Fprintf(&b, "<p>Your booking <strong>%s</strong> is confirmed.</p>", htmlEscape(c.Code))
	fmt.Fprintf(&b, "<p>Total: %s %d</p>", htmlEscape(c.Currency), c.Total)
	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
