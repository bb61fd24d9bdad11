// Package admin exposes the back-office booking API. Every edit endpoint
// runs the edit, the financial recalculation and the audit entry in one
// transaction so the stored totals can never drift from the line items.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nusacamp/backend-glamping/internal/billing"
	"github.com/nusacamp/backend-glamping/internal/booking"
	"github.com/nusacamp/backend-glamping/internal/common"
	"github.com/nusacamp/backend-glamping/internal/history"
	"github.com/nusacamp/backend-glamping/internal/lock"
	"github.com/nusacamp/backend-glamping/internal/queue"
	"github.com/nusacamp/backend-glamping/internal/tenant"
)

// Handler bundles the services behind the admin booking endpoints.
type Handler struct {
	Pool     *pgxpool.Pool
	Store    booking.Store
	Billing  *billing.Service
	History  history.Service
	Validate *validator.Validate
	Queue    *queue.Client
	Locker   *lock.Locker
	Log      zerolog.Logger
}

// Mount registers the booking routes on the given router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/bookings/{bookingID}", func(r chi.Router) {
		r.Get("/", h.GetBooking)
		r.Get("/live-total", h.LiveTotal)
		r.Get("/history", h.ListHistory)
		r.Post("/recalculate", h.Recalculate)
		r.Post("/recalculate-products", h.RecalculateProducts)
		r.Post("/menu-lines", h.AddMenuLine)
		r.Put("/menu-lines/{lineID}", h.UpdateMenuLine)
		r.Delete("/menu-lines/{lineID}", h.CancelMenuLine)
		r.Post("/additional-costs", h.AddAdditionalCost)
		r.Delete("/additional-costs/{costID}", h.DeleteAdditionalCost)
		r.Post("/payments", h.RecordPayment)
		r.Post("/send-confirmation", h.SendConfirmation)
	})
}

type menuLineRequest struct {
	ProductID        string  `json:"product_id" validate:"required,uuid4"`
	TentLineID       *string `json:"tent_line_id" validate:"omitempty,uuid4"`
	Name             string  `json:"name" validate:"required,max=200"`
	ServeDate        *string `json:"serve_date" validate:"omitempty,datetime=2006-01-02"`
	UnitPrice        int64   `json:"unit_price" validate:"gte=0"`
	Qty              int32   `json:"qty" validate:"gt=0"`
	SubtotalOverride *int64  `json:"subtotal_override" validate:"omitempty,gte=0"`
	Discount         *int64  `json:"discount" validate:"omitempty,gte=0"`
	TaxRateBps       int32   `json:"tax_rate_bps" validate:"gte=0,lte=10000"`
}

type additionalCostRequest struct {
	Label      string `json:"label" validate:"required,max=200"`
	TotalPrice int64  `json:"total_price"`
	TaxAmount  int64  `json:"tax_amount" validate:"gte=0"`
}

type paymentRequest struct {
	Amount    int64      `json:"amount" validate:"gt=0"`
	Method    string     `json:"method" validate:"required,max=64"`
	Reference string     `json:"reference" validate:"max=128"`
	State     string     `json:"state" validate:"required,oneof=successful completed paid pending"`
	PaidAt    *time.Time `json:"paid_at"`
}

// GetBooking handles GET /bookings/{bookingID}. The response carries the
// stored booking alongside freshly computed live totals.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	ctx := r.Context()
	b, err := h.Store.GetBooking(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	if err := checkTenant(ctx, b); err != nil {
		h.renderError(w, err)
		return
	}
	totals, err := h.Billing.LiveTotal(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"booking":    toBookingResponse(b),
		"liveTotals": totals,
	}})
}

// LiveTotal handles GET /bookings/{bookingID}/live-total.
func (h *Handler) LiveTotal(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	ctx := r.Context()
	b, err := h.Store.GetBooking(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	if err := checkTenant(ctx, b); err != nil {
		h.renderError(w, err)
		return
	}
	totals, err := h.Billing.LiveTotal(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": totals})
}

// ListHistory handles GET /bookings/{bookingID}/history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	ctx := r.Context()
	b, err := h.Store.GetBooking(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	if err := checkTenant(ctx, b); err != nil {
		h.renderError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	entries, err := h.History.List(ctx, h.Pool, bookingID, page, perPage)
	if err != nil {
		h.renderError(w, err)
		return
	}
	items := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toHistoryResponse(e))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{"page": page, "perPage": perPage},
	})
}

// Recalculate handles POST /bookings/{bookingID}/recalculate. It reruns the
// full financial pipeline without any accompanying edit.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	result, err := h.inTx(r.Context(), bookingID, "", "", true, func(ctx context.Context, tx pgx.Tx) error {
		return nil
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Totals})
}

// SendConfirmation handles POST /bookings/{bookingID}/send-confirmation. The
// email itself goes out through the worker; delivery is deduplicated per
// booking, so repeated clicks do not spam the guest.
func (h *Handler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	ctx := r.Context()
	b, err := h.Store.GetBooking(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	if err := checkTenant(ctx, b); err != nil {
		h.renderError(w, err)
		return
	}
	if h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue not configured", nil)
		return
	}
	if err := h.Queue.EnqueueConfirmation(ctx, queue.ConfirmationPayload{BookingID: bookingID.String()}); err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"queued": true}})
}

// RecalculateProducts handles POST /bookings/{bookingID}/recalculate-products
// for the product-only booking variant.
func (h *Handler) RecalculateProducts(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	ctx := r.Context()
	b, err := h.Store.GetBooking(ctx, h.Pool, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	if err := checkTenant(ctx, b); err != nil {
		h.renderError(w, err)
		return
	}
	totals, err := h.Billing.RecalculateProductsWithPool(ctx, bookingID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": totals})
}

// AddMenuLine handles POST /bookings/{bookingID}/menu-lines.
func (h *Handler) AddMenuLine(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	var req menuLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := req.toLine(bookingID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	result, err := h.inTx(r.Context(), bookingID, booking.ActionItemAdd, "menu item added: "+req.Name, false, func(ctx context.Context, tx pgx.Tx) error {
		_, err := h.Store.InsertMenuLine(ctx, tx, line)
		return err
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusCreated, map[string]any{"data": result.Totals})
}

// UpdateMenuLine handles PUT /bookings/{bookingID}/menu-lines/{lineID}.
func (h *Handler) UpdateMenuLine(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	lineID, ok := h.pathUUID(w, r, "lineID")
	if !ok {
		return
	}
	var req menuLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := req.toLine(bookingID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	line.ID = lineID
	result, err := h.inTx(r.Context(), bookingID, booking.ActionItemEdit, "menu item edited: "+req.Name, false, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := h.Store.GetMenuLine(ctx, tx, bookingID, lineID); err != nil {
			return err
		}
		return h.Store.UpdateMenuLine(ctx, tx, line)
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Totals})
}

// CancelMenuLine handles DELETE /bookings/{bookingID}/menu-lines/{lineID}.
// Lines are cancelled rather than removed so the audit trail keeps pointing
// at real rows.
func (h *Handler) CancelMenuLine(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	lineID, ok := h.pathUUID(w, r, "lineID")
	if !ok {
		return
	}
	result, err := h.inTx(r.Context(), bookingID, booking.ActionItemDelete, "menu item cancelled", false, func(ctx context.Context, tx pgx.Tx) error {
		return h.Store.CancelMenuLine(ctx, tx, bookingID, lineID)
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Totals})
}

// AddAdditionalCost handles POST /bookings/{bookingID}/additional-costs.
func (h *Handler) AddAdditionalCost(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	var req additionalCostRequest
	if !h.decode(w, r, &req) {
		return
	}
	cost := booking.AdditionalCost{
		BookingID:  bookingID,
		Label:      req.Label,
		TotalPrice: req.TotalPrice,
		TaxAmount:  req.TaxAmount,
	}
	result, err := h.inTx(r.Context(), bookingID, booking.ActionItemAdd, "additional cost added: "+req.Label, false, func(ctx context.Context, tx pgx.Tx) error {
		_, err := h.Store.InsertAdditionalCost(ctx, tx, cost)
		return err
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusCreated, map[string]any{"data": result.Totals})
}

// DeleteAdditionalCost handles DELETE /bookings/{bookingID}/additional-costs/{costID}.
func (h *Handler) DeleteAdditionalCost(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	costID, ok := h.pathUUID(w, r, "costID")
	if !ok {
		return
	}
	result, err := h.inTx(r.Context(), bookingID, booking.ActionItemDelete, "additional cost removed", false, func(ctx context.Context, tx pgx.Tx) error {
		return h.Store.DeleteAdditionalCost(ctx, tx, bookingID, costID)
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Totals})
}

// RecordPayment handles POST /bookings/{bookingID}/payments. Settled payments
// feed the automatic payment status transition inside the recalculation.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	payment := booking.Payment{
		BookingID: bookingID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		State:     booking.PaymentState(req.State),
		PaidAt:    req.PaidAt,
	}
	result, err := h.inTx(r.Context(), bookingID, "", "", true, func(ctx context.Context, tx pgx.Tx) error {
		_, err := h.Store.InsertPayment(ctx, tx, payment)
		return err
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.afterCommit(r.Context(), result)
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"totals":        result.Totals,
		"paymentStatus": result.After.PaymentStatus,
	}})
}

// txResult carries what the post-commit hooks need out of an edit transaction.
type txResult struct {
	Before booking.Booking
	After  booking.Booking
	Totals billing.Totals
}

// inTx runs the edit, the recalculation and the audit entry atomically.
// Payment recording and manual recalculation skip the edit audit entry; the
// recalculation writes its own payment_status_adjust entry when the status
// actually moves. Concurrent edits of the same booking are serialized with a
// Redis lock when one is configured.
func (h *Handler) inTx(ctx context.Context, bookingID uuid.UUID, action booking.HistoryAction, description string, skipAudit bool, edit func(context.Context, pgx.Tx) error) (txResult, error) {
	if h.Locker != nil {
		var result txResult
		err := h.Locker.WithLock(ctx, tenant.PrefixKey(tenantID(ctx), "edit:booking:"+bookingID.String()), 15*time.Second, func(ctx context.Context) error {
			var err error
			result, err = h.editTx(ctx, bookingID, action, description, skipAudit, edit)
			return err
		})
		return result, err
	}
	return h.editTx(ctx, bookingID, action, description, skipAudit, edit)
}

func (h *Handler) editTx(ctx context.Context, bookingID uuid.UUID, action booking.HistoryAction, description string, skipAudit bool, edit func(context.Context, pgx.Tx) error) (txResult, error) {
	tx, err := h.Pool.Begin(ctx)
	if err != nil {
		return txResult{}, err
	}
	defer tx.Rollback(ctx)

	before, err := h.Store.GetBooking(ctx, tx, bookingID)
	if err != nil {
		return txResult{}, err
	}
	if err := checkTenant(ctx, before); err != nil {
		return txResult{}, err
	}
	if err := edit(ctx, tx); err != nil {
		return txResult{}, err
	}
	if err := h.Billing.Recalculate(ctx, tx, bookingID); err != nil {
		return txResult{}, err
	}
	if !skipAudit {
		if err := h.History.LogEditAction(ctx, tx, bookingID, h.actor(ctx), action, description); err != nil {
			return txResult{}, err
		}
	}
	after, err := h.Store.GetBooking(ctx, tx, bookingID)
	if err != nil {
		return txResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return txResult{}, err
	}
	return txResult{
		Before: before,
		After:  after,
		Totals: billing.Totals{
			Subtotal: after.Subtotal,
			Tax:      after.Tax,
			Discount: after.Discount,
			Total:    after.Total,
		},
	}, nil
}

// afterCommit enqueues guest notifications for state that changed in the
// transaction. Failures are logged, never surfaced to the caller.
func (h *Handler) afterCommit(ctx context.Context, result txResult) {
	if h.Queue == nil {
		return
	}
	if result.Before.PaymentStatus != result.After.PaymentStatus {
		err := h.Queue.EnqueuePaymentStatus(ctx, queue.PaymentStatusPayload{
			BookingID:  result.After.ID.String(),
			PrevStatus: string(result.Before.PaymentStatus),
			NewStatus:  string(result.After.PaymentStatus),
		})
		if err != nil {
			h.Log.Error().Err(err).Str("booking_id", result.After.ID.String()).Msg("enqueue payment status email")
		}
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.RenderError(w, common.Invalid("request validation failed", validationDetails(err)))
			return false
		}
	}
	return true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// checkTenant hides bookings belonging to other tenants behind a 404.
func checkTenant(ctx context.Context, b booking.Booking) error {
	id := tenantID(ctx)
	if id == "" {
		return nil
	}
	if b.TenantID.String() != id {
		return booking.ErrNotFound
	}
	return nil
}

func tenantID(ctx context.Context) string {
	id, ok := tenant.From(ctx)
	if !ok {
		return ""
	}
	return id
}

func (h *Handler) actor(ctx context.Context) *uuid.UUID {
	raw, ok := common.UserID(ctx)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		common.RenderError(w, common.NotFound("booking or line not found", err))
	case common.IsAppError(err):
		common.RenderError(w, err)
	default:
		h.Log.Error().Err(err).Msg("admin handler error")
		common.RenderError(w, err)
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func (req menuLineRequest) toLine(bookingID uuid.UUID) (booking.MenuLine, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return booking.MenuLine{}, common.Invalid("invalid product_id", nil)
	}
	line := booking.MenuLine{
		BookingID:        bookingID,
		ProductID:        productID,
		Name:             req.Name,
		UnitPrice:        req.UnitPrice,
		Qty:              req.Qty,
		SubtotalOverride: req.SubtotalOverride,
		Discount:         req.Discount,
		TaxRateBps:       req.TaxRateBps,
	}
	if req.TentLineID != nil {
		tentLineID, err := uuid.Parse(*req.TentLineID)
		if err != nil {
			return booking.MenuLine{}, common.Invalid("invalid tent_line_id", nil)
		}
		line.TentLineID = &tentLineID
	}
	if req.ServeDate != nil {
		day, err := time.Parse("2006-01-02", *req.ServeDate)
		if err != nil {
			return booking.MenuLine{}, common.Invalid("invalid serve_date", nil)
		}
		line.ServeDate = &day
	}
	return line, nil
}

type bookingResponse struct {
	ID                 string `json:"id"`
	Code               string `json:"code"`
	GuestName          string `json:"guest_name"`
	GuestEmail         string `json:"guest_email"`
	Status             string `json:"status"`
	PaymentStatus      string `json:"payment_status"`
	Subtotal           int64  `json:"subtotal"`
	Tax                int64  `json:"taxAmount"`
	Discount           int64  `json:"discountAmount"`
	Total              int64  `json:"totalAmount"`
	DepositDue         int64  `json:"deposit_due"`
	BalanceDue         int64  `json:"balance_due"`
	TaxInvoiceRequired bool   `json:"tax_invoice_required"`
}

func toBookingResponse(b booking.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID.String(),
		Code:               b.Code,
		GuestName:          b.GuestName,
		GuestEmail:         b.GuestEmail,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		Subtotal:           b.Subtotal,
		Tax:                b.Tax,
		Discount:           b.Discount,
		Total:              b.Total,
		DepositDue:         b.DepositDue,
		BalanceDue:         b.BalanceDue,
		TaxInvoiceRequired: b.TaxInvoiceRequired,
	}
}

type historyResponse struct {
	ID            string    `json:"id"`
	PrevStatus    string    `json:"prev_status"`
	NewStatus     string    `json:"new_status"`
	PrevPayStatus string    `json:"prev_payment_status"`
	NewPayStatus  string    `json:"new_payment_status"`
	Action        string    `json:"action"`
	Description   string    `json:"description"`
	ActorUserID   *string   `json:"actor_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func toHistoryResponse(e booking.StatusHistoryEntry) historyResponse {
	resp := historyResponse{
		ID:            e.ID.String(),
		PrevStatus:    string(e.PrevStatus),
		NewStatus:     string(e.NewStatus),
		PrevPayStatus: string(e.PrevPayStatus),
		NewPayStatus:  string(e.NewPayStatus),
		Action:        string(e.Action),
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
	}
	if e.ActorUserID != nil {
		actor := e.ActorUserID.String()
		resp.ActorUserID = &actor
	}
	return resp
}
