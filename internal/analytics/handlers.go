package analytics

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nusacamp/backend-glamping/internal/common"
	"github.com/nusacamp/backend-glamping/internal/tenant"
)

// Handler exposes the analytics endpoints.
type Handler struct {
	Service *Service
}

// Summary handles GET /admin/analytics/summary?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	tenantID, from, to, ok := h.params(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.Summary(r.Context(), tenantID, from, to)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// Daily handles GET /admin/analytics/daily?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	tenantID, from, to, ok := h.params(w, r)
	if !ok {
		return
	}
	daily, err := h.Service.Daily(r.Context(), tenantID, from, to)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": daily})
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (uuid.UUID, time.Time, time.Time, bool) {
	raw, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant is required", nil)
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return uuid.Nil, time.Time{}, time.Time{}, false
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return uuid.Nil, time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return uuid.Nil, time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	if !to.After(from) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "to must be after from", nil)
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	return tenantID, from, to, true
}
