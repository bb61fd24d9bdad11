package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRenderErrorUsesAppErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, NotFound("booking not found", errors.New("no rows")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload struct {
		Error ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Error.Code != "NOT_FOUND" || payload.Error.Message != "booking not found" {
		t.Fatalf("unexpected payload: %+v", payload.Error)
	}
}

func TestRenderErrorWrappedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := fmt.Errorf("handler: %w", Invalid("bad payload", map[string]string{"qty": "gt"}))
	RenderError(rec, wrapped)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRenderErrorFallsBackTo500(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/history?page=-2&limit=0", nil)
	page, perPage := ParsePagination(req, 20)
	if page != 1 || perPage != 20 {
		t.Fatalf("expected defaults 1/20, got %d/%d", page, perPage)
	}

	req = httptest.NewRequest(http.MethodGet, "/history?page=3&limit=50", nil)
	page, perPage = ParsePagination(req, 20)
	if page != 3 || perPage != 50 {
		t.Fatalf("expected 3/50, got %d/%d", page, perPage)
	}
}

func TestClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4312"
	req.Header.Set("X-Real-IP", "203.0.113.7")
	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	if got := ClientIP(req); got != "198.51.100.2" {
		t.Fatalf("expected forwarded-for winner, got %q", got)
	}
	req.Header.Del("X-Forwarded-For")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected real-ip, got %q", got)
	}
	req.Header.Del("X-Real-IP")
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
}

func TestAtoiDefault(t *testing.T) {
	if got := AtoiDefault("", 7); got != 7 {
		t.Fatalf("empty should default, got %d", got)
	}
	if got := AtoiDefault("oops", 7); got != 7 {
		t.Fatalf("garbage should default, got %d", got)
	}
	if got := AtoiDefault("42", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
