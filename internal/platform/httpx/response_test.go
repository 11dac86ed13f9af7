package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteErrorBuildsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, NewError("basket_not_found", "basket not found", http.StatusNotFound))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if payload["error"] != "basket_not_found" || payload["message"] != "basket not found" {
		t.Fatalf("unexpected envelope %v", payload)
	}
	if payload["status"] != float64(http.StatusNotFound) {
		t.Fatalf("unexpected status field %v", payload["status"])
	}
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	err := NewError("oops", "something broke", 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 default, got %d", err.Status)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"known":"x","unknown":true}`))
	var dst struct {
		Known string `json:"known"`
	}
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field rejection")
	}
}

func TestDecodeJSONReportsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var dst struct{}
	if err := DecodeJSON(req, &dst); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}
