package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/platform/httpx"
	"github.com/maisonceleste/api/internal/platform/metrics"
	"github.com/maisonceleste/api/internal/platform/requestctx"
	"github.com/maisonceleste/api/internal/services"
)

const (
	maxIntentRequestBody  = 8 * 1024
	maxWebhookRequestBody = 64 * 1024
	signatureHeader       = "Stripe-Signature"
)

// PaymentHandlers exposes payment intent creation for the storefront.
type PaymentHandlers struct {
	intents services.PaymentIntentService
}

// NewPaymentHandlers constructs payment intent handlers.
func NewPaymentHandlers(intents services.PaymentIntentService) *PaymentHandlers {
	return &PaymentHandlers{intents: intents}
}

// Routes registers payment endpoints under the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/intent", h.ensureIntent)
}

type intentRequest struct {
	BasketID string `json:"basketId"`
}

type intentResponse struct {
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
	AmountCents  int64  `json:"amountCents"`
	Totals       struct {
		SubtotalCents        int64 `json:"subtotalCents"`
		ProductDiscountCents int64 `json:"productDiscountCents"`
		DiscountCents        int64 `json:"discountCents"`
		DeliveryFeeCents     int64 `json:"deliveryFeeCents"`
		TotalCents           int64 `json:"totalCents"`
	} `json:"totals"`
}

func (h *PaymentHandlers) ensureIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.intents == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIntentRequestBody)
	var req intentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	result, err := h.intents.EnsureIntent(ctx, services.EnsureIntentCommand{BasketID: req.BasketID})
	if err != nil {
		writeIntentError(w, r, err)
		return
	}

	var resp intentResponse
	resp.IntentID = result.IntentID
	resp.ClientSecret = result.ClientSecret
	resp.AmountCents = result.AmountCents
	resp.Totals.SubtotalCents = result.Totals.SubtotalCents
	resp.Totals.ProductDiscountCents = result.Totals.ProductDiscountCents
	resp.Totals.DiscountCents = result.Totals.DiscountCents
	resp.Totals.DeliveryFeeCents = result.Totals.DeliveryFeeCents
	resp.Totals.TotalCents = result.Totals.TotalCents
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func writeIntentError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrIntentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "basket id is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrIntentBasketNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("basket_not_found", "basket not found", http.StatusNotFound))
	case errors.Is(err, services.ErrIntentBasketEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("basket_empty", "basket has no purchasable items", http.StatusBadRequest))
	case errors.Is(err, services.ErrAmountAboveCeiling):
		httpx.WriteError(ctx, w, httpx.NewError("amount_above_limit", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrIntentGatewayRejected):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_rejected", "payment provider rejected the request", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "could not prepare payment", http.StatusInternalServerError))
	}
}

// WebhookHandlers receives gateway callbacks.
type WebhookHandlers struct {
	verifier  *payments.EventVerifier
	reconcile services.ReconcileService
}

// NewWebhookHandlers constructs webhook handlers.
func NewWebhookHandlers(verifier *payments.EventVerifier, reconcile services.ReconcileService) *WebhookHandlers {
	return &WebhookHandlers{verifier: verifier, reconcile: reconcile}
}

// Routes registers webhook endpoints under the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/psp", h.handleEvent)
}

// handleEvent verifies the delivery signature before touching any state, then
// applies the event. Every verified delivery is answered 200 so the gateway
// stops redelivering; failures the gateway can do nothing about (no matching
// order) are logged instead of surfaced.
func (h *WebhookHandlers) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	if h.verifier == nil || h.reconcile == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookRequestBody))
	if err != nil {
		metrics.RecordWebhookEvent("read_error")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "could not read payload", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get(signatureHeader))
	if err != nil {
		metrics.RecordWebhookEvent("invalid_signature")
		logger.Warn("webhook signature rejected", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	result, err := h.reconcile.ProcessEvent(ctx, event)
	switch {
	case errors.Is(err, services.ErrReconcileOrderNotFound):
		// Redelivery cannot fix a missing order; acknowledge and alert.
		metrics.RecordWebhookEvent("order_not_found")
		logger.Error("webhook references unknown order",
			zap.String("event_type", event.Type),
			zap.String("intent_id", event.IntentID),
		)
	case err != nil:
		metrics.RecordWebhookEvent("error")
		logger.Error("webhook processing failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "event processing failed", http.StatusInternalServerError))
		return
	case result.Applied:
		metrics.RecordWebhookEvent("applied")
		metrics.RecordOrderTransition(string(result.Status))
	default:
		metrics.RecordWebhookEvent("duplicate")
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
}
