package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/platform/auth"
	"github.com/maisonceleste/api/internal/platform/httpx"
	"github.com/maisonceleste/api/internal/platform/metrics"
	"github.com/maisonceleste/api/internal/services"
)

const maxOrderRequestBody = 16 * 1024

// OrderHandlers serves order placement, lookup and reversal.
type OrderHandlers struct {
	checkout  services.CheckoutService
	reversals services.ReversalService
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(checkout services.CheckoutService, reversals services.ReversalService) *OrderHandlers {
	return &OrderHandlers{checkout: checkout, reversals: reversals}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
	r.Get("/{orderID}", h.getOrder)
	r.With(auth.RequireAdmin).Post("/{orderID}/reverse", h.reverseOrder)
}

type placeOrderRequest struct {
	BasketID        string         `json:"basketId"`
	ShippingAddress addressPayload `json:"shippingAddress"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

type orderLinePayload struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
	UnitCents   int64  `json:"unitCents"`
	Quantity    int    `json:"quantity"`
	TotalCents  int64  `json:"totalCents"`
}

type orderPayload struct {
	ID                   string             `json:"id"`
	BuyerEmail           string             `json:"buyerEmail"`
	Lines                []orderLinePayload `json:"lines"`
	ShippingAddress      addressPayload     `json:"shippingAddress"`
	SubtotalCents        int64              `json:"subtotalCents"`
	ProductDiscountCents int64              `json:"productDiscountCents"`
	DiscountCents        int64              `json:"discountCents"`
	DeliveryFeeCents     int64              `json:"deliveryFeeCents"`
	TotalCents           int64              `json:"totalCents"`
	Status               string             `json:"status"`
	RefundRef            string             `json:"refundRef,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
	PaidAt               *time.Time         `json:"paidAt,omitempty"`
	CancelledAt          *time.Time         `json:"cancelledAt,omitempty"`
	RefundedAt           *time.Time         `json:"refundedAt,omitempty"`
}

func toOrderPayload(order domain.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLinePayload{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			PictureURL:  line.PictureURL,
			UnitCents:   line.UnitCents,
			Quantity:    line.Quantity,
			TotalCents:  line.TotalCents(),
		})
	}
	return orderPayload{
		ID:         order.ID,
		BuyerEmail: order.BuyerEmail,
		Lines:      lines,
		ShippingAddress: addressPayload{
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			PostalCode: order.ShippingAddress.PostalCode,
			City:       order.ShippingAddress.City,
			Country:    order.ShippingAddress.Country,
		},
		SubtotalCents:        order.SubtotalCents,
		ProductDiscountCents: order.ProductDiscountCents,
		DiscountCents:        order.DiscountCents,
		DeliveryFeeCents:     order.DeliveryFeeCents,
		TotalCents:           order.TotalCents(),
		Status:               string(order.Status),
		RefundRef:            order.RefundRef,
		CreatedAt:            order.CreatedAt,
		PaidAt:               order.PaidAt,
		CancelledAt:          order.CancelledAt,
		RefundedAt:           order.RefundedAt,
	}
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxOrderRequestBody)
	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		BasketID: req.BasketID,
		ShippingAddress: domain.Address{
			Line1:      req.ShippingAddress.Line1,
			Line2:      req.ShippingAddress.Line2,
			PostalCode: req.ShippingAddress.PostalCode,
			City:       req.ShippingAddress.City,
			Country:    req.ShippingAddress.Country,
		},
	})
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	metrics.RecordOrderTransition(string(order.Status))
	httpx.WriteJSON(w, http.StatusCreated, toOrderPayload(order))
}

func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutBasketNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("basket_not_found", "basket not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutBasketEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("basket_empty", "basket has no purchasable items", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutIntentMissing):
		httpx.WriteError(ctx, w, httpx.NewError("intent_missing", "no payment intent attached to this basket", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAmountAboveCeiling):
		httpx.WriteError(ctx, w, httpx.NewError("amount_above_limit", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "could not place order", http.StatusInternalServerError))
	}
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.checkout.GetOrder(ctx, orderID)
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrCheckoutOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "could not load order", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toOrderPayload(order))
}

type reverseOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) reverseOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reversals == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "reversal service unavailable", http.StatusServiceUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxOrderRequestBody)
	var req reverseOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	order, err := h.reversals.Reverse(ctx, services.ReverseOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  req.Reason,
	})
	switch {
	case errors.Is(err, services.ErrReversalInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrReversalOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrReversalGatewayRejected):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_rejected", "payment provider could not reverse this payment", http.StatusInternalServerError))
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "could not reverse order", http.StatusInternalServerError))
		return
	}

	metrics.RecordOrderTransition(string(order.Status))
	httpx.WriteJSON(w, http.StatusOK, toOrderPayload(order))
}
