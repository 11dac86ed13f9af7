package services

import (
	"context"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/payments"
)

// Aliases so service callers work with one import.
type (
	Order       = domain.Order
	OrderLine   = domain.OrderLine
	OrderStatus = domain.OrderStatus
	Basket      = domain.Basket
	Address     = domain.Address
	Coupon      = domain.Coupon

	WebhookEvent = payments.Event
)

// DiscountCalculator values a coupon against a goods subtotal in cents. It is
// an external collaborator: campaign rules live outside this subsystem.
type DiscountCalculator interface {
	ComputeDiscount(ctx context.Context, coupon Coupon, subtotalCents int64) (int64, error)
}

// OrderTotals is the priced breakdown of a basket at a point in time.
type OrderTotals struct {
	SubtotalCents        int64
	ProductDiscountCents int64
	DiscountCents        int64
	DeliveryFeeCents     int64
	TotalCents           int64
}

// EnsureIntentCommand requests a payment intent sized to the basket's current total.
type EnsureIntentCommand struct {
	BasketID string
}

// IntentResult carries the client-side handle for completing the payment.
type IntentResult struct {
	IntentID     string
	ClientSecret string
	AmountCents  int64
	Totals       OrderTotals
}

// PaymentIntentService keeps the basket's gateway intent in step with its total.
type PaymentIntentService interface {
	EnsureIntent(ctx context.Context, cmd EnsureIntentCommand) (IntentResult, error)
}

// PlaceOrderCommand converts a basket into a durable order at checkout.
type PlaceOrderCommand struct {
	BasketID        string
	ShippingAddress Address
}

// CheckoutService converts baskets into orders and serves order reads.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
}

// ReconcileResult reports what a webhook delivery changed.
type ReconcileResult struct {
	OrderID string
	Status  OrderStatus
	Applied bool
}

// ReconcileService applies verified gateway events to order state.
type ReconcileService interface {
	ProcessEvent(ctx context.Context, event WebhookEvent) (ReconcileResult, error)
}

// ReverseOrderCommand undoes an order's payment, cancelling or refunding as appropriate.
type ReverseOrderCommand struct {
	OrderID string
	Reason  string
}

// ReversalService cancels unsettled payments and refunds settled ones.
type ReversalService interface {
	Reverse(ctx context.Context, cmd ReverseOrderCommand) (Order, error)
}

// Notifier publishes order lifecycle events for downstream consumers.
type Notifier interface {
	OrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent is the message published when an order changes state.
type OrderEvent struct {
	OrderID    string
	BuyerEmail string
	Status     OrderStatus
	TotalCents int64
}
