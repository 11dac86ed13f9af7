package domain

import (
	"time"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was created at checkout and awaits gateway confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaymentReceived indicates the gateway confirmed the payment succeeded.
	OrderStatusPaymentReceived OrderStatus = "payment_received"
	// OrderStatusPaymentFailed indicates the gateway reported a failure or cancellation.
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	// OrderStatusCancelled indicates the unsettled payment was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates the settled payment was refunded. Terminal.
	OrderStatusRefunded OrderStatus = "refunded"
)

// orderTransitions lists the permitted successor states for each status.
// PaymentFailed may be superseded by PaymentReceived: the gateway is
// authoritative and a later webhook can report success for the same intent.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusPaymentReceived, OrderStatusPaymentFailed, OrderStatusCancelled},
	OrderStatusPaymentReceived: {OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusPaymentFailed:   {OrderStatusPaymentReceived, OrderStatusCancelled},
	OrderStatusCancelled:       {},
	OrderStatusRefunded:        {},
}

// CanTransition reports whether an order may move from one status to another.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Valid reports whether the status is a known lifecycle state.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Address is the shipping address value object owned by an order.
type Address struct {
	Line1      string
	Line2      string
	PostalCode string
	City       string
	Country    string
}

// OrderLine is an immutable snapshot of a basket line taken at checkout.
// Product name and picture are denormalised so later catalog edits do not
// alter order history; the unit price is frozen in cents.
type OrderLine struct {
	ProductID   int64
	ProductName string
	PictureURL  string
	UnitCents   int64
	Quantity    int
}

// TotalCents returns the line total in cents.
func (l OrderLine) TotalCents() int64 {
	return l.UnitCents * int64(l.Quantity)
}

// Order is the durable record produced by checkout and mutated only by the
// webhook reconciler and the reversal service afterwards.
type Order struct {
	ID              string
	BuyerEmail      string
	Lines           []OrderLine
	ShippingAddress Address

	SubtotalCents        int64
	ProductDiscountCents int64
	DiscountCents        int64
	DeliveryFeeCents     int64

	IntentID  string
	RefundRef string
	Status    OrderStatus

	CreatedAt   time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
}

// TotalCents applies the order amount invariant:
// total = subtotal - (productDiscount + discount) + deliveryFee, floored at zero.
func (o Order) TotalCents() int64 {
	total := o.SubtotalCents - (o.ProductDiscountCents + o.DiscountCents) + o.DeliveryFeeCents
	if total < 0 {
		return 0
	}
	return total
}

// CouponKind distinguishes percentage coupons from fixed-amount ones.
type CouponKind string

const (
	// CouponKindPercent discounts a percentage of the subtotal.
	CouponKindPercent CouponKind = "percent"
	// CouponKindFixed discounts a fixed amount of cents.
	CouponKindFixed CouponKind = "fixed"
)

// Coupon references a discount code attached to a basket.
type Coupon struct {
	Code  string
	Kind  CouponKind
	Value int64
}

// Product carries the live catalog fields the checkout path reads and writes.
// RawPrice and RawPromoPrice are stored in legacy mixed units; read them
// through NormalizeCents.
type Product struct {
	ID              int64
	Name            string
	PictureURL      string
	RawPrice        float64
	RawPromoPrice   *float64
	DiscountPercent *float64
	QuantityInStock int
	SalesCount      int64
}

// BasketLine binds a live product to a requested quantity.
type BasketLine struct {
	Product  Product
	Quantity int
}

// Basket is the ephemeral pre-order state. It is destroyed when its order
// reaches PaymentReceived or when it expires.
type Basket struct {
	ID           string
	BuyerEmail   string
	Lines        []BasketLine
	IntentID     string
	ClientSecret string
	Coupon       *Coupon
	CreatedAt    time.Time
}

// Empty reports whether the basket has no purchasable lines.
func (b Basket) Empty() bool {
	for _, line := range b.Lines {
		if line.Quantity > 0 {
			return false
		}
	}
	return true
}
