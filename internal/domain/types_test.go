package domain

import (
	"testing"
	"time"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusPaymentReceived, true},
		{OrderStatusPending, OrderStatusPaymentFailed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusPaymentFailed, OrderStatusPaymentReceived, true},
		{OrderStatusPaymentReceived, OrderStatusRefunded, true},
		{OrderStatusPaymentReceived, OrderStatusCancelled, true},
		{OrderStatusPaymentReceived, OrderStatusPaymentFailed, false},
		{OrderStatusCancelled, OrderStatusPaymentReceived, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusCancelled.Terminal() || !OrderStatusRefunded.Terminal() {
		t.Fatal("cancelled and refunded must be terminal")
	}
	if OrderStatusPaymentFailed.Terminal() {
		t.Fatal("payment_failed must allow a later success webhook")
	}
}

func TestOrderTotalInvariant(t *testing.T) {
	order := Order{
		SubtotalCents:        12000,
		ProductDiscountCents: 500,
		DiscountCents:        1000,
		DeliveryFeeCents:     490,
	}
	if got := order.TotalCents(); got != 10990 {
		t.Fatalf("expected total 10990, got %d", got)
	}
}

func TestOrderTotalNeverNegative(t *testing.T) {
	order := Order{SubtotalCents: 500, DiscountCents: 900}
	if got := order.TotalCents(); got != 0 {
		t.Fatalf("expected floor at 0, got %d", got)
	}
}

func TestBasketEmpty(t *testing.T) {
	basket := Basket{CreatedAt: time.Now()}
	if !basket.Empty() {
		t.Fatal("basket without lines must be empty")
	}
	basket.Lines = []BasketLine{{Product: Product{ID: 1}, Quantity: 0}}
	if !basket.Empty() {
		t.Fatal("zero-quantity lines do not make a basket purchasable")
	}
	basket.Lines = append(basket.Lines, BasketLine{Product: Product{ID: 2}, Quantity: 1})
	if basket.Empty() {
		t.Fatal("expected non-empty basket")
	}
}
