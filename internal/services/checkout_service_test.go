package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/repositories"
)

func checkoutTestBasket() domain.Basket {
	return domain.Basket{
		ID:           "basket-1",
		BuyerEmail:   "buyer@example.com",
		IntentID:     "pi_1",
		ClientSecret: "sec_1",
		Lines: []domain.BasketLine{
			{
				Product: domain.Product{
					ID:         1,
					Name:       "Vase",
					PictureURL: "https://img.example/vase.jpg",
					RawPrice:   40.00,
				},
				Quantity: 2,
			},
		},
	}
}

func checkoutTestAddress() Address {
	return Address{
		Line1:      "12 rue des Lilas",
		PostalCode: "75011",
		City:       "Paris",
		Country:    "FR",
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	basket := checkoutTestBasket()

	var created domain.Order
	orders := &stubOrderRepository{
		createFunc: func(_ context.Context, order domain.Order) error {
			created = order
			return nil
		},
	}
	baskets := &stubBasketRepository{
		findFunc: func(context.Context, string) (domain.Basket, error) { return basket, nil },
	}
	provider := &stubProvider{
		getFunc: func(_ context.Context, intentID string) (payments.Intent, error) {
			return payments.Intent{ID: intentID, Status: payments.StatusPending}, nil
		},
	}
	notifier := &stubNotifier{}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   orders,
		Provider: provider,
		Notifier: notifier,
		Delivery: testDelivery,
		IDGen:    func() string { return "order-1" },
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	order, err := svc.PlaceOrder(ctx, PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: checkoutTestAddress()})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.ID != "order-1" || order.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order %#v", order)
	}
	if created.IntentID != "pi_1" {
		t.Fatalf("expected intent carried onto order, got %s", created.IntentID)
	}
	if len(created.Lines) != 1 || created.Lines[0].UnitCents != 4000 || created.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %#v", created.Lines)
	}
	if created.SubtotalCents != 8000 || created.DeliveryFeeCents != 490 {
		t.Fatalf("unexpected totals %#v", created)
	}
	if !created.CreatedAt.Equal(now) {
		t.Fatalf("expected created at %v, got %v", now, created.CreatedAt)
	}
	if len(notifier.events) != 1 || notifier.events[0].Status != domain.OrderStatusPending {
		t.Fatalf("unexpected notifications %#v", notifier.events)
	}
}

func TestPlaceOrderSettlesWhenIntentAlreadySucceeded(t *testing.T) {
	ctx := context.Background()
	basket := checkoutTestBasket()

	var received *repositories.PaymentReceivedUpdate
	orders := &stubOrderRepository{
		createFunc: func(context.Context, domain.Order) error { return nil },
		markReceivedFunc: func(_ context.Context, update repositories.PaymentReceivedUpdate) (bool, error) {
			received = &update
			return true, nil
		},
	}
	baskets := &stubBasketRepository{
		findFunc: func(context.Context, string) (domain.Basket, error) { return basket, nil },
	}
	provider := &stubProvider{
		getFunc: func(context.Context, string) (payments.Intent, error) {
			return payments.Intent{ID: "pi_1", Status: payments.StatusSucceeded}, nil
		},
	}
	notifier := &stubNotifier{}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   orders,
		Provider: provider,
		Notifier: notifier,
		Delivery: testDelivery,
		IDGen:    func() string { return "order-1" },
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	order, err := svc.PlaceOrder(ctx, PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: checkoutTestAddress()})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != domain.OrderStatusPaymentReceived {
		t.Fatalf("expected payment received, got %s", order.Status)
	}
	if received == nil || received.OrderID != "order-1" {
		t.Fatalf("expected MarkPaymentReceived for order-1, got %#v", received)
	}
	if len(notifier.events) != 1 || notifier.events[0].Status != domain.OrderStatusPaymentReceived {
		t.Fatalf("unexpected notifications %#v", notifier.events)
	}
}

func TestPlaceOrderPollFailureLeavesOrderPending(t *testing.T) {
	basket := checkoutTestBasket()
	orders := &stubOrderRepository{
		createFunc: func(context.Context, domain.Order) error { return nil },
	}
	baskets := &stubBasketRepository{
		findFunc: func(context.Context, string) (domain.Basket, error) { return basket, nil },
	}
	provider := &stubProvider{
		getFunc: func(context.Context, string) (payments.Intent, error) {
			return payments.Intent{}, errors.New("gateway timeout")
		},
	}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   orders,
		Provider: provider,
		Delivery: testDelivery,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: checkoutTestAddress()})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending after poll failure, got %s", order.Status)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	basket := checkoutTestBasket()
	orders := &stubOrderRepository{
		createFunc: func(context.Context, domain.Order) error {
			return &repositories.InsufficientStockError{ProductID: 1, Requested: 2}
		},
	}
	baskets := &stubBasketRepository{
		findFunc: func(context.Context, string) (domain.Basket, error) { return basket, nil },
	}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   orders,
		Provider: &stubProvider{},
		Delivery: testDelivery,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	_, err = svc.PlaceOrder(context.Background(), PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: checkoutTestAddress()})
	if !errors.Is(err, ErrCheckoutInsufficientStock) {
		t.Fatalf("expected ErrCheckoutInsufficientStock, got %v", err)
	}
}

func TestPlaceOrderRequiresIntent(t *testing.T) {
	basket := checkoutTestBasket()
	basket.IntentID = ""
	baskets := &stubBasketRepository{
		findFunc: func(context.Context, string) (domain.Basket, error) { return basket, nil },
	}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   &stubOrderRepository{},
		Provider: &stubProvider{},
		Delivery: testDelivery,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	_, err = svc.PlaceOrder(context.Background(), PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: checkoutTestAddress()})
	if !errors.Is(err, ErrCheckoutIntentMissing) {
		t.Fatalf("expected ErrCheckoutIntentMissing, got %v", err)
	}
}

func TestPlaceOrderRejectsIncompleteAddress(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  &stubBasketRepository{},
		Orders:   &stubOrderRepository{},
		Provider: &stubProvider{},
		Delivery: testDelivery,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	addr := checkoutTestAddress()
	addr.City = ""
	_, err = svc.PlaceOrder(context.Background(), PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: addr})
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	orders := &stubOrderRepository{
		findFunc: func(context.Context, string) (domain.Order, error) {
			return domain.Order{}, notFoundErr("orders.find")
		},
	}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  &stubBasketRepository{},
		Orders:   orders,
		Provider: &stubProvider{},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	_, err = svc.GetOrder(context.Background(), "missing")
	if !errors.Is(err, ErrCheckoutOrderNotFound) {
		t.Fatalf("expected ErrCheckoutOrderNotFound, got %v", err)
	}
}

func TestPlaceOrderUsesDiscountCalculator(t *testing.T) {
	basket := checkoutTestBasket()
	basket.Coupon = &domain.Coupon{Code: "SPRING", Kind: domain.CouponKindPercent, Value: 10}

	var created domain.Order
	orders := &stubOrderRepository{
		createFunc: func(_ context.Context, order domain.Order) error {
			created = order
			return nil
		},
	}
	baskets := &stubBasketRepository{
		findFunc: func(context.Context, string) (domain.Basket, error) { return basket, nil },
	}
	provider := &stubProvider{
		getFunc: func(_ context.Context, intentID string) (payments.Intent, error) {
			return payments.Intent{ID: intentID, Status: payments.StatusPending}, nil
		},
	}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   orders,
		Provider: provider,
		Notifier: &stubNotifier{},
		Discounts: stubDiscountCalculator{
			computeDiscount: func(_ context.Context, coupon Coupon, subtotalCents int64) (int64, error) {
				if coupon.Code != "SPRING" || subtotalCents != 8000 {
					t.Fatalf("calculator saw coupon %q subtotal %d", coupon.Code, subtotalCents)
				}
				return 1500, nil
			},
		},
		Delivery: testDelivery,
		IDGen:    func() string { return "order-1" },
		Clock:    time.Now,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	_, err = svc.PlaceOrder(context.Background(), PlaceOrderCommand{BasketID: "basket-1", ShippingAddress: checkoutTestAddress()})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if created.DiscountCents != 1500 {
		t.Fatalf("expected calculator discount on order, got %d", created.DiscountCents)
	}
	if created.TotalCents() != 8000-1500+490 {
		t.Fatalf("unexpected total %d", created.TotalCents())
	}
}
