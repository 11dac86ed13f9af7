package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutBasketNotFound indicates the basket does not exist.
	ErrCheckoutBasketNotFound = errors.New("checkout: basket not found")
	// ErrCheckoutBasketEmpty indicates the basket has nothing purchasable.
	ErrCheckoutBasketEmpty = errors.New("checkout: basket is empty")
	// ErrCheckoutIntentMissing indicates no payment intent was created for the basket.
	ErrCheckoutIntentMissing = errors.New("checkout: payment intent missing")
	// ErrCheckoutInsufficientStock indicates stock could not be reserved for the basket lines.
	ErrCheckoutInsufficientStock = errors.New("checkout: insufficient stock")
	// ErrCheckoutOrderNotFound indicates the requested order does not exist.
	ErrCheckoutOrderNotFound = errors.New("checkout: order not found")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Baskets   repositories.BasketRepository
	Orders    repositories.OrderRepository
	Provider  payments.Provider
	Notifier  Notifier
	Discounts DiscountCalculator
	Delivery  DeliveryPolicy
	IDGen     func() string
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	baskets   repositories.BasketRepository
	orders    repositories.OrderRepository
	provider  payments.Provider
	notifier  Notifier
	discounts DiscountCalculator
	delivery  DeliveryPolicy
	idGen     func() string
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Baskets == nil {
		return nil, errors.New("checkout service: basket repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}

	discounts := deps.Discounts
	if discounts == nil {
		discounts = NewCouponDiscountCalculator()
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		baskets:   deps.Baskets,
		orders:    deps.Orders,
		provider:  deps.Provider,
		notifier:  deps.Notifier,
		discounts: discounts,
		delivery:  deps.Delivery,
		idGen:     idGen,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// PlaceOrder freezes the basket into a Pending order, reserving stock for
// every line in the same write. The basket must already carry a payment
// intent; if the gateway reports that intent settled before the order row
// existed, the order is promoted to PaymentReceived immediately instead of
// waiting for a webhook redelivery.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if s == nil || s.baskets == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}

	basketID := strings.TrimSpace(cmd.BasketID)
	if basketID == "" {
		return Order{}, ErrCheckoutInvalidInput
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	basket, err := s.baskets.FindByID(ctx, basketID)
	if err != nil {
		return Order{}, s.translateRepoError(err, ErrCheckoutBasketNotFound)
	}
	if basket.Empty() {
		return Order{}, ErrCheckoutBasketEmpty
	}
	if basket.IntentID == "" {
		return Order{}, ErrCheckoutIntentMissing
	}

	totals, err := PriceBasket(ctx, basket, s.delivery, s.discounts)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	if err := checkCeiling(totals.TotalCents); err != nil {
		return Order{}, err
	}

	order := Order{
		ID:                   s.idGen(),
		BuyerEmail:           basket.BuyerEmail,
		Lines:                buildOrderLines(basket),
		ShippingAddress:      cmd.ShippingAddress,
		SubtotalCents:        totals.SubtotalCents,
		ProductDiscountCents: totals.ProductDiscountCents,
		DiscountCents:        totals.DiscountCents,
		DeliveryFeeCents:     totals.DeliveryFeeCents,
		IntentID:             basket.IntentID,
		Status:               domain.OrderStatusPending,
		CreatedAt:            s.now(),
	}

	if err := s.orders.CreateWithReservation(ctx, order); err != nil {
		var stockErr *repositories.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.logger(ctx, "checkout.stock.insufficient", map[string]any{
				"basket_id":  basketID,
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
			})
			return Order{}, fmt.Errorf("%w: product %d", ErrCheckoutInsufficientStock, stockErr.ProductID)
		}
		return Order{}, s.translateRepoError(err, ErrCheckoutUnavailable)
	}

	s.logger(ctx, "checkout.order.created", map[string]any{
		"order_id":    order.ID,
		"intent_id":   order.IntentID,
		"total_cents": order.TotalCents(),
	})

	order = s.settleIfAlreadyPaid(ctx, order)
	s.notify(ctx, order)
	return order, nil
}

// GetOrder returns the order aggregate by identifier.
func (s *checkoutService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err, ErrCheckoutOrderNotFound)
	}
	return order, nil
}

// settleIfAlreadyPaid polls the gateway once for intents that settled between
// intent confirmation and order creation. Poll failures are logged and left
// for the webhook reconciler; they never fail the checkout.
func (s *checkoutService) settleIfAlreadyPaid(ctx context.Context, order Order) Order {
	intent, err := s.provider.GetIntent(ctx, order.IntentID)
	if err != nil {
		s.logger(ctx, "checkout.intent.poll_failed", map[string]any{
			"order_id":  order.ID,
			"intent_id": order.IntentID,
			"error":     err.Error(),
		})
		return order
	}
	if intent.Status != payments.StatusSucceeded {
		return order
	}

	now := s.now()
	applied, err := s.orders.MarkPaymentReceived(ctx, repositories.PaymentReceivedUpdate{
		OrderID: order.ID,
		Now:     now,
	})
	if err != nil {
		s.logger(ctx, "checkout.settle.failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return order
	}
	if applied {
		order.Status = domain.OrderStatusPaymentReceived
		order.PaidAt = &now
		s.logger(ctx, "checkout.order.settled_at_creation", map[string]any{
			"order_id":  order.ID,
			"intent_id": order.IntentID,
		})
	}
	return order
}

func (s *checkoutService) notify(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	event := OrderEvent{
		OrderID:    order.ID,
		BuyerEmail: order.BuyerEmail,
		Status:     order.Status,
		TotalCents: order.TotalCents(),
	}
	if err := s.notifier.OrderEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.notify.failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func (s *checkoutService) translateRepoError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return notFound
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
}

func validateShippingAddress(addr Address) error {
	if strings.TrimSpace(addr.Line1) == "" ||
		strings.TrimSpace(addr.PostalCode) == "" ||
		strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.Country) == "" {
		return ErrCheckoutInvalidInput
	}
	return nil
}
