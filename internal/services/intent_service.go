package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/repositories"
)

const intentCurrency = "eur"

var (
	// ErrIntentInvalidInput indicates the caller supplied invalid input parameters.
	ErrIntentInvalidInput = errors.New("payment intent: invalid input")
	// ErrIntentBasketNotFound indicates the basket does not exist.
	ErrIntentBasketNotFound = errors.New("payment intent: basket not found")
	// ErrIntentBasketEmpty indicates the basket has nothing purchasable.
	ErrIntentBasketEmpty = errors.New("payment intent: basket is empty")
	// ErrIntentUnavailable indicates a dependency is currently unavailable.
	ErrIntentUnavailable = errors.New("payment intent: unavailable")
	// ErrIntentGatewayRejected indicates the gateway refused the intent operation.
	ErrIntentGatewayRejected = errors.New("payment intent: gateway rejected")
)

// PaymentIntentServiceDeps wires the dependencies required by the intent service.
type PaymentIntentServiceDeps struct {
	Baskets   repositories.BasketRepository
	Provider  payments.Provider
	Discounts DiscountCalculator
	Delivery  DeliveryPolicy
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type paymentIntentService struct {
	baskets   repositories.BasketRepository
	provider  payments.Provider
	discounts DiscountCalculator
	delivery  DeliveryPolicy
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewPaymentIntentService constructs a PaymentIntentService validating required dependencies.
func NewPaymentIntentService(deps PaymentIntentServiceDeps) (PaymentIntentService, error) {
	if deps.Baskets == nil {
		return nil, errors.New("payment intent service: basket repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment intent service: payment provider is required")
	}
	if deps.Delivery.FeeCents < 0 || deps.Delivery.FreeThresholdCents < 0 {
		return nil, errors.New("payment intent service: delivery policy must be non-negative")
	}

	discounts := deps.Discounts
	if discounts == nil {
		discounts = NewCouponDiscountCalculator()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentIntentService{
		baskets:   deps.Baskets,
		provider:  deps.Provider,
		discounts: discounts,
		delivery:  deps.Delivery,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// EnsureIntent prices the basket and creates a gateway intent for that amount,
// or resizes the basket's existing intent when one is already attached. The
// returned client secret lets the storefront confirm the charge directly with
// the gateway.
func (s *paymentIntentService) EnsureIntent(ctx context.Context, cmd EnsureIntentCommand) (IntentResult, error) {
	if s == nil || s.baskets == nil || s.provider == nil {
		return IntentResult{}, ErrIntentUnavailable
	}

	basketID := strings.TrimSpace(cmd.BasketID)
	if basketID == "" {
		return IntentResult{}, ErrIntentInvalidInput
	}

	basket, err := s.baskets.FindByID(ctx, basketID)
	if err != nil {
		return IntentResult{}, s.translateBasketError(err)
	}
	if basket.Empty() {
		return IntentResult{}, ErrIntentBasketEmpty
	}

	totals, err := PriceBasket(ctx, basket, s.delivery, s.discounts)
	if err != nil {
		return IntentResult{}, fmt.Errorf("%w: %v", ErrIntentUnavailable, err)
	}
	if err := checkCeiling(totals.TotalCents); err != nil {
		return IntentResult{}, err
	}

	if basket.IntentID != "" {
		intent, err := s.provider.UpdateIntent(ctx, payments.UpdateIntentRequest{
			IntentID:    basket.IntentID,
			AmountCents: totals.TotalCents,
		})
		if err == nil {
			s.logger(ctx, "payments.intent.resized", map[string]any{
				"basket_id":    basketID,
				"intent_id":    intent.ID,
				"amount_cents": intent.AmountCents,
			})
			return IntentResult{
				IntentID:     intent.ID,
				ClientSecret: basket.ClientSecret,
				AmountCents:  intent.AmountCents,
				Totals:       totals,
			}, nil
		}
		if !errors.Is(err, payments.ErrIntentNotFound) {
			return IntentResult{}, fmt.Errorf("%w: %v", ErrIntentGatewayRejected, err)
		}
		// The gateway lost or expired the intent; fall through and mint a
		// fresh one for the basket.
		s.logger(ctx, "payments.intent.stale", map[string]any{
			"basket_id": basketID,
			"intent_id": basket.IntentID,
		})
	}

	intent, err := s.provider.CreateIntent(ctx, payments.CreateIntentRequest{
		AmountCents: totals.TotalCents,
		Currency:    intentCurrency,
		BuyerEmail:  basket.BuyerEmail,
		Metadata: map[string]string{
			"basket_id": basketID,
		},
		IdempotencyKey: "basket-" + basketID + "-intent",
	})
	if err != nil {
		return IntentResult{}, fmt.Errorf("%w: %v", ErrIntentGatewayRejected, err)
	}

	if err := s.baskets.AttachIntent(ctx, basketID, intent.ID, intent.ClientSecret); err != nil {
		return IntentResult{}, s.translateBasketError(err)
	}

	s.logger(ctx, "payments.intent.created", map[string]any{
		"basket_id":    basketID,
		"intent_id":    intent.ID,
		"amount_cents": intent.AmountCents,
	})

	return IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.AmountCents,
		Totals:       totals,
	}, nil
}

func (s *paymentIntentService) translateBasketError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrIntentBasketNotFound
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrIntentUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrIntentUnavailable, err)
}
