package handlers

import (
	"context"
	"errors"

	"github.com/maisonceleste/api/internal/services"
)

type stubIntentService struct {
	ensureFn func(ctx context.Context, cmd services.EnsureIntentCommand) (services.IntentResult, error)
}

func (s *stubIntentService) EnsureIntent(ctx context.Context, cmd services.EnsureIntentCommand) (services.IntentResult, error) {
	if s.ensureFn == nil {
		return services.IntentResult{}, errors.New("unexpected EnsureIntent")
	}
	return s.ensureFn(ctx, cmd)
}

type stubCheckoutService struct {
	placeFn func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error)
	getFn   func(ctx context.Context, orderID string) (services.Order, error)
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	if s.placeFn == nil {
		return services.Order{}, errors.New("unexpected PlaceOrder")
	}
	return s.placeFn(ctx, cmd)
}

func (s *stubCheckoutService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn == nil {
		return services.Order{}, errors.New("unexpected GetOrder")
	}
	return s.getFn(ctx, orderID)
}

type stubReconcileService struct {
	processFn func(ctx context.Context, event services.WebhookEvent) (services.ReconcileResult, error)
}

func (s *stubReconcileService) ProcessEvent(ctx context.Context, event services.WebhookEvent) (services.ReconcileResult, error) {
	if s.processFn == nil {
		return services.ReconcileResult{}, errors.New("unexpected ProcessEvent")
	}
	return s.processFn(ctx, event)
}

type stubReversalService struct {
	reverseFn func(ctx context.Context, cmd services.ReverseOrderCommand) (services.Order, error)
}

func (s *stubReversalService) Reverse(ctx context.Context, cmd services.ReverseOrderCommand) (services.Order, error) {
	if s.reverseFn == nil {
		return services.Order{}, errors.New("unexpected Reverse")
	}
	return s.reverseFn(ctx, cmd)
}
