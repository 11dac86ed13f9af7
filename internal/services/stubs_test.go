package services

import (
	"context"
	"errors"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/repositories"
)

type stubBasketRepository struct {
	findFunc   func(ctx context.Context, basketID string) (domain.Basket, error)
	attachFunc func(ctx context.Context, basketID, intentID, clientSecret string) error
	deleteFunc func(ctx context.Context, basketID string) error
}

func (s *stubBasketRepository) FindByID(ctx context.Context, basketID string) (domain.Basket, error) {
	if s.findFunc == nil {
		return domain.Basket{}, errors.New("unexpected FindByID")
	}
	return s.findFunc(ctx, basketID)
}

func (s *stubBasketRepository) AttachIntent(ctx context.Context, basketID, intentID, clientSecret string) error {
	if s.attachFunc == nil {
		return errors.New("unexpected AttachIntent")
	}
	return s.attachFunc(ctx, basketID, intentID, clientSecret)
}

func (s *stubBasketRepository) Delete(ctx context.Context, basketID string) error {
	if s.deleteFunc == nil {
		return errors.New("unexpected Delete")
	}
	return s.deleteFunc(ctx, basketID)
}

type stubOrderRepository struct {
	createFunc       func(ctx context.Context, order domain.Order) error
	findFunc         func(ctx context.Context, orderID string) (domain.Order, error)
	findIntentFunc   func(ctx context.Context, intentID string) (domain.Order, error)
	markReceivedFunc func(ctx context.Context, update repositories.PaymentReceivedUpdate) (bool, error)
	markFailedFunc   func(ctx context.Context, update repositories.PaymentFailedUpdate) (bool, error)
	markReversedFunc func(ctx context.Context, update repositories.ReversalUpdate) (bool, error)
}

func (s *stubOrderRepository) CreateWithReservation(ctx context.Context, order domain.Order) error {
	if s.createFunc == nil {
		return errors.New("unexpected CreateWithReservation")
	}
	return s.createFunc(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFunc == nil {
		return domain.Order{}, errors.New("unexpected FindByID")
	}
	return s.findFunc(ctx, orderID)
}

func (s *stubOrderRepository) FindByIntentID(ctx context.Context, intentID string) (domain.Order, error) {
	if s.findIntentFunc == nil {
		return domain.Order{}, errors.New("unexpected FindByIntentID")
	}
	return s.findIntentFunc(ctx, intentID)
}

func (s *stubOrderRepository) MarkPaymentReceived(ctx context.Context, update repositories.PaymentReceivedUpdate) (bool, error) {
	if s.markReceivedFunc == nil {
		return false, errors.New("unexpected MarkPaymentReceived")
	}
	return s.markReceivedFunc(ctx, update)
}

func (s *stubOrderRepository) MarkPaymentFailed(ctx context.Context, update repositories.PaymentFailedUpdate) (bool, error) {
	if s.markFailedFunc == nil {
		return false, errors.New("unexpected MarkPaymentFailed")
	}
	return s.markFailedFunc(ctx, update)
}

func (s *stubOrderRepository) MarkReversed(ctx context.Context, update repositories.ReversalUpdate) (bool, error) {
	if s.markReversedFunc == nil {
		return false, errors.New("unexpected MarkReversed")
	}
	return s.markReversedFunc(ctx, update)
}

type stubProvider struct {
	createFunc func(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error)
	updateFunc func(ctx context.Context, req payments.UpdateIntentRequest) (payments.Intent, error)
	getFunc    func(ctx context.Context, intentID string) (payments.Intent, error)
	cancelFunc func(ctx context.Context, req payments.CancelIntentRequest) (payments.Intent, error)
	refundFunc func(ctx context.Context, req payments.RefundRequest) (payments.Refund, error)
}

func (s *stubProvider) CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error) {
	if s.createFunc == nil {
		return payments.Intent{}, errors.New("unexpected CreateIntent")
	}
	return s.createFunc(ctx, req)
}

func (s *stubProvider) UpdateIntent(ctx context.Context, req payments.UpdateIntentRequest) (payments.Intent, error) {
	if s.updateFunc == nil {
		return payments.Intent{}, errors.New("unexpected UpdateIntent")
	}
	return s.updateFunc(ctx, req)
}

func (s *stubProvider) GetIntent(ctx context.Context, intentID string) (payments.Intent, error) {
	if s.getFunc == nil {
		return payments.Intent{}, errors.New("unexpected GetIntent")
	}
	return s.getFunc(ctx, intentID)
}

func (s *stubProvider) CancelIntent(ctx context.Context, req payments.CancelIntentRequest) (payments.Intent, error) {
	if s.cancelFunc == nil {
		return payments.Intent{}, errors.New("unexpected CancelIntent")
	}
	return s.cancelFunc(ctx, req)
}

func (s *stubProvider) Refund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	if s.refundFunc == nil {
		return payments.Refund{}, errors.New("unexpected Refund")
	}
	return s.refundFunc(ctx, req)
}

type stubNotifier struct {
	events []OrderEvent
	err    error
}

func (s *stubNotifier) OrderEvent(_ context.Context, event OrderEvent) error {
	s.events = append(s.events, event)
	return s.err
}

func notFoundErr(op string) error {
	return repositories.NewError(op, repositories.ErrorCodeNotFound, "not found", nil)
}
