package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/repositories"
)

var (
	// ErrReversalInvalidInput indicates the caller supplied invalid input parameters.
	ErrReversalInvalidInput = errors.New("reversal: invalid input")
	// ErrReversalOrderNotFound indicates the order does not exist.
	ErrReversalOrderNotFound = errors.New("reversal: order not found")
	// ErrReversalGatewayRejected indicates the gateway refused to cancel or refund the payment.
	ErrReversalGatewayRejected = errors.New("reversal: the payment provider could not reverse this payment")
	// ErrReversalUnavailable indicates a dependency is currently unavailable.
	ErrReversalUnavailable = errors.New("reversal: unavailable")
)

// ReversalServiceDeps wires the dependencies required by the reversal service.
type ReversalServiceDeps struct {
	Orders   repositories.OrderRepository
	Provider payments.Provider
	Notifier Notifier
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type reversalService struct {
	orders   repositories.OrderRepository
	provider payments.Provider
	notifier Notifier
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewReversalService constructs a ReversalService validating required dependencies.
func NewReversalService(deps ReversalServiceDeps) (ReversalService, error) {
	if deps.Orders == nil {
		return nil, errors.New("reversal service: order repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("reversal service: payment provider is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reversalService{
		orders:   deps.Orders,
		provider: deps.Provider,
		notifier: deps.Notifier,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Reverse undoes an order's payment. Settled intents are refunded under a
// per-order idempotency key; unsettled ones are cancelled at the gateway.
// Calling Reverse on an order that already reached a terminal state returns
// the order unchanged, so retried requests and double-clicked admin buttons
// trigger at most one gateway reversal.
func (s *reversalService) Reverse(ctx context.Context, cmd ReverseOrderCommand) (Order, error) {
	if s == nil || s.orders == nil || s.provider == nil {
		return Order{}, ErrReversalUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrReversalInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Order{}, ErrReversalOrderNotFound
		}
		return Order{}, fmt.Errorf("%w: %v", ErrReversalUnavailable, err)
	}

	if order.Status.Terminal() {
		s.logger(ctx, "reversal.noop.terminal", map[string]any{
			"order_id": order.ID,
			"status":   string(order.Status),
		})
		return order, nil
	}

	target, refundRef, err := s.reverseAtGateway(ctx, order, cmd.Reason)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	applied, err := s.orders.MarkReversed(ctx, repositories.ReversalUpdate{
		OrderID:   order.ID,
		Status:    target,
		RefundRef: refundRef,
		Now:       now,
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrReversalUnavailable, err)
	}
	if !applied {
		// Lost the race against a concurrent reversal; the stored state wins.
		return s.orders.FindByID(ctx, order.ID)
	}

	order.Status = target
	order.RefundRef = refundRef
	if target == domain.OrderStatusRefunded {
		order.RefundedAt = &now
	} else {
		order.CancelledAt = &now
	}

	s.logger(ctx, "reversal.order.reversed", map[string]any{
		"order_id":   order.ID,
		"intent_id":  order.IntentID,
		"status":     string(target),
		"refund_ref": refundRef,
		"reason":     cmd.Reason,
	})
	s.notifyTransition(ctx, order)
	return order, nil
}

// reverseAtGateway picks refund or cancel from the gateway's own view of the
// intent, never from local state, so an order stuck in Pending whose charge
// actually settled is still refunded rather than cancelled.
func (s *reversalService) reverseAtGateway(ctx context.Context, order Order, reason string) (domain.OrderStatus, string, error) {
	if order.IntentID == "" {
		return domain.OrderStatusCancelled, "", nil
	}

	intent, err := s.provider.GetIntent(ctx, order.IntentID)
	if errors.Is(err, payments.ErrIntentNotFound) {
		s.logger(ctx, "reversal.intent.missing", map[string]any{
			"order_id":  order.ID,
			"intent_id": order.IntentID,
		})
		return domain.OrderStatusCancelled, "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrReversalGatewayRejected, err)
	}

	if !intent.Status.Settled() {
		if _, err := s.provider.CancelIntent(ctx, payments.CancelIntentRequest{
			IntentID: order.IntentID,
			Reason:   reason,
		}); err != nil && !errors.Is(err, payments.ErrIntentNotFound) {
			return "", "", fmt.Errorf("%w: %v", ErrReversalGatewayRejected, err)
		}
		return domain.OrderStatusCancelled, "", nil
	}

	refund, err := s.provider.Refund(ctx, payments.RefundRequest{
		IntentID: order.IntentID,
		Metadata: map[string]string{
			"order_id": order.ID,
			"reason":   reason,
		},
		IdempotencyKey: fmt.Sprintf("order-%s-refund", order.ID),
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrReversalGatewayRejected, err)
	}
	return domain.OrderStatusRefunded, refund.ID, nil
}

func (s *reversalService) notifyTransition(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.OrderEvent(ctx, OrderEvent{
		OrderID:    order.ID,
		BuyerEmail: order.BuyerEmail,
		Status:     order.Status,
		TotalCents: order.TotalCents(),
	})
	if err != nil {
		s.logger(ctx, "reversal.notify.failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
