package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/repositories"
)

var (
	// ErrReconcileOrderNotFound indicates no order references the event's intent.
	ErrReconcileOrderNotFound = errors.New("reconcile: order not found for intent")
	// ErrReconcileUnavailable indicates the order store is currently unavailable.
	ErrReconcileUnavailable = errors.New("reconcile: unavailable")
)

// ReconcileServiceDeps wires the dependencies required by the reconcile service.
type ReconcileServiceDeps struct {
	Orders   repositories.OrderRepository
	Notifier Notifier
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type reconcileService struct {
	orders   repositories.OrderRepository
	notifier Notifier
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewReconcileService constructs a ReconcileService validating required dependencies.
func NewReconcileService(deps ReconcileServiceDeps) (ReconcileService, error) {
	if deps.Orders == nil {
		return nil, errors.New("reconcile service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reconcileService{
		orders:   deps.Orders,
		notifier: deps.Notifier,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ProcessEvent applies a verified gateway event to the order it references.
// Redeliveries are absorbed by the repository's status guards: a delivery
// that finds the transition already applied reports Applied=false and changes
// nothing, so the gateway may retry the same event indefinitely.
func (s *reconcileService) ProcessEvent(ctx context.Context, event WebhookEvent) (ReconcileResult, error) {
	if s == nil || s.orders == nil {
		return ReconcileResult{}, ErrReconcileUnavailable
	}

	if event.Kind == payments.EventIgnored || event.IntentID == "" {
		s.logger(ctx, "reconcile.event.ignored", map[string]any{
			"event_type": event.Type,
		})
		return ReconcileResult{}, nil
	}

	order, err := s.orders.FindByIntentID(ctx, event.IntentID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return ReconcileResult{}, fmt.Errorf("%w: %s", ErrReconcileOrderNotFound, event.IntentID)
		}
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrReconcileUnavailable, err)
	}

	// An amount drift means the basket was repriced after the intent was
	// confirmed. The gateway's charge is authoritative; record the drift for
	// operators but never block the transition on it.
	if event.AmountCents > 0 && event.AmountCents != order.TotalCents() {
		s.logger(ctx, "reconcile.amount.mismatch", map[string]any{
			"order_id":     order.ID,
			"intent_id":    event.IntentID,
			"event_cents":  event.AmountCents,
			"order_cents":  order.TotalCents(),
			"event_amount": domain.FormatEuros(event.AmountCents),
			"order_amount": domain.FormatEuros(order.TotalCents()),
		})
	}

	switch event.Kind {
	case payments.EventPaymentSucceeded:
		return s.applySucceeded(ctx, order, event)
	case payments.EventPaymentFailed:
		return s.applyFailed(ctx, order, event)
	default:
		return ReconcileResult{OrderID: order.ID, Status: order.Status}, nil
	}
}

func (s *reconcileService) applySucceeded(ctx context.Context, order Order, event WebhookEvent) (ReconcileResult, error) {
	applied, err := s.orders.MarkPaymentReceived(ctx, repositories.PaymentReceivedUpdate{
		OrderID: order.ID,
		Now:     s.now(),
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrReconcileUnavailable, err)
	}

	result := ReconcileResult{OrderID: order.ID, Status: order.Status, Applied: applied}
	if !applied {
		s.logger(ctx, "reconcile.event.duplicate", map[string]any{
			"order_id":   order.ID,
			"event_type": event.Type,
			"status":     string(order.Status),
		})
		return result, nil
	}

	result.Status = domain.OrderStatusPaymentReceived
	s.logger(ctx, "reconcile.order.payment_received", map[string]any{
		"order_id":  order.ID,
		"intent_id": event.IntentID,
	})
	s.notifyTransition(ctx, order, domain.OrderStatusPaymentReceived)
	return result, nil
}

func (s *reconcileService) applyFailed(ctx context.Context, order Order, event WebhookEvent) (ReconcileResult, error) {
	applied, err := s.orders.MarkPaymentFailed(ctx, repositories.PaymentFailedUpdate{
		OrderID: order.ID,
		Now:     s.now(),
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrReconcileUnavailable, err)
	}

	result := ReconcileResult{OrderID: order.ID, Status: order.Status, Applied: applied}
	if !applied {
		s.logger(ctx, "reconcile.event.duplicate", map[string]any{
			"order_id":   order.ID,
			"event_type": event.Type,
			"status":     string(order.Status),
		})
		return result, nil
	}

	result.Status = domain.OrderStatusPaymentFailed
	s.logger(ctx, "reconcile.order.payment_failed", map[string]any{
		"order_id":  order.ID,
		"intent_id": event.IntentID,
	})
	s.notifyTransition(ctx, order, domain.OrderStatusPaymentFailed)
	return result, nil
}

func (s *reconcileService) notifyTransition(ctx context.Context, order Order, status OrderStatus) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.OrderEvent(ctx, OrderEvent{
		OrderID:    order.ID,
		BuyerEmail: order.BuyerEmail,
		Status:     status,
		TotalCents: order.TotalCents(),
	})
	if err != nil {
		s.logger(ctx, "reconcile.notify.failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
