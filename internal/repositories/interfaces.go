package repositories

import (
	"context"
	"time"

	"github.com/maisonceleste/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PaymentReceivedUpdate applies the transition into PaymentReceived. The
// repository must perform the status check, the per-line sales-count
// increments, and the basket deletion inside one transaction so that
// concurrent deliveries cannot double count.
type PaymentReceivedUpdate struct {
	OrderID string
	Now     time.Time
}

// PaymentFailedUpdate applies the transition into PaymentFailed and restores
// reserved stock for every line, again inside one transaction guarded by the
// persisted status.
type PaymentFailedUpdate struct {
	OrderID string
	Now     time.Time
}

// ReversalUpdate records the terminal Cancelled/Refunded transition together
// with the external reference returned by the gateway.
type ReversalUpdate struct {
	OrderID   string
	Status    domain.OrderStatus
	RefundRef string
	Now       time.Time
}

// OrderRepository persists order aggregates and owns every guarded,
// status-conditioned mutation of the order lifecycle.
type OrderRepository interface {
	// CreateWithReservation inserts the order and its lines and decrements
	// live stock for every line, all or nothing. An InsufficientStockError
	// leaves no mutation behind.
	CreateWithReservation(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByIntentID(ctx context.Context, intentID string) (domain.Order, error)
	// MarkPaymentReceived reports applied=false when the order is already in
	// PaymentReceived or a terminal state, making webhook redelivery a no-op.
	MarkPaymentReceived(ctx context.Context, update PaymentReceivedUpdate) (applied bool, err error)
	// MarkPaymentFailed reports applied=false unless the order is Pending.
	MarkPaymentFailed(ctx context.Context, update PaymentFailedUpdate) (applied bool, err error)
	// MarkReversed reports applied=false when the order already reached a
	// terminal state.
	MarkReversed(ctx context.Context, update ReversalUpdate) (applied bool, err error)
}

// BasketRepository reads and mutates the ephemeral pre-order basket rows.
// Basket identifiers are opaque values carried in a client-side cookie.
type BasketRepository interface {
	// FindByID returns the basket with product references resolved to live
	// catalog rows.
	FindByID(ctx context.Context, basketID string) (domain.Basket, error)
	AttachIntent(ctx context.Context, basketID, intentID, clientSecret string) error
	Delete(ctx context.Context, basketID string) error
}
