package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/repositories"
)

// OrderRepository persists order aggregates to MySQL. Every lifecycle
// mutation runs inside a transaction guarded by the persisted status so
// concurrent webhook deliveries and reversals serialize on the row.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository builds an order repository on the shared pool.
func NewOrderRepository(provider *Provider) (*OrderRepository, error) {
	if provider == nil || provider.DB() == nil {
		return nil, errors.New("mysql: order repository requires a provider")
	}
	return &OrderRepository{db: provider.DB()}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// restockOrderLines returns an order's reserved quantities to live stock,
// summed per product so repeated lines for one product restock in full.
const restockOrderLines = `
	UPDATE products p
	INNER JOIN (
		SELECT product_id, SUM(quantity) AS quantity
		FROM order_lines WHERE order_id = ?
		GROUP BY product_id
	) l ON l.product_id = p.id
	SET p.quantity_in_stock = p.quantity_in_stock + l.quantity`

// CreateWithReservation inserts the order and its lines and decrements stock
// for every line in a single transaction. A line whose guarded decrement
// matches no row aborts the transaction with an InsufficientStockError.
func (r *OrderRepository) CreateWithReservation(ctx context.Context, order domain.Order) error {
	const op = "orders.create"

	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, line := range order.Lines {
			res, err := tx.ExecContext(ctx,
				`UPDATE products
				 SET quantity_in_stock = quantity_in_stock - ?
				 WHERE id = ? AND quantity_in_stock >= ?`,
				line.Quantity, line.ProductID, line.Quantity)
			if err != nil {
				return repositories.NewError(op, repositories.ErrorCodeUnknown, "reserve stock", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return repositories.NewError(op, repositories.ErrorCodeUnknown, "reserve stock", err)
			}
			if affected == 0 {
				return &repositories.InsufficientStockError{ProductID: line.ProductID, Requested: line.Quantity}
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders
			 (id, buyer_email,
			  ship_line1, ship_line2, ship_postal_code, ship_city, ship_country,
			  subtotal_cents, product_discount_cents, discount_cents, delivery_fee_cents,
			  intent_id, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, order.BuyerEmail,
			order.ShippingAddress.Line1, order.ShippingAddress.Line2,
			order.ShippingAddress.PostalCode, order.ShippingAddress.City, order.ShippingAddress.Country,
			order.SubtotalCents, order.ProductDiscountCents, order.DiscountCents, order.DeliveryFeeCents,
			order.IntentID, string(order.Status), order.CreatedAt)
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "insert order", err)
		}

		for position, line := range order.Lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_lines
				 (order_id, position, product_id, product_name, picture_url, unit_cents, quantity)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				order.ID, position, line.ProductID, line.ProductName, line.PictureURL,
				line.UnitCents, line.Quantity)
			if err != nil {
				return repositories.NewError(op, repositories.ErrorCodeUnknown, "insert order line", err)
			}
		}
		return nil
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			return err
		}
		return repositories.NewError(op, repositories.ErrorCodeUnavailable, "transaction failed", err)
	}
	return nil
}

// FindByID loads an order aggregate by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, "orders.find", "id = ?", orderID)
}

// FindByIntentID loads the order attached to a payment intent. Intent
// identifiers are unique across orders.
func (r *OrderRepository) FindByIntentID(ctx context.Context, intentID string) (domain.Order, error) {
	return r.findOne(ctx, "orders.find_by_intent", "intent_id = ?", intentID)
}

func (r *OrderRepository) findOne(ctx context.Context, op, where string, arg any) (domain.Order, error) {
	query := fmt.Sprintf(
		`SELECT id, buyer_email,
		        ship_line1, ship_line2, ship_postal_code, ship_city, ship_country,
		        subtotal_cents, product_discount_cents, discount_cents, delivery_fee_cents,
		        intent_id, refund_ref, status,
		        created_at, paid_at, cancelled_at, refunded_at
		 FROM orders WHERE %s`, where)

	var (
		order     domain.Order
		refundRef sql.NullString
		status    string
		paidAt    sql.NullTime
		cancelled sql.NullTime
		refunded  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID, &order.BuyerEmail,
		&order.ShippingAddress.Line1, &order.ShippingAddress.Line2,
		&order.ShippingAddress.PostalCode, &order.ShippingAddress.City, &order.ShippingAddress.Country,
		&order.SubtotalCents, &order.ProductDiscountCents, &order.DiscountCents, &order.DeliveryFeeCents,
		&order.IntentID, &refundRef, &status,
		&order.CreatedAt, &paidAt, &cancelled, &refunded)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, repositories.NewError(op, repositories.ErrorCodeNotFound, "order not found", err)
	}
	if err != nil {
		return domain.Order{}, repositories.NewError(op, repositories.ErrorCodeUnavailable, "query order", err)
	}

	order.RefundRef = refundRef.String
	order.Status = domain.OrderStatus(status)
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if cancelled.Valid {
		t := cancelled.Time
		order.CancelledAt = &t
	}
	if refunded.Valid {
		t := refunded.Time
		order.RefundedAt = &t
	}

	lines, err := r.loadLines(ctx, op, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, op, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, product_name, picture_url, unit_cents, quantity
		 FROM order_lines WHERE order_id = ? ORDER BY position`, orderID)
	if err != nil {
		return nil, repositories.NewError(op, repositories.ErrorCodeUnavailable, "query order lines", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.PictureURL, &line.UnitCents, &line.Quantity); err != nil {
			return nil, repositories.NewError(op, repositories.ErrorCodeUnknown, "scan order line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.NewError(op, repositories.ErrorCodeUnavailable, "iterate order lines", err)
	}
	return lines, nil
}

// MarkPaymentReceived moves the order to PaymentReceived if it is currently
// Pending or PaymentFailed, increments per-product sales counters, and deletes
// the originating basket, all in one transaction. A delivery that finds the
// order already received or terminal reports applied=false and changes
// nothing.
func (r *OrderRepository) MarkPaymentReceived(ctx context.Context, update repositories.PaymentReceivedUpdate) (bool, error) {
	const op = "orders.mark_payment_received"

	applied := false
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, paid_at = ?
			 WHERE id = ? AND status IN (?, ?)`,
			string(domain.OrderStatusPaymentReceived), update.Now,
			update.OrderID,
			string(domain.OrderStatusPending), string(domain.OrderStatusPaymentFailed))
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "update status", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "update status", err)
		}
		if affected == 0 {
			return r.requireOrder(ctx, tx, op, update.OrderID)
		}
		applied = true

		// Aggregate per product first: a multi-table UPDATE touches each
		// matched products row once, so two lines for the same product
		// would otherwise count only one of them.
		if _, err := tx.ExecContext(ctx,
			`UPDATE products p
			 INNER JOIN (
				SELECT product_id, SUM(quantity) AS quantity
				FROM order_lines WHERE order_id = ?
				GROUP BY product_id
			 ) l ON l.product_id = p.id
			 SET p.sales_count = p.sales_count + l.quantity`, update.OrderID); err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "increment sales", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE b FROM baskets b
			 INNER JOIN orders o ON o.intent_id = b.intent_id
			 WHERE o.id = ?`, update.OrderID); err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "delete basket", err)
		}
		return nil
	})
	if err != nil {
		return false, asRepoError(op, err)
	}
	return applied, nil
}

// MarkPaymentFailed moves a Pending order to PaymentFailed and returns each
// line's quantity to live stock. Orders in any other state are left untouched
// with applied=false.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, update repositories.PaymentFailedUpdate) (bool, error) {
	const op = "orders.mark_payment_failed"

	applied := false
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ?
			 WHERE id = ? AND status = ?`,
			string(domain.OrderStatusPaymentFailed),
			update.OrderID, string(domain.OrderStatusPending))
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "update status", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "update status", err)
		}
		if affected == 0 {
			return r.requireOrder(ctx, tx, op, update.OrderID)
		}
		applied = true

		if _, err := tx.ExecContext(ctx, restockOrderLines, update.OrderID); err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "restore stock", err)
		}
		return nil
	})
	if err != nil {
		return false, asRepoError(op, err)
	}
	return applied, nil
}

// MarkReversed records the terminal Cancelled or Refunded state together with
// the gateway's refund reference. Stock is restored only when the reversal
// interrupts a Pending or PaymentFailed order; a refunded settled order has
// already shipped its reservation into sales.
func (r *OrderRepository) MarkReversed(ctx context.Context, update repositories.ReversalUpdate) (bool, error) {
	const op = "orders.mark_reversed"

	if update.Status != domain.OrderStatusCancelled && update.Status != domain.OrderStatusRefunded {
		return false, repositories.NewError(op, repositories.ErrorCodeConflict,
			fmt.Sprintf("status %q is not a reversal state", update.Status), nil)
	}

	applied := false
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var prior string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = ? FOR UPDATE`, update.OrderID).Scan(&prior)
		if errors.Is(err, sql.ErrNoRows) {
			return repositories.NewError(op, repositories.ErrorCodeNotFound, "order not found", err)
		}
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "lock order", err)
		}
		if domain.OrderStatus(prior).Terminal() {
			return nil
		}

		var refundRef any
		if update.RefundRef != "" {
			refundRef = update.RefundRef
		}
		var cancelledAt, refundedAt any
		if update.Status == domain.OrderStatusCancelled {
			cancelledAt = update.Now
		} else {
			refundedAt = update.Now
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, refund_ref = ?, cancelled_at = ?, refunded_at = ?
			 WHERE id = ?`,
			string(update.Status), refundRef, cancelledAt, refundedAt, update.OrderID); err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "update status", err)
		}
		applied = true

		if prior == string(domain.OrderStatusPending) || prior == string(domain.OrderStatusPaymentFailed) {
			if _, err := tx.ExecContext(ctx, restockOrderLines, update.OrderID); err != nil {
				return repositories.NewError(op, repositories.ErrorCodeUnknown, "restore stock", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, asRepoError(op, err)
	}
	return applied, nil
}

// requireOrder distinguishes a guarded no-op update from a missing row.
func (r *OrderRepository) requireOrder(ctx context.Context, tx *sql.Tx, op, orderID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.NewError(op, repositories.ErrorCodeNotFound, "order not found", err)
	}
	if err != nil {
		return repositories.NewError(op, repositories.ErrorCodeUnknown, "check order", err)
	}
	return nil
}

func asRepoError(op string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}
	return repositories.NewError(op, repositories.ErrorCodeUnavailable, "transaction failed", err)
}
