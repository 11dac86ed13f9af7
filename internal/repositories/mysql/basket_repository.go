package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/maisonceleste/api/internal/domain"
	"github.com/maisonceleste/api/internal/repositories"
)

// BasketRepository reads and mutates basket rows. Baskets reference live
// catalog products; FindByID resolves those references so callers see current
// prices and stock.
type BasketRepository struct {
	db *sql.DB
}

// NewBasketRepository builds a basket repository on the shared pool.
func NewBasketRepository(provider *Provider) (*BasketRepository, error) {
	if provider == nil || provider.DB() == nil {
		return nil, errors.New("mysql: basket repository requires a provider")
	}
	return &BasketRepository{db: provider.DB()}, nil
}

var _ repositories.BasketRepository = (*BasketRepository)(nil)

// FindByID returns the basket with product references resolved.
func (r *BasketRepository) FindByID(ctx context.Context, basketID string) (domain.Basket, error) {
	const op = "baskets.find"

	var (
		basket       domain.Basket
		intentID     sql.NullString
		clientSecret sql.NullString
		couponCode   sql.NullString
		couponKind   sql.NullString
		couponValue  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, buyer_email, intent_id, client_secret,
		        coupon_code, coupon_kind, coupon_value, created_at
		 FROM baskets WHERE id = ?`, basketID).Scan(
		&basket.ID, &basket.BuyerEmail, &intentID, &clientSecret,
		&couponCode, &couponKind, &couponValue, &basket.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Basket{}, repositories.NewError(op, repositories.ErrorCodeNotFound, "basket not found", err)
	}
	if err != nil {
		return domain.Basket{}, repositories.NewError(op, repositories.ErrorCodeUnavailable, "query basket", err)
	}

	basket.IntentID = intentID.String
	basket.ClientSecret = clientSecret.String
	if couponCode.Valid && couponKind.Valid {
		basket.Coupon = &domain.Coupon{
			Code:  couponCode.String,
			Kind:  domain.CouponKind(couponKind.String),
			Value: couponValue.Int64,
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT l.quantity,
		        p.id, p.name, p.picture_url,
		        p.raw_price, p.promo_price, p.discount_percent,
		        p.quantity_in_stock, p.sales_count
		 FROM basket_lines l
		 INNER JOIN products p ON p.id = l.product_id
		 WHERE l.basket_id = ?
		 ORDER BY l.id`, basketID)
	if err != nil {
		return domain.Basket{}, repositories.NewError(op, repositories.ErrorCodeUnavailable, "query basket lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line     domain.BasketLine
			promo    sql.NullFloat64
			discount sql.NullFloat64
		)
		if err := rows.Scan(&line.Quantity,
			&line.Product.ID, &line.Product.Name, &line.Product.PictureURL,
			&line.Product.RawPrice, &promo, &discount,
			&line.Product.QuantityInStock, &line.Product.SalesCount); err != nil {
			return domain.Basket{}, repositories.NewError(op, repositories.ErrorCodeUnknown, "scan basket line", err)
		}
		if promo.Valid {
			v := promo.Float64
			line.Product.RawPromoPrice = &v
		}
		if discount.Valid {
			v := discount.Float64
			line.Product.DiscountPercent = &v
		}
		basket.Lines = append(basket.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Basket{}, repositories.NewError(op, repositories.ErrorCodeUnavailable, "iterate basket lines", err)
	}
	return basket, nil
}

// AttachIntent records the payment intent created or updated for the basket.
func (r *BasketRepository) AttachIntent(ctx context.Context, basketID, intentID, clientSecret string) error {
	const op = "baskets.attach_intent"

	res, err := r.db.ExecContext(ctx,
		`UPDATE baskets SET intent_id = ?, client_secret = ? WHERE id = ?`,
		intentID, clientSecret, basketID)
	if err != nil {
		return repositories.NewError(op, repositories.ErrorCodeUnavailable, "update basket", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return repositories.NewError(op, repositories.ErrorCodeUnknown, "update basket", err)
	}
	if affected == 0 {
		// MySQL reports zero rows both for a missing basket and for a
		// same-values rewrite; only the former is an error.
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM baskets WHERE id = ?`, basketID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return repositories.NewError(op, repositories.ErrorCodeNotFound, "basket not found", err)
		}
		if err != nil {
			return repositories.NewError(op, repositories.ErrorCodeUnknown, "check basket", err)
		}
	}
	return nil
}

// Delete removes the basket and its lines. Deleting a basket that no longer
// exists is a no-op.
func (r *BasketRepository) Delete(ctx context.Context, basketID string) error {
	const op = "baskets.delete"

	if _, err := r.db.ExecContext(ctx, `DELETE FROM baskets WHERE id = ?`, basketID); err != nil {
		return repositories.NewError(op, repositories.ErrorCodeUnavailable, "delete basket", err)
	}
	return nil
}
