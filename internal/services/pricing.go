package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/maisonceleste/api/internal/domain"
)

// gatewayCeilingCents is the largest single charge the gateway accepts.
const gatewayCeilingCents int64 = 500_000

// ErrAmountAboveCeiling is returned when a basket prices above the gateway's
// per-charge limit. The message carries formatted euro amounts so handlers can
// surface it to buyers verbatim.
var ErrAmountAboveCeiling = errors.New("pricing: amount above gateway ceiling")

// DeliveryPolicy fixes the delivery fee schedule. Orders whose discounted
// goods total reaches FreeThresholdCents ship free; everything below pays the
// flat FeeCents.
type DeliveryPolicy struct {
	FreeThresholdCents int64
	FeeCents           int64
}

// PriceBasket computes the full totals breakdown for a basket, delegating
// coupon valuation to the calculator. Lines with a non-positive quantity are
// skipped rather than rejected; carts routinely carry zeroed lines after a
// removal.
func PriceBasket(ctx context.Context, basket domain.Basket, policy DeliveryPolicy, discounts DiscountCalculator) (OrderTotals, error) {
	var subtotal, productDiscount int64
	for _, line := range basket.Lines {
		if line.Quantity <= 0 {
			continue
		}
		qty := int64(line.Quantity)
		list := domain.NormalizeCents(line.Product.RawPrice)
		effective := domain.EffectiveUnitCents(line.Product)
		subtotal += list * qty
		if effective < list {
			productDiscount += (list - effective) * qty
		}
	}

	var discount int64
	if basket.Coupon != nil {
		if discounts == nil {
			discounts = NewCouponDiscountCalculator()
		}
		value, err := discounts.ComputeDiscount(ctx, *basket.Coupon, subtotal-productDiscount)
		if err != nil {
			return OrderTotals{}, fmt.Errorf("compute coupon discount: %w", err)
		}
		discount = clampDiscount(value, subtotal-productDiscount)
	}

	goods := subtotal - productDiscount - discount
	if goods < 0 {
		goods = 0
	}

	var fee int64
	if goods < policy.FreeThresholdCents {
		fee = policy.FeeCents
	}

	totals := OrderTotals{
		SubtotalCents:        subtotal,
		ProductDiscountCents: productDiscount,
		DiscountCents:        discount,
		DeliveryFeeCents:     fee,
	}
	totals.TotalCents = goods + fee
	return totals, nil
}

// clampDiscount keeps any calculator result inside [0, goods].
func clampDiscount(discount, goodsCents int64) int64 {
	if discount < 0 || goodsCents <= 0 {
		return 0
	}
	if discount > goodsCents {
		return goodsCents
	}
	return discount
}

// NewCouponDiscountCalculator returns the stock calculator: percent coupons
// clamped to [0,100] and rounded, fixed coupons capped at the goods total.
func NewCouponDiscountCalculator() DiscountCalculator {
	return couponDiscountCalculator{}
}

type couponDiscountCalculator struct{}

func (couponDiscountCalculator) ComputeDiscount(_ context.Context, coupon domain.Coupon, subtotalCents int64) (int64, error) {
	if subtotalCents <= 0 {
		return 0, nil
	}

	switch coupon.Kind {
	case domain.CouponKindPercent:
		pct := coupon.Value
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return int64(math.Round(float64(subtotalCents) * float64(pct) / 100)), nil
	case domain.CouponKindFixed:
		return clampDiscount(coupon.Value, subtotalCents), nil
	default:
		return 0, nil
	}
}

// checkCeiling rejects totals the gateway would refuse, phrasing the error
// for direct display to the buyer.
func checkCeiling(totalCents int64) error {
	if totalCents <= gatewayCeilingCents {
		return nil
	}
	return fmt.Errorf("%w: order total %s exceeds the %s payment limit, please split your purchase",
		ErrAmountAboveCeiling,
		domain.FormatEuros(totalCents),
		domain.FormatEuros(gatewayCeilingCents))
}

// buildOrderLines freezes basket lines into order snapshots at the current
// effective unit price.
func buildOrderLines(basket domain.Basket) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(basket.Lines))
	for _, line := range basket.Lines {
		if line.Quantity <= 0 {
			continue
		}
		lines = append(lines, domain.OrderLine{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			PictureURL:  line.Product.PictureURL,
			UnitCents:   domain.EffectiveUnitCents(line.Product),
			Quantity:    line.Quantity,
		})
	}
	return lines
}
