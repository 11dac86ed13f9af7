package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maisonceleste/api/internal/domain"
)

var testDelivery = DeliveryPolicy{FreeThresholdCents: 10_000, FeeCents: 490}

func floatPtr(v float64) *float64 { return &v }

func priceOrFatal(t *testing.T, basket domain.Basket) OrderTotals {
	t.Helper()
	totals, err := PriceBasket(context.Background(), basket, testDelivery, nil)
	if err != nil {
		t.Fatalf("price basket: %v", err)
	}
	return totals
}

type stubDiscountCalculator struct {
	computeDiscount func(ctx context.Context, coupon Coupon, subtotalCents int64) (int64, error)
}

func (s stubDiscountCalculator) ComputeDiscount(ctx context.Context, coupon Coupon, subtotalCents int64) (int64, error) {
	return s.computeDiscount(ctx, coupon, subtotalCents)
}

func TestPriceBasketSubtotalAndProductDiscount(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{
				Product:  domain.Product{ID: 1, RawPrice: 40.00, RawPromoPrice: floatPtr(30.00)},
				Quantity: 2,
			},
			{
				Product:  domain.Product{ID: 2, RawPrice: 15.50},
				Quantity: 1,
			},
		},
	}

	totals := priceOrFatal(t, basket)
	if totals.SubtotalCents != 9550 {
		t.Fatalf("expected subtotal 9550, got %d", totals.SubtotalCents)
	}
	if totals.ProductDiscountCents != 2000 {
		t.Fatalf("expected product discount 2000, got %d", totals.ProductDiscountCents)
	}
	if totals.DeliveryFeeCents != 490 {
		t.Fatalf("expected delivery fee 490, got %d", totals.DeliveryFeeCents)
	}
	if totals.TotalCents != 9550-2000+490 {
		t.Fatalf("unexpected total %d", totals.TotalCents)
	}
}

func TestPriceBasketFreeDeliveryAtThreshold(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 100.00}, Quantity: 1},
		},
	}

	totals := priceOrFatal(t, basket)
	if totals.DeliveryFeeCents != 0 {
		t.Fatalf("expected free delivery at threshold, got fee %d", totals.DeliveryFeeCents)
	}
	if totals.TotalCents != 10_000 {
		t.Fatalf("unexpected total %d", totals.TotalCents)
	}
}

func TestPriceBasketDiscountDecidesDeliveryFee(t *testing.T) {
	// 105.00 list drops to 94.50 after a 10% coupon, back under the
	// free-delivery threshold.
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 105.00}, Quantity: 1},
		},
		Coupon: &domain.Coupon{Code: "TEN", Kind: domain.CouponKindPercent, Value: 10},
	}

	totals := priceOrFatal(t, basket)
	if totals.DiscountCents != 1050 {
		t.Fatalf("expected coupon discount 1050, got %d", totals.DiscountCents)
	}
	if totals.DeliveryFeeCents != 490 {
		t.Fatalf("expected delivery fee after discount, got %d", totals.DeliveryFeeCents)
	}
	if totals.TotalCents != 10500-1050+490 {
		t.Fatalf("unexpected total %d", totals.TotalCents)
	}
}

func TestPriceBasketFixedCouponClampedToGoodsTotal(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 5.00}, Quantity: 1},
		},
		Coupon: &domain.Coupon{Code: "BIG", Kind: domain.CouponKindFixed, Value: 99_999},
	}

	totals := priceOrFatal(t, basket)
	if totals.DiscountCents != 500 {
		t.Fatalf("expected discount clamped to 500, got %d", totals.DiscountCents)
	}
	if totals.TotalCents != 490 {
		t.Fatalf("expected total to be delivery fee only, got %d", totals.TotalCents)
	}
}

func TestPriceBasketSkipsZeroQuantityLines(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 10.00}, Quantity: 0},
			{Product: domain.Product{ID: 2, RawPrice: 20.00}, Quantity: 1},
		},
	}

	totals := priceOrFatal(t, basket)
	if totals.SubtotalCents != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", totals.SubtotalCents)
	}
}

func TestPriceBasketUsesProvidedDiscountCalculator(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 105.00}, Quantity: 1},
		},
		Coupon: &domain.Coupon{Code: "CAMPAIGN", Kind: domain.CouponKindPercent, Value: 10},
	}

	var gotCode string
	var gotSubtotal int64
	calc := stubDiscountCalculator{
		computeDiscount: func(_ context.Context, coupon Coupon, subtotalCents int64) (int64, error) {
			gotCode = coupon.Code
			gotSubtotal = subtotalCents
			return 2000, nil
		},
	}

	totals, err := PriceBasket(context.Background(), basket, testDelivery, calc)
	if err != nil {
		t.Fatalf("price basket: %v", err)
	}
	if gotCode != "CAMPAIGN" || gotSubtotal != 10500 {
		t.Fatalf("calculator saw coupon %q subtotal %d", gotCode, gotSubtotal)
	}
	if totals.DiscountCents != 2000 {
		t.Fatalf("expected calculator discount 2000, got %d", totals.DiscountCents)
	}
	if totals.TotalCents != 10500-2000+490 {
		t.Fatalf("unexpected total %d", totals.TotalCents)
	}
}

func TestPriceBasketClampsCalculatorResult(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 5.00}, Quantity: 1},
		},
		Coupon: &domain.Coupon{Code: "WILD", Kind: domain.CouponKindFixed, Value: 1},
	}
	calc := stubDiscountCalculator{
		computeDiscount: func(context.Context, Coupon, int64) (int64, error) {
			return 99_999, nil
		},
	}

	totals, err := PriceBasket(context.Background(), basket, testDelivery, calc)
	if err != nil {
		t.Fatalf("price basket: %v", err)
	}
	if totals.DiscountCents != 500 {
		t.Fatalf("expected discount clamped to goods total, got %d", totals.DiscountCents)
	}
}

func TestPriceBasketPropagatesCalculatorError(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{Product: domain.Product{ID: 1, RawPrice: 10.00}, Quantity: 1},
		},
		Coupon: &domain.Coupon{Code: "DOWN", Kind: domain.CouponKindPercent, Value: 5},
	}
	wantErr := errors.New("campaign service unavailable")
	calc := stubDiscountCalculator{
		computeDiscount: func(context.Context, Coupon, int64) (int64, error) {
			return 0, wantErr
		},
	}

	_, err := PriceBasket(context.Background(), basket, testDelivery, calc)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected calculator error, got %v", err)
	}
}

func TestCheckCeiling(t *testing.T) {
	if err := checkCeiling(500_000); err != nil {
		t.Fatalf("ceiling itself must pass, got %v", err)
	}

	err := checkCeiling(500_001)
	if !errors.Is(err, ErrAmountAboveCeiling) {
		t.Fatalf("expected ErrAmountAboveCeiling, got %v", err)
	}
	msg := err.Error()
	if want := "5000.01 EUR"; !strings.Contains(msg, want) {
		t.Fatalf("expected message to carry %q, got %q", want, msg)
	}
	if want := "5000.00 EUR"; !strings.Contains(msg, want) {
		t.Fatalf("expected message to carry %q, got %q", want, msg)
	}
}

func TestBuildOrderLinesFreezesEffectivePrice(t *testing.T) {
	basket := domain.Basket{
		Lines: []domain.BasketLine{
			{
				Product: domain.Product{
					ID:              7,
					Name:            "Carafe",
					PictureURL:      "https://img.example/carafe.jpg",
					RawPrice:        60.00,
					DiscountPercent: floatPtr(25),
				},
				Quantity: 2,
			},
			{Product: domain.Product{ID: 8, RawPrice: 5.00}, Quantity: 0},
		},
	}

	lines := buildOrderLines(basket)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line.ProductID != 7 || line.ProductName != "Carafe" {
		t.Fatalf("unexpected snapshot %#v", line)
	}
	if line.UnitCents != 4500 {
		t.Fatalf("expected discounted unit 4500, got %d", line.UnitCents)
	}
	if line.TotalCents() != 9000 {
		t.Fatalf("expected line total 9000, got %d", line.TotalCents())
	}
}
