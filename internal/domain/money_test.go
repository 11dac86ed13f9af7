package domain

import "testing"

func TestNormalizeCents(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want int64
	}{
		{"already cents", 1500, 1500},
		{"euros with decimals", 19.99, 1999},
		{"whole euros", 42, 4200},
		{"threshold boundary stays euros", 1000, 100000},
		{"just above threshold is cents", 1000.5, 1001},
		{"rounding half up", 0.005, 1},
		{"zero", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCents(tc.raw); got != tc.want {
				t.Fatalf("NormalizeCents(%v) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

func TestEffectiveUnitCentsPrefersPromoPrice(t *testing.T) {
	promo := 9.99
	pct := 50.0
	p := Product{RawPrice: 19.99, RawPromoPrice: &promo, DiscountPercent: &pct}
	if got := EffectiveUnitCents(p); got != 999 {
		t.Fatalf("expected promo price 999, got %d", got)
	}
}

func TestEffectiveUnitCentsAppliesPercentageDiscount(t *testing.T) {
	cases := []struct {
		name string
		pct  float64
		want int64
	}{
		{"regular discount", 25, 1500},
		{"clamped above hundred", 150, 0},
		{"clamped below zero", -10, 2000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pct := tc.pct
			p := Product{RawPrice: 20, DiscountPercent: &pct}
			if got := EffectiveUnitCents(p); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestEffectiveUnitCentsFallsBackToListPrice(t *testing.T) {
	p := Product{RawPrice: 12.5}
	if got := EffectiveUnitCents(p); got != 1250 {
		t.Fatalf("expected 1250, got %d", got)
	}
}

func TestFormatEuros(t *testing.T) {
	if got := FormatEuros(600000); got != "6000.00 EUR" {
		t.Fatalf("unexpected formatting %q", got)
	}
}
