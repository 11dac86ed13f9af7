package domain

import (
	"fmt"
	"math"
)

// legacyCentsThreshold separates legacy rows storing euros from rows already
// storing integer cents. Values strictly greater than the threshold are
// treated as cents; anything else is euros with up to two decimals.
//
// This heuristic is a compatibility shim until the catalog is migrated to a
// single canonical unit. A genuinely expensive item priced at or below 1000
// euro-units is a known false negative; the boundary is pinned by tests so a
// future migration changes it deliberately rather than by accident.
const legacyCentsThreshold = 1000

// NormalizeCents converts a stored monetary value in legacy mixed units into
// canonical integer cents.
func NormalizeCents(raw float64) int64 {
	if raw > legacyCentsThreshold {
		return int64(math.Round(raw))
	}
	return int64(math.Round(raw * 100))
}

// EffectiveUnitCents resolves the unit price charged for a product:
// promotional price when set, otherwise the list price reduced by the
// percentage discount field when set, otherwise the list price. The result is
// normalised to cents.
func EffectiveUnitCents(p Product) int64 {
	if p.RawPromoPrice != nil {
		return NormalizeCents(*p.RawPromoPrice)
	}
	price := NormalizeCents(p.RawPrice)
	if p.DiscountPercent != nil {
		pct := clampPercent(*p.DiscountPercent)
		price = int64(math.Round(float64(price) * (100 - pct) / 100))
	}
	return price
}

// FormatEuros renders a cent amount as a euro string for operator-facing
// diagnostics.
func FormatEuros(cents int64) string {
	return fmt.Sprintf("%.2f EUR", float64(cents)/100)
}

func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
