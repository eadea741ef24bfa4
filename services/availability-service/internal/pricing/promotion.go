package pricing

import "time"

// Promotion is a flat percentage discount applied to summed totals while the
// current time is before EffectiveUntil. Injected configuration, not a
// hardcoded cutoff, so it can be evaluated against a fake clock.
type Promotion struct {
	Percentage     float64
	EffectiveUntil time.Time
}

func (p Promotion) ActiveAt(now time.Time) bool {
	return p.Percentage > 0 && !p.EffectiveUntil.IsZero() && now.Before(p.EffectiveUntil)
}

// Quote is a priced total with the promotion, if any, broken out.
type Quote struct {
	FinalPrice         float64 `json:"final_price"`
	OriginalPrice      float64 `json:"original_price"`
	DiscountAmount     float64 `json:"discount_amount"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

// Apply discounts the whole total (not per night). Inactive promotions pass
// the total through unchanged.
func (p Promotion) Apply(total float64, now time.Time) Quote {
	if !p.ActiveAt(now) {
		return Quote{FinalPrice: total, OriginalPrice: total}
	}
	discount := total * p.Percentage / 100
	return Quote{
		FinalPrice:         total - discount,
		OriginalPrice:      total,
		DiscountAmount:     discount,
		DiscountPercentage: p.Percentage,
	}
}
