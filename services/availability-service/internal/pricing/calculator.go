package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

// RuleStore answers which custom pricing rules are active for a slot on a date.
type RuleStore interface {
	FindActivePricingRules(ctx context.Context, chaletID, slotID uuid.UUID, date time.Time) ([]model.PricingRule, error)
}

// NightPrice is the resolved price of one slot on one date.
type NightPrice struct {
	Date       time.Time `json:"date"`
	IsWeekend  bool      `json:"is_weekend"`
	Base       float64   `json:"base"`
	Adjustment float64   `json:"adjustment"`
	Price      float64   `json:"price"`
}

// RangePrice is the summed price over every night in [start, end).
type RangePrice struct {
	Nights   int          `json:"nights"`
	Total    float64      `json:"total"`
	PerNight []NightPrice `json:"per_night"`
}

// Calculator resolves date-sensitive prices: weekday/weekend base rate, the
// latest-created active custom rule overlapping the date, and an injected
// time-bounded promotion. Pure given its inputs; the clock is injected so the
// promotion cutoff is testable.
type Calculator struct {
	store RuleStore
	promo Promotion
	now   func() time.Time
}

func NewCalculator(store RuleStore, promo Promotion, now func() time.Time) *Calculator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Calculator{store: store, promo: promo, now: now}
}

// PriceFor resolves the price of a slot on a single date. Adjustments may be
// negative; only the resulting price is floored at zero.
func (c *Calculator) PriceFor(ctx context.Context, chalet model.Chalet, slot model.TimeSlot, date time.Time) (NightPrice, error) {
	date = availability.DateOnly(date)
	isWeekend := chalet.Weekend().Contains(model.WeekdayOf(date))
	base := slot.WeekdayPrice
	if isWeekend {
		base = slot.WeekendPrice
	}

	rules, err := c.store.FindActivePricingRules(ctx, chalet.ID, slot.ID, date)
	if err != nil {
		return NightPrice{}, fmt.Errorf("find pricing rules: %w", err)
	}
	adjustment := 0.0
	if rule := latestApplicable(rules, date); rule != nil {
		adjustment = rule.Adjustment
	}

	price := base + adjustment
	if price < 0 {
		price = 0
	}
	return NightPrice{Date: date, IsWeekend: isWeekend, Base: base, Adjustment: adjustment, Price: price}, nil
}

// RangePrice sums PriceFor across every night in [start, end).
func (c *Calculator) RangePrice(ctx context.Context, chalet model.Chalet, slot model.TimeSlot, start, end time.Time) (RangePrice, error) {
	nights := availability.NightsOf(start, end)
	out := RangePrice{Nights: len(nights), PerNight: make([]NightPrice, 0, len(nights))}
	for _, night := range nights {
		np, err := c.PriceFor(ctx, chalet, slot, night)
		if err != nil {
			return RangePrice{}, err
		}
		out.PerNight = append(out.PerNight, np)
		out.Total += np.Price
	}
	return out, nil
}

// Quote applies the promotion, if currently active, to a summed total.
func (c *Calculator) Quote(total float64) Quote {
	return c.promo.Apply(total, c.now())
}

// latestApplicable picks the most recently created active rule containing the
// date; overlapping rules tie-break on creation time (latest wins).
func latestApplicable(rules []model.PricingRule, date time.Time) *model.PricingRule {
	var winner *model.PricingRule
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || !r.AppliesOn(date) {
			continue
		}
		if winner == nil || r.CreatedAt.After(winner.CreatedAt) {
			winner = r
		}
	}
	return winner
}
