package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuleStore struct {
	rules []model.PricingRule
}

func (f *fakeRuleStore) FindActivePricingRules(_ context.Context, _, _ uuid.UUID, date time.Time) ([]model.PricingRule, error) {
	var out []model.PricingRule
	for _, r := range f.rules {
		if r.IsActive && r.AppliesOn(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func testChalet() model.Chalet {
	return model.Chalet{ID: uuid.New(), Name: "cedar lodge", IsActive: true}
}

func testSlot() model.TimeSlot {
	return model.TimeSlot{
		ID:           uuid.New(),
		StartTime:    "15:00",
		EndTime:      "12:00",
		IsOvernight:  true,
		WeekdayPrice: 100,
		WeekendPrice: 170,
		IsActive:     true,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPriceFor_WeekendRate(t *testing.T) {
	calc := NewCalculator(&fakeRuleStore{}, Promotion{}, nil)
	chalet := testChalet()
	slot := testSlot()

	// 2026-03-13 is a Friday, part of the default Fri/Sat/Sun weekend.
	friday := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	np, err := calc.PriceFor(context.Background(), chalet, slot, friday)
	require.NoError(t, err)
	assert.True(t, np.IsWeekend)
	assert.Equal(t, 170.0, np.Base)
	assert.Equal(t, 170.0, np.Price)

	tuesday := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	np, err = calc.PriceFor(context.Background(), chalet, slot, tuesday)
	require.NoError(t, err)
	assert.False(t, np.IsWeekend)
	assert.Equal(t, 100.0, np.Base)
}

func TestPriceFor_CustomWeekendDays(t *testing.T) {
	calc := NewCalculator(&fakeRuleStore{}, Promotion{}, nil)
	chalet := testChalet()
	chalet.WeekendDays = model.NewWeekdaySet(model.Saturday)

	friday := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	np, err := calc.PriceFor(context.Background(), chalet, testSlot(), friday)
	require.NoError(t, err)
	assert.False(t, np.IsWeekend, "friday is a weekday under a saturday-only weekend")
}

func TestPriceFor_LatestRuleWins(t *testing.T) {
	chalet := testChalet()
	slot := testSlot()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	span := func(adj float64, created time.Time) model.PricingRule {
		return model.PricingRule{
			ID:         uuid.New(),
			ChaletID:   chalet.ID,
			SlotID:     slot.ID,
			StartDate:  date.AddDate(0, 0, -5),
			EndDate:    date.AddDate(0, 0, 5),
			Adjustment: adj,
			IsActive:   true,
			CreatedAt:  created,
		}
	}
	store := &fakeRuleStore{rules: []model.PricingRule{
		span(30, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		span(50, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
	}}

	calc := NewCalculator(store, Promotion{}, nil)
	np, err := calc.PriceFor(context.Background(), chalet, slot, date)
	require.NoError(t, err)
	assert.Equal(t, 50.0, np.Adjustment, "latest-created rule must win")
	assert.Equal(t, 150.0, np.Price)
}

func TestPriceFor_NegativeAdjustmentFlooredAtZero(t *testing.T) {
	chalet := testChalet()
	slot := testSlot()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeRuleStore{rules: []model.PricingRule{{
		ID:         uuid.New(),
		StartDate:  date,
		EndDate:    date,
		Adjustment: -130,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}}}

	calc := NewCalculator(store, Promotion{}, nil)
	np, err := calc.PriceFor(context.Background(), chalet, slot, date)
	require.NoError(t, err)
	assert.Equal(t, -130.0, np.Adjustment, "the markdown itself is kept")
	assert.Equal(t, 0.0, np.Price, "only the final price is floored")
}

func TestPriceFor_Deterministic(t *testing.T) {
	calc := NewCalculator(&fakeRuleStore{}, Promotion{}, nil)
	chalet := testChalet()
	slot := testSlot()
	date := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

	first, err := calc.PriceFor(context.Background(), chalet, slot, date)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := calc.PriceFor(context.Background(), chalet, slot, date)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRangePrice_MixedWeekdays(t *testing.T) {
	calc := NewCalculator(&fakeRuleStore{}, Promotion{}, nil)
	chalet := testChalet()
	slot := testSlot()

	// Thu 12th (weekday 100) + Fri 13th (weekend 170): two nights, checkout on
	// the 14th.
	start := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	rp, err := calc.RangePrice(context.Background(), chalet, slot, start, end)
	require.NoError(t, err)
	require.Equal(t, 2, rp.Nights)
	assert.Equal(t, 270.0, rp.Total)
	assert.False(t, rp.PerNight[0].IsWeekend)
	assert.True(t, rp.PerNight[1].IsWeekend)
}

func TestQuote_PromotionWindow(t *testing.T) {
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	promo := Promotion{Percentage: 10, EffectiveUntil: cutoff}

	before := NewCalculator(&fakeRuleStore{}, promo, fixedClock(cutoff.Add(-time.Hour)))
	q := before.Quote(200)
	assert.Equal(t, 180.0, q.FinalPrice)
	assert.Equal(t, 200.0, q.OriginalPrice)
	assert.Equal(t, 20.0, q.DiscountAmount)
	assert.Equal(t, 10.0, q.DiscountPercentage)

	after := NewCalculator(&fakeRuleStore{}, promo, fixedClock(cutoff.Add(time.Hour)))
	q = after.Quote(200)
	assert.Equal(t, 200.0, q.FinalPrice)
	assert.Zero(t, q.DiscountAmount)
}

func TestPromotion_ZeroValueInactive(t *testing.T) {
	var promo Promotion
	assert.False(t, promo.ActiveAt(time.Now()))
	q := promo.Apply(120, time.Now())
	assert.Equal(t, 120.0, q.FinalPrice)
}
