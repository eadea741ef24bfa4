package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeStore is an in-memory Store for orchestrator tests.
type fakeStore struct {
	chalets  map[uuid.UUID]model.Chalet
	slots    []model.TimeSlot
	blocks   []model.BlockedDate
	bookings []model.Booking
	rules    []model.PricingRule
}

func newFakeStore() *fakeStore {
	return &fakeStore{chalets: make(map[uuid.UUID]model.Chalet)}
}

func (f *fakeStore) GetChalet(_ context.Context, id uuid.UUID) (model.Chalet, error) {
	c, ok := f.chalets[id]
	if !ok {
		return model.Chalet{}, errNoRows
	}
	return c, nil
}

func (f *fakeStore) GetSlot(_ context.Context, slotID uuid.UUID) (model.TimeSlot, error) {
	for _, s := range f.slots {
		if s.ID == slotID {
			return s, nil
		}
	}
	return model.TimeSlot{}, errNoRows
}

func (f *fakeStore) FindActiveSlots(_ context.Context, chaletID uuid.UUID, mode *model.BookingMode) ([]model.TimeSlot, error) {
	var out []model.TimeSlot
	for _, s := range f.slots {
		if s.ChaletID != chaletID || !s.IsActive {
			continue
		}
		if mode != nil && s.IsOvernight != (*mode == model.ModeOvernight) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) FindBlockedDates(_ context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.BlockedDate, error) {
	var out []model.BlockedDate
	for _, b := range f.blocks {
		if b.ChaletID == chaletID && !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) FindBookingsOverlapping(_ context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, k := range f.bookings {
		if k.ChaletID == chaletID && k.StartAt.Before(to) && k.EndAt.After(from) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) FindActivePricingRules(_ context.Context, chaletID, slotID uuid.UUID, date time.Time) ([]model.PricingRule, error) {
	var out []model.PricingRule
	for _, r := range f.rules {
		if r.ChaletID == chaletID && r.SlotID == slotID && r.IsActive && r.AppliesOn(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// errNoRows is the driver's not-found sentinel, so storage.IsNotFound
// recognizes the fake's misses like the real store's.
var errNoRows = pgx.ErrNoRows

func newTestService(store *fakeStore) *AvailabilityService {
	return New(store, nil, testLogger, Config{
		BookingGraceMinutes: 15,
		Now:                 func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func seedChalet(store *fakeStore) model.Chalet {
	chalet := model.Chalet{ID: uuid.New(), Name: "pine ridge", CommissionRate: 0.1, IsActive: true}
	store.chalets[chalet.ID] = chalet
	return chalet
}

func seedDaySlots(store *fakeStore, chaletID uuid.UUID) (model.TimeSlot, model.TimeSlot) {
	morning := model.TimeSlot{
		ID: uuid.New(), ChaletID: chaletID, Name: "morning",
		StartTime: "08:00", EndTime: "14:00", DurationHours: 6,
		WeekdayPrice: 80, WeekendPrice: 120, IsActive: true,
	}
	evening := model.TimeSlot{
		ID: uuid.New(), ChaletID: chaletID, Name: "evening",
		StartTime: "14:00", EndTime: "20:00", DurationHours: 6,
		WeekdayPrice: 100, WeekendPrice: 150, IsActive: true,
	}
	store.slots = append(store.slots, morning, evening)
	return morning, evening
}

func seedOvernightSlot(store *fakeStore, chaletID uuid.UUID) model.TimeSlot {
	slot := model.TimeSlot{
		ID: uuid.New(), ChaletID: chaletID, Name: "overnight",
		StartTime: "15:00", EndTime: "12:00", IsOvernight: true,
		WeekdayPrice: 100, WeekendPrice: 170, IsActive: true,
	}
	store.slots = append(store.slots, slot)
	return slot
}

func errorCodes(errs []Error) []ErrorCode {
	codes := make([]ErrorCode, 0, len(errs))
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	return codes
}

func TestCheckAvailability_ValidationErrors(t *testing.T) {
	svc := newTestService(newFakeStore())

	cases := []struct {
		name string
		req  CheckRequest
		code ErrorCode
	}{
		{"bad chalet id", CheckRequest{ChaletID: "nope", StartDate: "2026-03-10", Mode: "day_use"}, ErrInvalidChalet},
		{"bad mode", CheckRequest{ChaletID: uuid.NewString(), StartDate: "2026-03-10", Mode: "weekly"}, ErrInvalidMode},
		{"bad date", CheckRequest{ChaletID: uuid.NewString(), StartDate: "10/03/2026", Mode: "day_use"}, ErrInvalidDate},
		{"past date", CheckRequest{ChaletID: uuid.NewString(), StartDate: "2026-02-20", Mode: "day_use"}, ErrDateInPast},
		{"missing end", CheckRequest{ChaletID: uuid.NewString(), StartDate: "2026-03-10", Mode: "overnight"}, ErrMissingEndDate},
		{"end before start", CheckRequest{ChaletID: uuid.NewString(), StartDate: "2026-03-10", EndDate: "2026-03-10", Mode: "overnight"}, ErrEndBeforeStart},
		{"bad slot id", CheckRequest{ChaletID: uuid.NewString(), StartDate: "2026-03-10", Mode: "day_use", SlotIDs: []string{"x"}}, ErrInvalidSlotSelection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := svc.CheckAvailability(context.Background(), tc.req)
			assert.False(t, result.Available)
			assert.Contains(t, errorCodes(result.Errors), tc.code)
		})
	}
}

func TestCheckAvailability_TodayIsBookable(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	seedDaySlots(store, chalet.ID)
	svc := newTestService(store)

	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID: chalet.ID.String(), StartDate: "2026-03-01", Mode: "day_use",
	})
	assert.NotContains(t, errorCodes(result.Errors), ErrDateInPast)
	assert.True(t, result.Available)
}

func TestCheckAvailability_ChaletNotFound(t *testing.T) {
	svc := newTestService(newFakeStore())
	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID: uuid.NewString(), StartDate: "2026-03-10", Mode: "day_use",
	})
	assert.False(t, result.Available)
	assert.Contains(t, errorCodes(result.Errors), ErrChaletNotFound)
}

func TestCheckAvailability_FullDayBlockedQuickReject(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	seedDaySlots(store, chalet.ID)
	store.blocks = append(store.blocks, model.BlockedDate{
		ChaletID: chalet.ID,
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Reason:   "maintenance",
	})
	svc := newTestService(store)

	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID: chalet.ID.String(), StartDate: "2026-03-10", Mode: "day_use",
	})
	assert.False(t, result.Available)
	assert.Contains(t, errorCodes(result.Errors), ErrFullDayBlocked)
	assert.Empty(t, result.Slots)
}

func TestCheckAvailability_NoSlotsConfigured(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	svc := newTestService(store)

	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID: chalet.ID.String(), StartDate: "2026-03-10", Mode: "day_use",
	})
	assert.False(t, result.Available)
	assert.Contains(t, errorCodes(result.Errors), ErrNoSlotsConfigured)
}

func TestCheckAvailability_DayUseWithCombinations(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	morning, evening := seedDaySlots(store, chalet.ID)
	svc := newTestService(store)

	// 2026-03-10 is a Tuesday: weekday rates apply.
	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID: chalet.ID.String(), StartDate: "2026-03-10", Mode: "day_use",
	})
	require.Empty(t, result.Errors)
	assert.True(t, result.Available)
	require.Len(t, result.Slots, 2)

	byID := map[uuid.UUID]SlotAvailability{}
	for _, sa := range result.Slots {
		byID[sa.SlotID] = sa
	}
	assert.Equal(t, 80.0, byID[morning.ID].Pricing.FinalPrice)
	assert.Equal(t, 100.0, byID[evening.ID].Pricing.FinalPrice)

	// Two adjacent slots: morning, morning+evening, evening.
	require.Len(t, result.Combinations, 3)
	var joined *CombinationOffer
	for i := range result.Combinations {
		if len(result.Combinations[i].SlotIDs) == 2 {
			joined = &result.Combinations[i]
		}
	}
	require.NotNil(t, joined, "expected the joined run")
	assert.Equal(t, 180.0, joined.TotalPrice)
	assert.Equal(t, "08:00", joined.StartTime)
	assert.Equal(t, "20:00", joined.EndTime)
}

func TestCheckAvailability_SlotFilterRestricts(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	morning, _ := seedDaySlots(store, chalet.ID)
	svc := newTestService(store)

	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID:  chalet.ID.String(),
		StartDate: "2026-03-10",
		Mode:      "day_use",
		SlotIDs:   []string{morning.ID.String()},
	})
	require.Empty(t, result.Errors)
	require.Len(t, result.Slots, 1)
	assert.Equal(t, morning.ID, result.Slots[0].SlotID)
	assert.Empty(t, result.Combinations, "a single filtered slot yields no combinations")
}

func TestCheckAvailability_OvernightRange(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	slot := seedOvernightSlot(store, chalet.ID)
	svc := newTestService(store)

	// Thu 12th (100) + Fri 13th (170, default weekend).
	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID:  chalet.ID.String(),
		StartDate: "2026-03-12",
		EndDate:   "2026-03-14",
		Mode:      "overnight",
	})
	require.Empty(t, result.Errors)
	assert.True(t, result.Available)
	assert.Equal(t, 2, result.Nights)
	require.Len(t, result.Slots, 1)
	sa := result.Slots[0]
	assert.Equal(t, slot.ID, sa.SlotID)
	assert.Equal(t, 2, sa.Nights)
	require.Len(t, sa.PerNight, 2)
	assert.Equal(t, 270.0, sa.Pricing.FinalPrice)
	assert.Nil(t, result.Combinations, "combinations are a day-use concept")
}

func TestCheckAvailability_BookedSlotExcluded(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	morning, evening := seedDaySlots(store, chalet.ID)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store.bookings = append(store.bookings, model.Booking{
		ID:       uuid.New(),
		ChaletID: chalet.ID,
		StartAt:  date.Add(8 * time.Hour),
		EndAt:    date.Add(14 * time.Hour),
		Mode:     model.ModeDayUse,
		Status:   model.BookingConfirmed,
		SlotIDs:  []uuid.UUID{morning.ID},
	})
	svc := newTestService(store)

	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID: chalet.ID.String(), StartDate: "2026-03-10", Mode: "day_use",
	})
	require.Empty(t, result.Errors)
	assert.True(t, result.Available)
	require.Len(t, result.Slots, 1)
	assert.Equal(t, evening.ID, result.Slots[0].SlotID)
	assert.Empty(t, result.Combinations)
}

func TestValidateBookingRequest_SlotUnavailable(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	morning, _ := seedDaySlots(store, chalet.ID)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store.bookings = append(store.bookings, model.Booking{
		ID:       uuid.New(),
		ChaletID: chalet.ID,
		StartAt:  date.Add(8 * time.Hour),
		EndAt:    date.Add(14 * time.Hour),
		Mode:     model.ModeDayUse,
		Status:   model.BookingPending,
		SlotIDs:  []uuid.UUID{morning.ID},
	})
	svc := newTestService(store)

	out := svc.ValidateBookingRequest(context.Background(), ValidateRequest{
		ChaletID:  chalet.ID.String(),
		SlotIDs:   []string{morning.ID.String()},
		StartDate: "2026-03-10",
		Mode:      "day_use",
	})
	assert.False(t, out.Valid)
	assert.Contains(t, errorCodes(out.Errors), ErrSlotUnavailable)
}

func TestValidateBookingRequest_EmptySelection(t *testing.T) {
	svc := newTestService(newFakeStore())
	out := svc.ValidateBookingRequest(context.Background(), ValidateRequest{
		ChaletID: uuid.NewString(), StartDate: "2026-03-10", Mode: "day_use",
	})
	assert.False(t, out.Valid)
	assert.Contains(t, errorCodes(out.Errors), ErrInvalidSlotSelection)
}

func TestValidateBookingRequest_NonConsecutiveDayUse(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	morning, _ := seedDaySlots(store, chalet.ID)
	late := model.TimeSlot{
		ID: uuid.New(), ChaletID: chalet.ID, Name: "late",
		StartTime: "16:00", EndTime: "22:00", DurationHours: 6,
		WeekdayPrice: 90, WeekendPrice: 130, IsActive: true,
	}
	store.slots = append(store.slots, late)
	svc := newTestService(store)

	out := svc.ValidateBookingRequest(context.Background(), ValidateRequest{
		ChaletID:  chalet.ID.String(),
		SlotIDs:   []string{morning.ID.String(), late.ID.String()},
		StartDate: "2026-03-10",
		Mode:      "day_use",
	})
	assert.False(t, out.Valid)
	assert.Contains(t, errorCodes(out.Errors), ErrSlotsNotConsecutive)
}

func TestValidateBookingRequest_ConsecutiveDayUse(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	morning, evening := seedDaySlots(store, chalet.ID)
	svc := newTestService(store)

	out := svc.ValidateBookingRequest(context.Background(), ValidateRequest{
		ChaletID:  chalet.ID.String(),
		SlotIDs:   []string{evening.ID.String(), morning.ID.String()},
		StartDate: "2026-03-10",
		Mode:      "day_use",
	})
	assert.True(t, out.Valid)
	assert.Empty(t, out.Errors)
	assert.Len(t, out.Slots, 2)
}

func TestValidateBookingRequest_OvernightSingleSlotOnly(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	a := seedOvernightSlot(store, chalet.ID)
	b := seedOvernightSlot(store, chalet.ID)
	svc := newTestService(store)

	out := svc.ValidateBookingRequest(context.Background(), ValidateRequest{
		ChaletID:  chalet.ID.String(),
		SlotIDs:   []string{a.ID.String(), b.ID.String()},
		StartDate: "2026-03-10",
		EndDate:   "2026-03-11",
		Mode:      "overnight",
	})
	assert.False(t, out.Valid)
	assert.Contains(t, errorCodes(out.Errors), ErrInvalidSlotSelection)
}

func TestValidateBookingRequest_OvernightHappyPath(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	slot := seedOvernightSlot(store, chalet.ID)
	svc := newTestService(store)

	out := svc.ValidateBookingRequest(context.Background(), ValidateRequest{
		ChaletID:  chalet.ID.String(),
		SlotIDs:   []string{slot.ID.String()},
		StartDate: "2026-03-10",
		EndDate:   "2026-03-12",
		Mode:      "overnight",
	})
	assert.True(t, out.Valid)
	require.Len(t, out.Slots, 1)
	assert.Equal(t, slot.ID, out.Slots[0].ID)
}

func TestCheckAvailability_PromotionApplied(t *testing.T) {
	store := newFakeStore()
	chalet := seedChalet(store)
	seedOvernightSlot(store, chalet.ID)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := New(store, nil, testLogger, Config{
		Promotion: pricing.Promotion{Percentage: 10, EffectiveUntil: now.AddDate(0, 1, 0)},
		Now:       func() time.Time { return now },
	})

	result := svc.CheckAvailability(context.Background(), CheckRequest{
		ChaletID:  chalet.ID.String(),
		StartDate: "2026-03-12",
		EndDate:   "2026-03-14",
		Mode:      "overnight",
	})
	require.Empty(t, result.Errors)
	require.Len(t, result.Slots, 1)
	q := result.Slots[0].Pricing
	assert.Equal(t, 270.0, q.OriginalPrice)
	assert.Equal(t, 27.0, q.DiscountAmount)
	assert.Equal(t, 243.0, q.FinalPrice)
}
