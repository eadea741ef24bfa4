package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

// fakeConflictStore serves canned blocks and bookings, filtered by the
// requested window like the real store does.
type fakeConflictStore struct {
	blocks   []model.BlockedDate
	bookings []model.Booking
}

func (f *fakeConflictStore) FindBlockedDates(_ context.Context, _ uuid.UUID, from, to time.Time) ([]model.BlockedDate, error) {
	var out []model.BlockedDate
	for _, b := range f.blocks {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeConflictStore) FindBookingsOverlapping(_ context.Context, _ uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, k := range f.bookings {
		if k.StartAt.Before(to) && k.EndAt.After(from) {
			out = append(out, k)
		}
	}
	return out, nil
}

var (
	testChalet = uuid.New()
	march10    = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	march12    = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
)

func overnightSlot() model.TimeSlot {
	return model.TimeSlot{
		ID:          uuid.New(),
		Name:        "overnight",
		StartTime:   "15:00",
		EndTime:     "12:00",
		IsOvernight: true,
		IsActive:    true,
	}
}

func morningSlot() model.TimeSlot {
	return model.TimeSlot{
		ID:        uuid.New(),
		Name:      "morning",
		StartTime: "08:00",
		EndTime:   "12:00",
		IsActive:  true,
	}
}

func TestCheckDayUse_FreeCalendar(t *testing.T) {
	checker := NewChecker(&fakeConflictStore{}, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, morningSlot(), march10)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Available {
		t.Fatalf("expected available, got reason %q", v.Reason)
	}
}

func TestCheckDayUse_InactiveSlot(t *testing.T) {
	slot := morningSlot()
	slot.IsActive = false
	checker := NewChecker(&fakeConflictStore{}, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, slot, march10)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available || v.Reason != ReasonSlotInactive {
		t.Fatalf("expected %s, got available=%v reason=%q", ReasonSlotInactive, v.Available, v.Reason)
	}
}

func TestCheckDayUse_WeekdayNotAllowed(t *testing.T) {
	slot := morningSlot()
	slot.AllowedDays = model.WeekdaySet{model.Friday: true, model.Saturday: true}
	checker := NewChecker(&fakeConflictStore{}, 15)
	// 2026-03-10 is a Tuesday.
	v, err := checker.CheckDayUse(context.Background(), testChalet, slot, march10)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available || v.Reason != ReasonWeekdayNotAllowed {
		t.Fatalf("expected %s, got available=%v reason=%q", ReasonWeekdayNotAllowed, v.Available, v.Reason)
	}
}

func TestCheckDayUse_FullDayBlockWins(t *testing.T) {
	slot := morningSlot()
	store := &fakeConflictStore{
		blocks: []model.BlockedDate{
			{ChaletID: testChalet, Date: march10, Reason: "maintenance"},
			{ChaletID: testChalet, Date: march10, SlotID: &slot.ID, SlotStart: slot.StartTime, SlotEnd: slot.EndTime, Reason: "private"},
		},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, slot, march10)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available {
		t.Fatal("expected unavailable")
	}
	if v.Reason != string(ConflictFullDayBlocked) {
		t.Fatalf("whole-day block must dominate, got %q", v.Reason)
	}
}

func TestCheckDayUse_FullDayBlockOnOtherDateIgnored(t *testing.T) {
	store := &fakeConflictStore{
		blocks: []model.BlockedDate{{ChaletID: testChalet, Date: march10.AddDate(0, 0, 1), Reason: "maintenance"}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, morningSlot(), march10)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Available {
		t.Fatalf("adjacent-date whole-day block must not leak, reason %q", v.Reason)
	}
}

func TestCheckDayUse_SameSlotBooked(t *testing.T) {
	slot := morningSlot()
	start, _ := ToInstant(march10, slot.StartTime)
	end, _ := EndInstant(start, slot.EndTime)
	store := &fakeConflictStore{
		bookings: []model.Booking{{
			ID:       uuid.New(),
			ChaletID: testChalet,
			StartAt:  start,
			EndAt:    end,
			Mode:     model.ModeDayUse,
			Status:   model.BookingConfirmed,
			SlotIDs:  []uuid.UUID{slot.ID},
		}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, slot, march10)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available || v.Reason != string(ConflictSlotBooked) {
		t.Fatalf("expected slot_booked, got available=%v reason=%q", v.Available, v.Reason)
	}
}

func TestCheckDayUse_OppositeKindOvernightBooking(t *testing.T) {
	// Overnight guest from the previous day occupies the morning until 12:00
	// checkout, so the 08:00-12:00 day-use slot is taken.
	over := overnightSlot()
	prevDay := march10.AddDate(0, 0, -1)
	start, _ := ToInstant(prevDay, over.StartTime)
	end, _ := EndInstant(start, over.EndTime)
	store := &fakeConflictStore{
		bookings: []model.Booking{{
			ID:       uuid.New(),
			ChaletID: testChalet,
			StartAt:  start,
			EndAt:    end,
			Mode:     model.ModeOvernight,
			Status:   model.BookingConfirmed,
			SlotIDs:  []uuid.UUID{over.ID},
		}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, morningSlot(), march10)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available || v.Reason != string(ConflictOverlapBooked) {
		t.Fatalf("expected overlap_booked, got available=%v reason=%q", v.Available, v.Reason)
	}
}

func TestCheckDayUse_SameKindOverlapIsParallelOffering(t *testing.T) {
	// Another day-use slot sharing hours is a parallel offering. A booking on
	// it does not claim this slot and, being the same kind, is not an
	// opposite-kind collision.
	target := morningSlot()
	other := model.TimeSlot{ID: uuid.New(), StartTime: "09:00", EndTime: "13:00", IsActive: true}
	start, _ := ToInstant(march10, other.StartTime)
	end, _ := EndInstant(start, other.EndTime)
	store := &fakeConflictStore{
		bookings: []model.Booking{{
			ID:       uuid.New(),
			ChaletID: testChalet,
			StartAt:  start,
			EndAt:    end,
			Mode:     model.ModeDayUse,
			Status:   model.BookingConfirmed,
			SlotIDs:  []uuid.UUID{other.ID},
		}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, target, march10)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Available {
		t.Fatalf("same-kind overlap must not conflict, reason %q", v.Reason)
	}
}

func TestCheckDayUse_GraceAgainstBooking(t *testing.T) {
	// An overnight booking whose checkout brushes 10 minutes into the slot is
	// tolerated by the 15 minute grace.
	over := overnightSlot()
	prevDay := march10.AddDate(0, 0, -1)
	start, _ := ToInstant(prevDay, over.StartTime)
	end, _ := EndInstant(start, "08:10")
	store := &fakeConflictStore{
		bookings: []model.Booking{{
			ID:       uuid.New(),
			ChaletID: testChalet,
			StartAt:  start,
			EndAt:    end,
			Mode:     model.ModeOvernight,
			Status:   model.BookingConfirmed,
			SlotIDs:  []uuid.UUID{over.ID},
		}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, morningSlot(), march10)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Available {
		t.Fatalf("10 minute intrusion within grace must pass, reason %q", v.Reason)
	}
}

func TestCheckDayUse_NoGraceAgainstBlocks(t *testing.T) {
	// The same 10 minute intrusion from a blocked overnight slot conflicts:
	// grace never applies to manual blocks.
	over := overnightSlot()
	over.EndTime = "08:10"
	store := &fakeConflictStore{
		blocks: []model.BlockedDate{{
			ChaletID:      testChalet,
			Date:          march10.AddDate(0, 0, -1),
			SlotID:        &over.ID,
			SlotStart:     over.StartTime,
			SlotEnd:       over.EndTime,
			SlotOvernight: true,
			Reason:        "owner stay",
		}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckDayUse(context.Background(), testChalet, morningSlot(), march10)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available || v.Reason != string(ConflictOverlapBlocked) {
		t.Fatalf("expected overlap_blocked, got available=%v reason=%q", v.Available, v.Reason)
	}
}

func TestCheckOvernight_AllNightsMustBeFree(t *testing.T) {
	slot := overnightSlot()
	// Second night is whole-day blocked; the whole range fails.
	store := &fakeConflictStore{
		blocks: []model.BlockedDate{{ChaletID: testChalet, Date: march10.AddDate(0, 0, 1), Reason: "maintenance"}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckOvernight(context.Background(), testChalet, slot, march10, march12)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available {
		t.Fatal("one blocked night must fail the whole range")
	}
	if v.Reason != string(ConflictFullDayBlocked) {
		t.Fatalf("expected full_day_blocked, got %q", v.Reason)
	}
}

func TestCheckOvernight_TwoNightsClean(t *testing.T) {
	checker := NewChecker(&fakeConflictStore{}, 15)
	v, err := checker.CheckOvernight(context.Background(), testChalet, overnightSlot(), march10, march12)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Available {
		t.Fatalf("expected available, reason %q", v.Reason)
	}
}

func TestCheckOvernight_DayUseBookingOnMiddleNight(t *testing.T) {
	slot := overnightSlot()
	day := morningSlot()
	// Day-use booking on the second calendar date: its 08:00-12:00 falls inside
	// the first night's occupied hours (15:00 -> next-day 12:00).
	start, _ := ToInstant(march10.AddDate(0, 0, 1), day.StartTime)
	end, _ := EndInstant(start, day.EndTime)
	store := &fakeConflictStore{
		bookings: []model.Booking{{
			ID:       uuid.New(),
			ChaletID: testChalet,
			StartAt:  start,
			EndAt:    end,
			Mode:     model.ModeDayUse,
			Status:   model.BookingPending,
			SlotIDs:  []uuid.UUID{day.ID},
		}},
	}
	checker := NewChecker(store, 15)
	v, err := checker.CheckOvernight(context.Background(), testChalet, slot, march10, march12)
	if err != nil {
		t.Fatal(err)
	}
	if v.Available {
		t.Fatal("day-use booking inside the range must conflict")
	}
	if v.Reason != string(ConflictOverlapBooked) {
		t.Fatalf("expected overlap_booked, got %q", v.Reason)
	}
}
