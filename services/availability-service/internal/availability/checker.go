package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

// Reasons a slot fails a gate before any conflict scanning happens.
const (
	ReasonSlotInactive      = "slot_inactive"
	ReasonWeekdayNotAllowed = "weekday_not_allowed"
)

// Verdict is the outcome of one slot/date (or slot/range) availability check.
// Reason carries the first failing gate; Conflicts the scan detail behind it.
type Verdict struct {
	Available bool
	Reason    string
	Date      time.Time
	Conflicts Conflicts
}

func unavailable(reason string, date time.Time, conflicts Conflicts) Verdict {
	return Verdict{Available: false, Reason: reason, Date: date, Conflicts: conflicts}
}

// Checker runs the per-(slot, date) decision gates in order, short-circuiting
// on the first failure:
//
//  1. slot active and the date's weekday allowed (check-in weekday for overnight)
//  2. no whole-day block on the exact date
//  3. no per-slot block on the exact date
//  4. no confirmed/pending booking already claiming this slot over the date
//  5. no blocked or booked slot of the opposite kind overlapping in wall-clock
//     time on the date (for overnight, the following date as well)
type Checker struct {
	scanner *Scanner
}

func NewChecker(store ConflictStore, bookingGraceMinutes int) *Checker {
	return &Checker{scanner: NewScanner(store, bookingGraceMinutes)}
}

// CheckDayUse decides whether a day-use slot is free on a single date.
func (c *Checker) CheckDayUse(ctx context.Context, chaletID uuid.UUID, slot model.TimeSlot, date time.Time) (Verdict, error) {
	date = DateOnly(date)
	if v, ok := c.gateMeta(slot, date); !ok {
		return v, nil
	}
	conflicts, err := c.scanner.FindConflicts(ctx, chaletID, slot, []time.Time{date})
	if err != nil {
		return Verdict{}, err
	}
	return c.judge(slot, date, conflicts), nil
}

// CheckOvernight decides whether an overnight slot is free for every night in
// [start, end). A single failing night fails the whole range; there are no
// partial-night overnight bookings. The scan window of each night already
// reaches one day back, which covers blocks recorded against the previous
// date whose occupied hours bleed into the first night.
func (c *Checker) CheckOvernight(ctx context.Context, chaletID uuid.UUID, slot model.TimeSlot, start, end time.Time) (Verdict, error) {
	if v, ok := c.gateMeta(slot, DateOnly(start)); !ok {
		return v, nil
	}
	nights := NightsOf(start, end)
	conflicts, err := c.scanner.FindConflicts(ctx, chaletID, slot, nights)
	if err != nil {
		return Verdict{}, err
	}
	return c.judge(slot, DateOnly(start), conflicts), nil
}

func (c *Checker) gateMeta(slot model.TimeSlot, checkIn time.Time) (Verdict, bool) {
	if !slot.IsActive {
		return unavailable(ReasonSlotInactive, checkIn, Conflicts{}), false
	}
	if !slot.AllowsDay(model.WeekdayOf(checkIn)) {
		return unavailable(ReasonWeekdayNotAllowed, checkIn, Conflicts{}), false
	}
	return Verdict{}, true
}

// judge maps scanned conflicts onto the gate order. Overlap conflicts only
// count against slots of the opposite kind; same-kind slots that share hours
// are parallel offerings, not collisions.
func (c *Checker) judge(slot model.TimeSlot, date time.Time, conflicts Conflicts) Verdict {
	if f := conflicts.find(ConflictFullDayBlocked); f != nil {
		return unavailable(string(ConflictFullDayBlocked), f.Date, conflicts)
	}
	if f := conflicts.find(ConflictSlotBlocked); f != nil {
		return unavailable(string(ConflictSlotBlocked), f.Date, conflicts)
	}
	if f := conflicts.find(ConflictSlotBooked); f != nil {
		return unavailable(string(ConflictSlotBooked), f.Date, conflicts)
	}
	for _, f := range conflicts.Blocked {
		if f.Kind == ConflictOverlapBlocked && f.CandidateOvernight != slot.IsOvernight {
			return unavailable(string(ConflictOverlapBlocked), f.Date, conflicts)
		}
	}
	for _, f := range conflicts.Booked {
		if f.Kind == ConflictOverlapBooked && f.CandidateOvernight != slot.IsOvernight {
			return unavailable(string(ConflictOverlapBooked), f.Date, conflicts)
		}
	}
	return Verdict{Available: true, Date: date, Conflicts: conflicts}
}
