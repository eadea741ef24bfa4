package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

type ConflictKind string

const (
	ConflictFullDayBlocked ConflictKind = "full_day_blocked"
	ConflictSlotBlocked    ConflictKind = "slot_blocked"
	ConflictSlotBooked     ConflictKind = "slot_booked"
	ConflictOverlapBlocked ConflictKind = "overlap_blocked"
	ConflictOverlapBooked  ConflictKind = "overlap_booked"
)

// Conflict is one block or booking found to collide with a target slot on a
// date. CandidateOvernight records the kind of the other party, which the
// checker needs for its opposite-kind gate.
type Conflict struct {
	Kind               ConflictKind
	Date               time.Time
	SlotID             *uuid.UUID
	BookingID          *uuid.UUID
	CandidateOvernight bool
	Reason             string
}

type Conflicts struct {
	Blocked []Conflict
	Booked  []Conflict
}

func (c Conflicts) Empty() bool {
	return len(c.Blocked) == 0 && len(c.Booked) == 0
}

func (c Conflicts) find(kind ConflictKind) *Conflict {
	for i := range c.Blocked {
		if c.Blocked[i].Kind == kind {
			return &c.Blocked[i]
		}
	}
	for i := range c.Booked {
		if c.Booked[i].Kind == kind {
			return &c.Booked[i]
		}
	}
	return nil
}

// ConflictStore is the slice of the persistence collaborator the scanner
// reads. Date ranges are inclusive calendar dates for blocks and an instant
// envelope for bookings; implementations return only confirmed and pending
// bookings.
type ConflictStore interface {
	FindBlockedDates(ctx context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.BlockedDate, error)
	FindBookingsOverlapping(ctx context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.Booking, error)
}

// Scanner reduces blocked-date and booking records around a set of target
// dates to overlap conflicts against one slot. Blocks are compared with zero
// grace; bookings with the configured grace.
type Scanner struct {
	store        ConflictStore
	bookingGrace int
}

func NewScanner(store ConflictStore, bookingGraceMinutes int) *Scanner {
	if bookingGraceMinutes < 0 {
		bookingGraceMinutes = 0
	}
	return &Scanner{store: store, bookingGrace: bookingGraceMinutes}
}

// FindConflicts scans a +/-1-day window around every date in dates, so
// cross-midnight slots anchored on the adjacent calendar date are caught.
func (s *Scanner) FindConflicts(ctx context.Context, chaletID uuid.UUID, target model.TimeSlot, dates []time.Time) (Conflicts, error) {
	var out Conflicts
	if len(dates) == 0 {
		return out, nil
	}

	first, last := dateSpan(dates)
	blocks, err := s.store.FindBlockedDates(ctx, chaletID, first.AddDate(0, 0, -1), last.AddDate(0, 0, 1))
	if err != nil {
		return out, fmt.Errorf("find blocked dates: %w", err)
	}
	// Bookings are fetched as an instant envelope wide enough for slots that
	// bleed past midnight on the last date.
	bookings, err := s.store.FindBookingsOverlapping(ctx, chaletID, first.AddDate(0, 0, -1), last.AddDate(0, 0, 2))
	if err != nil {
		return out, fmt.Errorf("find bookings: %w", err)
	}

	targetStart, err := ClockMinutes(target.StartTime)
	if err != nil {
		return out, err
	}
	targetEnd, err := ClockMinutes(target.EndTime)
	if err != nil {
		return out, err
	}

	seen := make(map[string]bool)
	for _, date := range dates {
		date = DateOnly(date)

		for _, b := range blocks {
			offset := DaysBetween(date, b.Date)
			if offset < -1 || offset > 1 {
				continue
			}
			if b.IsFullDay() {
				if offset == 0 {
					out.addBlocked(seen, Conflict{Kind: ConflictFullDayBlocked, Date: date, Reason: b.Reason})
				}
				continue
			}
			if offset == 0 && *b.SlotID == target.ID {
				out.addBlocked(seen, Conflict{Kind: ConflictSlotBlocked, Date: date, SlotID: b.SlotID, CandidateOvernight: b.SlotOvernight, Reason: b.Reason})
				continue
			}
			bS, err := ClockMinutes(b.SlotStart)
			if err != nil {
				continue
			}
			bE, err := ClockMinutes(b.SlotEnd)
			if err != nil {
				continue
			}
			if overlapAtOffset(targetStart, targetEnd, bS, bE, offset) > 0 {
				out.addBlocked(seen, Conflict{Kind: ConflictOverlapBlocked, Date: date, SlotID: b.SlotID, CandidateOvernight: b.SlotOvernight, Reason: b.Reason})
			}
		}

		tStart, err := ToInstant(date, target.StartTime)
		if err != nil {
			return out, err
		}
		tEnd, err := EndInstant(tStart, target.EndTime)
		if err != nil {
			return out, err
		}
		for i := range bookings {
			k := &bookings[i]
			ov := overlapMinutes(tStart, tEnd, k.StartAt, k.EndAt)
			if k.ClaimsSlot(target.ID) && ov > 0 {
				id := k.ID
				out.addBooked(seen, Conflict{Kind: ConflictSlotBooked, Date: date, BookingID: &id, CandidateOvernight: k.Mode == model.ModeOvernight})
				continue
			}
			if ov > s.bookingGrace {
				id := k.ID
				out.addBooked(seen, Conflict{Kind: ConflictOverlapBooked, Date: date, BookingID: &id, CandidateOvernight: k.Mode == model.ModeOvernight})
			}
		}
	}
	return out, nil
}

func (c *Conflicts) addBlocked(seen map[string]bool, conflict Conflict) {
	key := dedupeKey(conflict)
	if seen[key] {
		return
	}
	seen[key] = true
	c.Blocked = append(c.Blocked, conflict)
}

func (c *Conflicts) addBooked(seen map[string]bool, conflict Conflict) {
	key := dedupeKey(conflict)
	if seen[key] {
		return
	}
	seen[key] = true
	c.Booked = append(c.Booked, conflict)
}

func dedupeKey(c Conflict) string {
	slot, booking := "", ""
	if c.SlotID != nil {
		slot = c.SlotID.String()
	}
	if c.BookingID != nil {
		booking = c.BookingID.String()
	}
	return string(c.Kind) + "|" + c.Date.Format("2006-01-02") + "|" + slot + "|" + booking
}

func dateSpan(dates []time.Time) (time.Time, time.Time) {
	first, last := DateOnly(dates[0]), DateOnly(dates[0])
	for _, d := range dates[1:] {
		d = DateOnly(d)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last
}
