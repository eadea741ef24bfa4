package availability

import "time"

// Overlaps reports whether two wall-clock ranges intersect by more than
// graceMinutes. Ranges whose end is numerically <= their start are normalized
// across midnight (+1440 on the end) before comparison. A zero-length contact
// is back-to-back adjacency and never conflicts, even with zero grace.
//
// Grace zero is used against manual blocks; a positive grace (the configured
// cleaning buffer, 15 minutes by default) only ever applies against bookings.
func Overlaps(startA, endA, startB, endB string, graceMinutes int) bool {
	aS, err := ClockMinutes(startA)
	if err != nil {
		return false
	}
	aE, err := ClockMinutes(endA)
	if err != nil {
		return false
	}
	bS, err := ClockMinutes(startB)
	if err != nil {
		return false
	}
	bE, err := ClockMinutes(endB)
	if err != nil {
		return false
	}
	return overlapAtOffset(aS, aE, bS, bE, 0) > graceMinutes
}

// overlapAtOffset computes the overlap in minutes between a target range and a
// candidate range anchored dayOffset calendar days away from the target's
// date (negative = earlier). Both ranges are cross-midnight normalized, then
// the candidate is shifted onto the target's timeline.
func overlapAtOffset(targetStart, targetEnd, candStart, candEnd, dayOffset int) int {
	tS, tE := normalizeRange(targetStart, targetEnd)
	cS, cE := normalizeRange(candStart, candEnd)
	cS += dayOffset * minutesPerDay
	cE += dayOffset * minutesPerDay

	ov := min(tE, cE) - max(tS, cS)
	if ov < 0 {
		return 0
	}
	return ov
}

func normalizeRange(start, end int) (int, int) {
	if end <= start {
		end += minutesPerDay
	}
	return start, end
}

// overlapMinutes is the instant-range counterpart used against bookings,
// which carry absolute start/end instants rather than wall clocks.
func overlapMinutes(aStart, aEnd, bStart, bEnd time.Time) int {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}
