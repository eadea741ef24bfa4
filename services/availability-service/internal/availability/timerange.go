package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// ClockMinutes parses a wall-clock string ("HH:MM" or "HH:MM:SS") into
// minutes after midnight. Seconds are accepted and dropped.
func ClockMinutes(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid wall-clock time %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid wall-clock time %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid wall-clock time %q", clock)
	}
	if len(parts) == 3 {
		if s, err := strconv.Atoi(parts[2]); err != nil || s < 0 || s > 59 {
			return 0, fmt.Errorf("invalid wall-clock time %q", clock)
		}
	}
	return h*60 + m, nil
}

// DateOnly strips the clock from t, keeping the calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns b - a in whole calendar days.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)) / (24 * time.Hour))
}

// ToInstant anchors a wall-clock time to a calendar date.
func ToInstant(date time.Time, clock string) (time.Time, error) {
	mins, err := ClockMinutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(date).Add(time.Duration(mins) * time.Minute), nil
}

// EndInstant resolves the end instant of a range that starts at start. When
// the end clock is numerically <= the start clock the range crosses midnight
// and the end lands on the following calendar date.
func EndInstant(start time.Time, endClock string) (time.Time, error) {
	end, err := ToInstant(start, endClock)
	if err != nil {
		return time.Time{}, err
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return end, nil
}

// Nights counts the nights in [start, end), never less than one.
func Nights(start, end time.Time) int {
	n := DaysBetween(start, end)
	if n < 1 {
		return 1
	}
	return n
}

// NightsOf lists the check-in date of every night in [start, end).
func NightsOf(start, end time.Time) []time.Time {
	n := Nights(start, end)
	nights := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		nights = append(nights, DateOnly(start).AddDate(0, 0, i))
	}
	return nights
}
