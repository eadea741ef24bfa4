package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the single weekday enumeration used by both availability
// filtering and pricing. Values match time.Weekday (Sunday = 0).
type Weekday int

const (
	Sunday    Weekday = Weekday(time.Sunday)
	Monday    Weekday = Weekday(time.Monday)
	Tuesday   Weekday = Weekday(time.Tuesday)
	Wednesday Weekday = Weekday(time.Wednesday)
	Thursday  Weekday = Weekday(time.Thursday)
	Friday    Weekday = Weekday(time.Friday)
	Saturday  Weekday = Weekday(time.Saturday)
)

func (d Weekday) String() string {
	return time.Weekday(d).String()
}

func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

func ParseWeekday(name string) (Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return Sunday, nil
	case "monday", "mon":
		return Monday, nil
	case "tuesday", "tue":
		return Tuesday, nil
	case "wednesday", "wed":
		return Wednesday, nil
	case "thursday", "thu":
		return Thursday, nil
	case "friday", "fri":
		return Friday, nil
	case "saturday", "sat":
		return Saturday, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// WeekdaySet is a set of weekdays (allowed days on a slot, weekend days on a chalet).
type WeekdaySet map[Weekday]bool

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	s := make(WeekdaySet, len(days))
	for _, d := range days {
		s[d] = true
	}
	return s
}

func ParseWeekdaySet(names []string) (WeekdaySet, error) {
	s := make(WeekdaySet, len(names))
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		s[d] = true
	}
	return s, nil
}

func (s WeekdaySet) Contains(d Weekday) bool {
	return s[d]
}

func (s WeekdaySet) IsEmpty() bool {
	return len(s) == 0
}

// Names returns lowercase weekday names in Sunday-first order.
func (s WeekdaySet) Names() []string {
	names := make([]string, 0, len(s))
	for d := Sunday; d <= Saturday; d++ {
		if s[d] {
			names = append(names, strings.ToLower(d.String()))
		}
	}
	return names
}

// DefaultWeekendDays is the weekend set used when a chalet has none configured.
func DefaultWeekendDays() WeekdaySet {
	return NewWeekdaySet(Friday, Saturday, Sunday)
}
