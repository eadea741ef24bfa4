package model

import "github.com/google/uuid"

// Chalet carries the subset of unit configuration the engine reads:
// the configurable weekend-day set and the owner commission rate.
type Chalet struct {
	ID             uuid.UUID
	Name           string
	WeekendDays    WeekdaySet
	CommissionRate float64
	IsActive       bool
}

// Weekend returns the chalet's weekend set, falling back to the default
// (Friday/Saturday/Sunday) when none is configured.
func (c Chalet) Weekend() WeekdaySet {
	if c.WeekendDays.IsEmpty() {
		return DefaultWeekendDays()
	}
	return c.WeekendDays
}
