package model

import (
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a bookable time window on a chalet. Start and end are wall-clock
// strings ("HH:MM", seconds tolerated) with no date attached; a slot whose end
// is numerically <= its start crosses midnight into the next calendar date.
type TimeSlot struct {
	ID              uuid.UUID
	ChaletID        uuid.UUID
	Name            string
	StartTime       string
	EndTime         string
	IsOvernight     bool
	DurationHours   float64
	WeekdayPrice    float64
	WeekendPrice    float64
	AllowExtraHours bool
	ExtraHourPrice  float64
	MaxExtraHours   int
	AllowedDays     WeekdaySet
	IsActive        bool
	CreatedAt       time.Time
}

// AllowsDay reports whether the slot may be booked on the given weekday.
// An empty allowed-day set means every day is allowed.
func (s TimeSlot) AllowsDay(d Weekday) bool {
	if s.AllowedDays.IsEmpty() {
		return true
	}
	return s.AllowedDays.Contains(d)
}

func (s TimeSlot) CrossesMidnight() bool {
	return s.EndTime <= s.StartTime
}
