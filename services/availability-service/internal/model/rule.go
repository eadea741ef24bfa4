package model

import (
	"time"

	"github.com/google/uuid"
)

// PricingRule is a date-range-scoped adjustment on one slot's base rate.
// Several rules may overlap a date; the latest-created active rule wins.
// Adjustment may be negative (markdown); the final price is floored at zero.
type PricingRule struct {
	ID         uuid.UUID
	ChaletID   uuid.UUID
	SlotID     uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Adjustment float64
	Name       string
	IsActive   bool
	CreatedAt  time.Time
}

// AppliesOn reports whether date falls inside [StartDate, EndDate] (inclusive).
func (r PricingRule) AppliesOn(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(r.StartDate.Truncate(24*time.Hour)) && !d.After(r.EndDate.Truncate(24*time.Hour))
}
