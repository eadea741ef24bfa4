package model

import (
	"time"

	"github.com/google/uuid"
)

// BlockedDate marks a chalet date (or one slot on that date) as unavailable.
// A nil SlotID blocks the whole calendar date regardless of slot.
// Uniqueness: at most one row per (chalet, date, slot) and at most one
// whole-day row per (chalet, date).
type BlockedDate struct {
	ID       uuid.UUID
	ChaletID uuid.UUID
	Date     time.Time
	SlotID   *uuid.UUID
	// Wall-clock times of the referenced slot, populated by the store when
	// SlotID is set so overlap checks need no extra lookup.
	SlotStart     string
	SlotEnd       string
	SlotOvernight bool
	Reason        string
	Note          string
}

func (b BlockedDate) IsFullDay() bool {
	return b.SlotID == nil
}
