package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingMode string

const (
	ModeDayUse    BookingMode = "day_use"
	ModeOvernight BookingMode = "overnight"
)

func ParseBookingMode(raw string) (BookingMode, bool) {
	switch BookingMode(raw) {
	case ModeDayUse, ModeOvernight:
		return BookingMode(raw), true
	}
	return "", false
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
	BookingCompleted BookingStatus = "completed"
)

// CanTransitionTo enforces the booking lifecycle:
// pending -> confirmed/cancelled/rejected, confirmed -> completed/cancelled.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled || next == BookingRejected
	case BookingConfirmed:
		return next == BookingCompleted || next == BookingCancelled
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking holds precise start/end instants (not bare dates) so slot times
// survive into history even if the slot is later edited or deactivated.
// Day-use bookings may reference several contiguous slots; overnight bookings
// reference exactly one overnight slot.
type Booking struct {
	ID                 uuid.UUID
	ChaletID           uuid.UUID
	UserID             uuid.UUID
	StartAt            time.Time
	EndAt              time.Time
	Mode               BookingMode
	Status             BookingStatus
	PaymentStatus      PaymentStatus
	BasePrice          float64
	SeasonalAdjustment float64
	DiscountAmount     float64
	Commission         float64
	TotalPrice         float64
	SlotIDs            []uuid.UUID
	CreatedAt          time.Time
}

func (b Booking) ClaimsSlot(slotID uuid.UUID) bool {
	for _, id := range b.SlotIDs {
		if id == slotID {
			return true
		}
	}
	return false
}
