package service

// ErrorCode classifies the failures CheckAvailability and
// ValidateBookingRequest report. They surface as a structured list on the
// result, never as panics or raw errors past the orchestrator boundary.
type ErrorCode string

const (
	ErrInvalidChalet        ErrorCode = "invalid_chalet"
	ErrChaletNotFound       ErrorCode = "chalet_not_found"
	ErrInvalidDate          ErrorCode = "invalid_date"
	ErrEndBeforeStart       ErrorCode = "end_before_start"
	ErrDateInPast           ErrorCode = "date_in_past"
	ErrMissingEndDate       ErrorCode = "missing_end_date"
	ErrInvalidMode          ErrorCode = "invalid_mode"
	ErrInvalidSlotSelection ErrorCode = "invalid_slot_selection"
	ErrFullDayBlocked       ErrorCode = "full_day_blocked"
	ErrNoSlotsConfigured    ErrorCode = "no_slots_configured"
	ErrSlotUnavailable      ErrorCode = "slot_unavailable"
	ErrSlotsNotConsecutive  ErrorCode = "slots_not_consecutive"
	ErrSystem               ErrorCode = "system_error"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func newError(code ErrorCode, message string) Error {
	return Error{Code: code, Message: message}
}
