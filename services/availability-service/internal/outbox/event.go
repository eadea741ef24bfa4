package outbox

// Event is the envelope written to the outbox table inside the same
// transaction as the state change it announces. The Kafka topic name equals
// EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics emitted by this service.
const (
	EventBookingCreated   = "availability.booking.created.v1"
	EventBookingCancelled = "availability.booking.cancelled.v1"
	EventBookingExpired   = "availability.booking.expired.v1"
	EventBlockUpserted    = "availability.block.upserted.v1"
	EventBlockRemoved     = "availability.block.removed.v1"
)
