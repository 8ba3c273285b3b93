package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the appointment service.
const (
	EventAppointmentCreated        = "appointment.created.v1"
	EventAppointmentStatusChanged  = "appointment.status_changed.v1"
	EventAppointmentResultAttached = "appointment.result_attached.v1"
)
