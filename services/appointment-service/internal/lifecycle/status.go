package lifecycle

import "strings"

// Status is the canonical machine representation of an appointment's
// lifecycle state. Display labels are a separate projection and are
// never compared for business logic.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusUnknown   Status = "unknown"
)

// statusAliases maps every accepted spelling, including the legacy
// Spanish tokens the site historically stored, to the canonical status.
var statusAliases = map[string]Status{
	"pending":    StatusPending,
	"pendiente":  StatusPending,
	"confirmed":  StatusConfirmed,
	"confirmada": StatusConfirmed,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"cancelada":  StatusCancelled,
	"completed":  StatusCompleted,
	"completada": StatusCompleted,
}

// ParseStatus resolves a status token to its canonical form. Unrecognized
// tokens yield StatusUnknown with ok=false.
func ParseStatus(raw string) (Status, bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return StatusUnknown, false
	}
	return s, true
}

var statusLabels = map[Status]string{
	StatusPending:   "Pendiente",
	StatusConfirmed: "Confirmada",
	StatusCancelled: "Cancelada",
	StatusCompleted: "Completada",
}

// Label returns the display label for a status. Total: unrecognized
// statuses get the unknown label rather than an error.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "Desconocido"
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}
