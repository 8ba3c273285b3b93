package lifecycle

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Principal is the authenticated caller. It is supplied by the gateway's
// auth layer and never constructed here.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Appointment is the booked slot plus its lifecycle state. PreferredAt is
// the offset-qualified instant and is persisted byte-for-byte; PreferredLocal
// is a display rendering kept for audit and never compared.
type Appointment struct {
	ID             string
	UserID         string
	ServiceID      string // empty when no catalog service was chosen
	Subject        string
	Message        string
	PreferredAt    string
	PreferredLocal string
	ZoneName       string
	Status         Status
	Version        int64
	ResultRef      string
	CreatedAt      time.Time
}
