package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/merodias-lab/clinic/services/appointment-service/internal/schedule"
)

// Tx is the transactional view of the store. All reads and writes inside
// one Manager operation happen through a single Tx so the
// read-validate-write sequence is atomic per appointment.
type Tx interface {
	// GetAppointmentForUpdate loads the row and holds a lock on it for
	// the remainder of the transaction.
	GetAppointmentForUpdate(ctx context.Context, id string) (Appointment, error)
	// UpdateStatus writes the new status conditionally on the version
	// observed at read time and bumps the version.
	UpdateStatus(ctx context.Context, id string, status Status, expectedVersion int64) (Appointment, error)
	// AttachResultRef stores the document reference and forces the
	// status to completed in the same statement.
	AttachResultRef(ctx context.Context, id string, ref string, expectedVersion int64) (Appointment, error)
}

// Store is the persistence collaborator. A non-empty idemKey asks the
// store to claim the (user, key) pair and persist the appointment in
// one transaction; a replayed key returns the originally booked
// appointment instead of inserting a second row.
type Store interface {
	CreateAppointment(ctx context.Context, a Appointment, idemKey string) (Appointment, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Catalog validates submitted service references.
type Catalog interface {
	ServiceExists(ctx context.Context, id string) (bool, error)
}

// Manager owns the appointment state machine and the role rules gating
// each transition. It never re-validates business hours; the moment it
// receives must already have passed normalization.
type Manager struct {
	store     Store
	catalog   Catalog
	opTimeout time.Duration
}

func NewManager(store Store, catalog Catalog, opTimeout time.Duration) *Manager {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Manager{store: store, catalog: catalog, opTimeout: opTimeout}
}

type CreateInput struct {
	ServiceRef     string
	Subject        string
	Message        string
	PreferredAt    string // offset-qualified instant
	PreferredLocal string
	ZoneName       string
	IdempotencyKey string
}

// Create books a new appointment for the principal in the pending state.
func (m *Manager) Create(ctx context.Context, p Principal, in CreateInput) (Appointment, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return Appointment{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	moment, err := schedule.ParseMoment(in.PreferredAt)
	if err != nil {
		return Appointment{}, fmt.Errorf("%w: preferred time is missing or unparseable", ErrInvalidInput)
	}
	// The operation timeout bounds the catalog lookup too, not just the
	// insert.
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if in.ServiceRef != "" {
		ok, err := m.catalog.ServiceExists(ctx, in.ServiceRef)
		if err != nil {
			return Appointment{}, mapStoreErr(err)
		}
		if !ok {
			return Appointment{}, ErrServiceNotFound
		}
	}

	appt := Appointment{
		ID:             uuid.NewString(),
		UserID:         p.ID,
		ServiceID:      in.ServiceRef,
		Subject:        strings.TrimSpace(in.Subject),
		Message:        strings.TrimSpace(in.Message),
		PreferredAt:    moment.OffsetInstant(),
		PreferredLocal: in.PreferredLocal,
		ZoneName:       in.ZoneName,
		Status:         StatusPending,
		Version:        1,
		CreatedAt:      time.Now().UTC(),
	}

	created, err := m.store.CreateAppointment(ctx, appt, in.IdempotencyKey)
	if err != nil {
		return Appointment{}, mapStoreErr(err)
	}
	return created, nil
}

// Transition moves an appointment to the target status after checking
// the transition table and the caller's authorization, in that order, so
// an impossible transition reports ErrIllegalTransition regardless of
// role.
func (m *Manager) Transition(ctx context.Context, p Principal, id string, target Status) (Appointment, error) {
	if !target.Valid() || target == StatusPending {
		return Appointment{}, ErrIllegalTransition
	}

	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	var out Appointment
	err := m.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(appt.Status, target) {
			return ErrIllegalTransition
		}
		if err := authorizeTransition(p, appt, target); err != nil {
			return err
		}
		out, err = tx.UpdateStatus(ctx, id, target, appt.Version)
		return err
	})
	if err != nil {
		return Appointment{}, mapStoreErr(err)
	}
	return out, nil
}

// AttachResult stores a result document reference and completes the
// appointment in one atomic step. Upload implies completion, even from
// pending. Admin only.
func (m *Manager) AttachResult(ctx context.Context, p Principal, id string, documentRef string) (Appointment, error) {
	if !p.IsAdmin() {
		return Appointment{}, ErrForbidden
	}
	if strings.TrimSpace(documentRef) == "" {
		return Appointment{}, fmt.Errorf("%w: document reference is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	var out Appointment
	err := m.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out, err = tx.AttachResultRef(ctx, id, strings.TrimSpace(documentRef), appt.Version)
		return err
	})
	if err != nil {
		return Appointment{}, mapStoreErr(err)
	}
	return out, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreTimeout
	}
	return err
}
