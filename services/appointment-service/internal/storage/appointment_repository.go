package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/merodias-lab/clinic/libs/db"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/lifecycle"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/outbox"
)

// AppointmentRepository persists appointments and writes the matching
// outbox event inside the same transaction as every state change.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	idem   *IdempotencyRepository
}

func NewAppointmentRepository(pool *db.Pool, ob *outbox.Repository, idem *IdempotencyRepository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: ob, idem: idem}
}

const apptColumns = `
	id::text, user_id::text, COALESCE(service_id::text, ''), subject, message,
	preferred_at, preferred_local, COALESCE(tz_name, ''), status, version,
	COALESCE(result_ref, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (lifecycle.Appointment, error) {
	var a lifecycle.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ServiceID,
		&a.Subject,
		&a.Message,
		&a.PreferredAt,
		&a.PreferredLocal,
		&a.ZoneName,
		&status,
		&a.Version,
		&a.ResultRef,
		&a.CreatedAt,
	)
	if err != nil {
		return lifecycle.Appointment{}, err
	}
	a.Status, _ = lifecycle.ParseStatus(status)
	return a, nil
}

// CreateAppointment inserts the appointment and its outbox event. When
// idemKey is non-empty the (user, key) claim, the insert and the key
// finalize share the transaction, so a crash leaves either a fully
// recorded booking or nothing, never an orphaned appointment a retry
// would duplicate. A replayed key returns the appointment booked by the
// first request.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, a lifecycle.Appointment, idemKey string) (lifecycle.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return lifecycle.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idemKey != "" {
		rec, replay, err := r.idem.Lock(ctx, tx, a.UserID, idemKey)
		if err != nil {
			return lifecycle.Appointment{}, err
		}
		if replay {
			existing, err := getAppointmentTx(ctx, tx, rec.AppointmentID)
			if err != nil {
				return lifecycle.Appointment{}, err
			}
			return existing, tx.Commit(ctx)
		}
	}

	var serviceID any
	if a.ServiceID != "" {
		serviceID = a.ServiceID
	}
	a, err = scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, user_id, service_id, subject, message, preferred_at, preferred_local, tz_name, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+apptColumns,
		a.ID, a.UserID, serviceID, a.Subject, a.Message,
		a.PreferredAt, a.PreferredLocal, a.ZoneName, string(a.Status), a.Version,
	))
	if IsUniqueViolation(err) {
		return lifecycle.Appointment{}, lifecycle.ErrConflict
	}
	if err != nil {
		return lifecycle.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": a.ID,
		"user_id":        a.UserID,
		"service_id":     a.ServiceID,
		"preferred_at":   a.PreferredAt,
		"status":         a.Status,
	})
	if err != nil {
		return lifecycle.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.EventAppointmentCreated,
		Payload:       payload,
	}); err != nil {
		return lifecycle.Appointment{}, err
	}
	if idemKey != "" {
		if err := r.idem.Finalize(ctx, tx, a.UserID, idemKey, a.ID); err != nil {
			return lifecycle.Appointment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return lifecycle.Appointment{}, err
	}
	return a, nil
}

func getAppointmentTx(ctx context.Context, tx pgx.Tx, id string) (lifecycle.Appointment, error) {
	a, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if IsNotFound(err) {
		return lifecycle.Appointment{}, lifecycle.ErrNotFound
	}
	return a, err
}

// InTx runs fn against a transactional view. The row lock taken by
// GetAppointmentForUpdate holds until commit, so read-validate-write is
// serialized per appointment.
func (r *AppointmentRepository) InTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&apptTx{tx: tx, outbox: r.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type apptTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *apptTx) GetAppointmentForUpdate(ctx context.Context, id string) (lifecycle.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if IsNotFound(err) {
		return lifecycle.Appointment{}, lifecycle.ErrNotFound
	}
	return a, err
}

func (t *apptTx) UpdateStatus(ctx context.Context, id string, status lifecycle.Status, expectedVersion int64) (lifecycle.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, version = version + 1
		WHERE id = $1 AND version = $3
		RETURNING `+apptColumns,
		id, string(status), expectedVersion))
	if errors.Is(err, pgx.ErrNoRows) {
		// Row exists under our lock, so a missing match means the
		// version moved.
		return lifecycle.Appointment{}, lifecycle.ErrConflict
	}
	if err != nil {
		return lifecycle.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": a.ID,
		"status":         a.Status,
		"version":        a.Version,
	})
	if err != nil {
		return lifecycle.Appointment{}, err
	}
	if err := t.outbox.Insert(ctx, t.tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.EventAppointmentStatusChanged,
		Payload:       payload,
	}); err != nil {
		return lifecycle.Appointment{}, err
	}
	return a, nil
}

func (t *apptTx) AttachResultRef(ctx context.Context, id string, ref string, expectedVersion int64) (lifecycle.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET result_ref = $2, status = $3, version = version + 1
		WHERE id = $1 AND version = $4
		RETURNING `+apptColumns,
		id, ref, string(lifecycle.StatusCompleted), expectedVersion))
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.Appointment{}, lifecycle.ErrConflict
	}
	if err != nil {
		return lifecycle.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": a.ID,
		"result_ref":     a.ResultRef,
		"status":         a.Status,
		"version":        a.Version,
	})
	if err != nil {
		return lifecycle.Appointment{}, err
	}
	if err := t.outbox.Insert(ctx, t.tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.EventAppointmentResultAttached,
		Payload:       payload,
	}); err != nil {
		return lifecycle.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]lifecycle.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListAll returns appointments across all users, optionally filtered by
// status. Admin views only.
func (r *AppointmentRepository) ListAll(ctx context.Context, status lifecycle.Status, limit int) ([]lifecycle.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+apptColumns+`
			FROM appointments
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+apptColumns+`
			FROM appointments
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, string(status), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListBookedTimes returns the "HH:MM" clock times already taken on a
// calendar date (YYYY-MM-DD). Cancelled appointments free their slot.
// preferred_at is the offset-qualified text instant, so the date is its
// first 10 bytes and the clock time bytes 12-16.
func (r *AppointmentRepository) ListBookedTimes(ctx context.Context, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT substr(preferred_at, 12, 5)
		FROM appointments
		WHERE substr(preferred_at, 1, 10) = $1
		  AND status IN ($2, $3)
	`, date, string(lifecycle.StatusPending), string(lifecycle.StatusConfirmed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return times, nil
}

func collectAppointments(rows pgx.Rows) ([]lifecycle.Appointment, error) {
	var appts []lifecycle.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
