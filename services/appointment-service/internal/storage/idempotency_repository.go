package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/merodias-lab/clinic/libs/db"
)

// IdempotencyRecord remembers which appointment a (user, Idempotency-Key)
// pair booked. Replays resolve to that appointment instead of inserting
// a second row.
type IdempotencyRecord struct {
	UserID         string
	IdempotencyKey string
	AppointmentID  string
}

type IdempotencyRepository struct {
	pool *db.Pool
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Lock claims the key for this request inside the caller's transaction.
// The returned bool is true when a previous request already finalized an
// appointment for the key. The row lock serializes concurrent requests
// carrying the same key.
func (r *IdempotencyRepository) Lock(ctx context.Context, tx pgx.Tx, userID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectForUpdate(ctx, tx, userID, key)
	if err == nil {
		return rec, rec.AppointmentID != "", nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_idempotency_keys (user_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`, userID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectForUpdate(ctx, tx, userID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, rec.AppointmentID != "", nil
}

// Finalize binds the key to the appointment it booked. It must run in
// the same transaction as the appointment insert so the two commit
// together.
func (r *IdempotencyRepository) Finalize(ctx context.Context, tx pgx.Tx, userID, key, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointment_idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key, appointmentID)
	return err
}

func (r *IdempotencyRepository) selectForUpdate(ctx context.Context, tx pgx.Tx, userID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := tx.QueryRow(ctx, `
		SELECT user_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, '')
		FROM appointment_idempotency_keys
		WHERE user_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, userID, key).Scan(
		&rec.UserID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	return rec, nil
}
