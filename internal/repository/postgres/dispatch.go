package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/outreach-engine/internal/dispatch"
	"github.com/ignite/outreach-engine/internal/domain"
)

// DispatchRepo implements dispatch.Repository. MarkSent is the at-most-once
// guard: the conditional update means only one caller ever flips a record
// to sent, no matter how many workers race.
type DispatchRepo struct{ db *sql.DB }

// NewDispatchRepo creates a Postgres-backed dispatch record store.
func NewDispatchRepo(db *sql.DB) *DispatchRepo { return &DispatchRepo{db: db} }

const dispatchColumns = `decision_id, customer_id, status, attempts, last_attempt_at, COALESCE(last_error, ''), COALESCE(provider_message_id, ''), created_at`

func scanDispatch(row interface{ Scan(...interface{}) error }) (*domain.DispatchRecord, error) {
	rec := &domain.DispatchRecord{}
	var lastAttempt sql.NullTime
	err := row.Scan(
		&rec.DecisionID, &rec.CustomerID, &rec.Status, &rec.Attempts,
		&lastAttempt, &rec.LastError, &rec.ProviderMessageID, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		rec.LastAttemptAt = &t
	}
	return rec, nil
}

func (r *DispatchRepo) Get(ctx context.Context, decisionID string) (*domain.DispatchRecord, error) {
	rec, err := scanDispatch(r.db.QueryRowContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatch_records
		WHERE decision_id = $1
	`, decisionID))
	if err == sql.ErrNoRows {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispatch record: %w", err)
	}
	return rec, nil
}

func (r *DispatchRepo) MarkSent(ctx context.Context, decisionID, providerMessageID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_records
		SET status = 'sent', provider_message_id = $2, attempts = attempts + 1, last_attempt_at = $3
		WHERE decision_id = $1 AND status <> 'sent'
	`, decisionID, providerMessageID, at)
	if err != nil {
		return false, fmt.Errorf("mark dispatch sent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *DispatchRepo) MarkFailed(ctx context.Context, decisionID, reason string, at time.Time, dead bool) error {
	status := domain.DispatchFailed
	if dead {
		status = domain.DispatchDeadLetter
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_records
		SET status = $2, attempts = attempts + 1, last_error = $3, last_attempt_at = $4
		WHERE decision_id = $1 AND status <> 'sent'
	`, decisionID, status, reason, at)
	if err != nil {
		return fmt.Errorf("mark dispatch failed: %w", err)
	}
	return nil
}

// ClaimDue claims pending and retryable failed records whose exponential
// backoff has elapsed. SKIP LOCKED keeps concurrent workers from draining
// the same batch; stamping last_attempt_at inside the claim keeps a record
// from being re-claimed before its next backoff.
func (r *DispatchRepo) ClaimDue(ctx context.Context, now time.Time, baseBackoff time.Duration, limit int) ([]*domain.DispatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE dispatch_records
		SET last_attempt_at = $1
		WHERE decision_id IN (
			SELECT decision_id
			FROM dispatch_records
			WHERE status IN ('pending', 'failed')
			  AND (last_attempt_at IS NULL
			       OR last_attempt_at + (interval '1 second' * $2 * power(2, attempts)) <= $1)
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+dispatchColumns,
		now, int(baseBackoff.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due dispatches: %w", err)
	}
	defer rows.Close()

	var out []*domain.DispatchRecord
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispatch record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *DispatchRepo) DeadLetters(ctx context.Context, limit int) ([]*domain.DispatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatch_records
		WHERE status = 'dead_letter'
		ORDER BY last_attempt_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*domain.DispatchRecord
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
