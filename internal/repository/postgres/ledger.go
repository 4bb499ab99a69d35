// Package postgres implements the persistence interfaces against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ledger"
)

// LedgerRepo implements ledger.Repository. Every write is conditional on the
// stored version; RowsAffected=0 surfaces as ledger.ErrConflict so callers
// reload instead of clobbering a concurrent update.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a Postgres-backed lead ledger.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

const leadColumns = `customer_id, product_id, state, version, last_inquiry_at, last_dispatch_at, purchased, created_at, updated_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*domain.LeadEntry, error) {
	e := &domain.LeadEntry{}
	var lastDispatch sql.NullTime
	err := row.Scan(
		&e.CustomerID, &e.ProductID, &e.State, &e.Version,
		&e.LastInquiryAt, &lastDispatch, &e.Purchased, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastDispatch.Valid {
		t := lastDispatch.Time
		e.LastDispatchAt = &t
	}
	return e, nil
}

func (r *LedgerRepo) Get(ctx context.Context, customerID, productID string) (*domain.LeadEntry, error) {
	entry, err := scanLead(r.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+`
		FROM lead_entries
		WHERE customer_id = $1 AND product_id = $2
	`, customerID, productID))
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead entry: %w", err)
	}
	return entry, nil
}

func (r *LedgerRepo) Create(ctx context.Context, entry *domain.LeadEntry) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_entries
			(customer_id, product_id, state, version, last_inquiry_at, purchased, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, false, NOW(), NOW())
		ON CONFLICT (customer_id, product_id) DO NOTHING
	`, entry.CustomerID, entry.ProductID, entry.State, entry.LastInquiryAt)
	if err != nil {
		return fmt.Errorf("create lead entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrConflict
	}
	entry.Version = 1
	return nil
}

func (r *LedgerRepo) Transition(ctx context.Context, entry *domain.LeadEntry, to domain.LeadState) error {
	if err := ledger.CheckTransition(entry.State, to); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE lead_entries
		SET state = $1, version = version + 1, updated_at = NOW()
		WHERE customer_id = $2 AND product_id = $3 AND version = $4
	`, to, entry.CustomerID, entry.ProductID, entry.Version)
	if err != nil {
		return fmt.Errorf("transition lead entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrConflict
	}
	entry.State = to
	entry.Version++
	return nil
}

func (r *LedgerRepo) TouchDispatch(ctx context.Context, entry *domain.LeadEntry, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lead_entries
		SET last_dispatch_at = $1, version = version + 1, updated_at = NOW()
		WHERE customer_id = $2 AND product_id = $3 AND version = $4
	`, at, entry.CustomerID, entry.ProductID, entry.Version)
	if err != nil {
		return fmt.Errorf("touch dispatch: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrConflict
	}
	entry.Version++
	entry.LastDispatchAt = &at
	return nil
}

func (r *LedgerRepo) StaleInquired(ctx context.Context, graceCutoff, windowCutoff time.Time, limit int) ([]*domain.LeadEntry, error) {
	return r.list(ctx, `
		SELECT `+leadColumns+`
		FROM lead_entries
		WHERE state = 'inquired' AND last_inquiry_at < $1 AND last_inquiry_at >= $2
		ORDER BY last_inquiry_at ASC
		LIMIT $3
	`, graceCutoff, windowCutoff, limit)
}

func (r *LedgerRepo) GhostsWithin(ctx context.Context, windowCutoff time.Time, limit int) ([]*domain.LeadEntry, error) {
	return r.list(ctx, `
		SELECT `+leadColumns+`
		FROM lead_entries
		WHERE state = 'ghost' AND last_inquiry_at >= $1
		ORDER BY last_inquiry_at ASC
		LIMIT $2
	`, windowCutoff, limit)
}

func (r *LedgerRepo) Expired(ctx context.Context, windowCutoff time.Time, limit int) ([]*domain.LeadEntry, error) {
	return r.list(ctx, `
		SELECT `+leadColumns+`
		FROM lead_entries
		WHERE state NOT IN ('new', 'converted', 'lost')
		  AND last_inquiry_at > to_timestamp(0) AND last_inquiry_at < $1
		ORDER BY last_inquiry_at ASC
		LIMIT $2
	`, windowCutoff, limit)
}

func (r *LedgerRepo) list(ctx context.Context, query string, args ...interface{}) ([]*domain.LeadEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lead entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.LeadEntry
	for rows.Next() {
		entry, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
