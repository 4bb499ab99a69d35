package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ledger"
)

// DecisionRepo persists the append-only decision log and implements the
// engine's transactional commit.
type DecisionRepo struct{ db *sql.DB }

// NewDecisionRepo creates a Postgres-backed decision store.
func NewDecisionRepo(db *sql.DB) *DecisionRepo { return &DecisionRepo{db: db} }

// Commit appends the decision, applies the ledger transition conditional on
// the entry version, and seeds a pending dispatch record when the strategy
// sends a message. One transaction: either all three land or none do.
func (r *DecisionRepo) Commit(ctx context.Context, decision *domain.Decision, entry *domain.LeadEntry, to domain.LeadState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE lead_entries
		SET state = $1, version = version + 1, last_inquiry_at = $2, updated_at = NOW()
		WHERE customer_id = $3 AND product_id = $4 AND version = $5
	`, to, entry.LastInquiryAt, entry.CustomerID, entry.ProductID, entry.Version)
	if err != nil {
		return fmt.Errorf("commit ledger transition: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO decisions
			(id, customer_id, product_id, strategy, conversion_probability,
			 old_price, new_price, reasoning, retarget, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, decision.ID, decision.CustomerID, decision.ProductID, decision.Strategy,
		decision.ConversionProbability, decision.OldPrice, decision.NewPrice,
		decision.Reasoning, decision.Retarget, decision.CreatedAt); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	if decision.Strategy.RequiresDispatch() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dispatch_records (decision_id, customer_id, status, attempts, created_at)
			VALUES ($1, $2, 'pending', 0, $3)
		`, decision.ID, decision.CustomerID, decision.CreatedAt); err != nil {
			return fmt.Errorf("insert dispatch record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}

	entry.State = to
	entry.Version++
	return nil
}

// GetDecision loads one decision by id.
func (r *DecisionRepo) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	d := &domain.Decision{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, product_id, strategy, conversion_probability,
		       old_price, new_price, reasoning, retarget, created_at
		FROM decisions
		WHERE id = $1
	`, id).Scan(
		&d.ID, &d.CustomerID, &d.ProductID, &d.Strategy, &d.ConversionProbability,
		&d.OldPrice, &d.NewPrice, &d.Reasoning, &d.Retarget, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return d, nil
}

// Recent returns the newest decisions, newest first.
func (r *DecisionRepo) Recent(ctx context.Context, limit int) ([]*domain.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, product_id, strategy, conversion_probability,
		       old_price, new_price, reasoning, retarget, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Decision
	for rows.Next() {
		d := &domain.Decision{}
		if err := rows.Scan(
			&d.ID, &d.CustomerID, &d.ProductID, &d.Strategy, &d.ConversionProbability,
			&d.OldPrice, &d.NewPrice, &d.Reasoning, &d.Retarget, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
