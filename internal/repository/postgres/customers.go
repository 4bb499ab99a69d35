package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/outreach-engine/internal/domain"
)

// CustomerRepo persists WhatsApp contacts. Customers are never deleted,
// only tagged; the upsert keeps the newest name and interaction time.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer store.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) Get(ctx context.Context, id string) (*domain.Customer, error) {
	c := &domain.Customer{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, COALESCE(name, ''), tags, created_at, last_interaction_at
		FROM customers
		WHERE id = $1
	`, domain.NormalizePhone(id)).Scan(
		&c.ID, &c.Phone, &c.Name, pq.Array(&c.Tags), &c.CreatedAt, &c.LastInteractionAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepo) Upsert(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, phone, name, tags, created_at, last_interaction_at)
		VALUES ($1, $2, $3, '{}', NOW(), $4)
		ON CONFLICT (id) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name),
		    last_interaction_at = GREATEST(customers.last_interaction_at, EXCLUDED.last_interaction_at)
	`, c.ID, c.Phone, c.Name, c.LastInteractionAt)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// AddTag appends the tag unless the customer already carries it.
func (r *CustomerRepo) AddTag(ctx context.Context, customerID, tag string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET tags = array_append(tags, $2)
		WHERE id = $1 AND NOT ($2 = ANY(tags))
	`, domain.NormalizePhone(customerID), tag)
	if err != nil {
		return fmt.Errorf("add customer tag: %w", err)
	}
	return nil
}
