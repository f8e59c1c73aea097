package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const planColumns = `id, name, description, price_cents, max_participants, commission_percent, active, created_at, updated_at`

// Repository defines plan data access
type Repository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	List(ctx context.Context, onlyActive bool) ([]*Plan, error)
	Update(ctx context.Context, p *Plan) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates plan repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Plan) error {
	query := `
		INSERT INTO plans (id, name, description, price_cents, max_participants, commission_percent, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.PriceCents, p.MaxParticipants, p.CommissionPercent, p.Active,
	)
	if err != nil {
		return fmt.Errorf("plan repository create: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	var p Plan
	err := r.db.GetContext(ctx, &p, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("plan repository get: %w", err)
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, onlyActive bool) ([]*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if onlyActive {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY created_at`

	plans := make([]*Plan, 0)
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("plan repository list: %w", err)
	}
	return plans, nil
}

func (r *repository) Update(ctx context.Context, p *Plan) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE plans
		SET name = $2, description = $3, price_cents = $4, max_participants = $5,
		    commission_percent = $6, active = $7, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.PriceCents, p.MaxParticipants, p.CommissionPercent, p.Active)
	if err != nil {
		return fmt.Errorf("plan repository update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("plan repository update: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
