package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	// Record inserts the payment if it is not known yet and returns the
	// stored row. Unique on (provider, external_id); a redelivered event
	// returns the existing row untouched.
	Record(ctx context.Context, p *Payment) (*Payment, error)

	// MarkConfirmed transitions pending -> confirmed. Returns true only
	// for the caller that performed the transition.
	MarkConfirmed(ctx context.Context, provider Provider, externalID string) (bool, error)

	GetByExternalID(ctx context.Context, provider Provider, externalID string) (*Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates payment repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Record(ctx context.Context, p *Payment) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO payments (id, provider, external_id, user_id, plan_id, group_id, amount_cents, referral_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		ON CONFLICT (provider, external_id) DO NOTHING
	`, p.ID, string(p.Provider), p.ExternalID, p.UserID, p.PlanID, p.GroupID, p.AmountCents, p.ReferralCode)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return nil, fmt.Errorf("%w: record payment (%s)", ErrInternal, pqErr.Code)
		}
		return nil, fmt.Errorf("%w: record payment", ErrInternal)
	}

	return r.GetByExternalID(ctx, p.Provider, p.ExternalID)
}

func (r *repository) MarkConfirmed(ctx context.Context, provider Provider, externalID string) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		UPDATE payments
		SET status = 'confirmed', confirmed_at = now()
		WHERE provider = $1 AND external_id = $2 AND status = 'pending'
	`, string(provider), externalID)
	if err != nil {
		return false, fmt.Errorf("%w: confirm payment", ErrInternal)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: confirm payment", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) GetByExternalID(ctx context.Context, provider Provider, externalID string) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payment
	err := r.db.GetContext(ctx2, &p, `
		SELECT id, provider, external_id, user_id, plan_id, group_id, amount_cents, referral_code, status, confirmed_at, created_at
		FROM payments
		WHERE provider = $1 AND external_id = $2
	`, string(provider), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payment", ErrInternal)
	}
	return &p, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	payments := []*Payment{}
	err := r.db.SelectContext(ctx2, &payments, `
		SELECT id, provider, external_id, user_id, plan_id, group_id, amount_cents, referral_code, status, confirmed_at, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments", ErrInternal)
	}
	return payments, nil
}
