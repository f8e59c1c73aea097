package referral

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
	Create(ctx context.Context, c *Commission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Commission, error)

	// FindByPurchase returns the commission tied to a referred user's
	// purchase regardless of status, or ErrNotFound. Confirmation must see
	// already-confirmed commissions so a redelivery can retry the credit.
	FindByPurchase(ctx context.Context, referredUserID uuid.UUID, paymentRef string) (*Commission, error)

	// Confirm transitions pending -> confirmed. Returns true only for the
	// caller that performed the transition; a redelivered confirmation
	// returns false with no error.
	Confirm(ctx context.Context, id uuid.UUID) (bool, error)

	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Commission, error)
	StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (*Stats, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates referral repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, c *Commission) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO referral_commissions
			(id, referrer_id, referred_user_id, plan_id, flow, base_cents, percent, amount_cents, status, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.ReferrerID, c.ReferredUserID, c.PlanID, string(c.Flow), c.BaseCents, c.Percent, c.AmountCents, string(c.Status), c.PaymentRef)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Unique (referred_user_id, payment_ref): a redelivered webhook
			// already recorded this commission.
			return nil
		}
		return fmt.Errorf("%w: insert commission", ErrInternal)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Commission, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Commission
	err := r.db.GetContext(ctx2, &c, `
		SELECT id, referrer_id, referred_user_id, plan_id, flow, base_cents, percent,
		       amount_cents, status, payment_ref, confirmed_at, created_at
		FROM referral_commissions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get commission", ErrInternal)
	}
	return &c, nil
}

func (r *repository) FindByPurchase(ctx context.Context, referredUserID uuid.UUID, paymentRef string) (*Commission, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Commission
	err := r.db.GetContext(ctx2, &c, `
		SELECT id, referrer_id, referred_user_id, plan_id, flow, base_cents, percent,
		       amount_cents, status, payment_ref, confirmed_at, created_at
		FROM referral_commissions
		WHERE referred_user_id = $1 AND payment_ref = $2
		LIMIT 1
	`, referredUserID, paymentRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find commission", ErrInternal)
	}
	return &c, nil
}

// Confirm relies on the status guard in the WHERE clause so two concurrent
// deliveries cannot both observe the transition.
func (r *repository) Confirm(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		UPDATE referral_commissions
		SET status = 'confirmed', confirmed_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("%w: confirm commission", ErrInternal)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: confirm commission", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Commission, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	commissions := []*Commission{}
	err := r.db.SelectContext(ctx2, &commissions, `
		SELECT id, referrer_id, referred_user_id, plan_id, flow, base_cents, percent,
		       amount_cents, status, payment_ref, confirmed_at, created_at
		FROM referral_commissions
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, referrerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list commissions", ErrInternal)
	}
	return commissions, nil
}

func (r *repository) StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (*Stats, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Stats
	err := r.db.GetContext(ctx2, &s, `
		SELECT
			COUNT(DISTINCT referred_user_id)                                         AS referred_count,
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'pending'), 0)         AS pending_cents,
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'confirmed'), 0)       AS confirmed_cents,
			COUNT(*) FILTER (WHERE status = 'pending')                               AS pending_commissions,
			COUNT(*) FILTER (WHERE status = 'confirmed')                             AS confirmed_commissions
		FROM referral_commissions
		WHERE referrer_id = $1
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("%w: referral stats", ErrInternal)
	}
	return &s, nil
}
