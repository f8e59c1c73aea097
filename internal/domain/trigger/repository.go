package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	// CreateForMembership inserts one row per milestone, scheduled
	// relative to joinedAt. Unique (user_id, group_id, trigger_type);
	// re-running for the same membership is a no-op.
	CreateForMembership(ctx context.Context, userID, groupID uuid.UUID, joinedAt time.Time) error

	// ListDue returns unexecuted triggers whose scheduled time has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Trigger, error)

	// MarkExecuted flips executed false -> true. Returns true only for
	// the caller that performed the flip.
	MarkExecuted(ctx context.Context, id uuid.UUID) (bool, error)

	// ListStaleMemberships finds participants of still-forming groups
	// created before cutoff whose 180-day trigger never executed.
	ListStaleMemberships(ctx context.Context, cutoff time.Time) ([]*StaleMembership, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates trigger repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateForMembership(ctx context.Context, userID, groupID uuid.UUID, joinedAt time.Time) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	for _, m := range Milestones {
		_, err := tx.ExecContext(ctx2, `
			INSERT INTO notification_triggers (id, user_id, group_id, trigger_type, scheduled_for, executed)
			VALUES ($1, $2, $3, $4, $5, false)
			ON CONFLICT (user_id, group_id, trigger_type) DO NOTHING
		`, uuid.New(), userID, groupID, string(m), joinedAt.Add(m.Offset()))
		if err != nil {
			return fmt.Errorf("%w: insert %s trigger", ErrInternal, m)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit triggers", ErrInternal)
	}
	return nil
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]*Trigger, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	triggers := []*Trigger{}
	err := r.db.SelectContext(ctx2, &triggers, `
		SELECT id, user_id, group_id, trigger_type, scheduled_for, executed, executed_at, created_at
		FROM notification_triggers
		WHERE executed = false AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list due triggers", ErrInternal)
	}
	return triggers, nil
}

// MarkExecuted relies on the executed = false guard so two overlapping
// sweeps cannot both claim the trigger.
func (r *repository) MarkExecuted(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		UPDATE notification_triggers
		SET executed = true, executed_at = now()
		WHERE id = $1 AND executed = false
	`, id)
	if err != nil {
		return false, fmt.Errorf("%w: mark executed", ErrInternal)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: mark executed", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) ListStaleMemberships(ctx context.Context, cutoff time.Time) ([]*StaleMembership, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	memberships := []*StaleMembership{}
	err := r.db.SelectContext(ctx2, &memberships, `
		SELECT gp.group_id, gp.user_id, gp.amount_paid_cents
		FROM group_participants gp
		JOIN groups g ON g.id = gp.group_id
		WHERE g.status = 'forming'
		  AND g.created_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM notification_triggers nt
			WHERE nt.user_id = gp.user_id
			  AND nt.group_id = gp.group_id
			  AND nt.trigger_type = '180_days'
			  AND nt.executed = true
		  )
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: list stale memberships", ErrInternal)
	}
	return memberships, nil
}
