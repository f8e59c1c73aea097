package group

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

const groupColumns = `id, plan_id, group_number, status, current_participants, max_participants, contemplated_at, created_at, updated_at`

// Repository defines group data access
type Repository interface {
	// JoinOrCreate adds the user to the oldest forming non-full group for the
	// plan, creating a new group when none is open. Participant insert and
	// counter increment commit together.
	JoinOrCreate(ctx context.Context, planID, userID uuid.UUID, amountPaidCents int64, maxParticipants int, paid bool) (*Group, *Participant, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Group, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Group, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error)
	GetParticipant(ctx context.Context, groupID, participantID uuid.UUID) (*Participant, error)
	GetParticipantByUser(ctx context.Context, groupID, userID uuid.UUID) (*Participant, error)

	// MarkParticipantPaid transitions a pending participant to active.
	MarkParticipantPaid(ctx context.Context, groupID, userID uuid.UUID) error

	// MarkContemplated marks the participant as the single winner and moves
	// the group forming -> contemplated. First writer wins; any later call
	// fails with ErrAlreadyContemplated.
	MarkContemplated(ctx context.Context, groupID, participantID uuid.UUID) error

	// Complete finalizes a contemplated group (contemplated -> completed).
	Complete(ctx context.Context, groupID uuid.UUID) error

	// ExpireConvert transitions forming -> expired_converted. Returns true
	// only for the caller that performed the transition.
	ExpireConvert(ctx context.Context, groupID uuid.UUID) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates group repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) JoinOrCreate(ctx context.Context, planID, userID uuid.UUID, amountPaidCents int64, maxParticipants int, paid bool) (*Group, *Participant, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	// Lock the oldest open group for the plan so two concurrent buyers
	// cannot both take the last slot.
	var g Group
	err = tx.GetContext(ctx2, &g, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE plan_id = $1 AND status = 'forming' AND current_participants < max_participants
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, planID)
	if errors.Is(err, sql.ErrNoRows) {
		g = Group{
			ID:              uuid.New(),
			PlanID:          planID,
			Status:          StatusForming,
			MaxParticipants: maxParticipants,
		}
		err = tx.GetContext(ctx2, &g.GroupNumber, `
			SELECT COALESCE(MAX(group_number), 0) + 1 FROM groups WHERE plan_id = $1
		`, planID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: next group number", ErrInternal)
		}
		if _, err = tx.ExecContext(ctx2, `
			INSERT INTO groups (id, plan_id, group_number, status, current_participants, max_participants)
			VALUES ($1, $2, $3, 'forming', 0, $4)
		`, g.ID, planID, g.GroupNumber, maxParticipants); err != nil {
			return nil, nil, fmt.Errorf("%w: create group", ErrInternal)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("%w: find open group", ErrInternal)
	}

	p := &Participant{
		ID:              uuid.New(),
		GroupID:         g.ID,
		UserID:          userID,
		AmountPaidCents: amountPaidCents,
		Status:          ParticipantPending,
		JoinedAt:        time.Now(),
	}
	if paid {
		p.Status = ParticipantActive
	}

	if _, err = tx.ExecContext(ctx2, `
		INSERT INTO group_participants (id, group_id, user_id, amount_paid_cents, status)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.GroupID, p.UserID, p.AmountPaidCents, string(p.Status)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, nil, ErrAlreadyMember
		}
		return nil, nil, fmt.Errorf("%w: insert participant", ErrInternal)
	}

	// Conditional increment keeps the capacity invariant even if the lock
	// above is ever bypassed.
	result, err := tx.ExecContext(ctx2, `
		UPDATE groups
		SET current_participants = current_participants + 1, updated_at = now()
		WHERE id = $1 AND current_participants < max_participants
	`, g.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: increment participants", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return nil, nil, ErrGroupFull
	}
	g.CurrentParticipants++

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return &g, p, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	var g Group
	err := r.db.GetContext(ctx, &g, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("%w: get group", ErrInternal)
	}
	return &g, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Group, error) {
	groups := make([]*Group, 0)
	err := r.db.SelectContext(ctx, &groups, `
		SELECT g.id, g.plan_id, g.group_number, g.status, g.current_participants,
		       g.max_participants, g.contemplated_at, g.created_at, g.updated_at
		FROM groups g
		JOIN group_participants gp ON gp.group_id = g.id
		WHERE gp.user_id = $1
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list groups by user", ErrInternal)
	}
	return groups, nil
}

func (r *repository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error) {
	members := make([]*Member, 0)
	err := r.db.SelectContext(ctx, &members, `
		SELECT gp.id, gp.group_id, gp.user_id, gp.amount_paid_cents, gp.status, gp.joined_at,
		       u.name, u.email
		FROM group_participants gp
		JOIN users u ON u.id = gp.user_id
		WHERE gp.group_id = $1
		ORDER BY gp.joined_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: list members", ErrInternal)
	}
	return members, nil
}

func (r *repository) GetParticipant(ctx context.Context, groupID, participantID uuid.UUID) (*Participant, error) {
	var p Participant
	err := r.db.GetContext(ctx, &p, `
		SELECT id, group_id, user_id, amount_paid_cents, status, joined_at
		FROM group_participants
		WHERE group_id = $1 AND id = $2
	`, groupID, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("%w: get participant", ErrInternal)
	}
	return &p, nil
}

func (r *repository) GetParticipantByUser(ctx context.Context, groupID, userID uuid.UUID) (*Participant, error) {
	var p Participant
	err := r.db.GetContext(ctx, &p, `
		SELECT id, group_id, user_id, amount_paid_cents, status, joined_at
		FROM group_participants
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("%w: get participant by user", ErrInternal)
	}
	return &p, nil
}

func (r *repository) MarkParticipantPaid(ctx context.Context, groupID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE group_participants
		SET status = 'active'
		WHERE group_id = $1 AND user_id = $2 AND status = 'pending'
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("%w: mark participant paid", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		// Already active or contemplated: payment redelivery is a no-op.
		return nil
	}
	return nil
}

func (r *repository) MarkContemplated(ctx context.Context, groupID, participantID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	// Single-winner guard: the update only applies while no other
	// participant of the group holds contemplated status.
	result, err := tx.ExecContext(ctx2, `
		UPDATE group_participants
		SET status = 'contemplated'
		WHERE id = $2 AND group_id = $1 AND status = 'active'
		  AND NOT EXISTS (
			SELECT 1 FROM group_participants
			WHERE group_id = $1 AND status = 'contemplated'
		  )
	`, groupID, participantID)
	if err != nil {
		return fmt.Errorf("%w: mark participant contemplated", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		var contemplated bool
		if err := tx.GetContext(ctx2, &contemplated, `
			SELECT EXISTS (
				SELECT 1 FROM group_participants WHERE group_id = $1 AND status = 'contemplated'
			)
		`, groupID); err != nil {
			return fmt.Errorf("%w: check contemplated", ErrInternal)
		}
		if contemplated {
			return ErrAlreadyContemplated
		}
		return ErrParticipantNotFound
	}

	// contemplated_at is set exactly once, by the same writer that won above.
	result, err = tx.ExecContext(ctx2, `
		UPDATE groups
		SET status = 'contemplated', contemplated_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'forming'
	`, groupID)
	if err != nil {
		return fmt.Errorf("%w: transition group", ErrInternal)
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrGroupNotForming
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *repository) Complete(ctx context.Context, groupID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE groups
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'contemplated'
	`, groupID)
	if err != nil {
		return fmt.Errorf("%w: complete group", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *repository) ExpireConvert(ctx context.Context, groupID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE groups
		SET status = 'expired_converted', updated_at = now()
		WHERE id = $1 AND status = 'forming'
	`, groupID)
	if err != nil {
		return false, fmt.Errorf("%w: expire group", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}
