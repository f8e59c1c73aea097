package group

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents group lifecycle (matches group_status enum).
// Transitions are one-directional:
// forming -> contemplated -> completed, or forming -> expired_converted.
type Status string

const (
	StatusForming          Status = "forming"
	StatusContemplated     Status = "contemplated"
	StatusCompleted        Status = "completed"
	StatusExpiredConverted Status = "expired_converted"
)

// ParticipantStatus represents a member's state within a group.
type ParticipantStatus string

const (
	ParticipantPending      ParticipantStatus = "pending"
	ParticipantActive       ParticipantStatus = "active"
	ParticipantContemplated ParticipantStatus = "contemplated"
)

// Group is one cohort of buyers for a plan.
type Group struct {
	ID                  uuid.UUID    `db:"id" json:"id"`
	PlanID              uuid.UUID    `db:"plan_id" json:"plan_id"`
	GroupNumber         int          `db:"group_number" json:"group_number"`
	Status              Status       `db:"status" json:"status"`
	CurrentParticipants int          `db:"current_participants" json:"current_participants"`
	MaxParticipants     int          `db:"max_participants" json:"max_participants"`
	ContemplatedAt      sql.NullTime `db:"contemplated_at" json:"contemplated_at,omitempty"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// IsFull reports whether the group reached capacity. A full group becomes
// eligible for contemplation; the transition itself stays an explicit call.
func (g *Group) IsFull() bool {
	return g.CurrentParticipants >= g.MaxParticipants
}

// Participant is a buyer's membership in a group, unique per (group, user).
type Participant struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	GroupID         uuid.UUID         `db:"group_id" json:"group_id"`
	UserID          uuid.UUID         `db:"user_id" json:"user_id"`
	AmountPaidCents int64             `db:"amount_paid_cents" json:"amount_paid_cents"`
	Status          ParticipantStatus `db:"status" json:"status"`
	JoinedAt        time.Time         `db:"joined_at" json:"joined_at"`
}

// Member is a participant joined with the owning user's identity,
// used by contemplation to resolve manual picks.
type Member struct {
	Participant
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// SelectionMode selects how a contemplated member is chosen.
type SelectionMode string

const (
	ModeRandom SelectionMode = "random"
	ModeManual SelectionMode = "manual"
)
