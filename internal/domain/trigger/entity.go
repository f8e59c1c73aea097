package trigger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is a scheduled milestone relative to the moment a participant
// joined their group.
type Type string

const (
	Type15Days  Type = "15_days"
	Type30Days  Type = "30_days"
	Type60Days  Type = "60_days"
	Type90Days  Type = "90_days"
	Type180Days Type = "180_days"
)

// Milestones in scheduling order. 180_days is the conversion deadline;
// the rest are nudges.
var Milestones = []Type{Type15Days, Type30Days, Type60Days, Type90Days, Type180Days}

var milestoneOffsets = map[Type]time.Duration{
	Type15Days:  15 * 24 * time.Hour,
	Type30Days:  30 * 24 * time.Hour,
	Type60Days:  60 * 24 * time.Hour,
	Type90Days:  90 * 24 * time.Hour,
	Type180Days: 180 * 24 * time.Hour,
}

// ConversionDeadline is how long a forming group payment waits before it
// is converted to credits.
const ConversionDeadline = 180 * 24 * time.Hour

// Offset returns the milestone's delay from the join time.
func (t Type) Offset() time.Duration {
	return milestoneOffsets[t]
}

// Trigger is one scheduled milestone row. Executed flips false -> true
// exactly once.
type Trigger struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	UserID       uuid.UUID    `db:"user_id" json:"user_id"`
	GroupID      uuid.UUID    `db:"group_id" json:"group_id"`
	Type         Type         `db:"trigger_type" json:"trigger_type"`
	ScheduledFor time.Time    `db:"scheduled_for" json:"scheduled_for"`
	Executed     bool         `db:"executed" json:"executed"`
	ExecutedAt   sql.NullTime `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// StaleMembership is a participant in a group past the conversion
// deadline that is still forming, found by the defensive sweep.
type StaleMembership struct {
	GroupID         uuid.UUID `db:"group_id"`
	UserID          uuid.UUID `db:"user_id"`
	AmountPaidCents int64     `db:"amount_paid_cents"`
}

// ConversionRef builds the ledger reference that makes a group payment
// conversion idempotent per (group, user).
func ConversionRef(groupID, userID uuid.UUID) string {
	return fmt.Sprintf("group_conversion:%s:%s", groupID, userID)
}
