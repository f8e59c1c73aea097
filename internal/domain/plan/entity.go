package plan

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Plan is a purchasable group-buying plan. Buyers paying for a plan are
// pooled into groups of MaxParticipants until a contemplation event.
type Plan struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Description     sql.NullString `db:"description" json:"description,omitempty"`
	PriceCents      int64          `db:"price_cents" json:"price_cents"`
	MaxParticipants int            `db:"max_participants" json:"max_participants"`

	// CommissionPercent overrides the per-flow referral percentage when set.
	CommissionPercent sql.NullInt64 `db:"commission_percent" json:"commission_percent,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
