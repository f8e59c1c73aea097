package referral

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status of a commission. Transitions pending -> confirmed only.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Flow identifies the purchase path a commission originated from.
// Each flow carries its own default percentage.
type Flow string

const (
	FlowPix    Flow = "pix"
	FlowStripe Flow = "stripe"
)

// Commission is a payout owed to a referrer for a referred purchase.
// Amount is locked in at creation from the purchase value and the
// percentage in effect at that moment.
type Commission struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	ReferrerID     uuid.UUID     `db:"referrer_id" json:"referrer_id"`
	ReferredUserID uuid.UUID     `db:"referred_user_id" json:"referred_user_id"`
	PlanID         uuid.NullUUID `db:"plan_id" json:"plan_id,omitempty"`
	Flow           Flow          `db:"flow" json:"flow"`
	BaseCents      int64         `db:"base_cents" json:"base_cents"`
	Percent        int64         `db:"percent" json:"percent"`
	AmountCents    int64         `db:"amount_cents" json:"amount_cents"`
	Status         Status        `db:"status" json:"status"`
	PaymentRef     string        `db:"payment_ref" json:"payment_ref"`
	ConfirmedAt    sql.NullTime  `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// Stats summarizes a referrer's commission activity.
type Stats struct {
	ReferredCount       int   `db:"referred_count" json:"referred_count"`
	PendingCents        int64 `db:"pending_cents" json:"pending_cents"`
	ConfirmedCents      int64 `db:"confirmed_cents" json:"confirmed_cents"`
	PendingCommissions  int   `db:"pending_commissions" json:"pending_commissions"`
	ConfirmedCommission int   `db:"confirmed_commissions" json:"confirmed_commissions"`
}
