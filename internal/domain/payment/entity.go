package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Provider identifies the payment gateway an event came from.
type Provider string

const (
	ProviderAsaas  Provider = "asaas"
	ProviderStripe Provider = "stripe"
)

// Status of a recorded payment. Confirmed is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Payment is the local record of a provider payment, unique per
// (provider, external_id). It anchors webhook idempotency.
type Payment struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Provider     Provider      `db:"provider" json:"provider"`
	ExternalID   string        `db:"external_id" json:"external_id"`
	UserID       uuid.UUID     `db:"user_id" json:"user_id"`
	PlanID       uuid.NullUUID `db:"plan_id" json:"plan_id,omitempty"`
	GroupID      uuid.NullUUID `db:"group_id" json:"group_id,omitempty"`
	AmountCents  int64         `db:"amount_cents" json:"amount_cents"`
	ReferralCode string        `db:"referral_code" json:"referral_code,omitempty"`
	Status       Status        `db:"status" json:"status"`
	ConfirmedAt  sql.NullTime  `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// ConfirmedEvent is a validated "payment settled" event from either
// provider, normalized before any state changes.
type ConfirmedEvent struct {
	Provider     Provider
	ExternalID   string
	UserID       uuid.UUID
	PlanID       uuid.NullUUID
	GroupID      uuid.NullUUID
	AmountCents  int64
	ReferralCode string
}
