package credit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TxType defines the direction of a ledger entry.
type TxType string

const (
	TxTypeCredit TxType = "credit"
	TxTypeDebit  TxType = "debit"
)

// Source defines where a ledger entry came from.
type Source string

const (
	SourceInitialPayment      Source = "initial_payment"
	SourceReferralBonus       Source = "referral_bonus"
	SourceMarketplacePurchase Source = "marketplace_purchase"
	SourceWithdrawal          Source = "withdrawal"
	SourceAdminAdjustment     Source = "admin_adjustment"
)

// WithdrawalStatus represents withdrawal request lifecycle.
// Settlement (pending -> paid/rejected) is an administrative action.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalPaid     WithdrawalStatus = "paid"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Balance is the per-user credit balance row.
// TotalCents is a lifetime running sum of credit-type entries and never decreases.
type Balance struct {
	UserID                 uuid.UUID `db:"user_id" json:"user_id"`
	TotalCents             int64     `db:"total_cents" json:"total_cents"`
	AvailableCents         int64     `db:"available_cents" json:"available_cents"`
	PendingWithdrawalCents int64     `db:"pending_withdrawal_cents" json:"pending_withdrawal_cents"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an append-only ledger row. Amount is a positive magnitude;
// direction is carried by Type.
type Transaction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Type        TxType    `db:"type" json:"type"`
	Source      Source    `db:"source" json:"source"`
	Description string    `db:"description" json:"description"`
	ReferenceID *string   `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// WithdrawalRequest tracks credits reserved for payout.
type WithdrawalRequest struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	UserID      uuid.UUID        `db:"user_id" json:"user_id"`
	AmountCents int64            `db:"amount_cents" json:"amount_cents"`
	Status      WithdrawalStatus `db:"status" json:"status"`
	SettledAt   sql.NullTime     `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// SearchFilters provides admin-facing transaction filtering.
type SearchFilters struct {
	UserID      *string
	Type        *string
	Source      *string
	DateFrom    *time.Time
	DateTo      *time.Time
	ReferenceID *string
	Limit       int
	Offset      int
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}
