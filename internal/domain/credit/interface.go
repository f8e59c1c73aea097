package credit

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the credit ledger operations.
type Service interface {
	// GetBalance returns the user's balance, lazily creating a zeroed one.
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)

	// AddCredits credits amount to the user (total and available grow together).
	// Idempotent per (user, source, referenceID) when referenceID is set.
	AddCredits(ctx context.Context, userID uuid.UUID, amount int64, source Source, description, referenceID string) error

	// UseCredits spends from available credits.
	// Returns ErrInsufficientBalance when available doesn't cover amount.
	UseCredits(ctx context.Context, userID uuid.UUID, amount int64, source Source, description, referenceID string) error

	// RequestWithdrawal reserves available credits for payout.
	// Returns ErrBelowMinimum below the configured minimum.
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount int64) (*WithdrawalRequest, error)

	// ConvertPaymentToCredits turns a stalled group payment into available
	// credits. Idempotent per orderRef: calling twice credits exactly once.
	ConvertPaymentToCredits(ctx context.Context, userID uuid.UUID, amount int64, orderRef string) error

	// HasConversion reports whether an initial_payment entry with orderRef exists.
	// Used by the trigger sweep as its defensive idempotence guard.
	HasConversion(ctx context.Context, userID uuid.UUID, orderRef string) (bool, error)

	// Adjust applies an admin credit or debit.
	Adjust(ctx context.Context, userID uuid.UUID, amount int64, txType TxType, description string) error

	// ListTransactions returns paginated ledger history for a user.
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)

	// SearchTransactions returns filtered transactions (admin use).
	SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error)

	// ListWithdrawals returns the user's withdrawal requests.
	ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]WithdrawalRequest, error)
}
