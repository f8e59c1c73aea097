package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// service implements the Service interface
type service struct {
	repo               *Repository
	minWithdrawalCents int64
}

// NewService creates a new credit service
func NewService(db *sqlx.DB, minWithdrawalCents int64) Service {
	return &service{
		repo:               NewRepository(db),
		minWithdrawalCents: minWithdrawalCents,
	}
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *service) AddCredits(ctx context.Context, userID uuid.UUID, amount int64, source Source, description, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.Add(ctx, userID, amount, source, description, referenceID); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount_cents", amount).
		Str("source", string(source)).
		Str("reference_id", referenceID).
		Msg("credits added")
	return nil
}

func (s *service) UseCredits(ctx context.Context, userID uuid.UUID, amount int64, source Source, description, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.Use(ctx, userID, amount, source, description, referenceID); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount_cents", amount).
		Str("source", string(source)).
		Msg("credits spent")
	return nil
}

func (s *service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount int64) (*WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.minWithdrawalCents {
		return nil, ErrBelowMinimum
	}
	req, err := s.repo.Withdraw(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("withdrawal_id", req.ID.String()).
		Int64("amount_cents", amount).
		Msg("withdrawal requested")
	return req, nil
}

// ConvertPaymentToCredits is the conversion path the trigger sweep relies on:
// the reference makes retries and duplicate sweeps a single credit event.
func (s *service) ConvertPaymentToCredits(ctx context.Context, userID uuid.UUID, amount int64, orderRef string) error {
	if orderRef == "" {
		return ErrInvalidAmount
	}
	return s.AddCredits(ctx, userID, amount, SourceInitialPayment, "expired group payment converted to credits", orderRef)
}

func (s *service) HasConversion(ctx context.Context, userID uuid.UUID, orderRef string) (bool, error) {
	return s.repo.HasTransactionRef(ctx, userID, SourceInitialPayment, orderRef)
}

func (s *service) Adjust(ctx context.Context, userID uuid.UUID, amount int64, txType TxType, description string) error {
	if description == "" {
		description = "admin balance adjustment"
	}
	switch txType {
	case TxTypeCredit:
		return s.AddCredits(ctx, userID, amount, SourceAdminAdjustment, description, "")
	case TxTypeDebit:
		return s.UseCredits(ctx, userID, amount, SourceAdminAdjustment, description, "")
	default:
		return ErrInvalidAmount
	}
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, userID, Pagination{Limit: limit, Offset: offset})
}

func (s *service) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	return s.repo.SearchTransactions(ctx, filters)
}

func (s *service) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListWithdrawals(ctx, userID, Pagination{Limit: limit, Offset: offset})
}
