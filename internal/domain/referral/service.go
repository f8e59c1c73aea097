package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/domain/plan"
)

// UserDirectory resolves referral codes and records who referred whom.
// Implemented by an adapter over the user repository; wired in main.
type UserDirectory interface {
	ResolveReferralCode(ctx context.Context, code string) (uuid.UUID, error)
	SetReferredBy(ctx context.Context, userID, referrerID uuid.UUID) error
}

// CreditLedger credits confirmed commissions to the referrer.
type CreditLedger interface {
	AddReferralBonus(ctx context.Context, userID uuid.UUID, amountCents int64, description, referenceID string) error
}

// Notifier tells the referrer a commission was confirmed. Optional.
type Notifier interface {
	NotifyCommissionConfirmed(ctx context.Context, userID, commissionID uuid.UUID, amountCents int64)
}

// Service implements the commission engine.
type Service struct {
	repo     Repository
	users    UserDirectory
	planRepo plan.Repository
	credits  CreditLedger
	notifier Notifier

	pixPercent    int64
	stripePercent int64
}

// NewService creates referral service. pixPercent and stripePercent are the
// flow defaults; a plan-level override wins when set.
func NewService(repo Repository, users UserDirectory, planRepo plan.Repository, credits CreditLedger, pixPercent, stripePercent int64) *Service {
	return &Service{
		repo:          repo,
		users:         users,
		planRepo:      planRepo,
		credits:       credits,
		pixPercent:    pixPercent,
		stripePercent: stripePercent,
	}
}

// SetNotifier attaches the push channel for confirmed commissions.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// RecordReferral resolves a referral code and attaches the referrer to the
// referred user. Best-effort: an unknown code, a self-referral, or a storage
// error yields (Nil, false) and the enclosing purchase proceeds.
func (s *Service) RecordReferral(ctx context.Context, referrerCode string, referredUserID uuid.UUID) (uuid.UUID, bool) {
	if referrerCode == "" {
		return uuid.Nil, false
	}

	referrerID, err := s.users.ResolveReferralCode(ctx, referrerCode)
	if err != nil {
		log.Warn().
			Str("code", referrerCode).
			Str("referred_user_id", referredUserID.String()).
			Msg("referral code did not resolve")
		return uuid.Nil, false
	}
	if referrerID == referredUserID {
		log.Warn().
			Str("user_id", referredUserID.String()).
			Msg("self-referral ignored")
		return uuid.Nil, false
	}

	if err := s.users.SetReferredBy(ctx, referredUserID, referrerID); err != nil {
		log.Error().Err(err).
			Str("referred_user_id", referredUserID.String()).
			Msg("failed to persist referred_by")
		return uuid.Nil, false
	}

	return referrerID, true
}

// CreateCommission inserts a pending commission for a referred purchase.
// The percentage is the plan's override when set, otherwise the flow default.
func (s *Service) CreateCommission(ctx context.Context, referrerID, referredUserID uuid.UUID, planID uuid.NullUUID, flow Flow, totalCents int64, paymentRef string) (*Commission, error) {
	if totalCents <= 0 {
		return nil, ErrInvalidAmount
	}

	percent, err := s.resolvePercent(ctx, planID, flow)
	if err != nil {
		return nil, err
	}

	c := &Commission{
		ID:             uuid.New(),
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		PlanID:         planID,
		Flow:           flow,
		BaseCents:      totalCents,
		Percent:        percent,
		AmountCents:    totalCents * percent / 100,
		Status:         StatusPending,
		PaymentRef:     paymentRef,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	log.Info().
		Str("commission_id", c.ID.String()).
		Str("referrer_id", referrerID.String()).
		Str("flow", string(flow)).
		Int64("amount_cents", c.AmountCents).
		Int64("percent", percent).
		Msg("commission recorded")

	return c, nil
}

// ConfirmCommission is invoked once the referred purchase is confirmed paid.
// The first caller transitions the commission; the credit runs on every
// delivery and dedupes in the ledger on the commission reference, so a
// redelivery after a failed credit still pays the referrer. Purchases
// without a referral are no-ops.
func (s *Service) ConfirmCommission(ctx context.Context, referredUserID uuid.UUID, paymentRef string) error {
	c, err := s.repo.FindByPurchase(ctx, referredUserID, paymentRef)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}

	transitioned, err := s.repo.Confirm(ctx, c.ID)
	if err != nil {
		return err
	}

	ref := fmt.Sprintf("referral_commission:%s", c.ID)
	desc := fmt.Sprintf("referral commission (%d%%)", c.Percent)
	if err := s.credits.AddReferralBonus(ctx, c.ReferrerID, c.AmountCents, desc, ref); err != nil {
		log.Error().Err(err).
			Str("commission_id", c.ID.String()).
			Msg("failed to credit confirmed commission")
		return err
	}

	if transitioned {
		if s.notifier != nil {
			s.notifier.NotifyCommissionConfirmed(ctx, c.ReferrerID, c.ID, c.AmountCents)
		}

		log.Info().
			Str("commission_id", c.ID.String()).
			Str("referrer_id", c.ReferrerID.String()).
			Int64("amount_cents", c.AmountCents).
			Msg("commission confirmed and credited")
	}

	return nil
}

// ListCommissions returns a referrer's commissions, newest first.
func (s *Service) ListCommissions(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Commission, error) {
	return s.repo.ListByReferrer(ctx, referrerID, limit, offset)
}

// GetStats returns aggregate commission figures for a referrer.
func (s *Service) GetStats(ctx context.Context, referrerID uuid.UUID) (*Stats, error) {
	return s.repo.StatsByReferrer(ctx, referrerID)
}

func (s *Service) resolvePercent(ctx context.Context, planID uuid.NullUUID, flow Flow) (int64, error) {
	if planID.Valid && s.planRepo != nil {
		p, err := s.planRepo.GetByID(ctx, planID.UUID)
		if err == nil && p.CommissionPercent.Valid {
			return validatePercent(p.CommissionPercent.Int64)
		}
		if err != nil && err != plan.ErrNotFound {
			return 0, err
		}
	}

	switch flow {
	case FlowStripe:
		return validatePercent(s.stripePercent)
	default:
		return validatePercent(s.pixPercent)
	}
}

func validatePercent(p int64) (int64, error) {
	if p <= 0 || p > 100 {
		return 0, ErrInvalidPercent
	}
	return p, nil
}
