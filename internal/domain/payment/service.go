package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/domain/group"
	"github.com/coopera/coopera-api/internal/domain/referral"
)

// GroupManager is the slice of the group service the webhook flow needs.
// Wired via an adapter in main.
type GroupManager interface {
	JoinGroup(ctx context.Context, planID, userID uuid.UUID, amountCents int64) (uuid.UUID, error)
	MarkPaid(ctx context.Context, groupID, userID uuid.UUID) error
}

// CommissionEngine is the slice of the referral service the webhook flow
// needs.
type CommissionEngine interface {
	RecordReferral(ctx context.Context, code string, referredUserID uuid.UUID) (uuid.UUID, bool)
	CreateCommission(ctx context.Context, referrerID, referredUserID uuid.UUID, planID uuid.NullUUID, flow referral.Flow, totalCents int64, paymentRef string) (*referral.Commission, error)
	ConfirmCommission(ctx context.Context, referredUserID uuid.UUID, paymentRef string) error
}

// Service processes settled payment events. Every step is idempotent on
// the provider payment id, so a redelivered or concurrently delivered
// webhook converges to the same state.
type Service struct {
	repo        Repository
	groups      GroupManager
	commissions CommissionEngine
}

// NewService creates payment service
func NewService(repo Repository, groups GroupManager, commissions CommissionEngine) *Service {
	return &Service{repo: repo, groups: groups, commissions: commissions}
}

// ProcessConfirmed applies one settled payment: records it, places the
// buyer in a group (or marks an existing membership paid), and records
// and confirms the referral commission. An event whose payment is already
// confirmed is a success no-op. On partial failure the payment stays
// pending and the provider's redelivery reruns the remaining steps.
func (s *Service) ProcessConfirmed(ctx context.Context, ev *ConfirmedEvent) error {
	stored, err := s.repo.Record(ctx, &Payment{
		ID:           uuid.New(),
		Provider:     ev.Provider,
		ExternalID:   ev.ExternalID,
		UserID:       ev.UserID,
		PlanID:       ev.PlanID,
		GroupID:      ev.GroupID,
		AmountCents:  ev.AmountCents,
		ReferralCode: ev.ReferralCode,
	})
	if err != nil {
		return err
	}
	if stored.Status == StatusConfirmed {
		log.Info().
			Str("provider", string(ev.Provider)).
			Str("external_id", ev.ExternalID).
			Msg("payment already processed, skipping")
		return nil
	}

	groupID, err := s.applyGroupMembership(ctx, stored)
	if err != nil {
		return err
	}

	if err := s.applyCommission(ctx, stored); err != nil {
		return err
	}

	transitioned, err := s.repo.MarkConfirmed(ctx, ev.Provider, ev.ExternalID)
	if err != nil {
		return err
	}

	log.Info().
		Str("provider", string(ev.Provider)).
		Str("external_id", ev.ExternalID).
		Str("user_id", ev.UserID.String()).
		Str("group_id", groupID.String()).
		Int64("amount_cents", ev.AmountCents).
		Bool("first_delivery", transitioned).
		Msg("payment confirmed")

	return nil
}

func (s *Service) applyGroupMembership(ctx context.Context, p *Payment) (uuid.UUID, error) {
	if p.GroupID.Valid {
		if err := s.groups.MarkPaid(ctx, p.GroupID.UUID, p.UserID); err != nil {
			return uuid.Nil, err
		}
		return p.GroupID.UUID, nil
	}

	if !p.PlanID.Valid {
		return uuid.Nil, nil
	}

	groupID, err := s.groups.JoinGroup(ctx, p.PlanID.UUID, p.UserID, p.AmountCents)
	if err != nil {
		if errors.Is(err, group.ErrAlreadyMember) {
			// Retry after partial failure; the membership already exists.
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return groupID, nil
}

func (s *Service) applyCommission(ctx context.Context, p *Payment) error {
	flow := referral.FlowPix
	if p.Provider == ProviderStripe {
		flow = referral.FlowStripe
	}

	if p.ReferralCode != "" {
		if referrerID, ok := s.commissions.RecordReferral(ctx, p.ReferralCode, p.UserID); ok {
			if _, err := s.commissions.CreateCommission(ctx, referrerID, p.UserID, p.PlanID, flow, p.AmountCents, p.ExternalID); err != nil {
				return err
			}
		}
	}

	// Confirms whatever pending commission is tied to this payment,
	// whether created above or at checkout time. No commission, no-op.
	return s.commissions.ConfirmCommission(ctx, p.UserID, p.ExternalID)
}

// GetPayment returns a payment by its provider id.
func (s *Service) GetPayment(ctx context.Context, provider Provider, externalID string) (*Payment, error) {
	return s.repo.GetByExternalID(ctx, provider, externalID)
}

// ListByUser returns a user's payments, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
