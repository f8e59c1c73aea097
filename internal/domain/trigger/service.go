package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/domain/group"
)

// dueBatchSize bounds one sweep pass.
const dueBatchSize = 500

// CreditConverter is the ledger slice the processor needs.
type CreditConverter interface {
	ConvertPaymentToCredits(ctx context.Context, userID uuid.UUID, amount int64, orderRef string) error
	HasConversion(ctx context.Context, userID uuid.UUID, orderRef string) (bool, error)
}

// Notifier delivers milestone nudges. Delivery mechanics are external.
type Notifier interface {
	NotifyMilestone(ctx context.Context, userID, groupID uuid.UUID, milestone Type)
	NotifyCreditsConverted(ctx context.Context, userID, groupID uuid.UUID, amountCents int64)
}

// Result records the outcome of one processed item. A failed item stays
// unexecuted and is retried on the next run.
type Result struct {
	TriggerID uuid.UUID
	GroupID   uuid.UUID
	Type      Type
	Err       error
}

// Service is the scheduled trigger processor.
type Service struct {
	repo      Repository
	groupRepo group.Repository
	credits   CreditConverter
	notifier  Notifier
}

// NewService creates trigger service
func NewService(repo Repository, groupRepo group.Repository, credits CreditConverter, notifier Notifier) *Service {
	return &Service{repo: repo, groupRepo: groupRepo, credits: credits, notifier: notifier}
}

// ScheduleMilestones creates the milestone rows for a new membership.
// Implements the scheduler hook the group service calls on join.
func (s *Service) ScheduleMilestones(ctx context.Context, userID, groupID uuid.UUID) error {
	return s.repo.CreateForMembership(ctx, userID, groupID, time.Now())
}

// ProcessDueTriggers handles every actionable trigger. Items are
// processed independently: one failure is logged and skipped, never
// aborting the batch.
func (s *Service) ProcessDueTriggers(ctx context.Context, now time.Time) ([]Result, error) {
	due, err := s.repo.ListDue(ctx, now, dueBatchSize)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(due))
	for _, t := range due {
		res := Result{TriggerID: t.ID, GroupID: t.GroupID, Type: t.Type}
		res.Err = s.processOne(ctx, t)
		if res.Err != nil {
			log.Error().Err(res.Err).
				Str("trigger_id", t.ID.String()).
				Str("trigger_type", string(t.Type)).
				Str("group_id", t.GroupID.String()).
				Msg("trigger processing failed, will retry next run")
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		log.Info().Int("processed", len(results)).Msg("trigger sweep finished")
	}
	return results, nil
}

func (s *Service) processOne(ctx context.Context, t *Trigger) error {
	if t.Type == Type180Days {
		if err := s.convertIfStillForming(ctx, t.GroupID, t.UserID); err != nil {
			return err
		}
	} else if s.notifier != nil {
		s.notifier.NotifyMilestone(ctx, t.UserID, t.GroupID, t.Type)
	}

	// Executed flips regardless of whether the deadline found anything
	// to convert; a completed group makes the 180-day trigger a no-op.
	_, err := s.repo.MarkExecuted(ctx, t.ID)
	return err
}

// convertIfStillForming performs the deadline conversion: the stalled
// payment becomes available credits and the group leaves circulation.
func (s *Service) convertIfStillForming(ctx context.Context, groupID, userID uuid.UUID) error {
	g, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g.Status != group.StatusForming {
		return nil
	}

	p, err := s.groupRepo.GetParticipantByUser(ctx, groupID, userID)
	if err != nil {
		return err
	}

	ref := ConversionRef(groupID, userID)
	if err := s.credits.ConvertPaymentToCredits(ctx, userID, p.AmountPaidCents, ref); err != nil {
		return err
	}

	if _, err := s.groupRepo.ExpireConvert(ctx, groupID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.NotifyCreditsConverted(ctx, userID, groupID, p.AmountPaidCents)
	}

	log.Info().
		Str("group_id", groupID.String()).
		Str("user_id", userID.String()).
		Int64("amount_cents", p.AmountPaidCents).
		Msg("expired group payment converted to credits")
	return nil
}

// SweepStaleGroups is the defensive catch-all for memberships whose
// 180-day trigger was never created or never ran. The ledger reference
// check keeps it from double-crediting.
func (s *Service) SweepStaleGroups(ctx context.Context, now time.Time) ([]Result, error) {
	stale, err := s.repo.ListStaleMemberships(ctx, now.Add(-ConversionDeadline))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(stale))
	for _, m := range stale {
		res := Result{GroupID: m.GroupID, Type: Type180Days}
		res.Err = s.sweepOne(ctx, m)
		if res.Err != nil {
			log.Error().Err(res.Err).
				Str("group_id", m.GroupID.String()).
				Str("user_id", m.UserID.String()).
				Msg("stale group sweep failed for membership")
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		log.Info().Int("processed", len(results)).Msg("stale group sweep finished")
	}
	return results, nil
}

func (s *Service) sweepOne(ctx context.Context, m *StaleMembership) error {
	ref := ConversionRef(m.GroupID, m.UserID)
	converted, err := s.credits.HasConversion(ctx, m.UserID, ref)
	if err != nil {
		return err
	}
	if converted {
		return nil
	}

	if err := s.credits.ConvertPaymentToCredits(ctx, m.UserID, m.AmountPaidCents, ref); err != nil {
		return err
	}

	if _, err := s.groupRepo.ExpireConvert(ctx, m.GroupID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.NotifyCreditsConverted(ctx, m.UserID, m.GroupID, m.AmountPaidCents)
	}
	return nil
}
