package group

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/domain/plan"
)

// MilestoneScheduler creates the time-keyed notification triggers for a new
// participant. Implemented by the trigger service; wired in main.
type MilestoneScheduler interface {
	ScheduleMilestones(ctx context.Context, userID, groupID uuid.UUID) error
}

// Notifier emits contemplation notifications. Delivery mechanics are external.
type Notifier interface {
	NotifyContemplated(ctx context.Context, userID, groupID uuid.UUID)
	NotifyGroupCompleted(ctx context.Context, userID, groupID uuid.UUID)
}

// Service handles group formation and contemplation
type Service struct {
	repo      Repository
	planRepo  plan.Repository
	scheduler MilestoneScheduler
	notifier  Notifier

	// Injected randomness so draws are reproducible in tests.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService creates a group service with a time-seeded draw source.
func NewService(repo Repository, planRepo plan.Repository, scheduler MilestoneScheduler, notifier Notifier) *Service {
	return NewServiceWithRand(repo, planRepo, scheduler, notifier, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewServiceWithRand creates a group service with an explicit draw source.
func NewServiceWithRand(repo Repository, planRepo plan.Repository, scheduler MilestoneScheduler, notifier Notifier, rng *rand.Rand) *Service {
	return &Service{
		repo:      repo,
		planRepo:  planRepo,
		scheduler: scheduler,
		notifier:  notifier,
		rng:       rng,
	}
}

// JoinOrCreateGroup places a paid-up (or pending) buyer into the oldest open
// group for the plan, creating one if needed, and schedules the milestone
// triggers for the new membership. Reaching capacity makes the group eligible
// for contemplation but does not transition it.
func (s *Service) JoinOrCreateGroup(ctx context.Context, planID, userID uuid.UUID, amountPaidCents int64, paid bool) (*Group, *Participant, error) {
	p, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	if !p.Active {
		return nil, nil, plan.ErrInactive
	}

	g, participant, err := s.repo.JoinOrCreate(ctx, planID, userID, amountPaidCents, p.MaxParticipants, paid)
	if err != nil {
		return nil, nil, err
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleMilestones(ctx, userID, g.ID); err != nil {
			// Milestones are recovered by the defensive sweep; joining stands.
			log.Error().Err(err).
				Str("group_id", g.ID.String()).
				Str("user_id", userID.String()).
				Msg("failed to schedule milestone triggers")
		}
	}

	log.Info().
		Str("group_id", g.ID.String()).
		Str("plan_id", planID.String()).
		Str("user_id", userID.String()).
		Int("participants", g.CurrentParticipants).
		Int("capacity", g.MaxParticipants).
		Msg("participant joined group")

	return g, participant, nil
}

// SelectContemplated picks the group's single winner. Random mode draws
// uniformly among paid participants; manual mode resolves memberQuery against
// participant name/email.
func (s *Service) SelectContemplated(ctx context.Context, groupID uuid.UUID, mode SelectionMode, memberQuery string) (*Member, error) {
	g, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusForming {
		return nil, ErrAlreadyContemplated
	}

	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var chosen *Member
	switch mode {
	case ModeManual:
		chosen, err = matchMember(members, memberQuery)
		if err != nil {
			return nil, err
		}
	default:
		eligible := make([]*Member, 0, len(members))
		for _, m := range members {
			if m.Status == ParticipantActive {
				eligible = append(eligible, m)
			}
		}
		if len(eligible) == 0 {
			return nil, ErrNoEligibleParticipants
		}
		s.rngMu.Lock()
		chosen = eligible[s.rng.Intn(len(eligible))]
		s.rngMu.Unlock()
	}

	if err := s.repo.MarkContemplated(ctx, groupID, chosen.ID); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyContemplated(ctx, chosen.UserID, groupID)
	}

	log.Info().
		Str("group_id", groupID.String()).
		Str("participant_id", chosen.ID.String()).
		Str("user_id", chosen.UserID.String()).
		Str("mode", string(mode)).
		Msg("group contemplated")

	return chosen, nil
}

// ConfirmContemplation is the administrative finalization step:
// contemplated -> completed. There is no reversal path.
func (s *Service) ConfirmContemplation(ctx context.Context, groupID, participantID uuid.UUID) error {
	p, err := s.repo.GetParticipant(ctx, groupID, participantID)
	if err != nil {
		return err
	}
	if p.Status != ParticipantContemplated {
		return ErrParticipantNotFound
	}

	if err := s.repo.Complete(ctx, groupID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupCompleted(ctx, p.UserID, groupID)
	}

	log.Info().
		Str("group_id", groupID.String()).
		Str("participant_id", participantID.String()).
		Msg("contemplation confirmed")
	return nil
}

// MarkPaid transitions a pending participant to active once their payment is
// confirmed. Safe under webhook redelivery.
func (s *Service) MarkPaid(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.repo.MarkParticipantPaid(ctx, groupID, userID)
}

// GetGroup returns the group with its members.
func (s *Service) GetGroup(ctx context.Context, groupID uuid.UUID) (*Group, []*Member, error) {
	g, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	return g, members, nil
}

// ListByUser returns the groups the user participates in.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Group, error) {
	return s.repo.ListByUser(ctx, userID)
}

// matchMember resolves a manual pick by name/email substring. A match that
// hasn't paid yet is rejected rather than silently skipped.
func matchMember(members []*Member, query string) (*Member, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrMemberNotFound
	}

	for _, m := range members {
		if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Email), q) {
			if m.Status == ParticipantPending {
				return nil, ErrPaymentPending
			}
			if m.Status == ParticipantContemplated {
				return nil, ErrAlreadyContemplated
			}
			return m, nil
		}
	}
	return nil, ErrMemberNotFound
}
