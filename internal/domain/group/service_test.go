package group

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/domain/plan"
)

type groupRepoStub struct {
	group        *Group
	members      []*Member
	contemplated []uuid.UUID
	markErr      error
	completed    int
}

func (r *groupRepoStub) JoinOrCreate(_ context.Context, planID, userID uuid.UUID, amountPaidCents int64, maxParticipants int, paid bool) (*Group, *Participant, error) {
	if r.group == nil {
		r.group = &Group{ID: uuid.New(), PlanID: planID, GroupNumber: 1, Status: StatusForming, MaxParticipants: maxParticipants}
	}
	r.group.CurrentParticipants++
	status := ParticipantPending
	if paid {
		status = ParticipantActive
	}
	p := &Participant{ID: uuid.New(), GroupID: r.group.ID, UserID: userID, AmountPaidCents: amountPaidCents, Status: status}
	return r.group, p, nil
}

func (r *groupRepoStub) GetByID(context.Context, uuid.UUID) (*Group, error) {
	if r.group == nil {
		return nil, ErrGroupNotFound
	}
	return r.group, nil
}
func (r *groupRepoStub) ListByUser(context.Context, uuid.UUID) ([]*Group, error) { return nil, nil }
func (r *groupRepoStub) ListMembers(context.Context, uuid.UUID) ([]*Member, error) {
	return r.members, nil
}
func (r *groupRepoStub) GetParticipant(_ context.Context, _, participantID uuid.UUID) (*Participant, error) {
	for _, m := range r.members {
		if m.ID == participantID {
			return &m.Participant, nil
		}
	}
	return nil, ErrParticipantNotFound
}
func (r *groupRepoStub) GetParticipantByUser(context.Context, uuid.UUID, uuid.UUID) (*Participant, error) {
	return nil, ErrParticipantNotFound
}
func (r *groupRepoStub) MarkParticipantPaid(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (r *groupRepoStub) MarkContemplated(_ context.Context, _ uuid.UUID, participantID uuid.UUID) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.contemplated = append(r.contemplated, participantID)
	return nil
}
func (r *groupRepoStub) Complete(context.Context, uuid.UUID) error {
	r.completed++
	return nil
}
func (r *groupRepoStub) ExpireConvert(context.Context, uuid.UUID) (bool, error) { return true, nil }

type planRepoStub struct{ plan *plan.Plan }

func (r *planRepoStub) Create(context.Context, *plan.Plan) error { return nil }
func (r *planRepoStub) GetByID(context.Context, uuid.UUID) (*plan.Plan, error) {
	if r.plan == nil {
		return nil, plan.ErrNotFound
	}
	return r.plan, nil
}
func (r *planRepoStub) List(context.Context, bool) ([]*plan.Plan, error) { return nil, nil }
func (r *planRepoStub) Update(context.Context, *plan.Plan) error         { return nil }

type schedulerStub struct {
	calls int
	err   error
}

func (s *schedulerStub) ScheduleMilestones(context.Context, uuid.UUID, uuid.UUID) error {
	s.calls++
	return s.err
}

func member(status ParticipantStatus, name, email string) *Member {
	return &Member{
		Participant: Participant{ID: uuid.New(), UserID: uuid.New(), Status: status},
		Name:        name,
		Email:       email,
	}
}

func newTestService(repo *groupRepoStub, planRepo *planRepoStub, sched *schedulerStub, seed int64) *Service {
	return NewServiceWithRand(repo, planRepo, sched, nil, rand.New(rand.NewSource(seed)))
}

func TestJoinSchedulesMilestones(t *testing.T) {
	repo := &groupRepoStub{}
	sched := &schedulerStub{}
	svc := newTestService(repo, &planRepoStub{plan: &plan.Plan{ID: uuid.New(), MaxParticipants: 10, Active: true}}, sched, 1)

	g, p, err := svc.JoinOrCreateGroup(context.Background(), uuid.New(), uuid.New(), 10000, true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if g.CurrentParticipants != 1 {
		t.Fatalf("expected 1 participant, got %d", g.CurrentParticipants)
	}
	if p.Status != ParticipantActive {
		t.Fatalf("expected active participant, got %s", p.Status)
	}
	if sched.calls != 1 {
		t.Fatalf("expected 1 scheduler call, got %d", sched.calls)
	}
}

func TestJoinSurvivesSchedulerFailure(t *testing.T) {
	repo := &groupRepoStub{}
	sched := &schedulerStub{err: errors.New("trigger store down")}
	svc := newTestService(repo, &planRepoStub{plan: &plan.Plan{ID: uuid.New(), MaxParticipants: 10, Active: true}}, sched, 1)

	if _, _, err := svc.JoinOrCreateGroup(context.Background(), uuid.New(), uuid.New(), 10000, true); err != nil {
		t.Fatalf("join should not fail on scheduler error: %v", err)
	}
}

func TestJoinRejectsInactivePlan(t *testing.T) {
	svc := newTestService(&groupRepoStub{}, &planRepoStub{plan: &plan.Plan{ID: uuid.New(), MaxParticipants: 10}}, &schedulerStub{}, 1)

	_, _, err := svc.JoinOrCreateGroup(context.Background(), uuid.New(), uuid.New(), 10000, true)
	if !errors.Is(err, plan.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestRandomDrawSkipsPendingMembers(t *testing.T) {
	pending := member(ParticipantPending, "Ana", "ana@example.com")
	paid := member(ParticipantActive, "Bruno", "bruno@example.com")
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusForming},
		members: []*Member{pending, paid},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 42)

	for i := 0; i < 10; i++ {
		repo.group.Status = StatusForming
		winner, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeRandom, "")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if winner.ID != paid.ID {
			t.Fatalf("draw %d picked pending member", i)
		}
	}
}

func TestRandomDrawIsDeterministicForSeed(t *testing.T) {
	members := []*Member{
		member(ParticipantActive, "Ana", "ana@example.com"),
		member(ParticipantActive, "Bruno", "bruno@example.com"),
		member(ParticipantActive, "Clara", "clara@example.com"),
	}

	pick := func() uuid.UUID {
		repo := &groupRepoStub{group: &Group{ID: uuid.New(), Status: StatusForming}, members: members}
		svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 7)
		w, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeRandom, "")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		return w.ID
	}

	if pick() != pick() {
		t.Fatal("same seed should produce the same winner")
	}
}

func TestRandomDrawNoEligibleParticipants(t *testing.T) {
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusForming},
		members: []*Member{member(ParticipantPending, "Ana", "ana@example.com")},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	_, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeRandom, "")
	if !errors.Is(err, ErrNoEligibleParticipants) {
		t.Fatalf("expected ErrNoEligibleParticipants, got %v", err)
	}
}

func TestManualPickByNameSubstring(t *testing.T) {
	target := member(ParticipantActive, "Bruno Silva", "bruno@example.com")
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusForming},
		members: []*Member{member(ParticipantActive, "Ana", "ana@example.com"), target},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	winner, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeManual, "silva")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if winner.ID != target.ID {
		t.Fatal("manual pick resolved the wrong member")
	}
}

func TestManualPickPendingMemberRejected(t *testing.T) {
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusForming},
		members: []*Member{member(ParticipantPending, "Ana", "ana@example.com")},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	_, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeManual, "ana")
	if !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}
}

func TestManualPickUnknownMember(t *testing.T) {
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusForming},
		members: []*Member{member(ParticipantActive, "Ana", "ana@example.com")},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	_, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeManual, "zelda")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestContemplateNonFormingGroup(t *testing.T) {
	repo := &groupRepoStub{group: &Group{ID: uuid.New(), Status: StatusContemplated}}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	_, err := svc.SelectContemplated(context.Background(), repo.group.ID, ModeRandom, "")
	if !errors.Is(err, ErrAlreadyContemplated) {
		t.Fatalf("expected ErrAlreadyContemplated, got %v", err)
	}
}

func TestConfirmContemplation(t *testing.T) {
	winner := member(ParticipantContemplated, "Ana", "ana@example.com")
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusContemplated},
		members: []*Member{winner},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	if err := svc.ConfirmContemplation(context.Background(), repo.group.ID, winner.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if repo.completed != 1 {
		t.Fatalf("expected 1 complete call, got %d", repo.completed)
	}
}

func TestConfirmRequiresContemplatedParticipant(t *testing.T) {
	m := member(ParticipantActive, "Ana", "ana@example.com")
	repo := &groupRepoStub{
		group:   &Group{ID: uuid.New(), Status: StatusContemplated},
		members: []*Member{m},
	}
	svc := newTestService(repo, &planRepoStub{}, &schedulerStub{}, 1)

	if err := svc.ConfirmContemplation(context.Background(), repo.group.ID, m.ID); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}
