package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/domain/group"
)

type triggerRepoStub struct {
	due      []*Trigger
	stale    []*StaleMembership
	executed map[uuid.UUID]bool
	markErr  map[uuid.UUID]error
	created  int
}

func newTriggerRepoStub() *triggerRepoStub {
	return &triggerRepoStub{executed: map[uuid.UUID]bool{}, markErr: map[uuid.UUID]error{}}
}

func (r *triggerRepoStub) CreateForMembership(context.Context, uuid.UUID, uuid.UUID, time.Time) error {
	r.created++
	return nil
}

func (r *triggerRepoStub) ListDue(context.Context, time.Time, int) ([]*Trigger, error) {
	return r.due, nil
}

func (r *triggerRepoStub) MarkExecuted(_ context.Context, id uuid.UUID) (bool, error) {
	if err := r.markErr[id]; err != nil {
		return false, err
	}
	if r.executed[id] {
		return false, nil
	}
	r.executed[id] = true
	return true, nil
}

func (r *triggerRepoStub) ListStaleMemberships(context.Context, time.Time) ([]*StaleMembership, error) {
	return r.stale, nil
}

type groupRepoStub struct {
	groups       map[uuid.UUID]*group.Group
	participants map[uuid.UUID]*group.Participant
	expired      []uuid.UUID
	getErr       map[uuid.UUID]error
}

func newGroupRepoStub() *groupRepoStub {
	return &groupRepoStub{
		groups:       map[uuid.UUID]*group.Group{},
		participants: map[uuid.UUID]*group.Participant{},
		getErr:       map[uuid.UUID]error{},
	}
}

func (r *groupRepoStub) JoinOrCreate(context.Context, uuid.UUID, uuid.UUID, int64, int, bool) (*group.Group, *group.Participant, error) {
	return nil, nil, nil
}

func (r *groupRepoStub) GetByID(_ context.Context, id uuid.UUID) (*group.Group, error) {
	if err := r.getErr[id]; err != nil {
		return nil, err
	}
	g, ok := r.groups[id]
	if !ok {
		return nil, group.ErrGroupNotFound
	}
	return g, nil
}

func (r *groupRepoStub) ListByUser(context.Context, uuid.UUID) ([]*group.Group, error) {
	return nil, nil
}
func (r *groupRepoStub) ListMembers(context.Context, uuid.UUID) ([]*group.Member, error) {
	return nil, nil
}
func (r *groupRepoStub) GetParticipant(context.Context, uuid.UUID, uuid.UUID) (*group.Participant, error) {
	return nil, group.ErrParticipantNotFound
}
func (r *groupRepoStub) GetParticipantByUser(_ context.Context, groupID, _ uuid.UUID) (*group.Participant, error) {
	p, ok := r.participants[groupID]
	if !ok {
		return nil, group.ErrParticipantNotFound
	}
	return p, nil
}
func (r *groupRepoStub) MarkParticipantPaid(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (r *groupRepoStub) MarkContemplated(context.Context, uuid.UUID, uuid.UUID) error    { return nil }
func (r *groupRepoStub) Complete(context.Context, uuid.UUID) error                       { return nil }
func (r *groupRepoStub) ExpireConvert(_ context.Context, groupID uuid.UUID) (bool, error) {
	r.expired = append(r.expired, groupID)
	return true, nil
}

type converterStub struct {
	conversions map[string]int64
	err         error
}

func newConverterStub() *converterStub {
	return &converterStub{conversions: map[string]int64{}}
}

func (c *converterStub) ConvertPaymentToCredits(_ context.Context, _ uuid.UUID, amount int64, orderRef string) error {
	if c.err != nil {
		return c.err
	}
	if _, seen := c.conversions[orderRef]; seen {
		return nil
	}
	c.conversions[orderRef] = amount
	return nil
}

func (c *converterStub) HasConversion(_ context.Context, _ uuid.UUID, orderRef string) (bool, error) {
	_, ok := c.conversions[orderRef]
	return ok, nil
}

type notifierStub struct {
	milestones  int
	conversions int
}

func (n *notifierStub) NotifyMilestone(context.Context, uuid.UUID, uuid.UUID, Type) {
	n.milestones++
}

func (n *notifierStub) NotifyCreditsConverted(context.Context, uuid.UUID, uuid.UUID, int64) {
	n.conversions++
}

func dueTrigger(t Type, groupID uuid.UUID) *Trigger {
	return &Trigger{ID: uuid.New(), UserID: uuid.New(), GroupID: groupID, Type: t, ScheduledFor: time.Now().Add(-time.Hour)}
}

func TestMilestoneTriggerNotifiesAndExecutes(t *testing.T) {
	repo := newTriggerRepoStub()
	groupID := uuid.New()
	tr := dueTrigger(Type15Days, groupID)
	repo.due = []*Trigger{tr}
	notifier := &notifierStub{}

	svc := NewService(repo, newGroupRepoStub(), newConverterStub(), notifier)
	results, err := svc.ProcessDueTriggers(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}
	if notifier.milestones != 1 {
		t.Fatalf("expected 1 milestone notification, got %d", notifier.milestones)
	}
	if !repo.executed[tr.ID] {
		t.Fatal("trigger not marked executed")
	}
}

func TestDeadlineConvertsFormingGroup(t *testing.T) {
	groupID := uuid.New()
	groups := newGroupRepoStub()
	groups.groups[groupID] = &group.Group{ID: groupID, Status: group.StatusForming}
	groups.participants[groupID] = &group.Participant{GroupID: groupID, AmountPaidCents: 15000}

	repo := newTriggerRepoStub()
	tr := dueTrigger(Type180Days, groupID)
	tr.UserID = uuid.New()
	repo.due = []*Trigger{tr}

	converter := newConverterStub()
	svc := NewService(repo, groups, converter, &notifierStub{})

	if _, err := svc.ProcessDueTriggers(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	ref := ConversionRef(groupID, tr.UserID)
	if converter.conversions[ref] != 15000 {
		t.Fatalf("expected 15000 cents converted, got %d", converter.conversions[ref])
	}
	if len(groups.expired) != 1 || groups.expired[0] != groupID {
		t.Fatal("group not transitioned to expired_converted")
	}
	if !repo.executed[tr.ID] {
		t.Fatal("deadline trigger not marked executed")
	}
}

func TestDeadlineOnCompletedGroupIsNoop(t *testing.T) {
	groupID := uuid.New()
	groups := newGroupRepoStub()
	groups.groups[groupID] = &group.Group{ID: groupID, Status: group.StatusCompleted}

	repo := newTriggerRepoStub()
	tr := dueTrigger(Type180Days, groupID)
	repo.due = []*Trigger{tr}

	converter := newConverterStub()
	svc := NewService(repo, groups, converter, &notifierStub{})

	if _, err := svc.ProcessDueTriggers(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(converter.conversions) != 0 {
		t.Fatal("completed group must not be converted")
	}
	if !repo.executed[tr.ID] {
		t.Fatal("trigger must still be marked executed")
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	badGroup := uuid.New()
	goodGroup := uuid.New()

	groups := newGroupRepoStub()
	groups.getErr[badGroup] = errors.New("db down")
	groups.groups[goodGroup] = &group.Group{ID: goodGroup, Status: group.StatusForming}
	groups.participants[goodGroup] = &group.Participant{GroupID: goodGroup, AmountPaidCents: 5000}

	repo := newTriggerRepoStub()
	bad := dueTrigger(Type180Days, badGroup)
	good := dueTrigger(Type180Days, goodGroup)
	repo.due = []*Trigger{bad, good}

	converter := newConverterStub()
	svc := NewService(repo, groups, converter, &notifierStub{})

	results, err := svc.ProcessDueTriggers(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("expected first item to fail")
	}
	if results[1].Err != nil {
		t.Fatalf("second item should still process: %v", results[1].Err)
	}
	if repo.executed[bad.ID] {
		t.Fatal("failed trigger must stay unexecuted for retry")
	}
	if !repo.executed[good.ID] {
		t.Fatal("good trigger not executed")
	}
}

func TestStaleSweepSkipsConvertedMemberships(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()

	groups := newGroupRepoStub()
	repo := newTriggerRepoStub()
	repo.stale = []*StaleMembership{{GroupID: groupID, UserID: userID, AmountPaidCents: 7000}}

	converter := newConverterStub()
	// Simulate an earlier conversion under the same reference.
	converter.conversions[ConversionRef(groupID, userID)] = 7000

	svc := NewService(repo, groups, converter, &notifierStub{})
	results, err := svc.SweepStaleGroups(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected item err: %v", results[0].Err)
	}
	if len(groups.expired) != 0 {
		t.Fatal("already-converted membership must not expire the group again")
	}
}

func TestStaleSweepConvertsMissedMembership(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()

	groups := newGroupRepoStub()
	repo := newTriggerRepoStub()
	repo.stale = []*StaleMembership{{GroupID: groupID, UserID: userID, AmountPaidCents: 7000}}

	converter := newConverterStub()
	svc := NewService(repo, groups, converter, &notifierStub{})

	if _, err := svc.SweepStaleGroups(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if converter.conversions[ConversionRef(groupID, userID)] != 7000 {
		t.Fatal("missed membership not converted")
	}
	if len(groups.expired) != 1 {
		t.Fatal("stale group not expired")
	}
}
