package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/domain/referral"
)

type paymentRepoStub struct {
	rows map[string]*Payment
}

func newPaymentRepoStub() *paymentRepoStub {
	return &paymentRepoStub{rows: map[string]*Payment{}}
}

func key(p Provider, externalID string) string { return string(p) + "/" + externalID }

func (r *paymentRepoStub) Record(_ context.Context, p *Payment) (*Payment, error) {
	k := key(p.Provider, p.ExternalID)
	if existing, ok := r.rows[k]; ok {
		return existing, nil
	}
	stored := *p
	stored.Status = StatusPending
	r.rows[k] = &stored
	return &stored, nil
}

func (r *paymentRepoStub) MarkConfirmed(_ context.Context, p Provider, externalID string) (bool, error) {
	row, ok := r.rows[key(p, externalID)]
	if !ok || row.Status != StatusPending {
		return false, nil
	}
	row.Status = StatusConfirmed
	return true, nil
}

func (r *paymentRepoStub) GetByExternalID(_ context.Context, p Provider, externalID string) (*Payment, error) {
	row, ok := r.rows[key(p, externalID)]
	if !ok {
		return nil, ErrNotFound
	}
	return row, nil
}

func (r *paymentRepoStub) ListByUser(context.Context, uuid.UUID, int, int) ([]*Payment, error) {
	return nil, nil
}

type groupManagerStub struct {
	joins    int
	marks    int
	joinErr  error
	groupID  uuid.UUID
	failOnce bool
}

func (g *groupManagerStub) JoinGroup(context.Context, uuid.UUID, uuid.UUID, int64) (uuid.UUID, error) {
	if g.failOnce {
		g.failOnce = false
		return uuid.Nil, errors.New("db down")
	}
	if g.joinErr != nil {
		return uuid.Nil, g.joinErr
	}
	g.joins++
	return g.groupID, nil
}

func (g *groupManagerStub) MarkPaid(context.Context, uuid.UUID, uuid.UUID) error {
	g.marks++
	return nil
}

type commissionStub struct {
	referrerID uuid.UUID
	recorded   int
	created    int
	confirmed  int
}

func (c *commissionStub) RecordReferral(context.Context, string, uuid.UUID) (uuid.UUID, bool) {
	c.recorded++
	if c.referrerID == uuid.Nil {
		return uuid.Nil, false
	}
	return c.referrerID, true
}

func (c *commissionStub) CreateCommission(context.Context, uuid.UUID, uuid.UUID, uuid.NullUUID, referral.Flow, int64, string) (*referral.Commission, error) {
	c.created++
	return &referral.Commission{ID: uuid.New()}, nil
}

func (c *commissionStub) ConfirmCommission(context.Context, uuid.UUID, string) error {
	c.confirmed++
	return nil
}

func event(planID uuid.UUID, code string) *ConfirmedEvent {
	return &ConfirmedEvent{
		Provider:     ProviderAsaas,
		ExternalID:   "pay_123",
		UserID:       uuid.New(),
		PlanID:       uuid.NullUUID{UUID: planID, Valid: true},
		AmountCents:  10000,
		ReferralCode: code,
	}
}

func TestProcessConfirmedFirstDelivery(t *testing.T) {
	repo := newPaymentRepoStub()
	groups := &groupManagerStub{groupID: uuid.New()}
	commissions := &commissionStub{referrerID: uuid.New()}
	svc := NewService(repo, groups, commissions)

	if err := svc.ProcessConfirmed(context.Background(), event(uuid.New(), "ABC123")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if groups.joins != 1 {
		t.Fatalf("expected 1 group join, got %d", groups.joins)
	}
	if commissions.created != 1 || commissions.confirmed != 1 {
		t.Fatalf("expected commission created+confirmed once, got %d/%d", commissions.created, commissions.confirmed)
	}

	stored, err := repo.GetByExternalID(context.Background(), ProviderAsaas, "pay_123")
	if err != nil || stored.Status != StatusConfirmed {
		t.Fatalf("payment not confirmed: %v %v", stored, err)
	}
}

func TestProcessConfirmedRedeliveryIsNoop(t *testing.T) {
	repo := newPaymentRepoStub()
	groups := &groupManagerStub{groupID: uuid.New()}
	commissions := &commissionStub{referrerID: uuid.New()}
	svc := NewService(repo, groups, commissions)

	ev := event(uuid.New(), "ABC123")
	for i := 0; i < 3; i++ {
		if err := svc.ProcessConfirmed(context.Background(), ev); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	if groups.joins != 1 {
		t.Fatalf("redelivery joined again: %d joins", groups.joins)
	}
	if commissions.created != 1 {
		t.Fatalf("redelivery created commission again: %d", commissions.created)
	}
}

func TestProcessConfirmedRetryAfterPartialFailure(t *testing.T) {
	repo := newPaymentRepoStub()
	groups := &groupManagerStub{groupID: uuid.New(), failOnce: true}
	commissions := &commissionStub{}
	svc := NewService(repo, groups, commissions)

	ev := event(uuid.New(), "")
	if err := svc.ProcessConfirmed(context.Background(), ev); err == nil {
		t.Fatal("expected first delivery to fail")
	}

	stored, _ := repo.GetByExternalID(context.Background(), ProviderAsaas, ev.ExternalID)
	if stored.Status != StatusPending {
		t.Fatal("failed delivery must leave payment pending for retry")
	}

	if err := svc.ProcessConfirmed(context.Background(), ev); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if groups.joins != 1 {
		t.Fatalf("expected retry to complete the join, got %d", groups.joins)
	}

	stored, _ = repo.GetByExternalID(context.Background(), ProviderAsaas, ev.ExternalID)
	if stored.Status != StatusConfirmed {
		t.Fatal("retry should confirm the payment")
	}
}

func TestProcessConfirmedMarksExistingMembership(t *testing.T) {
	repo := newPaymentRepoStub()
	groups := &groupManagerStub{}
	commissions := &commissionStub{}
	svc := NewService(repo, groups, commissions)

	ev := event(uuid.New(), "")
	ev.GroupID = uuid.NullUUID{UUID: uuid.New(), Valid: true}

	if err := svc.ProcessConfirmed(context.Background(), ev); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if groups.marks != 1 || groups.joins != 0 {
		t.Fatalf("expected mark-paid path, got marks=%d joins=%d", groups.marks, groups.joins)
	}
}

func TestProcessConfirmedUnknownCodeStillConfirms(t *testing.T) {
	repo := newPaymentRepoStub()
	groups := &groupManagerStub{groupID: uuid.New()}
	commissions := &commissionStub{} // referrerID nil: code does not resolve
	svc := NewService(repo, groups, commissions)

	if err := svc.ProcessConfirmed(context.Background(), event(uuid.New(), "BOGUS")); err != nil {
		t.Fatalf("unknown referral code must not fail the purchase: %v", err)
	}
	if commissions.created != 0 {
		t.Fatal("no commission should be created for an unresolved code")
	}
}
