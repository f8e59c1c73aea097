package referral

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/domain/plan"
)

type commissionRepoStub struct {
	byRef     map[string]*Commission
	confirmed map[uuid.UUID]bool
	created   []*Commission
}

func newCommissionRepoStub() *commissionRepoStub {
	return &commissionRepoStub{
		byRef:     map[string]*Commission{},
		confirmed: map[uuid.UUID]bool{},
	}
}

func (r *commissionRepoStub) Create(_ context.Context, c *Commission) error {
	r.created = append(r.created, c)
	r.byRef[c.ReferredUserID.String()+"/"+c.PaymentRef] = c
	return nil
}

func (r *commissionRepoStub) GetByID(_ context.Context, id uuid.UUID) (*Commission, error) {
	for _, c := range r.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *commissionRepoStub) FindByPurchase(_ context.Context, referredUserID uuid.UUID, paymentRef string) (*Commission, error) {
	c, ok := r.byRef[referredUserID.String()+"/"+paymentRef]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *commissionRepoStub) Confirm(_ context.Context, id uuid.UUID) (bool, error) {
	if r.confirmed[id] {
		return false, nil
	}
	r.confirmed[id] = true
	for _, c := range r.created {
		if c.ID == id {
			c.Status = StatusConfirmed
		}
	}
	return true, nil
}

func (r *commissionRepoStub) ListByReferrer(context.Context, uuid.UUID, int, int) ([]*Commission, error) {
	return r.created, nil
}

func (r *commissionRepoStub) StatsByReferrer(context.Context, uuid.UUID) (*Stats, error) {
	return &Stats{}, nil
}

type directoryStub struct {
	codes       map[string]uuid.UUID
	referredBy  map[uuid.UUID]uuid.UUID
	setErr      error
	resolveErrs bool
}

func (d *directoryStub) ResolveReferralCode(_ context.Context, code string) (uuid.UUID, error) {
	if d.resolveErrs {
		return uuid.Nil, errors.New("db down")
	}
	id, ok := d.codes[code]
	if !ok {
		return uuid.Nil, errors.New("code not found")
	}
	return id, nil
}

func (d *directoryStub) SetReferredBy(_ context.Context, userID, referrerID uuid.UUID) error {
	if d.setErr != nil {
		return d.setErr
	}
	if d.referredBy == nil {
		d.referredBy = map[uuid.UUID]uuid.UUID{}
	}
	d.referredBy[userID] = referrerID
	return nil
}

type ledgerStub struct {
	credits map[string]int64
	err     error
}

func (l *ledgerStub) AddReferralBonus(_ context.Context, _ uuid.UUID, amountCents int64, _, referenceID string) error {
	if l.err != nil {
		return l.err
	}
	if l.credits == nil {
		l.credits = map[string]int64{}
	}
	// Mirrors the ledger's reference dedupe.
	if _, seen := l.credits[referenceID]; seen {
		return nil
	}
	l.credits[referenceID] = amountCents
	return nil
}

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

func TestRecordReferralUnknownCodeIsNonFatal(t *testing.T) {
	svc := NewService(newCommissionRepoStub(), &directoryStub{codes: map[string]uuid.UUID{}}, &planRepoStub{}, &ledgerStub{}, 10, 25)

	if _, ok := svc.RecordReferral(context.Background(), "NOPE", uuid.New()); ok {
		t.Fatal("unknown code should not record a referral")
	}
}

func TestRecordReferralSelfIgnored(t *testing.T) {
	userID := uuid.New()
	dir := &directoryStub{codes: map[string]uuid.UUID{"MINE": userID}}
	svc := NewService(newCommissionRepoStub(), dir, &planRepoStub{}, &ledgerStub{}, 10, 25)

	if _, ok := svc.RecordReferral(context.Background(), "MINE", userID); ok {
		t.Fatal("self-referral should be ignored")
	}
}

func TestRecordReferralSetsReferrer(t *testing.T) {
	referrerID := uuid.New()
	referredID := uuid.New()
	dir := &directoryStub{codes: map[string]uuid.UUID{"ABC123": referrerID}}
	svc := NewService(newCommissionRepoStub(), dir, &planRepoStub{}, &ledgerStub{}, 10, 25)

	got, ok := svc.RecordReferral(context.Background(), "ABC123", referredID)
	if !ok || got != referrerID {
		t.Fatalf("expected referral recorded for %s, got %s ok=%v", referrerID, got, ok)
	}
	if dir.referredBy[referredID] != referrerID {
		t.Fatal("referred_by not persisted")
	}
}

func TestCreateCommissionUsesFlowDefault(t *testing.T) {
	repo := newCommissionRepoStub()
	svc := NewService(repo, &directoryStub{}, &planRepoStub{}, &ledgerStub{}, 10, 25)

	pix, err := svc.CreateCommission(context.Background(), uuid.New(), uuid.New(), uuid.NullUUID{}, FlowPix, 10000, "pay_1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if pix.AmountCents != 1000 || pix.Percent != 10 {
		t.Fatalf("pix commission = %d cents at %d%%, want 1000 at 10%%", pix.AmountCents, pix.Percent)
	}

	stripe, err := svc.CreateCommission(context.Background(), uuid.New(), uuid.New(), uuid.NullUUID{}, FlowStripe, 10000, "pay_2")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stripe.AmountCents != 2500 || stripe.Percent != 25 {
		t.Fatalf("stripe commission = %d cents at %d%%, want 2500 at 25%%", stripe.AmountCents, stripe.Percent)
	}
}

func TestCreateCommissionPlanOverrideWins(t *testing.T) {
	planID := uuid.New()
	planRepo := &planRepoStub{plan: &plan.Plan{ID: planID, CommissionPercent: sql.NullInt64{Int64: 15, Valid: true}}}
	svc := NewService(newCommissionRepoStub(), &directoryStub{}, planRepo, &ledgerStub{}, 10, 25)

	c, err := svc.CreateCommission(context.Background(), uuid.New(), uuid.New(), uuid.NullUUID{UUID: planID, Valid: true}, FlowPix, 10000, "pay_1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Percent != 15 || c.AmountCents != 1500 {
		t.Fatalf("override commission = %d cents at %d%%, want 1500 at 15%%", c.AmountCents, c.Percent)
	}
}

func TestCreateCommissionRejectsZeroAmount(t *testing.T) {
	svc := NewService(newCommissionRepoStub(), &directoryStub{}, &planRepoStub{}, &ledgerStub{}, 10, 25)

	if _, err := svc.CreateCommission(context.Background(), uuid.New(), uuid.New(), uuid.NullUUID{}, FlowPix, 0, "pay_1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestConfirmCommissionCreditsOnce(t *testing.T) {
	repo := newCommissionRepoStub()
	ledger := &ledgerStub{}
	svc := NewService(repo, &directoryStub{}, &planRepoStub{}, ledger, 10, 25)

	referrerID := uuid.New()
	referredID := uuid.New()
	c, err := svc.CreateCommission(context.Background(), referrerID, referredID, uuid.NullUUID{}, FlowPix, 10000, "pay_1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.ConfirmCommission(context.Background(), referredID, "pay_1"); err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
	}

	var total int64
	for ref, cents := range ledger.credits {
		if !strings.Contains(ref, c.ID.String()) {
			t.Fatalf("credit reference %q does not carry the commission id", ref)
		}
		total += cents
	}
	if total != 1000 {
		t.Fatalf("referrer credited %d cents, want exactly 1000", total)
	}
}

func TestConfirmCommissionRetryAfterLedgerFailure(t *testing.T) {
	repo := newCommissionRepoStub()
	ledger := &ledgerStub{err: errors.New("ledger down")}
	svc := NewService(repo, &directoryStub{}, &planRepoStub{}, ledger, 10, 25)

	referrerID := uuid.New()
	referredID := uuid.New()
	c, err := svc.CreateCommission(context.Background(), referrerID, referredID, uuid.NullUUID{}, FlowPix, 10000, "pay_1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// First delivery transitions the commission but the credit fails.
	if err := svc.ConfirmCommission(context.Background(), referredID, "pay_1"); err == nil {
		t.Fatal("expected error while ledger is down")
	}
	if c.Status != StatusConfirmed {
		t.Fatalf("commission status = %s, want confirmed", c.Status)
	}

	// The ledger recovers and the webhook is redelivered.
	ledger.err = nil
	if err := svc.ConfirmCommission(context.Background(), referredID, "pay_1"); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	var total int64
	for ref, cents := range ledger.credits {
		if !strings.Contains(ref, c.ID.String()) {
			t.Fatalf("credit reference %q does not carry the commission id", ref)
		}
		total += cents
	}
	if total != 1000 {
		t.Fatalf("referrer credited %d cents, want exactly 1000", total)
	}
}

func TestConfirmCommissionNoReferralIsNoop(t *testing.T) {
	ledger := &ledgerStub{}
	svc := NewService(newCommissionRepoStub(), &directoryStub{}, &planRepoStub{}, ledger, 10, 25)

	if err := svc.ConfirmCommission(context.Background(), uuid.New(), "pay_1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ledger.credits) != 0 {
		t.Fatal("nothing should be credited without a commission")
	}
}
