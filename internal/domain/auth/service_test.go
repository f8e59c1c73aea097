package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/domain/user"
	"github.com/coopera/coopera-api/internal/pkg/jwt"
	"github.com/coopera/coopera-api/internal/pkg/password"
)

type userRepoStub struct {
	byEmail    map[string]*user.User
	byCode     map[string]*user.User
	codeClash  int
	lastCreate *user.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{byEmail: map[string]*user.User{}, byCode: map[string]*user.User{}}
}

func (r *userRepoStub) Create(_ context.Context, u *user.User) error {
	if r.codeClash > 0 {
		r.codeClash--
		return user.ErrDuplicateCode
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return user.ErrEmailTaken
	}
	r.byEmail[u.Email] = u
	r.byCode[u.ReferralCode] = u
	r.lastCreate = u
	return nil
}

func (r *userRepoStub) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *userRepoStub) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (r *userRepoStub) GetByReferralCode(_ context.Context, code string) (*user.User, error) {
	u, ok := r.byCode[code]
	if !ok {
		return nil, user.ErrCodeNotFound
	}
	return u, nil
}

func (r *userRepoStub) UpdatePassword(context.Context, uuid.UUID, string) error { return nil }
func (r *userRepoStub) UpdateLastLogin(context.Context, uuid.UUID) error        { return nil }
func (r *userRepoStub) SetReferredBy(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}
func (r *userRepoStub) SearchByNameOrEmail(context.Context, string, int) ([]*user.User, error) {
	return nil, nil
}

func newTestService(repo *userRepoStub) *Service {
	return NewService(repo, jwt.NewService("test-secret", 15*time.Minute, 7*24*time.Hour), nil)
}

func registerReq(email string) *RegisterRequest {
	return &RegisterRequest{Name: "Ana Souza", Email: email, Password: "supersecret", Role: "user"}
}

func TestRegisterIssuesTokensAndCode(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestService(repo)

	resp, err := svc.Register(context.Background(), registerReq("ana@example.com"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if len(resp.User.ReferralCode) != referralCodeLength {
		t.Fatalf("referral code %q has wrong length", resp.User.ReferralCode)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc := newTestService(newUserRepoStub())

	req := registerReq("ana@example.com")
	req.Role = "admin"
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestService(repo)

	if _, err := svc.Register(context.Background(), registerReq("ana@example.com")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Register(context.Background(), registerReq("ANA@example.com ")); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestRegisterLinksReferrer(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestService(repo)

	referrer, err := svc.Register(context.Background(), registerReq("influencer@example.com"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	req := registerReq("buyer@example.com")
	req.ReferralCode = referrer.User.ReferralCode
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	created := repo.lastCreate
	if !created.ReferredBy.Valid || created.ReferredBy.UUID != referrer.User.ID {
		t.Fatal("referred_by not linked to referrer")
	}
}

func TestRegisterUnknownReferralCodeIgnored(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestService(repo)

	req := registerReq("buyer@example.com")
	req.ReferralCode = "NOPE1234"
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("unknown code must not block registration: %v", err)
	}
	if repo.lastCreate.ReferredBy.Valid {
		t.Fatal("unknown code should leave referred_by unset")
	}
}

func TestRegisterRetriesOnCodeCollision(t *testing.T) {
	repo := newUserRepoStub()
	repo.codeClash = 2
	svc := newTestService(repo)

	if _, err := svc.Register(context.Background(), registerReq("ana@example.com")); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newUserRepoStub()
	hash, _ := password.Hash("correct-horse")
	repo.byEmail["ana@example.com"] = &user.User{ID: uuid.New(), Email: "ana@example.com", PasswordHash: hash, Role: user.RoleUser}
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "ana@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginBannedUser(t *testing.T) {
	repo := newUserRepoStub()
	hash, _ := password.Hash("correct-horse")
	repo.byEmail["ana@example.com"] = &user.User{ID: uuid.New(), Email: "ana@example.com", PasswordHash: hash, Role: user.RoleUser, IsBanned: true}
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "ana@example.com", Password: "correct-horse"})
	if !errors.Is(err, ErrUserBanned) {
		t.Fatalf("expected ErrUserBanned, got %v", err)
	}
}
