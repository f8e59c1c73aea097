package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/domain/user"
	"github.com/coopera/coopera-api/internal/pkg/jwt"
	"github.com/coopera/coopera-api/internal/pkg/password"
)

const referralCodeLength = 8

// maxCodeAttempts bounds retries when a generated referral code collides.
const maxCodeAttempts = 5

// Service handles authentication business logic
type Service struct {
	userRepo   user.Repository
	jwtService *jwt.Service
	redis      *redis.Client // nil if Redis disabled
}

// NewService creates auth service
func NewService(userRepo user.Repository, jwtService *jwt.Service, redis *redis.Client) *Service {
	return &Service{
		userRepo:   userRepo,
		jwtService: jwtService,
		redis:      redis,
	}
}

// Register creates a new account. A valid referral code links the new
// user to their referrer; an unknown code is ignored, never an error.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)

	if !user.IsValidRole(req.Role) {
		return nil, ErrInvalidRole
	}

	existing, _ := s.userRepo.GetByEmail(ctx, req.Email)
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	referredBy := s.resolveReferrer(ctx, req.ReferralCode)

	now := time.Now()
	u := &user.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         user.Role(req.Role),
		ReferredBy:   referredBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.createWithFreshCode(ctx, u); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", u.ID.String()).
		Str("role", string(u.Role)).
		Bool("referred", referredBy.Valid).
		Msg("user registered")

	return s.generateTokens(ctx, u)
}

// Login authenticates user
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)

	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}

	if !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if u.IsBanned {
		return nil, ErrUserBanned
	}

	_ = s.userRepo.UpdateLastLogin(ctx, u.ID)

	return s.generateTokens(ctx, u)
}

// Refresh rotates the refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrRefreshTokenRequired
	}

	refreshHash := jwt.HashRefreshToken(refreshToken)
	userID, err := s.getRefreshToken(ctx, refreshHash)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}
	if u.IsBanned {
		return nil, ErrUserBanned
	}

	// Token rotation
	_ = s.deleteRefreshToken(ctx, refreshHash)

	return s.generateTokens(ctx, u)
}

// Logout invalidates refresh token
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.deleteRefreshToken(ctx, jwt.HashRefreshToken(refreshToken))
}

// GetCurrentUser returns current user by ID
func (s *Service) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}

	resp := newUserResponse(u)
	return &resp, nil
}

func (s *Service) resolveReferrer(ctx context.Context, code string) uuid.NullUUID {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return uuid.NullUUID{}
	}

	referrer, err := s.userRepo.GetByReferralCode(ctx, code)
	if err != nil {
		log.Warn().Str("code", code).Msg("registration referral code did not resolve")
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: referrer.ID, Valid: true}
}

// createWithFreshCode generates the user's own referral code, retrying
// on the rare collision.
func (s *Service) createWithFreshCode(ctx context.Context, u *user.User) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		u.ReferralCode = generateReferralCode()
		err := s.userRepo.Create(ctx, u)
		if errors.Is(err, user.ErrDuplicateCode) {
			continue
		}
		if errors.Is(err, user.ErrEmailTaken) {
			return ErrEmailAlreadyExists
		}
		return err
	}
	return user.ErrDuplicateCode
}

func generateReferralCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, referralCodeLength)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		ReferralCode: u.ReferralCode,
		CreatedAt:    u.CreatedAt,
	}
}

// generateTokens creates access and refresh tokens
func (s *Service) generateTokens(ctx context.Context, u *user.User) (*AuthResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(u.ID, string(u.Role), u.IsBanned)
	if err != nil {
		return nil, err
	}

	refreshToken, _, _, err := s.jwtService.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	// Store hash(refresh) so rotation and logout can revoke it
	refreshHash := jwt.HashRefreshToken(refreshToken)
	if err := s.storeRefreshToken(ctx, refreshHash, u.ID); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User: newUserResponse(u),
		Tokens: TokensResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int(s.jwtService.GetAccessTTL().Seconds()),
		},
	}, nil
}

// Redis helpers (handle nil redis gracefully)
func (s *Service) storeRefreshToken(ctx context.Context, token string, userID uuid.UUID) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Set(ctx, "refresh:"+token, userID.String(), s.jwtService.GetRefreshTTL()).Err()
}

func (s *Service) getRefreshToken(ctx context.Context, token string) (uuid.UUID, error) {
	if s.redis == nil {
		return uuid.Nil, ErrInvalidRefreshToken
	}
	val, err := s.redis.Get(ctx, "refresh:"+token).Result()
	if err != nil {
		return uuid.Nil, ErrInvalidRefreshToken
	}
	return uuid.Parse(val)
}

func (s *Service) deleteRefreshToken(ctx context.Context, token string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, "refresh:"+token).Err()
}
