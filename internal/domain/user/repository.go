package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, email, name, password_hash, role, is_banned, referral_code, referred_by, last_login_at, created_at, updated_at`

// Repository defines user data access interface
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByReferralCode(ctx context.Context, code string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) error
	SearchByNameOrEmail(ctx context.Context, query string, limit int) ([]*User, error)
}

// repository implements Repository
type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create creates a new user
func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, role, is_banned, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.IsBanned,
		user.ReferralCode,
		user.ReferredBy,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "users_referral_code_key" {
				return ErrDuplicateCode
			}
			return ErrEmailTaken
		}
		return fmt.Errorf("user repository create: %w", err)
	}

	return nil
}

// GetByID returns user by ID
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user repository get by id: %w", err)
	}
	return &user, nil
}

// GetByEmail returns user by email
func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user repository get by email: %w", err)
	}
	return &user, nil
}

// GetByReferralCode resolves a referral code to its owner
func (r *repository) GetByReferralCode(ctx context.Context, code string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("user repository get by referral code: %w", err)
	}
	return &user, nil
}

// UpdatePassword updates password hash
func (r *repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	return err
}

// UpdateLastLogin records the login time
func (r *repository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// SetReferredBy links a user to the referrer who invited them.
// Set at most once: a user that already has a referrer keeps it.
func (r *repository) SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET referred_by = $2, updated_at = NOW()
		WHERE id = $1 AND referred_by IS NULL
	`, id, referrerID)
	return err
}

// SearchByNameOrEmail finds users matching a substring of name or email.
// Used by manual contemplation to resolve a member identifier.
func (r *repository) SearchByNameOrEmail(ctx context.Context, query string, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = 20
	}

	users := make([]*User, 0)
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users
		WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY created_at
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("user repository search: %w", err)
	}
	return users, nil
}
