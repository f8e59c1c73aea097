package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository provides credit balance and ledger operations.
// Every balance mutation and its ledger entry commit in one transaction.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// ensureBalance lazily creates the zeroed balance row.
func (r *Repository) ensureBalance(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO credit_balances (user_id, total_cents, available_cents, pending_withdrawal_cents)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// lockBalance creates the row if missing and takes a row lock on it.
func (r *Repository) lockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Balance, error) {
	if err := r.ensureBalance(ctx, tx, userID); err != nil {
		return nil, err
	}

	var b Balance
	err := tx.GetContext(ctx, &b, `
		SELECT user_id, total_cents, available_cents, pending_withdrawal_cents, updated_at
		FROM credit_balances
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) getTransactionByRef(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, source Source, referenceID string) (*Transaction, bool, error) {
	if referenceID == "" {
		return nil, false, nil
	}

	var t Transaction
	err := tx.GetContext(ctx, &t, `
		SELECT id, user_id, amount_cents, type, source, description, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1 AND source = $2 AND reference_id = $3
		LIMIT 1
	`, userID, string(source), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

func (r *Repository) updateBalance(ctx context.Context, tx *sqlx.Tx, b *Balance) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET total_cents = $2, available_cents = $3, pending_withdrawal_cents = $4, updated_at = now()
		WHERE user_id = $1
	`, b.UserID, b.TotalCents, b.AvailableCents, b.PendingWithdrawalCents)
	return err
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	var ref interface{}
	if t.ReferenceID != nil && *t.ReferenceID != "" {
		ref = *t.ReferenceID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount_cents, type, source, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.UserID, t.AmountCents, string(t.Type), string(t.Source), t.Description, ref)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrReferenceConflict
		}
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}

// GetBalance returns the balance row, creating a zeroed one if absent.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.ensureBalance(ctx2, r.db, userID); err != nil {
		return nil, fmt.Errorf("%w: ensure balance", ErrInternal)
	}

	var b Balance
	err := r.db.GetContext(ctx2, &b, `
		SELECT user_id, total_cents, available_cents, pending_withdrawal_cents, updated_at
		FROM credit_balances
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return &b, nil
}

// Add credits amount to total and available in one transaction with the ledger entry.
// When referenceID is non-empty the call is idempotent per (user, source, reference):
// a retry with the same amount is a success no-op, a different amount is ErrReferenceConflict.
func (r *Repository) Add(ctx context.Context, userID uuid.UUID, amount int64, source Source, description, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	b, err := r.lockBalance(ctx2, tx, userID)
	if err != nil {
		return fmt.Errorf("%w: lock balance", ErrInternal)
	}

	existing, exists, err := r.getTransactionByRef(ctx2, tx, userID, source, referenceID)
	if err != nil {
		return fmt.Errorf("%w: check reference", ErrInternal)
	}
	if exists {
		if existing.AmountCents != amount {
			return ErrReferenceConflict
		}
		return nil
	}

	b.TotalCents += amount
	b.AvailableCents += amount

	if err := r.updateBalance(ctx2, tx, b); err != nil {
		return fmt.Errorf("%w: update balance", ErrInternal)
	}

	entry := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amount,
		Type:        TxTypeCredit,
		Source:      source,
		Description: description,
	}
	if referenceID != "" {
		entry.ReferenceID = &referenceID
	}
	if err := r.insertTransaction(ctx2, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

// Use spends amount from available credits. Total is unchanged: lifetime
// totals are not reduced by spending.
func (r *Repository) Use(ctx context.Context, userID uuid.UUID, amount int64, source Source, description, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	b, err := r.lockBalance(ctx2, tx, userID)
	if err != nil {
		return fmt.Errorf("%w: lock balance", ErrInternal)
	}

	existing, exists, err := r.getTransactionByRef(ctx2, tx, userID, source, referenceID)
	if err != nil {
		return fmt.Errorf("%w: check reference", ErrInternal)
	}
	if exists {
		if existing.AmountCents != amount {
			return ErrReferenceConflict
		}
		return nil
	}

	if b.AvailableCents < amount {
		return ErrInsufficientBalance
	}
	b.AvailableCents -= amount

	if err := r.updateBalance(ctx2, tx, b); err != nil {
		return fmt.Errorf("%w: update balance", ErrInternal)
	}

	entry := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amount,
		Type:        TxTypeDebit,
		Source:      source,
		Description: description,
	}
	if referenceID != "" {
		entry.ReferenceID = &referenceID
	}
	if err := r.insertTransaction(ctx2, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

// Withdraw moves amount from available to pending withdrawal, creating the
// pending withdrawal request and the withdrawal debit entry atomically.
func (r *Repository) Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (*WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	b, err := r.lockBalance(ctx2, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock balance", ErrInternal)
	}

	if b.AvailableCents < amount {
		return nil, ErrInsufficientBalance
	}
	b.AvailableCents -= amount
	b.PendingWithdrawalCents += amount

	if err := r.updateBalance(ctx2, tx, b); err != nil {
		return nil, fmt.Errorf("%w: update balance", ErrInternal)
	}

	req := &WithdrawalRequest{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amount,
		Status:      WithdrawalPending,
	}
	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO withdrawal_requests (id, user_id, amount_cents, status)
		VALUES ($1, $2, $3, $4)
	`, req.ID, userID, amount, string(req.Status)); err != nil {
		return nil, fmt.Errorf("%w: insert withdrawal request", ErrInternal)
	}

	reqRef := req.ID.String()
	entry := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amount,
		Type:        TxTypeDebit,
		Source:      SourceWithdrawal,
		Description: "withdrawal request",
		ReferenceID: &reqRef,
	}
	if err := r.insertTransaction(ctx2, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return req, nil
}

// HasTransactionRef reports whether a ledger entry with the given source and
// reference already exists for the user. Used as the idempotence guard by the
// trigger sweep before converting expired group payments.
func (r *Repository) HasTransactionRef(ctx context.Context, userID uuid.UUID, source Source, referenceID string) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx2, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE user_id = $1 AND source = $2 AND reference_id = $3
		)
	`, userID, string(source), referenceID)
	if err != nil {
		return false, fmt.Errorf("%w: check transaction reference", ErrInternal)
	}
	return exists, nil
}

// ListTransactions returns the user's ledger, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount_cents, type, source, description, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return transactions, nil
}

// SearchTransactions returns filtered transactions (admin use).
func (r *Repository) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `
		SELECT id, user_id, amount_cents, type, source, description, reference_id, created_at
		FROM credit_transactions
		WHERE 1=1`
	args := make([]interface{}, 0, 8)
	idx := 1

	if filters.UserID != nil && *filters.UserID != "" {
		base += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, *filters.UserID)
		idx++
	}
	if filters.Type != nil && *filters.Type != "" {
		base += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, *filters.Type)
		idx++
	}
	if filters.Source != nil && *filters.Source != "" {
		base += fmt.Sprintf(" AND source = $%d", idx)
		args = append(args, *filters.Source)
		idx++
	}
	if filters.DateFrom != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filters.DateFrom)
		idx++
	}
	if filters.DateTo != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filters.DateTo)
		idx++
	}
	if filters.ReferenceID != nil && *filters.ReferenceID != "" {
		base += fmt.Sprintf(" AND reference_id = $%d", idx)
		args = append(args, *filters.ReferenceID)
		idx++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	base = strings.TrimSpace(base) + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filters.Offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, base, args...); err != nil {
		return nil, fmt.Errorf("%w: search transactions", ErrInternal)
	}
	return transactions, nil
}

// ListWithdrawals returns the user's withdrawal requests, newest first.
func (r *Repository) ListWithdrawals(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]WithdrawalRequest, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	requests := make([]WithdrawalRequest, 0)
	err := r.db.SelectContext(ctx2, &requests, `
		SELECT id, user_id, amount_cents, status, settled_at, created_at
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list withdrawals", ErrInternal)
	}
	return requests, nil
}
