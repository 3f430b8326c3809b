/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL needed to manage accounts and transactions,
 * including the row-locked balance mutation and the single-transaction
 * preferred-flag rotation.
 *
 * @dependencies
 * - context, errors, fmt, strings: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ytlpay/wallet-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrAccountNumberTaken  = errors.New("account number already taken")
	ErrTransactionIDTaken  = errors.New("transaction id already taken")

	// ErrTransactionNotPending is returned by the finalize methods when the
	// transaction has already left the pending status, typically because a
	// concurrent cancel reached the row first.
	ErrTransactionNotPending = errors.New("transaction is not pending")
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `
	id, account_name, account_number, account_type, currency, balance,
	is_active, token, token_expiry, provider, credit_limit, preferred,
	authorized_amount, user_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.AccountName, &a.AccountNumber, &a.AccountType, &a.Currency,
		&a.Balance, &a.IsActive, &a.Token, &a.TokenExpiry, &a.Provider,
		&a.CreditLimit, &a.Preferred, &a.AuthorizedAmount, &a.UserID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account row. A duplicate account number is
// reported as ErrAccountNumberTaken via the unique constraint.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (
			id, account_name, account_number, account_type, currency, balance,
			is_active, token, token_expiry, provider, credit_limit, preferred,
			authorized_amount, user_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID, account.AccountName, account.AccountNumber, account.AccountType,
		account.Currency, account.Balance, account.IsActive, account.Token,
		account.TokenExpiry, account.Provider, account.CreditLimit, account.Preferred,
		account.AuthorizedAmount, account.UserID,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAccountNumberTaken
		}
		return err
	}
	return nil
}

// FindAccountByID retrieves one account by its primary key.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByNumber retrieves one account by its human-facing number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountNumber))
}

// FindAccountsByUserID retrieves every account owned by the given user.
func (r *PostgresRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// FindPreferredAccountByUserID retrieves the single preferred account for a
// user, if one exists.
func (r *PostgresRepository) FindPreferredAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE user_id = $1 AND preferred = TRUE`
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

func collectAccounts(rows pgx.Rows) ([]domain.Account, error) {
	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// ListAccounts returns accounts matching the typed equality filter, paginated.
func (r *PostgresRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter, opts domain.ListOptions) ([]domain.Account, error) {
	opts = opts.Normalize()

	conditions := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.UserID != nil {
		conditions = append(conditions, "user_id = "+arg(*filter.UserID))
	}
	if filter.AccountType != nil {
		conditions = append(conditions, "account_type = "+arg(*filter.AccountType))
	}
	if filter.Currency != nil {
		conditions = append(conditions, "currency = "+arg(*filter.Currency))
	}
	if filter.IsActive != nil {
		conditions = append(conditions, "is_active = "+arg(*filter.IsActive))
	}
	if filter.Preferred != nil {
		conditions = append(conditions, "preferred = "+arg(*filter.Preferred))
	}

	query := `SELECT` + accountColumns + ` FROM accounts WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// IsAccountNumberTaken reports whether another account already holds the number.
func (r *PostgresRepository) IsAccountNumberTaken(ctx context.Context, accountNumber string, excludeAccountID *uuid.UUID) (bool, error) {
	var exists bool
	var err error
	if excludeAccountID != nil {
		err = r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1 AND id <> $2)",
			accountNumber, *excludeAccountID,
		).Scan(&exists)
	} else {
		err = r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)",
			accountNumber,
		).Scan(&exists)
	}
	return exists, err
}

// UpdateAccount applies the whitelisted patch fields to an account and
// returns the updated row.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, accountID uuid.UUID, patch domain.AccountPatch) (*domain.Account, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{accountID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if patch.AccountName != nil {
		sets = append(sets, "account_name = "+arg(*patch.AccountName))
	}
	if patch.AccountNumber != nil {
		sets = append(sets, "account_number = "+arg(*patch.AccountNumber))
	}
	if patch.AccountType != nil {
		sets = append(sets, "account_type = "+arg(*patch.AccountType))
	}
	if patch.Provider != nil {
		sets = append(sets, "provider = "+arg(*patch.Provider))
	}
	if patch.CreditLimit != nil {
		sets = append(sets, "credit_limit = "+arg(*patch.CreditLimit))
	}
	if patch.AuthorizedAmount != nil {
		sets = append(sets, "authorized_amount = "+arg(*patch.AuthorizedAmount))
	}

	query := `UPDATE accounts SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING` + accountColumns

	account, err := scanAccount(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrAccountNumberTaken
		}
		return nil, err
	}
	return account, nil
}

// DeactivateAccount soft-deletes an account. Rows are never physically removed.
func (r *PostgresRepository) DeactivateAccount(ctx context.Context, accountID uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		"UPDATE accounts SET is_active = FALSE, updated_at = NOW() WHERE id = $1", accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetPreferredAccount marks one account preferred and unsets every sibling of
// the same owner. Both writes happen inside a single database transaction so
// concurrent account creations for the same owner cannot leave two preferred
// rows behind.
func (r *PostgresRepository) SetPreferredAccount(ctx context.Context, userID uuid.UUID, accountID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"UPDATE accounts SET preferred = FALSE, updated_at = NOW() WHERE user_id = $1 AND id <> $2 AND preferred = TRUE",
		userID, accountID)
	if err != nil {
		return err
	}

	result, err := tx.Exec(ctx,
		"UPDATE accounts SET preferred = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2",
		accountID, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

// ApplyBalanceDelta adjusts an account balance atomically. The row is locked
// with FOR UPDATE between the read and the write so two concurrent movements
// against the same account cannot both observe the pre-debit balance.
func (r *PostgresRepository) ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, delta int64) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if balance+delta < 0 {
		return nil, ErrInsufficientFunds
	}

	account, err := scanAccount(tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING`+accountColumns,
		delta, accountID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

const transactionColumns = `
	id, account_id, transaction_id, transaction_type, status, amount,
	description, error_code, error_message, token_id, recipient_phone,
	created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.AccountID, &t.TransactionID, &t.TransactionType, &t.Status,
		&t.Amount, &t.Description, &t.ErrorCode, &t.ErrorMessage, &t.TokenID,
		&t.RecipientPhone, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateTransaction inserts a new transaction row. A duplicate generated
// transaction id is reported as ErrTransactionIDTaken.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, account_id, transaction_id, transaction_type, status, amount,
			description, error_code, error_message, token_id, recipient_phone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		t.ID, t.AccountID, t.TransactionID, t.TransactionType, t.Status, t.Amount,
		t.Description, t.ErrorCode, t.ErrorMessage, t.TokenID, t.RecipientPhone,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrTransactionIDTaken
		}
		return err
	}
	return nil
}

// FindTransactionByID retrieves one transaction by its primary key.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID))
}

// IsTransactionIDTaken reports whether the generated human-facing id is
// already present. Callers retry generation on collision.
func (r *PostgresRepository) IsTransactionIDTaken(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1)", transactionID).Scan(&exists)
	return exists, err
}

// ListTransactions returns transactions matching the typed equality filter, paginated.
func (r *PostgresRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error) {
	opts = opts.Normalize()

	conditions := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = "+arg(*filter.AccountID))
	}
	if filter.TransactionType != nil {
		conditions = append(conditions, "transaction_type = "+arg(*filter.TransactionType))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+arg(*filter.Status))
	}

	query := `SELECT` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// UpdateTransaction applies the whitelisted patch fields to a transaction and
// returns the updated row. Status is not reachable through this path.
func (r *PostgresRepository) UpdateTransaction(ctx context.Context, transactionID uuid.UUID, patch domain.TransactionPatch) (*domain.Transaction, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{transactionID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if patch.Description != nil {
		sets = append(sets, "description = "+arg(*patch.Description))
	}
	if patch.To != nil {
		sets = append(sets, "recipient_phone = "+arg(*patch.To))
	}

	query := `UPDATE transactions SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING` + transactionColumns
	return scanTransaction(r.db.QueryRow(ctx, query, args...))
}

// MarkTransactionFailed finalizes a pending transaction with the gateway's
// decline code. The code doubles as the message on the wire. The status guard
// keeps a concurrent cancel from being overwritten.
func (r *PostgresRepository) MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, errorCode, errorMessage string) error {
	result, err := r.db.Exec(ctx,
		"UPDATE transactions SET status = 'failed', error_code = $2, error_message = $3, updated_at = NOW() WHERE id = $1 AND status = 'pending'",
		transactionID, errorCode, errorMessage)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.classifyFinalizeMiss(ctx, transactionID)
	}
	return nil
}

// MarkTransactionSucceeded finalizes a pending transaction as successful. The
// status guard keeps a concurrent cancel from being overwritten.
func (r *PostgresRepository) MarkTransactionSucceeded(ctx context.Context, transactionID uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		"UPDATE transactions SET status = 'success', updated_at = NOW() WHERE id = $1 AND status = 'pending'", transactionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.classifyFinalizeMiss(ctx, transactionID)
	}
	return nil
}

// classifyFinalizeMiss distinguishes a missing row from one that has already
// left the pending status.
func (r *PostgresRepository) classifyFinalizeMiss(ctx context.Context, transactionID uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)", transactionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrTransactionNotFound
	}
	return ErrTransactionNotPending
}

// CancelTransaction soft-cancels a transaction: the status flips to
// 'cancelled' and nothing else changes. Balance mutations from an already
// succeeded transaction are NOT reversed; cancellation is an audit annotation.
func (r *PostgresRepository) CancelTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `UPDATE transactions SET status = 'cancelled', updated_at = NOW() WHERE id = $1 RETURNING` + transactionColumns
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID))
}
