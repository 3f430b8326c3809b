/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access required by the wallet-service. The interface decouples the business
 * logic from PostgreSQL and lets tests substitute in-memory fakes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For entity identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/ytlpay/wallet-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	FindPreferredAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter, opts domain.ListOptions) ([]domain.Account, error)
	IsAccountNumberTaken(ctx context.Context, accountNumber string, excludeAccountID *uuid.UUID) (bool, error)
	UpdateAccount(ctx context.Context, accountID uuid.UUID, patch domain.AccountPatch) (*domain.Account, error)
	DeactivateAccount(ctx context.Context, accountID uuid.UUID) error

	// SetPreferredAccount marks accountID preferred and unsets the flag on
	// every sibling owned by userID within one database transaction.
	SetPreferredAccount(ctx context.Context, userID uuid.UUID, accountID uuid.UUID) error

	// ApplyBalanceDelta atomically adjusts an account balance under a row
	// lock. A delta that would drive the balance negative returns
	// ErrInsufficientFunds and leaves the row untouched.
	ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, delta int64) (*domain.Account, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	IsTransactionIDTaken(ctx context.Context, transactionID string) (bool, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID uuid.UUID, patch domain.TransactionPatch) (*domain.Transaction, error)
	MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, errorCode, errorMessage string) error
	MarkTransactionSucceeded(ctx context.Context, transactionID uuid.UUID) error
	CancelTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
}
