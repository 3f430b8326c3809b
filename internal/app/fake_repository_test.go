package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ytlpay/wallet-service/internal/domain"
	"github.com/ytlpay/wallet-service/internal/store"
)

// fakeRepository is an in-memory store.Repository used by service tests.
type fakeRepository struct {
	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction
	takenTxIDs   map[string]bool

	// alwaysCollide makes every generated transaction id look taken, to
	// exercise retry exhaustion.
	alwaysCollide bool

	// failPreferredRotation makes SetPreferredAccount fail, to exercise the
	// account creation error path.
	failPreferredRotation bool

	// afterCreateTransaction runs after a transaction row is stored, letting
	// tests interleave a concurrent write before finalization.
	afterCreateTransaction func(pending *domain.Transaction)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts:     make(map[uuid.UUID]*domain.Account),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		takenTxIDs:   make(map[string]bool),
	}
}

func (f *fakeRepository) addAccount(account domain.Account) *domain.Account {
	stored := account
	f.accounts[stored.ID] = &stored
	return &stored
}

func (f *fakeRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	for _, existing := range f.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return store.ErrAccountNumberTaken
		}
	}
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	stored := *account
	f.accounts[account.ID] = &stored
	return nil
}

func (f *fakeRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	for _, account := range f.accounts {
		if account.AccountNumber == accountNumber {
			copied := *account
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	var accounts []domain.Account
	for _, account := range f.accounts {
		if account.UserID == userID {
			accounts = append(accounts, *account)
		}
	}
	return accounts, nil
}

func (f *fakeRepository) FindPreferredAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	for _, account := range f.accounts {
		if account.UserID == userID && account.Preferred {
			copied := *account
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter, opts domain.ListOptions) ([]domain.Account, error) {
	var accounts []domain.Account
	for _, account := range f.accounts {
		if filter.UserID != nil && account.UserID != *filter.UserID {
			continue
		}
		if filter.AccountType != nil && account.AccountType != *filter.AccountType {
			continue
		}
		if filter.Currency != nil && account.Currency != *filter.Currency {
			continue
		}
		if filter.IsActive != nil && account.IsActive != *filter.IsActive {
			continue
		}
		if filter.Preferred != nil && account.Preferred != *filter.Preferred {
			continue
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

func (f *fakeRepository) IsAccountNumberTaken(ctx context.Context, accountNumber string, excludeAccountID *uuid.UUID) (bool, error) {
	for _, account := range f.accounts {
		if excludeAccountID != nil && account.ID == *excludeAccountID {
			continue
		}
		if account.AccountNumber == accountNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) UpdateAccount(ctx context.Context, accountID uuid.UUID, patch domain.AccountPatch) (*domain.Account, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if patch.AccountName != nil {
		account.AccountName = *patch.AccountName
	}
	if patch.AccountNumber != nil {
		account.AccountNumber = *patch.AccountNumber
	}
	if patch.AccountType != nil {
		account.AccountType = *patch.AccountType
	}
	if patch.Provider != nil {
		account.Provider = *patch.Provider
	}
	if patch.CreditLimit != nil {
		account.CreditLimit = *patch.CreditLimit
	}
	if patch.AuthorizedAmount != nil {
		account.AuthorizedAmount = *patch.AuthorizedAmount
	}
	account.UpdatedAt = time.Now().UTC()
	copied := *account
	return &copied, nil
}

func (f *fakeRepository) DeactivateAccount(ctx context.Context, accountID uuid.UUID) error {
	account, ok := f.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	account.IsActive = false
	return nil
}

func (f *fakeRepository) SetPreferredAccount(ctx context.Context, userID uuid.UUID, accountID uuid.UUID) error {
	if f.failPreferredRotation {
		return errors.New("rotation failed")
	}
	target, ok := f.accounts[accountID]
	if !ok || target.UserID != userID {
		return store.ErrAccountNotFound
	}
	for _, account := range f.accounts {
		if account.UserID == userID {
			account.Preferred = account.ID == accountID
		}
	}
	return nil
}

func (f *fakeRepository) ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, delta int64) (*domain.Account, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if account.Balance+delta < 0 {
		return nil, store.ErrInsufficientFunds
	}
	account.Balance += delta
	copied := *account
	return &copied, nil
}

func (f *fakeRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	if f.takenTxIDs[t.TransactionID] {
		return store.ErrTransactionIDTaken
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	f.transactions[t.ID] = &stored
	f.takenTxIDs[t.TransactionID] = true
	if f.afterCreateTransaction != nil {
		f.afterCreateTransaction(f.transactions[t.ID])
	}
	return nil
}

func (f *fakeRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, ok := f.transactions[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *transaction
	return &copied, nil
}

func (f *fakeRepository) IsTransactionIDTaken(ctx context.Context, transactionID string) (bool, error) {
	if f.alwaysCollide {
		return true, nil
	}
	return f.takenTxIDs[transactionID], nil
}

func (f *fakeRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for _, transaction := range f.transactions {
		if filter.AccountID != nil && transaction.AccountID != *filter.AccountID {
			continue
		}
		if filter.TransactionType != nil && transaction.TransactionType != *filter.TransactionType {
			continue
		}
		if filter.Status != nil && transaction.Status != *filter.Status {
			continue
		}
		transactions = append(transactions, *transaction)
	}
	return transactions, nil
}

func (f *fakeRepository) UpdateTransaction(ctx context.Context, transactionID uuid.UUID, patch domain.TransactionPatch) (*domain.Transaction, error) {
	transaction, ok := f.transactions[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	if patch.Description != nil {
		transaction.Description = *patch.Description
	}
	if patch.To != nil {
		to := *patch.To
		transaction.RecipientPhone = &to
	}
	transaction.UpdatedAt = time.Now().UTC()
	copied := *transaction
	return &copied, nil
}

func (f *fakeRepository) MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, errorCode, errorMessage string) error {
	transaction, ok := f.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	if transaction.Status != domain.StatusPending {
		return store.ErrTransactionNotPending
	}
	transaction.Status = domain.StatusFailed
	transaction.ErrorCode = &errorCode
	transaction.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeRepository) MarkTransactionSucceeded(ctx context.Context, transactionID uuid.UUID) error {
	transaction, ok := f.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	if transaction.Status != domain.StatusPending {
		return store.ErrTransactionNotPending
	}
	transaction.Status = domain.StatusSuccess
	return nil
}

func (f *fakeRepository) CancelTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, ok := f.transactions[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	transaction.Status = domain.StatusCancelled
	copied := *transaction
	return &copied, nil
}

// stubGateway resolves every call to a fixed response code.
type stubGateway struct {
	code string
}

func (g stubGateway) Resolve(failurePercent int) string {
	return g.code
}
