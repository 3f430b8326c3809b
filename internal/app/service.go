/**
 * @description
 * This file contains the core business logic for the wallet-service. The
 * `Service` struct orchestrates every money movement: it validates the
 * request, reserves a collision-free transaction id, consults the simulated
 * payment-network gateway, mutates the account ledger, and records the
 * terminal transaction outcome.
 *
 * Key features:
 * - Implements the transaction lifecycle: validate -> reserve id -> persist
 *   pending -> gateway -> mutate ledger -> finalize.
 * - Pre-gateway validation failures persist nothing; gateway declines persist
 *   the transaction as failed without touching the balance.
 * - Account creation issues a fresh session token and rotates the
 *   single-preferred-account flag for the owner.
 * - Publishes terminal transaction events to RabbitMQ for downstream
 *   consumers.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For entity identifiers.
 * - internal/domain, internal/gateway, internal/store: Models, gateway
 *   simulator, and data access.
 * - pkg/idgen, pkg/rabbitmq: Identifier generation and event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ytlpay/wallet-service/internal/domain"
	"github.com/ytlpay/wallet-service/internal/gateway"
	"github.com/ytlpay/wallet-service/internal/store"
	"github.com/ytlpay/wallet-service/pkg/idgen"
	"github.com/ytlpay/wallet-service/pkg/rabbitmq"
)

const (
	// maxTransactionIDAttempts bounds id-generation retries before the
	// request fails with ErrTransactionIDExhausted.
	maxTransactionIDAttempts = 5

	// accountTokenTTL is the validity window of the session token issued at
	// account creation.
	accountTokenTTL = 24 * time.Hour
)

// GatewayResolver resolves one simulated gateway call. Satisfied by
// *gateway.Simulator; tests substitute deterministic resolvers.
type GatewayResolver interface {
	Resolve(failurePercent int) string
}

// RateLimiter is the distributed rate limiter consulted before transaction
// creation. A nil limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for accounts and transactions.
type Service struct {
	repo           store.Repository
	gateway        GatewayResolver
	producer       rabbitmq.Publisher
	failurePercent int

	rateLimiter     RateLimiter
	createPerMinute int
}

// NewService creates a new wallet service instance. failurePercent is the
// nominal gateway decline probability applied to every transaction.
func NewService(repo store.Repository, resolver GatewayResolver, producer rabbitmq.Publisher, failurePercent int) *Service {
	return &Service{
		repo:           repo,
		gateway:        resolver,
		producer:       producer,
		failurePercent: failurePercent,
	}
}

// SetRateLimiter enables per-user rate limiting on transaction creation.
func (s *Service) SetRateLimiter(limiter RateLimiter, createPerMinute int) {
	s.rateLimiter = limiter
	s.createPerMinute = createPerMinute
}

// CreateAccount provisions a new account for userID, issuing a fresh session
// token. When the request asks for a preferred account, the preferred flag is
// rotated off every sibling in the same logical step.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.repo.IsAccountNumberTaken(ctx, req.AccountNumber, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check account number: %w", err)
	}
	if taken {
		return nil, store.ErrAccountNumberTaken
	}

	account := &domain.Account{
		ID:               uuid.New(),
		AccountName:      req.AccountName,
		AccountNumber:    req.AccountNumber,
		AccountType:      req.AccountType,
		Currency:         req.Currency,
		Balance:          req.Balance,
		IsActive:         true,
		Token:            idgen.NewAccountToken(),
		TokenExpiry:      time.Now().UTC().Add(accountTokenTTL),
		Provider:         req.Provider,
		CreditLimit:      req.CreditLimit,
		AuthorizedAmount: req.AuthorizedAmount,
		UserID:           userID,
	}

	// The row is inserted non-preferred; the rotation below sets the flag
	// inside one database transaction. A rotation failure therefore leaves the
	// owner's existing preferred account as the sole preferred row.
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if req.Preferred {
		if err := s.repo.SetPreferredAccount(ctx, userID, account.ID); err != nil {
			log.Printf("level=error component=app msg=\"preferred rotation failed after account creation\" account_id=%s user_id=%s err=%v", account.ID, userID, err)
			return nil, fmt.Errorf("failed to set preferred account: %w", err)
		}
		account.Preferred = true
	}

	log.Printf("level=info component=app msg=\"account created\" account_id=%s account_number=%s user_id=%s preferred=%t", account.ID, account.AccountNumber, userID, account.Preferred)
	return account, nil
}

// GetAccount retrieves one account, enforcing caller ownership.
func (s *Service) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrNotAccountOwner
	}
	return account, nil
}

// GetAccountByNumber retrieves one account by its human-facing number,
// enforcing caller ownership.
func (s *Service) GetAccountByNumber(ctx context.Context, userID uuid.UUID, accountNumber string) (*domain.Account, error) {
	account, err := s.repo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrNotAccountOwner
	}
	return account, nil
}

// GetAccountsByUser retrieves every account owned by the caller.
func (s *Service) GetAccountsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.FindAccountsByUserID(ctx, userID)
}

// ListAccounts returns accounts matching the typed filter, scoped to the caller.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID, filter domain.AccountFilter, opts domain.ListOptions) ([]domain.Account, error) {
	// Listing is always scoped to the authenticated owner.
	filter.UserID = &userID
	return s.repo.ListAccounts(ctx, filter, opts)
}

// UpdateAccount applies a whitelisted patch to an account owned by the caller.
// An account number change is re-checked for uniqueness first.
func (s *Service) UpdateAccount(ctx context.Context, userID, accountID uuid.UUID, patch domain.AccountPatch) (*domain.Account, error) {
	if patch.IsZero() {
		return nil, ErrEmptyPatch
	}
	if _, err := s.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	if patch.AccountNumber != nil {
		taken, err := s.repo.IsAccountNumberTaken(ctx, *patch.AccountNumber, &accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to check account number: %w", err)
		}
		if taken {
			return nil, store.ErrAccountNumberTaken
		}
	}
	return s.repo.UpdateAccount(ctx, accountID, patch)
}

// DeleteAccount soft-deletes an account owned by the caller by flipping
// is_active off. Account rows are never physically removed.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	if _, err := s.GetAccount(ctx, userID, accountID); err != nil {
		return err
	}
	return s.repo.DeactivateAccount(ctx, accountID)
}

// reserveTransactionID generates a transaction id and verifies it against the
// store, retrying on collision. Randomness plus a coarse timestamp does not
// guarantee uniqueness by construction.
func (s *Service) reserveTransactionID(ctx context.Context, txType string) (string, error) {
	for attempt := 0; attempt < maxTransactionIDAttempts; attempt++ {
		id, err := idgen.NewTransactionID(txType)
		if err != nil {
			return "", err
		}
		taken, err := s.repo.IsTransactionIDTaken(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check transaction id: %w", err)
		}
		if !taken {
			return id, nil
		}
		log.Printf("level=warn component=app msg=\"transaction id collision\" transaction_id=%s attempt=%d", id, attempt+1)
	}
	return "", ErrTransactionIDExhausted
}

// CreateTransaction processes one movement of value end to end:
//
//  1. Reserve a collision-free transaction id.
//  2. Load the target account and enforce caller ownership.
//  3. Type-specific validation (balance for transfers, authorized ceiling for
//     reloads, recipient phone format).
//  4. Verify the owner has accounts on record.
//  5. Persist the transaction as pending.
//  6. Resolve the simulated gateway call.
//  7. On decline: finalize as failed with the network code; the balance is
//     not mutated.
//  8. On approval: apply the balance delta under a row lock, then finalize as
//     success.
func (s *Service) CreateTransaction(ctx context.Context, userID uuid.UUID, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.consumeCreateRateLimit(ctx, userID); err != nil {
		return nil, err
	}

	accountID, err := uuid.Parse(req.Account)
	if err != nil {
		return nil, store.ErrAccountNotFound
	}

	transactionID, err := s.reserveTransactionID(ctx, req.TransactionType)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrNotAccountOwner
	}

	switch req.TransactionType {
	case domain.TransactionTypeTransfer:
		if account.Balance < req.Amount {
			return nil, store.ErrInsufficientFunds
		}
		if req.To != "" && !domain.IsValidPhone(req.To) {
			return nil, ErrInvalidRecipient
		}
	case domain.TransactionTypeReload:
		if req.Amount > account.AuthorizedAmount {
			return nil, ErrInsufficientAuthorization
		}
	}

	// The owner must have accounts on record before processing; a required
	// precondition, not otherwise used in balance math.
	ownerAccounts, err := s.repo.FindAccountsByUserID(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner accounts: %w", err)
	}
	if len(ownerAccounts) == 0 {
		return nil, ErrOwnerAccountsNotFound
	}

	transaction := &domain.Transaction{
		ID:              uuid.New(),
		AccountID:       account.ID,
		TransactionID:   transactionID,
		TransactionType: req.TransactionType,
		Status:          domain.StatusPending,
		Amount:          req.Amount,
		Description:     req.Description,
		TokenID:         account.Token,
	}
	if req.To != "" {
		to := req.To
		transaction.RecipientPhone = &to
	}
	if err := s.repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, err
	}

	code := s.gateway.Resolve(s.failurePercent)
	if !gateway.IsSuccess(code) {
		if err := s.repo.MarkTransactionFailed(ctx, transaction.ID, code, code); err != nil {
			if errors.Is(err, store.ErrTransactionNotPending) {
				// A concurrent cancel reached the row first; the cancel wins
				// and the decline code is not recorded.
				log.Printf("level=warn component=app msg=\"decline finalization skipped; transaction no longer pending\" transaction_id=%s code=%s", transaction.TransactionID, code)
				current, readErr := s.repo.FindTransactionByID(ctx, transaction.ID)
				if readErr != nil {
					return nil, readErr
				}
				return current, &GatewayDeclinedError{Code: code}
			}
			log.Printf("level=error component=app msg=\"failed to finalize declined transaction\" transaction_id=%s code=%s err=%v", transaction.TransactionID, code, err)
			return nil, err
		}
		transaction.Status = domain.StatusFailed
		transaction.ErrorCode = &code
		transaction.ErrorMessage = &code
		s.publishTransactionEvent(ctx, transaction)
		log.Printf("level=info component=app msg=\"gateway declined\" transaction_id=%s code=%s account_id=%s", transaction.TransactionID, code, account.ID)
		return transaction, &GatewayDeclinedError{Code: code}
	}

	delta := req.Amount
	if req.TransactionType == domain.TransactionTypeTransfer {
		delta = -req.Amount
	}
	if _, err := s.repo.ApplyBalanceDelta(ctx, account.ID, delta); err != nil {
		// A concurrent movement can consume the balance between validation
		// and the locked update; finalize as failed rather than leaving the
		// record pending.
		if errors.Is(err, store.ErrInsufficientFunds) {
			if markErr := s.repo.MarkTransactionFailed(ctx, transaction.ID, "51", "51"); markErr != nil {
				log.Printf("level=error component=app msg=\"failed to finalize raced transaction\" transaction_id=%s err=%v", transaction.TransactionID, markErr)
			}
		}
		return nil, err
	}

	if err := s.repo.MarkTransactionSucceeded(ctx, transaction.ID); err != nil {
		if errors.Is(err, store.ErrTransactionNotPending) {
			// A concurrent cancel reached the row first. The cancel wins and
			// is never overwritten; the applied delta stays, consistent with
			// cancellation never reversing balance mutations.
			log.Printf("level=warn component=app msg=\"success finalization skipped; transaction no longer pending\" transaction_id=%s", transaction.TransactionID)
			return s.repo.FindTransactionByID(ctx, transaction.ID)
		}
		return nil, err
	}
	transaction.Status = domain.StatusSuccess
	s.publishTransactionEvent(ctx, transaction)
	log.Printf("level=info component=app msg=\"transaction finalized\" transaction_id=%s type=%s amount=%d account_id=%s", transaction.TransactionID, transaction.TransactionType, transaction.Amount, account.ID)
	return transaction, nil
}

// GetTransaction retrieves one transaction, enforcing caller ownership of the
// underlying account.
func (s *Service) GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.assertTransactionOwner(ctx, userID, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

// ListTransactions returns transactions matching the typed filter. When an
// account filter is present, caller ownership of that account is enforced.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error) {
	if filter.AccountID != nil {
		if _, err := s.GetAccount(ctx, userID, *filter.AccountID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListTransactions(ctx, filter, opts)
}

// UpdateTransaction applies a whitelisted patch (description, recipient) to a
// transaction. Status is not reachable through this path, so a terminal
// transaction can never be resurrected into pending.
func (s *Service) UpdateTransaction(ctx context.Context, userID, transactionID uuid.UUID, patch domain.TransactionPatch) (*domain.Transaction, error) {
	if patch.IsZero() {
		return nil, ErrEmptyPatch
	}
	if patch.To != nil && *patch.To != "" && !domain.IsValidPhone(*patch.To) {
		return nil, ErrInvalidRecipient
	}
	transaction, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.assertTransactionOwner(ctx, userID, transaction); err != nil {
		return nil, err
	}
	return s.repo.UpdateTransaction(ctx, transactionID, patch)
}

// CancelTransaction soft-cancels a transaction. The status flips to
// 'cancelled' without re-running gateway logic or reversing any balance
// mutation: cancelling an already-succeeded transaction leaves the money
// where it landed and only annotates the record.
func (s *Service) CancelTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.assertTransactionOwner(ctx, userID, transaction); err != nil {
		return nil, err
	}
	cancelled, err := s.repo.CancelTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	s.publishTransactionEvent(ctx, cancelled)
	log.Printf("level=info component=app msg=\"transaction cancelled\" transaction_id=%s previous_status=%s", cancelled.TransactionID, transaction.Status)
	return cancelled, nil
}

func (s *Service) assertTransactionOwner(ctx context.Context, userID uuid.UUID, transaction *domain.Transaction) error {
	account, err := s.repo.FindAccountByID(ctx, transaction.AccountID)
	if err != nil {
		return err
	}
	if account.UserID != userID {
		return ErrNotAccountOwner
	}
	return nil
}

func (s *Service) consumeCreateRateLimit(ctx context.Context, userID uuid.UUID) error {
	if s.rateLimiter == nil || s.createPerMinute <= 0 {
		return nil
	}
	count, _, err := s.rateLimiter.ConsumeRateLimit(ctx, "transaction_create", userID.String(), s.createPerMinute, time.Minute)
	if err != nil {
		// Fail open: a limiter outage must not block money movement.
		log.Printf("level=warn component=app msg=\"rate limiter unavailable\" user_id=%s err=%v", userID, err)
		return nil
	}
	if count > s.createPerMinute {
		return ErrRateLimited
	}
	return nil
}

func (s *Service) publishTransactionEvent(ctx context.Context, transaction *domain.Transaction) {
	if s.producer == nil {
		return
	}
	event := rabbitmq.TransactionEvent{
		TransactionID:   transaction.TransactionID,
		AccountID:       transaction.AccountID,
		TransactionType: transaction.TransactionType,
		Status:          transaction.Status,
		Amount:          transaction.Amount,
		Timestamp:       time.Now().UTC(),
	}
	if transaction.ErrorCode != nil {
		event.ErrorCode = *transaction.ErrorCode
	}
	if err := s.producer.PublishTransactionEvent(ctx, event); err != nil {
		log.Printf("level=warn component=app msg=\"transaction event publish failed\" transaction_id=%s status=%s err=%v", transaction.TransactionID, transaction.Status, err)
	}
}
