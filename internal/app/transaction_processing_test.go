package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ytlpay/wallet-service/internal/domain"
	"github.com/ytlpay/wallet-service/internal/store"
)

func seedAccount(repo *fakeRepository, userID uuid.UUID, balance, authorized int64) *domain.Account {
	return repo.addAccount(domain.Account{
		ID:               uuid.New(),
		AccountName:      "Primary Wallet",
		AccountNumber:    "1101-" + uuid.NewString()[:8],
		AccountType:      "wallet",
		Currency:         domain.CurrencyMYR,
		Balance:          balance,
		IsActive:         true,
		Token:            "acct-1234567890-t-1700000000",
		Preferred:        true,
		AuthorizedAmount: authorized,
		UserID:           userID,
	})
}

func TestCreateTransaction_ReloadAboveAuthorizedAmountIsRejected(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	_, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          600,
		TransactionType: domain.TransactionTypeReload,
	})
	if !errors.Is(err, ErrInsufficientAuthorization) {
		t.Fatalf("expected ErrInsufficientAuthorization, got %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no transaction persisted, found %d", len(repo.transactions))
	}
	if repo.accounts[account.ID].Balance != 1000 {
		t.Fatalf("expected balance untouched, got %d", repo.accounts[account.ID].Balance)
	}
}

func TestCreateTransaction_ReloadWithinAuthorizedAmountSucceeds(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          400,
		TransactionType: domain.TransactionTypeReload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transaction.Status != domain.StatusSuccess {
		t.Fatalf("expected status success, got %q", transaction.Status)
	}
	if repo.accounts[account.ID].Balance != 1400 {
		t.Fatalf("expected balance 1400, got %d", repo.accounts[account.ID].Balance)
	}
	if transaction.TokenID != account.Token {
		t.Fatalf("expected token copied onto transaction, got %q", transaction.TokenID)
	}
}

func TestCreateTransaction_TransferAboveBalanceIsRejected(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 300, 0)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	_, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          500,
		TransactionType: domain.TransactionTypeTransfer,
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no transaction persisted, found %d", len(repo.transactions))
	}
}

func TestCreateTransaction_TransferDebitsBalance(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 0)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          250,
		TransactionType: domain.TransactionTypeTransfer,
		To:              "+60123456789",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transaction.Status != domain.StatusSuccess {
		t.Fatalf("expected status success, got %q", transaction.Status)
	}
	if repo.accounts[account.ID].Balance != 750 {
		t.Fatalf("expected balance 750, got %d", repo.accounts[account.ID].Balance)
	}
	if transaction.RecipientPhone == nil || *transaction.RecipientPhone != "+60123456789" {
		t.Fatal("expected recipient phone recorded on transaction")
	}
}

func TestCreateTransaction_InvalidRecipientPhoneIsRejected(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 0)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	_, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          100,
		TransactionType: domain.TransactionTypeTransfer,
		To:              "not-a-phone",
	})
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no transaction persisted, found %d", len(repo.transactions))
	}
}

func TestCreateTransaction_GatewayDeclinePersistsFailureWithoutBalanceChange(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 0)
	svc := NewService(repo, stubGateway{code: "51"}, nil, 100)

	transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          250,
		TransactionType: domain.TransactionTypeTransfer,
	})

	var declined *GatewayDeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("expected GatewayDeclinedError, got %v", err)
	}
	if declined.Code != "51" {
		t.Fatalf("expected decline code 51, got %q", declined.Code)
	}
	if transaction == nil {
		t.Fatal("expected the persisted failed transaction alongside the error")
	}
	if transaction.Status != domain.StatusFailed {
		t.Fatalf("expected status failed, got %q", transaction.Status)
	}
	if transaction.ErrorCode == nil || *transaction.ErrorCode != "51" {
		t.Fatal("expected error code 51 on the persisted record")
	}
	if repo.accounts[account.ID].Balance != 1000 {
		t.Fatalf("expected balance untouched on decline, got %d", repo.accounts[account.ID].Balance)
	}

	stored := repo.transactions[transaction.ID]
	if stored == nil || stored.Status != domain.StatusFailed {
		t.Fatal("expected failed status persisted in the store")
	}
}

func TestCreateTransaction_IDRetryExhaustion(t *testing.T) {
	repo := newFakeRepository()
	repo.alwaysCollide = true
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	_, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          100,
		TransactionType: domain.TransactionTypeReload,
	})
	if !errors.Is(err, ErrTransactionIDExhausted) {
		t.Fatalf("expected ErrTransactionIDExhausted, got %v", err)
	}
}

func TestCreateTransaction_RejectsForeignAccount(t *testing.T) {
	repo := newFakeRepository()
	owner := uuid.New()
	account := seedAccount(repo, owner, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	_, err := svc.CreateTransaction(context.Background(), uuid.New(), domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          100,
		TransactionType: domain.TransactionTypeReload,
	})
	if !errors.Is(err, ErrNotAccountOwner) {
		t.Fatalf("expected ErrNotAccountOwner, got %v", err)
	}
}

func TestCreateTransaction_RejectsInvalidTypeAndAmount(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	if _, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          100,
		TransactionType: "withdrawal",
	}); !errors.Is(err, domain.ErrInvalidTransactionType) {
		t.Fatalf("expected ErrInvalidTransactionType, got %v", err)
	}

	if _, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          0,
		TransactionType: domain.TransactionTypeReload,
	}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

// Cancelling an already-succeeded transaction flips the status only: the
// balance mutation is deliberately NOT reversed. Cancellation is an audit
// annotation, not a compensating transaction.
func TestCancelTransaction_SucceededTransactionKeepsBalance(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          400,
		TransactionType: domain.TransactionTypeReload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.accounts[account.ID].Balance != 1400 {
		t.Fatalf("expected balance 1400 before cancel, got %d", repo.accounts[account.ID].Balance)
	}

	cancelled, err := svc.CancelTransaction(context.Background(), userID, transaction.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected status cancelled, got %q", cancelled.Status)
	}
	if repo.accounts[account.ID].Balance != 1400 {
		t.Fatalf("expected balance unchanged after cancel, got %d", repo.accounts[account.ID].Balance)
	}
}

// A cancel landing between the pending insert and finalization wins: the
// processor must not flip a terminal 'cancelled' back to 'success'.
func TestCreateTransaction_ConcurrentCancelIsNotOverwritten(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	repo.afterCreateTransaction = func(pending *domain.Transaction) {
		if _, err := repo.CancelTransaction(context.Background(), pending.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          400,
		TransactionType: domain.TransactionTypeReload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transaction.Status != domain.StatusCancelled {
		t.Fatalf("expected the cancel to win, got status %q", transaction.Status)
	}
	stored := repo.transactions[transaction.ID]
	if stored.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled status persisted, got %q", stored.Status)
	}
}

func TestCancelTransaction_NotFound(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	_, err := svc.CancelTransaction(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

// The update path exposes only description and recipient; a patched
// transaction keeps its terminal status.
func TestUpdateTransaction_PatchCannotTouchStatus(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 1000, 500)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
		Account:         account.ID.String(),
		Amount:          400,
		TransactionType: domain.TransactionTypeReload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	desc := "monthly top-up"
	updated, err := svc.UpdateTransaction(context.Background(), userID, transaction.ID, domain.TransactionPatch{Description: &desc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Description != desc {
		t.Fatalf("expected description updated, got %q", updated.Description)
	}
	if updated.Status != domain.StatusSuccess {
		t.Fatalf("expected terminal status preserved, got %q", updated.Status)
	}

	if _, err := svc.UpdateTransaction(context.Background(), userID, transaction.ID, domain.TransactionPatch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

// Sequences of successful movements never drive a balance negative: the
// ledger rejects any delta that would.
func TestBalanceNeverGoesNegative(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 500, 1000)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	amounts := []int64{200, 200, 200, 200}
	for _, amount := range amounts {
		_, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
			Account:         account.ID.String(),
			Amount:          amount,
			TransactionType: domain.TransactionTypeTransfer,
		})
		if err != nil && !errors.Is(err, store.ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
		if balance := repo.accounts[account.ID].Balance; balance < 0 {
			t.Fatalf("balance went negative: %d", balance)
		}
	}
	if repo.accounts[account.ID].Balance != 100 {
		t.Fatalf("expected final balance 100, got %d", repo.accounts[account.ID].Balance)
	}
}

// Generated transaction ids stay pairwise distinct across a burst of
// successful creations.
func TestTransactionIDsArePairwiseDistinct(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	account := seedAccount(repo, userID, 0, 1_000_000)
	svc := NewService(repo, stubGateway{code: "00"}, nil, 25)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		transaction, err := svc.CreateTransaction(context.Background(), userID, domain.CreateTransactionRequest{
			Account:         account.ID.String(),
			Amount:          10,
			TransactionType: domain.TransactionTypeReload,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[transaction.TransactionID]; dup {
			t.Fatalf("duplicate transaction id %q", transaction.TransactionID)
		}
		seen[transaction.TransactionID] = struct{}{}
	}
}
