/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
 * Handlers parse incoming requests, call the application service, and write
 * the HTTP response. They are the bridge between the web layer and the
 * business logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and
 *   custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ytlpay/wallet-service/internal/app"
	"github.com/ytlpay/wallet-service/internal/domain"
	"github.com/ytlpay/wallet-service/internal/store"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

// declinedTransactionResponse is returned when the gateway declines a
// transaction: the persisted failed record plus the network code.
type declinedTransactionResponse struct {
	Error       string              `json:"error"`
	Code        string              `json:"code"`
	Transaction *domain.Transaction `json:"transaction"`
}

func (h *WalletHandlers) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return uuid.Nil, false
	}
	return userID, true
}

// CreateAccountHandler handles account creation requests.
func (h *WalletHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "create_account", userID, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler returns the caller's accounts matching the recognized
// query filters.
func (h *WalletHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	filter := domain.AccountFilter{}
	q := r.URL.Query()
	if v := q.Get("account_type"); v != "" {
		filter.AccountType = &v
	}
	if v := q.Get("currency"); v != "" {
		filter.Currency = &v
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}
	if v := q.Get("preferred"); v != "" {
		preferred := v == "true"
		filter.Preferred = &preferred
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID, filter, parseListOptions(q.Get("limit"), q.Get("offset")))
	if err != nil {
		h.writeServiceError(w, "list_accounts", userID, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountsByUserHandler returns every account owned by the caller.
func (h *WalletHandlers) GetAccountsByUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.GetAccountsByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get_accounts_by_user", userID, err)
		return
	}
	if len(accounts) == 0 {
		h.writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountByNumberHandler returns one account by its account number.
func (h *WalletHandlers) GetAccountByNumberHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountNumber := chi.URLParam(r, "accountNumber")
	if accountNumber == "" {
		h.writeError(w, http.StatusBadRequest, "Account number is required")
		return
	}
	account, err := h.service.GetAccountByNumber(r.Context(), userID, accountNumber)
	if err != nil {
		h.writeServiceError(w, "get_account_by_number", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// GetAccountHandler returns one account by id.
func (h *WalletHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}
	account, err := h.service.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		h.writeServiceError(w, "get_account", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// UpdateAccountHandler applies a whitelisted patch to an account.
func (h *WalletHandlers) UpdateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}

	var patch domain.AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), userID, accountID, patch)
	if err != nil {
		h.writeServiceError(w, "update_account", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// DeleteAccountHandler soft-deletes an account.
func (h *WalletHandlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}
	if err := h.service.DeleteAccount(r.Context(), userID, accountID); err != nil {
		h.writeServiceError(w, "delete_account", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTransactionHandler processes a checksum-verified transaction request.
func (h *WalletHandlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.service.CreateTransaction(r.Context(), userID, req)
	if err != nil {
		var declined *app.GatewayDeclinedError
		if errors.As(err, &declined) {
			// The transaction exists and is persisted as failed; surface the
			// decline code alongside it.
			h.writeJSON(w, http.StatusBadRequest, declinedTransactionResponse{
				Error:       declined.Error(),
				Code:        declined.Code,
				Transaction: transaction,
			})
			return
		}
		h.writeServiceError(w, "create_transaction", userID, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, transaction)
}

// ListTransactionsHandler returns transactions matching the recognized query
// filters.
func (h *WalletHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	filter := domain.TransactionFilter{}
	q := r.URL.Query()
	if v := q.Get("account"); v != "" {
		accountID, err := uuid.Parse(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid account filter")
			return
		}
		filter.AccountID = &accountID
	}
	if v := q.Get("transaction_type"); v != "" {
		filter.TransactionType = &v
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, filter, parseListOptions(q.Get("limit"), q.Get("offset")))
	if err != nil {
		h.writeServiceError(w, "list_transactions", userID, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// GetTransactionHandler returns one transaction by id.
func (h *WalletHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}
	transaction, err := h.service.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		h.writeServiceError(w, "get_transaction", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transaction)
}

// UpdateTransactionHandler applies a whitelisted patch to a transaction.
func (h *WalletHandlers) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	var patch domain.TransactionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.service.UpdateTransaction(r.Context(), userID, transactionID, patch)
	if err != nil {
		h.writeServiceError(w, "update_transaction", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transaction)
}

// DeleteTransactionHandler soft-cancels a transaction.
func (h *WalletHandlers) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}
	if _, err := h.service.CancelTransaction(r.Context(), userID, transactionID); err != nil {
		h.writeServiceError(w, "delete_transaction", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListOptions(limitStr, offsetStr string) domain.ListOptions {
	opts := domain.ListOptions{}
	if limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			opts.Limit = limit
		}
	}
	if offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			opts.Offset = offset
		}
	}
	return opts
}

// writeServiceError maps service-layer errors to HTTP statuses.
func (h *WalletHandlers) writeServiceError(w http.ResponseWriter, endpoint string, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, store.ErrAccountNumberTaken):
		h.writeError(w, http.StatusConflict, "Account number already taken")
	case errors.Is(err, store.ErrTransactionIDTaken), errors.Is(err, app.ErrTransactionIDExhausted):
		h.writeError(w, http.StatusConflict, "Transaction ID already taken")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, app.ErrInsufficientAuthorization):
		h.writeError(w, http.StatusBadRequest, "Insufficient authorized amount to reload")
	case errors.Is(err, app.ErrInvalidRecipient):
		h.writeError(w, http.StatusBadRequest, "Invalid phone number")
	case errors.Is(err, app.ErrOwnerAccountsNotFound):
		h.writeError(w, http.StatusBadRequest, "Accounts not found")
	case errors.Is(err, app.ErrNotAccountOwner):
		h.writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many transaction requests")
	case errors.Is(err, app.ErrEmptyPatch),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrUnsupportedCurrency):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed user_id=%s err=%v", endpoint, userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
