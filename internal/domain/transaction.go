/**
 * @description
 * This file defines the transaction domain model: the central ledger record for
 * any money movement (reloads and transfers), plus the request, patch, and
 * filter types used by the API and store layers.
 *
 * @notes
 * - `CreateTransactionRequest` doubles as the canonical checksum payload: its
 *   field order is fixed by the struct definition, so `json.Marshal` yields a
 *   deterministic serialization for HMAC signing on both sides.
 * - Status transitions are pending -> success | failed (set once by the
 *   processor) or pending -> cancelled. Cancellation is an audit annotation
 *   only and never reverses a balance mutation.
 */

package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Transaction types.
const (
	TransactionTypeReload   = "reload"
	TransactionTypeTransfer = "transfer"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

var ErrInvalidTransactionType = errors.New("transaction type must be 'reload' or 'transfer'")

// IsValidTransactionType reports whether the given type is one of the two
// supported movement kinds.
func IsValidTransactionType(t string) bool {
	return t == TransactionTypeReload || t == TransactionTypeTransfer
}

// phonePattern accepts E.164-style mobile numbers with an optional leading plus.
var phonePattern = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// IsValidPhone reports whether s parses as a mobile phone number usable as a
// transfer recipient.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Transaction represents one movement of value against an account. It maps
// directly to the `transactions` table in the database.
type Transaction struct {
	ID              uuid.UUID `json:"id"`
	AccountID       uuid.UUID `json:"account_id"`
	TransactionID   string    `json:"transaction_id"`
	TransactionType string    `json:"transaction_type"` // 'reload' or 'transfer'
	Status          string    `json:"status"`           // 'pending', 'success', 'cancelled', 'failed'
	Amount          int64     `json:"amount"`           // in minor units
	Description     string    `json:"description,omitempty"`
	ErrorCode       *string   `json:"error_code,omitempty"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	TokenID         string    `json:"token_id"`
	RecipientPhone  *string   `json:"to,omitempty"` // transfer recipient, optional
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Terminal reports whether the transaction has reached a status after which
// no further transition is expected.
func (t *Transaction) Terminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed || t.Status == StatusCancelled
}

// CreateTransactionRequest is the DTO for incoming transaction creation
// requests. The JSON field order here is the canonical serialization signed by
// the checksum verifier; do not reorder fields without coordinating with
// every client that computes checksums.
type CreateTransactionRequest struct {
	Account         string `json:"account"`
	Amount          int64  `json:"amount"`
	TransactionType string `json:"transactionType"`
	Description     string `json:"description,omitempty"`
	To              string `json:"to,omitempty"`
}

// Validate checks structural validity of the request. Balance and
// authorization checks happen later against live account state.
func (r CreateTransactionRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !IsValidTransactionType(r.TransactionType) {
		return ErrInvalidTransactionType
	}
	return nil
}

// TransactionPatch is the whitelisted set of fields a caller may update on an
// existing transaction. Status is deliberately absent: a terminal transaction
// can never be resurrected into 'pending' through the update path.
type TransactionPatch struct {
	Description *string `json:"description,omitempty"`
	To          *string `json:"to,omitempty"`
}

// IsZero reports whether the patch carries no recognized field.
func (p TransactionPatch) IsZero() bool {
	return p.Description == nil && p.To == nil
}

// TransactionFilter enumerates the recognized equality filters for
// transaction listing.
type TransactionFilter struct {
	AccountID       *uuid.UUID
	TransactionType *string
	Status          *string
}
