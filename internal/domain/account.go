/**
 * @description
 * This file defines the account domain model and its request/patch/filter types.
 * Accounts hold a balance in integer minor units and carry the session token
 * issued at creation time. At most one account per owner may be preferred.
 *
 * @notes
 * - Balances are `int64` minor units (sen/cents) to avoid floating-point
 *   inaccuracies with financial data.
 * - Update and filter types are explicit whitelists: a caller can only touch
 *   the fields enumerated here, never balance, status, or the preferred flag.
 */

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Supported account currencies.
const (
	CurrencyMYR = "MYR"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
)

var supportedCurrencies = map[string]struct{}{
	CurrencyMYR: {},
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyGBP: {},
}

// IsSupportedCurrency reports whether the given currency code is accepted
// for new accounts.
func IsSupportedCurrency(currency string) bool {
	_, ok := supportedCurrencies[currency]
	return ok
}

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAmount       = errors.New("amount must be a positive number of minor units")
)

// Account represents a user's monetary account. It maps directly to the
// `accounts` table in the database.
type Account struct {
	ID               uuid.UUID `json:"id"`
	AccountName      string    `json:"account_name"`
	AccountNumber    string    `json:"account_number"`
	AccountType      string    `json:"account_type"`
	Currency         string    `json:"currency"`
	Balance          int64     `json:"balance"` // in minor units
	IsActive         bool      `json:"is_active"`
	Token            string    `json:"token"`
	TokenExpiry      time.Time `json:"token_expiry"`
	Provider         string    `json:"provider"`
	CreditLimit      string    `json:"credit_limit"`
	Preferred        bool      `json:"preferred"`
	AuthorizedAmount int64     `json:"authorized_amount"` // reload ceiling, in minor units
	UserID           uuid.UUID `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateAccountRequest is the DTO for incoming account creation API requests.
// The session token is never supplied by the caller; it is issued server-side.
type CreateAccountRequest struct {
	AccountName      string `json:"account_name"`
	AccountNumber    string `json:"account_number"`
	AccountType      string `json:"account_type"`
	Currency         string `json:"currency"`
	Balance          int64  `json:"balance"`
	Provider         string `json:"provider"`
	CreditLimit      string `json:"credit_limit"`
	Preferred        bool   `json:"preferred"`
	AuthorizedAmount int64  `json:"authorized_amount"`
}

// Validate checks the request against account invariants before any state is touched.
func (r CreateAccountRequest) Validate() error {
	if !IsSupportedCurrency(r.Currency) {
		return ErrUnsupportedCurrency
	}
	if r.Balance < 0 {
		return errors.New("opening balance must not be negative")
	}
	if r.AuthorizedAmount < 0 {
		return errors.New("authorized amount must not be negative")
	}
	if r.AccountNumber == "" {
		return errors.New("account number is required")
	}
	return nil
}

// AccountPatch is the whitelisted set of fields a caller may update on an
// existing account. Balance, preferred flag, token, and activity status are
// deliberately absent; they are only mutated through their dedicated paths.
type AccountPatch struct {
	AccountName      *string `json:"account_name,omitempty"`
	AccountNumber    *string `json:"account_number,omitempty"`
	AccountType      *string `json:"account_type,omitempty"`
	Provider         *string `json:"provider,omitempty"`
	CreditLimit      *string `json:"credit_limit,omitempty"`
	AuthorizedAmount *int64  `json:"authorized_amount,omitempty"`
}

// IsZero reports whether the patch carries no recognized field.
func (p AccountPatch) IsZero() bool {
	return p.AccountName == nil && p.AccountNumber == nil && p.AccountType == nil &&
		p.Provider == nil && p.CreditLimit == nil && p.AuthorizedAmount == nil
}

// AccountFilter enumerates the recognized equality filters for account listing.
type AccountFilter struct {
	UserID      *uuid.UUID
	AccountType *string
	Currency    *string
	IsActive    *bool
	Preferred   *bool
}

// ListOptions controls pagination for listing endpoints.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps pagination values to sane bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 || o.Limit > 100 {
		o.Limit = 20
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
