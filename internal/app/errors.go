package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAccountOwner is returned when a caller operates on an account
	// owned by somebody else.
	ErrNotAccountOwner = errors.New("caller does not own this account")

	// ErrInsufficientAuthorization rejects a reload larger than the
	// account's authorized ceiling.
	ErrInsufficientAuthorization = errors.New("insufficient authorized amount to reload")

	// ErrInvalidRecipient rejects a transfer whose `to` field does not parse
	// as a mobile phone number.
	ErrInvalidRecipient = errors.New("invalid recipient phone number")

	// ErrOwnerAccountsNotFound is returned when the account owner has no
	// accounts on record; a required precondition for processing.
	ErrOwnerAccountsNotFound = errors.New("accounts not found for owner")

	// ErrTransactionIDExhausted is returned when bounded retries could not
	// produce a collision-free transaction id.
	ErrTransactionIDExhausted = errors.New("could not allocate a unique transaction id")

	// ErrRateLimited is returned when a caller exceeds the per-user
	// transaction creation rate limit.
	ErrRateLimited = errors.New("too many transaction requests")

	// ErrEmptyPatch rejects an update request carrying no recognized field.
	ErrEmptyPatch = errors.New("update contains no recognized fields")
)

// GatewayDeclinedError reports that the payment network declined the request.
// The transaction is persisted as failed before this error surfaces; the
// account balance is never touched on a decline.
type GatewayDeclinedError struct {
	Code string
}

func (e *GatewayDeclinedError) Error() string {
	return fmt.Sprintf("gateway declined transaction with code %s", e.Code)
}
