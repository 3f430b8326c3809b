/**
 * @description
 * This package generates human-facing transaction identifiers and account
 * session tokens. Identifiers follow the payment-network convention
 * `{prefix}-{10-digit-random}-t-{unix-timestamp}` with prefix `trx` for
 * transfers, `rel` for reloads, and `acct` for account tokens.
 *
 * @notes
 * - Uniqueness is NOT guaranteed by construction: the random component plus a
 *   coarse timestamp can collide. Callers must verify generated ids against
 *   the store and retry with a bounded attempt count.
 */

package idgen

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrInvalidType = errors.New("invalid transaction type: use 'transfer' or 'reload'")

// randomDigits returns a uniformly random 10-digit number (no leading zero).
func randomDigits() int64 {
	return 1_000_000_000 + rand.Int63n(9_000_000_000)
}

// NewTransactionID returns a fresh transaction identifier for the given
// transaction type.
func NewTransactionID(txType string) (string, error) {
	var prefix string
	switch txType {
	case "transfer":
		prefix = "trx"
	case "reload":
		prefix = "rel"
	default:
		return "", ErrInvalidType
	}
	return fmt.Sprintf("%s-%d-t-%d", prefix, randomDigits(), time.Now().Unix()), nil
}

// NewAccountToken returns a fresh opaque session token for an account,
// issued at account creation.
func NewAccountToken() string {
	return fmt.Sprintf("acct-%d-t-%d", randomDigits(), time.Now().Unix())
}
