/**
 * @description
 * This package implements the HMAC-SHA256 integrity check applied to inbound
 * transaction requests. The caller sends the transaction payload plus a
 * `checksum` field; the verifier recomputes the digest over the canonical JSON
 * serialization of the payload (checksum excluded) and requires an exact hex
 * match.
 *
 * @notes
 * - The secret is injected at construction time. There is no ambient or
 *   global lookup; a missing secret fails at startup, not at first use.
 * - Comparison is exact-match on the hex digest. Timing safety is not a
 *   requirement for this domain; correctness of the match is.
 */

package checksum

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingSecret = errors.New("checksum secret key is not configured")

// Verifier signs and verifies request payloads with a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier from the configured shared secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Sign computes the hex HMAC-SHA256 digest over the canonical JSON
// serialization of payload.
func (v *Verifier) Sign(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize checksum payload: %w", err)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest for payload and compares it byte-for-byte
// against the received value.
func (v *Verifier) Verify(payload any, received string) bool {
	expected, err := v.Sign(payload)
	if err != nil {
		return false
	}
	return expected == received
}
