/**
 * @description
 * This package stands in for the external payment-network gateway. Instead of
 * calling a real network, the simulator resolves every request to a response
 * code drawn from a fixed table, declining probabilistically.
 *
 * @notes
 * - Resolution algorithm: pick a code uniformly at random from the table, then
 *   draw a uniform [0,1) value; if the draw is below failurePercent/100 the
 *   picked code is returned, otherwise the success code "00". The picked code
 *   can itself be "00", so the observed decline rate converges to
 *   p% * (1 - 1/len(table)), slightly below the nominal probability. This
 *   overlap is intentional upstream behavior and must not be "fixed" here.
 * - Resolve has no side effects; it is a pure function of the probability
 *   parameter and the random source.
 */

package gateway

import (
	"math/rand"
	"sync"
	"time"
)

// SuccessCode is the unique approval sentinel in the response-code table.
const SuccessCode = "00"

// responseCodes is the fixed, ordered table of network response codes. Every
// entry except SuccessCode is a distinct decline reason; the code string
// doubles as both key and message on the wire.
var responseCodes = []string{
	"00", // approved
	"05", // do not honor
	"12", // invalid transaction
	"13", // invalid amount
	"14", // invalid account number
	"30", // format error
	"41", // lost card
	"43", // stolen card
	"51", // insufficient funds
	"54", // expired card
	"55", // incorrect PIN
	"58", // transaction not permitted
	"61", // exceeds withdrawal limit
	"76", // unable to locate account
	"91", // issuer inoperative
	"96", // system malfunction
}

// TableSize returns the number of entries in the response-code table.
func TableSize() int {
	return len(responseCodes)
}

// IsSuccess reports whether code is the approval sentinel.
func IsSuccess(code string) bool {
	return code == SuccessCode
}

// Simulator resolves simulated gateway calls. The random source is injectable
// so tests can seed it deterministically.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a Simulator seeded from the current time.
func NewSimulator() *Simulator {
	return NewSimulatorWithSeed(time.Now().UnixNano())
}

// NewSimulatorWithSeed returns a Simulator with a deterministic random source.
func NewSimulatorWithSeed(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Resolve returns the response code for one simulated gateway call with the
// given nominal failure probability in percent (clamped to 0..100).
func (s *Simulator) Resolve(failurePercent int) string {
	if failurePercent < 0 {
		failurePercent = 0
	}
	if failurePercent > 100 {
		failurePercent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	picked := responseCodes[s.rng.Intn(len(responseCodes))]
	if s.rng.Float64() < float64(failurePercent)/100 {
		// The picked code may still be "00"; that overlap is part of the contract.
		return picked
	}
	return SuccessCode
}
