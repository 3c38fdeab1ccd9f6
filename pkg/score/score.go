// Package score resolves credit scores from an ordered set of sources: the
// on-chain registry first, the hosted API as fallback. Every resolved score
// carries the source it came from; readings from different sources are never
// merged.
package score

import (
	"errors"
	"fmt"
	"time"
)

// Score domain bounds, inclusive.
const (
	MinScore = 400
	MaxScore = 800
)

// ErrInvalidScoreRange is returned when a score falls outside [MinScore, MaxScore].
var ErrInvalidScoreRange = errors.New("score outside valid range")

// ErrUnavailable is returned when every configured source failed to produce a
// score.
var ErrUnavailable = errors.New("score unavailable from all sources")

// ErrTransient marks a network-class source failure. Only these are retried;
// everything else fails the source immediately.
var ErrTransient = errors.New("transient score source failure")

// Source identifies where a score reading came from.
type Source string

const (
	// SourceContract is the on-chain score registry.
	SourceContract Source = "contract"
	// SourceAPI is the hosted score API.
	SourceAPI Source = "api"
)

// Record is a score reading tagged with its provenance.
type Record struct {
	WalletAddress string    `json:"wallet_address"`
	Score         int       `json:"score"`
	Source        Source    `json:"source"`
	RetrievedAt   time.Time `json:"retrieved_at"`
}

// Validate checks that a score lies within the valid domain. Writes are
// validated before any network traffic.
func Validate(score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidScoreRange, score, MinScore, MaxScore)
	}
	return nil
}
