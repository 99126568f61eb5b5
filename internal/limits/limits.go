// Package limits enforces stake limits per bettor.
//
// A bettor piling stake onto one scenario carries concentrated risk; stake
// spread across many open scenarios still adds up. This package checks both
// a per-scenario cap and an aggregate cap across all open scenarios before
// a wager is accepted.
package limits

import "errors"

var (
	// ErrPerScenarioLimitExceeded is returned when a wager would push a
	// bettor's stake in a single scenario beyond the per-scenario maximum.
	ErrPerScenarioLimitExceeded = errors.New("limits: per-scenario stake limit exceeded")

	// ErrAggregateLimitExceeded is returned when a wager would push a
	// bettor's total open stake beyond the aggregate maximum.
	ErrAggregateLimitExceeded = errors.New("limits: aggregate stake limit exceeded")
)

// StakeLimiter enforces stake limits. A zero value for either cap disables
// that check.
type StakeLimiter struct {
	// MaxPerScenarioCents is the maximum stake one bettor may hold in a
	// single scenario.
	MaxPerScenarioCents int64

	// MaxAggregateCents is the maximum stake one bettor may hold across
	// all open scenarios.
	MaxAggregateCents int64
}

// NewStakeLimiter creates a limiter with the given per-scenario and
// aggregate caps in cents.
func NewStakeLimiter(maxPerScenario, maxAggregate int64) *StakeLimiter {
	return &StakeLimiter{
		MaxPerScenarioCents: maxPerScenario,
		MaxAggregateCents:   maxAggregate,
	}
}

// CheckLimit validates whether a new stake respects the caps.
//
// Parameters:
//   - targetScenario: number of the scenario being wagered on
//   - stakeCents: the stake of the incoming wager
//   - existingStakes: map of scenario number → the bettor's current stake
//
// Returns nil if the wager is within limits, or an error naming the
// violated cap.
func (l *StakeLimiter) CheckLimit(targetScenario int, stakeCents int64, existingStakes map[int]int64) error {
	inScenario := existingStakes[targetScenario] + stakeCents
	if l.MaxPerScenarioCents > 0 && inScenario > l.MaxPerScenarioCents {
		return ErrPerScenarioLimitExceeded
	}

	if l.MaxAggregateCents > 0 {
		total := stakeCents
		for _, stake := range existingStakes {
			total += stake
		}
		if total > l.MaxAggregateCents {
			return ErrAggregateLimitExceeded
		}
	}

	return nil
}
