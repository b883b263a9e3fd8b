package scrobbler

import (
	"time"
)

// Scrobbling rule defaults
const (
	// DefaultDurationThreshold is the play time after which any track qualifies (4 minutes)
	DefaultDurationThreshold = 240 * time.Second

	// DefaultAssumedDuration stands in for tracks whose renderer reported no length
	DefaultAssumedDuration = 120 * time.Second

	// ScrobblePercentage is the fraction of a track that must be played (50%)
	ScrobblePercentage = 0.5
)

// Rules decides when a listen counts as played.
type Rules struct {
	DurationThreshold time.Duration
	AssumedDuration   time.Duration
}

// DefaultRules returns the 4 minute / half-duration rules with a 120s assumed length.
func DefaultRules() Rules {
	return Rules{
		DurationThreshold: DefaultDurationThreshold,
		AssumedDuration:   DefaultAssumedDuration,
	}
}

// EffectiveDuration is the track duration, or the assumed one when unknown.
func (r Rules) EffectiveDuration(trackDuration time.Duration) time.Duration {
	if trackDuration > 0 {
		return trackDuration
	}
	return r.AssumedDuration
}

// Eligible reports whether elapsed play time qualifies a track for scrobbling:
// either the fixed threshold has been reached or half the effective duration has.
func (r Rules) Eligible(trackDuration, elapsed time.Duration) bool {
	if elapsed >= r.DurationThreshold {
		return true
	}
	return elapsed >= r.Threshold(trackDuration)
}

// Threshold is the elapsed time at which a track of the given duration
// becomes eligible.
func (r Rules) Threshold(trackDuration time.Duration) time.Duration {
	half := time.Duration(float64(r.EffectiveDuration(trackDuration)) * ScrobblePercentage)
	if half > r.DurationThreshold {
		return r.DurationThreshold
	}
	return half
}
