package cache

import "time"

// Policy configures how long unused entries are kept.
type Policy struct {
	// KeepUnusedFor is the grace window between the last subscriber closing
	// and the entry being evicted. Zero evicts immediately.
	KeepUnusedFor time.Duration

	// MaxKeepUnusedFor caps per-request overrides. Zero means no cap.
	MaxKeepUnusedFor time.Duration
}

// DefaultPolicy returns a 5 second grace window capped at 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		KeepUnusedFor:    5 * time.Second,
		MaxKeepUnusedFor: 1 * time.Hour,
	}
}

// EffectiveKeepUnused returns the grace window for a request, applying the
// default when override is not positive and clamping to MaxKeepUnusedFor.
func (p Policy) EffectiveKeepUnused(override time.Duration) time.Duration {
	keep := override
	if keep <= 0 {
		keep = p.KeepUnusedFor
	}
	if keep < 0 {
		keep = 0
	}

	if p.MaxKeepUnusedFor > 0 && keep > p.MaxKeepUnusedFor {
		keep = p.MaxKeepUnusedFor
	}

	return keep
}
