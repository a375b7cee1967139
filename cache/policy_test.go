package cache

import (
	"testing"
	"time"
)

func TestPolicy_EffectiveKeepUnused(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		override time.Duration
		want     time.Duration
	}{
		{"default window", DefaultPolicy(), 0, 5 * time.Second},
		{"negative override uses default", DefaultPolicy(), -time.Second, 5 * time.Second},
		{"override", DefaultPolicy(), time.Minute, time.Minute},
		{"override clamped", DefaultPolicy(), 2 * time.Hour, time.Hour},
		{"no cap", Policy{KeepUnusedFor: time.Second}, 2 * time.Hour, 2 * time.Hour},
		{"zero means immediate", Policy{}, 0, 0},
		{"negative default floors at zero", Policy{KeepUnusedFor: -time.Second}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.EffectiveKeepUnused(tt.override); got != tt.want {
				t.Errorf("EffectiveKeepUnused(%v) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}
