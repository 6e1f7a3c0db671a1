package escalation

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// TierPolicy holds the scoring rules of one tier.
type TierPolicy struct {
	// Threshold is the best-match score that satisfies the query at this tier.
	Threshold float64
	// MinScore is the floor below which matches are not returned at all.
	MinScore float64
}

// Config tunes the router.
type Config struct {
	TopK          int
	TargetMatches int
	TierTimeout   time.Duration
	DerivedMargin float64
	Patient       TierPolicy
	Facility      TierPolicy
	General       TierPolicy
}

// DefaultConfig returns the stock tuning: stricter thresholds for narrower scopes.
func DefaultConfig() Config {
	return Config{
		TopK:          5,
		TargetMatches: 8,
		TierTimeout:   800 * time.Millisecond,
		DerivedMargin: 0.05,
		Patient:       TierPolicy{Threshold: 0.80, MinScore: 0.50},
		Facility:      TierPolicy{Threshold: 0.75, MinScore: 0.45},
		General:       TierPolicy{Threshold: 0.70, MinScore: 0.40},
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.TargetMatches <= 0 {
		return fmt.Errorf("target_matches must be positive")
	}
	if c.TierTimeout <= 0 {
		return fmt.Errorf("tier_timeout must be positive")
	}
	if c.DerivedMargin < 0 {
		return fmt.Errorf("derived_margin must not be negative")
	}
	for name, p := range map[string]TierPolicy{"patient": c.Patient, "facility": c.Facility, "general": c.General} {
		if p.Threshold < -1 || p.Threshold > 1 || p.MinScore < -1 || p.MinScore > 1 {
			return fmt.Errorf("%s: scores must be within [-1, 1]", name)
		}
		if p.MinScore > p.Threshold {
			return fmt.Errorf("%s: min_score above threshold", name)
		}
	}
	return nil
}

func (c Config) policy(k scope.Kind) TierPolicy {
	switch k {
	case scope.KindPatient:
		return c.Patient
	case scope.KindFacilityShared:
		return c.Facility
	default:
		return c.General
	}
}
