package config

import (
	"fmt"
	"strings"
)

// ApplyPolicyProfile applies a scoring-policy preset to the config.
// Supported profiles:
// - strict:   tighter thresholds for early rollout of freshly tuned sessions
// - standard: configured values (no changes)
// - lenient:  relaxed thresholds for mature, long-validated parameter sets
func ApplyPolicyProfile(cfg *Config, profile string) error {
	p := strings.ToLower(strings.TrimSpace(profile))
	if p == "" {
		return nil
	}

	switch p {
	case "strict":
		clampMax(&cfg.Scoring.WarnThreshold, 0.2)
		clampMax(&cfg.Scoring.CriticalThreshold, 0.5)
	case "standard":
	case "lenient":
		if cfg.Scoring.WarnThreshold < 0.4 {
			cfg.Scoring.WarnThreshold = 0.4
		}
		if cfg.Scoring.CriticalThreshold < 0.7 {
			cfg.Scoring.CriticalThreshold = 0.7
		}
	default:
		return fmt.Errorf("unknown policy profile %q (supported: strict|standard|lenient)", profile)
	}

	return nil
}

func clampMax(v *float64, max float64) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}
