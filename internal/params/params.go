package params

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidInput marks malformed parameter input: an empty session map, a
// missing required key, an unknown session name, or a non-finite value.
// Callers test for it with errors.Is.
var ErrInvalidInput = errors.New("invalid parameter input")

// Session identifies one of the fixed trading sessions.
type Session string

const (
	Tokyo   Session = "Tokyo"
	London  Session = "London"
	NewYork Session = "New_York"
	Sydney  Session = "Sydney"
	Overlap Session = "Overlap"
)

// Sessions returns all known sessions in canonical order.
func Sessions() []Session {
	return []Session{Tokyo, London, NewYork, Sydney, Overlap}
}

// ParseSession validates a session name.
func ParseSession(name string) (Session, error) {
	for _, s := range Sessions() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown session %q", ErrInvalidInput, name)
}

// ParameterSet is one set of tunable trading parameters.
// ConfidenceThreshold is in percentage points (roughly 0-100);
// MinRiskReward is a profit/loss ratio (> 0).
type ParameterSet struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	MinRiskReward       float64 `yaml:"min_risk_reward" json:"min_risk_reward"`
}

// File is a parsed parameter file: the universal baseline plus
// per-session overrides.
type File struct {
	Baseline ParameterSet             `yaml:"baseline"`
	Sessions map[Session]ParameterSet `yaml:"sessions"`
}

// rawSet uses pointers so that keys absent from the YAML are
// distinguishable from explicit zeros.
type rawSet struct {
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
	MinRiskReward       *float64 `yaml:"min_risk_reward"`
}

type rawFile struct {
	Baseline rawSet            `yaml:"baseline"`
	Sessions map[string]rawSet `yaml:"sessions"`
}

// Load reads and validates a parameter file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data)
}

// Parse validates YAML parameter data. Missing keys, unknown sessions,
// an empty session map, and non-finite values are all rejected; there is
// no silent defaulting.
func Parse(data []byte) (File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	baseline, err := resolveSet("baseline", raw.Baseline)
	if err != nil {
		return File{}, err
	}

	if len(raw.Sessions) == 0 {
		return File{}, fmt.Errorf("%w: no sessions defined", ErrInvalidInput)
	}

	sessions := make(map[Session]ParameterSet, len(raw.Sessions))
	for name, rs := range raw.Sessions {
		session, err := ParseSession(name)
		if err != nil {
			return File{}, err
		}
		set, err := resolveSet("session "+name, rs)
		if err != nil {
			return File{}, err
		}
		sessions[session] = set
	}

	return File{Baseline: baseline, Sessions: sessions}, nil
}

func resolveSet(label string, raw rawSet) (ParameterSet, error) {
	if raw.ConfidenceThreshold == nil {
		return ParameterSet{}, fmt.Errorf("%w: %s missing confidence_threshold", ErrInvalidInput, label)
	}
	if raw.MinRiskReward == nil {
		return ParameterSet{}, fmt.Errorf("%w: %s missing min_risk_reward", ErrInvalidInput, label)
	}
	set := ParameterSet{
		ConfidenceThreshold: *raw.ConfidenceThreshold,
		MinRiskReward:       *raw.MinRiskReward,
	}
	if err := set.Check(); err != nil {
		return ParameterSet{}, fmt.Errorf("%s: %w", label, err)
	}
	return set, nil
}

// Check rejects non-finite values.
func (p ParameterSet) Check() error {
	if !isFinite(p.ConfidenceThreshold) {
		return fmt.Errorf("%w: confidence_threshold is not a finite number", ErrInvalidInput)
	}
	if !isFinite(p.MinRiskReward) {
		return fmt.Errorf("%w: min_risk_reward is not a finite number", ErrInvalidInput)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
