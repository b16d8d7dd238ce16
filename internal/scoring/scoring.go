// Package scoring computes the overfitting score for session-tuned trading
// parameters against the universal baseline. The score is a [0,1]-ish scalar:
// near 0 when session overrides hug the baseline, approaching 1 when they
// drift hard and inconsistently.
//
// The risk/reward deviation term is signed while the confidence term is not:
// a session demanding a lower risk/reward than baseline produces a negative
// term that can offset confidence drift in the combined sum. That asymmetry
// is preserved from the original calibration; do not symmetrize it without
// re-deriving the thresholds.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/ariafx/session-validator/internal/params"
)

// Verdict buckets a score by the policy thresholds.
type Verdict string

const (
	VerdictAcceptable Verdict = "acceptable"
	VerdictWarning    Verdict = "warning"
	VerdictCritical   Verdict = "critical"
)

// Policy holds the scoring constants. They are deliberately configuration,
// not literals, so the gate can be recalibrated without a code change.
type Policy struct {
	// ConfidenceDivisor normalizes confidence-threshold drift: a swing of
	// this many percentage points counts as one full unit of deviation.
	ConfidenceDivisor float64 `yaml:"confidence_divisor" json:"confidence_divisor"`
	// RiskRewardDivisor normalizes risk/reward drift: a premium of this
	// many ratio units counts as one full unit of deviation.
	RiskRewardDivisor float64 `yaml:"risk_reward_divisor" json:"risk_reward_divisor"`

	MeanWeight float64 `yaml:"mean_weight" json:"mean_weight"`
	MaxWeight  float64 `yaml:"max_weight" json:"max_weight"`
	StdWeight  float64 `yaml:"std_weight" json:"std_weight"`

	// WarnThreshold is the accept/reject line; CriticalThreshold marks
	// drift severe enough to page on.
	WarnThreshold     float64 `yaml:"warn_threshold" json:"warn_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold" json:"critical_threshold"`
}

// DefaultPolicy returns the historical calibration.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceDivisor: 50,
		RiskRewardDivisor: 3,
		MeanWeight:        0.4,
		MaxWeight:         0.4,
		StdWeight:         0.2,
		WarnThreshold:     0.3,
		CriticalThreshold: 0.6,
	}
}

// Validate checks the policy constants.
func (p Policy) Validate() error {
	if p.ConfidenceDivisor <= 0 {
		return fmt.Errorf("confidence_divisor must be > 0, got %f", p.ConfidenceDivisor)
	}
	if p.RiskRewardDivisor <= 0 {
		return fmt.Errorf("risk_reward_divisor must be > 0, got %f", p.RiskRewardDivisor)
	}
	if p.MeanWeight < 0 || p.MaxWeight < 0 || p.StdWeight < 0 {
		return fmt.Errorf("score weights must be >= 0, got %f/%f/%f", p.MeanWeight, p.MaxWeight, p.StdWeight)
	}
	if p.MeanWeight+p.MaxWeight+p.StdWeight == 0 {
		return fmt.Errorf("score weights must not all be zero")
	}
	if p.WarnThreshold <= 0 {
		return fmt.Errorf("warn_threshold must be > 0, got %f", p.WarnThreshold)
	}
	if p.CriticalThreshold < p.WarnThreshold {
		return fmt.Errorf("critical_threshold (%f) must be >= warn_threshold (%f)", p.CriticalThreshold, p.WarnThreshold)
	}
	return nil
}

// Verdict maps a score to its bucket.
func (p Policy) Verdict(score float64) Verdict {
	if score >= p.CriticalThreshold {
		return VerdictCritical
	}
	if score >= p.WarnThreshold {
		return VerdictWarning
	}
	return VerdictAcceptable
}

// SessionDeviation is one session's normalized drift from baseline.
type SessionDeviation struct {
	Session    params.Session `json:"session"`
	Confidence float64        `json:"confidence_deviation"`
	RiskReward float64        `json:"risk_reward_deviation"`
	Combined   float64        `json:"combined_deviation"`
}

// Result is the outcome of one score computation.
type Result struct {
	Deviations []SessionDeviation `json:"deviations"`

	MeanDeviation float64 `json:"mean_deviation"`
	MaxDeviation  float64 `json:"max_deviation"`
	StdDeviation  float64 `json:"std_deviation"`

	// RawScore is the pre-clamp value; Score caps it at 1.0.
	// Neither is clamped below zero.
	RawScore float64 `json:"raw_score"`
	Score    float64 `json:"score"`

	Verdict  Verdict `json:"verdict"`
	Accepted bool    `json:"accepted"`
}

// Calculator scores parameter sets under a fixed policy. It is pure and
// safe for concurrent use.
type Calculator struct {
	policy Policy
}

// NewCalculator validates the policy and returns a calculator.
func NewCalculator(policy Policy) (*Calculator, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}
	return &Calculator{policy: policy}, nil
}

// Policy returns the calculator's policy.
func (c *Calculator) Policy() Policy { return c.policy }

// Compute scores the session parameter sets against baseline.
// It fails with an error wrapping params.ErrInvalidInput when the session
// map is empty or any value is non-finite.
func (c *Calculator) Compute(baseline params.ParameterSet, sessions map[params.Session]params.ParameterSet) (Result, error) {
	if len(sessions) == 0 {
		return Result{}, fmt.Errorf("%w: session parameters are empty", params.ErrInvalidInput)
	}
	if err := baseline.Check(); err != nil {
		return Result{}, fmt.Errorf("baseline: %w", err)
	}

	deviations := make([]SessionDeviation, 0, len(sessions))
	for session, set := range sessions {
		if err := set.Check(); err != nil {
			return Result{}, fmt.Errorf("session %s: %w", session, err)
		}
		confDev := math.Abs(set.ConfidenceThreshold-baseline.ConfidenceThreshold) / c.policy.ConfidenceDivisor
		rrDev := (set.MinRiskReward - baseline.MinRiskReward) / c.policy.RiskRewardDivisor
		deviations = append(deviations, SessionDeviation{
			Session:    session,
			Confidence: confDev,
			RiskReward: rrDev,
			Combined:   confDev + rrDev,
		})
	}
	sort.Slice(deviations, func(i, j int) bool {
		ri, rj := sessionRank(deviations[i].Session), sessionRank(deviations[j].Session)
		if ri != rj {
			return ri < rj
		}
		return deviations[i].Session < deviations[j].Session
	})

	mean := 0.0
	max := math.Inf(-1)
	for _, d := range deviations {
		mean += d.Combined
		if d.Combined > max {
			max = d.Combined
		}
	}
	mean /= float64(len(deviations))

	// Population std dev; a singleton sample collapses to zero variance.
	std := 0.0
	if len(deviations) > 1 {
		variance := 0.0
		for _, d := range deviations {
			diff := d.Combined - mean
			variance += diff * diff
		}
		std = math.Sqrt(variance / float64(len(deviations)))
	}

	raw := c.policy.MeanWeight*mean + c.policy.MaxWeight*max + c.policy.StdWeight*std
	score := math.Min(1.0, raw)
	verdict := c.policy.Verdict(score)

	return Result{
		Deviations:    deviations,
		MeanDeviation: mean,
		MaxDeviation:  max,
		StdDeviation:  std,
		RawScore:      raw,
		Score:         score,
		Verdict:       verdict,
		Accepted:      verdict == VerdictAcceptable,
	}, nil
}

// sessionRank orders deviations canonically so results are deterministic.
func sessionRank(s params.Session) int {
	for i, known := range params.Sessions() {
		if s == known {
			return i
		}
	}
	return len(params.Sessions())
}
