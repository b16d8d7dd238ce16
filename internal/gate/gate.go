package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/ariafx/session-validator/internal/scoring"
)

type Config struct {
	// MaxConsecutiveRejections locks the gate after this many rejected
	// evaluations in a row; 0 disables the lock.
	MaxConsecutiveRejections int
}

// Snapshot is a point-in-time view of the gate state.
type Snapshot struct {
	Evaluations           int             `json:"evaluations"`
	Rejections            int             `json:"rejections"`
	ConsecutiveRejections int             `json:"consecutive_rejections"`
	LastScore             float64         `json:"last_score"`
	LastVerdict           scoring.Verdict `json:"last_verdict"`
	LastEvaluatedAt       time.Time       `json:"last_evaluated_at"`
	Locked                bool            `json:"locked"`
}

// Manager gates deployment of session parameters on evaluation outcomes.
type Manager struct {
	mu  sync.RWMutex
	cfg Config

	evaluations           int
	rejections            int
	consecutiveRejections int
	lastScore             float64
	lastVerdict           scoring.Verdict
	lastEvaluatedAt       time.Time
	locked                bool
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// RecordEvaluation updates gate state from a score computation.
func (m *Manager) RecordEvaluation(res scoring.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evaluations++
	m.lastScore = res.Score
	m.lastVerdict = res.Verdict
	m.lastEvaluatedAt = time.Now()

	if res.Accepted {
		m.consecutiveRejections = 0
		return
	}
	m.rejections++
	m.consecutiveRejections++
	if m.cfg.MaxConsecutiveRejections > 0 && m.consecutiveRejections >= m.cfg.MaxConsecutiveRejections {
		m.locked = true
	}
}

// Allow reports whether the last evaluated parameter set may be deployed.
func (m *Manager) Allow() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.locked {
		return fmt.Errorf("gate locked after %d consecutive rejections", m.consecutiveRejections)
	}
	if m.evaluations == 0 {
		return fmt.Errorf("no evaluation recorded")
	}
	if m.lastVerdict != scoring.VerdictAcceptable {
		return fmt.Errorf("last evaluation %s (score %.4f)", m.lastVerdict, m.lastScore)
	}
	return nil
}

// Unlock clears the consecutive-rejection lock after manual review.
func (m *Manager) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = false
	m.consecutiveRejections = 0
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Evaluations:           m.evaluations,
		Rejections:            m.rejections,
		ConsecutiveRejections: m.consecutiveRejections,
		LastScore:             m.lastScore,
		LastVerdict:           m.lastVerdict,
		LastEvaluatedAt:       m.lastEvaluatedAt,
		Locked:                m.locked,
	}
}
