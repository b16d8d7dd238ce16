package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ariafx/session-validator/internal/config"
	"github.com/ariafx/session-validator/internal/gate"
	"github.com/ariafx/session-validator/internal/history"
	"github.com/ariafx/session-validator/internal/logger"
	"github.com/ariafx/session-validator/internal/metrics"
	"github.com/ariafx/session-validator/internal/params"
	"github.com/ariafx/session-validator/internal/scoring"
)

// Notifier defines the alert methods used by the validator app.
type Notifier interface {
	NotifyVerdict(ctx context.Context, source string, res scoring.Result) error
	NotifyGateLocked(ctx context.Context, consecutiveRejections int) error
}

// Recorder persists evaluation outcomes (nil disables persistence).
type Recorder interface {
	Record(e history.Entry) error
}

// App periodically re-evaluates the configured parameter file and feeds
// the outcome to the gate, history log, metrics, and notifier.
type App struct {
	cfg      config.Config
	calc     *scoring.Calculator
	gate     *gate.Manager
	recorder Recorder
	notifier Notifier
	log      logger.Logger

	mu              sync.RWMutex
	running         bool
	latest          scoring.Result
	hasResult       bool
	lastEvaluatedAt time.Time
	evaluations     int
	lastErr         error
}

func New(cfg config.Config, calc *scoring.Calculator, gateMgr *gate.Manager, recorder Recorder, notifier Notifier, log logger.Logger) *App {
	return &App{
		cfg:      cfg,
		calc:     calc,
		gate:     gateMgr,
		recorder: recorder,
		notifier: notifier,
		log:      log,
	}
}

// Run evaluates the parameter file immediately and then on every tick
// until the context is cancelled. Transient file or input errors are
// logged and the loop keeps going.
func (a *App) Run(ctx context.Context) error {
	a.setRunning(true)
	defer a.setRunning(false)

	a.evaluate(ctx)

	ticker := time.NewTicker(a.cfg.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.evaluate(ctx)
		}
	}
}

// EvaluateOnce runs a single evaluation of the configured parameter file.
func (a *App) EvaluateOnce(ctx context.Context) (scoring.Result, error) {
	return a.evaluate(ctx)
}

func (a *App) evaluate(ctx context.Context) (scoring.Result, error) {
	file, err := params.Load(a.cfg.ParamsFile)
	if err != nil {
		a.recordError(err)
		a.log.Error("load parameter file failed", zap.String("path", a.cfg.ParamsFile), zap.Error(err))
		return scoring.Result{}, err
	}

	res, err := a.calc.Compute(file.Baseline, file.Sessions)
	if err != nil {
		a.recordError(err)
		a.log.Error("score computation failed", zap.Error(err))
		return scoring.Result{}, err
	}

	wasLocked := a.gate.Snapshot().Locked
	a.gate.RecordEvaluation(res)

	metrics.EvaluationsTotal.WithLabelValues(string(res.Verdict)).Inc()
	metrics.OverfittingScore.Set(res.Score)
	if !res.Accepted {
		metrics.DeploymentsBlocked.Inc()
	}

	a.mu.Lock()
	a.latest = res
	a.hasResult = true
	a.lastEvaluatedAt = time.Now()
	a.evaluations++
	a.lastErr = nil
	a.mu.Unlock()

	a.log.Info("parameter evaluation",
		zap.String("path", a.cfg.ParamsFile),
		zap.Float64("score", res.Score),
		zap.String("verdict", string(res.Verdict)),
		zap.Int("sessions", len(res.Deviations)),
	)

	if a.recorder != nil {
		entry := history.Entry{
			Source:   a.cfg.ParamsFile,
			Score:    res.Score,
			RawScore: res.RawScore,
			Verdict:  res.Verdict,
			Sessions: len(res.Deviations),
			Accepted: res.Accepted,
		}
		if err := a.recorder.Record(entry); err != nil {
			a.log.Warn("history record failed", zap.Error(err))
		}
	}

	if a.notifier != nil {
		if err := a.notifier.NotifyVerdict(ctx, a.cfg.ParamsFile, res); err != nil {
			a.log.Warn("verdict notification failed", zap.Error(err))
		}
		snap := a.gate.Snapshot()
		if snap.Locked && !wasLocked {
			if err := a.notifier.NotifyGateLocked(ctx, snap.ConsecutiveRejections); err != nil {
				a.log.Warn("gate-locked notification failed", zap.Error(err))
			}
		}
	}

	return res, nil
}

func (a *App) recordError(err error) {
	metrics.EvaluationErrors.Inc()
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
}

func (a *App) setRunning(running bool) {
	a.mu.Lock()
	a.running = running
	a.mu.Unlock()
}

// IsRunning reports whether the evaluation loop is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// LatestResult returns the most recent successful evaluation.
func (a *App) LatestResult() (scoring.Result, time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.lastEvaluatedAt, a.hasResult
}

// Stats returns the evaluation count and the last error message, if any.
func (a *App) Stats() (evaluations int, lastErr string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastErr != nil {
		lastErr = a.lastErr.Error()
	}
	return a.evaluations, lastErr
}

// Compute scores an ad-hoc baseline/sessions pair without touching the
// gate, history, or metrics. Used by the HTTP API.
func (a *App) Compute(baseline params.ParameterSet, sessions map[params.Session]params.ParameterSet) (scoring.Result, error) {
	return a.calc.Compute(baseline, sessions)
}

// Policy returns the active scoring policy.
func (a *App) Policy() scoring.Policy { return a.calc.Policy() }

// ParamsSource returns the configured parameter file path.
func (a *App) ParamsSource() string { return a.cfg.ParamsFile }
