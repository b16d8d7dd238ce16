package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ariafx/session-validator/internal/config"
	"github.com/ariafx/session-validator/internal/gate"
	"github.com/ariafx/session-validator/internal/history"
	"github.com/ariafx/session-validator/internal/logger"
	"github.com/ariafx/session-validator/internal/params"
	"github.com/ariafx/session-validator/internal/scoring"
)

const refinedYAML = `
baseline:
  confidence_threshold: 55.0
  min_risk_reward: 1.8
sessions:
  Tokyo:
    confidence_threshold: 62.0
    min_risk_reward: 2.4
  London:
    confidence_threshold: 61.0
    min_risk_reward: 2.3
  New_York:
    confidence_threshold: 59.0
    min_risk_reward: 2.2
  Sydney:
    confidence_threshold: 63.0
    min_risk_reward: 2.5
  Overlap:
    confidence_threshold: 59.0
    min_risk_reward: 2.2
`

const overfitYAML = `
baseline:
  confidence_threshold: 55.0
  min_risk_reward: 1.8
sessions:
  Tokyo:
    confidence_threshold: 85.0
    min_risk_reward: 4.0
  London:
    confidence_threshold: 72.0
    min_risk_reward: 3.2
`

type mockNotifier struct {
	verdicts    []scoring.Verdict
	gateLocked  int
	notifyError error
}

func (m *mockNotifier) NotifyVerdict(_ context.Context, _ string, res scoring.Result) error {
	if res.Verdict != scoring.VerdictAcceptable {
		m.verdicts = append(m.verdicts, res.Verdict)
	}
	return m.notifyError
}

func (m *mockNotifier) NotifyGateLocked(_ context.Context, _ int) error {
	m.gateLocked++
	return m.notifyError
}

type mockRecorder struct {
	entries []history.Entry
	err     error
}

func (m *mockRecorder) Record(e history.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func writeParams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, paramsPath string, notifier Notifier, recorder Recorder) (*App, *gate.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.ParamsFile = paramsPath
	cfg.EvalInterval = time.Hour

	calc, err := scoring.NewCalculator(cfg.Scoring.Policy())
	if err != nil {
		t.Fatal(err)
	}
	gateMgr := gate.New(gate.Config{MaxConsecutiveRejections: cfg.Gate.MaxConsecutiveRejections})
	return New(cfg, calc, gateMgr, recorder, notifier, logger.Nop()), gateMgr
}

func TestEvaluateOnceAccepted(t *testing.T) {
	recorder := &mockRecorder{}
	notifier := &mockNotifier{}
	a, gateMgr := newTestApp(t, writeParams(t, refinedYAML), notifier, recorder)

	res, err := a.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Accepted {
		t.Fatalf("expected refined parameters accepted, score %f", res.Score)
	}
	if err := gateMgr.Allow(); err != nil {
		t.Fatalf("expected gate open after accepted evaluation: %v", err)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(recorder.entries))
	}
	if !recorder.entries[0].Accepted || recorder.entries[0].Sessions != 5 {
		t.Fatalf("unexpected history entry: %+v", recorder.entries[0])
	}
	if len(notifier.verdicts) != 0 {
		t.Fatalf("expected no verdict notifications for accepted result, got %v", notifier.verdicts)
	}

	latest, at, ok := a.LatestResult()
	if !ok {
		t.Fatal("expected latest result available")
	}
	if latest.Score != res.Score || at.IsZero() {
		t.Fatal("latest result not recorded correctly")
	}
}

func TestEvaluateOnceCriticalNotifiesAndBlocks(t *testing.T) {
	notifier := &mockNotifier{}
	a, gateMgr := newTestApp(t, writeParams(t, overfitYAML), notifier, nil)

	res, err := a.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != scoring.VerdictCritical {
		t.Fatalf("expected critical verdict, got %s", res.Verdict)
	}
	if err := gateMgr.Allow(); err == nil {
		t.Fatal("expected gate to block after critical evaluation")
	}
	if len(notifier.verdicts) != 1 || notifier.verdicts[0] != scoring.VerdictCritical {
		t.Fatalf("expected one critical notification, got %v", notifier.verdicts)
	}
}

func TestGateLockNotifiedOnce(t *testing.T) {
	notifier := &mockNotifier{}
	a, gateMgr := newTestApp(t, writeParams(t, overfitYAML), notifier, nil)

	for i := 0; i < 4; i++ {
		if _, err := a.EvaluateOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !gateMgr.Snapshot().Locked {
		t.Fatal("expected gate locked after rejection streak")
	}
	if notifier.gateLocked != 1 {
		t.Fatalf("expected exactly one gate-locked notification, got %d", notifier.gateLocked)
	}
}

func TestEvaluateOnceMissingFile(t *testing.T) {
	a, _ := newTestApp(t, filepath.Join(t.TempDir(), "absent.yaml"), nil, nil)

	if _, err := a.EvaluateOnce(context.Background()); err == nil {
		t.Fatal("expected error for missing parameter file")
	}
	evaluations, lastErr := a.Stats()
	if evaluations != 0 {
		t.Fatalf("expected no successful evaluations, got %d", evaluations)
	}
	if lastErr == "" {
		t.Fatal("expected last error to be recorded")
	}
	if _, _, ok := a.LatestResult(); ok {
		t.Fatal("expected no latest result after failed evaluation")
	}
}

func TestEvaluateOnceInvalidInput(t *testing.T) {
	path := writeParams(t, "baseline:\n  confidence_threshold: 55.0\n  min_risk_reward: 1.8\nsessions: {}\n")
	a, _ := newTestApp(t, path, nil, nil)

	_, err := a.EvaluateOnce(context.Background())
	if !errors.Is(err, params.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t, writeParams(t, refinedYAML), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for the initial evaluation.
	deadline := time.After(2 * time.Second)
	for {
		if _, _, ok := a.LatestResult(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial evaluation")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !a.IsRunning() {
		t.Fatal("expected app running")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to stop")
	}
	if a.IsRunning() {
		t.Fatal("expected app stopped after cancel")
	}
}
