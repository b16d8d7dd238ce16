package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariafx/session-validator/internal/gate"
	"github.com/ariafx/session-validator/internal/history"
	"github.com/ariafx/session-validator/internal/params"
	"github.com/ariafx/session-validator/internal/scoring"
)

type mockEvaluator struct {
	running     bool
	latest      scoring.Result
	evaluatedAt time.Time
	hasResult   bool
	evaluations int
	lastErr     string
	calc        *scoring.Calculator
	source      string
}

func (m *mockEvaluator) IsRunning() bool { return m.running }
func (m *mockEvaluator) LatestResult() (scoring.Result, time.Time, bool) {
	return m.latest, m.evaluatedAt, m.hasResult
}
func (m *mockEvaluator) Stats() (int, string) { return m.evaluations, m.lastErr }
func (m *mockEvaluator) Compute(baseline params.ParameterSet, sessions map[params.Session]params.ParameterSet) (scoring.Result, error) {
	return m.calc.Compute(baseline, sessions)
}
func (m *mockEvaluator) Policy() scoring.Policy { return m.calc.Policy() }
func (m *mockEvaluator) ParamsSource() string   { return m.source }

type mockHistory struct {
	entries []history.Entry
}

func (m *mockHistory) Recent(limit int) ([]history.Entry, error) {
	if limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func newMockEvaluator(t *testing.T) *mockEvaluator {
	t.Helper()
	calc, err := scoring.NewCalculator(scoring.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	return &mockEvaluator{calc: calc, source: "params.yaml"}
}

func TestHandleStatus(t *testing.T) {
	ev := newMockEvaluator(t)
	ev.running = true
	ev.evaluations = 3
	ev.hasResult = true
	ev.evaluatedAt = time.Now()
	ev.latest = scoring.Result{Score: 0.21, Verdict: scoring.VerdictAcceptable, Accepted: true}

	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	s.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["running"] != true {
		t.Error("expected running=true")
	}
	if int(resp["evaluations"].(float64)) != 3 {
		t.Errorf("expected evaluations=3, got %v", resp["evaluations"])
	}
	if resp["score"].(float64) != 0.21 {
		t.Errorf("expected score=0.21, got %v", resp["score"])
	}
	if resp["params_file"] != "params.yaml" {
		t.Errorf("expected params_file=params.yaml, got %v", resp["params_file"])
	}
}

func TestHandleReadyNotRunning(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleScoreGetWithoutResult(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/score", nil)
	w := httptest.NewRecorder()
	s.handleScore(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no evaluation exists, got %d", w.Code)
	}
}

func TestHandleScorePost(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	body := `{
		"baseline": {"confidence_threshold": 55.0, "min_risk_reward": 1.8},
		"session_parameters": {
			"Tokyo": {"confidence_threshold": 62.0, "min_risk_reward": 2.4},
			"London": {"confidence_threshold": 61.0, "min_risk_reward": 2.3}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleScore(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Result scoring.Result `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result.Score >= 0.3 {
		t.Errorf("expected acceptable score, got %f", resp.Result.Score)
	}
	if len(resp.Result.Deviations) != 2 {
		t.Errorf("expected 2 deviations, got %d", len(resp.Result.Deviations))
	}
}

func TestHandleScorePostMissingKey(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	body := `{
		"baseline": {"confidence_threshold": 55.0, "min_risk_reward": 1.8},
		"session_parameters": {
			"Tokyo": {"confidence_threshold": 62.0}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleScore(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing min_risk_reward, got %d", w.Code)
	}
}

func TestHandleScorePostUnknownSession(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	body := `{
		"baseline": {"confidence_threshold": 55.0, "min_risk_reward": 1.8},
		"session_parameters": {
			"Frankfurt": {"confidence_threshold": 62.0, "min_risk_reward": 2.4}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleScore(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown session, got %d", w.Code)
	}
}

func TestHandleScorePostEmptySessions(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	body := `{
		"baseline": {"confidence_threshold": 55.0, "min_risk_reward": 1.8},
		"session_parameters": {}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleScore(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sessions, got %d", w.Code)
	}
}

func TestHandlePolicy(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/policy", nil)
	w := httptest.NewRecorder()
	s.handlePolicy(w, req)

	var policy scoring.Policy
	if err := json.NewDecoder(w.Body).Decode(&policy); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if policy.ConfidenceDivisor != 50 || policy.WarnThreshold != 0.3 {
		t.Errorf("unexpected policy: %+v", policy)
	}
}

func TestHandleHistory(t *testing.T) {
	ev := newMockEvaluator(t)
	hist := &mockHistory{entries: []history.Entry{
		{ID: 2, Score: 0.2, Verdict: scoring.VerdictAcceptable, Accepted: true},
		{ID: 1, Score: 0.9, Verdict: scoring.VerdictCritical},
	}}
	s := NewServer(":0", ev, hist, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=1", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["enabled"] != true {
		t.Error("expected enabled=true")
	}
	if int(resp["count"].(float64)) != 1 {
		t.Errorf("expected count=1, got %v", resp["count"])
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["enabled"] != false {
		t.Error("expected enabled=false when history is nil")
	}
}

func TestHandleGate(t *testing.T) {
	ev := newMockEvaluator(t)
	gateMgr := gate.New(gate.Config{MaxConsecutiveRejections: 3})
	gateMgr.RecordEvaluation(scoring.Result{Score: 0.9, Verdict: scoring.VerdictCritical})
	s := NewServer(":0", ev, nil, gateMgr)

	req := httptest.NewRequest(http.MethodGet, "/api/gate", nil)
	w := httptest.NewRecorder()
	s.handleGate(w, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["deployable"] != false {
		t.Error("expected deployable=false after critical evaluation")
	}
	if resp["blocked_reason"] == "" {
		t.Error("expected a blocked_reason")
	}
	if int(resp["rejections"].(float64)) != 1 {
		t.Errorf("expected rejections=1, got %v", resp["rejections"])
	}
}

func TestHandleHealth(t *testing.T) {
	ev := newMockEvaluator(t)
	s := NewServer(":0", ev, nil, gate.New(gate.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ok"] != true {
		t.Error("expected ok=true")
	}
}
