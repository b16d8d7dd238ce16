package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ariafx/session-validator/internal/gate"
	"github.com/ariafx/session-validator/internal/history"
	"github.com/ariafx/session-validator/internal/params"
	"github.com/ariafx/session-validator/internal/scoring"
)

// Evaluator exposes the validator app's state for the API layer.
type Evaluator interface {
	IsRunning() bool
	LatestResult() (scoring.Result, time.Time, bool)
	Stats() (evaluations int, lastErr string)
	Compute(baseline params.ParameterSet, sessions map[params.Session]params.ParameterSet) (scoring.Result, error)
	Policy() scoring.Policy
	ParamsSource() string
}

// HistoryProvider exposes the evaluation log (nil if disabled).
type HistoryProvider interface {
	Recent(limit int) ([]history.Entry, error)
}

// GateProvider exposes the deployment gate state.
type GateProvider interface {
	Snapshot() gate.Snapshot
	Allow() error
}

// Server is a lightweight HTTP API for the validator.
type Server struct {
	httpServer *http.Server
	evaluator  Evaluator
	hist       HistoryProvider
	gate       GateProvider
	startedAt  time.Time
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, evaluator Evaluator, hist HistoryProvider, gateProvider GateProvider) *Server {
	s := &Server{
		evaluator: evaluator,
		hist:      hist,
		gate:      gateProvider,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/ready", s.handleReady)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/score", s.handleScore)
	mux.HandleFunc("/api/policy", s.handlePolicy)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/gate", s.handleGate)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("api server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/health — liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/ready — readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.evaluator.IsRunning()
	resp := map[string]interface{}{
		"ready":    ready,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	}
	if !ready {
		resp["reason"] = "evaluation_loop_not_running"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	s.writeJSON(w, resp)
}

// GET /api/status — overall system status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	evaluations, lastErr := s.evaluator.Stats()
	resp := map[string]interface{}{
		"running":     s.evaluator.IsRunning(),
		"uptime_s":    time.Since(s.startedAt).Seconds(),
		"params_file": s.evaluator.ParamsSource(),
		"evaluations": evaluations,
	}
	if lastErr != "" {
		resp["last_error"] = lastErr
	}
	if res, at, ok := s.evaluator.LatestResult(); ok {
		resp["score"] = res.Score
		resp["verdict"] = res.Verdict
		resp["accepted"] = res.Accepted
		resp["evaluated_at"] = at
	}
	s.writeJSON(w, resp)
}

type scoreRequest struct {
	Baseline *setPayload            `json:"baseline"`
	Sessions map[string]*setPayload `json:"session_parameters"`
}

// setPayload uses pointers so missing keys are rejected rather than
// silently defaulted to zero.
type setPayload struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	MinRiskReward       *float64 `json:"min_risk_reward"`
}

func (p *setPayload) resolve(label string) (params.ParameterSet, error) {
	if p == nil {
		return params.ParameterSet{}, fmt.Errorf("%w: %s is required", params.ErrInvalidInput, label)
	}
	if p.ConfidenceThreshold == nil {
		return params.ParameterSet{}, fmt.Errorf("%w: %s missing confidence_threshold", params.ErrInvalidInput, label)
	}
	if p.MinRiskReward == nil {
		return params.ParameterSet{}, fmt.Errorf("%w: %s missing min_risk_reward", params.ErrInvalidInput, label)
	}
	return params.ParameterSet{
		ConfidenceThreshold: *p.ConfidenceThreshold,
		MinRiskReward:       *p.MinRiskReward,
	}, nil
}

// GET /api/score — latest evaluation of the configured parameter file.
// POST /api/score — score an ad-hoc baseline + session parameters payload.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		res, at, ok := s.evaluator.LatestResult()
		if !ok {
			http.Error(w, "no evaluation available yet", http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]interface{}{
			"params_file":  s.evaluator.ParamsSource(),
			"evaluated_at": at,
			"result":       res,
		})
	case http.MethodPost:
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		baseline, err := req.Baseline.resolve("baseline")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sessions := make(map[params.Session]params.ParameterSet, len(req.Sessions))
		for name, payload := range req.Sessions {
			session, err := params.ParseSession(name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			set, err := payload.resolve("session " + name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			sessions[session] = set
		}
		res, err := s.evaluator.Compute(baseline, sessions)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, params.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		s.writeJSON(w, map[string]interface{}{"result": res})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/policy — the active scoring policy.
func (s *Server) handlePolicy(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.evaluator.Policy())
}

// GET /api/history?limit=50 — recent evaluation log entries.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		s.writeJSON(w, map[string]interface{}{
			"enabled": false,
			"entries": []history.Entry{},
			"count":   0,
		})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.hist.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, map[string]interface{}{
		"enabled": true,
		"entries": entries,
		"count":   len(entries),
	})
}

// GET /api/gate — deployment gate state.
func (s *Server) handleGate(w http.ResponseWriter, _ *http.Request) {
	snap := s.gate.Snapshot()
	resp := map[string]interface{}{
		"evaluations":            snap.Evaluations,
		"rejections":             snap.Rejections,
		"consecutive_rejections": snap.ConsecutiveRejections,
		"last_score":             snap.LastScore,
		"last_verdict":           snap.LastVerdict,
		"last_evaluated_at":      snap.LastEvaluatedAt,
		"locked":                 snap.Locked,
	}
	if err := s.gate.Allow(); err != nil {
		resp["deployable"] = false
		resp["blocked_reason"] = err.Error()
	} else {
		resp["deployable"] = true
	}
	s.writeJSON(w, resp)
}
