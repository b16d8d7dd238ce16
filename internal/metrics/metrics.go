package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_evaluations_total",
			Help: "Total number of parameter evaluations (by verdict).",
		},
		[]string{"verdict"},
	)

	OverfittingScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "validator_overfitting_score",
			Help: "Overfitting score of the most recent evaluation.",
		},
	)

	DeploymentsBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validator_deployments_blocked_total",
			Help: "Total number of evaluations that blocked deployment.",
		},
	)

	EvaluationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validator_evaluation_errors_total",
			Help: "Total number of failed evaluation attempts (bad input, unreadable file).",
		},
	)
)

func init() {
	prometheus.MustRegister(EvaluationsTotal, OverfittingScore, DeploymentsBlocked, EvaluationErrors)
}
