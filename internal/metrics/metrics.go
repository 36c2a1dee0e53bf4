// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kestrel"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Screening decisions by recommended action and risk level",
		},
		[]string{"action", "level"},
	)

	riskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of final risk scores",
			Buckets:   []float64{10, 25, 40, 50, 60, 75, 90, 100},
		},
	)

	factorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_factors_total",
			Help:      "Triggered risk factors by signal; rule matches are counted as \"rule\"",
		},
		[]string{"signal"},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Transactions per batch screening request",
			Buckets:   []float64{1, 5, 10, 50, 100, 250, 500},
		},
	)

	historyErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_errors_total",
			Help:      "Scoring requests failed because transaction history was unavailable",
		},
	)

	analysisCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cache_total",
			Help:      "Chargeback analysis cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "not_found"
	}
	code := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	httpRequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

// ObserveDecision records a committed screening result.
func ObserveDecision(result *domain.RiskScoreResult) {
	decisionsTotal.WithLabelValues(string(result.RecommendedAction), string(result.RiskLevel)).Inc()
	riskScore.Observe(float64(result.RiskScore))
	for _, f := range result.RiskFactors {
		factorsTotal.WithLabelValues(signalLabel(f.Signal)).Inc()
	}
}

// ObserveBatch records the size of a batch request.
func ObserveBatch(n int) {
	batchSize.Observe(float64(n))
}

// ObserveHistoryError counts a scoring failure caused by history.
func ObserveHistoryError() {
	historyErrorsTotal.Inc()
}

// ObserveAnalysisCache counts an analysis cache hit or miss.
func ObserveAnalysisCache(hit bool) {
	if hit {
		analysisCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	analysisCacheTotal.WithLabelValues("miss").Inc()
}

// signalLabel keeps label cardinality bounded: rule ids collapse to "rule".
func signalLabel(signal string) string {
	if strings.HasPrefix(signal, "rule_") {
		return "rule"
	}
	switch signal {
	case domain.SignalVelocity, domain.SignalGeolocation, domain.SignalCategory,
		domain.SignalAmount, domain.SignalNewCustomer, domain.SignalEmail:
		return signal
	}
	return "rule"
}
