package metrics

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDecision(t *testing.T) {
	before := testutil.ToFloat64(decisionsTotal.WithLabelValues("REJECT", "CRITICAL"))
	ruleBefore := testutil.ToFloat64(factorsTotal.WithLabelValues("rule"))

	ObserveDecision(&domain.RiskScoreResult{
		RiskScore:         100,
		RiskLevel:         domain.RiskCritical,
		RecommendedAction: domain.ActionReject,
		RiskFactors: []domain.RiskFactor{
			{Signal: domain.SignalEmail, Score: 10},
			{Signal: "rule_002", Score: 50},
			{Signal: "custom-id", Score: 5},
		},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(decisionsTotal.WithLabelValues("REJECT", "CRITICAL")))
	assert.Equal(t, ruleBefore+2, testutil.ToFloat64(factorsTotal.WithLabelValues("rule")))
}

func TestObserveHTTP(t *testing.T) {
	ObserveHTTP("GET", "", 404, time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "not_found", "404")), 1.0)
}

func TestSignalLabel(t *testing.T) {
	assert.Equal(t, domain.SignalVelocity, signalLabel(domain.SignalVelocity))
	assert.Equal(t, "rule", signalLabel("rule_abcdef12"))
	assert.Equal(t, "rule", signalLabel("anything-else"))
}
