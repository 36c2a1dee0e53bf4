package domain

import "time"

// Score bounds for a risk verdict.
const (
	MinScore = 0
	MaxScore = 100
)

// Canonical signal names carried by RiskFactor.Signal.
const (
	SignalVelocity    = "velocity_check"
	SignalGeolocation = "geolocation_mismatch"
	SignalCategory    = "high_risk_category"
	SignalAmount      = "amount_anomaly"
	SignalNewCustomer = "new_customer_risk"
	SignalEmail       = "email_pattern"
)

// RiskLevel is the ordered severity band of a score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// LevelForScore maps a clamped score onto its band.
//
//	[0,25] LOW, [26,50] MEDIUM, [51,75] HIGH, [76,100] CRITICAL
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= 25:
		return RiskLow
	case score <= 50:
		return RiskMedium
	case score <= 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Action is the recommended handling of a transaction.
type Action string

const (
	ActionApprove      Action = "APPROVE"
	ActionManualReview Action = "MANUAL_REVIEW"
	ActionReject       Action = "REJECT"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionManualReview, ActionReject:
		return true
	}
	return false
}

// Severity orders actions: APPROVE < MANUAL_REVIEW < REJECT.
func (a Action) Severity() int {
	switch a {
	case ActionManualReview:
		return 1
	case ActionReject:
		return 2
	default:
		return 0
	}
}

// MostSevere returns the most severe of the given actions.
func MostSevere(first Action, rest ...Action) Action {
	best := first
	for _, a := range rest {
		if a.Severity() > best.Severity() {
			best = a
		}
	}
	return best
}

// DefaultAction is the action implied by a level when no rule intervenes.
func DefaultAction(level RiskLevel) Action {
	switch level {
	case RiskHigh:
		return ActionManualReview
	case RiskCritical:
		return ActionReject
	default:
		return ActionApprove
	}
}

// ClampScore bounds a raw score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// RiskFactor is one triggered signal's contribution to a score.
// Signal factors always carry a non-negative score; rule factors carry the
// rule's signed modifier.
type RiskFactor struct {
	Signal      string `json:"signal"`
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// RiskScoreResult is the verdict for one transaction.
type RiskScoreResult struct {
	TransactionID     string       `json:"transaction_id"`
	RiskScore         int          `json:"risk_score"`
	RiskLevel         RiskLevel    `json:"risk_level"`
	RecommendedAction Action       `json:"recommended_action"`
	RiskFactors       []RiskFactor `json:"risk_factors"`
	ScoredAt          time.Time    `json:"scored_at"`
}

// NewRiskScoreResult builds a result whose level and action derive from score.
func NewRiskScoreResult(txID string, score int, factors []RiskFactor, scoredAt time.Time) *RiskScoreResult {
	score = ClampScore(score)
	level := LevelForScore(score)
	if factors == nil {
		factors = []RiskFactor{}
	}
	return &RiskScoreResult{
		TransactionID:     txID,
		RiskScore:         score,
		RiskLevel:         level,
		RecommendedAction: DefaultAction(level),
		RiskFactors:       factors,
		ScoredAt:          scoredAt,
	}
}
