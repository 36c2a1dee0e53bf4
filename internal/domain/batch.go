package domain

import "time"

// BatchRequest is the wire payload for batch screening. The size ceiling is
// enforced by the screening pipeline from configuration.
type BatchRequest struct {
	Transactions []TransactionRequest `json:"transactions" validate:"required,min=1,dive"`
}

// BatchSummary counts results per recommended action.
type BatchSummary struct {
	Approve      int `json:"approve"`
	ManualReview int `json:"manual_review"`
	Reject       int `json:"reject"`
}

// Add counts one action.
func (s *BatchSummary) Add(a Action) {
	switch a {
	case ActionApprove:
		s.Approve++
	case ActionManualReview:
		s.ManualReview++
	case ActionReject:
		s.Reject++
	}
}

// BatchResult is the outcome of screening an ordered list of transactions.
// Results keep the input order.
type BatchResult struct {
	Total    int                `json:"total"`
	ScoredAt time.Time          `json:"scored_at"`
	Summary  BatchSummary       `json:"summary"`
	Results  []*RiskScoreResult `json:"results"`
}

// DecisionEvent is published on TopicDecision and TopicAlert.
type DecisionEvent struct {
	Result      *RiskScoreResult `json:"result"`
	Email       string           `json:"email"`
	CardBIN     string           `json:"card_bin"`
	Amount      float64          `json:"amount"`
	PublishedAt time.Time        `json:"published_at"`
}
