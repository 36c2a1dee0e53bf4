package rules

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// seedEpoch orders the default rules ahead of anything created later at the
// same priority.
var seedEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultRules returns the stock rule set installed on first start.
func DefaultRules() []*domain.Rule {
	return []*domain.Rule{
		{
			ID:          "rule_001",
			Name:        "High-value first-time buyer",
			Description: "Flag any transaction over $500 from a first-time customer",
			Conditions: []domain.Condition{
				{Field: FieldAmount, Operator: domain.OpGt, Value: 500.0},
				{Field: FieldIsFirstPurchase, Operator: domain.OpEq, Value: true},
			},
			Action:    domain.ActionManualReview,
			Modifier:  30,
			IsActive:  true,
			Priority:  1,
			CreatedAt: seedEpoch,
		},
		{
			ID:          "rule_002",
			Name:        "Cross-border disposable email",
			Description: "Auto-reject cross-border transactions with disposable email",
			Conditions: []domain.Condition{
				{Field: FieldBillingCountry, Operator: domain.OpNeq, ValueField: FieldShippingCountry},
				{Field: FieldEmailDomainDisposable, Operator: domain.OpEq, Value: true},
			},
			Action:    domain.ActionReject,
			Modifier:  50,
			IsActive:  true,
			Priority:  2,
			CreatedAt: seedEpoch.Add(time.Second),
		},
		{
			ID:          "rule_003",
			Name:        "High velocity electronics",
			Description: "Review electronics purchases from high-velocity accounts",
			Conditions: []domain.Condition{
				{Field: FieldProductCategory, Operator: domain.OpEq, Value: string(domain.CategoryElectronics)},
				{Field: FieldVelocity24h, Operator: domain.OpGte, Value: 3.0},
			},
			Action:    domain.ActionManualReview,
			Modifier:  20,
			IsActive:  true,
			Priority:  3,
			CreatedAt: seedEpoch.Add(2 * time.Second),
		},
	}
}
