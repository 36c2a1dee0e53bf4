package domain

import "time"

// Operator is a comparison used by a rule condition.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpIn    Operator = "in"
	OpNotIn Operator = "not_in"
)

// Operators lists every supported operator.
var Operators = []Operator{OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn}

// Numeric reports whether the operator compares magnitudes.
func (o Operator) Numeric() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Membership reports whether the operator tests set membership.
func (o Operator) Membership() bool {
	return o == OpIn || o == OpNotIn
}

// Modifier and priority bounds for rules.
const (
	MinRuleModifier = -50
	MaxRuleModifier = 50
)

// Condition is one predicate inside a rule. Exactly one of Value or
// ValueField is set.
type Condition struct {
	Field      string   `json:"field" validate:"required"`
	Operator   Operator `json:"operator" validate:"required,oneof=eq neq gt gte lt lte in not_in"`
	Value      any      `json:"value,omitempty"`
	ValueField string   `json:"value_field,omitempty"`
}

// Rule is a persisted, user-authored scoring policy.
type Rule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description,omitempty" validate:"max=1000"`
	Conditions  []Condition `json:"conditions" validate:"required,min=1,dive"`
	Action      Action      `json:"action" validate:"required,oneof=APPROVE MANUAL_REVIEW REJECT"`
	Modifier    int         `json:"risk_score_modifier" validate:"gte=-50,lte=50"`
	IsActive    bool        `json:"is_active"`
	Priority    int         `json:"priority" validate:"gte=0"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RuleRequest is the wire payload for rule creation.
type RuleRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description,omitempty" validate:"max=1000"`
	Conditions  []Condition `json:"conditions" validate:"required,min=1,dive"`
	Action      Action      `json:"action" validate:"required,oneof=APPROVE MANUAL_REVIEW REJECT"`
	Modifier    int         `json:"risk_score_modifier" validate:"gte=-50,lte=50"`
	IsActive    *bool       `json:"is_active,omitempty"`
	Priority    int         `json:"priority" validate:"gte=0"`
}

// ToRule converts a request to a Rule. Rules are active unless stated otherwise.
func (r *RuleRequest) ToRule() *Rule {
	rule := &Rule{
		Name:        r.Name,
		Description: r.Description,
		Conditions:  r.Conditions,
		Action:      r.Action,
		Modifier:    r.Modifier,
		IsActive:    true,
		Priority:    r.Priority,
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	return rule
}
