// Package rules applies user-authored rules on top of the base risk score.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/validation"
)

// Engine evaluates the active rule set against scored transactions.
// Rules are read from the store on every Apply, so created or toggled rules
// take effect on the next transaction.
type Engine struct {
	store domain.RuleStore
	cmp   *comparator
}

// NewEngine creates a rule engine backed by store.
func NewEngine(store domain.RuleStore) (*Engine, error) {
	cmp, err := newComparator()
	if err != nil {
		return nil, err
	}
	return &Engine{store: store, cmp: cmp}, nil
}

// Apply evaluates every active rule against tx and folds the matches into
// base. With no matches, base is returned unchanged.
func (e *Engine) Apply(ctx context.Context, tx *domain.Transaction, base *domain.RiskScoreResult, source VirtualSource) (*domain.RiskScoreResult, error) {
	active, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(active) == 0 {
		return base, nil
	}

	res := newResolver(ctx, tx, source)
	var matched []*domain.Rule
	for _, rule := range active {
		ok, err := e.matches(rule, res)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 {
		return base, nil
	}
	return combine(base, matched), nil
}

func (e *Engine) matches(rule *domain.Rule, res *resolver) (bool, error) {
	for _, cond := range rule.Conditions {
		lhs, err := res.resolve(cond.Field)
		if err != nil {
			return false, err
		}

		rhs := cond.Value
		if cond.ValueField != "" {
			if rhs, err = res.resolve(cond.ValueField); err != nil {
				return false, err
			}
		}

		if !e.cmp.compare(cond.Operator, lhs, rhs) {
			return false, nil
		}
	}
	return true, nil
}

func combine(base *domain.RiskScoreResult, matched []*domain.Rule) *domain.RiskScoreResult {
	score := base.RiskScore
	factors := make([]domain.RiskFactor, len(base.RiskFactors), len(base.RiskFactors)+len(matched))
	copy(factors, base.RiskFactors)

	actions := make([]domain.Action, 0, len(matched))
	for _, rule := range matched {
		score += rule.Modifier
		actions = append(actions, rule.Action)
		factors = append(factors, domain.RiskFactor{
			Signal:      rule.ID,
			Score:       rule.Modifier,
			Description: fmt.Sprintf("Rule '%s' matched (modifier %+d)", rule.Name, rule.Modifier),
		})
	}

	result := domain.NewRiskScoreResult(base.TransactionID, score, factors, base.ScoredAt)
	result.RecommendedAction = domain.MostSevere(result.RecommendedAction, actions...)
	return result
}

// Create validates and stores a new rule.
func (e *Engine) Create(ctx context.Context, req *domain.RuleRequest) (*domain.Rule, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	rule := req.ToRule()
	if err := ValidateConditions(rule.Conditions); err != nil {
		return nil, err
	}

	created, err := e.store.CreateRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	slog.Info("rule created", "id", created.ID, "name", created.Name, "action", created.Action, "priority", created.Priority)
	return created, nil
}

// List returns all rules in evaluation order.
func (e *Engine) List(ctx context.Context) ([]*domain.Rule, error) {
	return e.store.ListRules(ctx)
}

// SetActive toggles a rule.
func (e *Engine) SetActive(ctx context.Context, id string, active bool) (*domain.Rule, error) {
	rule, err := e.store.SetRuleActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	slog.Info("rule toggled", "id", id, "active", active)
	return rule, nil
}

// Seed installs rules whose ids are not yet stored.
func (e *Engine) Seed(ctx context.Context, rules []*domain.Rule) (int, error) {
	for _, rule := range rules {
		if err := ValidateConditions(rule.Conditions); err != nil {
			return 0, fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
	}
	return e.store.SeedRules(ctx, rules)
}

// ValidateConditions checks what struct tags cannot express: exactly one of
// value and value_field, known field names, and list operands for membership.
// Failures wrap domain.ErrConfiguration.
func ValidateConditions(conds []domain.Condition) error {
	var problems []string
	for i, c := range conds {
		hasValue := c.Value != nil
		hasField := c.ValueField != ""

		switch {
		case hasValue && hasField:
			problems = append(problems, fmt.Sprintf("conditions[%d]: value and value_field are mutually exclusive", i))
		case !hasValue && !hasField:
			problems = append(problems, fmt.Sprintf("conditions[%d]: one of value or value_field is required", i))
		}

		if !KnownField(c.Field) {
			problems = append(problems, fmt.Sprintf("conditions[%d]: unknown field %q", i, c.Field))
		}
		if hasField && !KnownField(c.ValueField) {
			problems = append(problems, fmt.Sprintf("conditions[%d]: unknown value_field %q", i, c.ValueField))
		}

		if c.Operator.Membership() {
			if hasField {
				problems = append(problems, fmt.Sprintf("conditions[%d]: %s compares against a literal list, not value_field", i, c.Operator))
			} else if hasValue && !isList(c.Value) {
				problems = append(problems, fmt.Sprintf("conditions[%d]: %s requires a list value", i, c.Operator))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string, []float64, []int:
		return true
	}
	return false
}
