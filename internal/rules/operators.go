package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

var operatorExpressions = map[domain.Operator]string{
	domain.OpEq:    "lhs == rhs",
	domain.OpNeq:   "lhs != rhs",
	domain.OpGt:    "lhs > rhs",
	domain.OpGte:   "lhs >= rhs",
	domain.OpLt:    "lhs < rhs",
	domain.OpLte:   "lhs <= rhs",
	domain.OpIn:    "lhs in rhs",
	domain.OpNotIn: "!(lhs in rhs)",
}

// comparator holds one compiled CEL program per operator.
type comparator struct {
	programs map[domain.Operator]cel.Program
}

func newComparator() (*comparator, error) {
	env, err := cel.NewEnv(
		cel.Variable("lhs", cel.DynType),
		cel.Variable("rhs", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	programs := make(map[domain.Operator]cel.Program, len(operatorExpressions))
	for op, expr := range operatorExpressions {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile operator %s: %w", op, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("operator %s: expression must return bool, got %s", op, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create program for operator %s: %w", op, err)
		}
		programs[op] = program
	}

	return &comparator{programs: programs}, nil
}

// compare evaluates lhs <op> rhs. Operands that cannot be compared under op
// make the comparison false rather than an error.
func (c *comparator) compare(op domain.Operator, lhs, rhs any) bool {
	program, ok := c.programs[op]
	if !ok {
		return false
	}

	if op.Numeric() {
		l, lok := toNumber(lhs)
		r, rok := toNumber(rhs)
		if !lok || !rok {
			return false
		}
		lhs, rhs = l, r
	} else {
		lhs, rhs = normalize(lhs), normalize(rhs)
	}

	out, _, err := program.Eval(map[string]any{"lhs": lhs, "rhs": rhs})
	if err != nil || types.IsError(out) {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}

// toNumber coerces numbers and numeric strings to float64. Booleans do not
// coerce.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// normalize widens integers to float64 so that equality and membership do
// not depend on how a number was decoded.
func normalize(v any) any {
	switch n := v.(type) {
	case int, int32, int64, float32:
		f, _ := toNumber(n)
		return f
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = float64(e)
		}
		return out
	default:
		return v
	}
}
