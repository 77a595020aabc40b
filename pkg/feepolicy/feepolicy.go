// Package feepolicy evaluates the operator's fee schedule. The schedule is a
// CEL expression over protocol state; operators tune the action fee without
// code changes, and the admin tool feeds the result into the engine.
package feepolicy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rain-protocol/rain/core/pkg/ledgererr"
)

// DefaultExpression keeps the configured base fee unchanged.
const DefaultExpression = "base_fee"

// Evaluator is a compiled fee schedule. Safe for concurrent use.
type Evaluator struct {
	expr    string
	program cel.Program
}

// New compiles expr. The expression sees base_fee and action_count as
// integers and must produce an integer.
func New(expr string) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("base_fee", cel.IntType),
		cel.Variable("action_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("feepolicy: env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("feepolicy: compile %q: %w", expr, iss.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("feepolicy: program %q: %w", expr, err)
	}
	return &Evaluator{expr: expr, program: program}, nil
}

// Fee evaluates the schedule. Evaluation failures and non-positive results
// are errors; the caller keeps the previous fee rather than guessing.
func (e *Evaluator) Fee(baseFee, actionCount int64) (int64, error) {
	out, _, err := e.program.Eval(map[string]any{
		"base_fee":     baseFee,
		"action_count": actionCount,
	})
	if err != nil {
		return 0, fmt.Errorf("feepolicy: eval %q: %w", e.expr, err)
	}
	fee, ok := out.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("feepolicy: %q produced %T, want int", e.expr, out.Value())
	}
	if fee <= 0 {
		return 0, fmt.Errorf("feepolicy: %q produced %d: %w", e.expr, fee, ledgererr.ErrInvalidAmount)
	}
	return fee, nil
}
