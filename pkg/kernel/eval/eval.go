// Package eval evaluates boolean assertions over run variables using
// expr-lang expressions such as `category == "bug" && slack_sent`.
package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// EvalBool compiles and runs a boolean expression against vars. Variables
// absent from vars evaluate to nil. An empty expression is true.
func EvalBool(exprStr string, vars map[string]any) (bool, error) {
	exprStr = strings.TrimSpace(exprStr)
	if exprStr == "" {
		return true, nil
	}
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}
	program, err := expr.Compile(exprStr, expr.Env(env), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", exprStr, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", exprStr, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T: %v)", exprStr, output, output)
	}
	return result, nil
}

// Assertion is the outcome of one checked expression.
type Assertion struct {
	Expr   string `json:"expr"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// CheckAll evaluates every expression against vars. An expression that
// fails to compile or run is recorded as a failed assertion with its error.
func CheckAll(exprs []string, vars map[string]any) []Assertion {
	if len(exprs) == 0 {
		return nil
	}
	out := make([]Assertion, len(exprs))
	for i, e := range exprs {
		ok, err := EvalBool(e, vars)
		out[i] = Assertion{Expr: e, Passed: ok}
		if err != nil {
			out[i].Error = err.Error()
		}
	}
	return out
}

// AllPassed reports whether every assertion passed.
func AllPassed(as []Assertion) bool {
	for _, a := range as {
		if !a.Passed {
			return false
		}
	}
	return true
}
