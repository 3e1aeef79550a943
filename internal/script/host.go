// Package script evaluates pre-request and test scripts against a bound
// execution context. A script is a sequence of expression statements, one per
// line, evaluated with expr-lang; the sandbox sees only the bound context
// (request, response, variables) plus the set/assert builtins — no ambient
// filesystem or network access.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"collection-runner/internal/models"
)

// Host is the scripting hook contract the runner consumes. Implementations
// must never abort a run: script failures come back as failed assertions.
type Host interface {
	Run(ctx context.Context, source string, sctx Context) Result
}

// Context is the state bound into a script evaluation. Response is nil during
// pre-request scripts.
type Context struct {
	Request   *models.ResolvedRequest
	Response  *models.ResponseData
	Variables map[string]string
}

// Result carries the variable deltas and assertion outcomes produced by one
// script execution.
type Result struct {
	Variables  map[string]string
	Assertions []models.Assertion
}

// ExprHost evaluates scripts with the expr expression engine. Each non-empty,
// non-comment line is compiled and run independently, so an assertion failure
// on one line does not stop the lines after it.
type ExprHost struct{}

func NewExprHost() *ExprHost {
	return &ExprHost{}
}

// Run evaluates source line by line. A line that fails to compile or evaluate
// is recorded as a single failed assertion named after the script.
func (h *ExprHost) Run(ctx context.Context, source string, sctx Context) Result {
	result := Result{Variables: make(map[string]string)}

	env := h.buildEnv(sctx, &result)

	for lineNo, line := range strings.Split(source, "\n") {
		if ctx.Err() != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		program, err := expr.Compile(line, expr.Env(env), expr.AllowUndefinedVariables())
		if err != nil {
			result.Assertions = append(result.Assertions, models.Assertion{
				Name:   scriptName(source),
				Passed: false,
				Error:  fmt.Sprintf("line %d: %v", lineNo+1, err),
			})
			continue
		}
		if _, err := expr.Run(program, env); err != nil {
			result.Assertions = append(result.Assertions, models.Assertion{
				Name:   scriptName(source),
				Passed: false,
				Error:  fmt.Sprintf("line %d: %v", lineNo+1, err),
			})
		}
	}

	return result
}

// buildEnv assembles the expression environment: the running variable map,
// request/response views, and the set/assert builtins which mutate result
// through closures.
func (h *ExprHost) buildEnv(sctx Context, result *Result) map[string]any {
	vars := make(map[string]any, len(sctx.Variables))
	for k, v := range sctx.Variables {
		vars[k] = v
	}

	env := map[string]any{
		"vars": vars,
		"set": func(name string, value any) bool {
			// Mirrored into vars so later lines of the same script see the
			// delta, not just later items.
			s := fmt.Sprint(value)
			result.Variables[name] = s
			vars[name] = s
			return true
		},
		"assert": func(args ...any) bool {
			name := "assertion"
			if len(args) > 1 {
				name = fmt.Sprint(args[1])
			}
			passed := false
			if len(args) > 0 {
				if b, ok := args[0].(bool); ok {
					passed = b
				}
			}
			a := models.Assertion{Name: name, Passed: passed}
			if !passed {
				a.Error = "assertion failed"
			}
			result.Assertions = append(result.Assertions, a)
			return passed
		},
	}

	if sctx.Request != nil {
		env["request"] = map[string]any{
			"method":  sctx.Request.Method,
			"url":     sctx.Request.URL,
			"headers": sctx.Request.Headers,
			"body":    sctx.Request.Body,
		}
	}
	if sctx.Response != nil {
		env["response"] = map[string]any{
			"status":      sctx.Response.Status,
			"status_text": sctx.Response.StatusText,
			"headers":     sctx.Response.Headers,
			"body":        sctx.Response.Body,
			"duration_ms": sctx.Response.DurationMs,
		}
	}

	return env
}

func scriptName(source string) string {
	first := strings.TrimSpace(strings.SplitN(source, "\n", 2)[0])
	if len(first) > 40 {
		first = first[:40]
	}
	if first == "" {
		return "script"
	}
	return "script: " + first
}
