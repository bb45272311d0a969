// Package script provides a sandboxed evaluator for the user scripts
// carried by Transformer, Condition, HTTP Loop termination conditions, and
// custom backoff configs (spec §4.6, §4.8, §9 Design Notes
// "Script safety").
//
// Evaluation uses github.com/google/cel-go: CEL has no eval, Function
// constructor, require, filesystem, or network primitives by
// construction, so the language itself is the first line of sandboxing.
// SafeScriptChecker adds a denylist + bracket-balance pass as defense in
// depth against the rare CEL extension libraries an operator might
// register (e.g. string extensions exposing a regex function).
package script

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// SafeScriptChecker validates a script before it is ever compiled,
// rejecting textual patterns that indicate an attempt to escape the
// sandbox. Abstracted as an interface per spec §9 so the denylist is
// configurable and swapped independently of the evaluator.
type SafeScriptChecker interface {
	Check(script string) error
}

// DefaultChecker is the denylist + bracket-balance checker named in spec
// §4.8: rejects eval, Function(, require(, setTimeout, and FS/process
// access tokens, and rejects scripts with unbalanced brackets.
type DefaultChecker struct {
	Denylist []string
}

func NewDefaultChecker() *DefaultChecker {
	return &DefaultChecker{
		Denylist: []string{
			"eval", "Function(", "require(", "setTimeout", "setInterval",
			"import(", "process.", "os.", "fs.", "child_process", "__proto__",
		},
	}
}

func (c *DefaultChecker) Check(s string) error {
	for _, bad := range c.Denylist {
		if strings.Contains(s, bad) {
			return fmt.Errorf("script: disallowed token %q", bad)
		}
	}
	if !bracketsBalanced(s) {
		return fmt.Errorf("script: unbalanced brackets")
	}
	return nil
}

func bracketsBalanced(s string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// Engine compiles and evaluates CEL scripts against an activation map,
// shared by Transformer, Condition, loop-termination, and custom-backoff
// evaluation (spec §4.6, §4.8).
type Engine struct {
	checker SafeScriptChecker
}

func NewEngine(checker SafeScriptChecker) *Engine {
	if checker == nil {
		checker = NewDefaultChecker()
	}
	return &Engine{checker: checker}
}

// EvalMap evaluates script with vars bound as CEL activation variables and
// expects a map result (used by Transformer, which must return a new
// event's data map).
func (e *Engine) EvalMap(script string, vars map[string]any) (map[string]any, error) {
	val, err := e.eval(script, vars)
	if err != nil {
		return nil, err
	}
	m, ok := val.Value().(map[string]any)
	if !ok {
		if native, convErr := val.ConvertToNative(reflect.TypeOf(map[string]any{})); convErr == nil {
			if mm, ok := native.(map[string]any); ok {
				return mm, nil
			}
		}
		return nil, fmt.Errorf("script: expected map result, got %T", val.Value())
	}
	return m, nil
}

// EvalBool evaluates script and expects a boolean result (used by
// Condition and loop termination predicates).
func (e *Engine) EvalBool(script string, vars map[string]any) (bool, error) {
	val, err := e.eval(script, vars)
	if err != nil {
		return false, err
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("script: expected bool result, got %T", val.Value())
	}
	return b, nil
}

// EvalNumber evaluates script and expects a numeric result (used by
// Custom loop backoff).
func (e *Engine) EvalNumber(script string, vars map[string]any) (float64, error) {
	val, err := e.eval(script, vars)
	if err != nil {
		return 0, err
	}
	switch v := val.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("script: expected numeric result, got %T", val.Value())
	}
}

func (e *Engine) eval(script string, vars map[string]any) (ref.Val, error) {
	if err := e.checker.Check(script); err != nil {
		return nil, err
	}

	declOpts := make([]cel.EnvOption, 0, len(vars))
	for name := range vars {
		declOpts = append(declOpts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(declOpts...)
	if err != nil {
		return nil, fmt.Errorf("script: build env: %w", err)
	}

	ast, issues := env.Compile(script)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("script: compile: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("script: program: %w", err)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("script: eval: %w", err)
	}
	return out, nil
}
