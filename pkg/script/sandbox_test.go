package script

import "testing"

func TestDefaultChecker_RejectsDenylistedTokens(t *testing.T) {
	c := NewDefaultChecker()
	bad := []string{
		`eval("1+1")`,
		`Function("return 1")()`,
		`require("fs")`,
		`setTimeout(f, 10)`,
		`process.env.SECRET`,
		`os.Getenv("X")`,
		`fs.readFile("/etc/passwd")`,
	}
	for _, s := range bad {
		if err := c.Check(s); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestDefaultChecker_RejectsUnbalancedBrackets(t *testing.T) {
	c := NewDefaultChecker()
	if err := c.Check("data.items[0"); err == nil {
		t.Error("expected unbalanced brackets to be rejected")
	}
}

func TestDefaultChecker_AllowsOrdinaryExpressions(t *testing.T) {
	c := NewDefaultChecker()
	if err := c.Check(`{"total": data.price * data.qty}`); err != nil {
		t.Errorf("unexpected rejection: %v", err)
	}
}

func TestEngine_EvalMap(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.EvalMap(`{"doubled": data.n * 2.0}`, map[string]any{"data": map[string]any{"n": 3.0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["doubled"] != 6.0 {
		t.Errorf("expected doubled=6.0, got %v", m["doubled"])
	}
}

func TestEngine_EvalMap_RejectsNonMapResult(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.EvalMap(`data.n`, map[string]any{"data": map[string]any{"n": 3.0}})
	if err == nil {
		t.Error("expected an error for a non-map result")
	}
}

func TestEngine_EvalBool(t *testing.T) {
	e := NewEngine(nil)
	ok, err := e.EvalBool(`data.status_code >= 200.0 && data.status_code < 300.0`, map[string]any{"data": map[string]any{"status_code": 204.0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected true")
	}
}

func TestEngine_EvalBool_RejectsNonBoolResult(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.EvalBool(`data.n`, map[string]any{"data": map[string]any{"n": 3.0}})
	if err == nil {
		t.Error("expected an error for a non-bool result")
	}
}

func TestEngine_EvalNumber(t *testing.T) {
	e := NewEngine(nil)
	n, err := e.EvalNumber(`current * 2.0`, map[string]any{"current": 5.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 10.0 {
		t.Errorf("expected 10.0, got %v", n)
	}
}

func TestEngine_RejectsDisallowedScriptBeforeCompiling(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.EvalBool(`eval("true")`, map[string]any{})
	if err == nil {
		t.Error("expected the checker to reject the script before compilation")
	}
}
