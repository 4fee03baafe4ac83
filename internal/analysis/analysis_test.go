package analysis

import (
	"strings"
	"testing"
)

func TestAnalyzeSuccess(t *testing.T) {
	a := New()
	result := a.Analyze("x = 1\ndef f(a):\n    return a + y\n")

	if !result.Success {
		t.Fatalf("Analyze failed: %s", result.Error)
	}
	if result.Table == nil || result.Tree == nil {
		t.Fatal("successful result missing table or tree")
	}
	if _, ok := result.Table.Variables["x"]; !ok {
		t.Error("x not in symbol table")
	}
	if len(result.Undeclared) != 1 || result.Undeclared[0].Name != "y" {
		t.Errorf("undeclared = %+v, want y", result.Undeclared)
	}
}

func TestAnalyzeSyntaxErrorIsTotal(t *testing.T) {
	a := New()
	result := a.Analyze("def broken(:\n")

	if result.Success {
		t.Fatal("expected failure on malformed source")
	}
	if !strings.HasPrefix(result.Error, "syntax error") {
		t.Errorf("error = %q, want syntax error prefix", result.Error)
	}
}

func TestAnalyzeEmptySource(t *testing.T) {
	a := New()
	result := a.Analyze("")
	if !result.Success {
		t.Fatalf("empty source should analyze cleanly: %s", result.Error)
	}
	if len(result.Undeclared) != 0 {
		t.Errorf("undeclared = %+v, want none", result.Undeclared)
	}
}

func TestAnnotateRoundTrip(t *testing.T) {
	a := New()
	result := a.Annotate("count = 1\n", nil)

	if !result.Success {
		t.Fatalf("Annotate failed: %s", result.Error)
	}
	if result.AnnotatedCode != "count: int = 1\n" {
		t.Errorf("annotated = %q", result.AnnotatedCode)
	}
	if result.Count != 1 {
		t.Errorf("count = %d, want 1", result.Count)
	}
	if result.OriginalCode != "count = 1\n" {
		t.Errorf("original = %q", result.OriginalCode)
	}
}

func TestAnnotateSyntaxError(t *testing.T) {
	a := New()
	result := a.Annotate("def broken(:\n", nil)
	if result.Success {
		t.Fatal("expected failure on malformed source")
	}
	if !strings.HasPrefix(result.Error, "syntax error") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestHashStable(t *testing.T) {
	h1 := Hash("x = 1")
	h2 := Hash("x = 1")
	h3 := Hash("x = 2")
	if h1 != h2 {
		t.Error("hash not deterministic")
	}
	if h1 == h3 {
		t.Error("distinct inputs collide")
	}
	if len(h1) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(h1))
	}
}

func TestExtractPatterns(t *testing.T) {
	patterns := ExtractPatterns("x = compute()\nif x:\n    pass\n")

	var sawAssignment, sawCall, sawIf bool
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "assignment_x_"):
			sawAssignment = true
		case p == "function_call_compute":
			sawCall = true
		case p == "control_flow_if":
			sawIf = true
		}
	}
	if !sawAssignment || !sawCall || !sawIf {
		t.Errorf("patterns = %v, want assignment, call, and if markers", patterns)
	}
}
