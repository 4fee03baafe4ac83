package annotate

import (
	"strings"
	"testing"

	"github.com/gobwas/glob"

	"typesage/internal/pysrc"
	"typesage/internal/symbols"
)

func tableFor(t *testing.T, source string) *symbols.Table {
	t.Helper()
	tree, err := pysrc.Build([]byte(source))
	if err != nil {
		t.Fatalf("Build(%q) failed: %v", source, err)
	}
	table := symbols.Build(tree)
	table.ResolveDeferred()
	return table
}

func TestCollectVariablePrecedence(t *testing.T) {
	table := tableFor(t, `
declared: float = read()
inferred = 42
unresolved = mystery()
`)
	a := New()
	info := a.Collect(table, &Suggestions{
		Inferences: map[string]string{"unresolved": "str", "inferred": "bytes"},
	})

	if v := info.Variables["declared"]; v.Type != "float" || v.Source != "annotation" {
		t.Errorf("declared = %+v, want float/annotation", v)
	}
	// The engine's answer beats the external suggestion.
	if v := info.Variables["inferred"]; v.Type != "int" || v.Source != "inferred" {
		t.Errorf("inferred = %+v, want int/inferred", v)
	}
	// A deferred placeholder yields to the suggestion.
	if v := info.Variables["unresolved"]; v.Type != "str" {
		t.Errorf("unresolved = %+v, want str", v)
	}
}

func TestCollectDeferredWithoutSuggestionBecomesAny(t *testing.T) {
	table := tableFor(t, "x = mystery()\n")
	info := New().Collect(table, nil)
	if v := info.Variables["x"]; v.Type != "Any" {
		t.Errorf("x = %+v, want Any", v)
	}
}

func TestCollectFunctionTypes(t *testing.T) {
	table := tableFor(t, `
def process(filename, data, blob):
    return len(data)
`)
	info := New().Collect(table, &Suggestions{
		Functions: map[string]FunctionSuggestion{
			"process": {Params: map[string]string{"blob": "bytes"}},
		},
	})

	fn := info.Functions["process"]
	// Name-convention hints apply before external suggestions.
	if fn.Params["filename"] != "str" {
		t.Errorf("filename = %q, want str", fn.Params["filename"])
	}
	if fn.Params["data"] != "list" {
		t.Errorf("data = %q, want list", fn.Params["data"])
	}
	if fn.Params["blob"] != "bytes" {
		t.Errorf("blob = %q, want bytes (suggested)", fn.Params["blob"])
	}
	if fn.Return != "int" {
		t.Errorf("return = %q, want int", fn.Return)
	}
}

func TestCollectFunctionWithoutReturnsGetsNone(t *testing.T) {
	table := tableFor(t, `
def log_it(message):
    print(message)
`)
	info := New().Collect(table, nil)
	if r := info.Functions["log_it"].Return; r != "None" {
		t.Errorf("return = %q, want None", r)
	}
}

func TestCollectSkipGlobs(t *testing.T) {
	table := tableFor(t, "_private = 1\npublic = 2\n")
	a := New(glob.MustCompile("_*"))
	info := a.Collect(table, nil)

	if _, ok := info.Variables["_private"]; ok {
		t.Error("_private should be skipped")
	}
	if _, ok := info.Variables["public"]; !ok {
		t.Error("public should be collected")
	}
}

func TestApplyVariableAnnotation(t *testing.T) {
	source := "count = 1\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	got := a.Apply(source, info, table)
	want := "count: int = 1\n"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApplyFunctionAnnotation(t *testing.T) {
	source := "def greet(name):\n    return 'hi ' + name\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	got := a.Apply(source, info, table)
	if !strings.Contains(got, "def greet(name: str) -> str:") {
		t.Errorf("Apply = %q, want annotated signature", got)
	}
}

func TestApplyFunctionWithDefault(t *testing.T) {
	source := "def repeat(text, times=2):\n    return text * times\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	got := a.Apply(source, info, table)
	// "times" pluralizes to list under the naming heuristic.
	if !strings.Contains(got, "times: list = 2") {
		t.Errorf("Apply = %q, want annotated default parameter", got)
	}
	if !strings.Contains(got, "text: str") {
		t.Errorf("Apply = %q, want text: str", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	source := "total = 1 + 2\ndef f(count):\n    return count\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	once := a.Apply(source, info, table)
	twice := a.Apply(once, info, table)
	if once != twice {
		t.Errorf("Apply is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestApplyPreservesAnnotatedLines(t *testing.T) {
	source := "x: float = 1\ndef f(a: int) -> int:\n    return a\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	if got := a.Apply(source, info, table); got != source {
		t.Errorf("annotated source changed:\n%q", got)
	}
}

func TestApplyVariableReversible(t *testing.T) {
	source := "flag = True\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	got := a.Apply(source, info, table)
	// Stripping the inserted ": <type>" segment restores the original.
	restored := strings.Replace(got, ": bool", "", 1)
	if restored != source {
		t.Errorf("rewrite not reversible: %q -> %q", got, restored)
	}
}

func TestApplyLeavesUnknownLinesAlone(t *testing.T) {
	// Multi-line signature: the regex does not match, so nothing changes.
	source := "def f(\n    a,\n    b,\n):\n    return a\n"
	table := tableFor(t, source)
	a := New()
	info := a.Collect(table, nil)

	got := a.Apply(source, info, table)
	if strings.Contains(got, "->") {
		t.Errorf("multi-line signature should stay untouched, got %q", got)
	}
}

func TestAnnotateVariableLineSkipsSubstringNames(t *testing.T) {
	// "count" must not rewrite "recount = 1".
	line := annotateVariableLine("recount = 1", "count", "int")
	if line != "recount = 1" {
		t.Errorf("substring name rewrote line: %q", line)
	}
}
