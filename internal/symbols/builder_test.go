package symbols

import (
	"testing"

	"typesage/internal/infer"
	"typesage/internal/pysrc"
)

func buildTable(t *testing.T, source string) *Table {
	t.Helper()
	tree, err := pysrc.Build([]byte(source))
	if err != nil {
		t.Fatalf("Build(%q) failed: %v", source, err)
	}
	table := Build(tree)
	table.ResolveDeferred()
	return table
}

func TestBuildRegistersFunctions(t *testing.T) {
	table := buildTable(t, `
def add(a: int, b: int) -> int:
    return a + b

def shout(text):
    return text.upper()
`)

	add, ok := table.Functions["add"]
	if !ok {
		t.Fatal("add not registered")
	}
	if add.Returns != "int" {
		t.Errorf("add.Returns = %q, want int", add.Returns)
	}
	if len(add.Params) != 2 || add.Params[0] != "a" {
		t.Errorf("add.Params = %v", add.Params)
	}
	if add.ParamAnnotations["a"] != "int" || add.ParamAnnotations["b"] != "int" {
		t.Errorf("add.ParamAnnotations = %v", add.ParamAnnotations)
	}
	if add.Depth != 1 {
		t.Errorf("add.Depth = %d, want 1", add.Depth)
	}

	shout, ok := table.Functions["shout"]
	if !ok {
		t.Fatal("shout not registered")
	}
	if shout.Returns != "" {
		t.Errorf("shout.Returns = %q, want empty", shout.Returns)
	}
	if shout.InferredReturn != infer.Str {
		t.Errorf("shout.InferredReturn = %q, want str", shout.InferredReturn)
	}
}

func TestBuildInfersReturnUnion(t *testing.T) {
	table := buildTable(t, `
def pick(flag):
    if flag:
        return 1
    return 'a'
`)
	fn := table.Functions["pick"]
	if fn.InferredReturn != "int | str" {
		t.Errorf("InferredReturn = %q, want int | str", fn.InferredReturn)
	}
}

func TestBuildRegistersClasses(t *testing.T) {
	table := buildTable(t, `
class Dog(Animal):
    def bark(self):
        pass

    def fetch(self):
        pass
`)
	cls, ok := table.Classes["Dog"]
	if !ok {
		t.Fatal("Dog not registered")
	}
	if len(cls.Bases) != 1 || cls.Bases[0] != "Animal" {
		t.Errorf("Bases = %v", cls.Bases)
	}
	if len(cls.Methods) != 2 {
		t.Errorf("Methods = %v, want two", cls.Methods)
	}
	// Methods live in the class scope, not the module scope.
	if table.Global["bark"] != "" {
		t.Errorf("bark leaked into global scope")
	}
}

func TestBuildVariablesLastAssignmentWins(t *testing.T) {
	table := buildTable(t, "x = 1\nx = 'now a string'\n")
	v := table.Variables["x"]
	if v == nil {
		t.Fatal("x not registered")
	}
	if v.Inferred != infer.Str {
		t.Errorf("x inferred = %q, want str (last assignment)", v.Inferred)
	}
	if v.Line != 2 {
		t.Errorf("x line = %d, want 2", v.Line)
	}
}

func TestBuildAnnotationBeatsInference(t *testing.T) {
	table := buildTable(t, "scores: dict[str, int] = {}\n")
	v := table.Variables["scores"]
	if v == nil {
		t.Fatal("scores not registered")
	}
	if v.Annotation != "dict[str, int]" {
		t.Errorf("annotation = %q", v.Annotation)
	}
	if v.Inferred != "" {
		t.Errorf("inferred = %q, want empty when annotated", v.Inferred)
	}
}

func TestBuildVariableDepth(t *testing.T) {
	table := buildTable(t, `
top = 1
def outer():
    mid = 2
    def inner():
        deep = 3
`)
	if d := table.Variables["top"].Depth; d != 0 {
		t.Errorf("top depth = %d, want 0", d)
	}
	if d := table.Variables["mid"].Depth; d != 1 {
		t.Errorf("mid depth = %d, want 1", d)
	}
	if d := table.Variables["deep"].Depth; d != 2 {
		t.Errorf("deep depth = %d, want 2", d)
	}
}

func TestBuildImports(t *testing.T) {
	table := buildTable(t, "import os.path\nimport numpy as np\nfrom json import dumps as enc\n")

	if imp := table.Imports["os.path"]; imp == nil || imp.Kind != ImportWhole {
		t.Errorf("os.path import = %+v", imp)
	}
	np := table.Imports["np"]
	if np == nil || np.Module != "numpy" || np.Alias != "np" {
		t.Errorf("np import = %+v", np)
	}
	enc := table.Imports["enc"]
	if enc == nil || enc.Kind != ImportSelective || enc.Module != "json" || enc.Original != "dumps" {
		t.Errorf("enc import = %+v", enc)
	}
	if table.Global["np"] != "import" {
		t.Errorf("np not in global scope: %v", table.Global)
	}
}

func TestBuildGlobalScopeKinds(t *testing.T) {
	table := buildTable(t, `
import os
def f():
    pass
class C:
    pass
x = 1
`)
	want := map[string]string{"os": "import", "f": "function", "C": "class", "x": "variable"}
	for name, kind := range want {
		if table.Global[name] != kind {
			t.Errorf("Global[%q] = %q, want %q", name, table.Global[name], kind)
		}
	}
}

func TestResolveDeferredClassInstantiation(t *testing.T) {
	table := buildTable(t, `
greeter = Greeter("hi")

class Greeter:
    def greet(self):
        pass
`)
	v := table.Variables["greeter"]
	if v.Inferred != "Greeter" {
		t.Errorf("greeter inferred = %q, want Greeter (forward reference resolved)", v.Inferred)
	}
}

func TestResolveDeferredMultipleInstances(t *testing.T) {
	table := buildTable(t, `
class Person:
    pass

class Car:
    pass

alice = Person()
bob = Person()
ride = Car()
`)
	if v := table.Variables["alice"].Inferred; v != "Person" {
		t.Errorf("alice = %q, want Person", v)
	}
	if v := table.Variables["bob"].Inferred; v != "Person" {
		t.Errorf("bob = %q, want Person", v)
	}
	if v := table.Variables["ride"].Inferred; v != "Car" {
		t.Errorf("ride = %q, want Car", v)
	}
}

func TestResolveDeferredLeavesUnknownCalls(t *testing.T) {
	table := buildTable(t, "x = mystery()\n")
	v := table.Variables["x"]
	if !v.Inferred.IsDeferred() {
		t.Errorf("x inferred = %q, want deferred placeholder", v.Inferred)
	}
}

func TestFunctionReturnPropagation(t *testing.T) {
	table := buildTable(t, `
def make_scores():
    return {'a': 1}

scores = make_scores()
`)
	v := table.Variables["scores"]
	if v.Inferred != "dict[str, int]" {
		t.Errorf("scores inferred = %q, want dict[str, int]", v.Inferred)
	}
}
