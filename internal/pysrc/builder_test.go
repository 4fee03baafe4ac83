package pysrc

import (
	"errors"
	"testing"
)

func mustBuild(t *testing.T, source string) *Node {
	t.Helper()
	tree, err := Build([]byte(source))
	if err != nil {
		t.Fatalf("Build(%q) failed: %v", source, err)
	}
	return tree
}

func firstChild(t *testing.T, tree *Node, kind Kind) *Node {
	t.Helper()
	var found *Node
	Walk(tree, func(n *Node) {
		if found == nil && n.Kind == kind {
			found = n
		}
	})
	if found == nil {
		t.Fatalf("no %s node in tree", kind)
	}
	return found
}

func TestBuildModuleRoot(t *testing.T) {
	tree := mustBuild(t, "x = 1\ny = 2\n")
	if tree.Kind != KindModule {
		t.Fatalf("root kind = %s, want %s", tree.Kind, KindModule)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("module has %d children, want 2", len(tree.Children))
	}
}

func TestBuildSyntaxError(t *testing.T) {
	_, err := Build([]byte("def broken(:\n"))
	if err == nil {
		t.Fatal("expected syntax error, got nil")
	}
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("error type = %T, want *SyntaxError", err)
	}
	if synErr.Line < 1 {
		t.Errorf("syntax error line = %d, want >= 1", synErr.Line)
	}
}

func TestBuildAssignTargetsAndContext(t *testing.T) {
	tree := mustBuild(t, "count = 42\n")
	assign := firstChild(t, tree, KindAssign)

	if len(assign.Targets) != 1 {
		t.Fatalf("assign has %d targets, want 1", len(assign.Targets))
	}
	target := assign.Targets[0]
	if target.Name != "count" || target.Ctx != CtxStore {
		t.Errorf("target = %q ctx %v, want count store", target.Name, target.Ctx)
	}
	if assign.Value == nil || assign.Value.Kind != KindConstant || assign.Value.Lit != LitInt {
		t.Errorf("value should be an int constant, got %+v", assign.Value)
	}
	if assign.Line != 1 {
		t.Errorf("assign line = %d, want 1", assign.Line)
	}
}

func TestBuildAnnotatedAssignment(t *testing.T) {
	tree := mustBuild(t, "total: int = 0\n")
	ann := firstChild(t, tree, KindAnnAssign)
	if ann.Target == nil || ann.Target.Name != "total" {
		t.Fatalf("ann target = %+v, want total", ann.Target)
	}
	if ann.Annotation != "int" {
		t.Errorf("annotation = %q, want int", ann.Annotation)
	}
}

func TestBuildConstants(t *testing.T) {
	cases := []struct {
		source string
		lit    LitKind
	}{
		{"x = 1", LitInt},
		{"x = 1.5", LitFloat},
		{"x = 'hi'", LitStr},
		{"x = b'hi'", LitBytes},
		{"x = True", LitBool},
		{"x = None", LitNone},
	}
	for _, tc := range cases {
		tree := mustBuild(t, tc.source)
		c := firstChild(t, tree, KindConstant)
		if c.Lit != tc.lit {
			t.Errorf("%q: lit = %v, want %v", tc.source, c.Lit, tc.lit)
		}
	}
}

func TestBuildFunctionDef(t *testing.T) {
	source := "def greet(name, times=2):\n    return name * times\n"
	tree := mustBuild(t, source)
	fn := firstChild(t, tree, KindFunctionDef)

	if fn.Name != "greet" {
		t.Fatalf("function name = %q, want greet", fn.Name)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("function has %d params, want 2", len(fn.Params))
	}
	if fn.Params[0].Name != "name" || fn.Params[1].Name != "times" {
		t.Errorf("param names = %q, %q", fn.Params[0].Name, fn.Params[1].Name)
	}
	if fn.Params[1].Default == nil {
		t.Error("second param should carry its default expression")
	}

	ret := firstChild(t, tree, KindReturn)
	if ret.Value == nil || ret.Value.Kind != KindBinaryOp {
		t.Errorf("return value = %+v, want binary op", ret.Value)
	}
}

func TestBuildFunctionAnnotations(t *testing.T) {
	source := "def add(a: int, b: int) -> int:\n    return a + b\n"
	tree := mustBuild(t, source)
	fn := firstChild(t, tree, KindFunctionDef)

	if fn.Returns != "int" {
		t.Errorf("returns = %q, want int", fn.Returns)
	}
	for _, p := range fn.Params {
		if p.Annotation != "int" {
			t.Errorf("param %s annotation = %q, want int", p.Name, p.Annotation)
		}
	}
}

func TestBuildClassDef(t *testing.T) {
	source := "class Dog(Animal):\n    def bark(self):\n        pass\n"
	tree := mustBuild(t, source)
	cls := firstChild(t, tree, KindClassDef)

	if cls.Name != "Dog" {
		t.Fatalf("class name = %q, want Dog", cls.Name)
	}
	if len(cls.Bases) != 1 || cls.Bases[0] != "Animal" {
		t.Errorf("bases = %v, want [Animal]", cls.Bases)
	}

	// Each base is also present as a loaded name child, so reference
	// walks over the tree see it.
	var base *Node
	for _, child := range cls.Children {
		if child.Kind == KindName && child.Name == "Animal" {
			base = child
		}
	}
	if base == nil {
		t.Fatal("no Name child for base Animal")
	}
	if base.Ctx != CtxLoad {
		t.Errorf("base ctx = %v, want load", base.Ctx)
	}
}

func TestBuildDecoratedFunction(t *testing.T) {
	source := "@staticmethod\ndef helper():\n    pass\n"
	tree := mustBuild(t, source)
	fn := firstChild(t, tree, KindFunctionDef)

	if len(fn.Decorators) != 1 {
		t.Fatalf("decorators = %d, want 1", len(fn.Decorators))
	}

	var dec *Node
	for _, child := range fn.Children {
		if child.Kind == KindName && child.Name == "staticmethod" {
			dec = child
		}
	}
	if dec == nil {
		t.Fatal("no Name child for decorator staticmethod")
	}
	if dec.Ctx != CtxLoad {
		t.Errorf("decorator ctx = %v, want load", dec.Ctx)
	}
}

func TestBuildImports(t *testing.T) {
	tree := mustBuild(t, "import os\nfrom json import dumps as enc\n")

	imp := firstChild(t, tree, KindImport)
	if len(imp.Imports) != 1 || imp.Imports[0].Name != "os" {
		t.Fatalf("import aliases = %+v, want os", imp.Imports)
	}

	from := firstChild(t, tree, KindImportFrom)
	if from.Module != "json" {
		t.Errorf("from module = %q, want json", from.Module)
	}
	if len(from.Imports) != 1 || from.Imports[0].Name != "dumps" || from.Imports[0].Alias != "enc" {
		t.Errorf("from aliases = %+v, want dumps as enc", from.Imports)
	}
}

func TestBuildContainers(t *testing.T) {
	tree := mustBuild(t, "xs = [1, 2]\nd = {'a': 1}\nt = (1, 2)\ns = {1, 2}\n")

	list := firstChild(t, tree, KindList)
	if len(list.Elts) != 2 {
		t.Errorf("list elements = %d, want 2", len(list.Elts))
	}
	dict := firstChild(t, tree, KindDict)
	if len(dict.Keys) != 1 || len(dict.Vals) != 1 {
		t.Errorf("dict keys/vals = %d/%d, want 1/1", len(dict.Keys), len(dict.Vals))
	}
	tup := firstChild(t, tree, KindTuple)
	if len(tup.Elts) != 2 {
		t.Errorf("tuple elements = %d, want 2", len(tup.Elts))
	}
	set := firstChild(t, tree, KindSet)
	if len(set.Elts) != 2 {
		t.Errorf("set elements = %d, want 2", len(set.Elts))
	}
}

func TestBuildCall(t *testing.T) {
	tree := mustBuild(t, "result = process(data, mode='fast')\n")
	call := firstChild(t, tree, KindCall)

	if call.Func == nil || call.Func.Name != "process" {
		t.Fatalf("call func = %+v, want process", call.Func)
	}
	if len(call.Args) != 2 {
		t.Fatalf("call args = %d, want 2", len(call.Args))
	}
	// Keyword arguments are unwrapped to their value expression.
	if call.Args[1].Kind != KindConstant || call.Args[1].Lit != LitStr {
		t.Errorf("keyword arg = %+v, want string constant", call.Args[1])
	}
}

func TestBuildMethodCallAttribute(t *testing.T) {
	tree := mustBuild(t, "out = text.upper()\n")
	call := firstChild(t, tree, KindCall)
	if call.Func == nil || call.Func.Kind != KindAttribute {
		t.Fatalf("call func kind = %+v, want attribute", call.Func)
	}
	if call.Func.Name != "upper" {
		t.Errorf("attribute name = %q, want upper", call.Func.Name)
	}
	if call.Func.Value == nil || call.Func.Value.Name != "text" {
		t.Errorf("attribute object = %+v, want text", call.Func.Value)
	}
}

func TestBuildOperators(t *testing.T) {
	tree := mustBuild(t, "a = 1 + 2\nb = not a\nc = a < 3\nd = a and c\n")

	bin := firstChild(t, tree, KindBinaryOp)
	if bin.Op != "+" {
		t.Errorf("binary op = %q, want +", bin.Op)
	}
	firstChild(t, tree, KindUnaryOp)
	firstChild(t, tree, KindCompare)
	firstChild(t, tree, KindBoolOp)
}

func TestBuildAugmentedAssignment(t *testing.T) {
	tree := mustBuild(t, "x = 0\nx += 5\n")
	aug := firstChild(t, tree, KindAugAssign)
	if aug.Op != "+" {
		t.Errorf("aug op = %q, want +", aug.Op)
	}
}

func TestBuildComprehensions(t *testing.T) {
	tree := mustBuild(t, "xs = [i * 2 for i in range(10) if i > 2]\n")
	comp := firstChild(t, tree, KindListComp)

	if comp.Elt == nil || comp.Elt.Kind != KindBinaryOp {
		t.Errorf("comp element = %+v, want binary op", comp.Elt)
	}
	if comp.Target == nil || comp.Target.Ctx != CtxStore {
		t.Errorf("comp target = %+v, want store context", comp.Target)
	}
}

func TestBuildGeneratorAndDictComp(t *testing.T) {
	tree := mustBuild(t, "g = (x for x in items)\nd = {k: v for k, v in pairs}\n")
	firstChild(t, tree, KindGenerator)
	comp := firstChild(t, tree, KindDictComp)
	if comp.Key == nil || comp.Val == nil {
		t.Errorf("dict comp key/val = %+v/%+v, want both set", comp.Key, comp.Val)
	}
}

func TestBuildConditionalExpression(t *testing.T) {
	tree := mustBuild(t, "x = 1 if flag else 2.0\n")
	cond := firstChild(t, tree, KindConditional)
	if cond.Test == nil || cond.Left == nil || cond.Right == nil {
		t.Fatalf("conditional incomplete: %+v", cond)
	}
	if cond.Left.Lit != LitInt || cond.Right.Lit != LitFloat {
		t.Errorf("branches = %v/%v, want int/float", cond.Left.Lit, cond.Right.Lit)
	}
}

func TestBuildLambda(t *testing.T) {
	tree := mustBuild(t, "f = lambda a, b: a + b\n")
	lam := firstChild(t, tree, KindLambda)
	if len(lam.Params) != 2 {
		t.Errorf("lambda params = %d, want 2", len(lam.Params))
	}
	if lam.Value == nil || lam.Value.Kind != KindBinaryOp {
		t.Errorf("lambda body = %+v, want binary op", lam.Value)
	}
}

func TestBuildSubscript(t *testing.T) {
	tree := mustBuild(t, "item = xs[0]\n")
	sub := firstChild(t, tree, KindSubscript)
	if sub.Value == nil || sub.Value.Name != "xs" {
		t.Errorf("subscript value = %+v, want xs", sub.Value)
	}
}

func TestBuildForLoopTargetStored(t *testing.T) {
	tree := mustBuild(t, "for item in items:\n    print(item)\n")
	loop := firstChild(t, tree, KindFor)
	if loop.Target == nil || loop.Target.Ctx != CtxStore {
		t.Errorf("for target = %+v, want store context", loop.Target)
	}
}

func TestBuildFStringInterpolations(t *testing.T) {
	tree := mustBuild(t, "msg = f'hello {name}'\n")
	c := firstChild(t, tree, KindConstant)
	if c.Lit != LitStr {
		t.Fatalf("f-string lit = %v, want str", c.Lit)
	}
	// Interpolated expressions stay reachable for undeclared detection.
	var sawName bool
	Walk(c, func(n *Node) {
		if n.Kind == KindName && n.Name == "name" {
			sawName = true
		}
	})
	if !sawName {
		t.Error("interpolated name not reachable from f-string node")
	}
}

func TestBuildNodeIDsUnique(t *testing.T) {
	tree := mustBuild(t, "a = 1\nb = a + 2\n")
	seen := map[int]bool{}
	Walk(tree, func(n *Node) {
		if seen[n.ID] {
			t.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	})
}
