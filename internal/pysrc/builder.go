package pysrc

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// SyntaxError reports input the external parser could not parse. A build
// that fails this way produces no partial tree.
type SyntaxError struct {
	Msg  string
	Line int
	Col  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// Builder converts parser output into the uniform Node representation.
// Node IDs restart at zero on every Build call, so a Builder is not safely
// shared across concurrent builds.
type Builder struct {
	counter int
	source  []byte
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build parses source and returns the module root. The error is a
// *SyntaxError when the parser rejects the input.
func Build(source []byte) (*Node, error) {
	return NewBuilder().Build(source)
}

func (b *Builder) Build(source []byte) (*Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(sitter.NewLanguage(tree_sitter_python.Language())); err != nil {
		return nil, fmt.Errorf("load python grammar: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &SyntaxError{Msg: "parser produced no tree", Line: 1, Col: 1}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			msg := "invalid syntax"
			if bad.IsMissing() {
				msg = fmt.Sprintf("missing %q", bad.Kind())
			}
			return nil, &SyntaxError{
				Msg:  msg,
				Line: int(bad.StartPosition().Row) + 1,
				Col:  int(bad.StartPosition().Column) + 1,
			}
		}
		return nil, &SyntaxError{Msg: "invalid syntax", Line: 1, Col: 1}
	}

	b.counter = 0
	b.source = source
	return b.convert(root, CtxLoad), nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
	}
	return nil
}

func (b *Builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(b.source[n.StartByte():n.EndByte()])
}

func (b *Builder) newNode(kind Kind, ts *sitter.Node) *Node {
	n := &Node{
		ID:   b.counter,
		Kind: kind,
		Line: int(ts.StartPosition().Row) + 1,
		Col:  int(ts.StartPosition().Column) + 1,
	}
	b.counter++
	return n
}

// add converts a tree-sitter child, appends it to parent.Children, and
// returns it so callers can also wire it into a semantic field.
func (b *Builder) add(parent *Node, ts *sitter.Node, ctx NameCtx) *Node {
	if ts == nil {
		return nil
	}
	child := b.convert(ts, ctx)
	if child == nil {
		return nil
	}
	parent.Children = append(parent.Children, child)
	return child
}

func (b *Builder) convert(ts *sitter.Node, ctx NameCtx) *Node {
	switch ts.Kind() {
	case "module":
		n := b.newNode(KindModule, ts)
		b.addNamedChildren(n, ts)
		return n

	case "comment", "string_start", "string_content", "string_end", "escape_sequence", "keyword_separator", "line_continuation":
		return nil

	case "expression_statement", "parenthesized_expression":
		// Transparent wrappers: a single payload collapses into its child.
		if ts.NamedChildCount() == 1 {
			return b.convert(ts.NamedChild(0), ctx)
		}
		n := b.newNode(KindStatement, ts)
		b.addNamedChildren(n, ts)
		return n

	case "identifier":
		n := b.newNode(KindName, ts)
		n.Name = b.text(ts)
		n.Ctx = ctx
		return n

	case "integer":
		return b.constant(ts, LitInt)
	case "float":
		return b.constant(ts, LitFloat)
	case "true", "false":
		// Checked ahead of integers: truth literals are integers too.
		return b.constant(ts, LitBool)
	case "none":
		return b.constant(ts, LitNone)
	case "string", "concatenated_string":
		return b.stringConstant(ts)

	case "list":
		return b.container(ts, KindList)
	case "set":
		return b.container(ts, KindSet)
	case "tuple":
		return b.container(ts, KindTuple)

	case "dictionary":
		n := b.newNode(KindDict, ts)
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			pair := ts.NamedChild(i)
			if pair.Kind() != "pair" {
				continue // dictionary splat
			}
			key := b.add(n, pair.ChildByFieldName("key"), CtxLoad)
			val := b.add(n, pair.ChildByFieldName("value"), CtxLoad)
			if key != nil && val != nil {
				n.Keys = append(n.Keys, key)
				n.Vals = append(n.Vals, val)
			}
		}
		return n

	case "call":
		n := b.newNode(KindCall, ts)
		n.Func = b.add(n, ts.ChildByFieldName("function"), CtxLoad)
		if args := ts.ChildByFieldName("arguments"); args != nil {
			for i := uint(0); i < args.NamedChildCount(); i++ {
				arg := args.NamedChild(i)
				if arg.Kind() == "keyword_argument" {
					arg = arg.ChildByFieldName("value")
				}
				if converted := b.add(n, arg, CtxLoad); converted != nil {
					n.Args = append(n.Args, converted)
				}
			}
		}
		return n

	case "binary_operator":
		n := b.newNode(KindBinaryOp, ts)
		n.Op = b.text(ts.ChildByFieldName("operator"))
		n.Left = b.add(n, ts.ChildByFieldName("left"), CtxLoad)
		n.Right = b.add(n, ts.ChildByFieldName("right"), CtxLoad)
		return n

	case "unary_operator":
		n := b.newNode(KindUnaryOp, ts)
		n.Op = b.text(ts.ChildByFieldName("operator"))
		n.Value = b.add(n, ts.ChildByFieldName("argument"), CtxLoad)
		return n

	case "not_operator":
		n := b.newNode(KindUnaryOp, ts)
		n.Op = "not"
		n.Value = b.add(n, ts.ChildByFieldName("argument"), CtxLoad)
		return n

	case "comparison_operator":
		n := b.newNode(KindCompare, ts)
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			operand := b.add(n, ts.NamedChild(i), CtxLoad)
			if operand == nil {
				continue
			}
			if n.Left == nil {
				n.Left = operand
			} else {
				n.Elts = append(n.Elts, operand)
			}
		}
		return n

	case "boolean_operator":
		n := b.newNode(KindBoolOp, ts)
		n.Op = b.text(ts.ChildByFieldName("operator"))
		n.Left = b.add(n, ts.ChildByFieldName("left"), CtxLoad)
		n.Right = b.add(n, ts.ChildByFieldName("right"), CtxLoad)
		return n

	case "conditional_expression":
		// Named children arrive as: consequence, condition, alternative.
		n := b.newNode(KindConditional, ts)
		if ts.NamedChildCount() >= 3 {
			n.Left = b.add(n, ts.NamedChild(0), CtxLoad)
			n.Test = b.add(n, ts.NamedChild(1), CtxLoad)
			n.Right = b.add(n, ts.NamedChild(2), CtxLoad)
		} else {
			b.addNamedChildren(n, ts)
		}
		return n

	case "lambda":
		n := b.newNode(KindLambda, ts)
		n.Params = b.parseParams(ts.ChildByFieldName("parameters"))
		for _, p := range n.Params {
			if p.Default != nil {
				n.Children = append(n.Children, p.Default)
			}
		}
		n.Value = b.add(n, ts.ChildByFieldName("body"), CtxLoad)
		return n

	case "attribute":
		n := b.newNode(KindAttribute, ts)
		n.Value = b.add(n, ts.ChildByFieldName("object"), CtxLoad)
		n.Name = b.text(ts.ChildByFieldName("attribute"))
		return n

	case "subscript":
		n := b.newNode(KindSubscript, ts)
		n.Value = b.add(n, ts.ChildByFieldName("value"), CtxLoad)
		if index := b.add(n, ts.ChildByFieldName("subscript"), CtxLoad); index != nil {
			n.Elts = append(n.Elts, index)
		}
		return n

	case "list_comprehension":
		return b.comprehension(ts, KindListComp)
	case "set_comprehension":
		return b.comprehension(ts, KindSetComp)
	case "generator_expression":
		return b.comprehension(ts, KindGenerator)

	case "dictionary_comprehension":
		n := b.newNode(KindDictComp, ts)
		if body := ts.ChildByFieldName("body"); body != nil && body.Kind() == "pair" {
			n.Key = b.add(n, body.ChildByFieldName("key"), CtxLoad)
			n.Val = b.add(n, body.ChildByFieldName("value"), CtxLoad)
		}
		b.addClauses(n, ts)
		return n

	case "assignment":
		if typeNode := ts.ChildByFieldName("type"); typeNode != nil {
			n := b.newNode(KindAnnAssign, ts)
			n.Target = b.add(n, ts.ChildByFieldName("left"), CtxStore)
			n.Annotation = b.text(typeNode)
			n.Value = b.add(n, ts.ChildByFieldName("right"), CtxLoad)
			return n
		}
		n := b.newNode(KindAssign, ts)
		if left := b.add(n, ts.ChildByFieldName("left"), CtxStore); left != nil {
			n.Targets = append(n.Targets, left)
		}
		n.Value = b.add(n, ts.ChildByFieldName("right"), CtxLoad)
		return n

	case "augmented_assignment":
		n := b.newNode(KindAugAssign, ts)
		n.Op = strings.TrimSuffix(b.text(ts.ChildByFieldName("operator")), "=")
		n.Target = b.add(n, ts.ChildByFieldName("left"), CtxStore)
		n.Value = b.add(n, ts.ChildByFieldName("right"), CtxLoad)
		return n

	case "pattern_list", "tuple_pattern", "list_pattern":
		// Multi-target unpacking: out of inference scope, but the bound
		// identifiers still need store context.
		n := b.newNode(KindStatement, ts)
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			b.add(n, ts.NamedChild(i), CtxStore)
		}
		return n

	case "decorated_definition":
		def := ts.ChildByFieldName("definition")
		if def == nil {
			return nil
		}
		n := b.convert(def, ctx)
		if n == nil {
			return nil
		}
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			child := ts.NamedChild(i)
			if child.Kind() == "decorator" && child.NamedChildCount() > 0 {
				expr := child.NamedChild(0)
				n.Decorators = append(n.Decorators, b.text(expr))
				// The decorator expression is also a read reference, so it
				// must be visible to name-resolution walks.
				b.add(n, expr, CtxLoad)
			}
		}
		return n

	case "function_definition":
		n := b.newNode(KindFunctionDef, ts)
		n.Name = b.text(ts.ChildByFieldName("name"))
		n.Params = b.parseParams(ts.ChildByFieldName("parameters"))
		n.Returns = b.text(ts.ChildByFieldName("return_type"))
		for _, p := range n.Params {
			if p.Default != nil {
				n.Children = append(n.Children, p.Default)
			}
		}
		if body := ts.ChildByFieldName("body"); body != nil {
			b.addNamedChildren(n, body)
		}
		return n

	case "class_definition":
		n := b.newNode(KindClassDef, ts)
		n.Name = b.text(ts.ChildByFieldName("name"))
		if supers := ts.ChildByFieldName("superclasses"); supers != nil {
			for i := uint(0); i < supers.NamedChildCount(); i++ {
				base := supers.NamedChild(i)
				if base.Kind() == "keyword_argument" {
					continue // metaclass=..., not a base
				}
				n.Bases = append(n.Bases, b.text(base))
				// Base classes are read references too.
				b.add(n, base, CtxLoad)
			}
		}
		if body := ts.ChildByFieldName("body"); body != nil {
			b.addNamedChildren(n, body)
		}
		return n

	case "import_statement":
		n := b.newNode(KindImport, ts)
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			child := ts.NamedChild(i)
			switch child.Kind() {
			case "dotted_name", "identifier":
				n.Imports = append(n.Imports, ImportAlias{Name: b.text(child)})
			case "aliased_import":
				n.Imports = append(n.Imports, ImportAlias{
					Name:  b.text(child.ChildByFieldName("name")),
					Alias: b.text(child.ChildByFieldName("alias")),
				})
			}
		}
		return n

	case "import_from_statement":
		n := b.newNode(KindImportFrom, ts)
		module := ts.ChildByFieldName("module_name")
		n.Module = b.text(module)
		for i := uint(0); i < ts.NamedChildCount(); i++ {
			child := ts.NamedChild(i)
			if module != nil && child.Id() == module.Id() {
				continue
			}
			switch child.Kind() {
			case "dotted_name", "identifier":
				n.Imports = append(n.Imports, ImportAlias{Name: b.text(child)})
			case "aliased_import":
				n.Imports = append(n.Imports, ImportAlias{
					Name:  b.text(child.ChildByFieldName("name")),
					Alias: b.text(child.ChildByFieldName("alias")),
				})
			case "wildcard_import":
				n.Imports = append(n.Imports, ImportAlias{Name: "*"})
			}
		}
		return n

	case "return_statement":
		n := b.newNode(KindReturn, ts)
		if ts.NamedChildCount() > 0 {
			n.Value = b.add(n, ts.NamedChild(0), CtxLoad)
		}
		return n

	case "for_statement":
		n := b.newNode(KindFor, ts)
		n.Target = b.add(n, ts.ChildByFieldName("left"), CtxStore)
		n.Value = b.add(n, ts.ChildByFieldName("right"), CtxLoad)
		if body := ts.ChildByFieldName("body"); body != nil {
			b.addNamedChildren(n, body)
		}
		if alt := ts.ChildByFieldName("alternative"); alt != nil {
			b.add(n, alt, CtxLoad)
		}
		return n

	case "global_statement", "nonlocal_statement":
		// Scope directives bind nothing and read nothing.
		return b.newNode(KindStatement, ts)

	default:
		n := b.newNode(KindStatement, ts)
		b.addNamedChildren(n, ts)
		return n
	}
}

func (b *Builder) addNamedChildren(n *Node, ts *sitter.Node) {
	for i := uint(0); i < ts.NamedChildCount(); i++ {
		b.add(n, ts.NamedChild(i), CtxLoad)
	}
}

func (b *Builder) constant(ts *sitter.Node, lit LitKind) *Node {
	n := b.newNode(KindConstant, ts)
	n.Lit = lit
	n.Text = b.text(ts)
	return n
}

func (b *Builder) stringConstant(ts *sitter.Node) *Node {
	n := b.newNode(KindConstant, ts)
	n.Text = b.text(ts)
	if isBytesLiteral(n.Text) {
		n.Lit = LitBytes
	} else {
		n.Lit = LitStr
	}
	// f-string interpolations still carry name references.
	b.addInterpolations(n, ts)
	return n
}

func (b *Builder) addInterpolations(n *Node, ts *sitter.Node) {
	for i := uint(0); i < ts.NamedChildCount(); i++ {
		child := ts.NamedChild(i)
		switch child.Kind() {
		case "interpolation":
			if child.NamedChildCount() > 0 {
				b.add(n, child.NamedChild(0), CtxLoad)
			}
		case "string":
			b.addInterpolations(n, child)
		}
	}
}

func isBytesLiteral(text string) bool {
	for _, r := range text {
		switch r {
		case 'b', 'B':
			return true
		case '\'', '"':
			return false
		}
	}
	return false
}

func (b *Builder) container(ts *sitter.Node, kind Kind) *Node {
	n := b.newNode(kind, ts)
	for i := uint(0); i < ts.NamedChildCount(); i++ {
		if elt := b.add(n, ts.NamedChild(i), CtxLoad); elt != nil {
			n.Elts = append(n.Elts, elt)
		}
	}
	return n
}

func (b *Builder) comprehension(ts *sitter.Node, kind Kind) *Node {
	n := b.newNode(kind, ts)
	n.Elt = b.add(n, ts.ChildByFieldName("body"), CtxLoad)
	b.addClauses(n, ts)
	return n
}

func (b *Builder) addClauses(n *Node, ts *sitter.Node) {
	body := ts.ChildByFieldName("body")
	for i := uint(0); i < ts.NamedChildCount(); i++ {
		child := ts.NamedChild(i)
		switch child.Kind() {
		case "for_in_clause":
			target := b.add(n, child.ChildByFieldName("left"), CtxStore)
			if n.Target == nil {
				n.Target = target
			}
			b.add(n, child.ChildByFieldName("right"), CtxLoad)
		case "if_clause":
			if child.NamedChildCount() > 0 {
				b.add(n, child.NamedChild(0), CtxLoad)
			}
		default:
			if body != nil && child.Id() == body.Id() {
				continue
			}
		}
	}
}

func (b *Builder) parseParams(params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	var out []Param
	for i := uint(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			out = append(out, Param{Name: b.text(child)})
		case "typed_parameter":
			p := Param{Annotation: b.text(child.ChildByFieldName("type"))}
			for j := uint(0); j < child.NamedChildCount(); j++ {
				if sub := child.NamedChild(j); sub.Kind() == "identifier" {
					p.Name = b.text(sub)
					break
				}
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "default_parameter", "typed_default_parameter":
			p := Param{
				Name:       b.text(child.ChildByFieldName("name")),
				Annotation: b.text(child.ChildByFieldName("type")),
			}
			if value := child.ChildByFieldName("value"); value != nil {
				p.Default = b.convert(value, CtxLoad)
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				if sub := child.NamedChild(j); sub.Kind() == "identifier" {
					out = append(out, Param{Name: b.text(sub)})
					break
				}
			}
		}
	}
	return out
}
