package symbols

import (
	"typesage/internal/infer"
	"typesage/internal/pysrc"
)

// Build performs the single depth-first pass over the tree, maintaining an
// explicit scope stack, and populates the registries. Right-hand-side
// expressions are handed to the inference engine against the table as
// built so far; forward references come out as deferred placeholders and
// are finalized by Table.ResolveDeferred.
func Build(tree *pysrc.Node) *Table {
	b := &builder{
		table:  NewTable(),
		scopes: []map[string]string{{}},
	}
	b.visit(tree)
	b.table.Global = b.scopes[0]
	return b.table
}

type builder struct {
	table  *Table
	scopes []map[string]string
}

func (b *builder) declare(name, kind string) {
	b.scopes[len(b.scopes)-1][name] = kind
}

func (b *builder) push() { b.scopes = append(b.scopes, map[string]string{}) }
func (b *builder) pop()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *builder) visit(n *pysrc.Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case pysrc.KindFunctionDef:
		b.visitFunction(n)
	case pysrc.KindClassDef:
		b.visitClass(n)
	case pysrc.KindAssign:
		b.visitAssign(n)
	case pysrc.KindAnnAssign:
		b.visitAnnAssign(n)
	case pysrc.KindImport:
		b.visitImport(n)
	case pysrc.KindImportFrom:
		b.visitImportFrom(n)
	default:
		b.visitChildren(n)
	}
}

func (b *builder) visitChildren(n *pysrc.Node) {
	for _, child := range n.Children {
		b.visit(child)
	}
}

func (b *builder) visitFunction(n *pysrc.Node) {
	params := make([]string, 0, len(n.Params))
	var annotations map[string]string
	for _, p := range n.Params {
		params = append(params, p.Name)
		if p.Annotation != "" {
			if annotations == nil {
				annotations = make(map[string]string)
			}
			annotations[p.Name] = p.Annotation
		}
	}

	fn := &FunctionSymbol{
		Name:             n.Name,
		Line:             n.Line,
		Params:           params,
		ParamAnnotations: annotations,
		Returns:          n.Returns,
		InferredReturn:   b.inferReturnType(n),
		Decorators:       n.Decorators,
		Depth:            len(b.scopes),
	}
	b.table.Functions[n.Name] = fn
	b.declare(n.Name, "function")

	b.push()
	for _, p := range n.Params {
		b.declare(p.Name, "parameter")
	}
	b.visitChildren(n)
	b.pop()
}

// inferReturnType collects the inferred type of every return expression
// found anywhere under the function body and unions the distinct results.
func (b *builder) inferReturnType(fn *pysrc.Node) infer.Descriptor {
	var types []infer.Descriptor
	for _, child := range fn.Children {
		pysrc.Walk(child, func(n *pysrc.Node) {
			if n.Kind == pysrc.KindReturn && n.Value != nil {
				types = append(types, infer.Infer(n.Value, b.table))
			}
		})
	}
	if len(types) == 0 {
		return ""
	}
	return infer.Union(types...)
}

func (b *builder) visitClass(n *pysrc.Node) {
	cls := &ClassSymbol{
		Name:       n.Name,
		Line:       n.Line,
		Bases:      n.Bases,
		Decorators: n.Decorators,
	}
	// Direct method names only, one level deep.
	for _, child := range n.Children {
		if child.Kind == pysrc.KindFunctionDef {
			cls.Methods = append(cls.Methods, child.Name)
		}
	}
	b.table.Classes[n.Name] = cls
	b.declare(n.Name, "class")

	b.push()
	b.visitChildren(n)
	b.pop()
}

func (b *builder) visitAssign(n *pysrc.Node) {
	for _, target := range n.Targets {
		if target.Kind != pysrc.KindName {
			continue // multi-target and destructuring are out of scope
		}
		b.table.Variables[target.Name] = &VariableSymbol{
			Name:     target.Name,
			Line:     n.Line,
			Inferred: infer.Infer(n.Value, b.table),
			Depth:    len(b.scopes) - 1,
		}
		b.declare(target.Name, "variable")
	}
	b.visitChildren(n)
}

func (b *builder) visitAnnAssign(n *pysrc.Node) {
	if n.Target == nil || n.Target.Kind != pysrc.KindName {
		b.visitChildren(n)
		return
	}
	// The explicit annotation always wins; the right-hand side is not
	// inferred when one is present.
	b.table.Variables[n.Target.Name] = &VariableSymbol{
		Name:       n.Target.Name,
		Line:       n.Line,
		Annotation: n.Annotation,
		Depth:      len(b.scopes) - 1,
	}
	b.declare(n.Target.Name, "variable")
	b.visitChildren(n)
}

func (b *builder) visitImport(n *pysrc.Node) {
	for _, alias := range n.Imports {
		bound := alias.Name
		if alias.Alias != "" {
			bound = alias.Alias
		}
		b.table.Imports[bound] = &ImportSymbol{
			Name:   bound,
			Module: alias.Name,
			Alias:  alias.Alias,
			Line:   n.Line,
			Kind:   ImportWhole,
		}
		b.declare(bound, "import")
	}
}

func (b *builder) visitImportFrom(n *pysrc.Node) {
	for _, alias := range n.Imports {
		bound := alias.Name
		if alias.Alias != "" {
			bound = alias.Alias
		}
		b.table.Imports[bound] = &ImportSymbol{
			Name:     bound,
			Module:   n.Module,
			Original: alias.Name,
			Alias:    alias.Alias,
			Line:     n.Line,
			Kind:     ImportSelective,
		}
		b.declare(bound, "import")
	}
}
