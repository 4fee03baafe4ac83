package symbols

import "typesage/internal/pysrc"

// Undeclared is one name referenced in a read context with no discoverable
// declaration. These are soft findings, not errors.
type Undeclared struct {
	Name     string `json:"name"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Context  string `json:"context"`
	Function string `json:"function,omitempty"`
}

// Detect flags every loaded name covered by neither the symbol table, the
// builtin identifier set, nor the enclosing function's parameters.
//
// The enclosing function is tracked as a single marker, saved and restored
// around each function body. A reference inside a nested function is
// attributed to the inner function only, and only that function's
// parameters are visible; a full scope chain is a known possible redesign.
// Findings are deduplicated by full record equality, so the same name at a
// different position is reported again.
func Detect(tree *pysrc.Node, table *Table) []Undeclared {
	d := &detector{
		declared: table.DeclaredNames(),
		params:   make(map[string]map[string]bool, len(table.Functions)),
		seen:     make(map[Undeclared]bool),
		// Non-nil even when empty, so callers serialize [] rather than null.
		found: make([]Undeclared, 0),
	}
	for name, fn := range table.Functions {
		set := make(map[string]bool, len(fn.Params))
		for _, p := range fn.Params {
			set[p] = true
		}
		d.params[name] = set
	}
	d.walk(tree)
	return d.found
}

type detector struct {
	declared map[string]bool
	params   map[string]map[string]bool
	current  string // enclosing function name, "" at module level
	seen     map[Undeclared]bool
	found    []Undeclared
}

func (d *detector) walk(n *pysrc.Node) {
	if n == nil {
		return
	}

	if n.Kind == pysrc.KindFunctionDef {
		outer := d.current
		d.current = n.Name
		for _, child := range n.Children {
			d.walk(child)
		}
		d.current = outer
		return
	}

	if n.Kind == pysrc.KindName && n.Ctx == pysrc.CtxLoad {
		d.check(n)
	}
	for _, child := range n.Children {
		d.walk(child)
	}
}

func (d *detector) check(n *pysrc.Node) {
	if d.declared[n.Name] || IsBuiltin(n.Name) {
		return
	}
	if d.current != "" && d.params[d.current][n.Name] {
		return
	}
	ref := Undeclared{
		Name:     n.Name,
		Line:     n.Line,
		Col:      n.Col,
		Context:  "load",
		Function: d.current,
	}
	if d.seen[ref] {
		return
	}
	d.seen[ref] = true
	d.found = append(d.found, ref)
}
