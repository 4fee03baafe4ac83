// Package viz converts analysis results into the node/edge payloads the
// frontend renders. It owns presentation only; nothing here feeds back
// into analysis.
package viz

import (
	"fmt"
	"sort"

	"typesage/internal/pysrc"
	"typesage/internal/symbols"
)

// maxDepth guards the AST conversion against pathologically deep trees.
const maxDepth = 20

type ASTNode struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Line     int    `json:"line,omitempty"`
	Col      int    `json:"col,omitempty"`
	Level    int    `json:"level"`
	ParentID string `json:"parent_id,omitempty"`
}

type Edge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

type ASTGraph struct {
	Nodes []ASTNode `json:"nodes"`
	Edges []Edge    `json:"edges"`
}

// BuildAST flattens the tree into labeled nodes and parent-child edges.
// IDs come from a conversion counter so they are unique per payload.
func BuildAST(tree *pysrc.Node) ASTGraph {
	b := &astBuilder{}
	b.convert(tree, "", 0)
	return ASTGraph{Nodes: b.nodes, Edges: b.edges}
}

type astBuilder struct {
	counter int
	nodes   []ASTNode
	edges   []Edge
}

func (b *astBuilder) convert(n *pysrc.Node, parentID string, depth int) {
	if n == nil || depth > maxDepth {
		return
	}

	b.counter++
	id := fmt.Sprintf("node_%d", b.counter)

	b.nodes = append(b.nodes, ASTNode{
		ID:       id,
		Label:    label(n),
		Type:     n.Kind.String(),
		Line:     n.Line,
		Col:      n.Col,
		Level:    depth,
		ParentID: parentID,
	})
	if parentID != "" {
		b.edges = append(b.edges, Edge{
			ID:   fmt.Sprintf("edge_%s_to_%s", parentID, id),
			From: parentID,
			To:   id,
		})
	}

	for _, child := range n.Children {
		b.convert(child, id, depth+1)
	}
}

func label(n *pysrc.Node) string {
	switch n.Kind {
	case pysrc.KindName:
		return "Name: " + n.Name
	case pysrc.KindConstant:
		text := n.Text
		if len(text) > 15 {
			text = text[:12] + "..."
		}
		return "Const: " + text
	case pysrc.KindFunctionDef:
		return "Func: " + n.Name
	case pysrc.KindClassDef:
		return "Class: " + n.Name
	case pysrc.KindBinaryOp:
		return "BinOp: " + n.Op
	case pysrc.KindAttribute:
		return "Attr: " + n.Name
	case pysrc.KindCall:
		if n.Func != nil && n.Func.Kind == pysrc.KindName {
			return "Call: " + n.Func.Name
		}
		return "Call"
	case pysrc.KindAssign:
		if len(n.Targets) > 0 && n.Targets[0].Kind == pysrc.KindName {
			return "Assign: " + n.Targets[0].Name
		}
		return "Assign"
	default:
		return n.Kind.String()
	}
}

type Scope struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

type Symbol struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Scope   string `json:"scope"`
	Line    int    `json:"line,omitempty"`
	Details any    `json:"details,omitempty"`
}

type SymbolGraph struct {
	Scopes  []Scope  `json:"scopes"`
	Symbols []Symbol `json:"symbols"`
}

// BuildSymbols renders the symbol table for display. Output order is
// sorted by name so payloads are stable across runs.
func BuildSymbols(table *symbols.Table) SymbolGraph {
	var g SymbolGraph

	if len(table.Global) > 0 {
		names := sortedKeys(table.Global)
		g.Scopes = append(g.Scopes, Scope{
			ID:      "global",
			Name:    "global scope",
			Type:    "global",
			Symbols: names,
		})
	}

	for _, name := range sortedKeys(table.Functions) {
		fn := table.Functions[name]
		g.Symbols = append(g.Symbols, Symbol{
			ID:      "func_" + name,
			Name:    name,
			Type:    "function",
			Scope:   "global",
			Line:    fn.Line,
			Details: fn,
		})
	}
	for _, name := range sortedKeys(table.Classes) {
		cls := table.Classes[name]
		g.Symbols = append(g.Symbols, Symbol{
			ID:      "class_" + name,
			Name:    name,
			Type:    "class",
			Scope:   "global",
			Line:    cls.Line,
			Details: cls,
		})
	}
	for _, name := range sortedKeys(table.Variables) {
		v := table.Variables[name]
		g.Symbols = append(g.Symbols, Symbol{
			ID:      "var_" + name,
			Name:    name,
			Type:    "variable",
			Scope:   fmt.Sprintf("scope_%d", v.Depth),
			Line:    v.Line,
			Details: v,
		})
	}
	for _, name := range sortedKeys(table.Imports) {
		imp := table.Imports[name]
		g.Symbols = append(g.Symbols, Symbol{
			ID:      "import_" + name,
			Name:    name,
			Type:    "import",
			Scope:   "global",
			Line:    imp.Line,
			Details: imp,
		})
	}

	return g
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
