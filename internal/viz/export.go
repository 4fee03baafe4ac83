package viz

import (
	"fmt"
	"strings"
	"unicode"
)

// RenderDOT emits the AST graph in Graphviz DOT form. Definition nodes
// get their own shading so functions and classes stand out in large
// trees.
func RenderDOT(g ASTGraph) string {
	var b strings.Builder

	b.WriteString("digraph ast {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n")
	b.WriteString("  ranksep=0.6;\n")
	b.WriteString("  nodesep=0.4;\n\n")

	for _, n := range g.Nodes {
		label := escapeDOTLabel(n.Label)
		if n.Line > 0 {
			label = fmt.Sprintf("%s\\nL%d", label, n.Line)
		}
		switch n.Type {
		case "FunctionDef", "ClassDef":
			b.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"lightsteelblue\", style=\"rounded,filled\"];\n", n.ID, label))
		case "Name", "Constant":
			b.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"whitesmoke\", style=\"rounded,filled\", color=\"grey\"];\n", n.ID, label))
		default:
			b.WriteString(fmt.Sprintf("  %q [label=\"%s\"];\n", n.ID, label))
		}
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("  %q -> %q;\n", e.From, e.To))
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderMermaid emits the AST graph as a Mermaid flowchart.
func RenderMermaid(g ASTGraph) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	ids := make(map[string]string, len(g.Nodes))
	var defNodes, leafNodes []string

	for _, n := range g.Nodes {
		id := sanitizeMermaidID(n.ID)
		ids[n.ID] = id
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", id, escapeMermaidLabel(n.Label)))

		switch n.Type {
		case "FunctionDef", "ClassDef":
			defNodes = append(defNodes, id)
		case "Name", "Constant":
			leafNodes = append(leafNodes, id)
		}
	}

	b.WriteString("\n")
	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("  %s --> %s\n", ids[e.From], ids[e.To]))
	}

	if len(defNodes) > 0 {
		b.WriteString("\n  classDef defNode fill:#dbeafe,stroke:#3b82f6,stroke-width:1px;\n")
		b.WriteString("  class " + strings.Join(defNodes, ",") + " defNode;\n")
	}
	if len(leafNodes) > 0 {
		b.WriteString("  classDef leafNode fill:#f5f5f5,stroke:#808080;\n")
		b.WriteString("  class " + strings.Join(leafNodes, ",") + " leafNode;\n")
	}

	return b.String()
}

func sanitizeMermaidID(id string) string {
	if id == "" {
		return "n"
	}
	var b strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "n_" + out
	}
	return out
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func escapeDOTLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}
