package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"typesage/internal/analysis"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))
)

func formatSummary(path string, result *analysis.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("typesage") + " " + dimStyle.Render(path) + "\n\n")

	if !result.Success {
		b.WriteString(errorStyle.Render("✗ "+result.Error) + "\n")
		return b.String()
	}

	table := result.Table
	b.WriteString(fmt.Sprintf("  functions: %d  classes: %d  variables: %d  imports: %d\n\n",
		len(table.Functions), len(table.Classes), len(table.Variables), len(table.Imports)))

	if len(table.Variables) > 0 {
		b.WriteString(dimStyle.Render("  inferred types") + "\n")
		names := make([]string, 0, len(table.Variables))
		for name := range table.Variables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v := table.Variables[name]
			typ := v.Annotation
			if typ == "" {
				typ = string(v.Inferred)
			}
			b.WriteString(fmt.Sprintf("    %s: %s\n", name, typ))
		}
		b.WriteString("\n")
	}

	if len(result.Undeclared) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  ⚠ %d undeclared variable(s)", len(result.Undeclared))) + "\n")
		for _, u := range result.Undeclared {
			where := ""
			if u.Function != "" {
				where = " in " + u.Function
			}
			b.WriteString(fmt.Sprintf("    %s (line %d)%s\n", u.Name, u.Line, where))
		}
	} else {
		b.WriteString(successStyle.Render("  ✓ no undeclared variables") + "\n")
	}

	return b.String()
}

func formatAnnotated(result *analysis.AnnotateResult) string {
	var b strings.Builder
	b.WriteString("\n" + titleStyle.Render(fmt.Sprintf("annotated source (%d annotations)", result.Count)) + "\n")
	b.WriteString(result.AnnotatedCode)
	if !strings.HasSuffix(result.AnnotatedCode, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
