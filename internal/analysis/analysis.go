// Package analysis is the public entry point of the core: one call builds
// the tree, populates the symbol table, runs the deferred-type refinement
// pass, and detects undeclared names. The whole data model is rebuilt from
// scratch on every call and has no identity across calls, so concurrent
// analyses of different inputs need no locking.
package analysis

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"typesage/internal/annotate"
	"typesage/internal/observability"
	"typesage/internal/pysrc"
	"typesage/internal/symbols"
)

// Result is the total outcome of Analyze: either Success with a populated
// table, or an error string, never both.
type Result struct {
	Success    bool                 `json:"success"`
	Tree       *pysrc.Node          `json:"-"`
	Table      *symbols.Table       `json:"symbol_table,omitempty"`
	Undeclared []symbols.Undeclared `json:"undeclared_variables"`
	Error      string               `json:"error,omitempty"`
}

type AnnotateResult struct {
	Success       bool               `json:"success"`
	OriginalCode  string             `json:"original_code,omitempty"`
	AnnotatedCode string             `json:"annotated_code,omitempty"`
	TypeInfo      *annotate.TypeInfo `json:"type_info,omitempty"`
	Count         int                `json:"annotations_count"`
	Error         string             `json:"error,omitempty"`
}

type Analyzer struct {
	annotator *annotate.Annotator
}

// New returns an Analyzer. Variables matching a skip pattern are excluded
// from annotation synthesis.
func New(skip ...glob.Glob) *Analyzer {
	return &Analyzer{annotator: annotate.New(skip...)}
}

// SetSkipGlobs swaps the annotation skip patterns, e.g. after a config
// reload.
func (a *Analyzer) SetSkipGlobs(skip []glob.Glob) {
	a.annotator.SetSkip(skip)
}

// Analyze never panics past its boundary: unexpected faults during
// traversal are converted into a failed Result.
func (a *Analyzer) Analyze(code string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Success: false, Error: fmt.Sprintf("analysis error: %v", r)}
		}
	}()

	tree, err := a.buildTree(code)
	if err != nil {
		return &Result{Success: false, Error: "syntax error: " + err.Error()}
	}

	table := symbols.Build(tree)
	table.ResolveDeferred()

	return &Result{
		Success:    true,
		Tree:       tree,
		Table:      table,
		Undeclared: symbols.Detect(tree, table),
	}
}

// Annotate synthesizes type annotations for code. External suggestions
// are optional data; a nil value means none were supplied.
func (a *Analyzer) Annotate(code string, sugg *annotate.Suggestions) (res *AnnotateResult) {
	defer func() {
		if r := recover(); r != nil {
			res = &AnnotateResult{Success: false, Error: fmt.Sprintf("analysis error: %v", r)}
		}
	}()

	tree, err := a.buildTree(code)
	if err != nil {
		return &AnnotateResult{Success: false, Error: "syntax error: " + err.Error()}
	}

	table := symbols.Build(tree)
	table.ResolveDeferred()

	info := a.annotator.Collect(table, sugg)
	annotated := a.annotator.Apply(code, info, table)

	return &AnnotateResult{
		Success:       true,
		OriginalCode:  code,
		AnnotatedCode: annotated,
		TypeInfo:      &info,
		Count:         info.Count(),
	}
}

func (a *Analyzer) buildTree(code string) (*pysrc.Node, error) {
	start := time.Now()
	tree, err := pysrc.Build([]byte(code))
	observability.ParseDuration.Observe(time.Since(start).Seconds())
	return tree, err
}

// Hash is the content hash analysis and annotation results are cached
// under by external collaborators.
func Hash(code string) string {
	sum := md5.Sum([]byte(code))
	return hex.EncodeToString(sum[:])
}

var (
	assignmentPattern = regexp.MustCompile(`(\w+)\s*=\s*([^=\n]+)`)
	callPattern       = regexp.MustCompile(`(\w+)\s*\([^)]*\)`)
)

// ExtractPatterns derives coarse code patterns used as memory-store keys.
func ExtractPatterns(code string) []string {
	var patterns []string

	for _, m := range assignmentPattern.FindAllStringSubmatch(code, -1) {
		patterns = append(patterns, fmt.Sprintf("assignment_%s_%s", m[1], strings.TrimSpace(m[2])))
	}
	for _, m := range callPattern.FindAllStringSubmatch(code, -1) {
		patterns = append(patterns, "function_call_"+m[1])
	}
	if strings.Contains(code, "if ") {
		patterns = append(patterns, "control_flow_if")
	}
	if strings.Contains(code, "for ") {
		patterns = append(patterns, "control_flow_for")
	}
	if strings.Contains(code, "while ") {
		patterns = append(patterns, "control_flow_while")
	}

	return patterns
}
