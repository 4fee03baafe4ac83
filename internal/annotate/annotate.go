// Package annotate synthesizes inline type annotations: it collects one
// normalized type per variable and function from the symbol table and any
// externally supplied suggestions, then rewrites the matching declaration
// lines in the original source text.
//
// Rewriting is purely line-based and therefore limited to single-line
// declarations; multi-line signatures, multiple assignment targets per
// line, and semicolon-joined statements are left untouched.
package annotate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"typesage/internal/infer"
	"typesage/internal/symbols"
)

// Suggestions carries caller-supplied external type suggestions. The core
// never fetches these itself; they arrive as plain data.
type Suggestions struct {
	Inferences map[string]string             `json:"inferences,omitempty"`
	Functions  map[string]FunctionSuggestion `json:"function_suggestions,omitempty"`
}

type FunctionSuggestion struct {
	Params map[string]string `json:"params,omitempty"`
	Return string            `json:"return,omitempty"`
}

type VariableType struct {
	Type   string `json:"type"`
	Line   int    `json:"line"`
	Source string `json:"source"`
}

type FunctionType struct {
	Params map[string]string `json:"params"`
	Return string            `json:"return"`
	Line   int               `json:"line"`
}

// TypeInfo is the unified per-name type assignment used for rewriting and
// returned to callers.
type TypeInfo struct {
	Variables map[string]VariableType `json:"variables"`
	Functions map[string]FunctionType `json:"functions"`
}

// Count is the number of variable and function entries that received a
// synthesized type.
func (ti TypeInfo) Count() int {
	return len(ti.Variables) + len(ti.Functions)
}

type Annotator struct {
	mu   sync.RWMutex
	skip []glob.Glob
}

// New returns an Annotator. Variables whose name matches any skip pattern
// are left unannotated.
func New(skip ...glob.Glob) *Annotator {
	return &Annotator{skip: skip}
}

// SetSkip replaces the skip patterns. Safe to call while collections are
// in flight; running collections keep the old set.
func (a *Annotator) SetSkip(skip []glob.Glob) {
	a.mu.Lock()
	a.skip = skip
	a.mu.Unlock()
}

func (a *Annotator) skipped(name string) bool {
	a.mu.RLock()
	skip := a.skip
	a.mu.RUnlock()

	for _, g := range skip {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Collect resolves one type per variable and function, preferring an
// existing explicit annotation, then the engine-inferred type, then the
// external suggestion, then Any. Every result passes through descriptor
// normalization.
func (a *Annotator) Collect(table *symbols.Table, sugg *Suggestions) TypeInfo {
	info := TypeInfo{
		Variables: make(map[string]VariableType),
		Functions: make(map[string]FunctionType),
	}
	if sugg == nil {
		sugg = &Suggestions{}
	}

	for name, v := range table.Variables {
		if a.skipped(name) {
			continue
		}
		var typ infer.Descriptor
		source := "inferred"
		switch {
		case v.Annotation != "":
			typ = infer.Descriptor(v.Annotation)
			source = "annotation"
		case v.Inferred != "" && !v.Inferred.IsDeferred():
			typ = v.Inferred
		case sugg.Inferences[name] != "":
			typ = infer.Descriptor(sugg.Inferences[name])
		default:
			typ = v.Inferred // possibly deferred; normalizes to Any
		}
		info.Variables[name] = VariableType{
			Type:   string(infer.Normalize(typ)),
			Line:   v.Line,
			Source: source,
		}
	}

	for name, fn := range table.Functions {
		fnSugg := sugg.Functions[name]
		params := make(map[string]string, len(fn.Params))
		for _, p := range fn.Params {
			params[p] = string(a.paramType(fn, p, fnSugg))
		}
		info.Functions[name] = FunctionType{
			Params: params,
			Return: string(a.returnType(fn, fnSugg)),
			Line:   fn.Line,
		}
	}

	return info
}

func (a *Annotator) paramType(fn *symbols.FunctionSymbol, param string, sugg FunctionSuggestion) infer.Descriptor {
	if declared := fn.ParamAnnotations[param]; declared != "" {
		return infer.Normalize(infer.Descriptor(declared))
	}
	if hint := infer.HintForName(param); hint != infer.Any {
		return infer.Normalize(hint)
	}
	if suggested := sugg.Params[param]; suggested != "" {
		return infer.Normalize(infer.Descriptor(suggested))
	}
	return infer.Any
}

func (a *Annotator) returnType(fn *symbols.FunctionSymbol, sugg FunctionSuggestion) infer.Descriptor {
	switch {
	case fn.Returns != "":
		return infer.Normalize(infer.Descriptor(fn.Returns))
	case fn.InferredReturn != "" && !fn.InferredReturn.IsDeferred():
		return infer.Normalize(fn.InferredReturn)
	case sugg.Return != "":
		return infer.Normalize(infer.Descriptor(sugg.Return))
	default:
		return infer.NoneT
	}
}

// Apply rewrites declaration lines in source according to info. Lines
// already carrying annotations are left unchanged, which makes the whole
// operation idempotent.
func (a *Annotator) Apply(source string, info TypeInfo, table *symbols.Table) string {
	lines := strings.Split(source, "\n")

	for name, fn := range info.Functions {
		idx := fn.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		lines[idx] = annotateFunctionLine(lines[idx], name, fn)
	}

	for name, v := range info.Variables {
		idx := v.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		lines[idx] = annotateVariableLine(lines[idx], name, v.Type)
	}

	return strings.Join(lines, "\n")
}

func annotateFunctionLine(line, name string, fn FunctionType) string {
	if strings.Contains(line, "->") {
		return line
	}
	pattern := regexp.MustCompile(`^(\s*def\s+` + regexp.QuoteMeta(name) + `\s*\()([^)]*)\)\s*:(.*)$`)
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	prefix, argsText, suffix := m[1], m[2], m[3]
	if strings.Contains(argsText, ":") {
		return line // parameters already annotated
	}

	newArgs := argsText
	if strings.TrimSpace(argsText) != "" {
		args := strings.Split(argsText, ",")
		annotated := make([]string, 0, len(args))
		for _, arg := range args {
			arg = strings.TrimSpace(arg)
			if eq := strings.Index(arg, "="); eq >= 0 {
				argName := strings.TrimSpace(arg[:eq])
				defaultVal := strings.TrimSpace(arg[eq+1:])
				if typ, ok := fn.Params[argName]; ok {
					annotated = append(annotated, fmt.Sprintf("%s: %s = %s", argName, typ, defaultVal))
				} else {
					annotated = append(annotated, arg)
				}
				continue
			}
			if typ, ok := fn.Params[arg]; ok {
				annotated = append(annotated, fmt.Sprintf("%s: %s", arg, typ))
			} else {
				annotated = append(annotated, arg)
			}
		}
		newArgs = strings.Join(annotated, ", ")
	}

	return fmt.Sprintf("%s%s) -> %s:%s", prefix, newArgs, fn.Return, suffix)
}

func annotateVariableLine(line, name, typ string) string {
	if strings.Contains(line, name+":") {
		return line // already annotated
	}
	pattern := regexp.MustCompile(`^(\s*)(` + regexp.QuoteMeta(name) + `)(\s*=.*)$`)
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	// Inserting exactly ": <type>" keeps the rewrite reversible: stripping
	// the segment reproduces the original line byte for byte.
	return m[1] + m[2] + ": " + typ + m[3]
}
