// Package symbols builds and holds the scope-indexed symbol table: four
// name-keyed registries plus a flat global scope. Within a registry a
// later declaration of the same name replaces the earlier one; no history
// is retained.
package symbols

import (
	"unicode"

	"typesage/internal/infer"
)

type ImportKind string

const (
	ImportWhole     ImportKind = "import"
	ImportSelective ImportKind = "from_import"
)

type FunctionSymbol struct {
	Name             string            `json:"name"`
	Line             int               `json:"line"`
	Params           []string          `json:"args"`
	ParamAnnotations map[string]string `json:"arg_annotations,omitempty"`
	Returns          string            `json:"returns,omitempty"`
	InferredReturn   infer.Descriptor  `json:"inferred_return_type,omitempty"`
	Decorators       []string          `json:"decorators,omitempty"`
	Depth            int               `json:"scope"`
}

type ClassSymbol struct {
	Name       string   `json:"name"`
	Line       int      `json:"line"`
	Bases      []string `json:"bases,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Methods    []string `json:"methods,omitempty"`
}

type VariableSymbol struct {
	Name       string           `json:"name"`
	Line       int              `json:"line"`
	Annotation string           `json:"annotation,omitempty"`
	Inferred   infer.Descriptor `json:"inferred_type,omitempty"`
	Depth      int              `json:"scope"`
}

type ImportSymbol struct {
	Name     string     `json:"name"`
	Module   string     `json:"module"`
	Original string     `json:"original,omitempty"`
	Alias    string     `json:"alias,omitempty"`
	Line     int        `json:"line"`
	Kind     ImportKind `json:"type"`
}

type Table struct {
	Functions map[string]*FunctionSymbol `json:"functions"`
	Classes   map[string]*ClassSymbol   `json:"classes"`
	Variables map[string]*VariableSymbol `json:"variables"`
	Imports   map[string]*ImportSymbol   `json:"imports"`
	// Global maps every name declared at module level to its symbol kind
	// ("function", "class", "variable", "import").
	Global map[string]string `json:"global_scope"`
}

func NewTable() *Table {
	return &Table{
		Functions: make(map[string]*FunctionSymbol),
		Classes:   make(map[string]*ClassSymbol),
		Variables: make(map[string]*VariableSymbol),
		Imports:   make(map[string]*ImportSymbol),
		Global:    make(map[string]string),
	}
}

// The table is the engine's symbol source.
var _ infer.SymbolSource = (*Table)(nil)

func (t *Table) VariableType(name string) (string, infer.Descriptor, bool) {
	v, ok := t.Variables[name]
	if !ok {
		return "", "", false
	}
	return v.Annotation, v.Inferred, true
}

func (t *Table) HasClass(name string) bool {
	_, ok := t.Classes[name]
	return ok
}

func (t *Table) HasFunction(name string) bool {
	_, ok := t.Functions[name]
	return ok
}

func (t *Table) FunctionReturn(name string) (infer.Descriptor, bool) {
	f, ok := t.Functions[name]
	if !ok {
		return "", false
	}
	if f.Returns != "" {
		return infer.Descriptor(f.Returns), true
	}
	if f.InferredReturn != "" {
		return f.InferredReturn, true
	}
	return "", false
}

// ResolveDeferred is the single refinement pass run once the full table
// exists: variables whose inferred type is still a deferred call
// placeholder are rewritten to the class name when the callee turns out to
// be a known class, or kept as the callee name when it looks like one.
// Placeholders that stay unresolved are normalized to Any later, by the
// annotation synthesizer.
func (t *Table) ResolveDeferred() {
	for _, v := range t.Variables {
		if !v.Inferred.IsDeferred() {
			continue
		}
		callee := v.Inferred.DeferredName()
		if callee == "" {
			continue
		}
		if _, ok := t.Classes[callee]; ok {
			v.Inferred = infer.Descriptor(callee)
			continue
		}
		if r := []rune(callee)[0]; unicode.IsUpper(r) {
			v.Inferred = infer.Descriptor(callee)
		}
	}
}

// DeclaredNames is the union of all registry keys and the global scope.
func (t *Table) DeclaredNames() map[string]bool {
	names := make(map[string]bool)
	for name := range t.Global {
		names[name] = true
	}
	for name := range t.Functions {
		names[name] = true
	}
	for name := range t.Classes {
		names[name] = true
	}
	for name := range t.Variables {
		names[name] = true
	}
	for name := range t.Imports {
		names[name] = true
	}
	return names
}
