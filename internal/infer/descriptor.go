package infer

import "strings"

// Descriptor is a normalized type descriptor: a primitive ("int", "str"),
// a parametrized container ("list[int]", "dict[str, int]"), a bounded
// union ("int | float"), a nominal class name, a deferred placeholder, or
// the Any fallback.
type Descriptor string

const (
	Any     Descriptor = "Any"
	Int     Descriptor = "int"
	Float   Descriptor = "float"
	Str     Descriptor = "str"
	Bool    Descriptor = "bool"
	Bytes   Descriptor = "bytes"
	NoneT   Descriptor = "None"
	List    Descriptor = "list"
	Set     Descriptor = "set"
	Dict    Descriptor = "dict"
	Tuple   Descriptor = "tuple"
	Unknown Descriptor = "unknown"
)

const (
	unionSep        = " | "
	maxUnionArms    = 3
	deferredPrefix  = "deferred("
	deferredClosing = ")"
)

// Deferred builds the provisional placeholder for a call whose return type
// is not knowable during the first pass.
func Deferred(name string) Descriptor {
	return Descriptor(deferredPrefix + name + deferredClosing)
}

func (d Descriptor) IsDeferred() bool {
	return strings.HasPrefix(string(d), deferredPrefix) && strings.HasSuffix(string(d), deferredClosing)
}

// DeferredName returns the callee name inside a deferred placeholder.
func (d Descriptor) DeferredName() string {
	if !d.IsDeferred() {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(string(d), deferredPrefix), deferredClosing)
}

func (d Descriptor) IsUnion() bool {
	return strings.Contains(string(d), unionSep)
}

// Arms splits a union into its alternatives; a non-union descriptor is its
// own single arm.
func (d Descriptor) Arms() []Descriptor {
	if !d.IsUnion() {
		return []Descriptor{d}
	}
	parts := strings.Split(string(d), unionSep)
	arms := make([]Descriptor, 0, len(parts))
	for _, p := range parts {
		arms = append(arms, Descriptor(strings.TrimSpace(p)))
	}
	return arms
}

func (d Descriptor) isNumeric() bool {
	return d == Int || d == Float
}

// Union merges descriptors into a flat union of at most three distinct
// alternatives. Anything wider, or anything already Any, collapses to Any.
// Unions never nest: incoming union arms are flattened first.
func Union(types ...Descriptor) Descriptor {
	var arms []Descriptor
	seen := make(map[Descriptor]bool)
	for _, t := range types {
		if t == "" {
			continue
		}
		for _, arm := range t.Arms() {
			if arm == Any {
				return Any
			}
			if !seen[arm] {
				seen[arm] = true
				arms = append(arms, arm)
			}
		}
	}
	switch {
	case len(arms) == 0:
		return Any
	case len(arms) == 1:
		return arms[0]
	case len(arms) > maxUnionArms:
		return Any
	}
	parts := make([]string, len(arms))
	for i, arm := range arms {
		parts[i] = string(arm)
	}
	return Descriptor(strings.Join(parts, unionSep))
}

// Normalize maps internal or lingering descriptors to their presentable
// form: deferred placeholders and unknowns fall back to Any, the internal
// no-value marker becomes the language's null type name, and a small set
// of aliases is rewritten.
func Normalize(d Descriptor) Descriptor {
	s := strings.TrimSpace(string(d))
	if s == "" || s == string(Unknown) {
		return Any
	}
	if Descriptor(s).IsDeferred() {
		return Any
	}
	s = strings.ReplaceAll(s, "NoneType", "None")
	s = strings.ReplaceAll(s, "TextIOWrapper", "TextIO")
	return Descriptor(s)
}

// Unify merges sampled element types into one summary type: identical
// types collapse, mixed numerics widen to float, numeric mixed with str
// gives Any, and anything else becomes a bounded union.
func Unify(types ...Descriptor) Descriptor {
	var arms []Descriptor
	seen := make(map[Descriptor]bool)
	for _, t := range types {
		if t == "" {
			continue
		}
		for _, arm := range t.Arms() {
			if arm == Any {
				return Any
			}
			if !seen[arm] {
				seen[arm] = true
				arms = append(arms, arm)
			}
		}
	}
	if len(arms) == 0 {
		return Any
	}
	if len(arms) == 1 {
		return arms[0]
	}
	if len(arms) == 2 && seen[Int] && seen[Float] {
		return Float
	}
	hasStr := seen[Str]
	hasNumeric := seen[Int] || seen[Float]
	if hasStr && hasNumeric {
		return Any
	}
	return Union(arms...)
}

// Elem returns the element type of a parametrized container descriptor,
// e.g. "list[int]" yields "int". The second result is false when the
// descriptor carries no single element parameter.
func (d Descriptor) Elem() (Descriptor, bool) {
	s := string(d)
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return "", false
	}
	inner := s[open+1 : len(s)-1]
	if inner == "" || strings.Contains(inner, ",") {
		return "", false
	}
	return Descriptor(inner), true
}

// base returns the container head of a parametrized descriptor
// ("dict[str, int]" yields "dict").
func (d Descriptor) base() Descriptor {
	s := string(d)
	if open := strings.IndexByte(s, '['); open >= 0 {
		return Descriptor(s[:open])
	}
	return d
}

// valueParam returns the second type parameter of a two-parameter
// container descriptor ("dict[str, int]" yields "int").
func (d Descriptor) valueParam() (Descriptor, bool) {
	s := string(d)
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return "", false
	}
	inner := s[open+1 : len(s)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return "", false
	}
	return Descriptor(strings.TrimSpace(parts[1])), true
}
