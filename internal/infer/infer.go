// Package infer computes best-effort type descriptors for expression
// subtrees. Inference is flow-insensitive and intraprocedural: a pure
// function of the expression node and the symbol information it is handed.
package infer

import (
	"strings"
	"unicode"

	"typesage/internal/pysrc"
)

// SymbolSource is the read-only view of the symbol table the engine
// consults for name references and calls.
type SymbolSource interface {
	// VariableType reports a variable's declared annotation and inferred
	// descriptor. ok is false when the name is not a known variable.
	VariableType(name string) (annotation string, inferred Descriptor, ok bool)
	HasClass(name string) bool
	HasFunction(name string) bool
	// FunctionReturn reports a function's recorded return type; ok is false
	// when the function is unknown or has no recorded type yet.
	FunctionReturn(name string) (Descriptor, bool)
}

const (
	maxSampled    = 10
	maxTupleExact = 8
)

// Infer computes the type descriptor of an expression subtree. It never
// mutates its inputs and never fails: unknowable expressions degrade to
// deferred placeholders or Any.
func Infer(n *pysrc.Node, syms SymbolSource) Descriptor {
	if n == nil {
		return Any
	}

	switch n.Kind {
	case pysrc.KindConstant:
		return constantType(n.Lit)

	case pysrc.KindList:
		return containerType(List, n.Elts, syms)
	case pysrc.KindSet:
		return containerType(Set, n.Elts, syms)

	case pysrc.KindTuple:
		if len(n.Elts) == 0 {
			return Tuple
		}
		if len(n.Elts) > maxTupleExact {
			return Tuple
		}
		parts := make([]string, len(n.Elts))
		for i, elt := range n.Elts {
			parts[i] = string(Infer(elt, syms))
		}
		return Descriptor("tuple[" + strings.Join(parts, ", ") + "]")

	case pysrc.KindDict:
		return dictType(n.Keys, n.Vals, syms)

	case pysrc.KindCall:
		return callType(n, syms)

	case pysrc.KindBinaryOp:
		return binaryType(n.Op, Infer(n.Left, syms), Infer(n.Right, syms))

	case pysrc.KindUnaryOp:
		switch n.Op {
		case "not":
			return Bool
		case "~":
			return Int
		default:
			return Infer(n.Value, syms)
		}

	case pysrc.KindCompare, pysrc.KindBoolOp:
		return Bool

	case pysrc.KindListComp:
		return wrapComprehension(List, Infer(n.Elt, syms))
	case pysrc.KindSetComp:
		return wrapComprehension(Set, Infer(n.Elt, syms))
	case pysrc.KindDictComp:
		key := Infer(n.Key, syms)
		val := Infer(n.Val, syms)
		if isSingle(key) && isSingle(val) {
			return Descriptor("dict[" + string(key) + ", " + string(val) + "]")
		}
		return Dict
	case pysrc.KindGenerator:
		elem := Infer(n.Elt, syms)
		if elem == Any {
			return "Generator"
		}
		return Descriptor("Generator[" + string(elem) + "]")

	case pysrc.KindConditional:
		return Unify(Infer(n.Left, syms), Infer(n.Right, syms))

	case pysrc.KindLambda:
		return Descriptor("Callable[..., " + string(Infer(n.Value, syms)) + "]")

	case pysrc.KindName:
		return nameType(n.Name, syms)

	case pysrc.KindAttribute:
		// No attribute table resolves plain attribute loads.
		return Any

	case pysrc.KindSubscript:
		return subscriptOf(Infer(n.Value, syms))

	default:
		return Unknown
	}
}

func constantType(lit pysrc.LitKind) Descriptor {
	switch lit {
	case pysrc.LitBool:
		return Bool
	case pysrc.LitInt:
		return Int
	case pysrc.LitFloat:
		return Float
	case pysrc.LitStr:
		return Str
	case pysrc.LitBytes:
		return Bytes
	case pysrc.LitNone:
		return NoneT
	default:
		return Unknown
	}
}

// sampleIndices picks up to maxSampled positions with an even stride that
// always covers the first and last element.
func sampleIndices(n int) []int {
	if n <= maxSampled {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, maxSampled)
	for i := 0; i < maxSampled; i++ {
		out[i] = i * (n - 1) / (maxSampled - 1)
	}
	return out
}

func sampleTypes(elts []*pysrc.Node, syms SymbolSource) []Descriptor {
	indices := sampleIndices(len(elts))
	types := make([]Descriptor, 0, len(indices))
	for _, idx := range indices {
		types = append(types, Infer(elts[idx], syms))
	}
	return types
}

func containerType(base Descriptor, elts []*pysrc.Node, syms SymbolSource) Descriptor {
	if len(elts) == 0 {
		return base
	}
	elem := Unify(sampleTypes(elts, syms)...)
	if elem == Any {
		return base
	}
	return Descriptor(string(base) + "[" + string(elem) + "]")
}

func dictType(keys, vals []*pysrc.Node, syms SymbolSource) Descriptor {
	if len(keys) == 0 || len(vals) == 0 {
		return Dict
	}
	key := Unify(sampleTypes(keys, syms)...)
	val := Unify(sampleTypes(vals, syms)...)
	if !isSingle(key) || !isSingle(val) {
		return Dict
	}
	return Descriptor("dict[" + string(key) + ", " + string(val) + "]")
}

// isSingle reports whether d is one concrete alternative, not Any and not
// a union.
func isSingle(d Descriptor) bool {
	return d != Any && d != "" && !d.IsUnion()
}

func wrapComprehension(base Descriptor, elem Descriptor) Descriptor {
	if elem == Any {
		return base
	}
	return Descriptor(string(base) + "[" + string(elem) + "]")
}

func callType(n *pysrc.Node, syms SymbolSource) Descriptor {
	callee := n.Func
	if callee == nil {
		return Any
	}

	switch callee.Kind {
	case pysrc.KindName:
		name := callee.Name

		switch name {
		case "min", "max":
			return minMaxType(n.Args, syms)
		case "sum":
			return sumType(n.Args, syms)
		}
		if ret, ok := builtinReturns[name]; ok {
			return ret
		}
		if syms.HasClass(name) {
			return Descriptor(name)
		}
		if ret, ok := syms.FunctionReturn(name); ok {
			return ret
		}
		if syms.HasFunction(name) {
			return Deferred(name)
		}
		if isUpperInitial(name) {
			// Probable class instantiation.
			return Descriptor(name)
		}
		return Deferred(name)

	case pysrc.KindAttribute:
		if ret, ok := methodReturns[callee.Name]; ok {
			return ret
		}
		return Deferred(callee.Name)

	default:
		return Any
	}
}

// minMaxType unifies the types of up to the first two arguments.
func minMaxType(args []*pysrc.Node, syms SymbolSource) Descriptor {
	if len(args) == 0 {
		return Any
	}
	limit := len(args)
	if limit > 2 {
		limit = 2
	}
	types := make([]Descriptor, 0, limit)
	for _, arg := range args[:limit] {
		types = append(types, Infer(arg, syms))
	}
	return Unify(types...)
}

// sumType is float when the first argument's element type is float,
// otherwise int.
func sumType(args []*pysrc.Node, syms SymbolSource) Descriptor {
	if len(args) == 0 {
		return Int
	}
	if elem, ok := Infer(args[0], syms).Elem(); ok && elem == Float {
		return Float
	}
	return Int
}

func binaryType(op string, left, right Descriptor) Descriptor {
	switch op {
	case "+":
		if left == Str || right == Str {
			return Str // concatenation
		}
		return arithmeticType(left, right)
	case "*":
		if (left == Str && right.isNumeric()) || (right == Str && left.isNumeric()) {
			return Str // repetition
		}
		return arithmeticType(left, right)
	case "-", "%", "**":
		return arithmeticType(left, right)
	case "/":
		return Float
	case "//":
		if left == Float || right == Float {
			return Float
		}
		return Int
	case "|", "^", "&", "<<", ">>":
		return Int
	default:
		return Any
	}
}

func arithmeticType(left, right Descriptor) Descriptor {
	if left == Float || right == Float {
		return Float
	}
	if left == Int || right == Int {
		return Int
	}
	return "int | float"
}

func nameType(name string, syms SymbolSource) Descriptor {
	if annotation, inferred, ok := syms.VariableType(name); ok {
		if annotation != "" {
			return Descriptor(annotation)
		}
		if inferred != "" {
			return inferred
		}
	}
	return HintForName(name)
}

// HintForName applies the naming-convention heuristic: a fixed ordered
// substring table, then a trailing-s pluralization fallback.
func HintForName(name string) Descriptor {
	lower := strings.ToLower(name)
	for _, hint := range nameHints {
		if strings.Contains(lower, hint.fragment) {
			return hint.typ
		}
	}
	if len(lower) > 1 && strings.HasSuffix(lower, "s") {
		return List
	}
	return Any
}

func isUpperInitial(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}
