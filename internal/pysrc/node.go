package pysrc

// Kind tags every node produced by the builder. The set is closed;
// inference and traversal switch over it exhaustively.
type Kind int

const (
	KindModule Kind = iota
	KindConstant
	KindName
	KindList
	KindSet
	KindTuple
	KindDict
	KindCall
	KindBinaryOp
	KindUnaryOp
	KindCompare
	KindBoolOp
	KindListComp
	KindSetComp
	KindDictComp
	KindGenerator
	KindConditional
	KindLambda
	KindAttribute
	KindSubscript
	KindFunctionDef
	KindClassDef
	KindAssign
	KindAnnAssign
	KindAugAssign
	KindImport
	KindImportFrom
	KindReturn
	KindFor
	KindStatement // any other statement; children are still walked
)

var kindNames = map[Kind]string{
	KindModule:      "Module",
	KindConstant:    "Constant",
	KindName:        "Name",
	KindList:        "List",
	KindSet:         "Set",
	KindTuple:       "Tuple",
	KindDict:        "Dict",
	KindCall:        "Call",
	KindBinaryOp:    "BinOp",
	KindUnaryOp:     "UnaryOp",
	KindCompare:     "Compare",
	KindBoolOp:      "BoolOp",
	KindListComp:    "ListComp",
	KindSetComp:     "SetComp",
	KindDictComp:    "DictComp",
	KindGenerator:   "GeneratorExp",
	KindConditional: "IfExp",
	KindLambda:      "Lambda",
	KindAttribute:   "Attribute",
	KindSubscript:   "Subscript",
	KindFunctionDef: "FunctionDef",
	KindClassDef:    "ClassDef",
	KindAssign:      "Assign",
	KindAnnAssign:   "AnnAssign",
	KindAugAssign:   "AugAssign",
	KindImport:      "Import",
	KindImportFrom:  "ImportFrom",
	KindReturn:      "Return",
	KindFor:         "For",
	KindStatement:   "Stmt",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// NameCtx distinguishes reads from bindings for identifier nodes.
type NameCtx int

const (
	CtxLoad NameCtx = iota
	CtxStore
)

// LitKind classifies constant literals. Truth literals are matched before
// integers: in the source language booleans are also integers.
type LitKind int

const (
	LitNone LitKind = iota
	LitBool
	LitInt
	LitFloat
	LitStr
	LitBytes
)

var litNames = map[LitKind]string{
	LitNone:  "None",
	LitBool:  "bool",
	LitInt:   "int",
	LitFloat: "float",
	LitStr:   "str",
	LitBytes: "bytes",
}

func (l LitKind) String() string { return litNames[l] }

// Param is one declared function or lambda parameter.
type Param struct {
	Name       string
	Annotation string // declared annotation text, "" if absent
	Default    *Node  // nil unless the parameter has a default value
}

// ImportAlias is one bound name produced by an import statement.
type ImportAlias struct {
	Name  string // module path, or imported item for selective imports
	Alias string // "" if not aliased
}

// Node is the uniform structural representation of a source construct.
// Only the fields relevant to the node's Kind are populated; Children
// always holds every converted child in source order so whole-tree walks
// never need kind-specific knowledge. Ownership is strictly top-down.
type Node struct {
	ID   int
	Kind Kind
	Line int
	Col  int

	// Identifier payloads.
	Name string  // Name/FunctionDef/ClassDef: bound name; Attribute: attribute name
	Ctx  NameCtx // Name only

	// Constant payloads.
	Lit  LitKind
	Text string // raw literal text

	Op string // BinaryOp, UnaryOp, BoolOp, AugAssign

	Left  *Node // BinaryOp/BoolOp/Compare left operand; Conditional then-branch
	Right *Node // BinaryOp/BoolOp right operand; Conditional else-branch
	Test  *Node // Conditional condition

	Value   *Node   // Assign/AnnAssign/AugAssign/Return value; Attribute/Subscript base; UnaryOp operand; Lambda body
	Target  *Node   // AnnAssign/AugAssign/For target
	Targets []*Node // Assign targets

	Elt *Node // ListComp/SetComp/Generator element expression
	Key *Node // DictComp key expression
	Val *Node // DictComp value expression

	Func *Node   // Call callee
	Args []*Node // Call arguments

	Elts []*Node // List/Set/Tuple elements; Compare comparators
	Keys []*Node // Dict keys
	Vals []*Node // Dict values

	Params     []Param       // FunctionDef/Lambda
	Returns    string        // FunctionDef declared return annotation
	Annotation string        // AnnAssign declared annotation
	Bases      []string      // ClassDef base-class names
	Decorators []string      // FunctionDef/ClassDef
	Imports    []ImportAlias // Import/ImportFrom bound names
	Module     string        // ImportFrom source module

	Children []*Node
}

// Walk visits n and every descendant in depth-first source order.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		Walk(child, fn)
	}
}
