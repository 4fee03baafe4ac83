package infer

// Static lookup tables consulted during inference. They are constructed
// once and never mutated; treat them as read-only configuration.

// builtinReturns maps builtin callables to their return descriptor.
// min, max and sum are absent on purpose: their results are refined from
// the argument types at the call site.
var builtinReturns = map[string]Descriptor{
	"len":       Int,
	"abs":       "int | float",
	"round":     "int | float",
	"divmod":    Tuple,
	"pow":       "int | float",
	"str":       Str,
	"int":       Int,
	"float":     Float,
	"bool":      Bool,
	"bytes":     Bytes,
	"list":      List,
	"dict":      Dict,
	"set":       Set,
	"tuple":     Tuple,
	"frozenset": "frozenset",
	"type":      "type",
	"range":     "range",
	"enumerate": "enumerate",
	"zip":       "zip",
	"map":       "map",
	"filter":    "filter",
	"sorted":    List,
	"reversed":  "reversed",
	"repr":      Str,
	"format":    Str,
	"chr":       Str,
	"ord":       Int,
	"hex":       Str,
	"oct":       Str,
	"bin":       Str,
	"hash":      Int,
	"id":        Int,
	"open":      "TextIOWrapper",
	"input":     Str,
	"print":     NoneT,
	"any":       Bool,
	"all":       Bool,
	"isinstance": Bool,
	"issubclass": Bool,
	"callable":   Bool,
	"hasattr":    Bool,
}

// methodReturns covers common sequence, mapping and text operations for
// attribute-style calls. Unknown method names defer instead.
var methodReturns = map[string]Descriptor{
	// sequence
	"append":  NoneT,
	"extend":  NoneT,
	"insert":  NoneT,
	"remove":  NoneT,
	"pop":     Any,
	"clear":   NoneT,
	"copy":    List,
	"count":   Int,
	"index":   Int,
	"reverse": NoneT,
	"sort":    NoneT,
	// text
	"join":       Str,
	"split":      "list[str]",
	"rsplit":     "list[str]",
	"splitlines": "list[str]",
	"strip":      Str,
	"lstrip":     Str,
	"rstrip":     Str,
	"upper":      Str,
	"lower":      Str,
	"title":      Str,
	"capitalize": Str,
	"replace":    Str,
	"format":     Str,
	"startswith": Bool,
	"endswith":   Bool,
	"find":       Int,
	"rfind":      Int,
	"encode":     Bytes,
	"decode":     Str,
	// mapping
	"get":        Any,
	"keys":       "dict_keys",
	"values":     "dict_values",
	"items":      "dict_items",
	"update":     NoneT,
	"setdefault": Any,
	// set
	"add":          NoneT,
	"discard":      NoneT,
	"union":        Set,
	"intersection": Set,
	"difference":   Set,
}

// nameHint pairs a case-insensitive identifier substring with the type it
// suggests. Checked in order, so more specific substrings come first
// ("filename" should hit "file" semantics as a string, not list).
type nameHint struct {
	fragment string
	typ      Descriptor
}

var nameHints = []nameHint{
	{"numbers", "list[int | float]"},
	{"count", Int},
	{"index", Int},
	{"settings", Dict},
	{"config", Dict},
	{"filename", Str},
	{"name", Str},
	{"text", Str},
	{"path", Str},
	{"file", Str},
	{"content", Str},
	{"flag", Bool},
	{"enabled", Bool},
	{"items", List},
	{"data", List},
	{"value", "int | float"},
}

// subscriptOf projects an element access through the base type: indexing a
// parametrized container yields its element or value parameter, text
// yields text, and anything unresolved yields Any.
func subscriptOf(base Descriptor) Descriptor {
	switch base.base() {
	case List, Set:
		if elem, ok := base.Elem(); ok {
			return elem
		}
		return Any
	case Dict:
		if val, ok := base.valueParam(); ok {
			return val
		}
		return Any
	case Str:
		return Str
	case Bytes:
		return Int
	default:
		return Any
	}
}
