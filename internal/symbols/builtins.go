package symbols

// pythonBuiltins covers the core builtin functions, exception type names,
// predefined constants and dunder names a name reference may legitimately
// resolve to without a declaration in the analyzed source.
var pythonBuiltins = map[string]bool{}

func init() {
	names := []string{
		// functions
		"print", "len", "str", "int", "float", "bool", "list", "dict", "set", "tuple",
		"sum", "min", "max", "abs", "round", "sorted", "reversed", "enumerate", "zip",
		"map", "filter", "any", "all", "range", "iter", "next", "open", "type", "isinstance",
		"issubclass", "hasattr", "getattr", "setattr", "delattr", "dir", "vars", "globals",
		"locals", "eval", "exec", "compile", "format", "repr", "chr", "ord", "hex", "oct",
		"bin", "input", "help", "id", "hash", "callable", "classmethod", "staticmethod",
		"property", "super", "slice", "memoryview", "bytearray", "bytes", "frozenset",
		"complex", "divmod", "pow",

		// exception types
		"Exception", "BaseException", "ValueError", "TypeError", "IndexError", "KeyError",
		"AttributeError", "NameError", "SyntaxError", "RuntimeError", "NotImplementedError",
		"ImportError", "ModuleNotFoundError", "FileNotFoundError", "PermissionError",
		"OSError", "IOError", "ZeroDivisionError", "OverflowError", "RecursionError",
		"StopIteration", "KeyboardInterrupt",

		// constants and dunder names
		"True", "False", "None", "__name__", "__file__", "__doc__", "__package__",
		"__spec__", "__loader__", "__cached__", "__builtins__",

		"object", "Ellipsis", "NotImplemented",
	}
	for _, name := range names {
		pythonBuiltins[name] = true
	}
}

// IsBuiltin reports whether name belongs to the fixed builtin identifier set.
func IsBuiltin(name string) bool {
	return pythonBuiltins[name]
}
