package lang

import (
	"strings"
	"unsafe"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/codegraph/internal/types"
)

func init() {
	Register(rustSpec())
	Register(typescriptSpec(types.LanguageTypeScript, []string{".ts", ".mts", ".cts"}, tree_sitter_typescript.LanguageTypescript))
	Register(typescriptSpec(types.LanguageTSX, []string{".tsx"}, tree_sitter_typescript.LanguageTSX))
	Register(javascriptSpec())
	Register(pythonSpec())
	Register(goSpec())
	Register(javaSpec())
	Register(csharpSpec())
	Register(cppSpec())
	Register(phpSpec())
	Register(zigSpec())
}

func rustSpec() *Spec {
	return &Spec{
		Name:       types.LanguageRust,
		Extensions: []string{".rs"},
		Separator:  "::",
		grammar:    tree_sitter_rust.Language,
		ScopeKinds: map[string]string{
			"mod_item":         "name",
			"struct_item":      "name",
			"enum_item":        "name",
			"union_item":       "name",
			"trait_item":       "name",
			"impl_item":        "",
			"foreign_mod_item": "",
			"function_item":    "name",
		},
		FunctionKinds: []string{"function_item", "function_signature_item", "closure_expression"},
		ModuleKinds:   map[string]string{"mod_item": "name"},
		TypeKinds: map[string]string{
			"impl_item":   "type",
			"trait_item":  "name",
			"struct_item": "name",
			"enum_item":   "name",
			"union_item":  "name",
		},
		DeclKinds: map[string]string{
			"struct_item":      "name",
			"enum_item":        "name",
			"union_item":       "name",
			"trait_item":       "name",
			"type_item":        "name",
			"function_item":    "name",
			"const_item":       "name",
			"static_item":      "name",
			"mod_item":         "name",
			"macro_definition": "name",
		},
		CommentKinds:    []string{"line_comment", "block_comment"},
		DecorationKinds: []string{"attribute_item", "inner_attribute_item", "visibility_modifier"},
		ModulePath:      rustModulePath,
		PrefixPackage:   true,
		StdTypes: set(
			"String", "Vec", "Option", "Result", "Box", "Rc", "Arc", "Weak", "RefCell", "Cell",
			"HashMap", "HashSet", "BTreeMap", "BTreeSet", "VecDeque", "BinaryHeap", "Cow",
			"Mutex", "RwLock", "Pin", "PhantomData", "Some", "None", "Ok", "Err",
			"Default", "Clone", "Copy", "Debug", "Display", "Eq", "PartialEq", "Ord", "PartialOrd",
			"Hash", "Iterator", "IntoIterator", "From", "Into", "TryFrom", "TryInto", "AsRef", "AsMut",
			"Deref", "DerefMut", "Drop", "Fn", "FnMut", "FnOnce", "Send", "Sync", "Sized",
			"ToString", "ToOwned", "Error", "Future", "Duration", "Path", "PathBuf",
		),
		StdRoots: set("std", "core", "alloc"),
		Primitives: set(
			"i8", "i16", "i32", "i64", "i128", "isize",
			"u8", "u16", "u32", "u64", "u128", "usize",
			"f32", "f64", "bool", "char", "str",
		),
		SelfType:      "Self",
		SelfReceivers: []string{"self"},
		CallQuery: `
(call_expression function: (identifier) @callee)
(call_expression function: (scoped_identifier) @callee)
(call_expression function: (generic_function function: (identifier) @callee))
(call_expression function: (generic_function function: (scoped_identifier) @callee))
(call_expression function: (field_expression value: (_) @receiver field: (field_identifier) @method))
(call_expression function: (generic_function function: (field_expression value: (_) @receiver field: (field_identifier) @method)))
`,
		TypeQuery: `
(type_identifier) @type
(scoped_type_identifier) @type
`,
	}
}

func typescriptSpec(name types.Language, exts []string, grammar func() unsafe.Pointer) *Spec {
	return &Spec{
		Name:       name,
		Extensions: exts,
		Separator:  ".",
		grammar:    grammar,
		ScopeKinds: map[string]string{
			"class_declaration":          "name",
			"abstract_class_declaration": "name",
			"interface_declaration":      "name",
			"enum_declaration":           "name",
			"internal_module":            "name",
			"function_declaration":       "name",
			"method_definition":          "name",
		},
		FunctionKinds: []string{
			"function_declaration", "generator_function_declaration", "method_definition",
			"arrow_function", "function_expression", "generator_function",
		},
		ModuleKinds: map[string]string{"internal_module": "name"},
		TypeKinds: map[string]string{
			"class_declaration":          "name",
			"abstract_class_declaration": "name",
			"interface_declaration":      "name",
		},
		DeclKinds: map[string]string{
			"class_declaration":              "name",
			"abstract_class_declaration":     "name",
			"interface_declaration":          "name",
			"type_alias_declaration":         "name",
			"enum_declaration":               "name",
			"function_declaration":           "name",
			"generator_function_declaration": "name",
			"variable_declarator":            "name",
			"internal_module":                "name",
		},
		CommentKinds:    []string{"comment"},
		DecorationKinds: []string{"decorator"},
		WrapperKinds:    []string{"export_statement"},
		ModulePath:      scriptModulePath,
		StdTypes: set(
			"Array", "Promise", "Map", "Set", "WeakMap", "WeakSet", "Record", "Partial", "Required",
			"Readonly", "Pick", "Omit", "ReturnType", "Error", "Date", "RegExp", "Object", "String",
			"Number", "Boolean", "Symbol", "console", "JSON", "Math", "window", "document",
		),
		Primitives: set(
			"string", "number", "boolean", "any", "unknown", "void", "never",
			"null", "undefined", "object", "bigint", "symbol",
		),
		SelfReceivers: []string{"this"},
		CallQuery: `
(call_expression function: (identifier) @callee)
(call_expression function: (member_expression object: (_) @receiver property: (property_identifier) @method))
(new_expression constructor: (identifier) @callee)
`,
		TypeQuery: `
(type_identifier) @type
`,
	}
}

func javascriptSpec() *Spec {
	return &Spec{
		Name:       types.LanguageJavaScript,
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Separator:  ".",
		grammar:    tree_sitter_javascript.Language,
		ScopeKinds: map[string]string{
			"class_declaration":    "name",
			"function_declaration": "name",
			"method_definition":    "name",
		},
		FunctionKinds: []string{
			"function_declaration", "generator_function_declaration", "method_definition",
			"arrow_function", "function_expression", "generator_function",
		},
		TypeKinds: map[string]string{"class_declaration": "name"},
		DeclKinds: map[string]string{
			"class_declaration":              "name",
			"function_declaration":           "name",
			"generator_function_declaration": "name",
			"variable_declarator":            "name",
		},
		CommentKinds:    []string{"comment"},
		DecorationKinds: []string{"decorator"},
		WrapperKinds:    []string{"export_statement"},
		ModulePath:      scriptModulePath,
		StdTypes: set(
			"Array", "Promise", "Map", "Set", "WeakMap", "Error", "Date", "RegExp", "Object",
			"String", "Number", "Boolean", "Symbol", "console", "JSON", "Math", "window",
			"document", "require", "setTimeout", "setInterval", "parseInt", "parseFloat",
		),
		SelfReceivers: []string{"this"},
		CallQuery: `
(call_expression function: (identifier) @callee)
(call_expression function: (member_expression object: (_) @receiver property: (property_identifier) @method))
(new_expression constructor: (identifier) @callee)
`,
	}
}

func pythonSpec() *Spec {
	return &Spec{
		Name:       types.LanguagePython,
		Extensions: []string{".py", ".pyi"},
		Separator:  ".",
		grammar:    tree_sitter_python.Language,
		ScopeKinds: map[string]string{
			"class_definition":    "name",
			"function_definition": "name",
		},
		FunctionKinds: []string{"function_definition", "lambda"},
		TypeKinds:     map[string]string{"class_definition": "name"},
		DeclKinds: map[string]string{
			"class_definition":    "name",
			"function_definition": "name",
		},
		CommentKinds:    []string{"comment"},
		DecorationKinds: []string{"decorator"},
		WrapperKinds:    []string{"decorated_definition"},
		ModulePath:      pythonModulePath,
		StdTypes: set(
			"int", "str", "float", "bool", "list", "dict", "set", "tuple", "bytes", "object",
			"type", "Exception", "ValueError", "TypeError", "KeyError", "RuntimeError",
			"Optional", "List", "Dict", "Set", "Tuple", "Any", "Union", "Callable", "Iterable",
			"print", "len", "range", "isinstance", "super", "open", "enumerate", "zip", "map",
			"filter", "sorted", "min", "max", "sum", "getattr", "setattr", "hasattr", "repr",
		),
		StdRoots: set(
			"os", "sys", "re", "json", "typing", "collections", "itertools", "functools",
			"pathlib", "dataclasses", "abc", "asyncio", "logging", "datetime", "math",
			"subprocess", "unittest", "enum", "io", "time", "random",
		),
		Primitives:    set("None", "int", "str", "float", "bool", "bytes"),
		SelfReceivers: []string{"self", "cls"},
		CallQuery: `
(call function: (identifier) @callee)
(call function: (attribute object: (_) @receiver attribute: (identifier) @method))
`,
		TypeQuery: `
(type (identifier) @type)
`,
	}
}

func goSpec() *Spec {
	return &Spec{
		Name:          types.LanguageGo,
		Extensions:    []string{".go"},
		Separator:     ".",
		grammar:       tree_sitter_go.Language,
		ScopeKinds:    map[string]string{},
		FunctionKinds: []string{"function_declaration", "method_declaration", "func_literal"},
		DeclKinds: map[string]string{
			"function_declaration": "name",
			"type_spec":            "name",
			"const_spec":           "name",
			"var_spec":             "name",
		},
		CommentKinds:  []string{"comment"},
		ModulePath:    dirModulePath,
		PackageScoped: true,
		StdTypes: set(
			"make", "len", "cap", "append", "new", "panic", "recover", "print", "println",
			"copy", "delete", "close", "min", "max", "clear",
		),
		StdRoots: set(
			"fmt", "os", "io", "strings", "errors", "context", "sync", "time", "bytes", "sort",
			"strconv", "net", "http", "path", "filepath", "bufio", "log", "regexp", "math",
			"reflect", "runtime", "testing", "json", "encoding", "unicode", "slices", "maps",
		),
		Primitives: set(
			"bool", "byte", "complex64", "complex128", "error", "float32", "float64",
			"int", "int8", "int16", "int32", "int64", "rune", "string",
			"uint", "uint8", "uint16", "uint32", "uint64", "uintptr", "any", "comparable",
		),
		CallQuery: `
(call_expression function: (identifier) @callee)
(call_expression function: (selector_expression operand: (_) @receiver field: (field_identifier) @method))
`,
		TypeQuery: `
(type_identifier) @type
(qualified_type) @type
`,
	}
}

func javaSpec() *Spec {
	return &Spec{
		Name:       types.LanguageJava,
		Extensions: []string{".java"},
		Separator:  ".",
		grammar:    tree_sitter_java.Language,
		ScopeKinds: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"enum_declaration":      "name",
			"record_declaration":    "name",
		},
		FunctionKinds: []string{"method_declaration", "constructor_declaration", "lambda_expression"},
		TypeKinds: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"enum_declaration":      "name",
			"record_declaration":    "name",
		},
		DeclKinds: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"enum_declaration":      "name",
			"record_declaration":    "name",
		},
		CommentKinds:      []string{"line_comment", "block_comment"},
		ModulePath:        javaModulePath,
		ModuleDeclaration: javaPackage,
		PackageScoped:     true,
		StdTypes: set(
			"String", "Object", "Integer", "Long", "Double", "Boolean", "List", "Map", "Set",
			"ArrayList", "HashMap", "HashSet", "Optional", "Exception", "RuntimeException",
			"System", "Math", "Override",
		),
		StdRoots:      set("java", "javax"),
		SelfReceivers: []string{"this"},
		CallQuery: `
(method_invocation object: (_) @receiver name: (identifier) @method)
(method_invocation !object name: (identifier) @callee)
(object_creation_expression type: (type_identifier) @callee)
`,
		TypeQuery: `
(type_identifier) @type
`,
	}
}

func csharpSpec() *Spec {
	return &Spec{
		Name:       types.LanguageCSharp,
		Extensions: []string{".cs"},
		Separator:  ".",
		grammar:    tree_sitter_csharp.Language,
		ScopeKinds: map[string]string{
			"namespace_declaration": "name",
			"class_declaration":     "name",
			"interface_declaration": "name",
			"struct_declaration":    "name",
			"record_declaration":    "name",
			"enum_declaration":      "name",
		},
		FunctionKinds: []string{"method_declaration", "constructor_declaration", "local_function_statement", "lambda_expression"},
		ModuleKinds:   map[string]string{"namespace_declaration": "name"},
		TypeKinds: map[string]string{
			"class_declaration":  "name",
			"struct_declaration": "name",
			"record_declaration": "name",
		},
		DeclKinds: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"struct_declaration":    "name",
			"record_declaration":    "name",
			"enum_declaration":      "name",
		},
		CommentKinds:      []string{"comment"},
		DecorationKinds:   []string{"attribute_list"},
		ModulePath:        noModulePath,
		ModuleDeclaration: csharpFileNamespace,
		StdTypes: set(
			"Console", "String", "Object", "List", "Dictionary", "Task", "Exception",
			"Math", "IEnumerable", "IDisposable",
		),
		StdRoots:      set("System", "Microsoft"),
		SelfReceivers: []string{"this"},
		CallQuery: `
(invocation_expression function: (identifier) @callee)
(invocation_expression function: (member_access_expression expression: (_) @receiver name: (identifier) @method))
`,
	}
}

func cppSpec() *Spec {
	return &Spec{
		Name:       types.LanguageCPP,
		Extensions: []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp", ".hh", ".hxx"},
		Separator:  "::",
		grammar:    tree_sitter_cpp.Language,
		ScopeKinds: map[string]string{
			"namespace_definition": "name",
			"class_specifier":      "name",
			"struct_specifier":     "name",
			"enum_specifier":       "name",
		},
		FunctionKinds: []string{"function_definition", "lambda_expression"},
		ModuleKinds:   map[string]string{"namespace_definition": "name"},
		TypeKinds: map[string]string{
			"class_specifier":  "name",
			"struct_specifier": "name",
		},
		DeclKinds: map[string]string{
			"class_specifier":  "name",
			"struct_specifier": "name",
			"enum_specifier":   "name",
		},
		CommentKinds:  []string{"comment"},
		ModulePath:    noModulePath,
		StdTypes:      set("printf", "malloc", "free", "memcpy", "strlen", "size_t"),
		StdRoots:      set("std", "boost"),
		SelfReceivers: []string{"this"},
		CallQuery: `
(call_expression function: (identifier) @callee)
(call_expression function: (qualified_identifier) @callee)
(call_expression function: (field_expression argument: (_) @receiver field: (field_identifier) @method))
`,
		TypeQuery: `
(type_identifier) @type
`,
	}
}

func phpSpec() *Spec {
	return &Spec{
		Name:       types.LanguagePHP,
		Extensions: []string{".php", ".phtml"},
		Separator:  ".",
		grammar:    tree_sitter_php.LanguagePHP,
		ScopeKinds: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"trait_declaration":     "name",
			"enum_declaration":      "name",
		},
		FunctionKinds: []string{"function_definition", "method_declaration"},
		TypeKinds: map[string]string{
			"class_declaration": "name",
			"trait_declaration": "name",
			"enum_declaration":  "name",
		},
		DeclKinds: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"trait_declaration":     "name",
			"enum_declaration":      "name",
			"function_definition":   "name",
		},
		CommentKinds:      []string{"comment"},
		DecorationKinds:   []string{"attribute_list"},
		ModulePath:        noModulePath,
		ModuleDeclaration: phpNamespace,
		StdTypes: set(
			"Exception", "DateTime", "ArrayObject", "Closure", "stdClass",
			"count", "strlen", "array_map", "array_filter", "in_array", "sprintf", "json_encode",
		),
		SelfReceivers: []string{"$this", "self", "static"},
		CallQuery: `
(function_call_expression function: (name) @callee)
(member_call_expression object: (_) @receiver name: (name) @method)
(scoped_call_expression scope: (_) @receiver name: (name) @method)
`,
	}
}

func zigSpec() *Spec {
	return &Spec{
		Name:       types.LanguageZig,
		Extensions: []string{".zig"},
		Separator:  ".",
		grammar:    tree_sitter_zig.Language,
		ScopeKinds: map[string]string{
			"variable_declaration": "",
		},
		FunctionKinds: []string{"function_declaration"},
		CommentKinds:  []string{"comment"},
		ModulePath:    zigModulePath,
		StdRoots:      set("std", "builtin"),
	}
}

// javaPackage reads `package a.b.c;`.
func javaPackage(root *tree_sitter.Node, src []byte) []string {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Kind() != "package_declaration" {
			continue
		}
		for j := uint(0); j < child.NamedChildCount(); j++ {
			n := child.NamedChild(j)
			if n.Kind() == "scoped_identifier" || n.Kind() == "identifier" {
				return strings.Split(n.Utf8Text(src), ".")
			}
		}
	}
	return nil
}

// csharpFileNamespace reads a file-scoped `namespace A.B;` declaration.
// Block namespaces are scopes and handled by the scope walk.
func csharpFileNamespace(root *tree_sitter.Node, src []byte) []string {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Kind() != "file_scoped_namespace_declaration" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil {
			return strings.Split(name.Utf8Text(src), ".")
		}
	}
	return nil
}

// phpNamespace reads the first top-level `namespace A\B` declaration.
func phpNamespace(root *tree_sitter.Node, src []byte) []string {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Kind() != "namespace_definition" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil {
			return strings.Split(strings.Trim(name.Utf8Text(src), `\`), `\`)
		}
	}
	return nil
}
