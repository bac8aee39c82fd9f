package names

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/types"
)

// ResolvedImport is where an import path points.
type ResolvedImport struct {
	Target     string `json:"target"`
	SimpleName string `json:"simple_name"`
	IsExternal bool   `json:"is_external"`
}

// Import is one import or re-export statement target.
type Import struct {
	// Alias is the local name bound, "" for globs and side-effect imports.
	Alias    string
	Raw      string
	Resolved ResolvedImport
	Reexport bool
	Node     tree_sitter.Node
}

// Imports lists the file's imports in source order.
func (r *Resolver) Imports() []Import { return r.imports }

// Binding returns what a locally bound import name points to.
func (r *Resolver) Binding(alias string) (ResolvedImport, bool) {
	b, ok := r.bindings[alias]
	return b, ok
}

func (r *Resolver) addImport(n *tree_sitter.Node, alias, raw string, res ResolvedImport, reexport bool) {
	if res.Target == "" {
		return
	}
	res.SimpleName = types.SimpleNameOf(res.Target)
	r.imports = append(r.imports, Import{Alias: alias, Raw: raw, Resolved: res, Reexport: reexport, Node: *n})
	if alias != "" && alias != "_" && alias != "*" {
		r.bindings[alias] = res
	}
}

func (r *Resolver) collectImports(n *tree_sitter.Node) {
	if n == nil {
		return
	}
	switch r.spec.Name {
	case types.LanguageRust:
		if n.Kind() == "use_declaration" {
			r.rustUse(n)
			return
		}
	case types.LanguageTypeScript, types.LanguageTSX, types.LanguageJavaScript:
		switch n.Kind() {
		case "import_statement":
			r.scriptImport(n)
			return
		case "export_statement":
			if n.ChildByFieldName("source") != nil {
				r.scriptReexport(n)
				return
			}
		}
	case types.LanguagePython:
		switch n.Kind() {
		case "import_statement":
			r.pythonImport(n)
			return
		case "import_from_statement":
			r.pythonFromImport(n)
			return
		}
	case types.LanguageGo:
		if n.Kind() == "import_spec" {
			r.goImport(n)
			return
		}
	case types.LanguageJava:
		if n.Kind() == "import_declaration" {
			r.javaImport(n)
			return
		}
	case types.LanguagePHP:
		if n.Kind() == "namespace_use_clause" {
			r.phpUse(n)
			return
		}
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		r.collectImports(n.NamedChild(i))
	}
}

// ResolveImport resolves a raw import path as written in this file.
func (r *Resolver) ResolveImport(raw string) ResolvedImport {
	var res ResolvedImport
	switch r.spec.Name {
	case types.LanguageRust:
		res = r.resolveRustPath(r.module, strings.Split(raw, "::"))
	case types.LanguageTypeScript, types.LanguageTSX, types.LanguageJavaScript:
		res = r.resolveScriptModule(raw)
	case types.LanguagePython:
		res = r.resolvePythonModule(raw)
	case types.LanguageGo:
		res = r.resolveGoPackage(raw)
	default:
		res = r.resolveDotted(strings.ReplaceAll(strings.Trim(raw, `\`), `\`, "."))
	}
	res.SimpleName = types.SimpleNameOf(res.Target)
	return res
}

// Rust

func (r *Resolver) rustUse(n *tree_sitter.Node) {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	reexport := false
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == "visibility_modifier" && strings.HasPrefix(c.Utf8Text(r.src), "pub") {
			reexport = true
		}
	}
	module := r.ModuleAt(n)
	r.rustUseTree(arg, nil, module, reexport)
}

func (r *Resolver) rustUseTree(n *tree_sitter.Node, prefix, module []string, reexport bool) {
	text := func(x *tree_sitter.Node) []string {
		return strings.Split(strings.Join(strings.Fields(x.Utf8Text(r.src)), ""), "::")
	}
	add := func(segs []string, alias string) {
		raw := strings.Join(segs, "::")
		r.addImport(n, alias, raw, r.resolveRustPath(module, segs), reexport)
	}
	switch n.Kind() {
	case "identifier", "scoped_identifier", "crate", "super":
		segs := append(append([]string(nil), prefix...), text(n)...)
		add(segs, segs[len(segs)-1])
	case "self":
		// `use a::b::{self}` binds b
		if len(prefix) > 0 {
			add(prefix, prefix[len(prefix)-1])
		}
	case "use_as_clause":
		p, a := n.ChildByFieldName("path"), n.ChildByFieldName("alias")
		if p == nil {
			return
		}
		segs := append(append([]string(nil), prefix...), text(p)...)
		alias := ""
		if a != nil {
			alias = a.Utf8Text(r.src)
		}
		add(segs, alias)
	case "scoped_use_list":
		next := append([]string(nil), prefix...)
		if p := n.ChildByFieldName("path"); p != nil {
			next = append(next, text(p)...)
		}
		if list := n.ChildByFieldName("list"); list != nil {
			r.rustUseTree(list, next, module, reexport)
		}
	case "use_list":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			r.rustUseTree(n.NamedChild(i), prefix, module, reexport)
		}
	case "use_wildcard":
		segs := append([]string(nil), prefix...)
		for i := uint(0); i < n.NamedChildCount(); i++ {
			segs = append(segs, text(n.NamedChild(i))...)
		}
		if len(segs) > 0 {
			add(segs, "*")
		}
	}
}

// resolveRustPath resolves a use path relative to module.
func (r *Resolver) resolveRustPath(module, segs []string) ResolvedImport {
	if len(segs) == 0 || segs[0] == "" {
		return ResolvedImport{}
	}
	first, rest := segs[0], segs[1:]
	join := func(base []string, tail []string) string {
		return r.spec.JoinPath(append(append([]string(nil), base...), tail...)...)
	}
	switch first {
	case "crate":
		var root []string
		if r.fc.PackageName != "" {
			root = []string{r.fc.PackageName}
		}
		return ResolvedImport{Target: join(root, rest)}
	case "self":
		return ResolvedImport{Target: join(module, rest)}
	case "super":
		base := append([]string(nil), module...)
		for {
			if len(base) > 0 {
				base = base[:len(base)-1]
			}
			if len(rest) == 0 || rest[0] != "super" {
				break
			}
			rest = rest[1:]
		}
		return ResolvedImport{Target: join(base, rest)}
	}
	if r.spec.IsExternalRoot(first) {
		return ResolvedImport{Target: join(nil, segs), IsExternal: true}
	}
	if r.Declared(module, first) {
		return ResolvedImport{Target: join(module, segs)}
	}
	if r.fc.LocalRoots[first] {
		if r.fc.PackageName != "" && first != r.fc.PackageName {
			return ResolvedImport{Target: join([]string{r.fc.PackageName}, segs)}
		}
		return ResolvedImport{Target: join(nil, segs)}
	}
	// Another crate
	return ResolvedImport{Target: join(nil, segs), IsExternal: true}
}

// JavaScript and TypeScript

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`")
}

func (r *Resolver) scriptImport(n *tree_sitter.Node) {
	src := n.ChildByFieldName("source")
	if src == nil {
		return
	}
	raw := unquote(src.Utf8Text(r.src))
	mod := r.resolveScriptModule(raw)

	var clause *tree_sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == "import_clause" {
			clause = c
		}
	}
	if clause == nil {
		// Side-effect import
		r.addImport(n, "", raw, mod, false)
		return
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		c := clause.NamedChild(i)
		switch c.Kind() {
		case "identifier":
			name := c.Utf8Text(r.src)
			r.addImport(c, name, raw, r.member(mod, name), false)
		case "namespace_import":
			for j := uint(0); j < c.NamedChildCount(); j++ {
				if id := c.NamedChild(j); id.Kind() == "identifier" {
					r.addImport(c, id.Utf8Text(r.src), raw, mod, false)
				}
			}
		case "named_imports":
			r.scriptSpecifiers(c, "import_specifier", raw, mod, false)
		}
	}
}

func (r *Resolver) scriptReexport(n *tree_sitter.Node) {
	raw := unquote(n.ChildByFieldName("source").Utf8Text(r.src))
	mod := r.resolveScriptModule(raw)
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == "export_clause" {
			r.scriptSpecifiers(c, "export_specifier", raw, mod, true)
			return
		}
	}
	// export * from '...'
	r.addImport(n, "*", raw, mod, true)
}

func (r *Resolver) scriptSpecifiers(list *tree_sitter.Node, kind, raw string, mod ResolvedImport, reexport bool) {
	for i := uint(0); i < list.NamedChildCount(); i++ {
		spec := list.NamedChild(i)
		if spec.Kind() != kind {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := unquote(nameNode.Utf8Text(r.src))
		alias := name
		if a := spec.ChildByFieldName("alias"); a != nil {
			alias = unquote(a.Utf8Text(r.src))
		}
		r.addImport(spec, alias, raw, r.member(mod, name), reexport)
	}
}

func (r *Resolver) member(mod ResolvedImport, name string) ResolvedImport {
	return ResolvedImport{Target: r.spec.JoinPath(mod.Target, name), IsExternal: mod.IsExternal}
}

func (r *Resolver) resolveScriptModule(raw string) ResolvedImport {
	if !strings.HasPrefix(raw, ".") {
		return ResolvedImport{Target: raw, IsExternal: true}
	}
	joined := path.Join(path.Dir(r.fc.Path), raw)
	return ResolvedImport{Target: r.spec.JoinPath(r.modulePath(joined)...)}
}

// Python

func (r *Resolver) pythonImport(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "dotted_name":
			raw := c.Utf8Text(r.src)
			// `import a.b` binds a
			first := strings.Split(raw, ".")[0]
			r.addImport(c, "", raw, r.resolvePythonModule(raw), false)
			r.bindings[first] = r.resolvePythonModule(first)
		case "aliased_import":
			name, alias := c.ChildByFieldName("name"), c.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			raw := name.Utf8Text(r.src)
			r.addImport(c, alias.Utf8Text(r.src), raw, r.resolvePythonModule(raw), false)
		}
	}
}

func (r *Resolver) pythonFromImport(n *tree_sitter.Node) {
	modNode := n.ChildByFieldName("module_name")
	if modNode == nil {
		return
	}
	raw := modNode.Utf8Text(r.src)
	mod := r.resolvePythonModule(raw)
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Id() == modNode.Id() {
			continue
		}
		switch c.Kind() {
		case "dotted_name":
			name := c.Utf8Text(r.src)
			r.addImport(c, name, raw, r.member(mod, name), false)
		case "aliased_import":
			name, alias := c.ChildByFieldName("name"), c.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			r.addImport(c, alias.Utf8Text(r.src), raw, r.member(mod, name.Utf8Text(r.src)), false)
		case "wildcard_import":
			r.addImport(c, "*", raw, mod, false)
		}
	}
}

func (r *Resolver) resolvePythonModule(raw string) ResolvedImport {
	raw = strings.TrimSpace(raw)
	level := len(raw) - len(strings.TrimLeft(raw, "."))
	rest := strings.TrimLeft(raw, ".")
	var tail []string
	if rest != "" {
		tail = strings.Split(rest, ".")
	}
	if level > 0 {
		base := r.Module()
		// A package's __init__ is its own package; a module's package is its parent
		if path.Base(lang.StripExt(r.fc.Path)) != "__init__" && len(base) > 0 {
			base = base[:len(base)-1]
		}
		for i := 1; i < level && len(base) > 0; i++ {
			base = base[:len(base)-1]
		}
		return ResolvedImport{Target: r.spec.JoinPath(append(base, tail...)...)}
	}
	return r.resolveDotted(rest)
}

// Go

func (r *Resolver) goImport(n *tree_sitter.Node) {
	p := n.ChildByFieldName("path")
	if p == nil {
		return
	}
	raw := unquote(p.Utf8Text(r.src))
	res := r.resolveGoPackage(raw)
	alias := goPackageName(raw)
	if name := n.ChildByFieldName("name"); name != nil {
		alias = name.Utf8Text(r.src)
		if alias == "." {
			alias = "*"
		}
	}
	r.addImport(n, alias, raw, res, false)
}

// goPackageName guesses the package name of an import path, skipping a
// major version suffix.
func goPackageName(importPath string) string {
	segs := strings.Split(importPath, "/")
	last := segs[len(segs)-1]
	if len(segs) > 1 && len(last) > 1 && last[0] == 'v' && strings.Trim(last[1:], "0123456789") == "" {
		last = segs[len(segs)-2]
	}
	return strings.ReplaceAll(last, "-", "_")
}

func (r *Resolver) resolveGoPackage(raw string) ResolvedImport {
	segs := strings.Split(raw, "/")
	if pkg := r.fc.PackageName; pkg != "" {
		for i := len(segs) - 1; i >= 0; i-- {
			if segs[i] == pkg {
				return ResolvedImport{Target: r.spec.JoinPath(segs[i+1:]...)}
			}
		}
	}
	// Standard library and third party packages render by package name
	return ResolvedImport{Target: goPackageName(raw), IsExternal: true}
}

// Java, PHP

func (r *Resolver) javaImport(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Kind() != "scoped_identifier" && c.Kind() != "identifier" {
			continue
		}
		raw := c.Utf8Text(r.src)
		alias := raw[strings.LastIndex(raw, ".")+1:]
		if c.NextNamedSibling() != nil && c.NextNamedSibling().Kind() == "asterisk" {
			alias = "*"
		}
		r.addImport(n, alias, raw, r.resolveDotted(raw), false)
		return
	}
}

func (r *Resolver) phpUse(n *tree_sitter.Node) {
	var raw, alias string
	sawAs := false
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case !c.IsNamed() && c.Kind() == "as":
			sawAs = true
		case c.Kind() == "qualified_name" || c.Kind() == "name":
			if sawAs {
				alias = c.Utf8Text(r.src)
			} else if raw == "" {
				raw = c.Utf8Text(r.src)
			}
		}
	}
	if raw == "" {
		return
	}
	dotted := strings.ReplaceAll(strings.Trim(raw, `\`), `\`, ".")
	if alias == "" {
		alias = dotted[strings.LastIndex(dotted, ".")+1:]
	}
	r.addImport(n, alias, raw, r.resolveDotted(dotted), false)
}

// resolveDotted classifies an absolute dotted path by its first segment.
func (r *Resolver) resolveDotted(raw string) ResolvedImport {
	segs := strings.Split(raw, ".")
	target := r.spec.JoinPath(segs...)
	if len(segs) == 0 || segs[0] == "" {
		return ResolvedImport{}
	}
	if r.spec.IsExternalRoot(segs[0]) {
		return ResolvedImport{Target: target, IsExternal: true}
	}
	return ResolvedImport{Target: target, IsExternal: !r.fc.LocalRoots[segs[0]]}
}
