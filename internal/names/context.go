// Package names derives simple and qualified names for matched constructs
// and renders textual references into best-effort qualified targets.
//
// A Resolver is built per parsed file. It reads only that file's tree and
// the read-only FileContext; nothing is shared between files.
package names

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/lang"
)

// FileContext is the repository context a file is extracted in.
type FileContext struct {
	RepositoryID string
	PackageName  string
	// Path is repository-relative and slash separated.
	Path string
	// ModuleRoot is the directory of the manifest owning the file; module
	// paths are derived relative to it.
	ModuleRoot string
	// LocalRoots are the first module segments present in the repository.
	LocalRoots map[string]bool
}

// RelToModuleRoot returns p relative to the module root.
func (fc FileContext) RelToModuleRoot(p string) string {
	if fc.ModuleRoot == "" || fc.ModuleRoot == "." {
		return p
	}
	root := strings.TrimSuffix(fc.ModuleRoot, "/") + "/"
	return strings.TrimPrefix(p, root)
}

// Resolver derives names for one file. It is not safe for concurrent use.
type Resolver struct {
	spec *lang.Spec
	fc   FileContext
	root *tree_sitter.Node
	src  []byte

	module   []string
	decls    map[string]map[string]bool
	bindings map[string]ResolvedImport
	imports  []Import

	entities map[uintptr]string
	anon     map[string]int
}

// NewResolver prepares name resolution for a parsed file: the file module,
// the declarations of each in-file module and the import map.
func NewResolver(spec *lang.Spec, fc FileContext, root *tree_sitter.Node, src []byte) *Resolver {
	r := &Resolver{
		spec:     spec,
		fc:       fc,
		root:     root,
		src:      src,
		decls:    make(map[string]map[string]bool),
		bindings: make(map[string]ResolvedImport),
		entities: make(map[uintptr]string),
		anon:     make(map[string]int),
	}
	r.module = r.fileModule()
	r.collectDecls(root, r.module)
	r.collectImports(root)
	return r
}

// Spec returns the file's language.
func (r *Resolver) Spec() *lang.Spec { return r.spec }

// Context returns the file context.
func (r *Resolver) Context() FileContext { return r.fc }

// Source returns the file content.
func (r *Resolver) Source() []byte { return r.src }

// Module returns the segments of the file module.
func (r *Resolver) Module() []string { return append([]string(nil), r.module...) }

// ModuleName renders the file module, "" for a crate or package root
// without a name.
func (r *Resolver) ModuleName() string { return r.spec.JoinPath(r.module...) }

func (r *Resolver) fileModule() []string {
	var segs []string
	if r.spec.ModuleDeclaration != nil && r.root != nil {
		segs = r.spec.ModuleDeclaration(r.root, r.src)
	}
	if len(segs) == 0 && r.spec.ModulePath != nil {
		segs = r.spec.ModulePath(r.fc.RelToModuleRoot(r.fc.Path))
	}
	if r.spec.PrefixPackage && r.fc.PackageName != "" {
		segs = append([]string{r.fc.PackageName}, segs...)
	}
	return segs
}

// modulePath returns module segments for a repository-relative path, as
// the file at that path would compute them without reading it.
func (r *Resolver) modulePath(rel string) []string {
	var segs []string
	if r.spec.ModulePath != nil {
		segs = r.spec.ModulePath(r.fc.RelToModuleRoot(path.Clean(rel)))
	}
	if r.spec.PrefixPackage && r.fc.PackageName != "" {
		segs = append([]string{r.fc.PackageName}, segs...)
	}
	return segs
}

// ModuleAt returns the module segments in effect at n: the file module
// followed by any enclosing in-file modules or namespaces.
func (r *Resolver) ModuleAt(n *tree_sitter.Node) []string {
	var inner []string
	for p := n.Parent(); p != nil; p = p.Parent() {
		field, ok := r.spec.ModuleKinds[p.Kind()]
		if !ok {
			continue
		}
		if name := p.ChildByFieldName(field); name != nil {
			inner = append(r.splitName(name.Utf8Text(r.src)), inner...)
		}
	}
	return append(r.Module(), inner...)
}

func (r *Resolver) splitName(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, r.spec.Separator)
}

// collectDecls records, per in-file module, the names declared at module
// level. Bodies of functions and non-module scopes are not visited.
func (r *Resolver) collectDecls(n *tree_sitter.Node, module []string) {
	if n == nil {
		return
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		kind := c.Kind()
		if field, ok := r.spec.DeclKinds[kind]; ok {
			if name := c.ChildByFieldName(field); name != nil {
				r.declare(module, name.Utf8Text(r.src))
			}
		}
		if field, ok := r.spec.ModuleKinds[kind]; ok {
			if name := c.ChildByFieldName(field); name != nil {
				inner := append(append([]string(nil), module...), r.splitName(name.Utf8Text(r.src))...)
				r.collectDecls(c, inner)
			}
			continue
		}
		if r.spec.IsScopeKind(kind) || r.spec.IsFunctionKind(kind) {
			continue
		}
		r.collectDecls(c, module)
	}
}

func (r *Resolver) declare(module []string, name string) {
	key := strings.Join(module, "\x00")
	set, ok := r.decls[key]
	if !ok {
		set = make(map[string]bool)
		r.decls[key] = set
	}
	set[name] = true
}

// Declared reports whether name is declared at the level of module.
func (r *Resolver) Declared(module []string, name string) bool {
	return r.decls[strings.Join(module, "\x00")][name]
}

// Register records the qualified name built for an entity's main node so
// that constructs nested in it take it as their scope.
func (r *Resolver) Register(n *tree_sitter.Node, qualified string) {
	r.entities[n.Id()] = qualified
}

// Registered returns the qualified name registered for n.
func (r *Resolver) Registered(n *tree_sitter.Node) (string, bool) {
	qn, ok := r.entities[n.Id()]
	return qn, ok
}

// Scope renders the scope main lives in. The nearest ancestor that is
// itself an entity supplies its qualified name; named scope nodes in
// between are appended. Kinds in skip are passed over entirely.
func (r *Resolver) Scope(main *tree_sitter.Node, skip func(kind string) bool) string {
	var names []string
	for p := main.Parent(); p != nil; p = p.Parent() {
		kind := p.Kind()
		if skip != nil && skip(kind) {
			continue
		}
		if qn, ok := r.entities[p.Id()]; ok {
			return r.spec.JoinPath(append([]string{qn}, reversed(names)...)...)
		}
		if field, ok := r.spec.ScopeKinds[kind]; ok && field != "" {
			if n := p.ChildByFieldName(field); n != nil {
				names = append(names, n.Utf8Text(r.src))
			}
		}
	}
	return r.spec.JoinPath(append(r.Module(), reversed(names)...)...)
}

// EnclosingRegistered returns the nearest proper ancestor of n registered
// as an entity and accepted by keep.
func (r *Resolver) EnclosingRegistered(n *tree_sitter.Node, keep func(*tree_sitter.Node) bool) (*tree_sitter.Node, bool) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := r.entities[p.Id()]; ok && (keep == nil || keep(p)) {
			return p, true
		}
	}
	return nil, false
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
