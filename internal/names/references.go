package names

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/qname"
)

// Target is a reference rendered into a best-effort qualified name.
type Target struct {
	Name       string
	IsExternal bool
}

// sigils are reference decorations with no bearing on the target.
var sigils = []string{"&mut ", "&", "*const ", "*mut ", "*", "dyn ", "impl ", "mut ", "...", "?"}

// cleanReference strips sigils, lifetimes and whitespace from reference text.
func (r *Resolver) cleanReference(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for changed := true; changed; {
		changed = false
		for _, s := range sigils {
			if strings.HasPrefix(text, s) {
				text, changed = strings.TrimSpace(text[len(s):]), true
			}
		}
		// &'a T
		if strings.HasPrefix(text, "'") {
			if i := strings.IndexByte(text, ' '); i > 0 {
				text, changed = strings.TrimSpace(text[i:]), true
			}
		}
	}
	if strings.Contains(text, `\`) {
		text = strings.ReplaceAll(strings.Trim(text, `\`), `\`, r.spec.Separator)
	}
	return strings.TrimSuffix(strings.TrimSpace(text), "?")
}

// ResolveReference renders a type or path reference written at node at.
func (r *Resolver) ResolveReference(text string, at *tree_sitter.Node) Target {
	return r.resolve(text, at, false)
}

// ResolveTypeArgument is ResolveReference keeping generic arguments, so
// `From<u32>` and `From<String>` stay distinct.
func (r *Resolver) ResolveTypeArgument(text string, at *tree_sitter.Node) Target {
	return r.resolve(text, at, true)
}

func (r *Resolver) resolve(text string, at *tree_sitter.Node, keepGenerics bool) Target {
	text = r.cleanReference(text)
	if text == "" {
		return Target{}
	}
	if t, ok := r.resolveUFCS(text, at); ok {
		return t
	}

	base, generic := splitGeneric(text)
	t := r.resolvePath(base, at)
	if keepGenerics && generic != "" && t.Name != "" {
		t.Name += generic
	}
	return t
}

// resolveUFCS handles `<Type as Trait>::rest`. The result is external only
// when both sides are.
func (r *Resolver) resolveUFCS(text string, at *tree_sitter.Node) (Target, bool) {
	typePath, traitPath, rest, ok := qname.SplitTraitForm(text)
	if !ok {
		return Target{}, false
	}
	ty := r.resolve(typePath, at, true)
	tr := r.resolve(traitPath, at, true)
	name := "<" + ty.Name + " as " + tr.Name + ">"
	if rest != "" {
		name += "::" + rest
	}
	return Target{Name: name, IsExternal: ty.IsExternal && tr.IsExternal}, true
}

// splitGeneric separates `Vec<T>` into `Vec` and `<T>`. Generic arguments
// in the middle of a path are dropped.
func splitGeneric(text string) (string, string) {
	if strings.IndexByte(text, '<') <= 0 {
		return text, ""
	}
	var b strings.Builder
	suffix := ""
	for j := 0; j < len(text); j++ {
		if text[j] != '<' {
			b.WriteByte(text[j])
			continue
		}
		end := closeAngle(text, j)
		if end < 0 {
			break
		}
		if strings.TrimSpace(text[end+1:]) == "" {
			suffix = text[j : end+1]
		}
		j = end
	}
	return strings.TrimSuffix(strings.TrimSpace(b.String()), "::"), suffix
}

func closeAngle(s string, open int) int {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '<':
			depth++
		case '>':
			if j > 0 && s[j-1] == '-' {
				continue
			}
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// resolvePath applies the path rules to a generic-free path.
func (r *Resolver) resolvePath(text string, at *tree_sitter.Node) Target {
	segs := r.segments(text)
	if len(segs) == 0 {
		return Target{}
	}

	if r.spec.SelfType != "" && segs[0] == r.spec.SelfType {
		if enclosing := r.EnclosingType(at); enclosing != "" {
			return Target{Name: r.spec.JoinPath(append([]string{enclosing}, segs[1:]...)...)}
		}
	}

	switch segs[0] {
	case "crate", "self", "super":
		if r.spec.Separator == "::" {
			res := r.resolveRustPath(r.ModuleAt(at), segs)
			return Target{Name: res.Target, IsExternal: res.IsExternal}
		}
	}

	first := segs[0]
	if len(segs) == 1 && r.spec.Primitives[first] {
		return Target{Name: first, IsExternal: true}
	}
	if r.spec.IsExternalRoot(first) {
		return Target{Name: r.spec.JoinPath(segs...), IsExternal: true}
	}
	if b, ok := r.bindings[first]; ok {
		return Target{Name: r.spec.JoinPath(append([]string{b.Target}, segs[1:]...)...), IsExternal: b.IsExternal}
	}
	module := r.ModuleAt(at)
	if r.Declared(module, first) {
		return Target{Name: r.spec.JoinPath(append(module, segs...)...)}
	}
	if len(segs) == 1 {
		if r.spec.PackageScoped {
			return Target{Name: r.spec.JoinPath(append(module, first)...)}
		}
		return Target{Name: first}
	}
	if r.fc.LocalRoots[first] {
		if r.spec.PrefixPackage && r.fc.PackageName != "" && first != r.fc.PackageName {
			return Target{Name: r.spec.JoinPath(append([]string{r.fc.PackageName}, segs...)...)}
		}
		return Target{Name: r.spec.JoinPath(segs...)}
	}
	return Target{Name: r.spec.JoinPath(segs...), IsExternal: true}
}

// segments splits a path on either separator style.
func (r *Resolver) segments(text string) []string {
	text = strings.ReplaceAll(text, "::", ".")
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnclosingType renders the type a Self or this reference at n denotes, or
// "" outside any type.
func (r *Resolver) EnclosingType(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		field, ok := r.spec.TypeKinds[p.Kind()]
		if !ok {
			continue
		}
		name := p.ChildByFieldName(field)
		if name == nil {
			continue
		}
		text := name.Utf8Text(r.src)
		if segs := r.segments(text); len(segs) == 0 || segs[0] == r.spec.SelfType {
			continue
		}
		if scope, ok := r.typeScope(p); ok {
			return r.spec.JoinPath(scope, text)
		}
		return r.resolve(text, p, false).Name
	}
	return ""
}

// typeScope returns the scope a nested type declaration lives in when it
// sits inside another registered entity, such as a class inside a class.
func (r *Resolver) typeScope(typeNode *tree_sitter.Node) (string, bool) {
	if typeNode.Kind() == "impl_item" {
		return "", false
	}
	for p := typeNode.Parent(); p != nil; p = p.Parent() {
		if qn, ok := r.entities[p.Id()]; ok {
			return qn, true
		}
		if r.spec.IsBoundary(p.Kind()) {
			return "", false
		}
	}
	return "", false
}

// ResolveMethodCall renders the target of `receiver.method()` or
// `Receiver::method()` written at node at.
func (r *Resolver) ResolveMethodCall(receiver *tree_sitter.Node, method string, at *tree_sitter.Node) Target {
	if receiver == nil {
		return Target{Name: method}
	}
	recv := strings.TrimSpace(receiver.Utf8Text(r.src))
	switch {
	case r.spec.IsSelfReceiver(recv), r.spec.SelfType != "" && recv == r.spec.SelfType:
		if enclosing := r.EnclosingType(at); enclosing != "" {
			return Target{Name: r.spec.JoinPath(enclosing, method)}
		}
		return Target{Name: method}
	}
	if !isIdentifier(recv) {
		return Target{Name: method}
	}
	if typ := r.paramType(recv, at); typ != "" {
		t := r.resolve(typ, at, false)
		if t.Name != "" && !r.spec.Primitives[t.Name] {
			return Target{Name: r.spec.JoinPath(t.Name, method), IsExternal: t.IsExternal}
		}
	}
	if b, ok := r.bindings[recv]; ok {
		return Target{Name: r.spec.JoinPath(b.Target, method), IsExternal: b.IsExternal}
	}
	if r.spec.IsExternalRoot(recv) {
		return Target{Name: r.spec.JoinPath(recv, method), IsExternal: true}
	}
	if module := r.ModuleAt(at); r.Declared(module, recv) {
		return Target{Name: r.spec.JoinPath(append(module, recv, method)...)}
	}
	return Target{Name: method}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// paramType finds the declared type of a parameter or receiver named name
// in the callables enclosing at.
func (r *Resolver) paramType(name string, at *tree_sitter.Node) string {
	for p := at; p != nil; p = p.Parent() {
		if !r.spec.IsFunctionKind(p.Kind()) {
			continue
		}
		for _, field := range []string{"receiver", "parameters"} {
			list := p.ChildByFieldName(field)
			if list == nil {
				continue
			}
			for i := uint(0); i < list.NamedChildCount(); i++ {
				if typ, ok := r.paramDecl(list.NamedChild(i), name); ok {
					return typ
				}
			}
		}
	}
	return ""
}

func (r *Resolver) paramDecl(param *tree_sitter.Node, name string) (string, bool) {
	if param == nil {
		return "", false
	}
	var nameNode *tree_sitter.Node
	for _, f := range []string{"pattern", "name"} {
		if nameNode = param.ChildByFieldName(f); nameNode != nil {
			break
		}
	}
	if nameNode == nil {
		for i := uint(0); i < param.NamedChildCount(); i++ {
			if c := param.NamedChild(i); c.Kind() == "identifier" {
				nameNode = c
				break
			}
		}
	}
	if nameNode == nil || strings.TrimSpace(nameNode.Utf8Text(r.src)) != name {
		return "", false
	}
	typ := param.ChildByFieldName("type")
	if typ == nil {
		return "", false
	}
	// TypeScript wraps the type: `x: Foo`
	if typ.Kind() == "type_annotation" && typ.NamedChildCount() > 0 {
		typ = typ.NamedChild(0)
	}
	return typ.Utf8Text(r.src), true
}
