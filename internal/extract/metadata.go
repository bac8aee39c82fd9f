package extract

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/match"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/types"
)

// metadataFunc fills e.Metadata (and e.Signature) for one matched entity.
type metadataFunc func(b *Builder, m *match.Match, e *types.Entity)

// metadataExtractors resolves the closed set of extractor ids declared by
// rule tables. The rules package rejects ids missing here at load time.
var metadataExtractors = map[rules.MetadataExtractor]metadataFunc{
	rules.MetaNone:     func(*Builder, *match.Match, *types.Entity) {},
	rules.MetaFunction: callableMetadata,
	rules.MetaMethod:   callableMetadata,
	rules.MetaType:     typeMetadata,
	rules.MetaConstant: valueMetadata,
	rules.MetaProperty: valueMetadata,
	rules.MetaImpl:     implMetadata,
	rules.MetaModule:   moduleMetadata,
}

// decorationNodeKinds carry decorators, attributes or annotations.
var decorationNodeKinds = map[string]bool{
	"decorator":         true,
	"attribute_item":    true,
	"attribute_list":    true,
	"annotation":        true,
	"marker_annotation": true,
	"attribute":         true,
}

func callableMetadata(b *Builder, m *match.Match, e *types.Entity) {
	main := &m.Main
	words := b.modifiers(main)
	sig := b.signature(main)
	e.Signature = sig

	md := &e.Metadata
	md.Decorators = b.decorators(main)
	md.IsAsync = words["async"]
	md.IsConst = words["const"] && b.spec.Name == types.LanguageRust
	md.IsStatic = words["static"]
	md.IsAbstract = words["abstract"]
	md.IsGeneric = sig != nil && len(sig.Generics) > 0

	fn := functionNode(main)
	if e.EntityType == types.EntityMethod && fn != nil {
		if fn.ChildByFieldName("body") == nil && b.spec.Name != types.LanguageCPP {
			md.IsAbstract = true
		}
		// Rust associated functions have no self parameter
		if b.spec.Name == types.LanguageRust && !hasChildKind(fn.ChildByFieldName("parameters"), "self_parameter") {
			md.IsStatic = true
		}
	}
	md.IsTest = b.isTest(e.Name, md.Decorators)
}

func typeMetadata(b *Builder, m *match.Match, e *types.Entity) {
	main := &m.Main
	words := b.modifiers(main)
	md := &e.Metadata
	md.Decorators = b.decorators(main)
	md.IsAbstract = words["abstract"] || main.Kind() == "abstract_class_declaration"
	if generics := b.generics(main); len(generics) > 0 {
		md.IsGeneric = true
		md.Attributes = setAttr(md.Attributes, "generics", strings.Join(generics, ", "))
	}
	if derives := deriveList(md.Decorators); len(derives) > 0 {
		md.Attributes = setAttr(md.Attributes, "derives", strings.Join(derives, ","))
	}
	if value := main.ChildByFieldName("type"); value != nil && e.EntityType == types.EntityTypeAlias {
		md.Attributes = setAttr(md.Attributes, "aliased", compact(value.Utf8Text(b.src)))
	}
}

func valueMetadata(b *Builder, m *match.Match, e *types.Entity) {
	main := &m.Main
	words := b.modifiers(main)
	md := &e.Metadata
	md.Decorators = b.decorators(main)
	md.IsStatic = words["static"] || e.EntityType == types.EntityStatic
	md.IsConst = e.EntityType == types.EntityConstant || words["const"] || words["final"] || words["readonly"]
	if typ := b.declaredType(main); typ != "" {
		md.Attributes = setAttr(md.Attributes, "type", typ)
	}
}

func implMetadata(b *Builder, m *match.Match, e *types.Entity) {
	main := &m.Main
	md := &e.Metadata
	md.Decorators = b.decorators(main)
	if generics := b.generics(main); len(generics) > 0 {
		md.IsGeneric = true
		md.Attributes = setAttr(md.Attributes, "generics", strings.Join(generics, ", "))
	}
	if t := main.ChildByFieldName("type"); t != nil {
		md.Attributes = setAttr(md.Attributes, "for_type", compact(t.Utf8Text(b.src)))
	}
	if t := main.ChildByFieldName("trait"); t != nil {
		md.Attributes = setAttr(md.Attributes, "trait", compact(t.Utf8Text(b.src)))
	}
}

func moduleMetadata(b *Builder, m *match.Match, e *types.Entity) {
	kind := "inline"
	if m.Main.Parent() == nil {
		kind = "file"
	}
	e.Metadata.Attributes = setAttr(e.Metadata.Attributes, "kind", kind)
}

func setAttr(attrs map[string]string, key, value string) map[string]string {
	if value == "" {
		return attrs
	}
	if attrs == nil {
		attrs = make(map[string]string)
	}
	attrs[key] = value
	return attrs
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasChildKind(n *tree_sitter.Node, kind string) bool {
	if n == nil {
		return false
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if n.NamedChild(i).Kind() == kind {
			return true
		}
	}
	return false
}

// signature reads parameters, return type and generics of a callable.
func (b *Builder) signature(main *tree_sitter.Node) *types.Signature {
	sig := &types.Signature{Text: b.signatureText(main)}
	fn := functionNode(main)
	if fn == nil {
		if sig.Text == "" {
			return nil
		}
		return sig
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		if d := fn.ChildByFieldName("declarator"); d != nil {
			params = d.ChildByFieldName("parameters")
		}
	}
	if params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			if b.spec.IsComment(p.Kind()) || p.Kind() == "self_parameter" {
				continue
			}
			if param, ok := b.parameter(p); ok {
				sig.Parameters = append(sig.Parameters, param)
			}
		}
	}
	sig.ReturnType = b.returnType(fn)
	sig.Generics = b.generics(fn)
	if len(sig.Generics) == 0 && fn.Id() != main.Id() {
		sig.Generics = b.generics(main)
	}
	return sig
}

func (b *Builder) parameter(p *tree_sitter.Node) (types.Parameter, bool) {
	if p.Kind() == "identifier" {
		return types.Parameter{Name: p.Utf8Text(b.src)}, true
	}
	var name *tree_sitter.Node
	for _, f := range []string{"pattern", "name", "declarator"} {
		if name = p.ChildByFieldName(f); name != nil {
			break
		}
	}
	if name == nil {
		for i := uint(0); i < p.NamedChildCount(); i++ {
			if c := p.NamedChild(i); c.Kind() == "identifier" {
				name = c
				break
			}
		}
	}
	if name == nil {
		return types.Parameter{}, false
	}
	param := types.Parameter{Name: compact(name.Utf8Text(b.src))}
	if t := p.ChildByFieldName("type"); t != nil {
		param.Type = typeText(t, b.src)
	}
	return param, true
}

// returnType reads the declared result of a callable.
func (b *Builder) returnType(fn *tree_sitter.Node) string {
	for _, f := range []string{"return_type", "result", "returns"} {
		if t := fn.ChildByFieldName(f); t != nil {
			return typeText(t, b.src)
		}
	}
	switch b.spec.Name {
	case types.LanguageJava, types.LanguageCSharp, types.LanguageCPP:
		if t := fn.ChildByFieldName("type"); t != nil {
			return typeText(t, b.src)
		}
	}
	return ""
}

// declaredType is the annotated type of a constant, field or property.
func (b *Builder) declaredType(main *tree_sitter.Node) string {
	for n := main; n != nil; n = n.Parent() {
		if t := n.ChildByFieldName("type"); t != nil {
			return typeText(t, b.src)
		}
		if !holderKinds[n.Kind()] && n.Id() != main.Id() {
			break
		}
	}
	// Tuple fields are the type node itself
	if main.Parent() != nil && main.Parent().Kind() == "ordered_field_declaration_list" {
		return compact(main.Utf8Text(b.src))
	}
	return ""
}

// typeText unwraps TypeScript's `: T` annotation.
func typeText(t *tree_sitter.Node, src []byte) string {
	if t.Kind() == "type_annotation" && t.NamedChildCount() > 0 {
		t = t.NamedChild(0)
	}
	return compact(t.Utf8Text(src))
}

// generics lists the declared type parameters of n.
func (b *Builder) generics(n *tree_sitter.Node) []string {
	tp := n.ChildByFieldName("type_parameters")
	if tp == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < tp.NamedChildCount(); i++ {
		c := tp.NamedChild(i)
		if b.spec.IsComment(c.Kind()) {
			continue
		}
		out = append(out, compact(c.Utf8Text(b.src)))
	}
	return out
}

// decorators lists decorators, attributes and annotations attached to main,
// without their markers: `derive(Debug)`, `app.route("/")`, `Override`.
func (b *Builder) decorators(main *tree_sitter.Node) []string {
	var out []string
	add := func(n *tree_sitter.Node) {
		if text := cleanDecorator(n.Utf8Text(b.src)); text != "" {
			out = append(out, text)
		}
	}
	// Leading siblings, in source order
	var leading []*tree_sitter.Node
	for s := b.docAnchor(main).PrevSibling(); s != nil; s = s.PrevSibling() {
		if decorationNodeKinds[s.Kind()] {
			leading = append([]*tree_sitter.Node{s}, leading...)
			continue
		}
		if !b.spec.IsComment(s.Kind()) {
			break
		}
	}
	for _, s := range leading {
		add(s)
	}
	// Children of the declaration, its decorated wrapper and its modifiers
	scan := func(n *tree_sitter.Node) {
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			switch {
			case decorationNodeKinds[c.Kind()]:
				add(c)
			case c.Kind() == "modifiers":
				for j := uint(0); j < c.NamedChildCount(); j++ {
					if a := c.NamedChild(j); decorationNodeKinds[a.Kind()] {
						add(a)
					}
				}
			}
		}
	}
	scan(main)
	if p := main.Parent(); p != nil && (b.spec.IsWrapper(p.Kind()) || holderKinds[p.Kind()]) {
		scan(p)
	}
	return out
}

func cleanDecorator(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "@")
	text = strings.TrimPrefix(text, "#!")
	text = strings.TrimPrefix(text, "#")
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		text = text[1 : len(text)-1]
	}
	return compact(text)
}

// hasAttribute reports whether a decorator of main starts with name.
func (b *Builder) hasAttribute(main *tree_sitter.Node, name string) bool {
	for _, d := range b.decorators(main) {
		if d == name || strings.HasPrefix(d, name+"(") {
			return true
		}
	}
	return false
}

// deriveList extracts the traits of `#[derive(A, B)]` attributes.
func deriveList(decorators []string) []string {
	var out []string
	for _, d := range decorators {
		if !strings.HasPrefix(d, "derive(") || !strings.HasSuffix(d, ")") {
			continue
		}
		for _, t := range strings.Split(d[len("derive("):len(d)-1], ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// isTest recognises test functions by attribute or naming convention.
func (b *Builder) isTest(name string, decorators []string) bool {
	for _, d := range decorators {
		base := d
		if i := strings.IndexByte(base, '('); i >= 0 {
			base = base[:i]
		}
		base = base[strings.LastIndexAny(base, ":.")+1:]
		switch base {
		case "test", "Test", "Fact", "Theory", "TestMethod", "ParameterizedTest":
			return true
		}
	}
	switch b.spec.Name {
	case types.LanguageGo:
		return strings.HasSuffix(b.fc.Path, "_test.go") &&
			(strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Fuzz"))
	case types.LanguagePython:
		return strings.HasPrefix(name, "test_") || strings.HasPrefix(path.Base(b.fc.Path), "test_") && strings.HasPrefix(name, "test")
	}
	return false
}
