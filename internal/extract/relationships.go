package extract

import (
	"context"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/match"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/types"
)

// owned is the set of reference sites attributed to one entity.
type owned struct {
	calls     []types.SourceReference
	types     []types.SourceReference
	imports   []types.SourceReference
	reexports []types.SourceReference
}

type siteKind int

const (
	siteCall siteKind = iota
	siteType
	siteImport
)

// collects declares which site kinds an extractor takes ownership of. A site
// belongs to the nearest enclosing winner whose extractor collects its kind.
var collects = map[rules.RelationshipExtractor][]siteKind{
	rules.RelFunction:  {siteCall, siteType},
	rules.RelMethod:    {siteCall, siteType},
	rules.RelModule:    {siteCall, siteImport},
	rules.RelStruct:    {siteType},
	rules.RelInterface: {siteType},
	rules.RelType:      {siteType},
	rules.RelImpl:      {siteType},
}

func accepts(rel rules.RelationshipExtractor, kind siteKind) bool {
	for _, k := range collects[rel] {
		if k == kind {
			return true
		}
	}
	return false
}

type relationshipFunc func(b *Builder, m *match.Match, e *types.Entity)

var relationshipExtractors = map[rules.RelationshipExtractor]relationshipFunc{
	rules.RelNone:      func(*Builder, *match.Match, *types.Entity) {},
	rules.RelFunction:  callableRelationships,
	rules.RelMethod:    callableRelationships,
	rules.RelClass:     classRelationships,
	rules.RelStruct:    structRelationships,
	rules.RelTrait:     traitRelationships,
	rules.RelInterface: interfaceRelationships,
	rules.RelImpl:      implRelationships,
	rules.RelModule:    moduleRelationships,
	rules.RelType:      typeRelationships,
}

func (b *Builder) ownedBy(main *tree_sitter.Node) *owned {
	if o, ok := b.sites[main.Id()]; ok {
		return o
	}
	return &owned{}
}

func callableRelationships(b *Builder, m *match.Match, e *types.Entity) {
	o := b.ownedBy(&m.Main)
	e.Relationships.Calls = o.calls
	e.Relationships.UsesTypes = o.types
}

func typeRelationships(b *Builder, m *match.Match, e *types.Entity) {
	e.Relationships.UsesTypes = b.ownedBy(&m.Main).types
}

func moduleRelationships(b *Builder, m *match.Match, e *types.Entity) {
	o := b.ownedBy(&m.Main)
	e.Relationships.Imports = o.imports
	e.Relationships.Reexports = o.reexports
	e.Relationships.Calls = o.calls
}

func classRelationships(b *Builder, m *match.Match, e *types.Entity) {
	h := b.heritage(&m.Main)
	e.Relationships.Extends = b.heritageRefs(h.extends, types.RefExtends)
	e.Relationships.Implements = b.heritageRefs(h.implements, types.RefImplements)
	e.Relationships.ExtendedTypes = b.heritageRefs(h.extended, types.RefExtends)
}

func structRelationships(b *Builder, m *match.Match, e *types.Entity) {
	h := b.heritage(&m.Main)
	e.Relationships.UsesTypes = b.ownedBy(&m.Main).types
	e.Relationships.Extends = b.heritageRefs(h.extends, types.RefExtends)
	e.Relationships.Implements = b.heritageRefs(h.implements, types.RefImplements)
}

func traitRelationships(b *Builder, m *match.Match, e *types.Entity) {
	h := b.heritage(&m.Main)
	e.Relationships.ExtendedTypes = b.heritageRefs(h.extended, types.RefExtends)
}

func interfaceRelationships(b *Builder, m *match.Match, e *types.Entity) {
	h := b.heritage(&m.Main)
	e.Relationships.ExtendedTypes = b.heritageRefs(h.extended, types.RefExtends)
	e.Relationships.UsesTypes = b.ownedBy(&m.Main).types
}

func implRelationships(b *Builder, m *match.Match, e *types.Entity) {
	main := &m.Main
	if t := main.ChildByFieldName("trait"); t != nil {
		if ref, ok := b.reference(b.names.ResolveReference(t.Utf8Text(b.src), main), t, types.RefImplements); ok {
			e.Relationships.ImplementsTrait = &ref
		}
	}
	if t := main.ChildByFieldName("type"); t != nil {
		if ref, ok := b.reference(b.names.ResolveReference(t.Utf8Text(b.src), main), t, types.RefUses); ok {
			e.Relationships.ForType = &ref
		}
	}
	e.Relationships.UsesTypes = b.ownedBy(main).types
}

func (b *Builder) heritageRefs(nodes []*tree_sitter.Node, kind types.ReferenceKind) []types.SourceReference {
	var out []types.SourceReference
	for _, n := range nodes {
		if ref, ok := b.reference(b.names.ResolveReference(n.Utf8Text(b.src), n), n, kind); ok {
			out = append(out, ref)
		}
	}
	return out
}

// collectSites runs the language's call and type queries once over the file
// and attributes every site to its owning entity. Imports come from the
// resolver's import map.
func (b *Builder) collectSites(ctx context.Context, root *tree_sitter.Node, callQ, typeQ *tree_sitter.Query) error {
	if callQ != nil {
		caps, err := match.Raw(ctx, callQ, root, b.src)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, c := range caps {
			b.callSite(c, seen)
		}
	}
	if typeQ != nil {
		caps, err := match.Raw(ctx, typeQ, root, b.src)
		if err != nil {
			return err
		}
		captured := make(map[uintptr]bool, len(caps))
		for _, c := range caps {
			captured[c[0].Node.Id()] = true
		}
		for _, c := range caps {
			b.typeSite(&c[0].Node, captured)
		}
	}
	for _, imp := range b.names.Imports() {
		node := imp.Node
		owner := b.owner(&node, siteImport)
		if owner == nil {
			continue
		}
		kind := types.RefImport
		if imp.Reexport {
			kind = types.RefReexport
		}
		ref, err := types.NewSourceReference(imp.Resolved.Target, imp.Resolved.IsExternal, b.location(&node), kind)
		if err != nil {
			continue
		}
		o := b.site(owner)
		if imp.Reexport {
			o.reexports = append(o.reexports, ref)
		} else {
			o.imports = append(o.imports, ref)
		}
	}
	return nil
}

func (b *Builder) site(owner *tree_sitter.Node) *owned {
	o, ok := b.sites[owner.Id()]
	if !ok {
		o = &owned{}
		b.sites[owner.Id()] = o
	}
	return o
}

// owner returns the nearest enclosing winner collecting kind. Imports may
// sit directly under a file entity, so the walk includes n itself.
func (b *Builder) owner(n *tree_sitter.Node, kind siteKind) *tree_sitter.Node {
	p := n.Parent()
	if kind == siteImport {
		p = n
	}
	for ; p != nil; p = p.Parent() {
		if rule, ok := b.owners[p.Id()]; ok && accepts(rule.Relationships, kind) {
			return p
		}
	}
	return nil
}

func (b *Builder) callSite(caps []match.Capture, seen map[string]bool) {
	var callee, receiver, method *tree_sitter.Node
	for i := range caps {
		switch caps[i].Name {
		case "callee":
			callee = &caps[i].Node
		case "receiver":
			receiver = &caps[i].Node
		case "method":
			method = &caps[i].Node
		}
	}
	at := callee
	if at == nil {
		at = method
	}
	if at == nil || at.IsError() || at.IsMissing() {
		return
	}
	owner := b.owner(at, siteCall)
	if owner == nil {
		return
	}

	var ref types.SourceReference
	var ok bool
	if callee != nil {
		ref, ok = b.reference(b.names.ResolveReference(callee.Utf8Text(b.src), callee), callee, types.RefCall)
	} else {
		ref, ok = b.reference(b.names.ResolveMethodCall(receiver, method.Utf8Text(b.src), method), method, types.RefCall)
	}
	if !ok {
		return
	}
	key := ref.Target + "@" + strconv.Itoa(ref.Location.StartByte)
	if seen[key] {
		return
	}
	seen[key] = true
	o := b.site(owner)
	o.calls = append(o.calls, ref)
}

func (b *Builder) typeSite(n *tree_sitter.Node, captured map[uintptr]bool) {
	if n.IsError() || n.IsMissing() {
		return
	}
	parent := n.Parent()
	if parent == nil {
		return
	}
	if name := parent.ChildByFieldName("name"); name != nil && name.Id() == n.Id() {
		return
	}
	if captured[parent.Id()] {
		return
	}
	text := strings.TrimSpace(n.Utf8Text(b.src))
	if text == "" || b.spec.Primitives[text] || text == b.spec.SelfType {
		return
	}
	if b.isGenericParam(n, text) {
		return
	}
	owner := b.owner(n, siteType)
	if owner == nil || b.inSpans(owner, n) {
		return
	}
	ref, ok := b.reference(b.names.ResolveReference(text, n), n, types.RefTypeUsage)
	if !ok {
		return
	}
	o := b.site(owner)
	for _, existing := range o.types {
		if existing.Target == ref.Target {
			return
		}
	}
	o.types = append(o.types, ref)
}

// isGenericParam reports whether text names a type parameter declared by
// an enclosing construct.
func (b *Builder) isGenericParam(n *tree_sitter.Node, text string) bool {
	for p := n; p != nil; p = p.Parent() {
		tp := p.ChildByFieldName("type_parameters")
		if tp == nil {
			continue
		}
		for i := uint(0); i < tp.NamedChildCount(); i++ {
			if genericName(tp.NamedChild(i), b.src) == text {
				return true
			}
		}
	}
	return false
}

func genericName(param *tree_sitter.Node, src []byte) string {
	switch param.Kind() {
	case "type_identifier", "identifier":
		return param.Utf8Text(src)
	}
	for _, f := range []string{"name", "left"} {
		if n := param.ChildByFieldName(f); n != nil {
			return n.Utf8Text(src)
		}
	}
	if param.NamedChildCount() > 0 {
		return genericName(param.NamedChild(0), src)
	}
	return ""
}

// inSpans reports whether n lies inside a subtree of owner whose types are
// recorded as something other than usages: heritage clauses, impl headers
// and method receivers.
func (b *Builder) inSpans(owner, n *tree_sitter.Node) bool {
	spans, ok := b.spans[owner.Id()]
	if !ok {
		h := b.heritage(owner)
		for _, s := range h.spans {
			spans = append(spans, *s)
		}
		for _, f := range []string{"trait", "receiver"} {
			if s := owner.ChildByFieldName(f); s != nil {
				spans = append(spans, *s)
			}
		}
		if owner.Kind() == "impl_item" {
			if s := owner.ChildByFieldName("type"); s != nil {
				spans = append(spans, *s)
			}
		}
		b.spans[owner.Id()] = spans
	}
	for i := range spans {
		if n.StartByte() >= spans[i].StartByte() && n.EndByte() <= spans[i].EndByte() {
			return true
		}
	}
	return false
}

// heritage is the supertype clauses of a type declaration.
type heritage struct {
	extends    []*tree_sitter.Node
	implements []*tree_sitter.Node
	extended   []*tree_sitter.Node
	spans      []*tree_sitter.Node
}

// leafContainers group supertypes without naming one themselves.
var leafContainers = map[string]bool{
	"type_list":                     true,
	"superclass":                    true,
	"super_interfaces":              true,
	"extends_interfaces":            true,
	"implements_clause":             true,
	"extends_clause":                true,
	"extends_type_clause":           true,
	"base_list":                     true,
	"base_class_clause":             true,
	"base_clause":                   true,
	"class_interface_clause":        true,
	"trait_bounds":                  true,
	"type_elem":                     true,
	"primary_constructor_base_type": true,
}

// leafSkips never name a supertype.
var leafSkips = map[string]bool{
	"keyword_argument": true,
	"access_specifier": true,
	"lifetime":         true,
	"type_arguments":   true,
	"argument_list":    true,
	"virtual":          true,
}

// leaves flattens a heritage clause into the supertype nodes it lists.
func (b *Builder) leaves(n *tree_sitter.Node) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		kind := c.Kind()
		switch {
		case b.spec.IsComment(kind), leafSkips[kind]:
		case leafContainers[kind]:
			out = append(out, b.leaves(c)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (b *Builder) heritage(main *tree_sitter.Node) heritage {
	var h heritage
	kind := main.Kind()
	isInterface := strings.Contains(kind, "interface")
	span := func(n *tree_sitter.Node) *tree_sitter.Node {
		h.spans = append(h.spans, n)
		return n
	}

	switch b.spec.Name {
	case types.LanguageTypeScript, types.LanguageTSX, types.LanguageJavaScript:
		for i := uint(0); i < main.NamedChildCount(); i++ {
			c := main.NamedChild(i)
			switch c.Kind() {
			case "class_heritage":
				span(c)
				for j := uint(0); j < c.NamedChildCount(); j++ {
					clause := c.NamedChild(j)
					switch clause.Kind() {
					case "extends_clause":
						h.extends = append(h.extends, b.leaves(clause)...)
					case "implements_clause":
						h.implements = append(h.implements, b.leaves(clause)...)
					default:
						// JavaScript: class A extends expr
						if !b.spec.IsComment(clause.Kind()) {
							h.extends = append(h.extends, clause)
						}
					}
				}
			case "extends_type_clause":
				h.extended = append(h.extended, b.leaves(span(c))...)
			}
		}

	case types.LanguagePython:
		if sup := main.ChildByFieldName("superclasses"); sup != nil {
			h.extends = b.leaves(span(sup))
		}

	case types.LanguageJava:
		if sup := main.ChildByFieldName("superclass"); sup != nil {
			h.extends = b.leaves(span(sup))
		}
		if ifaces := main.ChildByFieldName("interfaces"); ifaces != nil {
			h.implements = b.leaves(span(ifaces))
		}
		for i := uint(0); i < main.NamedChildCount(); i++ {
			if c := main.NamedChild(i); c.Kind() == "extends_interfaces" {
				h.extended = append(h.extended, b.leaves(span(c))...)
			}
		}

	case types.LanguageCSharp:
		for i := uint(0); i < main.NamedChildCount(); i++ {
			c := main.NamedChild(i)
			if c.Kind() != "base_list" {
				continue
			}
			bases := b.leaves(span(c))
			switch {
			case isInterface:
				h.extended = append(h.extended, bases...)
			case kind == "struct_declaration":
				h.implements = append(h.implements, bases...)
			default:
				for j, base := range bases {
					if j == 0 && !looksLikeInterface(b.baseName(base)) {
						h.extends = append(h.extends, base)
					} else {
						h.implements = append(h.implements, base)
					}
				}
			}
		}

	case types.LanguagePHP:
		for i := uint(0); i < main.NamedChildCount(); i++ {
			c := main.NamedChild(i)
			switch c.Kind() {
			case "base_clause":
				if isInterface {
					h.extended = append(h.extended, b.leaves(span(c))...)
				} else {
					h.extends = append(h.extends, b.leaves(span(c))...)
				}
			case "class_interface_clause":
				h.implements = append(h.implements, b.leaves(span(c))...)
			}
		}

	case types.LanguageCPP:
		for i := uint(0); i < main.NamedChildCount(); i++ {
			if c := main.NamedChild(i); c.Kind() == "base_class_clause" {
				h.extends = append(h.extends, b.leaves(span(c))...)
			}
		}

	case types.LanguageRust:
		if kind == "trait_item" {
			if bounds := main.ChildByFieldName("bounds"); bounds != nil {
				h.extended = b.leaves(span(bounds))
			}
		}

	case types.LanguageGo:
		typ := main.ChildByFieldName("type")
		if typ == nil {
			break
		}
		switch typ.Kind() {
		case "struct_type":
			for i := uint(0); i < typ.NamedChildCount(); i++ {
				list := typ.NamedChild(i)
				if list.Kind() != "field_declaration_list" {
					continue
				}
				for j := uint(0); j < list.NamedChildCount(); j++ {
					field := list.NamedChild(j)
					if field.Kind() != "field_declaration" || field.ChildByFieldName("name") != nil {
						continue
					}
					// Embedded field
					if t := field.ChildByFieldName("type"); t != nil {
						h.extends = append(h.extends, span(t))
					}
				}
			}
		case "interface_type":
			for i := uint(0); i < typ.NamedChildCount(); i++ {
				c := typ.NamedChild(i)
				switch c.Kind() {
				case "type_elem", "constraint_elem":
					h.extended = append(h.extended, b.leaves(span(c))...)
				case "type_identifier", "qualified_type":
					h.extended = append(h.extended, span(c))
				}
			}
		}
	}
	return h
}

// baseName is the unqualified, non-generic name of a base type node.
func (b *Builder) baseName(n *tree_sitter.Node) string {
	return types.SimpleNameOf(n.Utf8Text(b.src))
}

// looksLikeInterface follows the .NET naming convention IFoo.
func looksLikeInterface(name string) bool {
	if len(name) < 2 || name[0] != 'I' {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[1:])
	return unicode.IsUpper(r)
}
