package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/types"
)

// modifierKinds are named nodes whose words act as declaration modifiers.
var modifierKinds = map[string]bool{
	"modifiers":              true,
	"modifier":               true,
	"accessibility_modifier": true,
	"visibility_modifier":    true,
	"function_modifiers":     true,
	"static_modifier":        true,
	"abstract_modifier":      true,
	"final_modifier":         true,
	"readonly_modifier":      true,
	"override_modifier":      true,
}

// modifiers gathers modifier words for main: keyword tokens on the
// declaration and its function value, and modifier nodes on the
// declaration and any holder around it (`private final int x`).
func (b *Builder) modifiers(main *tree_sitter.Node) map[string]bool {
	words := make(map[string]bool)
	tokens := func(n *tree_sitter.Node) {
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); !c.IsNamed() {
				words[c.Kind()] = true
			}
		}
	}
	named := func(n *tree_sitter.Node) {
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if !modifierKinds[c.Kind()] {
				continue
			}
			for _, w := range strings.FieldsFunc(c.Utf8Text(b.src), func(r rune) bool {
				return !unicode.IsLetter(r) && r != '_'
			}) {
				words[w] = true
			}
		}
	}

	tokens(main)
	if fn := functionNode(main); fn != nil && fn.Id() != main.Id() {
		tokens(fn)
	}
	n := main
	named(n)
	for p := n.Parent(); p != nil && (holderKinds[p.Kind()] || b.spec.IsWrapper(p.Kind())); p = p.Parent() {
		named(p)
		if b.spec.IsWrapper(p.Kind()) {
			words["export"] = true
		}
	}
	return words
}

// visibility applies the rule override, then the language's modifiers
// and defaults.
func (b *Builder) visibility(rule *rules.Rule, main *tree_sitter.Node, name string) types.Visibility {
	if rule.Visibility != "" {
		return rule.Visibility
	}
	if main.Parent() == nil {
		return types.VisibilityPublic
	}
	switch b.spec.Name {
	case types.LanguageRust:
		return b.rustVisibility(main)
	case types.LanguageTypeScript, types.LanguageTSX, types.LanguageJavaScript:
		return b.scriptVisibility(main)
	case types.LanguagePython:
		return pythonVisibility(name)
	case types.LanguageGo:
		return goVisibility(name)
	case types.LanguageJava:
		return b.javaVisibility(main)
	case types.LanguageCSharp:
		return b.csharpVisibility(main)
	case types.LanguagePHP:
		return b.phpVisibility(main)
	case types.LanguageCPP:
		return b.cppVisibility(main)
	case types.LanguageZig:
		if b.modifiers(main)["pub"] {
			return types.VisibilityPublic
		}
		return types.VisibilityPrivate
	}
	return types.VisibilityPublic
}

func (b *Builder) rustVisibility(main *tree_sitter.Node) types.Visibility {
	var vis *tree_sitter.Node
	for i := uint(0); i < main.NamedChildCount(); i++ {
		if c := main.NamedChild(i); c.Kind() == "visibility_modifier" {
			vis = c
			break
		}
	}
	// Tuple fields carry the modifier as a sibling of the type
	if vis == nil {
		if prev := main.PrevNamedSibling(); prev != nil && prev.Kind() == "visibility_modifier" {
			vis = prev
		}
	}
	if vis == nil {
		if main.Kind() == "macro_definition" && b.hasAttribute(main, "macro_export") {
			return types.VisibilityPublic
		}
		return types.VisibilityPrivate
	}
	text := strings.Join(strings.Fields(vis.Utf8Text(b.src)), "")
	switch {
	case text == "pub":
		return types.VisibilityPublic
	case text == "pub(self)":
		return types.VisibilityPrivate
	default:
		// pub(crate), pub(super), pub(in path)
		return types.VisibilityInternal
	}
}

func (b *Builder) scriptVisibility(main *tree_sitter.Node) types.Visibility {
	words := b.modifiers(main)
	switch {
	case words["private"]:
		return types.VisibilityPrivate
	case words["protected"]:
		return types.VisibilityProtected
	case words["public"]:
		return types.VisibilityPublic
	}
	switch main.Parent().Kind() {
	case "class_body", "interface_body", "object_type", "enum_body", "formal_parameters":
		return types.VisibilityPublic
	}
	if words["export"] {
		return types.VisibilityPublic
	}
	return types.VisibilityPrivate
}

func pythonVisibility(name string) types.Visibility {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return types.VisibilityPublic
	}
	if strings.HasPrefix(name, "_") {
		return types.VisibilityPrivate
	}
	return types.VisibilityPublic
}

func goVisibility(name string) types.Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return types.VisibilityPublic
	}
	return types.VisibilityInternal
}

func (b *Builder) javaVisibility(main *tree_sitter.Node) types.Visibility {
	words := b.modifiers(main)
	switch {
	case words["public"]:
		return types.VisibilityPublic
	case words["private"]:
		return types.VisibilityPrivate
	case words["protected"]:
		return types.VisibilityProtected
	}
	if b.insideKind(main, "interface_body", "annotation_type_body") {
		return types.VisibilityPublic
	}
	// package-private
	return types.VisibilityInternal
}

func (b *Builder) csharpVisibility(main *tree_sitter.Node) types.Visibility {
	words := b.modifiers(main)
	switch {
	case words["public"]:
		return types.VisibilityPublic
	case words["protected"]:
		return types.VisibilityProtected
	case words["private"]:
		return types.VisibilityPrivate
	case words["internal"]:
		return types.VisibilityInternal
	}
	if main.Kind() == "namespace_declaration" {
		return types.VisibilityPublic
	}
	if b.insideKind(main, "interface_declaration") {
		return types.VisibilityPublic
	}
	if b.insideKind(main, "class_declaration", "struct_declaration", "record_declaration") {
		return types.VisibilityPrivate
	}
	return types.VisibilityInternal
}

func (b *Builder) phpVisibility(main *tree_sitter.Node) types.Visibility {
	words := b.modifiers(main)
	switch {
	case words["private"]:
		return types.VisibilityPrivate
	case words["protected"]:
		return types.VisibilityProtected
	}
	return types.VisibilityPublic
}

// cppVisibility reads the nearest access specifier above a member, falling
// back to the class (private) or struct (public) default.
func (b *Builder) cppVisibility(main *tree_sitter.Node) types.Visibility {
	member := main
	for member.Parent() != nil && member.Parent().Kind() != "field_declaration_list" {
		member = member.Parent()
		if member.Kind() == "translation_unit" || member.Kind() == "namespace_definition" {
			return types.VisibilityPublic
		}
	}
	list := member.Parent()
	if list == nil {
		return types.VisibilityPublic
	}
	for s := member.PrevNamedSibling(); s != nil; s = s.PrevNamedSibling() {
		if s.Kind() != "access_specifier" {
			continue
		}
		switch strings.TrimSpace(s.Utf8Text(b.src)) {
		case "private":
			return types.VisibilityPrivate
		case "protected":
			return types.VisibilityProtected
		default:
			return types.VisibilityPublic
		}
	}
	if owner := list.Parent(); owner != nil && owner.Kind() == "class_specifier" {
		return types.VisibilityPrivate
	}
	return types.VisibilityPublic
}

// insideKind reports whether the nearest enclosing scope of n has one of
// kinds.
func (b *Builder) insideKind(n *tree_sitter.Node, kinds ...string) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		for _, k := range kinds {
			if p.Kind() == k {
				return true
			}
		}
		if b.spec.IsBoundary(p.Kind()) {
			return false
		}
	}
	return false
}
