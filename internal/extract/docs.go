package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/types"
)

// holderKinds wrap a single declaration whose doc comment sits in front of
// the holder rather than the declaration itself.
var holderKinds = map[string]bool{
	"lexical_declaration":  true,
	"variable_declaration": true,
	"type_declaration":     true,
	"const_declaration":    true,
	"var_declaration":      true,
	"field_declaration":    true,
	"expression_statement": true,
	"property_declaration": true,
	"assignment":           true,
}

// docAnchor climbs from main to the outermost node a leading comment
// attaches to: through export wrappers, decorated definitions and
// declaration holders such as `const a = ...` or `type T struct{}`.
func (b *Builder) docAnchor(main *tree_sitter.Node) *tree_sitter.Node {
	n := main
	for p := n.Parent(); p != nil; p = p.Parent() {
		if !b.spec.IsWrapper(p.Kind()) && !holderKinds[p.Kind()] {
			break
		}
		n = p
	}
	return n
}

// documentation collects the contiguous comment block in front of main,
// stepping over attributes. Python docstrings take priority.
func (b *Builder) documentation(main *tree_sitter.Node) string {
	if b.spec.Name == types.LanguagePython {
		if doc := b.docstring(main); doc != "" {
			return doc
		}
	}
	if main.Parent() == nil {
		return b.innerDoc(main)
	}

	anchor := b.docAnchor(main)
	var lines []string
	next := anchor
	for s := anchor.PrevSibling(); s != nil; s = s.PrevSibling() {
		kind := s.Kind()
		if b.spec.IsComment(kind) {
			// A blank line ends the block
			if s.EndPosition().Row+1 < next.StartPosition().Row {
				break
			}
			text := s.Utf8Text(b.src)
			if isInnerDoc(text) {
				break
			}
			lines = append([]string{cleanComment(text)}, lines...)
			next = s
			continue
		}
		if b.spec.IsDecoration(kind) {
			next = s
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// innerDoc reads `//!` comments at the top of a Rust file.
func (b *Builder) innerDoc(root *tree_sitter.Node) string {
	var lines []string
	for i := uint(0); i < root.ChildCount(); i++ {
		c := root.Child(i)
		if !b.spec.IsComment(c.Kind()) {
			break
		}
		text := c.Utf8Text(b.src)
		if !isInnerDoc(text) {
			break
		}
		lines = append(lines, cleanComment(text))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isInnerDoc(text string) bool {
	return strings.HasPrefix(text, "//!") || strings.HasPrefix(text, "/*!")
}

// cleanComment strips comment markers from one comment node.
func cleanComment(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "/*"):
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimPrefix(text, "*")
		text = strings.TrimPrefix(text, "!")
		text = strings.TrimSuffix(text, "*/")
		lines := strings.Split(text, "\n")
		for i, l := range lines {
			l = strings.TrimSpace(l)
			l = strings.TrimPrefix(l, "*")
			lines[i] = strings.TrimSpace(l)
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	case strings.HasPrefix(text, "//"):
		text = strings.TrimLeft(text, "/!")
	case strings.HasPrefix(text, "#"):
		text = strings.TrimLeft(text, "#")
	}
	return strings.TrimSpace(text)
}

// docstring returns the string literal opening a Python body.
func (b *Builder) docstring(main *tree_sitter.Node) string {
	body := main.ChildByFieldName("body")
	if main.Parent() == nil {
		body = main
	}
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Kind() != "string" {
		return ""
	}
	text := str.Utf8Text(b.src)
	text = strings.TrimLeft(text, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	return strings.TrimSpace(text)
}

// bodyFields name the node holding a callable's or type's body.
var bodyFields = []string{"body", "value"}

// signatureText is the declaration up to its body, in the manner of a
// one-line summary: `pub fn parse(src: &str) -> Result<Ast>`.
func (b *Builder) signatureText(n *tree_sitter.Node) string {
	end := n.EndByte()
	if fn := functionNode(n); fn != nil {
		if body := fn.ChildByFieldName("body"); body != nil {
			end = body.StartByte()
		}
	} else {
		for _, f := range bodyFields {
			if body := n.ChildByFieldName(f); body != nil {
				end = body.StartByte()
				break
			}
		}
	}
	start := n.StartByte()
	if p := n.Parent(); p != nil && holderKinds[p.Kind()] {
		start = p.StartByte()
	}
	if start > end || end > uint(len(b.src)) {
		return ""
	}
	sig := strings.TrimSpace(string(b.src[start:end]))
	sig = strings.TrimSuffix(sig, "{")
	sig = strings.TrimSuffix(sig, ";")
	sig = strings.TrimSuffix(sig, "=>")
	sig = strings.TrimSuffix(strings.TrimSpace(sig), ":")
	return strings.Join(strings.Fields(sig), " ")
}

// functionNode returns the callable n declares: n itself, or the function
// value of a declarator such as `const f = () => {}`.
func functionNode(n *tree_sitter.Node) *tree_sitter.Node {
	if n.ChildByFieldName("parameters") != nil {
		return n
	}
	if v := n.ChildByFieldName("value"); v != nil && v.ChildByFieldName("parameters") != nil {
		return v
	}
	// C and C++ keep parameters on the declarator
	if d := n.ChildByFieldName("declarator"); d != nil && d.ChildByFieldName("parameters") != nil {
		return n
	}
	return nil
}
