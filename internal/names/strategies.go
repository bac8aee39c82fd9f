package names

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/match"
	"github.com/standardbeagle/codegraph/internal/qname"
	"github.com/standardbeagle/codegraph/internal/rules"
)

var (
	// ErrNoName means the construct legitimately has nothing to name it,
	// such as the root file of a crate without a package name.
	ErrNoName = errors.New("construct has no name")
	// ErrMissingCapture means a capture the rule needs did not participate.
	ErrMissingCapture = errors.New("required capture missing")
	// ErrInvalidNode means the name node is an error or missing node.
	ErrInvalidNode = errors.New("name node is a syntax error")
)

// Names is everything derived for one match.
type Names struct {
	Name          string
	QualifiedName qname.QualifiedName
	// Rendered is the expanded qualified name template before parsing.
	Rendered    string
	ParentScope string
	Aliases     []string
	// Scope is the rendered enclosing scope the templates saw.
	Scope     string
	Anonymous bool
}

// Derive computes the simple name, qualified name, parent scope and call
// aliases for a match. The enclosing entities of main must already be
// registered.
func (r *Resolver) Derive(m *match.Match) (Names, error) {
	rule := m.Rule
	main := &m.Main
	sep := r.spec.Separator

	scope := r.Scope(main, rule.SkipsScope)
	vals, err := r.templateValues(m, scope)
	if err != nil {
		return Names{}, err
	}

	out := Names{Scope: scope, Anonymous: rule.Anonymous}
	if rule.Name.Strategy != rules.NameQualified {
		if out.Name, err = r.simpleName(m, vals); err != nil {
			return Names{}, err
		}
		vals["name"] = out.Name
	}
	if rule.Anonymous {
		vals["anon"] = r.anonymous(rule, main, scope)
	}

	tmpl := rule.QualifiedName
	if tmpl == "" {
		if rule.Anonymous {
			tmpl = "{scope}" + sep + "{anon}"
		} else {
			tmpl = "{scope}" + sep + "{name}"
		}
	}
	out.Rendered = r.expand(tmpl, vals)
	if out.Rendered == "" {
		return Names{}, fmt.Errorf("%w: qualified name template %q renders empty", ErrNoName, tmpl)
	}
	qn, err := qname.ParseWithSeparator(out.Rendered, sep)
	if err != nil {
		return Names{}, err
	}
	if qn.Shape() == qname.ShapeTraitImpl {
		qn = qn.InScope(r.scopeSegments(scope, main))
	}
	out.QualifiedName = qn

	if rule.Name.Strategy == rules.NameQualified {
		if out.Name = qn.SimpleName(); out.Name == "" {
			out.Name = out.Rendered
		}
		vals["name"] = out.Name
	}

	parent := rule.ParentScope
	if parent == "" {
		if main.Parent() == nil {
			parent = "{module_parent}"
		} else {
			parent = "{scope}"
		}
	}
	out.ParentScope = r.expand(parent, vals)
	if out.ParentScope == out.Rendered {
		out.ParentScope = ""
	}

	for _, a := range rule.Aliases {
		alias := r.expand(a, vals)
		if alias != "" && alias != out.Rendered {
			out.Aliases = append(out.Aliases, alias)
		}
	}
	return out, nil
}

// scopeSegments turns a rendered scope into path segments for impl shapes.
func (r *Resolver) scopeSegments(scope string, main *tree_sitter.Node) []string {
	if scope == "" {
		return nil
	}
	if q, err := qname.ParseWithSeparator(scope, r.spec.Separator); err == nil && q.Shape() == qname.ShapeSimplePath {
		return q.Segments()
	}
	return r.ModuleAt(main)
}

// templateValues collects the builtin and capture placeholder values.
func (r *Resolver) templateValues(m *match.Match, scope string) (map[string]string, error) {
	module := r.ModuleAt(&m.Main)
	var moduleParent []string
	if len(module) > 0 {
		moduleParent = module[:len(module)-1]
	}
	vals := map[string]string{
		"scope":         scope,
		"package":       r.fc.PackageName,
		"module":        r.spec.JoinPath(module...),
		"module_parent": r.spec.JoinPath(moduleParent...),
	}
	for _, c := range m.Captures() {
		if _, ok := vals[c.Name]; ok {
			continue
		}
		node := c.Node
		switch c.Name {
		case "impl_type", "trait":
			if node.IsError() || node.IsMissing() {
				return nil, fmt.Errorf("%w: @%s", ErrInvalidNode, c.Name)
			}
			vals[c.Name] = r.ResolveTypeArgument(node.Utf8Text(r.src), &node).Name
		default:
			vals[c.Name] = strings.Join(strings.Fields(node.Utf8Text(r.src)), " ")
		}
	}
	return vals, nil
}

// expand substitutes placeholders and tidies separators left dangling by
// empty values.
func (r *Resolver) expand(tmpl string, vals map[string]string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:open])
		b.WriteString(vals[tmpl[open+1:open+end]])
		tmpl = tmpl[open+end+1:]
	}
	return r.tidy(b.String())
}

func (r *Resolver) tidy(s string) string {
	sep := r.spec.Separator
	s = strings.TrimSpace(s)
	for strings.Contains(s, sep+sep) {
		s = strings.ReplaceAll(s, sep+sep, sep)
	}
	s = strings.TrimPrefix(s, sep)
	s = strings.TrimSuffix(s, sep)
	return strings.TrimSpace(s)
}

// simpleName applies the rule's name strategy.
func (r *Resolver) simpleName(m *match.Match, vals map[string]string) (string, error) {
	rule := m.Rule
	switch rule.Name.Strategy {
	case rules.NameCapture:
		return r.captureName(m, rule.NameCaptures()[0])
	case rules.NameFallback:
		for _, c := range rule.NameCaptures() {
			if name, err := r.captureName(m, c); err == nil {
				return name, nil
			}
		}
		return "", fmt.Errorf("%w: none of %v", ErrMissingCapture, rule.NameCaptures())
	case rules.NameStatic:
		return rule.Name.Value, nil
	case rules.NameTemplate:
		name := r.expand(rule.Name.Value, vals)
		if name == "" {
			return "", fmt.Errorf("%w: name template %q renders empty", ErrNoName, rule.Name.Value)
		}
		return name, nil
	case rules.NameFilePath:
		module := r.ModuleAt(&m.Main)
		if len(module) == 0 {
			return "", ErrNoName
		}
		return module[len(module)-1], nil
	case rules.NamePackage:
		if r.fc.PackageName == "" {
			return "", ErrNoName
		}
		return r.fc.PackageName, nil
	case rules.NamePositional:
		return strconv.Itoa(r.position(&m.Main)), nil
	case rules.NameAnonymous:
		value := rule.Name.Value
		if value == "" {
			value = "anonymous"
		}
		pos := m.Main.StartPosition()
		return fmt.Sprintf("<%s@%d:%d>", value, pos.Row+1, pos.Column+1), nil
	}
	return "", fmt.Errorf("name strategy %q cannot be applied here", rule.Name.Strategy)
}

func (r *Resolver) captureName(m *match.Match, capture string) (string, error) {
	n, ok := m.Node(capture)
	if !ok {
		return "", fmt.Errorf("%w: @%s", ErrMissingCapture, capture)
	}
	if n.IsError() || n.IsMissing() {
		return "", fmt.Errorf("%w: @%s", ErrInvalidNode, capture)
	}
	name := strings.TrimSpace(n.Utf8Text(r.src))
	if name == "" {
		return "", fmt.Errorf("%w: @%s is empty", ErrMissingCapture, capture)
	}
	return name, nil
}

// position is the index of n among its parent's named children, not
// counting comments, attributes and other decorations.
func (r *Resolver) position(n *tree_sitter.Node) int {
	p := n.Parent()
	if p == nil {
		return 0
	}
	idx := 0
	for i := uint(0); i < p.NamedChildCount(); i++ {
		c := p.NamedChild(i)
		if c.Id() == n.Id() {
			return idx
		}
		if !r.spec.IsDecoration(c.Kind()) {
			idx++
		}
	}
	return idx
}

// anonymous builds the `{anon}` segment: the rule's value plus a hash of the
// enclosing scope, the start position, the index among anonymous siblings
// of the same rule and the entity type.
func (r *Resolver) anonymous(rule *rules.Rule, main *tree_sitter.Node, scope string) string {
	key := rule.ID + "\x00" + scope
	index := r.anon[key]
	r.anon[key] = index + 1

	pos := main.StartPosition()
	d := xxhash.New()
	_, _ = d.WriteString(scope)
	_, _ = fmt.Fprintf(d, "\x00%d:%d\x00%d\x00", pos.Row, pos.Column, index)
	_, _ = d.WriteString(string(rule.EntityType))

	value := rule.Name.Value
	if value == "" {
		value = "anonymous"
	}
	return fmt.Sprintf("%s#%016x", value, d.Sum64())
}
