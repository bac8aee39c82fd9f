// Package qname models structured qualified names. A qualified name is one
// of a small closed set of shapes; containment between names is decided per
// shape rather than by comparing rendered strings.
package qname

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape identifies which form a QualifiedName takes.
type Shape uint8

const (
	ShapeSimplePath Shape = iota
	ShapeInherentImpl
	ShapeTraitImpl
	ShapeTraitImplItem
	ShapeExternBlock
)

func (s Shape) String() string {
	switch s {
	case ShapeSimplePath:
		return "simple_path"
	case ShapeInherentImpl:
		return "inherent_impl"
	case ShapeTraitImpl:
		return "trait_impl"
	case ShapeTraitImplItem:
		return "trait_impl_item"
	case ShapeExternBlock:
		return "extern_block"
	default:
		return "unknown"
	}
}

func parseShape(s string) (Shape, error) {
	for sh := ShapeSimplePath; sh <= ShapeExternBlock; sh++ {
		if sh.String() == s {
			return sh, nil
		}
	}
	return 0, fmt.Errorf("unknown qualified name shape %q", s)
}

// DefaultSeparator is used when a name carries no separator of its own.
const DefaultSeparator = "::"

// QualifiedName is an immutable structured identifier.
type QualifiedName struct {
	shape     Shape
	segments  []string
	separator string
	scope     []string
	typePath  string
	traitPath string
	item      string
	linkage   string
}

// SimplePath builds an ordinary nested scope path.
func SimplePath(separator string, segments ...string) QualifiedName {
	if separator == "" {
		separator = DefaultSeparator
	}
	return QualifiedName{shape: ShapeSimplePath, segments: clone(segments), separator: separator}
}

// InherentImpl builds the name of an `impl Type` block.
func InherentImpl(scope []string, typePath string) QualifiedName {
	return QualifiedName{shape: ShapeInherentImpl, scope: clone(scope), typePath: typePath, separator: DefaultSeparator}
}

// TraitImpl builds the name of an `impl Trait for Type` block.
func TraitImpl(scope []string, typePath, traitPath string) QualifiedName {
	return QualifiedName{shape: ShapeTraitImpl, scope: clone(scope), typePath: typePath, traitPath: traitPath, separator: DefaultSeparator}
}

// TraitImplItem builds the name of a member living inside a trait impl.
func TraitImplItem(typePath, traitPath, item string) QualifiedName {
	return QualifiedName{shape: ShapeTraitImplItem, typePath: typePath, traitPath: traitPath, item: item, separator: DefaultSeparator}
}

// ExternBlock builds the name of a foreign-linkage block.
func ExternBlock(scope []string, linkage string) QualifiedName {
	return QualifiedName{shape: ShapeExternBlock, scope: clone(scope), linkage: linkage, separator: DefaultSeparator}
}

func clone(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func (q QualifiedName) Shape() Shape { return q.shape }
func (q QualifiedName) Separator() string { return q.separator }
func (q QualifiedName) TypePath() string { return q.typePath }
func (q QualifiedName) TraitPath() string { return q.traitPath }
func (q QualifiedName) Item() string { return q.item }
func (q QualifiedName) Linkage() string { return q.linkage }
func (q QualifiedName) Segments() []string { return clone(q.segments) }
func (q QualifiedName) Scope() []string { return clone(q.scope) }
func (q QualifiedName) IsZero() bool { return q.String() == "" }
func (q QualifiedName) Equal(o QualifiedName) bool { return q.shape == o.shape && q.String() == o.String() }

// String renders the canonical textual form.
func (q QualifiedName) String() string {
	switch q.shape {
	case ShapeInherentImpl:
		return q.prefixScope("impl " + q.typePath)
	case ShapeTraitImpl:
		return "<" + q.typePath + " as " + q.traitPath + ">"
	case ShapeTraitImplItem:
		return "<" + q.typePath + " as " + q.traitPath + ">::" + q.item
	case ShapeExternBlock:
		if q.linkage == "" {
			return q.prefixScope("extern")
		}
		return q.prefixScope(`extern "` + q.linkage + `"`)
	default:
		return strings.Join(q.segments, q.separator)
	}
}

func (q QualifiedName) prefixScope(tail string) string {
	if len(q.scope) == 0 {
		return tail
	}
	return strings.Join(q.scope, q.separator) + q.separator + tail
}

// InScope returns q with its lexical scope replaced. Only impl and extern
// shapes carry a scope; other shapes come back unchanged.
func (q QualifiedName) InScope(scope []string) QualifiedName {
	switch q.shape {
	case ShapeInherentImpl, ShapeTraitImpl, ShapeExternBlock:
		q.scope = clone(scope)
	}
	return q
}

// SimpleName is the name a reader would use for this entity unqualified.
func (q QualifiedName) SimpleName() string {
	switch q.shape {
	case ShapeInherentImpl:
		return lastSegment(q.typePath)
	case ShapeTraitImpl:
		return lastSegment(q.traitPath)
	case ShapeTraitImplItem:
		return q.item
	case ShapeExternBlock:
		return q.linkage
	default:
		if len(q.segments) == 0 {
			return ""
		}
		return q.segments[len(q.segments)-1]
	}
}

// Parent returns the name one level up, when the shape has one.
func (q QualifiedName) Parent() (QualifiedName, bool) {
	switch q.shape {
	case ShapeSimplePath:
		if len(q.segments) < 2 {
			return QualifiedName{}, false
		}
		return SimplePath(q.separator, q.segments[:len(q.segments)-1]...), true
	case ShapeTraitImplItem:
		return TraitImpl(nil, q.typePath, q.traitPath), true
	case ShapeInherentImpl, ShapeTraitImpl, ShapeExternBlock:
		if len(q.scope) == 0 {
			return QualifiedName{}, false
		}
		return SimplePath(q.separator, q.scope...), true
	}
	return QualifiedName{}, false
}

// Child appends one segment below a simple path. Other shapes gain the item
// as a simple path continuation of their rendered form.
func (q QualifiedName) Child(name string) QualifiedName {
	switch q.shape {
	case ShapeSimplePath:
		segs := append(clone(q.segments), name)
		return SimplePath(q.separator, segs...)
	case ShapeTraitImpl:
		return TraitImplItem(q.typePath, q.traitPath, name)
	}
	return SimplePath(q.separator, q.String(), name)
}

// IsChildOf reports whether q is nested under parent. The test is semantic:
// a trait impl item is nested under a module when either its type path or
// its trait path lies under the module, whatever the rendered text says.
func (q QualifiedName) IsChildOf(parent QualifiedName) bool {
	if q.Equal(parent) {
		return false
	}
	switch parent.shape {
	case ShapeSimplePath:
		return q.isUnderPath(parent.segments)
	case ShapeTraitImpl:
		return q.shape == ShapeTraitImplItem &&
			sameSegments(pathSegments(q.typePath), pathSegments(parent.typePath)) &&
			sameSegments(pathSegments(q.traitPath), pathSegments(parent.traitPath))
	case ShapeInherentImpl:
		t := pathSegments(parent.typePath)
		return q.shape == ShapeSimplePath && hasProperPrefix(q.segments, t)
	case ShapeExternBlock:
		if q.shape != ShapeSimplePath {
			return false
		}
		if len(parent.scope) == 0 {
			return len(q.segments) == 1
		}
		return hasProperPrefix(q.segments, parent.scope)
	}
	return false
}

func (q QualifiedName) isUnderPath(p []string) bool {
	if len(p) == 0 {
		return false
	}
	switch q.shape {
	case ShapeSimplePath:
		return hasProperPrefix(q.segments, p)
	case ShapeTraitImpl, ShapeTraitImplItem:
		if hasPrefix(q.scope, p) {
			return true
		}
		return hasPrefix(pathSegments(q.typePath), p) || hasPrefix(pathSegments(q.traitPath), p)
	case ShapeInherentImpl:
		if hasPrefix(q.scope, p) {
			return true
		}
		return len(q.scope) == 0 && hasPrefix(pathSegments(q.typePath), p)
	case ShapeExternBlock:
		return hasPrefix(q.scope, p)
	}
	return false
}

func hasPrefix(s, p []string) bool {
	if len(p) == 0 || len(s) < len(p) {
		return false
	}
	for i := range p {
		if s[i] != p[i] {
			return false
		}
	}
	return true
}

func hasProperPrefix(s, p []string) bool {
	return len(s) > len(p) && hasPrefix(s, p)
}

func sameSegments(a, b []string) bool {
	return len(a) == len(b) && hasPrefix(a, b)
}

// pathSegments splits a rendered type path with generics removed.
func pathSegments(path string) []string {
	path = stripGenerics(path)
	path = strings.TrimLeft(path, "&*")
	path = strings.TrimPrefix(path, "mut ")
	path = strings.TrimPrefix(path, "dyn ")
	segs, _ := splitTopLevel(strings.TrimSpace(path))
	return segs
}

func lastSegment(path string) string {
	segs := pathSegments(path)
	if len(segs) == 0 {
		return path
	}
	return segs[len(segs)-1]
}

func stripGenerics(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

type wireName struct {
	Shape     string   `json:"shape"`
	Rendered  string   `json:"rendered"`
	Segments  []string `json:"segments,omitempty"`
	Separator string   `json:"separator,omitempty"`
	Scope     []string `json:"scope,omitempty"`
	TypePath  string   `json:"type_path,omitempty"`
	TraitPath string   `json:"trait_path,omitempty"`
	Item      string   `json:"item,omitempty"`
	Linkage   string   `json:"linkage,omitempty"`
}

// MarshalJSON keeps the structure so a round trip never loses the shape.
func (q QualifiedName) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireName{
		Shape:     q.shape.String(),
		Rendered:  q.String(),
		Segments:  q.segments,
		Separator: q.separator,
		Scope:     q.scope,
		TypePath:  q.typePath,
		TraitPath: q.traitPath,
		Item:      q.item,
		Linkage:   q.linkage,
	})
}

func (q *QualifiedName) UnmarshalJSON(data []byte) error {
	var w wireName
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	shape, err := parseShape(w.Shape)
	if err != nil {
		return err
	}
	sep := w.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	*q = QualifiedName{
		shape:     shape,
		segments:  clone(w.Segments),
		separator: sep,
		scope:     clone(w.Scope),
		typePath:  w.TypePath,
		traitPath: w.TraitPath,
		item:      w.Item,
		linkage:   w.Linkage,
	}
	return nil
}
