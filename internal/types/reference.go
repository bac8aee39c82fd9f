package types

import (
	"errors"
	"strings"
)

// ReferenceKind classifies an unresolved reference by how it was written.
type ReferenceKind string

const (
	RefCall       ReferenceKind = "call"
	RefTypeUsage  ReferenceKind = "type_usage"
	RefImport     ReferenceKind = "import"
	RefReexport   ReferenceKind = "reexport"
	RefExtends    ReferenceKind = "extends"
	RefImplements ReferenceKind = "implements"
	RefUses       ReferenceKind = "uses"
)

// ErrEmptyReference is returned when a reference has no target text.
var ErrEmptyReference = errors.New("reference target is empty")

// SourceReference is a textual pointer from one entity to another, produced
// during extraction and linked to an entity only by the resolver.
type SourceReference struct {
	Target     string        `json:"target"`
	SimpleName string        `json:"simple_name"`
	IsExternal bool          `json:"is_external"`
	Location   Location      `json:"location"`
	Kind       ReferenceKind `json:"ref_kind"`
}

// NewSourceReference builds a reference, deriving SimpleName from target.
func NewSourceReference(target string, external bool, loc Location, kind ReferenceKind) (SourceReference, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return SourceReference{}, ErrEmptyReference
	}
	return SourceReference{
		Target:     target,
		SimpleName: SimpleNameOf(target),
		IsExternal: external,
		Location:   loc,
		Kind:       kind,
	}, nil
}

// SimpleNameOf extracts the last path segment of a rendered name.
// For `<T as Tr>::m` it returns `m`; generic arguments are dropped.
func SimpleNameOf(name string) string {
	if i := strings.LastIndex(name, ">::"); i >= 0 {
		name = name[i+3:]
	}
	name = stripGenerics(name)
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	if i := strings.LastIndexAny(name, ".\\/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
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

// RelationshipRefs is the bundle of unresolved references an entity carries.
type RelationshipRefs struct {
	Calls           []SourceReference `json:"calls,omitempty"`
	UsesTypes       []SourceReference `json:"uses_types,omitempty"`
	Imports         []SourceReference `json:"imports,omitempty"`
	Reexports       []SourceReference `json:"reexports,omitempty"`
	ImplementsTrait *SourceReference  `json:"implements_trait,omitempty"`
	Implements      []SourceReference `json:"implements,omitempty"`
	ForType         *SourceReference  `json:"for_type,omitempty"`
	Extends         []SourceReference `json:"extends,omitempty"`
	ExtendedTypes   []SourceReference `json:"extended_types,omitempty"`
	CallAliases     []string          `json:"call_aliases,omitempty"`
}

// IsEmpty reports whether no reference of any kind was recorded.
func (r *RelationshipRefs) IsEmpty() bool {
	return len(r.Calls) == 0 && len(r.UsesTypes) == 0 && len(r.Imports) == 0 &&
		len(r.Reexports) == 0 && r.ImplementsTrait == nil && len(r.Implements) == 0 &&
		r.ForType == nil && len(r.Extends) == 0 && len(r.ExtendedTypes) == 0 &&
		len(r.CallAliases) == 0
}

// AllImplements merges the single trait reference with interface lists.
func (r *RelationshipRefs) AllImplements() []SourceReference {
	out := make([]SourceReference, 0, len(r.Implements)+1)
	if r.ImplementsTrait != nil {
		out = append(out, *r.ImplementsTrait)
	}
	return append(out, r.Implements...)
}
