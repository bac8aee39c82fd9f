package types

import "fmt"

// RelationshipKind labels a resolved edge.
type RelationshipKind string

const (
	RelContains         RelationshipKind = "CONTAINS"
	RelCalls            RelationshipKind = "CALLS"
	RelCalledBy         RelationshipKind = "CALLED_BY"
	RelUses             RelationshipKind = "USES"
	RelUsedBy           RelationshipKind = "USED_BY"
	RelImplements       RelationshipKind = "IMPLEMENTS"
	RelImplementedBy    RelationshipKind = "IMPLEMENTED_BY"
	RelInheritsFrom     RelationshipKind = "INHERITS_FROM"
	RelHasSubclass      RelationshipKind = "HAS_SUBCLASS"
	RelExtendsInterface RelationshipKind = "EXTENDS_INTERFACE"
	RelExtendedBy       RelationshipKind = "EXTENDED_BY"
	RelImports          RelationshipKind = "IMPORTS"
	RelImportedBy       RelationshipKind = "IMPORTED_BY"
	RelReexports        RelationshipKind = "REEXPORTS"
	RelReexportedBy     RelationshipKind = "REEXPORTED_BY"
	RelAssociates       RelationshipKind = "ASSOCIATES"
)

// Reciprocal returns the reverse label, or "" when the kind has none.
func (k RelationshipKind) Reciprocal() RelationshipKind {
	switch k {
	case RelCalls:
		return RelCalledBy
	case RelUses:
		return RelUsedBy
	case RelImplements:
		return RelImplementedBy
	case RelInheritsFrom:
		return RelHasSubclass
	case RelExtendsInterface:
		return RelExtendedBy
	case RelImports:
		return RelImportedBy
	case RelReexports:
		return RelReexportedBy
	}
	return ""
}

// Edge is a resolved (source, target, kind) triple. Edges live outside
// entities so reference cycles never become ownership cycles.
type Edge struct {
	SourceID string           `json:"source_id"`
	TargetID string           `json:"target_id"`
	Kind     RelationshipKind `json:"kind"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.SourceID, e.Kind, e.TargetID)
}

// ExternalIDPrefix marks stub ids for targets outside the repository.
const ExternalIDPrefix = "external::"

// ExternalStub is a placeholder node for a resolution target outside the
// repository's own entity set.
type ExternalStub struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PackageHint string `json:"package_hint,omitempty"`
}

// NewExternalStub normalizes name and derives id and package hint from it.
func NewExternalStub(name string) ExternalStub {
	name = NormalizeExternalName(name)
	return ExternalStub{
		ID:          ExternalIDPrefix + name,
		Name:        name,
		PackageHint: packageHint(name),
	}
}

func packageHint(name string) string {
	if len(name) > 0 && name[0] == '<' {
		return ""
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case ':':
			if i+1 < len(name) && name[i+1] == ':' {
				return name[:i]
			}
		case '.', '/', '\\':
			return name[:i]
		}
	}
	return ""
}
