package extract

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/match"
	"github.com/standardbeagle/codegraph/internal/names"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/types"
)

// Builder assembles entities for one parsed file. The engine registers the
// winning candidates and attributes reference sites before any Build call;
// Build itself only reads that state.
type Builder struct {
	spec  *lang.Spec
	src   []byte
	fc    names.FileContext
	names *names.Resolver

	// owners maps a winning main node to its rule.
	owners map[uintptr]*rules.Rule
	// sites holds the references attributed to each owner.
	sites map[uintptr]*owned
	// spans caches per-owner subtrees whose types are not usages.
	spans map[uintptr][]tree_sitter.Node
}

func newBuilder(r *names.Resolver) *Builder {
	return &Builder{
		spec:   r.Spec(),
		src:    r.Source(),
		fc:     r.Context(),
		names:  r,
		owners: make(map[uintptr]*rules.Rule),
		sites:  make(map[uintptr]*owned),
		spans:  make(map[uintptr][]tree_sitter.Node),
	}
}

// own records a winning candidate so reference sites can be attributed to it.
func (b *Builder) own(m *match.Match) {
	b.owners[m.Main.Id()] = m.Rule
}

// Build assembles the entity for a match and its derived names. The same
// match always yields the same entity.
func (b *Builder) Build(m *match.Match, n names.Names) *types.Entity {
	rule := m.Rule
	main := &m.Main

	e := &types.Entity{
		ID:                   EntityID(b.fc.RepositoryID, n.QualifiedName, rule.EntityType),
		RepositoryID:         b.fc.RepositoryID,
		Name:                 n.Name,
		QualifiedName:        n.QualifiedName,
		PathEntityIdentifier: pathIdentifier(b.spec, b.fc.Path, b.names.ModuleName(), n.QualifiedName),
		ParentScope:          n.ParentScope,
		EntityType:           rule.EntityType,
		Language:             b.spec.Name,
		Location:             b.location(main),
		Content:              main.Utf8Text(b.src),
		RuleID:               rule.ID,
	}
	e.Visibility = b.visibility(rule, main, n.Name)
	e.Documentation = b.documentation(main)

	if fn, ok := metadataExtractors[rule.Metadata]; ok {
		fn(b, m, e)
	}
	e.Metadata.IsAnonymous = n.Anonymous

	if fn, ok := relationshipExtractors[rule.Relationships]; ok {
		fn(b, m, e)
	}
	if len(n.Aliases) > 0 {
		e.Relationships.CallAliases = append([]string(nil), n.Aliases...)
	}
	return e
}

// location converts a node span to 1-based lines and columns.
func (b *Builder) location(n *tree_sitter.Node) types.Location {
	start, end := n.StartPosition(), n.EndPosition()
	return types.Location{
		FilePath:    b.fc.Path,
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
	}
}

// reference builds a SourceReference at node n, dropping empty targets.
func (b *Builder) reference(t names.Target, n *tree_sitter.Node, kind types.ReferenceKind) (types.SourceReference, bool) {
	ref, err := types.NewSourceReference(t.Name, t.IsExternal, b.location(n), kind)
	if err != nil {
		return types.SourceReference{}, false
	}
	return ref, true
}
