package resolve

import (
	"fmt"

	"github.com/standardbeagle/codegraph/internal/types"
)

// Strategy is one lookup tactic of a chain.
type Strategy string

const (
	StrategyQualifiedName    Strategy = "qualified_name"
	StrategyCallAlias        Strategy = "call_alias"
	StrategyUniqueSimpleName Strategy = "unique_simple_name"
	StrategyPathIdentifier   Strategy = "path_identifier"
	// StrategyConstructor links an instantiation of an in-repo type to the
	// type's constructor. It is never configured; the chain falls back to it.
	StrategyConstructor Strategy = "constructor"
)

// Kind names a relationship kind the resolver runs.
type Kind string

const (
	KindContains   Kind = "contains"
	KindCalls      Kind = "calls"
	KindUses       Kind = "uses"
	KindImplements Kind = "implements"
	KindInherits   Kind = "inherits"
	KindExtends    Kind = "extends"
	KindImports    Kind = "imports"
	KindReexports  Kind = "reexports"
	KindAssociates Kind = "associates"
)

// Definition configures how one relationship kind is resolved.
type Definition struct {
	Kind         Kind
	Relationship types.RelationshipKind
	// Strategies are tried in order until one finds a target.
	Strategies []Strategy
	// AllowSelf keeps edges from an entity to itself.
	AllowSelf bool

	sources accepts
	targets accepts
	refs    func(*types.Entity) []types.SourceReference
}

// IsSource reports whether entities of type t are walked for this kind.
func (d *Definition) IsSource(t types.EntityType) bool { return d.sources == nil || d.sources(t) }

// IsTarget reports whether entities of type t can be linked to.
func (d *Definition) IsTarget(t types.EntityType) bool { return d.targets == nil || d.targets(t) }

// References returns the unresolved references of e for this kind.
func (d *Definition) References(e *types.Entity) []types.SourceReference {
	if !d.IsSource(e.EntityType) {
		return nil
	}
	return d.refs(e)
}

func oneOf(ts ...types.EntityType) accepts {
	return func(t types.EntityType) bool {
		for _, x := range ts {
			if x == t {
				return true
			}
		}
		return false
	}
}

func isCallable(t types.EntityType) bool  { return t.IsCallable() }
func isType(t types.EntityType) bool      { return t.IsType() }
func isContainer(t types.EntityType) bool { return t.IsContainer() }

// isImportable excludes members that only exist inside another entity.
func isImportable(t types.EntityType) bool {
	switch t {
	case types.EntityMethod, types.EntityProperty, types.EntityEnumVariant,
		types.EntityImpl, types.EntityExternBlock:
		return false
	}
	return true
}

// Definitions returns the built-in definitions in resolution order.
func Definitions() []*Definition {
	return []*Definition{
		{
			Kind:         KindContains,
			Relationship: types.RelContains,
			Strategies:   []Strategy{StrategyQualifiedName},
			targets:      isContainer,
			refs:         parentReference,
		},
		{
			Kind:         KindCalls,
			Relationship: types.RelCalls,
			Strategies:   []Strategy{StrategyQualifiedName, StrategyCallAlias, StrategyUniqueSimpleName},
			AllowSelf:    true,
			targets:      isCallable,
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.Calls },
		},
		{
			Kind:         KindUses,
			Relationship: types.RelUses,
			Strategies:   []Strategy{StrategyQualifiedName, StrategyUniqueSimpleName},
			targets:      isType,
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.UsesTypes },
		},
		{
			Kind:         KindImplements,
			Relationship: types.RelImplements,
			Strategies:   []Strategy{StrategyQualifiedName, StrategyUniqueSimpleName},
			sources:      oneOf(types.EntityImpl, types.EntityClass, types.EntityStruct, types.EntityEnum),
			targets:      oneOf(types.EntityTrait, types.EntityInterface),
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.AllImplements() },
		},
		{
			Kind:         KindInherits,
			Relationship: types.RelInheritsFrom,
			Strategies:   []Strategy{StrategyQualifiedName, StrategyUniqueSimpleName},
			sources:      oneOf(types.EntityClass, types.EntityStruct, types.EntityInterface),
			targets:      oneOf(types.EntityClass, types.EntityStruct, types.EntityInterface),
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.Extends },
		},
		{
			Kind:         KindExtends,
			Relationship: types.RelExtendsInterface,
			Strategies:   []Strategy{StrategyQualifiedName, StrategyUniqueSimpleName},
			sources:      oneOf(types.EntityTrait, types.EntityInterface),
			targets:      oneOf(types.EntityTrait, types.EntityInterface),
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.ExtendedTypes },
		},
		{
			Kind:         KindImports,
			Relationship: types.RelImports,
			Strategies:   []Strategy{StrategyPathIdentifier, StrategyQualifiedName, StrategyUniqueSimpleName},
			targets:      isImportable,
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.Imports },
		},
		{
			Kind:         KindReexports,
			Relationship: types.RelReexports,
			Strategies:   []Strategy{StrategyPathIdentifier, StrategyQualifiedName, StrategyUniqueSimpleName},
			targets:      isImportable,
			refs:         func(e *types.Entity) []types.SourceReference { return e.Relationships.Reexports },
		},
		{
			Kind:         KindAssociates,
			Relationship: types.RelAssociates,
			Strategies:   []Strategy{StrategyQualifiedName, StrategyUniqueSimpleName},
			sources:      oneOf(types.EntityImpl),
			targets:      isType,
			refs: func(e *types.Entity) []types.SourceReference {
				if e.Relationships.ForType == nil {
					return nil
				}
				return []types.SourceReference{*e.Relationships.ForType}
			},
		},
	}
}

// Kinds lists the built-in kinds in resolution order.
func Kinds() []Kind {
	defs := Definitions()
	out := make([]Kind, len(defs))
	for i, d := range defs {
		out[i] = d.Kind
	}
	return out
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown relationship kind %q", s)
}

// parentReference turns the parent scope into a reference so containment
// runs through the same chain as every other kind.
func parentReference(e *types.Entity) []types.SourceReference {
	if e.ParentScope == "" {
		return nil
	}
	ref, err := types.NewSourceReference(e.ParentScope, false, e.Location, types.RefUses)
	if err != nil {
		return nil
	}
	return []types.SourceReference{ref}
}

type outcome int

const (
	missed outcome = iota
	found
	ambiguous
	// mismatched means an in-repo entity carries the name but its type
	// cannot be a target of the kind.
	mismatched
)

// lookup is the result of running a chain for one reference.
type lookup struct {
	outcome  outcome
	target   *types.Entity
	strategy Strategy
	// other is the in-repo entity behind a mismatched lookup.
	other *types.Entity
}

// constructorNames are the member names a type's constructor is declared
// under. The type's own simple name covers Java, C# and C++.
var constructorNames = []string{"__init__", "constructor", "__construct"}

// chain runs the definition's strategies against the cache. A strategy that
// finds several candidates where one is required counts as ambiguous and
// never picks one; the chain moves on and, if nothing later matches, the
// whole lookup is ambiguous. A qualified name or path that only matches
// in-repo entities of the wrong type is mismatched, not missed, so it never
// becomes a stub.
func (d *Definition) chain(c *EntityCache, ref types.SourceReference, valid func(*types.Entity) bool) lookup {
	simple := ref.SimpleName
	if simple == "" {
		simple = types.SimpleNameOf(ref.Target)
	}
	sawAmbiguity := false
	var other *types.Entity
	for _, s := range d.Strategies {
		var candidates []*types.Entity
		unique := false
		switch s {
		case StrategyQualifiedName:
			candidates = c.ByQualifiedName(ref.Target)
		case StrategyPathIdentifier:
			candidates = c.ByPathIdentifier(ref.Target)
		case StrategyCallAlias:
			candidates, unique = c.ByAlias(ref.Target), true
		case StrategyUniqueSimpleName:
			candidates, unique = c.BySimpleName(simple), true
		}
		candidates = keep(candidates, valid)
		named := candidates
		candidates = d.targets.filter(candidates)
		switch {
		case len(candidates) == 0:
			if other == nil && len(named) > 0 && !unique {
				other = named[0]
			}
			continue
		case len(candidates) > 1 && unique:
			sawAmbiguity = true
			continue
		}
		return lookup{outcome: found, target: candidates[0], strategy: s}
	}
	if other != nil {
		if d.Kind == KindCalls && other.EntityType.IsType() {
			if ctor := d.constructor(c, other, valid); ctor != nil {
				return lookup{outcome: found, target: ctor, strategy: StrategyConstructor}
			}
		}
		return lookup{outcome: mismatched, other: other}
	}
	if sawAmbiguity {
		return lookup{outcome: ambiguous}
	}
	return lookup{outcome: missed}
}

// constructor finds the member that builds instances of typ.
func (d *Definition) constructor(c *EntityCache, typ *types.Entity, valid func(*types.Entity) bool) *types.Entity {
	names := append(constructorNames[:len(constructorNames):len(constructorNames)], typ.SimpleName())
	for _, name := range names {
		qn := typ.QualifiedName.Child(name).String()
		if ctors := d.targets.filter(keep(c.ByQualifiedName(qn), valid)); len(ctors) > 0 {
			return ctors[0]
		}
	}
	return nil
}

func keep(in []*types.Entity, valid func(*types.Entity) bool) []*types.Entity {
	if valid == nil {
		return in
	}
	out := in[:0:0]
	for _, e := range in {
		if valid(e) {
			out = append(out, e)
		}
	}
	return out
}
