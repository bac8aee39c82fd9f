package resolve

import (
	"github.com/standardbeagle/codegraph/internal/types"
)

// EntityCache indexes one repository's entities for lookup. It is built once
// per resolution pass and is read-only afterwards, so every relationship
// kind can query it concurrently.
type EntityCache struct {
	entities []*types.Entity
	byID     map[string]*types.Entity
	byQName  map[string][]*types.Entity
	byPath   map[string][]*types.Entity
	bySimple map[string][]*types.Entity
	byAlias  map[string][]*types.Entity
}

// NewEntityCache indexes entities. Order is preserved, so every lookup that
// yields several candidates yields them in input order.
func NewEntityCache(entities []*types.Entity) *EntityCache {
	c := &EntityCache{
		entities: entities,
		byID:     make(map[string]*types.Entity, len(entities)),
		byQName:  make(map[string][]*types.Entity, len(entities)),
		byPath:   make(map[string][]*types.Entity, len(entities)),
		bySimple: make(map[string][]*types.Entity, len(entities)),
		byAlias:  make(map[string][]*types.Entity),
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		if _, dup := c.byID[e.ID]; dup {
			continue
		}
		c.byID[e.ID] = e
		if qn := e.QualifiedName.String(); qn != "" {
			c.byQName[qn] = append(c.byQName[qn], e)
		}
		if e.PathEntityIdentifier != "" {
			c.byPath[e.PathEntityIdentifier] = append(c.byPath[e.PathEntityIdentifier], e)
		}
		if name := e.SimpleName(); name != "" {
			c.bySimple[name] = append(c.bySimple[name], e)
		}
		for _, alias := range e.Relationships.CallAliases {
			c.byAlias[alias] = append(c.byAlias[alias], e)
		}
	}
	return c
}

// Len is the number of distinct entities indexed.
func (c *EntityCache) Len() int { return len(c.byID) }

// Entities returns the indexed entities in input order.
func (c *EntityCache) Entities() []*types.Entity { return c.entities }

// Entity looks an entity up by id.
func (c *EntityCache) Entity(id string) (*types.Entity, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// ByQualifiedName returns every entity whose rendered qualified name is qn.
// Several are returned when entities of different types share a name.
func (c *EntityCache) ByQualifiedName(qn string) []*types.Entity { return c.byQName[qn] }

// ByPathIdentifier returns the entities with the given path identifier.
func (c *EntityCache) ByPathIdentifier(id string) []*types.Entity { return c.byPath[id] }

// BySimpleName returns every entity with the given simple name.
func (c *EntityCache) BySimpleName(name string) []*types.Entity { return c.bySimple[name] }

// ByAlias returns the entities declaring alias as an alternate call name.
func (c *EntityCache) ByAlias(alias string) []*types.Entity { return c.byAlias[alias] }

// IsAmbiguous reports whether more than one entity has the simple name.
func (c *EntityCache) IsAmbiguous(name string) bool { return len(c.bySimple[name]) > 1 }

// ResolveUniqueSimpleName returns the id of the only entity named name. It
// reports false when there is none or more than one.
func (c *EntityCache) ResolveUniqueSimpleName(name string) (string, bool) {
	candidates := c.bySimple[name]
	if len(candidates) != 1 {
		return "", false
	}
	return candidates[0].ID, true
}

// accepts filters entities by type; nil accepts everything.
type accepts func(types.EntityType) bool

func (a accepts) filter(in []*types.Entity) []*types.Entity {
	if a == nil {
		return in
	}
	var out []*types.Entity
	for _, e := range in {
		if a(e.EntityType) {
			out = append(out, e)
		}
	}
	return out
}
