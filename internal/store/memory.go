package store

import (
	"context"
	"sort"
	"sync"

	"github.com/standardbeagle/codegraph/internal/types"
)

type snapshot struct {
	entities  []*types.Entity
	edges     []types.Edge
	externals []types.ExternalStub
}

// MemoryStore keeps snapshots in process. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	repos map[string]*snapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{repos: make(map[string]*snapshot)}
}

func (m *MemoryStore) repo(id string) *snapshot {
	s, ok := m.repos[id]
	if !ok {
		s = &snapshot{}
		m.repos[id] = s
	}
	return s
}

func (m *MemoryStore) WriteEntities(ctx context.Context, repositoryID string, entities []*types.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(entities))
	sorted := make([]*types.Entity, 0, len(entities))
	for _, e := range entities {
		if !seen[e.ID] {
			seen[e.ID] = true
			sorted = append(sorted, e)
		}
	}
	sortEntities(sorted)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repo(repositoryID).entities = sorted
	return nil
}

func (m *MemoryStore) WriteEdges(ctx context.Context, repositoryID string, edges []types.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repo(repositoryID).edges = uniqueEdges(edges)
	return nil
}

func (m *MemoryStore) WriteExternals(ctx context.Context, repositoryID string, stubs []types.ExternalStub) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(stubs))
	var kept []types.ExternalStub
	for _, s := range stubs {
		if !seen[s.ID] {
			seen[s.ID] = true
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repo(repositoryID).externals = kept
	return nil
}

func (m *MemoryStore) Entities(ctx context.Context, repositoryID string) ([]*types.Entity, error) {
	return m.Find(ctx, repositoryID, Query{})
}

func (m *MemoryStore) Edges(ctx context.Context, repositoryID string) ([]types.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.repos[repositoryID]
	if !ok {
		return nil, nil
	}
	return append([]types.Edge(nil), s.edges...), nil
}

func (m *MemoryStore) EdgesFor(ctx context.Context, repositoryID, entityID string) ([]types.Edge, error) {
	all, err := m.Edges(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	var out []types.Edge
	for _, e := range all {
		if e.SourceID == entityID || e.TargetID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) Externals(ctx context.Context, repositoryID string) ([]types.ExternalStub, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.repos[repositoryID]
	if !ok {
		return nil, nil
	}
	return append([]types.ExternalStub(nil), s.externals...), nil
}

func (m *MemoryStore) Find(ctx context.Context, repositoryID string, q Query) ([]*types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.repos[repositoryID]
	if !ok {
		return nil, nil
	}
	var out []*types.Entity
	for _, e := range s.entities {
		if !q.matches(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Close drops every snapshot.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos = make(map[string]*snapshot)
	return nil
}

func sortEntities(es []*types.Entity) {
	sort.SliceStable(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.FilePath() != b.FilePath() {
			return a.FilePath() < b.FilePath()
		}
		if a.Location.StartByte != b.Location.StartByte {
			return a.Location.StartByte < b.Location.StartByte
		}
		return a.ID < b.ID
	})
}

func uniqueEdges(edges []types.Edge) []types.Edge {
	seen := make(map[types.Edge]bool, len(edges))
	out := make([]types.Edge, 0, len(edges))
	for _, e := range edges {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
