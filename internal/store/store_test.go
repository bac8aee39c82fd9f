package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/qname"
	"github.com/standardbeagle/codegraph/internal/types"
	"github.com/standardbeagle/codegraph/internal/version"
)

func testEntity(id, qn string, et types.EntityType, file string, start int) *types.Entity {
	q := qname.MustParse(qn)
	return &types.Entity{
		ID:            id,
		RepositoryID:  "repo",
		Name:          q.SimpleName(),
		QualifiedName: q,
		EntityType:    et,
		Language:      types.LanguageRust,
		Visibility:    types.VisibilityPublic,
		Location:      types.Location{FilePath: file, StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 10, StartByte: start, EndByte: start + 9},
		Content:       "fn " + q.SimpleName() + "() {}",
		RuleID:        "function",
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		DriverMemory: NewMemoryStore(),
		DriverSQLite: sq,
	}
}

// TestStoreSnapshotReplace tests that each write replaces the previous
// snapshot and that re-submitting identical data is harmless
func TestStoreSnapshotReplace(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f := testEntity("e1", "m::f", types.EntityFunction, "src/b.rs", 10)
			g := testEntity("e2", "m::g", types.EntityFunction, "src/a.rs", 0)
			h := testEntity("e3", "m::h", types.EntityFunction, "src/b.rs", 0)

			require.NoError(t, s.WriteEntities(ctx, "repo", []*types.Entity{f, g, h}))
			require.NoError(t, s.WriteEntities(ctx, "repo", []*types.Entity{f, g, h, f}))

			got, err := s.Entities(ctx, "repo")
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, []string{"e2", "e3", "e1"}, []string{got[0].ID, got[1].ID, got[2].ID})
			assert.Equal(t, "m::f", got[2].QualifiedName.String())
			assert.Equal(t, f.Location, got[2].Location)
			assert.Equal(t, f.Content, got[2].Content)

			require.NoError(t, s.WriteEntities(ctx, "repo", []*types.Entity{g}))
			got, err = s.Entities(ctx, "repo")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "e2", got[0].ID)

			other, err := s.Entities(ctx, "other")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestStoreEdgesAndExternals(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			edges := []types.Edge{
				{SourceID: "a", TargetID: "b", Kind: types.RelCalls},
				{SourceID: "b", TargetID: "a", Kind: types.RelCalledBy},
				{SourceID: "a", TargetID: "b", Kind: types.RelCalls},
				{SourceID: "c", TargetID: "external::serde", Kind: types.RelUses},
			}
			require.NoError(t, s.WriteEdges(ctx, "repo", edges))
			got, err := s.Edges(ctx, "repo")
			require.NoError(t, err)
			assert.Equal(t, []types.Edge{edges[0], edges[1], edges[3]}, got)

			touching, err := s.EdgesFor(ctx, "repo", "a")
			require.NoError(t, err)
			assert.Len(t, touching, 2)

			stubs := []types.ExternalStub{
				types.NewExternalStub("std::fmt::Display"),
				types.NewExternalStub("serde"),
				types.NewExternalStub("std::fmt::Display"),
			}
			require.NoError(t, s.WriteExternals(ctx, "repo", stubs))
			xs, err := s.Externals(ctx, "repo")
			require.NoError(t, err)
			require.Len(t, xs, 2)
			assert.Equal(t, "external::serde", xs[0].ID)
			assert.Equal(t, "std", xs[1].PackageHint)

			require.NoError(t, s.WriteEdges(ctx, "repo", nil))
			got, err = s.Edges(ctx, "repo")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoreFind(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			field := testEntity("p", "Foo::name", types.EntityProperty, "src/lib.rs", 5)
			method := testEntity("m", "Foo::name", types.EntityMethod, "src/lib.rs", 40)
			other := testEntity("o", "bar::name", types.EntityFunction, "src/bar.rs", 0)
			require.NoError(t, s.WriteEntities(ctx, "repo", []*types.Entity{field, method, other}))

			tests := []struct {
				name  string
				query Query
				want  []string
			}{
				{"by name", Query{Name: "name"}, []string{"o", "p", "m"}},
				{"by qualified name", Query{QualifiedName: "Foo::name"}, []string{"p", "m"}},
				{"by type", Query{QualifiedName: "Foo::name", Type: types.EntityMethod}, []string{"m"}},
				{"by file", Query{File: "src/bar.rs"}, []string{"o"}},
				{"limit", Query{Name: "name", Limit: 1}, []string{"o"}},
				{"none", Query{Name: "missing"}, nil},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := s.Find(ctx, "repo", tt.query)
					require.NoError(t, err)
					var ids []string
					for _, e := range got {
						ids = append(ids, e.ID)
					}
					assert.Equal(t, tt.want, ids)
				})
			}
		})
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	build, err := s.SnapshotBuild(ctx, "repo")
	require.NoError(t, err)
	assert.Empty(t, build)
	require.NoError(t, s.WriteEntities(ctx, "repo", []*types.Entity{testEntity("e1", "m::f", types.EntityFunction, "src/lib.rs", 0)}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Entities(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, qname.ShapeSimplePath, got[0].QualifiedName.Shape())

	build, err = s.SnapshotBuild(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, version.BuildID(), build)
}

func TestOpenDriver(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("postgres", "")
	var cfgErr *cgerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "store.driver", cfgErr.Field)
}

func TestMemoryStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()
	assert.ErrorIs(t, s.WriteEdges(ctx, "repo", nil), context.Canceled)
}
