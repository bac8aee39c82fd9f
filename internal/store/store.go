// Package store persists extraction and resolution output. Every write
// replaces the repository's previous snapshot of that record kind, so a
// full pass can be re-submitted safely.
package store

import (
	"context"
	"fmt"
	"strings"

	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/types"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Writer receives a repository's entities, edges and external stubs.
type Writer interface {
	WriteEntities(ctx context.Context, repositoryID string, entities []*types.Entity) error
	WriteEdges(ctx context.Context, repositoryID string, edges []types.Edge) error
	WriteExternals(ctx context.Context, repositoryID string, stubs []types.ExternalStub) error
}

// Reader reads back what a Writer stored.
type Reader interface {
	// Entities returns every entity of the repository ordered by file path
	// and position.
	Entities(ctx context.Context, repositoryID string) ([]*types.Entity, error)
	Edges(ctx context.Context, repositoryID string) ([]types.Edge, error)
	// EdgesFor returns the edges leaving or entering one entity.
	EdgesFor(ctx context.Context, repositoryID, entityID string) ([]types.Edge, error)
	Externals(ctx context.Context, repositoryID string) ([]types.ExternalStub, error)
	Find(ctx context.Context, repositoryID string, q Query) ([]*types.Entity, error)
}

// Store is a Reader and Writer that holds resources.
type Store interface {
	Writer
	Reader
	Close() error
}

// Query selects entities. Empty fields match everything.
type Query struct {
	// Name matches the simple name exactly.
	Name string
	// QualifiedName matches the rendered qualified name exactly.
	QualifiedName string
	Type          types.EntityType
	// File matches the repository-relative path.
	File  string
	Limit int
}

func (q Query) matches(e *types.Entity) bool {
	if q.Name != "" && e.SimpleName() != q.Name {
		return false
	}
	if q.QualifiedName != "" && e.QualifiedName.String() != q.QualifiedName {
		return false
	}
	if q.Type != "" && e.EntityType != q.Type {
		return false
	}
	if q.File != "" && e.FilePath() != q.File {
		return false
	}
	return true
}

// Open creates a store by driver name. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, cgerrors.NewConfigError("store.driver", driver, fmt.Errorf("unknown store driver"))
}
