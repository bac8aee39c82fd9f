package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/codegraph/internal/debug"
	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/types"
	"github.com/standardbeagle/codegraph/internal/version"
)

// DefaultSQLitePath is where the database lives relative to the project root.
const DefaultSQLitePath = ".codegraph/graph.db"

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	repository_id TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	name TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	file_path TEXT NOT NULL,
	start_byte INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (repository_id, entity_id)
);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(repository_id, name);
CREATE INDEX IF NOT EXISTS idx_entities_qname ON entities(repository_id, qualified_name);
CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(repository_id, file_path);

CREATE TABLE IF NOT EXISTS edges (
	repository_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	PRIMARY KEY (repository_id, source_id, target_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(repository_id, target_id);

CREATE TABLE IF NOT EXISTS externals (
	repository_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	package_hint TEXT,
	PRIMARY KEY (repository_id, id)
);

CREATE TABLE IF NOT EXISTS snapshots (
	repository_id TEXT PRIMARY KEY,
	build_id TEXT NOT NULL,
	written_at INTEGER NOT NULL
);
`

// SQLiteStore persists snapshots in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, cgerrors.NewStoreError("create directory", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cgerrors.NewStoreError("open", err)
	}
	// One connection keeps :memory: databases and WAL writers consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, cgerrors.NewStoreError("enable WAL", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, cgerrors.NewStoreError("create schema", err)
	}
	debug.LogStore("opened sqlite store at %s\n", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// replace deletes the repository's rows of table and inserts new ones, all
// in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, op, table, repositoryID, insert string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cgerrors.NewStoreError(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE repository_id = ?", repositoryID); err != nil {
		return cgerrors.NewStoreError(op, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return cgerrors.NewStoreError(op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return cgerrors.NewStoreError(op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return cgerrors.NewStoreError(op, err)
	}
	debug.LogStore("%s: %d rows for %s\n", op, n, repositoryID)
	return nil
}

func (s *SQLiteStore) WriteEntities(ctx context.Context, repositoryID string, entities []*types.Entity) error {
	rows := make([]string, len(entities))
	for i, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			return cgerrors.NewStoreError("write entities", fmt.Errorf("encoding %s: %w", e.ID, err))
		}
		rows[i] = string(data)
	}
	if err := s.recordSnapshot(ctx, repositoryID); err != nil {
		return err
	}
	return s.replace(ctx, "write entities", "entities", repositoryID,
		`INSERT OR IGNORE INTO entities
		(repository_id, entity_id, name, qualified_name, entity_type, file_path, start_byte, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		len(entities), func(i int) []any {
			e := entities[i]
			return []any{repositoryID, e.ID, e.SimpleName(), e.QualifiedName.String(),
				string(e.EntityType), e.FilePath(), e.Location.StartByte, rows[i]}
		})
}

// recordSnapshot stamps the repository with the running build. A graph
// written by another build is replaced wholesale, so a mismatch is only logged.
func (s *SQLiteStore) recordSnapshot(ctx context.Context, repositoryID string) error {
	prev, err := s.SnapshotBuild(ctx, repositoryID)
	if err != nil {
		return err
	}
	current := version.BuildID()
	if prev != "" && prev != current {
		debug.LogStore("replacing snapshot of %s written by build %s (now %s)\n", repositoryID, prev, current)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (repository_id, build_id, written_at) VALUES (?, ?, ?)
		ON CONFLICT(repository_id) DO UPDATE SET build_id = excluded.build_id, written_at = excluded.written_at`,
		repositoryID, current, time.Now().Unix())
	if err != nil {
		return cgerrors.NewStoreError("record snapshot", err)
	}
	return nil
}

// SnapshotBuild returns the build id that last wrote the repository's
// entities, or "" when nothing was written yet.
func (s *SQLiteStore) SnapshotBuild(ctx context.Context, repositoryID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT build_id FROM snapshots WHERE repository_id = ?", repositoryID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", cgerrors.NewStoreError("read snapshot", err)
	}
	return id, nil
}

func (s *SQLiteStore) WriteEdges(ctx context.Context, repositoryID string, edges []types.Edge) error {
	return s.replace(ctx, "write edges", "edges", repositoryID,
		`INSERT OR IGNORE INTO edges (repository_id, source_id, target_id, kind) VALUES (?, ?, ?, ?)`,
		len(edges), func(i int) []any {
			e := edges[i]
			return []any{repositoryID, e.SourceID, e.TargetID, string(e.Kind)}
		})
}

func (s *SQLiteStore) WriteExternals(ctx context.Context, repositoryID string, stubs []types.ExternalStub) error {
	return s.replace(ctx, "write externals", "externals", repositoryID,
		`INSERT OR IGNORE INTO externals (repository_id, id, name, package_hint) VALUES (?, ?, ?, ?)`,
		len(stubs), func(i int) []any {
			x := stubs[i]
			return []any{repositoryID, x.ID, x.Name, x.PackageHint}
		})
}

func (s *SQLiteStore) Entities(ctx context.Context, repositoryID string) ([]*types.Entity, error) {
	return s.Find(ctx, repositoryID, Query{})
}

func (s *SQLiteStore) Find(ctx context.Context, repositoryID string, q Query) ([]*types.Entity, error) {
	where := []string{"repository_id = ?"}
	args := []any{repositoryID}
	if q.Name != "" {
		where = append(where, "name = ?")
		args = append(args, q.Name)
	}
	if q.QualifiedName != "" {
		where = append(where, "qualified_name = ?")
		args = append(args, q.QualifiedName)
	}
	if q.Type != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(q.Type))
	}
	if q.File != "" {
		where = append(where, "file_path = ?")
		args = append(args, q.File)
	}
	query := "SELECT data FROM entities WHERE " + strings.Join(where, " AND ") +
		" ORDER BY file_path, start_byte, entity_id"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cgerrors.NewStoreError("find entities", err)
	}
	defer rows.Close()

	var out []*types.Entity
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, cgerrors.NewStoreError("find entities", err)
		}
		e := &types.Entity{}
		if err := json.Unmarshal([]byte(data), e); err != nil {
			return nil, cgerrors.NewStoreError("decode entity", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerrors.NewStoreError("find entities", err)
	}
	return out, nil
}

func (s *SQLiteStore) Edges(ctx context.Context, repositoryID string) ([]types.Edge, error) {
	return s.edges(ctx, "SELECT source_id, target_id, kind FROM edges WHERE repository_id = ? ORDER BY rowid", repositoryID)
}

func (s *SQLiteStore) EdgesFor(ctx context.Context, repositoryID, entityID string) ([]types.Edge, error) {
	return s.edges(ctx, `SELECT source_id, target_id, kind FROM edges
		WHERE repository_id = ? AND (source_id = ? OR target_id = ?) ORDER BY rowid`,
		repositoryID, entityID, entityID)
}

func (s *SQLiteStore) edges(ctx context.Context, query string, args ...any) ([]types.Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cgerrors.NewStoreError("read edges", err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var e types.Edge
		var kind string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &kind); err != nil {
			return nil, cgerrors.NewStoreError("read edges", err)
		}
		e.Kind = types.RelationshipKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerrors.NewStoreError("read edges", err)
	}
	return out, nil
}

func (s *SQLiteStore) Externals(ctx context.Context, repositoryID string) ([]types.ExternalStub, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, COALESCE(package_hint, '') FROM externals WHERE repository_id = ? ORDER BY id", repositoryID)
	if err != nil {
		return nil, cgerrors.NewStoreError("read externals", err)
	}
	defer rows.Close()

	var out []types.ExternalStub
	for rows.Next() {
		var x types.ExternalStub
		if err := rows.Scan(&x.ID, &x.Name, &x.PackageHint); err != nil {
			return nil, cgerrors.NewStoreError("read externals", err)
		}
		out = append(out, x)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerrors.NewStoreError("read externals", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
