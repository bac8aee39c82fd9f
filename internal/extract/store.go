package extract

import (
	"sort"

	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/types"
)

// FileFailure is a file that produced no entities.
type FileFailure struct {
	Path string
	Err  error
}

// ReferenceStore is a repository's extraction output: every entity with its
// unresolved references, aggregated from the per-file results. It is not
// modified after construction.
type ReferenceStore struct {
	RepositoryID string
	// Files are the successful results, ordered by path.
	Files []*FileResult
	// Failures are files that could not be extracted, ordered by path.
	Failures []FileFailure
	// Duplicates counts entities dropped because a file earlier by path
	// produced the same id.
	Duplicates int

	entities []*types.Entity
	byID     map[string]*types.Entity
}

// NewReferenceStore aggregates file results. Entity ids are unique in the
// store: on a collision the file first by path wins.
func NewReferenceStore(repositoryID string, results []*FileResult, failures []FileFailure) *ReferenceStore {
	s := &ReferenceStore{
		RepositoryID: repositoryID,
		Failures:     append([]FileFailure(nil), failures...),
		byID:         make(map[string]*types.Entity),
	}
	for _, r := range results {
		if r != nil {
			s.Files = append(s.Files, r)
		}
	}
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].Path < s.Files[j].Path })
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].Path < s.Failures[j].Path })

	for _, f := range s.Files {
		for _, e := range f.Entities {
			if prev, ok := s.byID[e.ID]; ok {
				debug.LogExtract("entity %s in %s shadowed by %s\n", e, e.FilePath(), prev.FilePath())
				s.Duplicates++
				continue
			}
			s.byID[e.ID] = e
			s.entities = append(s.entities, e)
		}
	}
	return s
}

// Entities returns every entity, by file path and then source order.
func (s *ReferenceStore) Entities() []*types.Entity { return s.entities }

// Entity looks an entity up by id.
func (s *ReferenceStore) Entity(id string) (*types.Entity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Len is the number of entities.
func (s *ReferenceStore) Len() int { return len(s.entities) }

// Summary counts what extraction produced and dropped.
type Summary struct {
	Files      int `json:"files"`
	Failed     int `json:"failed"`
	Partial    int `json:"partial"`
	Entities   int `json:"entities"`
	References int `json:"references"`
	Skipped    int `json:"skipped"`
	Overridden int `json:"overridden"`
	Duplicates int `json:"duplicates"`
}

// Summary totals the store.
func (s *ReferenceStore) Summary() Summary {
	sum := Summary{
		Files:      len(s.Files),
		Failed:     len(s.Failures),
		Entities:   len(s.entities),
		Duplicates: s.Duplicates,
	}
	for _, f := range s.Files {
		if f.Partial {
			sum.Partial++
		}
		sum.Skipped += len(f.Skipped)
		sum.Overridden += f.Overridden
		sum.Duplicates += f.Duplicates
	}
	for _, e := range s.entities {
		sum.References += countReferences(&e.Relationships)
	}
	return sum
}

func countReferences(r *types.RelationshipRefs) int {
	n := len(r.Calls) + len(r.UsesTypes) + len(r.Imports) + len(r.Reexports) +
		len(r.Implements) + len(r.Extends) + len(r.ExtendedTypes)
	if r.ImplementsTrait != nil {
		n++
	}
	if r.ForType != nil {
		n++
	}
	return n
}
