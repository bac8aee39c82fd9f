// Package extract turns parsed source files into entities carrying
// unresolved relationship references.
//
// Extraction of a file reads only that file's tree and the read-only
// FileContext it is given, so files can be processed concurrently.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/debug"
	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/match"
	"github.com/standardbeagle/codegraph/internal/names"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/types"
)

var (
	// ErrUnsupported means no registered language claims the file.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrNoRules means the language has no loaded rule table.
	ErrNoRules = errors.New("no rule table loaded for language")
	// ErrUnparseable means the parser could not build a usable tree.
	ErrUnparseable = errors.New("source could not be parsed")
)

// FileResult is the extraction output of one file.
type FileResult struct {
	Path     string
	Language types.Language
	// Entities are in source order.
	Entities []*types.Entity
	// Skipped lists candidates dropped without aborting the file.
	Skipped []*cgerrors.MatchExtractionError
	// Partial is set when the tree contained syntax errors; candidates in
	// the damaged regions are in Skipped.
	Partial bool
	// Overridden counts candidates that lost their region to a rule of
	// higher precedence.
	Overridden int
	// Duplicates counts entities dropped because an earlier one in the file
	// had the same id.
	Duplicates int
}

type siteQueries struct {
	calls *tree_sitter.Query
	types *tree_sitter.Query
}

// Engine runs rule tables over files. It is safe for concurrent use.
type Engine struct {
	rules *rules.Set

	mu      sync.Mutex
	queries map[types.Language]*siteQueries
}

// NewEngine creates an engine over a loaded rule set. The engine does not
// take ownership of the set.
func NewEngine(set *rules.Set) *Engine {
	return &Engine{rules: set, queries: make(map[types.Language]*siteQueries)}
}

// Rules returns the rule set the engine runs.
func (e *Engine) Rules() *rules.Set { return e.rules }

// Close releases the compiled reference queries.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.queries {
		if q.calls != nil {
			q.calls.Close()
		}
		if q.types != nil {
			q.types.Close()
		}
	}
	e.queries = make(map[types.Language]*siteQueries)
}

// siteQueriesFor compiles the call and type queries of a language once.
func (e *Engine) siteQueriesFor(spec *lang.Spec) (*siteQueries, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if q, ok := e.queries[spec.Name]; ok {
		return q, nil
	}
	q := &siteQueries{}
	compile := func(text string) (*tree_sitter.Query, error) {
		if text == "" {
			return nil, nil
		}
		query, qerr := tree_sitter.NewQuery(spec.Language(), text)
		if query == nil {
			return nil, fmt.Errorf("%s reference query: %v", spec.Name, qerr)
		}
		return query, nil
	}
	var err error
	if q.calls, err = compile(spec.CallQuery); err != nil {
		return nil, err
	}
	if q.types, err = compile(spec.TypeQuery); err != nil {
		if q.calls != nil {
			q.calls.Close()
		}
		return nil, err
	}
	e.queries[spec.Name] = q
	return q, nil
}

// winner is a candidate that holds its region.
type winner struct {
	m     match.Match
	depth int
	names names.Names
}

type regionKey struct {
	node       uintptr
	entityType types.EntityType
}

// ExtractFile extracts the entities of one file. A file whose tree is
// unusable fails with a ParseError; damaged regions inside an otherwise
// usable tree only skip the candidates they contain.
func (e *Engine) ExtractFile(ctx context.Context, path string, content []byte, fc names.FileContext) (*FileResult, error) {
	spec, ok := lang.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	table, ok := e.rules.For(spec.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRules, spec.Name)
	}
	fc.Path = path

	tree, err := spec.Parse(ctx, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, cgerrors.NewParseError(path, string(spec.Name), 0, 0, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if unusable(root) {
		pos := firstError(root).StartPosition()
		return nil, cgerrors.NewParseError(path, string(spec.Name), int(pos.Row)+1, int(pos.Column)+1, ErrUnparseable)
	}

	result := &FileResult{Path: path, Language: spec.Name, Partial: root.HasError()}
	winners, err := e.claim(ctx, spec, table, root, content, result)
	if err != nil {
		return nil, err
	}

	resolver := names.NewResolver(spec, fc, root, content)
	b := newBuilder(resolver)

	// Enclosing entities come first, so their names are registered before
	// anything nested in them is derived.
	kept := winners[:0]
	for _, w := range winners {
		main := &w.m.Main
		if main.IsError() || main.IsMissing() || insideError(main) {
			result.skip(b, w.m.Rule, main, "inside a syntax error")
			continue
		}
		n, err := resolver.Derive(&w.m)
		if err != nil {
			if errors.Is(err, names.ErrNoName) {
				debug.LogExtract("%s: rule %s has nothing to name at %d: %v\n", path, w.m.Rule.ID, main.StartByte(), err)
				continue
			}
			result.skip(b, w.m.Rule, main, err.Error())
			continue
		}
		resolver.Register(main, n.QualifiedName.String())
		b.own(&w.m)
		w.names = n
		kept = append(kept, w)
	}

	queries, err := e.siteQueriesFor(spec)
	if err != nil {
		return nil, err
	}
	if err := b.collectSites(ctx, root, queries.calls, queries.types); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(kept))
	for i := range kept {
		ent := b.Build(&kept[i].m, kept[i].names)
		if seen[ent.ID] {
			debug.LogExtract("%s: duplicate entity %s dropped\n", path, ent)
			result.Duplicates++
			continue
		}
		seen[ent.ID] = true
		result.Entities = append(result.Entities, ent)
	}
	return result, nil
}

// claim runs every rule and keeps, for each syntax region, the candidate of
// the highest precedence rule. Rules arrive sorted by precedence, so the
// first claim on a region wins. Disjoint rules claim their region only for
// their own entity type.
func (e *Engine) claim(ctx context.Context, spec *lang.Spec, table *rules.Table, root *tree_sitter.Node, src []byte, result *FileResult) ([]winner, error) {
	matcher := match.New(spec)
	claimed := make(map[regionKey]string)
	var winners []winner
	for _, rule := range table.Rules {
		ms, err := matcher.All(ctx, rule, root, src)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			key := regionKey{node: m.Main.Id()}
			if rule.Disjoint {
				key.entityType = rule.EntityType
			}
			if holder, ok := claimed[key]; ok {
				debug.LogExtract("%s: rule %s loses region %d-%d to %s\n", result.Path, rule.ID, m.Main.StartByte(), m.Main.EndByte(), holder)
				result.Overridden++
				continue
			}
			claimed[key] = rule.ID
			winners = append(winners, winner{m: m, depth: depth(&m.Main)})
		}
	}

	sort.SliceStable(winners, func(i, j int) bool {
		a, b := &winners[i], &winners[j]
		if a.m.Main.StartByte() != b.m.Main.StartByte() {
			return a.m.Main.StartByte() < b.m.Main.StartByte()
		}
		if a.m.Main.EndByte() != b.m.Main.EndByte() {
			return a.m.Main.EndByte() > b.m.Main.EndByte()
		}
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		return a.m.Rule.Precedence > b.m.Rule.Precedence
	})
	return winners, nil
}

func (r *FileResult) skip(b *Builder, rule *rules.Rule, n *tree_sitter.Node, reason string) {
	loc := b.location(n)
	err := cgerrors.NewMatchExtractionError(r.Path, rule.ID, loc.StartLine, loc.StartColumn, reason)
	debug.LogExtract("%v\n", err)
	r.Skipped = append(r.Skipped, err)
}

func depth(n *tree_sitter.Node) int {
	d := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}

// insideError reports whether n sits in an ERROR region of the tree.
func insideError(n *tree_sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.IsError() {
			return true
		}
	}
	return false
}

// firstError returns the first error or missing node in document order,
// or n itself when there is none below it.
// unusable reports whether a tree holds no syntax worth extracting: the root
// is an error, or it has errors and no top-level declaration parses cleanly
// up to its first error.
func unusable(root *tree_sitter.Node) bool {
	if root.IsError() {
		return true
	}
	if !root.HasError() {
		return false
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		c := root.NamedChild(i)
		if c == nil || c.IsError() || c.IsMissing() || c.IsExtra() {
			continue
		}
		if !c.HasError() || firstError(c).StartByte() > c.StartByte() {
			return false
		}
	}
	return true
}

func firstError(n *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.IsError() || c.IsMissing() {
			return c
		}
		if c.HasError() {
			return firstError(c)
		}
	}
	return n
}
