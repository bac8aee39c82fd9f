// Package resolve links the unresolved references of a repository's entities
// into edges. Each relationship kind runs its own lookup chain against a
// shared read-only EntityCache; kinds run concurrently and fail
// independently of each other.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codegraph/internal/debug"
	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/types"
)

// Options configures a Resolver.
type Options struct {
	// Kinds restricts the pass to some relationship kinds; empty runs all.
	Kinds []Kind
	// Observer is told about every phase change.
	Observer func(State)
}

// Result is the output of one pass. Edges and Externals are in a
// deterministic order.
type Result struct {
	Edges     []types.Edge
	Externals []types.ExternalStub
	Report    *Report
}

// Resolver runs resolution passes. Passes on one Resolver are serialized;
// use a Coalescer to merge concurrent requests for one repository.
type Resolver struct {
	defs    []*Definition
	tracker *Tracker
	mu      sync.Mutex
}

// NewResolver creates a resolver for the requested kinds.
func NewResolver(opts Options) (*Resolver, error) {
	defs := Definitions()
	if len(opts.Kinds) > 0 {
		want := make(map[Kind]bool, len(opts.Kinds))
		for _, k := range opts.Kinds {
			if _, err := ParseKind(string(k)); err != nil {
				return nil, cgerrors.NewConfigError("kinds", string(k), err)
			}
			want[k] = true
		}
		kept := defs[:0]
		for _, d := range defs {
			if want[d.Kind] {
				kept = append(kept, d)
			}
		}
		defs = kept
	}
	return &Resolver{defs: defs, tracker: NewTracker(opts.Observer)}, nil
}

// State returns the phase of the pass in progress, or of the last one.
func (r *Resolver) State() State { return r.tracker.Current() }

// Repository resolves an extracted repository.
func (r *Resolver) Repository(ctx context.Context, store *extract.ReferenceStore) (*Result, error) {
	return r.Resolve(ctx, store.RepositoryID, store.Entities())
}

// Resolve runs a full pass over entities. Kinds that fail are reported in
// Result.Report and contribute no edges; only cancellation fails the call.
func (r *Resolver) Resolve(ctx context.Context, repositoryID string, entities []*types.Entity) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	if p := r.tracker.Current().Phase; p != PhaseIdle && p != PhaseDone {
		r.tracker.Reset()
	}
	if err := r.tracker.Enter(State{Phase: PhaseCacheBuilding}); err != nil {
		return nil, err
	}
	cache := NewEntityCache(entities)
	debug.LogResolve("repository %s: cache built over %d entities\n", repositoryID, cache.Len())

	outputs := make([]kindOutput, len(r.defs))
	g, gctx := errgroup.WithContext(ctx)
	for i, def := range r.defs {
		i, def := i, def
		g.Go(func() error {
			if err := r.tracker.Enter(State{Phase: PhaseResolving, Kind: def.Kind}); err != nil {
				return err
			}
			out, err := resolveKind(gctx, def, cache)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				debug.LogResolve("repository %s: %s failed: %v\n", repositoryID, def.Kind, err)
				out = kindOutput{report: KindReport{Kind: def.Kind}}
				rerr := cgerrors.NewResolutionError(string(def.Kind), err)
				out.report.err = rerr
				out.report.Error = rerr.Error()
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.tracker.Reset()
		return nil, err
	}

	if err := r.tracker.Enter(State{Phase: PhaseExternalStubbing}); err != nil {
		return nil, err
	}
	res := merge(outputs)
	res.Report.RepositoryID = repositoryID
	res.Report.Entities = cache.Len()
	res.Report.Duration = time.Since(start)
	if err := r.tracker.Enter(State{Phase: PhaseDone}); err != nil {
		return nil, err
	}
	debug.LogResolve("repository %s: %d edges, %d externals, %d ambiguous in %v\n",
		repositoryID, len(res.Edges), len(res.Externals), res.Report.Totals.Ambiguous, res.Report.Duration)
	return res, nil
}

type kindOutput struct {
	edges  []types.Edge
	stubs  []types.ExternalStub
	report KindReport
}

// resolveKind walks every source entity of one kind. It writes only to its
// own output; a panic fails this kind alone.
func resolveKind(ctx context.Context, def *Definition, cache *EntityCache) (out kindOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	out.report = KindReport{Kind: def.Kind, ByStrategy: make(map[Strategy]int)}
	seen := make(map[types.Edge]bool)
	emit := func(e types.Edge) {
		if seen[e] {
			return
		}
		seen[e] = true
		out.edges = append(out.edges, e)
	}
	stubs := make(map[string]bool)
	containment := def.Kind == KindContains

	for _, src := range cache.Entities() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var valid func(*types.Entity) bool
		if containment {
			child := src.QualifiedName
			valid = func(parent *types.Entity) bool { return child.IsChildOf(parent.QualifiedName) }
		}
		for _, ref := range def.References(src) {
			out.report.References++
			if ref.Target == "" {
				out.report.Skipped++
				continue
			}
			l := def.chain(cache, ref, valid)
			if l.outcome == found {
				if l.target.ID == src.ID && !def.AllowSelf {
					out.report.Skipped++
					continue
				}
				out.report.Resolved++
				out.report.ByStrategy[l.strategy]++
				from, to := src.ID, l.target.ID
				if containment {
					from, to = to, from
				}
				emit(types.Edge{SourceID: from, TargetID: to, Kind: def.Relationship})
				if rev := def.Relationship.Reciprocal(); rev != "" {
					emit(types.Edge{SourceID: to, TargetID: from, Kind: rev})
				}
				continue
			}

			if l.outcome == mismatched && !containment {
				out.report.Mismatched++
				debug.LogResolve("%s: %s -> %s names %s, not a target\n", def.Kind, src.QualifiedName, ref.Target, l.other)
				continue
			}
			if l.outcome == ambiguous {
				out.report.Ambiguous++
				debug.LogResolve("%s: %s -> %s is ambiguous\n", def.Kind, src.QualifiedName, ref.Target)
			}
			if containment {
				out.report.Orphaned++
				debug.LogResolve("contains: no parent %q for %s\n", ref.Target, src)
				continue
			}
			stub := types.NewExternalStub(ref.Target)
			if stub.Name == "" {
				out.report.Skipped++
				continue
			}
			out.report.External++
			if !stubs[stub.ID] {
				stubs[stub.ID] = true
				out.stubs = append(out.stubs, stub)
			}
			emit(types.Edge{SourceID: src.ID, TargetID: stub.ID, Kind: def.Relationship})
		}
	}
	out.report.Edges = len(out.edges)
	return out, nil
}

// merge concatenates the kind outputs in definition order and de-duplicates
// stubs across kinds.
func merge(outputs []kindOutput) *Result {
	res := &Result{Report: &Report{}}
	stubs := make(map[string]types.ExternalStub)
	for _, o := range outputs {
		res.Edges = append(res.Edges, o.edges...)
		for _, s := range o.stubs {
			if _, ok := stubs[s.ID]; !ok {
				stubs[s.ID] = s
			}
		}
		res.Report.Kinds = append(res.Report.Kinds, o.report)
	}
	for _, s := range stubs {
		res.Externals = append(res.Externals, s)
	}
	sort.Slice(res.Externals, func(i, j int) bool { return res.Externals[i].ID < res.Externals[j].ID })
	res.Report.Externals = len(res.Externals)
	res.Report.total()
	return res
}

// IsCancelled reports whether err ended a pass through cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
