// Package indexing drives whole-repository runs: scan the tree, extract
// entities, persist them, then resolve relationships once the entity
// snapshot is stored. The watcher re-runs the pipeline as files change.
package indexing

import (
	"context"
	"sync"
	"time"

	"github.com/standardbeagle/codegraph/internal/config"
	"github.com/standardbeagle/codegraph/internal/debug"
	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/resolve"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/store"
)

// FailedFile names a file extraction gave up on.
type FailedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RepositoryID string          `json:"repository_id"`
	Scan         ScanStats       `json:"scan"`
	Extract      extract.Summary `json:"extract"`
	Failures     []FailedFile    `json:"failures,omitempty"`
	Resolve      *resolve.Report `json:"resolve"`
	Duration     time.Duration   `json:"duration_ns"`
}

// Options configures a Pipeline beyond what config carries.
type Options struct {
	// Observer is told about every resolution phase change.
	Observer func(resolve.State)
}

// Pipeline runs scan, extract, store and resolve for one repository.
// Concurrent Runs extract independently but share coalesced resolution
// passes, so edges always come from the newest stored snapshot.
type Pipeline struct {
	cfg       *config.Config
	scanner   *Scanner
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	coalescer *resolve.Coalescer
	store     store.Store

	mu   sync.Mutex
	last *RunReport
	runs int
}

// NewPipeline wires a pipeline over an already loaded rule set and an open
// store. The caller keeps ownership of both.
func NewPipeline(cfg *config.Config, set *rules.Set, st store.Store, opts Options) (*Pipeline, error) {
	kinds := make([]resolve.Kind, 0, len(cfg.Resolve.Kinds))
	for _, k := range cfg.Resolve.Kinds {
		kind, err := resolve.ParseKind(k)
		if err != nil {
			return nil, cgerrors.NewConfigError("resolve.kinds", k, err)
		}
		kinds = append(kinds, kind)
	}
	resolver, err := resolve.NewResolver(resolve.Options{Kinds: kinds, Observer: opts.Observer})
	if err != nil {
		return nil, err
	}

	cacheSize := cfg.Extract.CacheSize
	if cacheSize == 0 {
		cacheSize = -1
	}
	extractor, err := extract.NewExtractor(extract.NewEngine(set), extract.Options{
		RepositoryID: cfg.Project.RepositoryID,
		PackageName:  cfg.Project.Name,
		Packages:     config.NewManifestResolver(cfg.Project.Root, cfg.Project.Name),
		Workers:      cfg.Extract.Workers,
		CacheSize:    cacheSize,
	})
	if err != nil {
		return nil, cgerrors.NewConfigError("extract.cache_size", "", err)
	}

	return &Pipeline{
		cfg:       cfg,
		scanner:   NewScanner(cfg),
		extractor: extractor,
		resolver:  resolver,
		coalescer: resolve.NewCoalescer(),
		store:     st,
	}, nil
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// Scanner returns the file scanner.
func (p *Pipeline) Scanner() *Scanner { return p.scanner }

// Extractor returns the repository extractor.
func (p *Pipeline) Extractor() *extract.Extractor { return p.extractor }

// Store returns the backing store.
func (p *Pipeline) Store() store.Store { return p.store }

// State returns the resolver's current phase.
func (p *Pipeline) State() resolve.State { return p.resolver.State() }

// Last returns the report of the most recent completed run, or nil.
func (p *Pipeline) Last() *RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Runs returns how many runs completed.
func (p *Pipeline) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// Run indexes the repository once.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	repo := p.cfg.Project.RepositoryID

	files, stats, err := p.scanner.Scan(ctx)
	if err != nil {
		if resolve.IsCancelled(err) {
			return nil, err
		}
		return nil, cgerrors.NewIndexingError("scan", err).WithFile(p.scanner.Root())
	}
	debug.LogWatch("pipeline: scanned %d files (%d bytes)\n", stats.Files, stats.Bytes)

	refs, err := p.extractor.Repository(ctx, files)
	if err != nil {
		return nil, err
	}
	if err := p.store.WriteEntities(ctx, repo, refs.Entities()); err != nil {
		return nil, err
	}

	res, err := p.coalescer.Do(ctx, repo, p.resolvePass(repo))
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		RepositoryID: repo,
		Scan:         stats,
		Extract:      refs.Summary(),
		Resolve:      res.Report,
		Duration:     time.Since(start),
	}
	for _, f := range refs.Failures {
		report.Failures = append(report.Failures, FailedFile{Path: f.Path, Error: f.Err.Error()})
	}

	p.mu.Lock()
	p.last = report
	p.runs++
	p.mu.Unlock()

	debug.LogWatch("pipeline: %d entities, %d edges, %d externals in %v\n",
		report.Extract.Entities, report.Resolve.Totals.Edges, report.Resolve.Externals, report.Duration)
	return report, nil
}

// resolvePass reads the stored snapshot rather than this run's extraction,
// so a coalesced trailing pass sees whatever run wrote last.
func (p *Pipeline) resolvePass(repo string) resolve.PassFunc {
	return func(ctx context.Context) (*resolve.Result, error) {
		entities, err := p.store.Entities(ctx, repo)
		if err != nil {
			return nil, err
		}
		res, err := p.resolver.Resolve(ctx, repo, entities)
		if err != nil {
			return nil, err
		}
		if err := p.store.WriteEdges(ctx, repo, res.Edges); err != nil {
			return nil, err
		}
		if err := p.store.WriteExternals(ctx, repo, res.Externals); err != nil {
			return nil, err
		}
		return res, nil
	}
}

// Close waits for in-flight resolution passes and releases the engine's
// parsers. The store and rule set stay open.
func (p *Pipeline) Close() {
	p.coalescer.Wait()
	p.extractor.Engine().Close()
}
