package extract

import (
	"context"
	"errors"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/names"
)

// DefaultCacheSize is the number of file results memoised when Options
// leave it unset.
const DefaultCacheSize = 4096

// File is one repository file handed to extraction.
type File struct {
	// Path is repository-relative and slash separated.
	Path    string
	Content []byte
}

// Packages maps a file to the package governing it and the directory of
// that package's manifest.
type Packages interface {
	Package(relPath string) (name, moduleRoot string)
}

// Options configures an Extractor.
type Options struct {
	RepositoryID string
	// PackageName applies to every file when Packages is nil.
	PackageName string
	Packages    Packages
	// Workers bounds concurrent files; zero means one per CPU.
	Workers int
	// CacheSize bounds the result memo; negative disables it.
	CacheSize int
}

type memoKey struct {
	path    string
	content uint64
	context uint64
}

// Extractor runs the engine over whole repositories.
type Extractor struct {
	engine *Engine
	opts   Options
	memo   *lru.Cache[memoKey, *FileResult]
}

// NewExtractor creates a repository extractor.
func NewExtractor(engine *Engine, opts Options) (*Extractor, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	x := &Extractor{engine: engine, opts: opts}
	if opts.CacheSize >= 0 {
		size := opts.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		memo, err := lru.New[memoKey, *FileResult](size)
		if err != nil {
			return nil, err
		}
		x.memo = memo
	}
	return x, nil
}

// Engine returns the underlying engine.
func (x *Extractor) Engine() *Engine { return x.engine }

// Context builds the read-only context a file is extracted in.
func (x *Extractor) Context(relPath string, roots map[string]bool) names.FileContext {
	fc := names.FileContext{
		RepositoryID: x.opts.RepositoryID,
		PackageName:  x.opts.PackageName,
		Path:         relPath,
		LocalRoots:   roots,
	}
	if x.opts.Packages != nil {
		fc.PackageName, fc.ModuleRoot = x.opts.Packages.Package(relPath)
	}
	return fc
}

// LocalRoots collects the first module segment of every file, as each
// file's language derives it, plus the package names governing them. A
// reference starting with one of these stays inside the repository.
func (x *Extractor) LocalRoots(files []File) map[string]bool {
	roots := make(map[string]bool)
	for _, f := range files {
		spec, ok := lang.ForPath(f.Path)
		if !ok {
			continue
		}
		fc := x.Context(f.Path, nil)
		if fc.PackageName != "" {
			roots[fc.PackageName] = true
		}
		if spec.ModulePath != nil {
			if segs := spec.ModulePath(fc.RelToModuleRoot(f.Path)); len(segs) > 0 {
				roots[segs[0]] = true
			}
		}
		if dir := strings.SplitN(path.Clean(f.Path), "/", 2); len(dir) == 2 {
			roots[dir[0]] = true
		}
	}
	return roots
}

// ExtractFile extracts one file on its own; references into the rest of
// the repository are classified against this file's roots only.
func (x *Extractor) ExtractFile(ctx context.Context, f File) (*FileResult, error) {
	roots := x.LocalRoots([]File{f})
	return x.extract(ctx, f, roots, rootsDigest(roots))
}

func (x *Extractor) extract(ctx context.Context, f File, roots map[string]bool, digest uint64) (*FileResult, error) {
	fc := x.Context(f.Path, roots)
	key := memoKey{path: f.Path, content: contentHash(f.Content), context: contextDigest(fc, digest)}
	if x.memo != nil {
		if res, ok := x.memo.Get(key); ok {
			return res, nil
		}
	}
	res, err := x.engine.ExtractFile(ctx, f.Path, f.Content, fc)
	if err != nil {
		return nil, err
	}
	if x.memo != nil {
		x.memo.Add(key, res)
	}
	return res, nil
}

// Repository extracts every supported file concurrently and aggregates the
// results. A file that fails is recorded and never aborts the others; only
// cancellation does.
func (x *Extractor) Repository(ctx context.Context, files []File) (*ReferenceStore, error) {
	var supported []File
	for _, f := range files {
		if lang.Supported(f.Path) {
			supported = append(supported, f)
		}
	}
	sort.Slice(supported, func(i, j int) bool { return supported[i].Path < supported[j].Path })

	roots := x.LocalRoots(supported)
	digest := rootsDigest(roots)
	results := make([]*FileResult, len(supported))
	failed := make([]error, len(supported))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i := range supported {
		i := i
		g.Go(func() error {
			res, err := x.extract(gctx, supported[i], roots, digest)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				debug.LogExtract("extraction of %s failed: %v\n", supported[i].Path, err)
				failed[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures []FileFailure
	for i, err := range failed {
		if err != nil {
			failures = append(failures, FileFailure{Path: supported[i].Path, Err: err})
		}
	}
	store := NewReferenceStore(x.opts.RepositoryID, results, failures)
	debug.LogExtract("repository %s: %d files, %d entities, %d failures\n",
		x.opts.RepositoryID, len(store.Files), store.Len(), len(store.Failures))
	return store, nil
}

func rootsDigest(roots map[string]bool) uint64 {
	keys := make([]string, 0, len(roots))
	for k := range roots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return xxhash.Sum64String(strings.Join(keys, "\x00"))
}

func contextDigest(fc names.FileContext, roots uint64) uint64 {
	d := xxhash.New()
	for _, s := range []string{fc.RepositoryID, fc.PackageName, fc.ModuleRoot} {
		_, _ = d.WriteString(s)
		_, _ = d.WriteString("\x00")
	}
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(roots >> (8 * i))
	}
	_, _ = d.Write(buf[:])
	return d.Sum64()
}
