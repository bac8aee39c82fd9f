package config

import (
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// ConfigFileName is looked up at the project root
const ConfigFileName = ".codegraph.kdl"

// Config is the full codegraph configuration
type Config struct {
	Version int
	Project Project
	Extract Extract
	Resolve Resolve
	Store   Store
	Watch   Watch
	Rules   Rules
	Include []string
	Exclude []string
}

// Project identifies the repository being indexed
type Project struct {
	Root         string
	Name         string // package/crate name; detected from manifests when empty
	RepositoryID string // stable id; derived from the absolute root when empty
}

// Extract controls the per-file extraction pool
type Extract struct {
	Workers          int
	MaxFileSize      int64
	CacheSize        int // extraction memo entries, 0 disables the memo
	Languages        []string
	RespectGitignore bool
}

// Resolve controls relationship resolution
type Resolve struct {
	Kinds []string // empty means every kind
}

// Store selects the persistence backend
type Store struct {
	Driver string // "memory" or "sqlite"
	Path   string
}

// Watch controls the file watcher
type Watch struct {
	Enabled    bool
	DebounceMs int
}

// Rules points at optional rule table overrides
type Rules struct {
	Dir string
}

// Default returns the configuration used when no .codegraph.kdl exists
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Extract: Extract{
			Workers:          runtime.NumCPU(),
			MaxFileSize:      2 * 1024 * 1024,
			CacheSize:        4096,
			RespectGitignore: true,
		},
		Store: Store{
			Driver: "memory",
			Path:   filepath.Join(".codegraph", "graph.db"),
		},
		Watch: Watch{DebounceMs: 300},
		Exclude: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/target/**",
			"**/vendor/**",
			"**/dist/**",
			"**/build/**",
			"**/__pycache__/**",
			"**/.venv/**",
			"**/*.min.js",
		},
	}
}

// Load reads .codegraph.kdl from root (falling back to defaults), validates
// it, and fills in derived values: absolute root, package name, repository id.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	cfg, err := LoadKDL(absRoot)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default(absRoot)
	}

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	cfg.Finalize()
	return cfg, nil
}

// Finalize derives the values left empty by the user.
func (c *Config) Finalize() {
	if c.Project.Name == "" {
		if m, ok := DetectManifest(c.Project.Root); ok {
			c.Project.Name = m.PackageName
		}
	}
	if c.Project.RepositoryID == "" {
		c.Project.RepositoryID = RepositoryID(c.Project.Root)
	}
	if c.Store.Path != "" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(c.Project.Root, c.Store.Path)
	}
	if c.Extract.RespectGitignore {
		if patterns, err := LoadGitignore(c.Project.Root); err == nil {
			c.Exclude = DeduplicatePatterns(append(c.Exclude, patterns...))
		}
	}
}

// RepositoryID derives a stable id from the absolute repository root, so the
// same checkout always maps to the same entity ids.
func RepositoryID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrence order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
