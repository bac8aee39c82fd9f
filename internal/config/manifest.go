// Package name detection from language manifests: Cargo.toml, pyproject.toml,
// package.json and go.mod.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Manifest is the package declaration closest to a source file
type Manifest struct {
	Path        string // absolute path of the manifest file
	Dir         string // directory holding it
	PackageName string
	Kind        string // cargo, pyproject, npm, gomod
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

type pyprojectManifest struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// DetectManifest looks for a manifest directly inside dir
func DetectManifest(dir string) (Manifest, bool) {
	if data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml")); err == nil {
		var cargo cargoManifest
		if toml.Unmarshal(data, &cargo) == nil && cargo.Package.Name != "" {
			return manifest(dir, "Cargo.toml", "cargo", normalizeIdent(cargo.Package.Name)), true
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml")); err == nil {
		var py pyprojectManifest
		if toml.Unmarshal(data, &py) == nil {
			name := py.Project.Name
			if name == "" {
				name = py.Tool.Poetry.Name
			}
			if name != "" {
				return manifest(dir, "pyproject.toml", "pyproject", normalizeIdent(name)), true
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			name := pkg.Name
			if i := strings.LastIndexByte(name, '/'); i >= 0 {
				name = name[i+1:] // @scope/name
			}
			return manifest(dir, "package.json", "npm", name), true
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
		if mod := goModulePath(data); mod != "" {
			return manifest(dir, "go.mod", "gomod", mod[strings.LastIndexByte(mod, '/')+1:]), true
		}
	}

	return Manifest{}, false
}

func manifest(dir, file, kind, name string) Manifest {
	return Manifest{Path: filepath.Join(dir, file), Dir: dir, PackageName: name, Kind: kind}
}

// normalizeIdent turns a distribution name into the identifier code uses
// (my-crate is imported as my_crate).
func normalizeIdent(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

func goModulePath(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "module ") {
			return strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module")), `"`)
		}
	}
	return ""
}

// ManifestResolver maps files to the nearest enclosing manifest. Lookups are
// cached per directory and safe for concurrent use by extraction workers.
type ManifestResolver struct {
	root     string
	fallback string

	mu    sync.Mutex
	cache map[string]Manifest
}

// NewManifestResolver creates a resolver bounded by root; fallback names the
// package for files with no manifest between them and root.
func NewManifestResolver(root, fallback string) *ManifestResolver {
	return &ManifestResolver{root: filepath.Clean(root), fallback: fallback, cache: make(map[string]Manifest)}
}

// For returns the manifest governing the repository-relative file path.
func (r *ManifestResolver) For(relPath string) Manifest {
	dir := filepath.Dir(filepath.Join(r.root, filepath.FromSlash(relPath)))
	return r.lookup(dir)
}

// PackageName returns the package governing relPath, or the fallback.
func (r *ManifestResolver) PackageName(relPath string) string {
	if m := r.For(relPath); m.PackageName != "" {
		return m.PackageName
	}
	return r.fallback
}

func (r *ManifestResolver) lookup(dir string) Manifest {
	r.mu.Lock()
	if m, ok := r.cache[dir]; ok {
		r.mu.Unlock()
		return m
	}
	r.mu.Unlock()

	m, ok := DetectManifest(dir)
	if !ok {
		parent := filepath.Dir(dir)
		if dir != r.root && parent != dir && strings.HasPrefix(parent, r.root) {
			m = r.lookup(parent)
		}
	}

	r.mu.Lock()
	r.cache[dir] = m
	r.mu.Unlock()
	return m
}

// RelDir returns the manifest directory relative to the resolver root,
// slash-separated, "" for the root itself.
func (r *ManifestResolver) RelDir(m Manifest) string {
	if m.Dir == "" {
		return ""
	}
	rel, err := filepath.Rel(r.root, m.Dir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Package returns the package name and manifest directory governing relPath.
func (r *ManifestResolver) Package(relPath string) (string, string) {
	m := r.For(relPath)
	name := m.PackageName
	if name == "" {
		name = r.fallback
	}
	return name, r.RelDir(m)
}
