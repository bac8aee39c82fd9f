// Package lang is the registry of supported languages: grammar handles,
// file extensions, scope structure and the tables the name resolver needs to
// tell local names from standard library ones.
package lang

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/types"
)

// Spec describes one language. Specs are registered once at init and are
// read-only afterwards.
type Spec struct {
	Name       types.Language
	Extensions []string
	// Separator joins qualified name segments ("::" or ".")
	Separator string

	grammar func() unsafe.Pointer

	// ScopeKinds are node kinds that open a naming scope, mapped to the field
	// holding their name ("" when the scope is unnamed, e.g. impl blocks).
	ScopeKinds map[string]string
	// FunctionKinds are callable bodies; together with ScopeKinds they bound
	// the enclosing-is predicates and call attribution.
	FunctionKinds []string
	// ModuleKinds are in-file module/namespace constructs, kind to name field.
	ModuleKinds map[string]string
	// TypeKinds resolve the enclosing type for Self/this, kind to the field
	// naming the type.
	TypeKinds map[string]string
	// DeclKinds feed the per-file declaration pre-pass, kind to name field.
	DeclKinds map[string]string

	CommentKinds    []string
	DecorationKinds []string // skipped when counting positional members
	WrapperKinds    []string // export/decorator wrappers looked through for docs

	// ModulePath derives module segments from a repo-relative path.
	ModulePath func(relPath string) []string
	// ModuleDeclaration reads an in-file package or namespace declaration;
	// when it yields segments they replace ModulePath.
	ModuleDeclaration func(root *tree_sitter.Node, src []byte) []string
	// PrefixPackage puts the package name in front of module paths.
	PrefixPackage bool
	// PackageScoped languages see every package-level name of the module
	// unqualified, whichever file declares it.
	PackageScoped bool

	// StdTypes render bare and are external.
	StdTypes map[string]bool
	// StdRoots are leading path segments that always point outside the repo.
	StdRoots map[string]bool
	// Primitives are never recorded as type usages.
	Primitives map[string]bool

	SelfType      string   // "Self" where the language has it
	SelfReceivers []string // self, this, $this

	CallQuery string
	TypeQuery string

	once     sync.Once
	language *tree_sitter.Language
	pool     sync.Pool
}

// Language returns the tree-sitter grammar, created on first use.
func (s *Spec) Language() *tree_sitter.Language {
	s.once.Do(func() {
		s.language = tree_sitter.NewLanguage(s.grammar())
	})
	return s.language
}

// IsScopeKind reports whether kind opens a naming scope.
func (s *Spec) IsScopeKind(kind string) bool {
	_, ok := s.ScopeKinds[kind]
	return ok
}

// IsFunctionKind reports whether kind is a callable body.
func (s *Spec) IsFunctionKind(kind string) bool {
	return contains(s.FunctionKinds, kind)
}

// IsBoundary reports whether kind bounds an enclosing-is walk.
func (s *Spec) IsBoundary(kind string) bool {
	return s.IsScopeKind(kind) || s.IsFunctionKind(kind)
}

// IsComment reports whether kind is a comment node.
func (s *Spec) IsComment(kind string) bool {
	return contains(s.CommentKinds, kind)
}

// IsDecoration reports whether kind is skipped for positional naming.
func (s *Spec) IsDecoration(kind string) bool {
	return s.IsComment(kind) || contains(s.DecorationKinds, kind)
}

// IsWrapper reports whether kind wraps a declaration without naming it.
func (s *Spec) IsWrapper(kind string) bool {
	return contains(s.WrapperKinds, kind)
}

// IsSelfReceiver reports whether name denotes the current instance.
func (s *Spec) IsSelfReceiver(name string) bool {
	return contains(s.SelfReceivers, name)
}

// IsExternalRoot reports whether a path starting with seg leaves the repository.
func (s *Spec) IsExternalRoot(seg string) bool {
	return s.StdRoots[seg] || s.StdTypes[seg]
}

// JoinPath joins segments with the language separator.
func (s *Spec) JoinPath(segs ...string) string {
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return strings.Join(out, s.Separator)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

var (
	registryMu sync.RWMutex
	byName     = map[types.Language]*Spec{}
	byExt      = map[string]*Spec{}
)

// Register adds a language. Extensions registered later win.
func Register(s *Spec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	byName[s.Name] = s
	for _, ext := range s.Extensions {
		byExt[ext] = s
	}
}

// Get returns the spec for a language name.
func Get(name types.Language) (*Spec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := byName[name]
	return s, ok
}

// ForPath picks the language by file extension.
func ForPath(path string) (*Spec, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := byExt[ext]
	return s, ok
}

// Names lists registered languages in a stable order.
func Names() []types.Language {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]types.Language, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supported reports whether path has a registered extension.
func Supported(path string) bool {
	_, ok := ForPath(path)
	return ok
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
