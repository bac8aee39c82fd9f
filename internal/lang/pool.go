package lang

import (
	"context"
	"errors"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrNoTree is returned when the parser produced no tree at all.
var ErrNoTree = errors.New("parser returned no syntax tree")

// acquire takes a parser for this language from the pool. The pool's New
// func is installed lazily so unused grammars are never loaded.
func (s *Spec) acquire() (*tree_sitter.Parser, error) {
	lang := s.Language()
	if lang == nil {
		return nil, fmt.Errorf("%s: grammar not available", s.Name)
	}
	if p, ok := s.pool.Get().(*tree_sitter.Parser); ok && p != nil {
		return p, nil
	}
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s: set language: %w", s.Name, err)
	}
	return p, nil
}

// release returns a parser to the pool for reuse.
func (s *Spec) release(p *tree_sitter.Parser) {
	if p == nil {
		return
	}
	p.Reset()
	s.pool.Put(p)
}

// Parse parses src with a pooled parser. The caller owns the returned tree
// and must Close it. Trees with error nodes are returned as is; callers
// decide how to treat the damaged regions.
func (s *Spec) Parse(ctx context.Context, src []byte) (*tree_sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release(p)

	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, ErrNoTree
	}
	return tree, nil
}
