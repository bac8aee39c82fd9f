// Package match runs rule queries over syntax trees. Structural checks the
// query engine cannot evaluate are applied afterwards as named predicates,
// and results always come back in source order.
package match

import (
	"context"
	"fmt"
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/rules"
)

// cancelCheckInterval is how many raw matches are consumed between context checks.
const cancelCheckInterval = 256

// Capture is one labelled node of a match.
type Capture struct {
	Name string
	Node tree_sitter.Node
}

// Match is a rule match whose predicates all held. Captures keep query
// order; a capture absent from the match is simply not present.
type Match struct {
	Rule         *rules.Rule
	PatternIndex uint
	Main         tree_sitter.Node
	captures     []Capture
}

// Captures returns every capture in query order.
func (m *Match) Captures() []Capture { return m.captures }

// Node returns the first node captured under name.
func (m *Match) Node(name string) (*tree_sitter.Node, bool) {
	for i := range m.captures {
		if m.captures[i].Name == name {
			return &m.captures[i].Node, true
		}
	}
	return nil, false
}

// Nodes returns every node captured under name.
func (m *Match) Nodes(name string) []tree_sitter.Node {
	var out []tree_sitter.Node
	for _, c := range m.captures {
		if c.Name == name {
			out = append(out, c.Node)
		}
	}
	return out
}

// Text returns the source text of a capture, or "" when absent.
func (m *Match) Text(name string, src []byte) string {
	n, ok := m.Node(name)
	if !ok {
		return ""
	}
	return n.Utf8Text(src)
}

// Matcher executes rule queries for one language.
type Matcher struct {
	spec *lang.Spec
}

// New creates a matcher for a language.
func New(spec *lang.Spec) *Matcher {
	return &Matcher{spec: spec}
}

// Spec returns the language the matcher serves.
func (m *Matcher) Spec() *lang.Spec { return m.spec }

// All runs rule against the tree rooted at root. Matches without the main
// capture or failing a rule predicate are dropped; a main node matched more
// than once by the same rule is reported once.
func (m *Matcher) All(ctx context.Context, rule *rules.Rule, root *tree_sitter.Node, src []byte) ([]Match, error) {
	q := rule.Query()
	if q == nil {
		return nil, fmt.Errorf("rule %s has no compiled query", rule)
	}
	names := q.CaptureNames()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(q, root, src)

	var out []Match
	seen := make(map[uintptr]bool)
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		qm := matches.Next()
		if qm == nil {
			break
		}

		// Captures are only valid until the next call to Next
		caps := make([]Capture, 0, len(qm.Captures))
		var main *tree_sitter.Node
		for _, c := range qm.Captures {
			caps = append(caps, Capture{Name: names[c.Index], Node: c.Node})
			if uint(c.Index) == rule.MainCaptureIndex() && main == nil {
				node := c.Node
				main = &node
			}
		}
		if main == nil {
			continue
		}
		if seen[main.Id()] {
			continue
		}

		cand := Match{Rule: rule, PatternIndex: qm.PatternIndex, Main: *main, captures: caps}
		ok, err := m.check(&cand)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		seen[main.Id()] = true
		out = append(out, cand)
	}

	SortSourceOrder(out)
	debug.LogExtract("rule %s: %d matches\n", rule, len(out))
	return out, nil
}

// check evaluates every rule predicate against its capture.
func (m *Matcher) check(cand *Match) (bool, error) {
	for _, p := range cand.Rule.Predicates {
		node, ok := cand.Node(p.Capture)
		if !ok {
			// An optional capture that did not participate fails its predicate
			return false, nil
		}
		held, err := Evaluate(p.Name, m.spec, node, p.Args)
		if err != nil {
			return false, fmt.Errorf("rule %s: %w", cand.Rule, err)
		}
		if !held {
			return false, nil
		}
	}
	return true, nil
}

// SortSourceOrder orders matches by start byte, outer nodes first, then by
// pattern index.
func SortSourceOrder(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := &ms[i].Main, &ms[j].Main
		if a.StartByte() != b.StartByte() {
			return a.StartByte() < b.StartByte()
		}
		if a.EndByte() != b.EndByte() {
			return a.EndByte() > b.EndByte()
		}
		return ms[i].PatternIndex < ms[j].PatternIndex
	})
}

// Raw runs an arbitrary query and returns every match's captures in source
// order. It serves the per-file call and type scans.
func Raw(ctx context.Context, q *tree_sitter.Query, root *tree_sitter.Node, src []byte) ([][]Capture, error) {
	names := q.CaptureNames()
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(q, root, src)

	var out [][]Capture
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		qm := matches.Next()
		if qm == nil {
			break
		}
		caps := make([]Capture, 0, len(qm.Captures))
		for _, c := range qm.Captures {
			caps = append(caps, Capture{Name: names[c.Index], Node: c.Node})
		}
		if len(caps) > 0 {
			out = append(out, caps)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i][0].Node.StartByte() < out[j][0].Node.StartByte()
	})
	return out, nil
}
