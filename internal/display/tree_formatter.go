package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/codegraph/internal/types"
)

// Output formats understood by the formatters.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatCompact = "compact"
)

// FormatterOptions controls formatting
type FormatterOptions struct {
	Format    string // "text", "json", "compact"
	ShowLines bool   // Show file and line of each entity
	ShowIDs   bool   // Show entity ids
	MaxDepth  int    // Maximum tree depth to display, 0 for all
	Indent    string // Indentation string
}

// TreeFormatter renders entities as a containment tree
type TreeFormatter struct {
	options FormatterOptions
}

// NewTreeFormatter creates a new tree formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &TreeFormatter{options: options}
}

// treeNode is one entity with the entities whose parent scope it is
type treeNode struct {
	entity   *types.Entity
	children []*treeNode
	depth    int
}

// buildTree nests entities under the entity named by their parent scope.
// Entities whose parent is absent become roots. Input order is kept among
// siblings.
func buildTree(entities []*types.Entity) []*treeNode {
	byQName := make(map[string]*treeNode, len(entities))
	nodes := make([]*treeNode, len(entities))
	for i, e := range entities {
		nodes[i] = &treeNode{entity: e}
		if _, ok := byQName[e.QualifiedName.String()]; !ok {
			byQName[e.QualifiedName.String()] = nodes[i]
		}
	}
	var roots []*treeNode
	for _, n := range nodes {
		parent, ok := byQName[n.entity.ParentScope]
		if !ok || n.entity.ParentScope == "" || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.children = append(parent.children, n)
	}
	var setDepth func(n *treeNode, d int)
	setDepth = func(n *treeNode, d int) {
		n.depth = d
		for _, c := range n.children {
			setDepth(c, d+1)
		}
	}
	for _, r := range roots {
		setDepth(r, 0)
	}
	return roots
}

// Format formats entities for display
func (tf *TreeFormatter) Format(entities []*types.Entity) string {
	if len(entities) == 0 {
		return "No entities"
	}

	switch tf.options.Format {
	case FormatJSON:
		return tf.formatJSON(entities)
	case FormatCompact:
		return tf.formatCompact(entities)
	default:
		return tf.formatText(entities)
	}
}

// formatText formats entities as an ASCII tree
func (tf *TreeFormatter) formatText(entities []*types.Entity) string {
	var sb strings.Builder
	roots := buildTree(entities)
	sb.WriteString(fmt.Sprintf("%d entities, %d top level\n\n", len(entities), len(roots)))
	for i, r := range roots {
		tf.formatNode(&sb, r, "", i == len(roots)-1, true)
	}
	return sb.String()
}

// formatNode recursively formats a tree node
func (tf *TreeFormatter) formatNode(sb *strings.Builder, node *treeNode, prefix string, isLast bool, isRoot bool) {
	if tf.options.MaxDepth > 0 && node.depth > tf.options.MaxDepth {
		return
	}

	var branch string
	if isRoot {
		branch = "→ "
	} else if isLast {
		branch = "└─→ "
	} else {
		branch = "├─→ "
	}

	e := node.entity
	sb.WriteString(prefix)
	sb.WriteString(branch)
	sb.WriteString(e.QualifiedName.String())
	sb.WriteString(fmt.Sprintf(" (%s", e.EntityType))
	if e.Visibility != "" {
		sb.WriteString(", " + string(e.Visibility))
	}
	sb.WriteString(")")

	if tf.options.ShowLines && e.Location.StartLine > 0 {
		sb.WriteString(fmt.Sprintf(" [%s:%d]", e.Location.FilePath, e.Location.StartLine))
	}
	if tf.options.ShowIDs {
		sb.WriteString(" " + e.ID)
	}
	sb.WriteString("\n")

	for i, child := range node.children {
		var childPrefix string
		if isRoot || isLast {
			childPrefix = prefix + tf.options.Indent
		} else {
			childPrefix = prefix + "│" + strings.Repeat(" ", max(len(tf.options.Indent)-1, 0))
		}
		tf.formatNode(sb, child, childPrefix, i == len(node.children)-1, false)
	}
}

// formatCompact lists one entity per line without nesting
func (tf *TreeFormatter) formatCompact(entities []*types.Entity) string {
	lines := make([]string, 0, len(entities))
	for _, e := range entities {
		line := fmt.Sprintf("%s\t%s\t%s", e.EntityType, e.QualifiedName.String(), e.Location)
		if tf.options.ShowIDs {
			line += "\t" + e.ID
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (tf *TreeFormatter) formatJSON(entities []*types.Entity) string {
	return marshal(entities)
}

func marshal(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
