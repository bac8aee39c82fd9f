package display

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/indexing"
	"github.com/standardbeagle/codegraph/internal/qname"
	"github.com/standardbeagle/codegraph/internal/resolve"
	"github.com/standardbeagle/codegraph/internal/types"
)

func testEntity(et types.EntityType, qn, parent string, line int) *types.Entity {
	q := qname.MustParse(qn)
	return &types.Entity{
		ID:            extract.EntityID("repo", q, et),
		Name:          q.SimpleName(),
		QualifiedName: q,
		ParentScope:   parent,
		EntityType:    et,
		Visibility:    types.VisibilityPublic,
		Location:      types.Location{FilePath: "src/lib.rs", StartLine: line, StartColumn: 1},
	}
}

func createTestEntities() []*types.Entity {
	return []*types.Entity{
		testEntity(types.EntityModule, "demo", "", 1),
		testEntity(types.EntityStruct, "demo::Config", "demo", 3),
		testEntity(types.EntityMethod, "demo::Config::load", "demo::Config", 6),
		testEntity(types.EntityFunction, "demo::run", "demo", 12),
		testEntity(types.EntityFunction, "orphan::f", "orphan", 20),
	}
}

// TestNewTreeFormatter tests the new tree formatter.
func TestNewTreeFormatter(t *testing.T) {
	formatter := NewTreeFormatter(FormatterOptions{})
	assert.NotNil(t, formatter)
	assert.Equal(t, "  ", formatter.options.Indent)

	options := FormatterOptions{
		Format:    FormatText,
		ShowLines: true,
		ShowIDs:   true,
		MaxDepth:  5,
		Indent:    "\t",
	}
	formatter = NewTreeFormatter(options)
	assert.Equal(t, options, formatter.options)
}

func TestTreeFormatter_Format_Empty(t *testing.T) {
	assert.Equal(t, "No entities", NewTreeFormatter(FormatterOptions{}).Format(nil))
}

// TestTreeFormatter_Format_Text tests nesting by parent scope and the
// branch characters
func TestTreeFormatter_Format_Text(t *testing.T) {
	output := NewTreeFormatter(FormatterOptions{Format: FormatText}).Format(createTestEntities())

	assert.Contains(t, output, "5 entities, 2 top level")
	assert.Contains(t, output, "→ demo (module, public)")
	assert.Contains(t, output, "  ├─→ demo::Config (struct, public)")
	assert.Contains(t, output, "  │ └─→ demo::Config::load (method, public)")
	assert.Contains(t, output, "  └─→ demo::run (function, public)")
	assert.Contains(t, output, "→ orphan::f (function, public)")
}

func TestTreeFormatter_Format_WithLines(t *testing.T) {
	output := NewTreeFormatter(FormatterOptions{ShowLines: true, ShowIDs: true}).Format(createTestEntities())
	assert.Contains(t, output, "[src/lib.rs:6]")
	assert.Contains(t, output, createTestEntities()[2].ID)
}

// TestTreeFormatter_Format_MaxDepth tests the tree formatter format max depth.
func TestTreeFormatter_Format_MaxDepth(t *testing.T) {
	output := NewTreeFormatter(FormatterOptions{MaxDepth: 1}).Format(createTestEntities())
	assert.Contains(t, output, "demo::Config")
	assert.NotContains(t, output, "demo::Config::load")
}

func TestTreeFormatter_Format_Compact(t *testing.T) {
	output := NewTreeFormatter(FormatterOptions{Format: FormatCompact}).Format(createTestEntities())
	lines := strings.Split(output, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "method\tdemo::Config::load\tsrc/lib.rs:6:1", lines[2])
}

func TestTreeFormatter_Format_JSON(t *testing.T) {
	output := NewTreeFormatter(FormatterOptions{Format: FormatJSON}).Format(createTestEntities())
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	require.Len(t, decoded, 5)
	qn, ok := decoded[2]["qualified_name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "demo::Config::load", qn["rendered"])
}

func testReport() *resolve.Report {
	calls := resolve.KindReport{Kind: resolve.KindCalls, References: 4, Resolved: 3, External: 1, Edges: 6,
		ByStrategy: map[resolve.Strategy]int{resolve.StrategyQualifiedName: 2, resolve.StrategyUniqueSimpleName: 1}}
	uses := resolve.KindReport{Kind: resolve.KindUses, Error: "resolution of uses failed: boom"}
	return &resolve.Report{
		RepositoryID: "repo",
		Entities:     5,
		Kinds:        []resolve.KindReport{calls, uses},
		Totals:       resolve.KindReport{Kind: "total", References: 4, Resolved: 3, External: 1, Edges: 6, ByStrategy: calls.ByStrategy},
		Externals:    1,
		Duration:     1500 * time.Microsecond,
	}
}

func TestReportFormatter_FormatResolve(t *testing.T) {
	output := NewReportFormatter(FormatterOptions{}).FormatResolve(testReport())
	assert.Contains(t, output, "Resolution: 5 entities, 1 external stubs")
	assert.Contains(t, output, "calls")
	assert.Contains(t, output, "error: resolution of uses failed: boom")
	assert.Contains(t, output, "by strategy: qualified_name=2 unique_simple_name=1")

	compact := NewReportFormatter(FormatterOptions{Format: FormatCompact}).FormatResolve(testReport())
	assert.Equal(t, "edges=6 resolved=3 external=1 ambiguous=0 externals=1 failed=uses", compact)

	assert.Equal(t, "No resolution data available", NewReportFormatter(FormatterOptions{}).FormatResolve(nil))
}

func TestReportFormatter_FormatRun(t *testing.T) {
	run := &indexing.RunReport{
		RepositoryID: "repo",
		Scan:         indexing.ScanStats{Files: 2, Bytes: 120, Binary: 1},
		Extract:      extract.Summary{Files: 2, Entities: 5, References: 4, Failed: 1},
		Failures:     []indexing.FailedFile{{Path: "src/bad.rs", Error: "parse error"}},
		Resolve:      testReport(),
		Duration:     2 * time.Second,
	}

	text := NewReportFormatter(FormatterOptions{}).FormatRun(run)
	assert.Contains(t, text, "Indexed repository repo in 2s")
	assert.Contains(t, text, "Scanned 2 files (120 bytes)")
	assert.Contains(t, text, "Extraction: 2 files, 5 entities, 4 references")
	assert.Contains(t, text, "failed: src/bad.rs: parse error")
	assert.Contains(t, text, "Resolution:")

	compact := NewReportFormatter(FormatterOptions{Format: FormatCompact}).FormatRun(run)
	assert.True(t, strings.HasPrefix(compact, "files=2 entities=5 references=4 failed=1 edges=6"), compact)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(NewReportFormatter(FormatterOptions{Format: FormatJSON}).FormatRun(run)), &decoded))
	assert.Equal(t, "repo", decoded["repository_id"])
}
