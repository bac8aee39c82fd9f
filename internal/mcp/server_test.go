package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/codegraph/internal/config"
	"github.com/standardbeagle/codegraph/internal/indexing"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/store"
	"github.com/standardbeagle/codegraph/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const libRS = `/// Adds one.
pub fn helper(x: u32) -> u32 {
    x + 1
}

pub fn run() -> u32 {
    helper(1)
}
`

type toolHandler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "lib.rs"), []byte(libRS), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[package]\nname = \"demo\"\n"), 0644))

	cfg := config.Default(root)
	cfg.Finalize()
	set, err := rules.LoadAll("", types.LanguageRust)
	require.NoError(t, err)
	st := store.NewMemoryStore()
	p, err := indexing.NewPipeline(cfg, set, st, indexing.Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Close()
		st.Close()
		set.Close()
	})
	return NewServer(p)
}

func createMockRequest(name string, params map[string]any) *mcp.CallToolRequest {
	jsonData, _ := json.Marshal(params)
	return &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: jsonData,
		},
	}
}

func callTool(t *testing.T, handler toolHandler, name string, params map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	result, err := handler(context.Background(), createMockRequest(name, params))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return result, text.Text
}

func TestExtractFileFromDisk(t *testing.T) {
	s := newTestServer(t)

	result, text := callTool(t, s.handleExtractFile, "extract_file", map[string]any{
		"path":               "src/lib.rs",
		"include_references": true,
	})
	require.False(t, result.IsError, text)

	var resp ExtractFileResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, "src/lib.rs", resp.Path)
	assert.Equal(t, types.LanguageRust, resp.Language)
	assert.False(t, resp.Partial)

	byName := make(map[string]EntityView)
	for _, e := range resp.Entities {
		byName[e.Name] = e
	}
	require.Contains(t, byName, "helper")
	require.Contains(t, byName, "run")
	assert.Equal(t, types.EntityFunction, byName["helper"].Type)
	assert.Contains(t, byName["helper"].Documentation, "Adds one.")
	require.NotNil(t, byName["run"].References)
	assert.NotEmpty(t, byName["run"].References.Calls)
}

func TestExtractFileWithContent(t *testing.T) {
	s := newTestServer(t)
	_, text := callTool(t, s.handleExtractFile, "extract_file", map[string]any{
		"path":    "src/other.rs",
		"content": "pub struct Point { x: i32 }\n",
	})
	var resp ExtractFileResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.NotEmpty(t, resp.Entities)
	// the file module encloses everything else, so it comes first
	assert.Equal(t, "other", resp.Entities[0].Name)
	assert.Equal(t, types.EntityModule, resp.Entities[0].Type)

	byName := make(map[string]EntityView)
	for _, e := range resp.Entities {
		byName[e.Name] = e
	}
	require.Contains(t, byName, "Point")
	assert.Equal(t, types.EntityStruct, byName["Point"].Type)
	assert.Nil(t, byName["Point"].References)
}

// TestExtractFileRejectsBadPaths tests that failures come back as tool
// errors rather than protocol errors
func TestExtractFileRejectsBadPaths(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"escapes root", "../outside.rs"},
		{"absolute", "/etc/passwd.rs"},
		{"unsupported", "README.md"},
		{"missing", "src/missing.rs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, text := callTool(t, s.handleExtractFile, "extract_file", map[string]any{"path": tt.path})
			assert.True(t, result.IsError)
			assert.Contains(t, text, `"success":false`)
		})
	}
}

// TestFindEntityAfterIndex tests the index_repository then find_entity flow
func TestFindEntityAfterIndex(t *testing.T) {
	s := newTestServer(t)

	result, text := callTool(t, s.handleFindEntity, "find_entity", map[string]any{"name": "helper"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "index_repository")

	result, text = callTool(t, s.handleIndexRepository, "index_repository", map[string]any{})
	require.False(t, result.IsError, text)
	var report indexing.RunReport
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, 1, report.Scan.Files)
	require.NotNil(t, report.Resolve)

	_, text = callTool(t, s.handleFindEntity, "find_entity", map[string]any{"name": "run"})
	var run FindEntityResponse
	require.NoError(t, json.Unmarshal([]byte(text), &run))
	require.Equal(t, 1, run.Count)
	runID := run.Entities[0].ID

	_, text = callTool(t, s.handleFindEntity, "find_entity", map[string]any{
		"name":          "helper",
		"type":          "function",
		"include_edges": true,
	})
	var helper FindEntityResponse
	require.NoError(t, json.Unmarshal([]byte(text), &helper))
	require.Equal(t, 1, helper.Count)
	assert.Contains(t, helper.Entities[0].Edges, types.Edge{SourceID: runID, TargetID: helper.Entities[0].ID, Kind: types.RelCalls})

	result, _ = callTool(t, s.handleFindEntity, "find_entity", map[string]any{})
	assert.True(t, result.IsError)
}

func TestIndexRepositoryTextFormat(t *testing.T) {
	s := newTestServer(t)
	result, text := callTool(t, s.handleIndexRepository, "index_repository", map[string]any{"format": "text"})
	require.False(t, result.IsError, text)
	assert.Contains(t, text, "Indexed repository")
	assert.Contains(t, text, "Resolution:")
}
