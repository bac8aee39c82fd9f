// Package mcp exposes extraction and the stored code graph as Model Context
// Protocol tools over stdio.
package mcp

import (
	"context"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/indexing"
	"github.com/standardbeagle/codegraph/internal/version"
)

// Server serves one repository's pipeline as MCP tools.
type Server struct {
	server   *mcp.Server
	pipeline *indexing.Pipeline

	// indexMu serializes index_repository calls from one client; the
	// pipeline coalesces resolution across clients and the watcher.
	indexMu sync.Mutex
}

// NewServer creates a server over an existing pipeline. The pipeline stays
// owned by the caller.
func NewServer(p *indexing.Pipeline) *Server {
	s := &Server{pipeline: p}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codegraph",
		Version: version.Info(),
	}, nil)
	s.registerTools()
	return s
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "extract_file",
		Description: "Extract the code entities of one file (functions, types, modules, impls) with qualified names, locations and unresolved references. Reads the file from the repository unless content is given.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Repository-relative file path; its extension selects the language",
				},
				"content": {
					Type:        "string",
					Description: "Source text to extract instead of the file on disk",
				},
				"include_references": {
					Type:        "boolean",
					Description: "Include each entity's unresolved references",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleExtractFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Scan, extract and resolve the whole repository, store the graph and return the extraction and resolution report.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"format": {
					Type:        "string",
					Description: "Report format",
					Enum:        []any{"json", "text", "compact"},
				},
			},
		},
	}, s.handleIndexRepository)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_entity",
		Description: "Look up stored entities by simple name, qualified name, type or file, optionally with the edges touching them. Run index_repository first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Simple name, e.g. 'parse'",
				},
				"qualified_name": {
					Type:        "string",
					Description: "Rendered qualified name, e.g. 'mycrate::config::parse'",
				},
				"type": {
					Type:        "string",
					Description: "Entity type, e.g. 'function', 'struct', 'trait'",
				},
				"file": {
					Type:        "string",
					Description: "Repository-relative file path",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum entities returned (default 50)",
				},
				"include_edges": {
					Type:        "boolean",
					Description: "Include incoming and outgoing edges of each entity",
				},
			},
		},
	}, s.handleFindEntity)
}

// Start serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	// stdout carries the protocol
	debug.SetMCPMode(true)
	debug.LogMCP("starting MCP server for %s\n", s.pipeline.Config().Project.Root)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying SDK server, for custom transports.
func (s *Server) MCPServer() *mcp.Server { return s.server }
