package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/display"
	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/store"
	"github.com/standardbeagle/codegraph/internal/types"
	"github.com/standardbeagle/codegraph/pkg/pathutil"
)

const defaultFindLimit = 50

// ExtractFileParams are the arguments of extract_file.
type ExtractFileParams struct {
	Path              string  `json:"path"`
	Content           *string `json:"content,omitempty"`
	IncludeReferences bool    `json:"include_references,omitempty"`
}

// IndexRepositoryParams are the arguments of index_repository.
type IndexRepositoryParams struct {
	Format string `json:"format,omitempty"`
}

// FindEntityParams are the arguments of find_entity.
type FindEntityParams struct {
	Name          string `json:"name,omitempty"`
	QualifiedName string `json:"qualified_name,omitempty"`
	Type          string `json:"type,omitempty"`
	File          string `json:"file,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	IncludeEdges  bool   `json:"include_edges,omitempty"`
}

// EntityView is the wire form of an entity. The qualified name is rendered
// to a string and content is left out.
type EntityView struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	QualifiedName string                  `json:"qualified_name"`
	Type          types.EntityType        `json:"type"`
	Visibility    types.Visibility        `json:"visibility,omitempty"`
	ParentScope   string                  `json:"parent_scope,omitempty"`
	Location      string                  `json:"location"`
	Signature     *types.Signature        `json:"signature,omitempty"`
	Documentation string                  `json:"documentation,omitempty"`
	References    *types.RelationshipRefs `json:"references,omitempty"`
	Edges         []types.Edge            `json:"edges,omitempty"`
}

func viewOf(e *types.Entity, withRefs bool) EntityView {
	v := EntityView{
		ID:            e.ID,
		Name:          e.SimpleName(),
		QualifiedName: e.QualifiedName.String(),
		Type:          e.EntityType,
		Visibility:    e.Visibility,
		ParentScope:   e.ParentScope,
		Location:      e.Location.String(),
		Signature:     e.Signature,
		Documentation: e.Documentation,
	}
	if withRefs && !e.Relationships.IsEmpty() {
		refs := e.Relationships
		v.References = &refs
	}
	return v
}

// ExtractFileResponse is the result of extract_file.
type ExtractFileResponse struct {
	Path     string         `json:"path"`
	Language types.Language `json:"language"`
	Partial  bool           `json:"partial,omitempty"`
	Entities []EntityView   `json:"entities"`
	Skipped  []string       `json:"skipped,omitempty"`
}

func (s *Server) handleExtractFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ExtractFileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("extract_file", fmt.Errorf("invalid parameters: %w", err),
			`Use: {"path": "src/lib.rs"}`)
	}
	root := s.pipeline.Config().Project.Root
	rel, err := pathutil.ToRepoPath(params.Path, root)
	if err != nil {
		return createErrorResponse("extract_file", err, "Pass a path relative to the repository root")
	}
	if !lang.Supported(rel) {
		return createErrorResponse("extract_file", fmt.Errorf("no language registered for %s", rel),
			fmt.Sprintf("Supported languages: %v", lang.Names()))
	}

	var content []byte
	if params.Content != nil {
		content = []byte(*params.Content)
	} else {
		data, err := os.ReadFile(pathutil.ToAbsolute(rel, root))
		if err != nil {
			return createErrorResponse("extract_file", err, "Pass the source as content if the file is not on disk")
		}
		content = data
	}

	res, err := s.pipeline.Extractor().ExtractFile(ctx, extract.File{Path: rel, Content: content})
	if err != nil {
		return createErrorResponse("extract_file", err, "")
	}

	resp := ExtractFileResponse{
		Path:     res.Path,
		Language: res.Language,
		Partial:  res.Partial,
		Entities: make([]EntityView, 0, len(res.Entities)),
	}
	for _, e := range res.Entities {
		resp.Entities = append(resp.Entities, viewOf(e, params.IncludeReferences))
	}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, sk.Error())
	}
	debug.LogMCP("extract_file %s: %d entities\n", rel, len(resp.Entities))
	return createJSONResponse(resp)
}

func (s *Server) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params IndexRepositoryParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("index_repository", fmt.Errorf("invalid parameters: %w", err), `Use: {"format": "text"}`)
		}
	}

	s.indexMu.Lock()
	report, err := s.pipeline.Run(ctx)
	s.indexMu.Unlock()
	if err != nil {
		return createErrorResponse("index_repository", err, "")
	}

	switch params.Format {
	case display.FormatText, display.FormatCompact:
		return createTextResponse(display.NewReportFormatter(display.FormatterOptions{Format: params.Format}).FormatRun(report)), nil
	}
	return createJSONResponse(report)
}

// FindEntityResponse is the result of find_entity.
type FindEntityResponse struct {
	Entities []EntityView `json:"entities"`
	Count    int          `json:"count"`
}

var errNotIndexed = errors.New("repository has not been indexed")

func (s *Server) handleFindEntity(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FindEntityParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("find_entity", fmt.Errorf("invalid parameters: %w", err),
			`Use: {"name": "parse"} or {"qualified_name": "mycrate::config::parse"}`)
	}
	if params.Name == "" && params.QualifiedName == "" && params.Type == "" && params.File == "" {
		return createErrorResponse("find_entity", errors.New("at least one of name, qualified_name, type or file is required"), "")
	}
	if params.Limit <= 0 {
		params.Limit = defaultFindLimit
	}

	st := s.pipeline.Store()
	repo := s.pipeline.Config().Project.RepositoryID
	if s.pipeline.Last() == nil {
		// A persistent store may hold a graph from an earlier process
		if all, err := st.Find(ctx, repo, store.Query{Limit: 1}); err != nil || len(all) == 0 {
			return createErrorResponse("find_entity", errNotIndexed, "Call index_repository first")
		}
	}

	found, err := st.Find(ctx, repo, store.Query{
		Name:          params.Name,
		QualifiedName: params.QualifiedName,
		Type:          types.EntityType(params.Type),
		File:          params.File,
		Limit:         params.Limit,
	})
	if err != nil {
		return createErrorResponse("find_entity", err, "")
	}

	resp := FindEntityResponse{Entities: make([]EntityView, 0, len(found)), Count: len(found)}
	for _, e := range found {
		v := viewOf(e, false)
		if params.IncludeEdges {
			edges, err := st.EdgesFor(ctx, repo, e.ID)
			if err != nil {
				return createErrorResponse("find_entity", err, "")
			}
			v.Edges = edges
		}
		resp.Entities = append(resp.Entities, v)
	}
	return createJSONResponse(resp)
}
