package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/bananaindex/internal/async"
	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/search"
	"github.com/Aman-CERP/bananaindex/pkg/version"
)

const (
	serverName         = "bananaindex"
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Deps are the collaborators behind the tools.
type Deps struct {
	Search  *search.Service
	Tracker *async.Tracker
	Indexer *async.BackgroundIndexer
}

// Server is the MCP server. It exposes the case index to AI clients.
type Server struct {
	mcp    *mcp.Server
	deps   Deps
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search prompt cases and source READMEs by keyword, in Chinese or English. Filter by language (zh, en, both) and by source submodule.",
	},
	{
		Name:        "get_case",
		Description: "Fetch one document in full by the id returned from search, including both prompts, author and image path.",
	},
	{
		Name:        "list_submodules",
		Description: "List the content sources present in the index. Use the names as the submodule filter of search.",
	},
	{
		Name:        "suggest",
		Description: "Autocomplete titles for a partial query of at least two characters.",
	},
	{
		Name:        "index_status",
		Description: "Report whether the index is built, its document count and the progress of a running indexing job.",
	},
	{
		Name:        "trigger_index",
		Description: "Start building the index in the background. Returns running if a build is in progress and complete if the index already has documents, unless force is set.",
	},
}

// NewServer creates a new MCP server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Search == nil {
		return nil, errors.New("search service is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("progress tracker is required")
	}
	if deps.Indexer == nil {
		return nil, errors.New("background indexer is required")
	}

	s := &Server{
		deps:   deps,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func description(name string) string {
	for _, t := range tools {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search", Description: description("search")}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_case", Description: description("get_case")}, s.mcpGetCaseHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "list_submodules", Description: description("list_submodules")}, s.mcpListSubmodulesHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "suggest", Description: description("suggest")}, s.mcpSuggestHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "index_status", Description: description("index_status")}, s.mcpIndexStatusHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "trigger_index", Description: description("trigger_index")}, s.mcpTriggerIndexHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with JSON-style arguments and returns
// its structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return call(ctx, args, s.search)
	case "get_case":
		return call(ctx, args, s.getCase)
	case "list_submodules":
		return call(ctx, args, s.listSubmodules)
	case "suggest":
		return call(ctx, args, s.suggest)
	case "index_status":
		return call(ctx, args, s.indexStatus)
	case "trigger_index":
		return call(ctx, args, s.triggerIndex)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func call[In, Out any](ctx context.Context, args map[string]any, fn func(context.Context, In) (Out, error)) (any, error) {
	var in In
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	out, err := fn(ctx, in)
	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	resp, err := s.query(ctx, in)
	if err != nil {
		return SearchOutput{}, err
	}
	return toSearchOutput(resp), nil
}

func (s *Server) query(ctx context.Context, in SearchInput) (search.Response, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return search.Response{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	lang := document.LanguageBoth
	if in.Language != "" {
		if lang = document.ParseLanguage(in.Language); lang == "" {
			return search.Response{}, NewInvalidParamsError("language must be zh, en or both")
		}
	}

	start := time.Now()
	requestID := generateRequestID()
	resp := s.deps.Search.Search(ctx, search.Request{
		Query:      query,
		Language:   lang,
		Submodules: search.ParseSubmodules(in.Submodule),
		Limit:      clampLimit(in.Limit, defaultSearchLimit, 1, maxSearchLimit),
		Offset:     max(in.Offset, 0),
	})
	s.logger.Info("mcp_search",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("results", len(resp.Hits)),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

func (s *Server) getCase(ctx context.Context, in GetCaseInput) (GetCaseOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return GetCaseOutput{}, NewInvalidParamsError("id parameter is required")
	}
	doc, ok := s.deps.Search.GetCaseByID(ctx, in.ID)
	if !ok {
		return GetCaseOutput{Found: false}, nil
	}
	return GetCaseOutput{Found: true, Document: &doc}, nil
}

func (s *Server) listSubmodules(ctx context.Context, _ ListSubmodulesInput) (ListSubmodulesOutput, error) {
	return ListSubmodulesOutput{Submodules: s.deps.Search.GetSubmodules(ctx)}, nil
}

func (s *Server) suggest(ctx context.Context, in SuggestInput) (SuggestOutput, error) {
	return SuggestOutput{Suggestions: s.deps.Search.GetSuggestions(ctx, in.Prefix, in.Limit)}, nil
}

func (s *Server) indexStatus(ctx context.Context, _ IndexStatusInput) (IndexStatusOutput, error) {
	out := IndexStatusOutput{Status: s.deps.Tracker.Progress(ctx)}
	if snap := s.deps.Indexer.Progress().Snapshot(); snap.Stage != async.RunStageIdle {
		out.Run = &snap
	}
	return out, nil
}

func (s *Server) triggerIndex(ctx context.Context, in TriggerIndexInput) (TriggerIndexOutput, error) {
	return s.deps.Indexer.Trigger(ctx, in.Force)
}

// mcpSearchHandler is the MCP SDK handler for the search tool. The
// markdown rendering goes to the text content, the hits to the structured
// output.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	resp, err := s.query(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	out := toSearchOutput(resp)
	text := FormatSearchResults(strings.TrimSpace(input.Query), resp)
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, out, nil
}

// mcpGetCaseHandler returns the case as markdown text plus the structured document.
func (s *Server) mcpGetCaseHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetCaseInput) (
	*mcp.CallToolResult,
	GetCaseOutput,
	error,
) {
	out, err := s.getCase(ctx, input)
	if err != nil {
		return nil, GetCaseOutput{}, MapError(err)
	}
	text := fmt.Sprintf("No document with id %q.", input.ID)
	if out.Found {
		text = FormatCase(*out.Document)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, out, nil
}

func (s *Server) mcpListSubmodulesHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListSubmodulesInput) (
	*mcp.CallToolResult,
	ListSubmodulesOutput,
	error,
) {
	out, err := s.listSubmodules(ctx, input)
	return nil, out, err
}

func (s *Server) mcpSuggestHandler(ctx context.Context, _ *mcp.CallToolRequest, input SuggestInput) (
	*mcp.CallToolResult,
	SuggestOutput,
	error,
) {
	out, err := s.suggest(ctx, input)
	return nil, out, err
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx, input)
	return nil, out, err
}

func (s *Server) mcpTriggerIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input TriggerIndexInput) (
	*mcp.CallToolResult,
	TriggerIndexOutput,
	error,
) {
	out, err := s.triggerIndex(ctx, input)
	if err != nil {
		return nil, TriggerIndexOutput{}, MapError(err)
	}
	return nil, out, nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_started", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
