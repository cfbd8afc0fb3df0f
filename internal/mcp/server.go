package mcp

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ideactx-mcp/internal/health"
	"github.com/dshills/ideactx-mcp/internal/indexer"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "ideactx-mcp"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"

	instructions = "Performs staged semantic search over Java symbols exported by the IntelliJ PSI bridge " +
		"and a local vector index. Query modules, classes and methods, and review module hits separately " +
		"before relying on the delivered context."
)

// ErrNoPipeline is returned by NewServer without a search pipeline
var ErrNoPipeline = errors.New("mcp server requires a search pipeline")

// Deps are the application components the tools call into. Only Pipeline
// is required; index_symbols is unavailable without an Indexer.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Health   *health.Checker
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	pipeline *pipeline.Pipeline
	health   *health.Checker
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, ErrNoPipeline
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	s := &Server{
		mcp:      mcpServer,
		pipeline: deps.Pipeline,
		health:   deps.Health,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
	}

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve starts the MCP server on stdio and blocks until ctx is done or
// stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StreamableHTTP returns an http.Handler serving the same tools over the
// streamable HTTP transport
func (s *Server) StreamableHTTP() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// Tools returns the registered tool definitions
func (s *Server) Tools() []mcp.Tool {
	return toolDefinitions(s.indexer != nil)
}

func toolDefinitions(withIndex bool) []mcp.Tool {
	tools := []mcp.Tool{
		searchJavaSymbolTool(),
		searchJavaClassTool(),
		healthCheckTool(),
	}
	if withIndex {
		tools = append(tools, indexSymbolsTool())
	}
	return tools
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Search tools share one handler
	s.mcp.AddTool(searchJavaSymbolTool(), s.handleSearch)
	s.mcp.AddTool(searchJavaClassTool(), s.handleSearch)

	s.mcp.AddTool(healthCheckTool(), s.handleHealthCheck)

	if s.indexer != nil {
		s.mcp.AddTool(indexSymbolsTool(), s.handleIndexSymbols)
	}
}
