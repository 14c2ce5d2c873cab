package query

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/symgraph/pkg/querylog"
)

const serverVersion = "0.1.0-dev"

// Server exposes the query contract over MCP stdio, the request/response
// boundary between the core and an editor-protocol client.
type Server struct {
	mcpServer *server.MCPServer
	service   *Service
	logger    *querylog.Logger // may be nil if logging is disabled
}

// NewServer creates an MCP server backed by the given Service and optional
// call logger. Pass nil for logger to disable call logging.
func NewServer(svc *Service, logger *querylog.Logger) *Server {
	s := &Server{service: svc, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("symgraph", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: findDefinitionsTool(), Handler: s.handleFindDefinitions},
		server.ServerTool{Tool: findReferencesTool(), Handler: s.handleFindReferences},
		server.ServerTool{Tool: searchSymbolsTool(), Handler: s.handleSearchSymbols},
		server.ServerTool{Tool: getFileSymbolsTool(), Handler: s.handleGetFileSymbols},
		server.ServerTool{Tool: findDefinitionAtTool(), Handler: s.handleFindDefinitionAt},
		server.ServerTool{Tool: rebuildTool(), Handler: s.handleRebuild},
		server.ServerTool{Tool: clearCacheTool(), Handler: s.handleClearCache},
		server.ServerTool{Tool: statsTool(), Handler: s.handleStats},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close shuts down the call logger if one is active.
func (s *Server) Close() error {
	if s.logger != nil {
		return s.logger.Close()
	}
	return nil
}
