// Package mcp exposes the course catalog and retrieval pipeline as MCP
// tools over stdio, so agent clients can search and inspect courses.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/session"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes course search tools.
type Server struct {
	engine *session.Engine
	meta   *catalog.Metadata
	corpus *catalog.Corpus
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server over a ready engine and catalog.
func NewServer(engine *session.Engine, meta *catalog.Metadata, corpus *catalog.Corpus) *Server {
	s := &Server{
		engine: engine,
		meta:   meta,
		corpus: corpus,
	}

	s.mcp = server.NewMCPServer(
		"advisor",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCoursesTool, s.handleSearchCourses)
	s.mcp.AddTool(listFilterValuesTool, s.handleListFilterValues)
	s.mcp.AddTool(getCourseTool, s.handleGetCourse)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
