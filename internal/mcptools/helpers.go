// Package mcptools exposes the history store to MCP clients.
//
// Each tool is a struct holding its store dependency, with Definition()
// returning the mcp.Tool schema and Handle() processing a call. Tools only
// ever return masked command text.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/pkg/models"
)

// Store is the read-only part of the history store the tools use
type Store interface {
	Retrieve(opts db.RetrieveOptions) ([]models.CommandRecord, error)
	ListCategories() ([]string, error)
	LatestProfile() (*models.ProfileReport, error)
}

// NewServer builds an MCP server with every history tool registered
func NewServer(store Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mergen",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Read-only access to the user's shell command history. "+
			"Commands are stored with secrets and IP addresses already replaced by <REDACTED_n> tokens."),
	)

	search := NewSearchTool(store)
	s.AddTool(search.Definition(), search.Handle)

	categories := NewCategoriesTool(store)
	s.AddTool(categories.Definition(), categories.Handle)

	profile := NewProfileTool(store)
	s.AddTool(profile.Definition(), profile.Handle)

	return s
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
