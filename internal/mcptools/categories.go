package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// CategoriesTool handles the history_categories MCP tool.
type CategoriesTool struct {
	store Store
}

// NewCategoriesTool creates a CategoriesTool.
func NewCategoriesTool(store Store) *CategoriesTool {
	return &CategoriesTool{store: store}
}

// Definition returns the MCP tool definition for history_categories.
func (t *CategoriesTool) Definition() mcp.Tool {
	return mcp.NewTool("history_categories",
		mcp.WithDescription("List the categories that currently have stored commands."),
	)
}

// Handle processes the history_categories tool call.
func (t *CategoriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categories, err := t.store.ListCategories()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list categories: %v", err)), nil
	}
	if len(categories) == 0 {
		return mcp.NewToolResultText("No commands recorded yet."), nil
	}

	var sb strings.Builder
	sb.WriteString("## Categories\n\n")
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
