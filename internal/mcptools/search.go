package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chris/mergen/internal/db"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchTool handles the history_search MCP tool.
type SearchTool struct {
	store Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for history_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("history_search",
		mcp.WithDescription(
			"Search the user's recorded shell commands. Matches the text against the masked command, "+
				"the question that produced it and its explanation.",
		),
		mcp.WithString("query",
			mcp.Description("Substring to match, case-insensitive. Empty returns the most recent commands."),
		),
		mcp.WithString("category",
			mcp.Description("Restrict to one category, e.g. Network, Git/VCS, Container"),
		),
		mcp.WithBoolean("favorites_only",
			mcp.Description("Only starred commands"),
		),
		mcp.WithBoolean("sort_by_usage",
			mcp.Description("Order by usage count instead of recency"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
	)
}

// Handle processes the history_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	records, err := t.store.Retrieve(db.RetrieveOptions{
		Filter:        strings.TrimSpace(req.GetString("query", "")),
		Category:      req.GetString("category", ""),
		FavoritesOnly: boolArg(req, "favorites_only", false),
		SortByUsage:   boolArg(req, "sort_by_usage", false),
		Limit:         limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(records) == 0 {
		return mcp.NewToolResultText("No commands found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d commands:\n\n", len(records))

	for i, r := range records {
		star := ""
		if r.Favorite {
			star = " ★"
		}
		fmt.Fprintf(&b, "[%d] #%d (%s, used %d×)%s\n    %s\n", i+1, r.ID, r.Category, r.UsageCount, star, r.MaskedCommand)
		if r.Explanation != "" {
			fmt.Fprintf(&b, "    %s\n", r.Explanation)
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
