package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProfileTool handles the profile_current MCP tool.
type ProfileTool struct {
	store Store
}

// NewProfileTool creates a ProfileTool.
func NewProfileTool(store Store) *ProfileTool {
	return &ProfileTool{store: store}
}

// Definition returns the MCP tool definition for profile_current.
func (t *ProfileTool) Definition() mcp.Tool {
	return mcp.NewTool("profile_current",
		mcp.WithDescription(
			"Return the user's most recent skill profile: a Markdown report on their tools, "+
				"habits and expertise built from their command history.",
		),
	)
}

// Handle processes the profile_current tool call.
func (t *ProfileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.store.LatestProfile()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read profile: %v", err)), nil
	}
	if report == nil {
		return mcp.NewToolResultText("No profile has been generated yet."), nil
	}

	header := fmt.Sprintf("<!-- profile #%d, commands through #%d, generated %s -->\n\n",
		report.ID, report.LastProcessedID, time.Unix(report.CreatedAt, 0).UTC().Format(time.RFC3339))
	return mcp.NewToolResultText(header + report.ReportText), nil
}
