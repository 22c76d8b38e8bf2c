package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/chris/mergen/pkg/models"
)

// RenderMarkdown renders a Markdown document for the terminal. With NoColor
// the plain "notty" style is used so output stays readable when piped.
func RenderMarkdown(md string, opts FormatOptions) (string, error) {
	style := "dark"
	if opts.NoColor {
		style = "notty"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(opts.width()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// RenderProfile renders the current report with a header line naming its
// watermark and creation time
func RenderProfile(report *models.ProfileReport, opts FormatOptions) (string, error) {
	if report == nil {
		return renderStyle(statLabelStyle, "No profile yet. Run 'mergen profile refresh' to create one.", opts.NoColor) + "\n", nil
	}

	header := fmt.Sprintf("Profile #%d, through command %d, generated %s",
		report.ID, report.LastProcessedID, time.Unix(report.CreatedAt, 0).Format("2006-01-02 15:04"))

	body, err := RenderMarkdown(report.ReportText, opts)
	if err != nil {
		return "", err
	}

	return renderStyle(headerStyle, header, opts.NoColor) + "\n" + body, nil
}

// FormatProfileHistory lists reports newest first with the first line of each
func FormatProfileHistory(reports []models.ProfileReport, opts FormatOptions) string {
	if len(reports) == 0 {
		return renderStyle(statLabelStyle, "No profiles generated yet", opts.NoColor) + "\n"
	}

	var out strings.Builder
	for _, r := range reports {
		first := strings.TrimSpace(r.ReportText)
		if line, _, ok := strings.Cut(first, "\n"); ok {
			first = line
		}
		fmt.Fprintf(&out, "%s %s %s %s\n",
			renderStyle(idStyle, fmt.Sprintf("#%d", r.ID), opts.NoColor),
			renderStyle(timestampStyle, time.Unix(r.CreatedAt, 0).Format("2006-01-02 15:04"), opts.NoColor),
			renderStyle(statValueStyle, fmt.Sprintf("≤%d", r.LastProcessedID), opts.NoColor),
			truncate(strings.TrimLeft(first, "# "), opts.width()-30))
	}
	return out.String()
}
