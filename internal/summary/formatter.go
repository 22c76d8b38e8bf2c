// Package summary renders history records, categories and profile reports
// for the terminal.
package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/chris/mergen/pkg/models"
)

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true) // bright-magenta
	idStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))             // bright-black
	categoryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))            // bright-blue
	periodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true) // bright-magenta
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	commandStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")) // white
	favoriteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // bright-yellow
	statLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	statValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // bright-green
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const defaultWidth = 80

// FormatOptions controls record rendering
type FormatOptions struct {
	NoColor bool
	// Width truncates command text to fit; zero means 80 columns
	Width int
	// Details adds the query summary and explanation under each command
	Details bool
	// Raw shows the unmasked command instead of the masked one
	Raw bool
}

func (o FormatOptions) width() int {
	if o.Width <= 0 {
		return defaultWidth
	}
	return o.Width
}

// Helper function to render with or without colors
func renderStyle(style lipgloss.Style, text string, noColor bool) string {
	if noColor {
		return text
	}
	return style.Render(text)
}

// FormatRecords renders one line per record: id, favorite marker, usage
// count, category and command
func FormatRecords(records []models.CommandRecord, opts FormatOptions) string {
	if len(records) == 0 {
		return renderStyle(statLabelStyle, "No commands found", opts.NoColor) + "\n"
	}

	idWidth := 0
	for _, rec := range records {
		idWidth = max(idWidth, len(fmt.Sprint(rec.ID)))
	}

	var out strings.Builder
	for _, rec := range records {
		out.WriteString(formatRecordLine(rec, idWidth, opts))
		out.WriteString("\n")
		if opts.Details {
			writeDetails(&out, rec, opts)
		}
	}
	return out.String()
}

func formatRecordLine(rec models.CommandRecord, idWidth int, opts FormatOptions) string {
	star := " "
	if rec.Favorite {
		star = "★"
	}
	uses := fmt.Sprintf("⟳%-3d", rec.UsageCount)
	category := "[" + rec.Category + "]"

	prefix := fmt.Sprintf("%*d %s %s %s ", idWidth, rec.ID, star, uses, category)
	room := max(opts.width()-ansi.StringWidth(prefix), 10)

	text := rec.MaskedCommand
	if opts.Raw {
		text = rec.RawCommand
	}

	return fmt.Sprintf("%s %s %s %s %s",
		renderStyle(idStyle, fmt.Sprintf("%*d", idWidth, rec.ID), opts.NoColor),
		renderStyle(favoriteStyle, star, opts.NoColor),
		renderStyle(statValueStyle, uses, opts.NoColor),
		renderStyle(categoryStyle, category, opts.NoColor),
		renderStyle(commandStyle, truncate(text, room), opts.NoColor))
}

func writeDetails(out *strings.Builder, rec models.CommandRecord, opts FormatOptions) {
	indent := "      "
	if rec.QuerySummary != "" {
		fmt.Fprintf(out, "%s%s %s\n", indent,
			renderStyle(statLabelStyle, "query:", opts.NoColor), rec.QuerySummary)
	}
	if rec.Explanation != "" {
		fmt.Fprintf(out, "%s%s %s\n", indent,
			renderStyle(statLabelStyle, "about:", opts.NoColor), rec.Explanation)
	}
	fmt.Fprintf(out, "%s%s %s\n", indent,
		renderStyle(statLabelStyle, "last used:", opts.NoColor),
		renderStyle(timestampStyle, rec.LastUsed().Format("2006-01-02 15:04:05"), opts.NoColor))
}

// FormatRecord renders every field of one record as labeled lines
func FormatRecord(rec models.CommandRecord, opts FormatOptions) string {
	fields := []struct{ label, value string }{
		{"ID", fmt.Sprint(rec.ID)},
		{"Command", rec.MaskedCommand},
		{"Raw", rec.RawCommand},
		{"Query", rec.QuerySummary},
		{"Explanation", rec.Explanation},
		{"Category", rec.Category},
		{"Favorite", fmt.Sprint(rec.Favorite)},
		{"Uses", fmt.Sprint(rec.UsageCount)},
		{"Last used", rec.LastUsed().Format(time.RFC3339)},
	}
	if !opts.Raw {
		fields = append(fields[:2], fields[3:]...)
	}

	var out strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&out, "%s %s\n",
			renderStyle(statLabelStyle, fmt.Sprintf("%-12s", f.label+":"), opts.NoColor),
			f.value)
	}
	return out.String()
}

// FormatCategories renders category labels one per line, with the number of
// stored commands when counts is non-nil
func FormatCategories(categories []string, counts map[string]int, opts FormatOptions) string {
	var out strings.Builder
	for _, c := range categories {
		if counts == nil {
			out.WriteString(renderStyle(categoryStyle, c, opts.NoColor) + "\n")
			continue
		}
		fmt.Fprintf(&out, "%s %s\n",
			renderStyle(categoryStyle, fmt.Sprintf("%-16s", c), opts.NoColor),
			renderStyle(statValueStyle, fmt.Sprint(counts[c]), opts.NoColor))
	}
	return out.String()
}

// FormatTimeline renders records bucketed by day or week of last use
func FormatTimeline(records []models.CommandRecord, size BucketSize, opts FormatOptions) string {
	var out strings.Builder

	title := "Command Timeline"
	separator := renderStyle(separatorStyle, strings.Repeat("=", max(40-(ansi.StringWidth(title)/2), 0)), opts.NoColor)
	fmt.Fprintf(&out, "\n%s %s %s\n\n", separator, renderStyle(headerStyle, title, opts.NoColor), separator)

	if len(records) == 0 {
		out.WriteString(renderStyle(statLabelStyle, "No commands found", opts.NoColor) + "\n")
		return out.String()
	}

	buckets := BucketBy(records, size)
	for _, id := range GetOrderedBuckets(buckets) {
		b := buckets[id]
		label := b.FormatLabel()

		fmt.Fprintf(&out, "%s %s\n",
			renderStyle(periodStyle, label, opts.NoColor),
			renderStyle(separatorStyle, strings.Repeat("-", max(opts.width()-1-ansi.StringWidth(label), 0)), opts.NoColor))

		for _, rec := range b.Records {
			text := rec.MaskedCommand
			if opts.Raw {
				text = rec.RawCommand
			}
			fmt.Fprintf(&out, "  %s  %s\n",
				renderStyle(timestampStyle, formatTimestamp(rec.CreatedAt, size), opts.NoColor),
				renderStyle(commandStyle, truncate(text, opts.width()-16), opts.NoColor))
		}

		fmt.Fprintf(&out, "  %s commands, %s uses\n\n",
			renderStyle(statValueStyle, fmt.Sprint(len(b.Records)), opts.NoColor),
			renderStyle(statValueStyle, fmt.Sprint(b.Uses), opts.NoColor))
	}

	return out.String()
}

// truncate keeps the first line of s and cuts it to width display cells
func truncate(s string, width int) string {
	if first, _, ok := strings.Cut(s, "\n"); ok {
		s = first + " ↵"
	}
	return ansi.Truncate(s, width, "…")
}

func formatTimestamp(ts int64, size BucketSize) string {
	t := time.Unix(ts, 0)
	if size == Weekly {
		return t.Format("Mon 15:04")
	}
	return t.Format("15:04:05")
}
