package summary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// FormatTable formats category summaries as a plain-text table
func FormatTable(summaries []CategorySummary) string {
	if len(summaries) == 0 {
		return formatTableHeader() + "\n\nNo commands recorded yet.\n"
	}

	var sb strings.Builder

	sb.WriteString(formatTableHeader())
	sb.WriteString("\n\n")

	widths := calculateColumnWidths(summaries)

	sb.WriteString(formatColumnHeaders(widths))
	sb.WriteString("\n")

	for _, s := range summaries {
		sb.WriteString(formatTableRow(s, widths))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(formatSummaryStats(summaries))
	sb.WriteString("\n")

	return sb.String()
}

func formatTableHeader() string {
	title := "Command History by Category"
	return title + "\n" + strings.Repeat("=", len(title))
}

func formatColumnHeaders(widths columnWidths) string {
	return fmt.Sprintf("%-*s  %*s  %*s  %*s  %s",
		widths.category, "Category",
		widths.commands, "Commands",
		widths.uses, "Uses",
		widths.favorites, "Starred",
		"Last Used")
}

func formatTableRow(s CategorySummary, widths columnWidths) string {
	// Padding is computed on display width so wide labels line up
	category := s.Category + strings.Repeat(" ", widths.category-ansi.StringWidth(s.Category))
	return fmt.Sprintf("%s  %*d  %*d  %*d  %s",
		category,
		widths.commands, s.CommandCount,
		widths.uses, s.UsageCount,
		widths.favorites, s.Favorites,
		s.FormatTimeSpan())
}

func formatSummaryStats(summaries []CategorySummary) string {
	var commands int
	var uses int64
	for _, s := range summaries {
		commands += s.CommandCount
		uses += s.UsageCount
	}

	noun := "categories"
	if len(summaries) == 1 {
		noun = "category"
	}

	return fmt.Sprintf("Total: %d commands (%d uses) across %d %s",
		commands, uses, len(summaries), noun)
}

type columnWidths struct {
	category  int
	commands  int
	uses      int
	favorites int
}

func calculateColumnWidths(summaries []CategorySummary) columnWidths {
	widths := columnWidths{
		category:  len("Category"),
		commands:  len("Commands"),
		uses:      len("Uses"),
		favorites: len("Starred"),
	}

	for _, s := range summaries {
		widths.category = max(widths.category, ansi.StringWidth(s.Category))
		widths.commands = max(widths.commands, len(strconv.Itoa(s.CommandCount)))
		widths.uses = max(widths.uses, len(strconv.FormatInt(s.UsageCount, 10)))
		widths.favorites = max(widths.favorites, len(strconv.Itoa(s.Favorites)))
	}

	return widths
}
