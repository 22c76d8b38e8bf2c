package models

import "strings"

// Canonical category labels
const (
	CategoryShellHistory = "Shell History"
	CategorySystem       = "System"
	CategoryNetwork      = "Network"
	CategoryFile         = "File"
	CategorySecurity     = "Security"
	CategoryContainer    = "Container"
	CategoryDatabase     = "Database"
	CategoryGit          = "Git/VCS"
	CategoryUser         = "User"
	CategoryService      = "Service"
	CategoryOther        = "Other"

	// CategoryAll is the retrieval wildcard, never stored
	CategoryAll = "All"
)

// Categories is the fixed taxonomy in display order.
var Categories = []string{
	CategoryShellHistory,
	CategorySystem,
	CategoryNetwork,
	CategoryFile,
	CategorySecurity,
	CategoryContainer,
	CategoryDatabase,
	CategoryGit,
	CategoryUser,
	CategoryService,
	CategoryOther,
}

// IsCanonical reports whether label is exactly one of the taxonomy labels
func IsCanonical(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}

// NormalizeCategory maps a label from any source (model answers, imports,
// user edits) onto the taxonomy. Surrounding whitespace and brackets are
// ignored and matching is case-insensitive. Anything unrecognized is Other.
func NormalizeCategory(label string) string {
	cleaned := strings.TrimSpace(label)
	cleaned = strings.Trim(cleaned, "[]")
	cleaned = strings.TrimSpace(cleaned)
	for _, c := range Categories {
		if strings.EqualFold(c, cleaned) {
			return c
		}
	}
	return CategoryOther
}
