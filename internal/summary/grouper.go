package summary

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chris/mergen/pkg/models"
)

// GroupByCategory groups records by their category label
func GroupByCategory(records []models.CommandRecord) map[string][]models.CommandRecord {
	grouped := make(map[string][]models.CommandRecord)
	for _, rec := range records {
		category := rec.Category
		if category == "" {
			category = models.CategoryOther
		}
		grouped[category] = append(grouped[category], rec)
	}
	return grouped
}

// Summarize aggregates records per category. Canonical categories come first
// in taxonomy order, followed by any other labels alphabetically.
func Summarize(records []models.CommandRecord) []CategorySummary {
	grouped := GroupByCategory(records)

	summaries := make([]CategorySummary, 0, len(grouped))
	for _, category := range orderedCategories(grouped) {
		recs := grouped[category]
		s := CategorySummary{
			Category:  category,
			FirstTime: recs[0].CreatedAt,
			LastTime:  recs[0].CreatedAt,
		}
		for _, rec := range recs {
			s.CommandCount++
			s.UsageCount += rec.UsageCount
			if rec.Favorite {
				s.Favorites++
			}
			if rec.CreatedAt < s.FirstTime {
				s.FirstTime = rec.CreatedAt
			}
			if rec.CreatedAt > s.LastTime {
				s.LastTime = rec.CreatedAt
			}
		}
		summaries = append(summaries, s)
	}

	return summaries
}

func orderedCategories(grouped map[string][]models.CommandRecord) []string {
	keys := make([]string, 0, len(grouped))
	for _, c := range models.Categories {
		if _, ok := grouped[c]; ok {
			keys = append(keys, c)
		}
	}

	var extra []string
	for c := range grouped {
		if !models.IsCanonical(c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)

	return append(keys, extra...)
}

// TildePath replaces the home directory prefix of path with "~"
func TildePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	home = filepath.Clean(home)

	absSlash := filepath.ToSlash(abs)
	homeSlash := filepath.ToSlash(home)

	if absSlash == homeSlash {
		return "~"
	}
	if !strings.HasPrefix(absSlash, homeSlash+"/") {
		return path
	}

	return filepath.Join("~", absSlash[len(homeSlash):])
}
