package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/internal/summary"
)

var (
	categoriesCounts bool
	summaryTimeline  bool
	summaryBucket    string
	summaryCategory  string
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories that have stored commands",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize stored commands by category or over time",
	Long: `Display a table of stored commands per category, or with --timeline a
day-by-day (or week-by-week) list of when commands were last used.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(summaryCmd)

	categoriesCmd.Flags().BoolVar(&categoriesCounts, "counts", false, "Show how many commands each category holds")

	summaryCmd.Flags().BoolVar(&summaryTimeline, "timeline", false, "Show commands bucketed by last use")
	summaryCmd.Flags().StringVar(&summaryBucket, "bucket", "day", "Timeline bucket size (day, week)")
	summaryCmd.Flags().StringVarP(&summaryCategory, "category", "c", "", "Only include one category")
}

func runCategories(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	categories, err := database.ListCategories()
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	var counts map[string]int
	if categoriesCounts {
		records, err := database.Retrieve(db.RetrieveOptions{})
		if err != nil {
			return fmt.Errorf("failed to count commands: %w", err)
		}
		counts = make(map[string]int, len(categories))
		for _, s := range summary.Summarize(records) {
			counts[s.Category] = s.CommandCount
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, summary.FormatCategories(categories, counts, summary.FormatOptions{NoColor: colorDisabled(out)}))
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	size, err := summary.ParseBucketSize(summaryBucket)
	if err != nil {
		return err
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := database.Retrieve(db.RetrieveOptions{Category: summaryCategory})
	if err != nil {
		return fmt.Errorf("failed to query commands: %w", err)
	}

	out := cmd.OutOrStdout()
	if summaryTimeline {
		fmt.Fprint(out, summary.FormatTimeline(records, size, summary.FormatOptions{
			NoColor: colorDisabled(out),
			Width:   terminalWidth(out),
		}))
		return nil
	}

	fmt.Fprint(out, summary.FormatTable(summary.Summarize(records)))
	return nil
}
