package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/db"
)

var fzfCategory string

var fzfCmd = &cobra.Command{
	Use:   "fzf",
	Short: "Output stored commands in fzf-compatible format",
	Long: `Output stored commands in tab-separated, null-terminated format for fzf integration.

Format: id<TAB>category<TAB>command<NULL>
Commands are masked, most used first. For example:

  mergen fzf | fzf --read0 --delimiter '\t' --with-nth 3 | cut -f1 | xargs mergen copy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		records, err := database.Retrieve(db.RetrieveOptions{Category: fzfCategory, SortByUsage: true})
		if err != nil {
			return fmt.Errorf("failed to list commands: %w", err)
		}

		for _, rec := range records {
			text := strings.ReplaceAll(rec.MaskedCommand, "\t", " ")
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\000", rec.ID, rec.Category, text); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fzfCmd)
	fzfCmd.Flags().StringVarP(&fzfCategory, "category", "c", "", "Only output one category")
}
