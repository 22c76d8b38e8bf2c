package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/internal/exchange"
	"github.com/chris/mergen/internal/redact"
)

var (
	exportCategory  string
	exportFavorites bool
	exportFilter    string
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export stored commands as JSON",
	Long:  "Write stored commands as a JSON array to a file, or to stdout when no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import commands from a JSON export",
	Long: `Import commands from a JSON array written by 'mergen export' or by earlier
releases. Use - to read from stdin. Commands already stored get their usage
count incremented.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringVarP(&exportCategory, "category", "c", "", "Only export one category")
	exportCmd.Flags().BoolVar(&exportFavorites, "starred", false, "Only export starred commands")
	exportCmd.Flags().StringVarP(&exportFilter, "filter", "f", "", "Only export commands matching text")
}

func runExport(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	var w io.Writer = cmd.OutOrStdout()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := exchange.Export(w, database, db.RetrieveOptions{
		Filter:        exportFilter,
		Category:      exportCategory,
		FavoritesOnly: exportFavorites,
	})
	if err != nil {
		return err
	}

	if len(args) == 1 && args[0] != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d commands to %s\n", n, args[0])
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := exchange.Import(r, database, redact.New())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new commands, updated %d, skipped %d\n",
		stats.Created, stats.Updated, stats.Skipped)
	return nil
}
