package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/histfile"
	"github.com/chris/mergen/internal/redact"
	"github.com/chris/mergen/internal/summary"
)

var (
	importHistoryShell  string
	importHistoryDryRun bool
)

var importHistoryCmd = &cobra.Command{
	Use:   "import-history [file]",
	Short: "Import an existing shell history file",
	Long: `Import every command from a shell history file.

Without a file argument the history file of --shell (default: $SHELL) is used;
$HISTFILE wins when set. zsh extended-history prefixes and bash timestamp
lines are understood. Commands already recorded have their usage count
incremented, so importing the same file twice counts its commands twice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImportHistory,
}

func init() {
	rootCmd.AddCommand(importHistoryCmd)

	importHistoryCmd.Flags().StringVar(&importHistoryShell, "shell", os.Getenv("SHELL"), "Shell whose history file to read (zsh, bash, fish)")
	importHistoryCmd.Flags().BoolVar(&importHistoryDryRun, "dry-run", false, "Report what would be imported without writing")
}

func runImportHistory(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		path = histfile.DetectFile(importHistoryShell)
	}
	if path == "" {
		return fmt.Errorf("could not determine history file; pass it as an argument")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()

	if importHistoryDryRun {
		commands, skipped, err := countHistory(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Would import %d commands from %s (%d lines skipped)\n", commands, summary.TildePath(path), skipped)
		return nil
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := database.BulkImport(f, redact.New())
	if err != nil {
		return fmt.Errorf("failed to import history: %w", err)
	}

	logger.Info("imported shell history", "path", path, "processed", stats.Processed, "created", stats.Created, "skipped", stats.Skipped)
	fmt.Fprintf(out, "Processed %d commands from %s: %d new, %d skipped\n",
		stats.Processed, summary.TildePath(path), stats.Created, stats.Skipped)
	return nil
}

// countHistory counts the commands a history file holds without storing them
func countHistory(f *os.File) (commands, skipped int, err error) {
	hr := histfile.NewReader(f)
	for hr.Next() {
		if _, kind := histfile.ParseLine(hr.Line()); kind == histfile.Command {
			commands++
		}
	}
	if err := hr.Err(); err != nil {
		return commands, skipped, fmt.Errorf("failed to read history: %w", err)
	}
	return commands, hr.Oversized(), nil
}
