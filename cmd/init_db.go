package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/summary"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long:  "Creates the mergen database and brings its schema up to date. Safe to run multiple times - will not overwrite existing data.",
	Args:  cobra.NoArgs,
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	path, err := resolvedDBPath()
	if err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	count, err := database.CountCommands()
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}

	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Database initialized: %s\n", summary.TildePath(database.Path()))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Database up to date: %s (%d commands)\n", summary.TildePath(database.Path()), count)
	}
	return nil
}
