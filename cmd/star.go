package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/internal/summary"
)

var starCmd = &cobra.Command{
	Use:   "star",
	Short: "Manage starred commands",
	Long: `Star important commands for quick retrieval.

Use subcommands to add, remove, or list starred commands.`,
}

var starAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Star a command by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStar(cmd, args[0], true)
	},
}

var starRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Unstar a command by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStar(cmd, args[0], false)
	},
}

var starListCmd = &cobra.Command{
	Use:   "list",
	Short: "List starred commands",
	Args:  cobra.NoArgs,
	RunE:  runStarList,
}

func init() {
	rootCmd.AddCommand(starCmd)
	starCmd.AddCommand(starAddCmd)
	starCmd.AddCommand(starRemoveCmd)
	starCmd.AddCommand(starListCmd)
}

func setStar(cmd *cobra.Command, arg string, favorite bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SetFavorite(id, favorite); err != nil {
		return fmt.Errorf("failed to update command: %w", err)
	}

	verb := "Starred"
	if !favorite {
		verb = "Unstarred"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s command %d\n", verb, id)
	return nil
}

func runStarList(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := database.Retrieve(db.RetrieveOptions{FavoritesOnly: true, SortByUsage: true})
	if err != nil {
		return fmt.Errorf("failed to list starred commands: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, summary.FormatRecords(records, summary.FormatOptions{
		NoColor: colorDisabled(out),
		Width:   terminalWidth(out),
	}))
	return nil
}
