package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/summary"
)

var resetYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id...>",
	Short: "Delete commands from history by ID",
	Long:  "Delete one or more commands from the history database by their IDs. Unknown IDs are ignored.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

var updateCmd = &cobra.Command{
	Use:   "update <id> <field> <value>",
	Short: "Change one field of a stored command",
	Long: `Change one field of a stored command.

Editable fields: masked_command, query_summary, category, favorite.
Categories are mapped onto the standard list; favorite accepts true/false or 1/0.`,
	Args: cobra.ExactArgs(3),
	RunE: runUpdate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored command and profile",
	Long:  "Delete every stored command and profile report and restart ID numbering. Asks for confirmation unless --yes is given.",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	for _, id := range ids {
		if err := database.DeleteCommand(id); err != nil {
			return fmt.Errorf("failed to delete command %d: %w", id, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d command(s)\n", len(ids))
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	field, value := args[1], args[2]

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.UpdateField(id, field, value); err != nil {
		return fmt.Errorf("failed to update command %d: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s of command %d\n", field, id)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	path, err := resolvedDBPath()
	if err != nil {
		return err
	}

	if !resetYes {
		fmt.Fprintf(cmd.ErrOrStderr(), "This deletes every command and profile in %s.\nType 'yes' to continue: ", summary.TildePath(path))
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "yes" && a != "y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled")
			return nil
		}
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Reset(); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}

	logger.Warn("database reset", "path", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Database reset")
	return nil
}
