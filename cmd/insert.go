package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/redact"
	"github.com/chris/mergen/pkg/models"
)

var (
	insertQuery       string
	insertExplanation string
	insertCategory    string
	insertFavorite    bool
)

var insertCmd = &cobra.Command{
	Use:   "insert <command...>",
	Short: "Insert a command into the history database",
	Long: `Insert a command with its description into the history database.

The command is masked before it is stored alongside the raw text. Inserting a
command that already exists increments its usage count instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInsert,
}

var trackCmd = &cobra.Command{
	Use:    "track <command...>",
	Short:  "Record a command typed in the shell (used by the shell hook)",
	Args:   cobra.ArbitraryArgs,
	Hidden: true,
	RunE:   runTrack,
}

func init() {
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(trackCmd)

	insertCmd.Flags().StringVarP(&insertQuery, "query", "q", "", "What the command is for")
	insertCmd.Flags().StringVarP(&insertExplanation, "explanation", "e", "", "Longer explanation")
	insertCmd.Flags().StringVarP(&insertCategory, "category", "c", models.CategoryOther, "Category label")
	insertCmd.Flags().BoolVar(&insertFavorite, "star", false, "Star the command")
}

func runInsert(cmd *cobra.Command, args []string) error {
	text := joinArgs(args)
	if text == "" {
		return fmt.Errorf("command text is empty")
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	rec := &models.CommandRecord{
		RawCommand:    text,
		MaskedCommand: redact.New().Mask(text),
		QuerySummary:  insertQuery,
		Explanation:   insertExplanation,
		Category:      insertCategory,
	}

	res, err := database.InsertCommand(rec)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}

	if insertFavorite {
		if err := database.SetFavorite(res.ID, true); err != nil {
			return fmt.Errorf("failed to star command: %w", err)
		}
	}

	if res.Created {
		fmt.Fprintf(cmd.OutOrStdout(), "Inserted command with ID: %d\n", res.ID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Command %d already recorded, usage count incremented\n", res.ID)
	}
	return nil
}

// runTrack is called from the shell hook after every command, so it stays
// silent and never fails the prompt for an ignorable line.
func runTrack(cmd *cobra.Command, args []string) error {
	text := joinArgs(args)
	if !shouldTrack(text) {
		return nil
	}

	database, err := openStore()
	if err != nil {
		logger.Error("track: open database", "error", err)
		return err
	}
	defer database.Close()

	res, err := database.InsertCommand(models.NewCommandRecord(text, redact.New().Mask(text)))
	if err != nil {
		logger.Error("track: insert", "error", err)
		return fmt.Errorf("failed to record command: %w", err)
	}

	logger.Debug("tracked command", "id", res.ID, "created", res.Created)
	return nil
}

// shouldTrack skips blank lines and mergen's own invocations
func shouldTrack(text string) bool {
	return text != "" && !strings.Contains(text, "mergen")
}
