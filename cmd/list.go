package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/clipboard"
	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/internal/summary"
)

var (
	listFilter    string
	listCategory  string
	listFavorites bool
	listByUsage   bool
	listLimit     int
	listDetails   bool
	listRaw       bool
	showRaw       bool
	showColor     bool
)

var listCmd = &cobra.Command{
	Use:     "list [filter]",
	Aliases: []string{"ls", "search"},
	Short:   "List stored commands",
	Long: `List stored commands, newest first.

The filter matches the masked command, the question that produced it and its
explanation, case-insensitively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every field of one command",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var copyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "Copy a command to the clipboard",
	Long: `Copy the raw text of a stored command to the terminal clipboard using an
OSC 52 escape sequence. Works over ssh and inside tmux when the terminal
supports it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCopy,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(copyCmd)

	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "Text to match")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Only show one category")
	listCmd.Flags().BoolVar(&listFavorites, "starred", false, "Only show starred commands")
	listCmd.Flags().BoolVarP(&listByUsage, "most-used", "u", false, "Order by usage count")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum number of commands (0 for all)")
	listCmd.Flags().BoolVarP(&listDetails, "details", "d", false, "Show query, explanation and last use")
	listCmd.Flags().BoolVar(&listRaw, "raw", false, "Show unmasked commands")

	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Include the unmasked command")
	showCmd.Flags().BoolVar(&showColor, "color", false, "Force colored output")
}

func listOptions(args []string) db.RetrieveOptions {
	filter := listFilter
	if len(args) == 1 {
		filter = args[0]
	}
	return db.RetrieveOptions{
		Filter:        filter,
		Category:      listCategory,
		FavoritesOnly: listFavorites,
		SortByUsage:   listByUsage,
		Limit:         listLimit,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := database.Retrieve(listOptions(args))
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, summary.FormatRecords(records, summary.FormatOptions{
		NoColor: colorDisabled(out),
		Width:   terminalWidth(out),
		Details: listDetails,
		Raw:     listRaw,
	}))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := database.GetCommand(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	plain := colorDisabled(out)
	if showColor {
		// Piped into a previewer that renders ANSI itself
		lipgloss.SetColorProfile(termenv.TrueColor)
		plain = false
	}

	fmt.Fprint(out, summary.FormatRecord(*rec, summary.FormatOptions{NoColor: plain, Raw: showRaw}))
	return nil
}

func runCopy(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := database.GetCommand(id)
	if err != nil {
		return err
	}

	if err := clipboard.Write(cmd.OutOrStdout(), rec.RawCommand); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Copied #%d to clipboard\n", rec.ID)
	return nil
}
