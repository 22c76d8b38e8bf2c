package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/ai"
	"github.com/chris/mergen/internal/analysis"
	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/internal/redact"
	"github.com/chris/mergen/internal/summary"
)

// newSummarizer builds the summarizer for a configuration. Tests replace it.
var newSummarizer = func(c *config.Config) analysis.Summarizer {
	return ai.New(c)
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask for a shell command and store the answer",
	Long: `Ask for a shell command in plain language. The question is masked before it
is sent; the answered command is stored with its category and explanation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	coord := analysis.New(database, newSummarizer(cfg), redact.New(), cfg, logger)

	out := cmd.OutOrStdout()
	if isTerminal(out) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Thinking...")
	}

	res, err := coord.Ask(cmd.Context(), question)
	if err != nil {
		return explainAIError(err)
	}

	opts := summary.FormatOptions{NoColor: colorDisabled(out), Width: terminalWidth(out)}

	var md strings.Builder
	fmt.Fprintf(&md, "```bash\n%s\n```\n\n**Category:** %s\n\n%s\n", res.Command, res.Category, res.Explanation)
	rendered, err := summary.RenderMarkdown(md.String(), opts)
	if err != nil {
		rendered = md.String()
	}
	fmt.Fprint(out, rendered)

	if res.ID != 0 {
		logger.Info("stored answer", "id", res.ID, "category", res.Category)
	}
	return nil
}

// explainAIError adds a hint for the failures a user can fix
func explainAIError(err error) error {
	switch {
	case errors.Is(err, ai.ErrDisabled):
		return fmt.Errorf("%w: enable it with 'mergen config set ai_enabled true'", err)
	case errors.Is(err, ai.ErrUnavailable) && !cfg.HasCredential():
		return fmt.Errorf("%w: set MERGEN_API_KEY or run 'mergen config set api_key <key>'", err)
	case errors.Is(err, ai.ErrUnauthenticated):
		return fmt.Errorf("%w: check the configured API key", err)
	default:
		return err
	}
}
