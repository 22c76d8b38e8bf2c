package cmd

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/redact"
)

var maskCmd = &cobra.Command{
	Use:   "mask [text...]",
	Short: "Print text with secrets and IP addresses masked",
	Long: `Print text as it would be stored. Without arguments every line of stdin is
masked, sharing one token counter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := redact.New()
		out := cmd.OutOrStdout()

		if len(args) > 0 {
			fmt.Fprintln(out, engine.Mask(joinArgs(args)))
			logger.Debug("masked text", "tokens", engine.Count())
			return nil
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			fmt.Fprintln(out, engine.Mask(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		logger.Debug("masked input", "tokens", engine.Count())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(maskCmd)
}
