package cmd

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/mcptools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve history tools to MCP clients over stdio",
	Long: `Run an MCP server on stdin/stdout exposing read-only tools:

  history_search      search stored commands (masked text only)
  history_categories  list categories with stored commands
  profile_current     the latest skill profile report`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	logger.Info("mcp server starting", "db", database.Path())
	if err := server.ServeStdio(mcptools.NewServer(database, Version)); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
