package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the current version of mergen
const Version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mergen",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mergen version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
