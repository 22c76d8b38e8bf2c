package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/internal/summary"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
	Long: `Show and change settings stored in the config file.

Environment variables (MERGEN_API_KEY, MERGEN_DB, MERGEN_AI_ENABLED,
MERGEN_MODEL, MERGEN_BASE_URL) and a .env file in the working directory
override the file.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configFile())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting in effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, key := range config.Keys {
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting in effect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile()

		// Start from the file alone so environment overrides are not persisted
		fileCfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if err := fileCfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(fileCfg, path); err != nil {
			return err
		}

		shown, _ := fileCfg.Get(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], shown, summary.TildePath(path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.Path()
}
