package cmd

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"
)

//go:embed integration_scripts/zsh_hook.sh
var zshHookScript string

//go:embed integration_scripts/bash_hook.sh
var bashHookScript string

//go:embed integration_scripts/fish_hook.fish
var fishHookScript string

var hookScripts = map[string]string{
	"zsh":  zshHookScript,
	"bash": bashHookScript,
	"fish": fishHookScript,
}

var supportedShells = []string{"zsh", "bash", "fish"}

var hookCmd = &cobra.Command{
	Use:   "hook <shell>",
	Short: "Print the shell integration script",
	Long: `Print the script that records every command you run with 'mergen track'.
Nothing is written to your rc files; evaluate the output from them instead:

  zsh:   eval "$(mergen hook zsh)"
  bash:  eval "$(mergen hook bash)"
  fish:  mergen hook fish | source`,
	Args: cobra.ExactArgs(1),
	RunE: runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	script, ok := hookScripts[args[0]]
	if !ok {
		return fmt.Errorf("unsupported shell: %s (supported: zsh, bash, fish)", args[0])
	}
	fmt.Fprint(cmd.OutOrStdout(), script)
	return nil
}
