package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/internal/logging"
)

var (
	dbPath     string
	configPath string
	logPath    string
	verbose    bool
	noColor    bool

	// set by PersistentPreRunE
	cfg    *config.Config
	logger = logging.Discard()
	logOut io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "mergen [question]",
	Short: "Shell activity recorder with redaction and skill profiling",
	Long: `mergen records the commands you run with secrets and IP addresses masked,
answers "how do I ..." questions with a stored command, and keeps an
incrementally updated profile of your command-line skills.

Run with a quoted question to ask for a command, e.g. mergen "find large files".`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logOut != nil {
			logOut.Close()
			logOut = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runAsk(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("mergen version {{.Version}}\n")
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (default: ~/.local/share/mergen/history.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.config/mergen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "Log file path (default: ~/.local/state/mergen/mergen.log)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Mirror log records to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// setup loads the configuration and opens the log before any command runs
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	l, closer, err := logging.New(logging.Options{
		Path:    logPath,
		Verbose: verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		// Logging is best-effort; commands still run without a log file
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		l = logging.Discard()
	}
	logger = l
	logOut = closer
	slog.SetDefault(logger)

	return nil
}

// resolvedDBPath picks --db, then the configured path, then the default
func resolvedDBPath() (string, error) {
	path := dbPath
	if path == "" && cfg != nil {
		path = cfg.DBPath
	}
	return db.ResolvePath(path)
}

// openStore opens the history database with the engine chosen by MERGEN_DB_IMPL
func openStore() (db.Store, error) {
	path, err := resolvedDBPath()
	if err != nil {
		return nil, err
	}
	store, err := db.OpenWithOptions(path, db.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// parseID parses a positive command id argument
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid command ID %q: %w", arg, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid command ID %q: must be a positive integer", arg)
	}
	return id, nil
}

// isTerminal returns true if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// colorDisabled reports whether output to w should be plain text
func colorDisabled(w io.Writer) bool {
	return noColor || os.Getenv("NO_COLOR") != "" || !isTerminal(w)
}

// terminalWidth returns the width of w when it is a terminal, otherwise 0
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return 0
}

// joinArgs rebuilds free text passed as several shell words
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
