package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/analysis"
	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/internal/redact"
	"github.com/chris/mergen/internal/summary"
)

var (
	profileHistoryLimit int
	profileWatchNow     bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build and show the skill profile",
	Long: `The skill profile is a report on your tools, habits and expertise. Each
refresh sends only the commands recorded since the previous report, masked,
and stores the updated report.`,
}

var profileRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Update the profile with commands recorded since the last report",
	Args:  cobra.NoArgs,
	RunE:  runProfileRefresh,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous profile reports",
	Args:  cobra.NoArgs,
	RunE:  runProfileHistory,
}

var profileWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the profile on a schedule until interrupted",
	Long: `Run in the foreground and refresh the profile on the configured
refresh_schedule (cron syntax or @every <duration>). Changes to the config
file are picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: runProfileWatch,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileRefreshCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileHistoryCmd)
	profileCmd.AddCommand(profileWatchCmd)

	profileHistoryCmd.Flags().IntVarP(&profileHistoryLimit, "limit", "n", 10, "Maximum number of reports (0 for all)")
	profileWatchCmd.Flags().BoolVar(&profileWatchNow, "now", false, "Refresh once at startup")
}

func runProfileRefresh(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	coord := analysis.New(database, newSummarizer(cfg), redact.New(), cfg, logger)
	res, err := coord.Refresh(cmd.Context())
	if err != nil {
		return explainAIError(err)
	}

	printOutcome(cmd, res)
	return nil
}

func printOutcome(cmd *cobra.Command, res analysis.Result) {
	out := cmd.OutOrStdout()
	switch res.Outcome {
	case analysis.OutcomeUpdated:
		if res.Pending > res.Summarized {
			fmt.Fprintf(out, "Profile updated from %d of %d new commands (through #%d)\n", res.Summarized, res.Pending, res.Watermark)
		} else {
			fmt.Fprintf(out, "Profile updated from %d new commands (through #%d)\n", res.Summarized, res.Watermark)
		}
	case analysis.OutcomeNoNewData:
		fmt.Fprintln(out, "No new commands since the last profile")
	case analysis.OutcomeDisabled:
		fmt.Fprintln(out, "AI features are disabled; profile not refreshed")
	case analysis.OutcomeFailed:
		fmt.Fprintf(out, "Profile refresh failed: %v\n", res.Err)
	}
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	report, err := database.LatestProfile()
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	out := cmd.OutOrStdout()
	rendered, err := summary.RenderProfile(report, summary.FormatOptions{
		NoColor: colorDisabled(out),
		Width:   terminalWidth(out),
	})
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}

func runProfileHistory(cmd *cobra.Command, args []string) error {
	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	reports, err := database.ListProfiles(profileHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, summary.FormatProfileHistory(reports, summary.FormatOptions{
		NoColor: colorDisabled(out),
		Width:   terminalWidth(out),
	}))
	return nil
}

func runProfileWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func() (analysis.StoreHandle, error) {
		return openStore()
	}

	sched := analysis.NewScheduler(open, newSummarizer(cfg), redact.New(), cfg, logger)
	sched.OnResult = func(res analysis.Result) {
		printOutcome(cmd, res)
	}

	if profileWatchNow {
		sched.RunOnce(ctx)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	err := config.Watch(ctx, configPath, logger, func(c *config.Config) {
		if err := sched.Update(ctx, c, newSummarizer(c)); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "config reload: %v\n", err)
		}
	})
	if err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching with schedule %q (Ctrl-C to stop)\n", cfg.RefreshSchedule)
	<-ctx.Done()
	sched.Stop()
	return nil
}
