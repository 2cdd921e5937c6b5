package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/jonathan/deal-tracker/internal/pipeline/steps"
	"github.com/jonathan/deal-tracker/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	cycleStages []string
	cycleDryRun bool
	cycleJSON   bool
)

var runCycleCmd = &cobra.Command{
	Use:   "run-cycle",
	Short: "Run one pipeline cycle now",
	Long: `Run fetch_feeds -> scrape -> extract -> digest once, or the stages given with --stages.

A failing stage does not stop later stages unless they depend on it. publish only runs
when selected explicitly.`,
	RunE: runCycle,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run cycles on the CRON_SCHEDULE until interrupted",
	RunE:  runSchedule,
}

func init() {
	runCycleCmd.Flags().StringSliceVar(&cycleStages, "stages", nil, "Stages to run: "+strings.Join(stageNames(), ", "))
	runCycleCmd.Flags().BoolVar(&cycleDryRun, "dry-run", false, "Print the digest instead of sending it")
	runCycleCmd.Flags().BoolVar(&cycleJSON, "json", false, "Print the cycle report as JSON")
	rootCmd.AddCommand(runCycleCmd, scheduleCmd)
}

func stageNames() []string {
	names := make([]string, 0, len(steps.StageRegistry))
	for name := range steps.StageRegistry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return steps.StageRegistry[names[i]].Order < steps.StageRegistry[names[j]].Order
	})
	return names
}

func runCycle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	opts, err := a.cycleOptions(cycleStages, out)
	if err != nil {
		return err
	}
	if cycleDryRun {
		opts.Digest.DryRun = true
	}
	if !cycleJSON {
		opts.OnProgress = func(e pipeline.ProgressEvent) {
			_, _ = fmt.Fprintf(out, "[%s] %s\n", e.Stage, e.Message)
		}
	}

	report, runErr := runner.Run(ctx, opts)
	if report == nil {
		return runErr
	}
	if cycleJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printCycle(cmd, report)
	}
	return runErr
}

func printCycle(cmd *cobra.Command, report *pipeline.CycleReport) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Cycle %s\n", report.CycleID)
	for _, st := range report.Stages {
		status := "ok"
		switch {
		case st.Err != nil:
			status = "FAILED: " + st.Err.Error()
		case st.Skipped:
			status = "skipped"
		}
		_, _ = fmt.Fprintf(out, "  %-12s %-8s %s\n", st.Stage, st.Duration.Round(time.Millisecond), status)
	}
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Running cycles on %q (%s trigger); press Ctrl+C to stop.\n", a.cfg.CronSchedule, scheduler.TriggerCron)
	return sched.Run(ctx)
}
