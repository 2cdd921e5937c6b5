package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/spf13/cobra"
)

var (
	fetchFeedsFile string
	submitTitle    string
	submitSummary  string
	importOrigin   string
)

var fetchFeedsCmd = &cobra.Command{
	Use:   "fetch-feeds",
	Short: "Poll every enabled RSS/Atom feed once",
	Long:  `Download each enabled feed from the feeds file and queue entries whose URLs are new.`,
	RunE:  runFetchFeeds,
}

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Queue a single URL by hand",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Queue URLs from a CSV file",
	Long: `Read a CSV with a header row and queue each row. The url column is required;
title, summary and published (RFC 3339 or YYYY-MM-DD) are optional.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	fetchFeedsCmd.Flags().StringVar(&fetchFeedsFile, "feeds", "", "Path to feeds YAML (defaults to FEEDS_FILE env var)")
	submitCmd.Flags().StringVarP(&submitTitle, "title", "t", "", "Headline (a placeholder is used when empty)")
	submitCmd.Flags().StringVar(&submitSummary, "summary", "", "Optional summary")
	importCmd.Flags().StringVar(&importOrigin, "origin", ingestion.OriginImport, "Origin tag recorded on imported items")

	rootCmd.AddCommand(fetchFeedsCmd, submitCmd, importCmd)
}

func runFetchFeeds(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.FeedsFile
	if fetchFeedsFile != "" {
		path = fetchFeedsFile
	}
	feeds, err := config.LoadFeeds(path)
	if err != nil {
		return err
	}

	report, err := a.feedPoller().Poll(ctx, feeds)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(report.Feeds))
	for _, f := range report.Feeds {
		status := "ok"
		if f.Err != nil {
			status = f.Err.Error()
		}
		rows = append(rows, []string{f.Feed, strconv.Itoa(f.Entries), strconv.Itoa(f.Counts.New), strconv.Itoa(f.Counts.Duplicate), status})
	}
	p := observability.NewPrinter(cmd.OutOrStdout())
	p.PrintTable([]string{"Feed", "Entries", "New", "Dup", "Status"}, rows)
	printCounts(p, "Feed poll", report.Totals)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d feeds failed", report.Failed, len(report.Feeds))
	}
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var summary *string
	if submitSummary != "" {
		summary = &submitSummary
	}
	res, err := a.gateway().IngestOne(ctx, args[0], submitTitle, summary)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Created {
		_, _ = fmt.Fprintf(out, "Queued item #%d: %s\n", res.ItemID, res.URL)
	} else {
		_, _ = fmt.Fprintf(out, "Already tracked as item #%d: %s\n", res.ItemID, res.URL)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	candidates, err := ingestion.ImportCSV(f, importOrigin)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.gateway().Ingest(ctx, candidates)
	if err != nil {
		return err
	}
	printCounts(observability.NewPrinter(cmd.OutOrStdout()), "Import "+args[0], report.Counts)
	return nil
}

func printCounts(p *observability.Printer, title string, c ingestion.Counts) {
	p.PrintSummary(title, [][2]string{
		{"New", strconv.Itoa(c.New)},
		{"Duplicate", strconv.Itoa(c.Duplicate)},
		{"Invalid", strconv.Itoa(c.Invalid)},
		{"Errors", strconv.Itoa(c.Errors)},
	})
}
