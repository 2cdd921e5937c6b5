package main

import (
	"strconv"

	"github.com/jonathan/deal-tracker/internal/enrichment"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/spf13/cobra"
)

var (
	scrapeLimit  int
	scrapeItem   int64
	scrapeForce  bool
	extractLimit int
	extractItem  int64
	extractForce bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch article text for new items",
	Long: `Download each new item's page, follow at most one meta refresh, and store the
article text. Fetch failures mark the item failed and the batch continues.`,
	RunE: runScrape,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract deal fields from scraped articles",
	Long: `Send scraped article text to the model and store the structured deal fields.
Items with a complete extraction are skipped unless --force is given.`,
	RunE: runExtract,
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", enrichment.DefaultScrapeLimit, "Maximum items to scrape")
	scrapeCmd.Flags().Int64Var(&scrapeItem, "item", 0, "Scrape only this item id")
	scrapeCmd.Flags().BoolVar(&scrapeForce, "force", false, "Re-scrape --item even if it already has a result")

	extractCmd.Flags().IntVar(&extractLimit, "limit", 0, "Maximum items to extract (defaults to EXTRACT_LIMIT env var)")
	extractCmd.Flags().Int64Var(&extractItem, "item", 0, "Extract only this item id")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "Redo extractions that are already complete")

	rootCmd.AddCommand(scrapeCmd, extractCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.enricher(ctx)
	if err != nil {
		return err
	}
	report, err := svc.Scrape(ctx, enrichment.ScrapeOptions{
		Limit:  scrapeLimit,
		ItemID: scrapeItem,
		Force:  scrapeForce,
		Delay:  a.cfg.ScrapeDelay,
	})
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintSummary("Scrape", [][2]string{
		{"Attempted", strconv.Itoa(report.Attempted)},
		{"Succeeded", strconv.Itoa(report.Succeeded)},
		{"Failed", strconv.Itoa(report.Failed)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Errors", strconv.Itoa(report.Errors)},
	})
	return nil
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.enricher(ctx)
	if err != nil {
		return err
	}
	limit := a.cfg.ExtractLimit
	if cmd.Flags().Changed("limit") {
		limit = extractLimit
	}
	report, err := svc.Extract(ctx, enrichment.ExtractOptions{
		Limit:  limit,
		ItemID: extractItem,
		Force:  extractForce,
		Delay:  a.cfg.ExtractDelay,
	})
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintSummary("Extract", [][2]string{
		{"Attempted", strconv.Itoa(report.Attempted)},
		{"Complete", strconv.Itoa(report.Complete)},
		{"Incomplete", strconv.Itoa(report.Incomplete)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Errors", strconv.Itoa(report.Errors)},
	})
	return nil
}
