package main

import (
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/spf13/cobra"
)

var statusRecent int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts, per-origin totals and recent items",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusRecent, "recent", 10, "Number of recently discovered items to list (0 to hide)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.QueueStats(ctx)
	if err != nil {
		return err
	}
	origins, err := a.store.OriginStats(ctx)
	if err != nil {
		return err
	}

	p := observability.NewPrinter(cmd.OutOrStdout())
	p.PrintQueueStats(stats)
	if len(origins) > 0 {
		p.PrintOriginStats(origins)
	}

	if statusRecent > 0 {
		items, err := a.store.ListItems(ctx, db.ItemFilter{Limit: statusRecent})
		if err != nil {
			return err
		}
		if len(items) > 0 {
			p.PrintItems(items)
		}
	}
	return nil
}
