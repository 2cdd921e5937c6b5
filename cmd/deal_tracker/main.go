// Package main provides the deal-tracker command line: the triage API server,
// the scheduled pipeline and one-off commands for each stage.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	useMemory   bool
	databaseURL string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "deal_tracker",
	Short: "Defense deal news triage pipeline",
	Long: `deal_tracker collects defense and dual-use investment news from RSS feeds and chat
submissions, scrapes and extracts deal details, and lets an editor approve or reject each
item from the API, the email digest or the command line. Approved deals are published as
a static site.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Use an in-memory store instead of PostgreSQL (data is lost on exit)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
