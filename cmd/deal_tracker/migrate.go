package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  `Create the items, scrape_results, extractions, approvals and rejections tables if they do not exist.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if useMemory {
		return errors.New("migrate needs a PostgreSQL database; --memory has no schema")
	}
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(cmd.Context()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
	return nil
}
