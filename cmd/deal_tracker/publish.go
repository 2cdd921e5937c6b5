package main

import (
	"fmt"

	"github.com/jonathan/deal-tracker/internal/publish"
	"github.com/spf13/cobra"
)

var (
	publishOut  string
	publishNoUp bool
	publishMark bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Rebuild the static deals site from approved items",
	Long: `Render every approved deal as deals.json, deals.csv and index.html, write them to the
output directory, and upload them when S3_BUCKET is set. Output is rebuilt in full on
every run.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishOut, "out", "o", "", "Output directory (defaults to PUBLISH_DIR env var)")
	publishCmd.Flags().BoolVar(&publishNoUp, "no-upload", false, "Skip the S3 upload even when configured")
	publishCmd.Flags().BoolVar(&publishMark, "mark-published", true, "Flag rendered approvals as published")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	publisher, err := a.publisher(ctx)
	if err != nil {
		return err
	}

	dir := a.cfg.PublishDir
	if publishOut != "" {
		dir = publishOut
	}
	report, err := publisher.Run(ctx, publish.Options{
		OutDir:        dir,
		Upload:        a.cfg.S3Enabled() && !publishNoUp,
		MarkPublished: publishMark,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Published %d deals to %s\n", report.Entries, dir)
	for _, f := range report.Files {
		_, _ = fmt.Fprintf(out, "  %s\n", f)
	}
	if len(report.Uploaded) > 0 {
		_, _ = fmt.Fprintf(out, "Uploaded %d files to s3://%s\n", len(report.Uploaded), a.cfg.S3Bucket)
	}
	return nil
}
