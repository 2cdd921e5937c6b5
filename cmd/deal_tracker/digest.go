package main

import (
	"fmt"

	"github.com/jonathan/deal-tracker/internal/digest"
	"github.com/spf13/cobra"
)

var (
	digestLimit  int
	digestDryRun bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Email the review digest with signed approve/reject links",
	Long: `Collect pending items with a complete extraction and email them to DIGEST_RECIPIENT.
Each item carries signed approve and reject links valid for ACTION_TOKEN_TTL.
With --dry-run, or without SMTP credentials, the digest is printed instead.`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().IntVar(&digestLimit, "limit", 0, "Maximum items in the digest (defaults to DIGEST_LIMIT env var)")
	digestCmd.Flags().BoolVar(&digestDryRun, "dry-run", false, "Print the digest instead of sending it")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := a.cfg.DigestLimit
	if cmd.Flags().Changed("limit") {
		limit = digestLimit
	}
	dryRun := digestDryRun || !a.cfg.SMTPEnabled()
	if dryRun && !digestDryRun {
		a.logger.Warn("SMTP credentials not set; printing digest instead of sending")
	}

	out := cmd.OutOrStdout()
	report, err := a.digester().Run(ctx, digest.Options{Limit: limit, DryRun: dryRun, Out: out})
	if err != nil {
		return err
	}

	switch {
	case report.Items == 0:
		_, _ = fmt.Fprintln(out, "No items ready for triage; digest not sent.")
	case report.Sent:
		_, _ = fmt.Fprintf(out, "Digest with %d items sent to %s.\n", report.Items, a.cfg.DigestRecipient)
	}
	return nil
}
