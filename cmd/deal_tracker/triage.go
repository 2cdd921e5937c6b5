package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/triage"
	"github.com/jonathan/deal-tracker/internal/types"
	"github.com/spf13/cobra"
)

var (
	pendingLimit int

	acceptCompany   string
	acceptAmount    string
	acceptInvestors string
	acceptType      string
	acceptSummary   string
	acceptNotes     string
	acceptBy        string

	rejectReason string
	rejectBy     string
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List items awaiting a decision",
	RunE:  runPending,
}

var showCmd = &cobra.Command{
	Use:   "show <item-id>",
	Short: "Show an item with its scrape, extraction and decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var acceptCmd = &cobra.Command{
	Use:   "accept <item-id>",
	Short: "Approve an item for publication",
	Long: `Approve an item. Fields not given fall back to the item's extraction; the summary
falls back to its strategic significance. Accepting an approved item changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccept,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <item-id>",
	Short: "Reject an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

var undoRejectCmd = &cobra.Command{
	Use:   "undo-reject <item-id>",
	Short: "Return a rejected item to the triage queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runUndoReject,
}

func init() {
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", triage.DefaultPendingLimit, "Maximum items to list")

	acceptCmd.Flags().StringVar(&acceptCompany, "company", "", "Company name")
	acceptCmd.Flags().StringVar(&acceptAmount, "amount", "", "Deal amount, e.g. \"$25M\"")
	acceptCmd.Flags().StringVar(&acceptInvestors, "investors", "", "Investors")
	acceptCmd.Flags().StringVar(&acceptType, "type", "", "Transaction type")
	acceptCmd.Flags().StringVar(&acceptSummary, "summary", "", "Published summary")
	acceptCmd.Flags().StringVar(&acceptNotes, "notes", "", "Internal notes")
	acceptCmd.Flags().StringVar(&acceptBy, "by", triage.DefaultCurator, "Curator name")

	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Why the item was rejected")
	rejectCmd.Flags().StringVar(&rejectBy, "by", triage.DefaultCurator, "Curator name")

	rootCmd.AddCommand(pendingCmd, showCmd, acceptCmd, rejectCmd, undoRejectCmd)
}

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

// flagString returns a pointer to value when the flag was set.
func flagString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func runPending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.triage().ListPending(ctx, pendingLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to triage.")
		return nil
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintItems(items)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.triage().Detail(ctx, id)
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Title", d.Item.Title},
		{"URL", d.Item.URL},
		{"Origin", d.Item.Origin},
		{"State", string(d.State)},
	}
	if e := d.Extraction; e != nil {
		pairs = append(pairs,
			[2]string{"Company", deref(e.Company)},
			[2]string{"Amount", deref(e.DealAmount)},
			[2]string{"Extraction", completeness(e)},
		)
	}
	if r := d.Rejection; r != nil {
		pairs = append(pairs, [2]string{"Rejected by", r.RejectedBy}, [2]string{"Reason", deref(r.Reason)})
	}
	if ap := d.Approval; ap != nil {
		pairs = append(pairs, [2]string{"Curated by", ap.CuratedBy}, [2]string{"Published", strconv.FormatBool(ap.Published)})
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSummary(fmt.Sprintf("ITEM #%d", d.Item.ID), pairs)
	return nil
}

func completeness(e *db.Extraction) string {
	if e.Complete {
		return "complete"
	}
	if e.Error != nil {
		return "incomplete: " + *e.Error
	}
	return "incomplete"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func runAccept(cmd *cobra.Command, args []string) error {
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}

	req := types.AcceptRequest{
		Company:   flagString(cmd, "company", acceptCompany),
		Amount:    flagString(cmd, "amount", acceptAmount),
		Investors: flagString(cmd, "investors", acceptInvestors),
		Summary:   flagString(cmd, "summary", acceptSummary),
		Notes:     flagString(cmd, "notes", acceptNotes),
		CuratedBy: acceptBy,
	}
	if cmd.Flags().Changed("type") {
		t, ok := types.ParseTransactionType(acceptType)
		if !ok {
			return fmt.Errorf("unknown transaction type %q", acceptType)
		}
		req.TransactionType = &t
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.triage().Accept(triage.WithChannel(ctx, triage.ChannelCLI), id, req)
	return reportDecision(cmd, res, err)
}

func runReject(cmd *cobra.Command, args []string) error {
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.triage().Reject(triage.WithChannel(ctx, triage.ChannelCLI), id, flagString(cmd, "reason", rejectReason), rejectBy)
	return reportDecision(cmd, res, err)
}

func reportDecision(cmd *cobra.Command, res triage.Result, err error) error {
	var conflict *triage.DecisionConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("item #%d is already %s", conflict.ItemID, conflict.Existing)
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Applied {
		_, _ = fmt.Fprintf(out, "Item #%d %s.\n", res.ItemID, res.Outcome)
	} else {
		_, _ = fmt.Fprintf(out, "Item #%d was already %s; nothing changed.\n", res.ItemID, res.Outcome)
	}
	return nil
}

func runUndoReject(cmd *cobra.Command, args []string) error {
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.triage().UndoReject(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Item #%d is back in the triage queue.\n", id)
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Item #%d was not rejected.\n", id)
	}
	return nil
}
