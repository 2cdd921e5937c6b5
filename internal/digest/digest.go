// Package digest emails pending items that have a complete extraction, with
// signed approve and reject links for each.
package digest

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
)

// DefaultLimit caps how many items one digest carries.
const DefaultLimit = 20

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = map[string]any{
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
	"truncate": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "..."
	},
}

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("digest.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.html.tmpl"))
	textTmpl = texttemplate.Must(texttemplate.New("digest.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.txt.tmpl"))
)

// Store is what the digest reads.
type Store interface {
	ListDigestCandidates(ctx context.Context, limit int) ([]db.Item, error)
	GetExtraction(ctx context.Context, itemID int64) (*db.Extraction, error)
}

// TokenSigner issues action tokens.
type TokenSigner interface {
	Generate(itemID int64, action actiontoken.Action) (string, error)
	TTL() time.Duration
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is a rendered digest email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Entry is one item in a digest.
type Entry struct {
	ItemID          int64
	Title           string
	SourceURL       string
	Company         string
	Amount          string
	TransactionType string
	Sectors         []string
	Summary         string
	ApproveURL      string
	RejectURL       string
}

// Digest is the set of entries plus presentation data.
type Digest struct {
	Items     []Entry
	Count     int
	ExpiresIn string
}

// Options controls a digest run.
type Options struct {
	Limit int
	// DryRun writes the plain-text body to Out instead of sending.
	DryRun bool
	Out    io.Writer
}

// Report summarises a digest run.
type Report struct {
	Items int  `json:"items"`
	Sent  bool `json:"sent"`
}

// Digester builds and sends digests.
type Digester struct {
	store   Store
	signer  TokenSigner
	sender  Sender
	baseURL string
	logger  *zap.Logger
}

// NewDigester creates a Digester. A nil sender limits it to dry runs.
func NewDigester(store Store, signer TokenSigner, sender Sender, baseURL string, logger *zap.Logger) *Digester {
	return &Digester{
		store:   store,
		signer:  signer,
		sender:  sender,
		baseURL: baseURL,
		logger:  observability.OrNop(logger),
	}
}

// ErrNoSender is returned when a non-dry run has no configured sender.
var ErrNoSender = errors.New("email digest is not configured")

// Build collects digest candidates and signs their action links.
func (d *Digester) Build(ctx context.Context, limit int) (*Digest, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	items, err := d.store.ListDigestCandidates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list digest candidates: %w", err)
	}

	dg := &Digest{ExpiresIn: humanDuration(d.signer.TTL())}
	for _, it := range items {
		entry, err := d.entry(ctx, it)
		if err != nil {
			return nil, err
		}
		dg.Items = append(dg.Items, *entry)
	}
	dg.Count = len(dg.Items)
	return dg, nil
}

func (d *Digester) entry(ctx context.Context, it db.Item) (*Entry, error) {
	e := &Entry{ItemID: it.ID, Title: it.Title, SourceURL: it.URL}

	ext, err := d.store.GetExtraction(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}
	if ext != nil {
		e.Company = deref(ext.Company)
		e.Amount = deref(ext.DealAmount)
		if ext.TransactionType != nil {
			e.TransactionType = string(*ext.TransactionType)
		}
		for _, s := range ext.Sectors {
			e.Sectors = append(e.Sectors, string(s))
		}
		e.Summary = deref(ext.StrategicSignificance)
	}

	approve, err := d.signer.Generate(it.ID, actiontoken.ActionApprove)
	if err != nil {
		return nil, fmt.Errorf("failed to sign approve link: %w", err)
	}
	reject, err := d.signer.Generate(it.ID, actiontoken.ActionReject)
	if err != nil {
		return nil, fmt.Errorf("failed to sign reject link: %w", err)
	}
	e.ApproveURL = actiontoken.ActionURL(d.baseURL, approve)
	e.RejectURL = actiontoken.ActionURL(d.baseURL, reject)
	return e, nil
}

// Render produces the email for a digest.
func Render(dg *Digest) (*Message, error) {
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, dg); err != nil {
		return nil, fmt.Errorf("failed to render text digest: %w", err)
	}
	if err := htmlTmpl.Execute(&html, dg); err != nil {
		return nil, fmt.Errorf("failed to render html digest: %w", err)
	}

	noun := "items"
	if dg.Count == 1 {
		noun = "item"
	}
	return &Message{
		Subject: fmt.Sprintf("Defense Tracker: %d new %s for review", dg.Count, noun),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Run builds the digest and sends it, or prints it on a dry run. An empty
// digest is not sent.
func (d *Digester) Run(ctx context.Context, opts Options) (*Report, error) {
	dg, err := d.Build(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}
	report := &Report{Items: dg.Count}
	if dg.Count == 0 {
		d.logger.Info("no items for digest")
		return report, nil
	}

	msg, err := Render(dg)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		if opts.Out != nil {
			fmt.Fprintf(opts.Out, "Subject: %s\n\n%s", msg.Subject, msg.Text)
		}
		return report, nil
	}
	if d.sender == nil {
		return report, ErrNoSender
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return report, fmt.Errorf("failed to send digest: %w", err)
	}
	report.Sent = true
	d.logger.Info("digest sent", zap.Int("items", dg.Count))
	return report, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
