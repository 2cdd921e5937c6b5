package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
)

// Origins for non-feed sources.
const (
	OriginManual = "manual"
	OriginImport = "import"
)

// Store is the slice of the item store ingestion needs.
type Store interface {
	InsertItemIfAbsent(ctx context.Context, c *db.Candidate) (id int64, created bool, err error)
}

// Result is the outcome for one candidate.
type Result struct {
	URL     string
	ItemID  int64
	Created bool
	Err     error
}

// Counts tallies a batch.
type Counts struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Invalid   int `json:"invalid"`
	Errors    int `json:"errors"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.New += other.New
	c.Duplicate += other.Duplicate
	c.Invalid += other.Invalid
	c.Errors += other.Errors
}

// Report is the outcome of an ingestion batch.
type Report struct {
	Counts
	Results []Result
}

// Gateway admits candidates into the store, skipping URLs it already holds.
type Gateway struct {
	store  Store
	logger *zap.Logger
}

// NewGateway creates a gateway over store.
func NewGateway(store Store, logger *zap.Logger) *Gateway {
	return &Gateway{store: store, logger: observability.OrNop(logger)}
}

// Ingest inserts each candidate whose URL is new. Invalid URLs and store
// failures are counted and the batch continues. The error is non-nil only
// when ctx is done.
func (g *Gateway) Ingest(ctx context.Context, candidates []db.Candidate) (*Report, error) {
	report := &Report{Results: make([]Result, 0, len(candidates))}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		c := candidates[i]
		res := g.ingestOne(ctx, &c)
		report.Results = append(report.Results, res)

		outcome := "new"
		switch {
		case errors.Is(res.Err, ErrInvalidURL):
			report.Invalid++
			outcome = "invalid"
		case res.Err != nil:
			report.Errors++
			outcome = "error"
			g.logger.Error("failed to store candidate", zap.String("url", c.URL), zap.Error(res.Err))
		case res.Created:
			report.New++
		default:
			report.Duplicate++
			outcome = "duplicate"
		}
		observability.ItemsIngested.WithLabelValues(originKind(c.Origin), outcome).Inc()
	}

	g.logger.Info("ingested candidates",
		zap.Int("new", report.New),
		zap.Int("duplicate", report.Duplicate),
		zap.Int("invalid", report.Invalid),
		zap.Int("errors", report.Errors))
	return report, nil
}

func (g *Gateway) ingestOne(ctx context.Context, c *db.Candidate) Result {
	canonical, err := Canonicalize(c.URL)
	if err != nil {
		return Result{URL: c.URL, Err: err}
	}
	c.URL = canonical
	c.Title = strings.TrimSpace(c.Title)

	id, created, err := g.store.InsertItemIfAbsent(ctx, c)
	if err != nil {
		return Result{URL: canonical, Err: fmt.Errorf("failed to insert item: %w", err)}
	}
	return Result{URL: canonical, ItemID: id, Created: created}
}

// IngestOne submits a single URL by hand. An empty title gets a placeholder.
func (g *Gateway) IngestOne(ctx context.Context, rawURL, title string, summary *string) (Result, error) {
	if strings.TrimSpace(title) == "" {
		title = placeholderTitle("Manual submission", rawURL)
	}
	report, err := g.Ingest(ctx, []db.Candidate{{URL: rawURL, Title: title, Summary: summary, Origin: OriginManual}})
	if err != nil {
		return Result{}, err
	}
	res := report.Results[0]
	return res, res.Err
}

// IngestMessage admits every URL found in a chat message, up to max.
func (g *Gateway) IngestMessage(ctx context.Context, text, origin string, max int) (*Report, error) {
	urls := ExtractURLs(text, max)
	summary := "Submitted via Telegram bot"

	candidates := make([]db.Candidate, len(urls))
	for i, u := range urls {
		candidates[i] = db.Candidate{
			URL:     u,
			Title:   placeholderTitle("Telegram submission", u),
			Summary: &summary,
			Origin:  origin,
		}
	}
	return g.Ingest(ctx, candidates)
}

// placeholderTitle labels an untitled submission with the first 50 runes of its URL.
func placeholderTitle(prefix, u string) string {
	if utf8.RuneCountInString(u) > 50 {
		u = string([]rune(u)[:50])
	}
	return prefix + ": " + u + "..."
}

// originKind collapses per-user origins like "telegram:alice" for metric labels.
func originKind(origin string) string {
	if i := strings.IndexByte(origin, ':'); i >= 0 {
		return origin[:i]
	}
	if origin == "" {
		return "unknown"
	}
	return origin
}
