package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/fetch"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFeedTimeout bounds a single feed download.
const DefaultFeedTimeout = 15 * time.Second

// feedConcurrency caps parallel feed downloads.
const feedConcurrency = 4

// FeedResult is the outcome for one feed.
type FeedResult struct {
	Feed    string `json:"feed"`
	Entries int    `json:"entries"`
	Counts  Counts `json:"counts"`
	Err     error  `json:"-"`
}

// FeedReport summarises a poll over every feed.
type FeedReport struct {
	Feeds  []FeedResult `json:"feeds"`
	Totals Counts       `json:"totals"`
	Failed int          `json:"failed"`
}

// FeedPoller downloads RSS/Atom feeds and ingests their entries.
type FeedPoller struct {
	gateway *Gateway
	timeout time.Duration
	logger  *zap.Logger
}

// NewFeedPoller creates a poller. A zero timeout uses DefaultFeedTimeout.
func NewFeedPoller(gateway *Gateway, timeout time.Duration, logger *zap.Logger) *FeedPoller {
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedPoller{gateway: gateway, timeout: timeout, logger: logger}
}

// Poll fetches every feed concurrently and ingests the entries with origin
// set to the feed name. A failing feed is recorded and the others continue.
func (p *FeedPoller) Poll(ctx context.Context, feeds []config.Feed) (*FeedReport, error) {
	results := make([]FeedResult, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(feedConcurrency)
	for i, feed := range feeds {
		g.Go(func() error {
			results[i] = p.pollOne(gctx, feed)
			return nil
		})
	}
	_ = g.Wait()

	report := &FeedReport{Feeds: results}
	for _, r := range results {
		report.Totals.Add(r.Counts)
		if r.Err != nil {
			report.Failed++
		}
	}

	p.logger.Info("feed poll complete",
		zap.Int("feeds", len(feeds)),
		zap.Int("failed", report.Failed),
		zap.Int("new", report.Totals.New),
		zap.Int("duplicate", report.Totals.Duplicate))
	return report, ctx.Err()
}

func (p *FeedPoller) pollOne(ctx context.Context, feed config.Feed) FeedResult {
	res := FeedResult{Feed: feed.Name}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.UserAgent = fetch.DefaultUserAgent
	parsed, err := parser.ParseURLWithContext(feed.URL, fctx)
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", feed.URL, err)
		p.logger.Warn("feed fetch failed", zap.String("feed", feed.Name), zap.Error(err))
		return res
	}

	candidates := EntriesToCandidates(parsed.Items, feed.Name)
	res.Entries = len(candidates)

	report, err := p.gateway.Ingest(ctx, candidates)
	if report != nil {
		res.Counts = report.Counts
	}
	if err != nil {
		res.Err = err
	}
	p.logger.Debug("feed fetched", zap.String("feed", feed.Name), zap.Int("entries", res.Entries), zap.Int("new", res.Counts.New))
	return res
}

// EntriesToCandidates maps feed entries onto candidates.
func EntriesToCandidates(items []*gofeed.Item, origin string) []db.Candidate {
	candidates := make([]db.Candidate, 0, len(items))
	for _, item := range items {
		link := strings.TrimSpace(item.Link)
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "No title"
		}

		c := db.Candidate{URL: link, Title: title, Origin: origin}
		if summary := htmlToText(item.Description); summary != "" {
			c.Summary = &summary
		}
		switch {
		case item.PublishedParsed != nil:
			t := item.PublishedParsed.UTC()
			c.PublishedAt = &t
		case item.UpdatedParsed != nil:
			t := item.UpdatedParsed.UTC()
			c.PublishedAt = &t
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// htmlToText flattens an HTML feed description.
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
