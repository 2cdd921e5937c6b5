package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/db/memstore"
	"github.com/jonathan/deal-tracker/internal/digest"
	"github.com/jonathan/deal-tracker/internal/enrichment"
	"github.com/jonathan/deal-tracker/internal/fetch"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/llm"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/jonathan/deal-tracker/internal/publish"
	"github.com/jonathan/deal-tracker/internal/triage"
	"go.uber.org/zap"
)

const smtpTimeout = 30 * time.Second

// app holds the configuration and shared components for one command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   db.Store
	closers []func()
}

// newApp loads configuration, builds the logger and opens the store selected
// by --memory / --db-url / DATABASE_URL.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(level, cfg.LogJSON)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.onClose(func() { _ = logger.Sync() })

	if useMemory {
		logger.Warn("using in-memory store; nothing is persisted")
		a.store = memstore.New()
		return a, nil
	}

	url := databaseURL
	if url == "" {
		url = cfg.DatabaseURL
	}
	if url == "" {
		a.Close()
		return nil, errors.New("DATABASE_URL environment variable is required (or pass --memory)")
	}
	database, err := db.Connect(ctx, url)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(database.Close)
	a.store = database
	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// migrate applies the schema when the store is PostgreSQL.
func (a *app) migrate(ctx context.Context) error {
	database, ok := a.store.(*db.DB)
	if !ok {
		return nil
	}
	return database.Migrate(ctx)
}

func (a *app) gateway() *ingestion.Gateway {
	return ingestion.NewGateway(a.store, a.logger)
}

func (a *app) signer() *actiontoken.Signer {
	secret, explicit := a.cfg.SigningSecret()
	if !explicit {
		a.logger.Warn("EMAIL_ACTION_SECRET not set; action links use a development secret")
	}
	return actiontoken.NewSigner(secret, a.cfg.ActionTokenTTL, a.logger)
}

func (a *app) triage() *triage.Engine {
	return triage.NewEngine(a.store, a.signer(), a.logger)
}

func (a *app) feedPoller() *ingestion.FeedPoller {
	return ingestion.NewFeedPoller(a.gateway(), a.cfg.FeedTimeout, a.logger)
}

// enricher builds the scrape/extract service. Without GEMINI_API_KEY the
// extractor is omitted and every extraction is recorded as incomplete.
func (a *app) enricher(ctx context.Context) (*enrichment.Service, error) {
	var scraperOpts []fetch.ScraperOption
	if a.cfg.BrowserFallback {
		scraperOpts = append(scraperOpts, fetch.WithBrowserFallback(fetch.DefaultBrowserTimeout))
	}
	scraper := fetch.NewScraper(&fetch.Options{
		Timeout:   a.cfg.ScrapeTimeout,
		UserAgent: fetch.DefaultUserAgent,
	}, a.logger, scraperOpts...)

	var extractor enrichment.Extractor
	if a.cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig().WithModel(llm.TierStandard, a.cfg.GeminiModel), a.cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = client.Close() })
		extractor = llm.NewDealExtractor(client, a.logger)
	} else {
		a.logger.Warn("GEMINI_API_KEY not set; extractions will be incomplete")
	}

	return enrichment.NewService(a.store, scraper, extractor, a.logger,
		enrichment.WithMaxTextChars(a.cfg.ExtractMaxChars)), nil
}

// digester builds the digest with an SMTP sender when credentials are set.
func (a *app) digester() *digest.Digester {
	var sender digest.Sender
	if a.cfg.SMTPEnabled() {
		sender = digest.NewSMTPSender(digest.SMTPConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			Username: a.cfg.SMTPUser,
			Password: a.cfg.SMTPPassword,
			From:     a.cfg.SMTPUser,
			To:       a.cfg.DigestRecipient,
			Timeout:  smtpTimeout,
		})
	}
	return digest.NewDigester(a.store, a.signer(), sender, a.cfg.BaseURL, a.logger)
}

// publisher builds the site publisher with an S3 uploader when a bucket is set.
func (a *app) publisher(ctx context.Context) (*publish.Publisher, error) {
	var uploader publish.Uploader
	if a.cfg.S3Enabled() {
		s3, err := publish.NewS3Uploader(ctx, publish.S3Config{
			Bucket:    a.cfg.S3Bucket,
			Prefix:    a.cfg.S3Prefix,
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3Key,
			SecretKey: a.cfg.S3Secret,
		})
		if err != nil {
			return nil, err
		}
		uploader = s3
	}
	return publish.NewPublisher(a.store, uploader, a.logger), nil
}

// runner wires every stage of a cycle.
func (a *app) runner(ctx context.Context) (*pipeline.Runner, error) {
	enricher, err := a.enricher(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}
	return &pipeline.Runner{
		Feeds:     a.feedPoller(),
		Enricher:  enricher,
		Digester:  a.digester(),
		Publisher: publisher,
		Logger:    a.logger,
	}, nil
}

// cycleOptions reads the feeds file and fills stage settings from config.
// Without SMTP credentials the digest runs dry and prints to out.
func (a *app) cycleOptions(stages []string, out io.Writer) (pipeline.RunOptions, error) {
	opts := pipeline.RunOptions{
		Stages:  stages,
		Scrape:  enrichment.ScrapeOptions{Limit: enrichment.DefaultScrapeLimit, Delay: a.cfg.ScrapeDelay},
		Extract: enrichment.ExtractOptions{Limit: a.cfg.ExtractLimit, Delay: a.cfg.ExtractDelay},
		Digest:  digest.Options{Limit: a.cfg.DigestLimit, DryRun: !a.cfg.SMTPEnabled()},
		Publish: publish.Options{
			OutDir:        a.cfg.PublishDir,
			Upload:        a.cfg.S3Enabled(),
			MarkPublished: true,
		},
		DigestOut: out,
	}

	feeds, err := config.LoadFeeds(a.cfg.FeedsFile)
	switch {
	case err == nil:
		opts.Feeds = feeds
	case errors.Is(err, os.ErrNotExist):
		a.logger.Warn("feeds file not found; feed polling disabled", zap.String("path", a.cfg.FeedsFile))
	default:
		return opts, fmt.Errorf("failed to load feeds: %w", err)
	}
	return opts, nil
}
