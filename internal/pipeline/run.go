// Package pipeline orchestrates one editorial cycle: poll feeds, scrape new
// items, extract deal fields, send the digest, and optionally publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/digest"
	"github.com/jonathan/deal-tracker/internal/enrichment"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/pipeline/steps"
	"github.com/jonathan/deal-tracker/internal/publish"
	"go.uber.org/zap"
)

// ProgressEvent represents a progress update during a cycle
type ProgressEvent struct {
	Stage    string `json:"stage"`
	Category string `json:"category"`
	Message  string `json:"message"`
	CycleID  string `json:"cycle_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when cycle progress occurs
type ProgressCallback func(event ProgressEvent)

// FeedPoller ingests configured feeds.
type FeedPoller interface {
	Poll(ctx context.Context, feeds []config.Feed) (*ingestion.FeedReport, error)
}

// Enricher runs the scrape and extraction stages.
type Enricher interface {
	Scrape(ctx context.Context, opts enrichment.ScrapeOptions) (*enrichment.ScrapeReport, error)
	Extract(ctx context.Context, opts enrichment.ExtractOptions) (*enrichment.ExtractReport, error)
}

// Digester sends the review digest.
type Digester interface {
	Run(ctx context.Context, opts digest.Options) (*digest.Report, error)
}

// Publisher rebuilds the static site.
type Publisher interface {
	Run(ctx context.Context, opts publish.Options) (*publish.Report, error)
}

// Runner holds the stage implementations. Any of them may be nil, in which
// case the stage is skipped.
type Runner struct {
	Feeds     FeedPoller
	Enricher  Enricher
	Digester  Digester
	Publisher Publisher
	Logger    *zap.Logger
}

// RunOptions holds configuration for one cycle
type RunOptions struct {
	// Stages selects what runs; empty means the default cycle.
	Stages  []string
	Feeds   []config.Feed
	Scrape  enrichment.ScrapeOptions
	Extract enrichment.ExtractOptions
	Digest  digest.Options
	Publish publish.Options
	// DigestOut receives the digest body on a dry run.
	DigestOut  io.Writer
	OnProgress ProgressCallback
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage    string        `json:"stage"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
	Report   any           `json:"report,omitempty"`
	Err      error         `json:"-"`
}

// CycleReport collects every stage result.
type CycleReport struct {
	CycleID string        `json:"cycle_id"`
	Stages  []StageResult `json:"stages"`
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, cycleID, stage, message string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{
			Stage:    stage,
			Category: steps.StageRegistry[stage].Category,
			Message:  message,
			CycleID:  cycleID,
			Content:  content,
		})
	}
}

// Run executes the selected stages in order. A failing stage does not stop
// later stages unless they depend on it; items it left unprocessed are picked
// up by the next cycle. The returned error joins every stage error.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*CycleReport, error) {
	stages, err := steps.Resolve(opts.Stages)
	if err != nil {
		return nil, err
	}

	logger := observability.OrNop(r.Logger)
	cycleID := uuid.NewString()
	logger = logger.With(zap.String("cycle_id", cycleID))
	report := &CycleReport{CycleID: cycleID}

	failed := make(map[string]bool)
	var errs []error
	for _, stage := range stages {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res := StageResult{Stage: stage}
		if err := steps.ValidateDependencies(stage, failed); err != nil {
			res.Skipped = true
			res.Err = err
			failed[stage] = true
			logger.Warn("stage skipped", zap.String("stage", stage), zap.Error(err))
			emitProgress(&opts, cycleID, stage, err.Error(), nil)
			report.Stages = append(report.Stages, res)
			continue
		}

		start := time.Now()
		res.Report, res.Skipped, res.Err = r.runStage(ctx, stage, &opts)
		res.Duration = time.Since(start)

		switch {
		case res.Err != nil:
			failed[stage] = true
			errs = append(errs, fmt.Errorf("%s: %w", stage, res.Err))
			logger.Error("stage failed", zap.String("stage", stage), zap.Error(res.Err))
			emitProgress(&opts, cycleID, stage, "failed: "+res.Err.Error(), nil)
		case res.Skipped:
			logger.Info("stage not configured", zap.String("stage", stage))
			emitProgress(&opts, cycleID, stage, "not configured, skipped", nil)
		default:
			logger.Info("stage complete", zap.String("stage", stage), zap.Duration("duration", res.Duration))
			emitProgress(&opts, cycleID, stage, "complete", res.Report)
		}
		report.Stages = append(report.Stages, res)
	}

	return report, errors.Join(errs...)
}

// runStage dispatches one stage. skipped is true when no implementation is wired.
func (r *Runner) runStage(ctx context.Context, stage string, opts *RunOptions) (report any, skipped bool, err error) {
	switch stage {
	case steps.FetchFeeds:
		if r.Feeds == nil || len(opts.Feeds) == 0 {
			return nil, true, nil
		}
		rep, err := r.Feeds.Poll(ctx, opts.Feeds)
		return rep, false, err
	case steps.Scrape:
		if r.Enricher == nil {
			return nil, true, nil
		}
		rep, err := r.Enricher.Scrape(ctx, opts.Scrape)
		return rep, false, err
	case steps.Extract:
		if r.Enricher == nil {
			return nil, true, nil
		}
		rep, err := r.Enricher.Extract(ctx, opts.Extract)
		return rep, false, err
	case steps.Digest:
		if r.Digester == nil {
			return nil, true, nil
		}
		dopts := opts.Digest
		if dopts.Out == nil {
			dopts.Out = opts.DigestOut
		}
		rep, err := r.Digester.Run(ctx, dopts)
		return rep, false, err
	case steps.Publish:
		if r.Publisher == nil {
			return nil, true, nil
		}
		rep, err := r.Publisher.Run(ctx, opts.Publish)
		return rep, false, err
	default:
		return nil, false, &steps.UnknownStageError{Stage: stage}
	}
}
