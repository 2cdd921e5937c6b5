package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is what publishing reads and marks.
type Store interface {
	ListApproved(ctx context.Context, onlyUnpublished bool) ([]db.ApprovedRecord, error)
	MarkPublished(ctx context.Context, itemIDs []int64, at time.Time) error
}

// Options controls a publish run.
type Options struct {
	OutDir string
	// Upload sends artifacts to the configured uploader.
	Upload bool
	// MarkPublished flags every rendered approval as published.
	MarkPublished bool
}

// Report summarises a publish run.
type Report struct {
	Entries  int      `json:"entries"`
	Files    []string `json:"files"`
	Uploaded []string `json:"uploaded,omitempty"`
	Marked   int      `json:"marked"`
}

// Publisher rebuilds the static site from the store.
type Publisher struct {
	store    Store
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time
}

// NewPublisher creates a Publisher. uploader may be nil.
func NewPublisher(store Store, uploader Uploader, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, uploader: uploader, logger: observability.OrNop(logger), now: time.Now}
}

// Run performs a full rebuild: list approvals, render, write, and optionally
// upload and mark published.
func (p *Publisher) Run(ctx context.Context, opts Options) (*Report, error) {
	records, err := p.store.ListApproved(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	entries := Build(records)
	artifacts, err := Render(entries)
	if err != nil {
		return nil, err
	}

	report := &Report{Entries: len(entries)}
	if opts.OutDir != "" {
		if report.Files, err = WriteDir(opts.OutDir, artifacts); err != nil {
			return nil, err
		}
	}

	if opts.Upload {
		if p.uploader == nil {
			return report, fmt.Errorf("upload requested but no storage is configured")
		}
		if report.Uploaded, err = p.upload(ctx, artifacts); err != nil {
			return report, err
		}
	}

	if opts.MarkPublished {
		var ids []int64
		for _, r := range records {
			if !r.Approval.Published {
				ids = append(ids, r.Item.ID)
			}
		}
		if err := p.store.MarkPublished(ctx, ids, p.now().UTC()); err != nil {
			return report, err
		}
		report.Marked = len(ids)
	}

	p.logger.Info("published",
		zap.Int("entries", report.Entries),
		zap.Int("files", len(report.Files)),
		zap.Int("uploaded", len(report.Uploaded)),
		zap.Int("marked", report.Marked))
	return report, nil
}

func (p *Publisher) upload(ctx context.Context, artifacts []Artifact) ([]string, error) {
	keys := make([]string, len(artifacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, a := range artifacts {
		g.Go(func() error {
			key, err := p.uploader.Upload(gctx, a)
			if err != nil {
				return err
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}
