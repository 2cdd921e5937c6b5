package db

import (
	"context"
	"time"
)

// Store is the full Item Store contract. DB and memstore.Store both satisfy it.
type Store interface {
	InsertItem(ctx context.Context, c *Candidate) (*Item, error)
	InsertItemIfAbsent(ctx context.Context, c *Candidate) (id int64, created bool, err error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	GetItemByURL(ctx context.Context, url string) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	ListPending(ctx context.Context, limit int) ([]Item, error)
	ListItemsToScrape(ctx context.Context, limit int) ([]Item, error)

	SaveScrapeResult(ctx context.Context, result *ScrapeResult) error
	GetScrapeResult(ctx context.Context, itemID int64) (*ScrapeResult, error)

	ListItemsToExtract(ctx context.Context, limit int, force bool) ([]ExtractionJob, error)
	GetExtraction(ctx context.Context, itemID int64) (*Extraction, error)
	SaveExtraction(ctx context.Context, ext *Extraction) error

	Decide(ctx context.Context, d Decision) (applied bool, err error)
	DeleteRejection(ctx context.Context, itemID int64) (bool, error)
	GetApproval(ctx context.Context, itemID int64) (*Approval, error)
	GetRejection(ctx context.Context, itemID int64) (*Rejection, error)
	ListApproved(ctx context.Context, onlyUnpublished bool) ([]ApprovedRecord, error)
	ListRejected(ctx context.Context, limit int) ([]RejectedRecord, error)
	MarkPublished(ctx context.Context, itemIDs []int64, at time.Time) error

	ListDigestCandidates(ctx context.Context, limit int) ([]Item, error)
	QueueStats(ctx context.Context) (*QueueStats, error)
	OriginStats(ctx context.Context) ([]OriginStats, error)
}
