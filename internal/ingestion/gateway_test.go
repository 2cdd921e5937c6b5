package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/db/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	failURL string
	next    Store
}

func (f *failingStore) InsertItemIfAbsent(ctx context.Context, c *db.Candidate) (int64, bool, error) {
	if c.URL == f.failURL {
		return 0, false, errors.New("connection reset")
	}
	return f.next.InsertItemIfAbsent(ctx, c)
}

func TestIngest_NewDuplicateInvalid(t *testing.T) {
	store := memstore.New()
	g := NewGateway(store, nil)
	ctx := context.Background()

	report, err := g.Ingest(ctx, []db.Candidate{
		{URL: "https://news.test/a", Title: "A", Origin: "Defense News"},
		{URL: "https://news.test/a#dup", Title: "A again", Origin: "Defense News"},
		{URL: "not a url", Title: "bad", Origin: "Defense News"},
		{URL: "https://news.test/b?utm_source=rss", Title: "B", Origin: "Defense News"},
	})
	require.NoError(t, err)

	assert.Equal(t, Counts{New: 2, Duplicate: 1, Invalid: 1}, report.Counts)
	require.Len(t, report.Results, 4)
	assert.Equal(t, report.Results[0].ItemID, report.Results[1].ItemID)
	assert.False(t, report.Results[1].Created)

	b, err := store.GetItemByURL(ctx, "https://news.test/b")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, db.StatusNew, b.Status)
	assert.Equal(t, "Defense News", b.Origin)
}

func TestIngest_IsIdempotent(t *testing.T) {
	store := memstore.New()
	g := NewGateway(store, nil)
	ctx := context.Background()
	batch := []db.Candidate{{URL: "https://news.test/a"}, {URL: "https://news.test/b"}}

	first, err := g.Ingest(ctx, batch)
	require.NoError(t, err)
	second, err := g.Ingest(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, 2, first.New)
	assert.Equal(t, Counts{Duplicate: 2}, second.Counts)

	stats, err := store.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}

func TestIngest_StoreErrorDoesNotAbortBatch(t *testing.T) {
	store := &failingStore{failURL: "https://news.test/bad", next: memstore.New()}
	g := NewGateway(store, nil)

	report, err := g.Ingest(context.Background(), []db.Candidate{
		{URL: "https://news.test/bad"},
		{URL: "https://news.test/good"},
	})
	require.NoError(t, err)
	assert.Equal(t, Counts{New: 1, Errors: 1}, report.Counts)
	assert.Error(t, report.Results[0].Err)
}

func TestIngest_CancelledContext(t *testing.T) {
	g := NewGateway(memstore.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := g.Ingest(ctx, []db.Candidate{{URL: "https://news.test/a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestIngestOne(t *testing.T) {
	store := memstore.New()
	g := NewGateway(store, nil)
	ctx := context.Background()
	long := "https://news.test/" + strings.Repeat("x", 80)

	res, err := g.IngestOne(ctx, long, "", nil)
	require.NoError(t, err)
	assert.True(t, res.Created)

	item, err := store.GetItem(ctx, res.ItemID)
	require.NoError(t, err)
	assert.Equal(t, OriginManual, item.Origin)
	assert.Equal(t, "Manual submission: "+long[:50]+"...", item.Title)

	res, err = g.IngestOne(ctx, long, "Other title", nil)
	require.NoError(t, err)
	assert.False(t, res.Created)

	_, err = g.IngestOne(ctx, "nope", "", nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestIngestMessage(t *testing.T) {
	store := memstore.New()
	g := NewGateway(store, nil)
	ctx := context.Background()

	_, err := g.IngestOne(ctx, "https://news.test/known", "", nil)
	require.NoError(t, err)

	text := "Two deals: https://news.test/known and https://news.test/fresh."
	report, err := g.IngestMessage(ctx, text, "telegram:alice", 0)
	require.NoError(t, err)
	assert.Equal(t, Counts{New: 1, Duplicate: 1}, report.Counts)

	item, err := store.GetItemByURL(ctx, "https://news.test/fresh")
	require.NoError(t, err)
	assert.Equal(t, "telegram:alice", item.Origin)
	assert.Equal(t, "Telegram submission: https://news.test/fresh...", item.Title)
	require.NotNil(t, item.Summary)
}

func TestIngestMessage_NoURLs(t *testing.T) {
	report, err := NewGateway(memstore.New(), nil).IngestMessage(context.Background(), "hello", "telegram:bob", 5)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, report.Counts)
}

func TestOriginKind(t *testing.T) {
	assert.Equal(t, "telegram", originKind("telegram:alice"))
	assert.Equal(t, "manual", originKind("manual"))
	assert.Equal(t, "unknown", originKind(""))
}
