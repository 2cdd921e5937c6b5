package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scraped(t *testing.T, s *Store, url string, published *time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	id, created, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: url, Title: url, PublishedAt: published})
	require.NoError(t, err)
	require.True(t, created)

	text := "body"
	require.NoError(t, s.SaveScrapeResult(ctx, &db.ScrapeResult{ItemID: id, Success: true, Text: &text}))
	return id
}

func TestInsertItem_Duplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.InsertItem(ctx, &db.Candidate{URL: "https://x.test/a"})
	require.NoError(t, err)

	_, err = s.InsertItem(ctx, &db.Candidate{URL: "https://x.test/a"})
	assert.ErrorIs(t, err, db.ErrDuplicateKey)

	id, created, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/a"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), id)
}

func TestInsertItemIfAbsent_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/same"})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	stats, err := s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestListPending_OrderAndFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	a := scraped(t, s, "https://x.test/old", &older)
	b := scraped(t, s, "https://x.test/new", &newer)
	c := scraped(t, s, "https://x.test/undated", nil)
	decided := scraped(t, s, "https://x.test/decided", &newer)

	failedID, _, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/failed"})
	require.NoError(t, err)
	require.NoError(t, s.SaveScrapeResult(ctx, &db.ScrapeResult{ItemID: failedID, Success: false}))

	_, err = s.Decide(ctx, db.Decision{ItemID: decided, Outcome: db.OutcomeRejected, Rejection: &db.Rejection{}})
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, 10)
	require.NoError(t, err)

	var ids []int64
	for _, it := range pending {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []int64{b, a, c}, ids)

	limited, err := s.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("same outcome is a no-op", func(t *testing.T) {
		s := New()
		id := scraped(t, s, "https://x.test/a", nil)
		first, second := "Acme", "Other"

		applied, err := s.Decide(ctx, db.Decision{ItemID: id, Outcome: db.OutcomeApproved, Approval: &db.Approval{Company: &first}})
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.Decide(ctx, db.Decision{ItemID: id, Outcome: db.OutcomeApproved, Approval: &db.Approval{Company: &second}})
		require.NoError(t, err)
		assert.False(t, applied)

		a, err := s.GetApproval(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Acme", *a.Company)
	})

	t.Run("opposite outcome conflicts", func(t *testing.T) {
		s := New()
		id := scraped(t, s, "https://x.test/a", nil)

		_, err := s.Decide(ctx, db.Decision{ItemID: id, Outcome: db.OutcomeApproved, Approval: &db.Approval{}})
		require.NoError(t, err)

		_, err = s.Decide(ctx, db.Decision{ItemID: id, Outcome: db.OutcomeRejected, Rejection: &db.Rejection{}})
		assert.ErrorIs(t, err, db.ErrDecisionConflict)

		r, err := s.GetRejection(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("unknown item", func(t *testing.T) {
		s := New()
		_, err := s.Decide(ctx, db.Decision{ItemID: 99, Outcome: db.OutcomeRejected, Rejection: &db.Rejection{}})
		assert.ErrorIs(t, err, db.ErrItemNotFound)
	})
}

func TestListItemsToExtract_SkipsCompleteUnlessForced(t *testing.T) {
	s := New()
	ctx := context.Background()

	done := scraped(t, s, "https://x.test/done", nil)
	todo := scraped(t, s, "https://x.test/todo", nil)
	require.NoError(t, s.SaveExtraction(ctx, &db.Extraction{ItemID: done, Complete: true}))
	require.NoError(t, s.SaveExtraction(ctx, &db.Extraction{ItemID: todo, Complete: false}))

	jobs, err := s.ListItemsToExtract(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, todo, jobs[0].Item.ID)
	assert.Equal(t, "body", jobs[0].Text)

	jobs, err = s.ListItemsToExtract(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestMarkPublished(t *testing.T) {
	s := New()
	ctx := context.Background()

	id := scraped(t, s, "https://x.test/a", nil)
	_, err := s.Decide(ctx, db.Decision{ItemID: id, Outcome: db.OutcomeApproved, Approval: &db.Approval{}})
	require.NoError(t, err)

	first := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkPublished(ctx, []int64{id}, first))
	require.NoError(t, s.MarkPublished(ctx, []int64{id}, first.Add(time.Hour)))

	a, err := s.GetApproval(ctx, id)
	require.NoError(t, err)
	assert.True(t, a.Published)
	assert.Equal(t, first, *a.PublishedAt)

	unpublished, err := s.ListApproved(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestOriginStats(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, c := range []db.Candidate{
		{URL: "https://x.test/1", Origin: "Defense News"},
		{URL: "https://x.test/2", Origin: "Defense News"},
		{URL: "https://x.test/3", Origin: "manual"},
	} {
		c := c
		_, _, err := s.InsertItemIfAbsent(ctx, &c)
		require.NoError(t, err)
	}

	stats, err := s.OriginStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, db.OriginStats{Origin: "Defense News", Items: 2}, stats[0])
	assert.Equal(t, db.OriginStats{Origin: "manual", Items: 1}, stats[1])
}
