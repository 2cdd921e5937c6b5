// Package memstore is an in-memory implementation of the item store. Each
// method holds a single mutex for its duration, so every call is atomic in the
// same way a single SQL statement or transaction is.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
)

// Store keeps items and their derived records in maps keyed by item ID.
type Store struct {
	mu sync.RWMutex

	nextID      int64
	items       map[int64]*db.Item
	byURL       map[string]int64
	scrapes     map[int64]*db.ScrapeResult
	extractions map[int64]*db.Extraction
	approvals   map[int64]*db.Approval
	rejections  map[int64]*db.Rejection

	now func() time.Time
}

var _ db.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		items:       make(map[int64]*db.Item),
		byURL:       make(map[string]int64),
		scrapes:     make(map[int64]*db.ScrapeResult),
		extractions: make(map[int64]*db.Extraction),
		approvals:   make(map[int64]*db.Approval),
		rejections:  make(map[int64]*db.Rejection),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) insertLocked(c *db.Candidate) *db.Item {
	s.nextID++
	it := &db.Item{
		ID:           s.nextID,
		URL:          c.URL,
		Title:        c.Title,
		Summary:      c.Summary,
		PublishedAt:  c.PublishedAt,
		Origin:       c.Origin,
		DiscoveredAt: s.now(),
		Status:       db.StatusNew,
	}
	s.items[it.ID] = it
	s.byURL[it.URL] = it.ID
	return it
}

// InsertItem strictly inserts a new item.
func (s *Store) InsertItem(_ context.Context, c *db.Candidate) (*db.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byURL[c.URL]; exists {
		return nil, fmt.Errorf("item %s: %w", c.URL, db.ErrDuplicateKey)
	}
	it := *s.insertLocked(c)
	return &it, nil
}

// InsertItemIfAbsent inserts the item unless its URL exists.
func (s *Store) InsertItemIfAbsent(_ context.Context, c *db.Candidate) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.byURL[c.URL]; exists {
		return id, false, nil
	}
	return s.insertLocked(c).ID, true, nil
}

// GetItem returns a copy of the item, or nil if absent.
func (s *Store) GetItem(_ context.Context, id int64) (*db.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

// GetItemByURL returns a copy of the item with the given URL, or nil if absent.
func (s *Store) GetItemByURL(ctx context.Context, url string) (*db.Item, error) {
	s.mu.RLock()
	id, ok := s.byURL[url]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetItem(ctx, id)
}

// ListItems lists items newest-discovered first with optional filters.
func (s *Store) ListItems(_ context.Context, f db.ItemFilter) ([]db.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterLocked(func(it *db.Item) bool {
		return (f.Status == "" || it.Status == f.Status) && (f.Origin == "" || it.Origin == f.Origin)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DiscoveredAt.Equal(out[j].DiscoveredAt) {
			return out[i].DiscoveredAt.After(out[j].DiscoveredAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, f.Offset, f.Limit), nil
}

// ListPending returns items awaiting triage.
func (s *Store) ListPending(_ context.Context, limit int) ([]db.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterLocked(s.pendingLocked)
	sortByPublished(out)
	return page(out, 0, limit), nil
}

// ListItemsToScrape returns new items without a scrape result, oldest first.
func (s *Store) ListItemsToScrape(_ context.Context, limit int) ([]db.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterLocked(func(it *db.Item) bool {
		_, scraped := s.scrapes[it.ID]
		return it.Status == db.StatusNew && !scraped
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, 0, limit), nil
}

// ListDigestCandidates returns pending items with a complete extraction.
func (s *Store) ListDigestCandidates(_ context.Context, limit int) ([]db.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterLocked(func(it *db.Item) bool {
		e, ok := s.extractions[it.ID]
		return s.pendingLocked(it) && ok && e.Complete
	})
	sortByPublished(out)
	return page(out, 0, limit), nil
}

// SaveScrapeResult replaces the scrape result and updates the item status.
func (s *Store) SaveScrapeResult(_ context.Context, r *db.ScrapeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[r.ItemID]
	if !ok {
		return db.ErrItemNotFound
	}
	it.Status = db.StatusScraped
	if !r.Success {
		it.Status = db.StatusFailed
	}
	r.ScrapedAt = s.now()
	cp := *r
	s.scrapes[r.ItemID] = &cp
	return nil
}

// GetScrapeResult returns the item's scrape result, or nil.
func (s *Store) GetScrapeResult(_ context.Context, itemID int64) (*db.ScrapeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.scrapes[itemID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListItemsToExtract returns scraped items with text, skipping complete extractions unless force.
func (s *Store) ListItemsToExtract(_ context.Context, limit int, force bool) ([]db.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.filterLocked(func(it *db.Item) bool {
		r, ok := s.scrapes[it.ID]
		if !ok || !r.Success || r.Text == nil {
			return false
		}
		e, has := s.extractions[it.ID]
		return force || !has || !e.Complete
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	items = page(items, 0, limit)

	jobs := make([]db.ExtractionJob, len(items))
	for i, it := range items {
		jobs[i] = db.ExtractionJob{Item: it, Text: *s.scrapes[it.ID].Text}
	}
	return jobs, nil
}

// GetExtraction returns the item's extraction, or nil.
func (s *Store) GetExtraction(_ context.Context, itemID int64) (*db.Extraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.extractions[itemID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// SaveExtraction creates or overwrites the item's extraction.
func (s *Store) SaveExtraction(_ context.Context, e *db.Extraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[e.ItemID]; !ok {
		return db.ErrItemNotFound
	}
	e.ExtractedAt = s.now()
	cp := *e
	s.extractions[e.ItemID] = &cp
	return nil
}

// Decide records a terminal decision with the same rules as the SQL store.
func (s *Store) Decide(_ context.Context, d db.Decision) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[d.ItemID]; !ok {
		return false, db.ErrItemNotFound
	}
	_, approved := s.approvals[d.ItemID]
	_, rejected := s.rejections[d.ItemID]

	switch d.Outcome {
	case db.OutcomeApproved:
		if d.Approval == nil {
			return false, fmt.Errorf("approved decision requires an approval record")
		}
		if approved {
			return false, nil
		}
		if rejected {
			return false, db.ErrDecisionConflict
		}
		a := *d.Approval
		a.ItemID = d.ItemID
		a.CuratedAt = s.now()
		a.Published = false
		a.PublishedAt = nil
		s.approvals[d.ItemID] = &a
		*d.Approval = a
	case db.OutcomeRejected:
		if d.Rejection == nil {
			return false, fmt.Errorf("rejected decision requires a rejection record")
		}
		if rejected {
			return false, nil
		}
		if approved {
			return false, db.ErrDecisionConflict
		}
		r := *d.Rejection
		r.ItemID = d.ItemID
		r.RejectedAt = s.now()
		s.rejections[d.ItemID] = &r
		*d.Rejection = r
	default:
		return false, fmt.Errorf("unknown decision outcome %q", d.Outcome)
	}
	return true, nil
}

// DeleteRejection removes an item's rejection.
func (s *Store) DeleteRejection(_ context.Context, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rejections[itemID]; !ok {
		return false, nil
	}
	delete(s.rejections, itemID)
	return true, nil
}

// GetApproval returns the item's approval, or nil.
func (s *Store) GetApproval(_ context.Context, itemID int64) (*db.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.approvals[itemID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// GetRejection returns the item's rejection, or nil.
func (s *Store) GetRejection(_ context.Context, itemID int64) (*db.Rejection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rejections[itemID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListApproved returns approvals joined to items, newest deal first.
func (s *Store) ListApproved(_ context.Context, onlyUnpublished bool) ([]db.ApprovedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.ApprovedRecord
	for id, a := range s.approvals {
		if onlyUnpublished && a.Published {
			continue
		}
		out = append(out, db.ApprovedRecord{Item: *s.items[id], Approval: *a})
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := dealDate(out[i]), dealDate(out[j])
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].Item.ID > out[j].Item.ID
	})
	return out, nil
}

func dealDate(r db.ApprovedRecord) time.Time {
	if r.Item.PublishedAt != nil {
		return *r.Item.PublishedAt
	}
	return r.Approval.CuratedAt
}

// ListRejected returns the most recent rejections joined to items.
func (s *Store) ListRejected(_ context.Context, limit int) ([]db.RejectedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.RejectedRecord
	for id, r := range s.rejections {
		out = append(out, db.RejectedRecord{Item: *s.items[id], Rejection: *r})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Rejection.RejectedAt.Equal(out[j].Rejection.RejectedAt) {
			return out[i].Rejection.RejectedAt.After(out[j].Rejection.RejectedAt)
		}
		return out[i].Item.ID > out[j].Item.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkPublished flags approvals as published.
func (s *Store) MarkPublished(_ context.Context, itemIDs []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range itemIDs {
		if a, ok := s.approvals[id]; ok && !a.Published {
			a.Published = true
			t := at
			a.PublishedAt = &t
		}
	}
	return nil
}

// QueueStats counts items at each pipeline stage.
func (s *Store) QueueStats(_ context.Context) (*db.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &db.QueueStats{
		Total:    len(s.items),
		Approved: len(s.approvals),
		Rejected: len(s.rejections),
	}
	for _, it := range s.items {
		switch it.Status {
		case db.StatusNew:
			st.New++
		case db.StatusScraped:
			st.Scraped++
		case db.StatusFailed:
			st.Failed++
		}
		if s.pendingLocked(it) {
			st.Pending++
		}
	}
	for _, e := range s.extractions {
		if e.Complete {
			st.WithExtraction++
		}
	}
	return st, nil
}

// OriginStats counts items and approvals per origin, busiest first.
func (s *Store) OriginStats(_ context.Context) ([]db.OriginStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byOrigin := make(map[string]*db.OriginStats)
	for id, it := range s.items {
		o, ok := byOrigin[it.Origin]
		if !ok {
			o = &db.OriginStats{Origin: it.Origin}
			byOrigin[it.Origin] = o
		}
		o.Items++
		if _, approved := s.approvals[id]; approved {
			o.Approved++
		}
	}

	out := make([]db.OriginStats, 0, len(byOrigin))
	for _, o := range byOrigin {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Items != out[j].Items {
			return out[i].Items > out[j].Items
		}
		return out[i].Origin < out[j].Origin
	})
	return out, nil
}

// pendingLocked reports whether the item is awaiting triage.
func (s *Store) pendingLocked(it *db.Item) bool {
	if it.Status != db.StatusScraped {
		return false
	}
	r, ok := s.scrapes[it.ID]
	if !ok || !r.Success {
		return false
	}
	_, approved := s.approvals[it.ID]
	_, rejected := s.rejections[it.ID]
	return !approved && !rejected
}

func (s *Store) filterLocked(keep func(*db.Item) bool) []db.Item {
	var out []db.Item
	for _, it := range s.items {
		if keep(it) {
			out = append(out, *it)
		}
	}
	return out
}

// sortByPublished orders by publication date descending, undated last, then ID descending.
func sortByPublished(items []db.Item) {
	sort.Slice(items, func(i, j int) bool {
		pi, pj := items[i].PublishedAt, items[j].PublishedAt
		switch {
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.After(*pj)
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return items[i].ID > items[j].ID
	})
}

func page(items []db.Item, offset, limit int) []db.Item {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
