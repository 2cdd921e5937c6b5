package publish

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/db/memstore"
	"github.com/jonathan/deal-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func ts(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestBuild_OrderAndFields(t *testing.T) {
	tt := types.TransactionAcquisition
	curated := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	records := []db.ApprovedRecord{
		{
			Item:     db.Item{ID: 1, URL: "https://x.test/1", Title: "Old", PublishedAt: ts("2025-01-01")},
			Approval: db.Approval{Company: strPtr("Old Co"), CuratedAt: curated},
		},
		{
			Item: db.Item{ID: 2, URL: "https://x.test/2", Title: "Undated"},
			Approval: db.Approval{
				Company:         strPtr("Acme"),
				Amount:          strPtr("$10M"),
				TransactionType: &tt,
				CapitalSources:  types.CapitalSources{types.CapitalVentureCapital, types.CapitalGovernment},
				Sectors:         types.Sectors{types.SectorSpace},
				CuratedAt:       curated,
			},
		},
		{
			Item:     db.Item{ID: 3, URL: "https://x.test/3", Title: "Same day", PublishedAt: ts("2025-01-01")},
			Approval: db.Approval{CuratedAt: curated},
		},
	}

	entries := Build(records)
	require.Len(t, entries, 3)

	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	assert.Equal(t, []int64{2, 3, 1}, ids)

	acme := entries[0]
	assert.Equal(t, curated, acme.Date, "falls back to curation time")
	assert.Equal(t, "Acme", acme.Company)
	assert.Equal(t, "Acquisition", acme.TransactionType)
	assert.Equal(t, []string{"Venture Capital", "Government"}, acme.CapitalSources)
	assert.Equal(t, []string{"Space"}, acme.Sectors)
	assert.Equal(t, "https://x.test/2", acme.SourceURL)

	assert.Equal(t, []string{}, entries[1].Sectors)
	assert.Empty(t, Build(nil))
}

func TestRender_Deterministic(t *testing.T) {
	entries := []Entry{{
		ItemID:         7,
		Date:           time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		Company:        "Acme, Inc.",
		Amount:         "$10M",
		CapitalSources: []string{"Venture Capital"},
		Sectors:        []string{"AI/ML", "Space"},
		Summary:        `Says "hello" <b>`,
		SourceURL:      "https://x.test/a",
		Title:          "Acme raises",
	}}

	first, err := Render(entries)
	require.NoError(t, err)
	second, err := Render(entries)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	byName := map[string][]byte{}
	for _, a := range first {
		byName[a.Name] = a.Data
	}

	var decoded []Entry
	require.NoError(t, json.Unmarshal(byName[JSONFile], &decoded))
	assert.Equal(t, entries, decoded)

	rows, err := csv.NewReader(bytes.NewReader(byName[CSVFile])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2025-03-04", "Acme, Inc.", "$10M", "", "Venture Capital", "AI/ML, Space", "", `Says "hello" <b>`, "https://x.test/a"}, rows[1])

	html := string(byName[HTMLFile])
	assert.Contains(t, html, "<p>1 deal</p>")
	assert.Contains(t, html, "Says &#34;hello&#34; &lt;b&gt;")
	assert.Contains(t, html, `<a href="https://x.test/a">Acme raises</a>`)
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

type memUploader struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *memUploader) Upload(_ context.Context, a Artifact) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, "site/"+a.Name)
	return "site/" + a.Name, nil
}

func approve(t *testing.T, s *memstore.Store, url, company string) int64 {
	t.Helper()
	ctx := context.Background()
	id, _, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: url, Title: company})
	require.NoError(t, err)
	_, err = s.Decide(ctx, db.Decision{ItemID: id, Outcome: db.OutcomeApproved, Approval: &db.Approval{Company: &company}})
	require.NoError(t, err)
	return id
}

func TestPublisher_Run(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	id := approve(t, store, "https://x.test/a", "Acme")
	approve(t, store, "https://x.test/b", "Beta")

	// Rejections never reach the output.
	rid, _, err := store.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/r"})
	require.NoError(t, err)
	_, err = store.Decide(ctx, db.Decision{ItemID: rid, Outcome: db.OutcomeRejected, Rejection: &db.Rejection{}})
	require.NoError(t, err)

	up := &memUploader{}
	p := NewPublisher(store, up, nil)
	out := t.TempDir()

	report, err := p.Run(ctx, Options{OutDir: out, Upload: true, MarkPublished: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
	assert.Len(t, report.Files, 3)
	assert.Equal(t, []string{"site/deals.json", "site/deals.csv", "site/index.html"}, report.Uploaded)
	assert.Equal(t, 2, report.Marked)

	sort.Strings(up.keys)
	assert.Equal(t, []string{"site/deals.csv", "site/deals.json", "site/index.html"}, up.keys)

	data, err := os.ReadFile(filepath.Join(out, JSONFile))
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)

	a, err := store.GetApproval(ctx, id)
	require.NoError(t, err)
	assert.True(t, a.Published)

	// A second run re-renders everything but marks nothing new.
	report, err = p.Run(ctx, Options{OutDir: out, MarkPublished: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 0, report.Marked)
}

func TestPublisher_UploadErrors(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	approve(t, store, "https://x.test/a", "Acme")

	_, err := NewPublisher(store, nil, nil).Run(ctx, Options{Upload: true})
	assert.Error(t, err)

	_, err = NewPublisher(store, &memUploader{err: errors.New("denied")}, nil).Run(ctx, Options{Upload: true, MarkPublished: true})
	assert.ErrorContains(t, err, "denied")

	a, err := store.GetApproval(ctx, 1)
	require.NoError(t, err)
	assert.False(t, a.Published, "failed upload does not mark")
}
