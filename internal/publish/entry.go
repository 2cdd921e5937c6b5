// Package publish renders approved deals into a static, regenerable site.
package publish

import (
	"sort"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
)

// Entry is one published deal.
type Entry struct {
	ItemID          int64     `json:"item_id"`
	Date            time.Time `json:"date"`
	Company         string    `json:"company"`
	Amount          string    `json:"amount"`
	TransactionType string    `json:"transaction_type"`
	CapitalSources  []string  `json:"capital_sources"`
	Sectors         []string  `json:"sectors"`
	Location        string    `json:"location"`
	Summary         string    `json:"summary"`
	SourceURL       string    `json:"source_url"`
	Title           string    `json:"title"`
}

// Build projects approved records into entries, newest first. The date is the
// article's publication time, or the curation time when that is unknown.
func Build(records []db.ApprovedRecord) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		a := r.Approval
		e := Entry{
			ItemID:         r.Item.ID,
			Date:           a.CuratedAt.UTC(),
			Company:        str(a.Company),
			Amount:         str(a.Amount),
			Location:       str(a.Location),
			Summary:        str(a.Summary),
			SourceURL:      r.Item.URL,
			Title:          r.Item.Title,
			CapitalSources: []string{},
			Sectors:        []string{},
		}
		if r.Item.PublishedAt != nil {
			e.Date = r.Item.PublishedAt.UTC()
		}
		if a.TransactionType != nil {
			e.TransactionType = string(*a.TransactionType)
		}
		for _, c := range a.CapitalSources {
			e.CapitalSources = append(e.CapitalSources, string(c))
		}
		for _, s := range a.Sectors {
			e.Sectors = append(e.Sectors, string(s))
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ItemID > entries[j].ItemID
	})
	return entries
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
