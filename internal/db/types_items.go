package db

import "time"

// ItemStatus is the stored lifecycle status of a candidate item.
type ItemStatus string

// Item statuses. Pending triage is derived, never stored.
const (
	StatusNew     ItemStatus = "new"
	StatusScraped ItemStatus = "scraped"
	StatusFailed  ItemStatus = "failed"
)

// Valid reports whether s is a known stored status.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusNew, StatusScraped, StatusFailed:
		return true
	}
	return false
}

// Candidate is the ingestion input tuple for a new item.
type Candidate struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Summary     *string    `json:"summary,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Origin      string     `json:"origin"`
}

// Item represents a candidate item record
type Item struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Summary      *string    `json:"summary,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Origin       string     `json:"origin"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	Status       ItemStatus `json:"status"`
}

// ItemFilter holds optional filters for listing items
type ItemFilter struct {
	Status ItemStatus
	Origin string
	Limit  int
	Offset int
}

// ExtractionJob pairs an item with the scraped text the extractor should read.
type ExtractionJob struct {
	Item Item
	Text string
}
