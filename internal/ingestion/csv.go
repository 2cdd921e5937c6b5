package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
)

var importDateLayouts = []string{time.RFC3339, "2006-01-02"}

// ImportCSV reads candidates from a CSV with a header row. The url column is
// required; title, summary, and published are optional.
func ImportCSV(r io.Reader, origin string) ([]db.Candidate, error) {
	if origin == "" {
		origin = OriginImport
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("import file is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["url"]; !ok {
		return nil, fmt.Errorf("import file has no url column")
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var candidates []db.Candidate
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		c := db.Candidate{URL: field(rec, "url"), Title: field(rec, "title"), Origin: origin}
		if c.URL == "" {
			continue
		}
		if c.Title == "" {
			c.Title = placeholderTitle("Imported", c.URL)
		}
		if s := field(rec, "summary"); s != "" {
			c.Summary = &s
		}
		if p := field(rec, "published"); p != "" {
			t, err := parseImportDate(p)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			c.PublishedAt = &t
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func parseImportDate(s string) (time.Time, error) {
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised published date %q", s)
}
