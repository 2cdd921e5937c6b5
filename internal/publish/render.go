package publish

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/deal-tracker/internal/types"
)

// Output file names.
const (
	JSONFile = "deals.json"
	CSVFile  = "deals.csv"
	HTMLFile = "index.html"
)

// csvHeader is the column layout of the exported spreadsheet.
var csvHeader = []string{
	"Date", "Company", "Investment Amount", "Transaction Type", "Capital Sources",
	"Sector", "Location", "Summary", "Source URL",
}

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var indexTmpl = template.Must(template.New("index.html.tmpl").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"join": func(s []string) string { return strings.Join(s, types.ListSeparator) },
}).ParseFS(templateFS, "templates/index.html.tmpl"))

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render produces every artifact for the entries. Output depends only on the
// entries, so the same store state always renders identical bytes.
func Render(entries []Entry) ([]Artifact, error) {
	var jsonBuf, csvBuf, htmlBuf bytes.Buffer
	if err := WriteJSON(&jsonBuf, entries); err != nil {
		return nil, err
	}
	if err := WriteCSV(&csvBuf, entries); err != nil {
		return nil, err
	}
	if err := WriteHTML(&htmlBuf, entries); err != nil {
		return nil, err
	}
	return []Artifact{
		{Name: JSONFile, ContentType: "application/json", Data: jsonBuf.Bytes()},
		{Name: CSVFile, ContentType: "text/csv; charset=utf-8", Data: csvBuf.Bytes()},
		{Name: HTMLFile, ContentType: "text/html; charset=utf-8", Data: htmlBuf.Bytes()},
	}, nil
}

// WriteJSON writes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// WriteCSV writes entries as a spreadsheet with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Date.Format("2006-01-02"),
			e.Company,
			e.Amount,
			e.TransactionType,
			strings.Join(e.CapitalSources, types.ListSeparator),
			strings.Join(e.Sectors, types.ListSeparator),
			e.Location,
			e.Summary,
			e.SourceURL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHTML writes the index page.
func WriteHTML(w io.Writer, entries []Entry) error {
	if err := indexTmpl.Execute(w, entries); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	return nil
}

// WriteDir writes artifacts into dir, creating it if needed. It returns the
// written paths.
func WriteDir(dir string, artifacts []Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p := filepath.Join(dir, a.Name)
		if err := os.WriteFile(p, a.Data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
