// Package observability provides logging, metrics, and formatted CLI output.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/mattn/go-runewidth"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// pad fits s to exactly width display cells, truncating with "..." when needed.
func pad(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "..."), width)
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSummary prints labelled values in a box, e.g. a batch report.
func (p *Printer) PrintSummary(title string, pairs [][2]string) {
	labelWidth := 0
	for _, kv := range pairs {
		labelWidth = max(labelWidth, runewidth.StringWidth(kv[0]))
	}

	var sb strings.Builder
	for i, kv := range pairs {
		sb.WriteString(runewidth.FillRight(kv[0]+":", labelWidth+1))
		sb.WriteString(" ")
		sb.WriteString(kv[1])
		if i < len(pairs)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(title, sb.String())
}

// PrintTable prints rows under headers with columns aligned by display width.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(p.out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(headers)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range rows {
		writeRow(row)
	}
}

// PrintQueueStats outputs the pipeline queue counters.
func (p *Printer) PrintQueueStats(s *db.QueueStats) {
	if s == nil {
		return
	}
	p.PrintSummary("QUEUE STATUS", [][2]string{
		{"Total items", fmt.Sprint(s.Total)},
		{"New", fmt.Sprint(s.New)},
		{"Scraped", fmt.Sprint(s.Scraped)},
		{"Failed", fmt.Sprint(s.Failed)},
		{"With AI summary", fmt.Sprint(s.WithExtraction)},
		{"Approved", fmt.Sprint(s.Approved)},
		{"Rejected", fmt.Sprint(s.Rejected)},
		{"Pending triage", fmt.Sprint(s.Pending)},
	})
}

// PrintOriginStats outputs per-origin item counts as a table.
func (p *Printer) PrintOriginStats(stats []db.OriginStats) {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		origin := s.Origin
		if origin == "" {
			origin = "(none)"
		}
		rows = append(rows, []string{origin, fmt.Sprint(s.Items), fmt.Sprint(s.Approved)})
	}
	p.PrintTable([]string{"ORIGIN", "ITEMS", "APPROVED"}, rows)
}

// PrintItems lists items with their status, newest first.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintItems(items []db.Item) {
	count := min(len(items), maxItemsToShow)
	rows := make([][]string, 0, count)
	for _, it := range items[:count] {
		published := ""
		if it.PublishedAt != nil {
			published = it.PublishedAt.Format("2006-01-02")
		}
		rows = append(rows, []string{
			fmt.Sprint(it.ID), string(it.Status), published, runewidth.Truncate(it.Title, 50, "..."),
		})
	}
	p.PrintTable([]string{"ID", "STATUS", "PUBLISHED", "TITLE"}, rows)

	if len(items) > maxItemsToShow {
		fmt.Fprintf(p.out, "... and %d more\n", len(items)-maxItemsToShow)
	}
}
