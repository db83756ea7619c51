// Package sheets exports completion matrices as spreadsheet reports.
package sheets

import (
	"context"
	"time"

	"homeinspect/internal/core"
)

// ReportExporter writes one owner's report, replacing any previous export,
// and returns a reference to where it landed.
type ReportExporter interface {
	Export(ctx context.Context, r Report) (ref string, err error)
}

// Report is a completion matrix flattened for a spreadsheet: one row per
// period, newest first, one column per checklist item.
type Report struct {
	OwnerID     string
	GeneratedAt time.Time
	Items       []core.ChecklistItem
	Rows        []ReportRow
}

type ReportRow struct {
	PeriodKey string
	Label     string
	Cells     []string // public URL, or "" when the item was not submitted
}

func BuildReport(ownerID string, m core.CompletionMatrix, checklist core.Checklist, at time.Time) Report {
	r := Report{
		OwnerID:     ownerID,
		GeneratedAt: at,
		Items:       checklist.Items(),
	}
	for _, row := range m.Rows(checklist) {
		out := ReportRow{PeriodKey: row.Period.Key(), Label: row.Label}
		for _, cell := range row.Cells {
			url := ""
			if cell.Record != nil {
				url = cell.Record.PublicURL
			}
			out.Cells = append(out.Cells, url)
		}
		r.Rows = append(r.Rows, out)
	}
	return r
}

// Values renders the report as a header row followed by one row per period.
func (r Report) Values() [][]any {
	header := []any{"Period", "Key"}
	for _, item := range r.Items {
		header = append(header, string(item))
	}
	header = append(header, "Submitted")

	out := [][]any{header}
	for _, row := range r.Rows {
		line := []any{row.Label, row.PeriodKey}
		submitted := 0
		for _, c := range row.Cells {
			line = append(line, c)
			if c != "" {
				submitted++
			}
		}
		line = append(line, submitted)
		out = append(out, line)
	}
	return out
}
