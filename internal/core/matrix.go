package core

import (
	"slices"
)

// CompletionMatrix maps each period to the record that fills each checklist
// slot. A missing entry means the item was not submitted in that period.
// Values are immutable: With and Without return new matrices.
type CompletionMatrix struct {
	cells map[Period]map[ChecklistItem]UploadRecord
}

// MatrixCell is one checklist slot within a period.
type MatrixCell struct {
	Item   ChecklistItem
	Record *UploadRecord
}

// MatrixRow is one period ready for display.
type MatrixRow struct {
	Period Period
	Label  string
	Cells  []MatrixCell
}

// Group folds records into a completion matrix. When two records share a
// period and item the one processed last wins, so callers should pass
// records earliest first.
func Group(cal Calendar, records []UploadRecord) CompletionMatrix {
	m := CompletionMatrix{cells: make(map[Period]map[ChecklistItem]UploadRecord)}
	for _, r := range records {
		p := cal.PeriodOf(r.Timestamp)
		slots, ok := m.cells[p]
		if !ok {
			slots = make(map[ChecklistItem]UploadRecord)
			m.cells[p] = slots
		}
		slots[r.ItemType] = r
	}
	return m
}

// Len returns the number of periods with at least one record.
func (m CompletionMatrix) Len() int {
	return len(m.cells)
}

// Periods returns the periods present, most recent first.
func (m CompletionMatrix) Periods() []Period {
	out := make([]Period, 0, len(m.cells))
	for p := range m.cells {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Period) int { return b.Compare(a) })
	return out
}

// Record returns the record filling item in period p.
func (m CompletionMatrix) Record(p Period, item ChecklistItem) (UploadRecord, bool) {
	r, ok := m.cells[p][item]
	return r, ok
}

// ByLabel returns a copy of the matrix keyed by period label.
func (m CompletionMatrix) ByLabel() map[string]map[ChecklistItem]UploadRecord {
	out := make(map[string]map[ChecklistItem]UploadRecord, len(m.cells))
	for p, slots := range m.cells {
		inner := make(map[ChecklistItem]UploadRecord, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		out[p.Label()] = inner
	}
	return out
}

// With returns a new matrix in which r fills its slot.
func (m CompletionMatrix) With(cal Calendar, r UploadRecord) CompletionMatrix {
	p := cal.PeriodOf(r.Timestamp)
	out := m.shallowCopy()
	slots := make(map[ChecklistItem]UploadRecord, len(m.cells[p])+1)
	for k, v := range m.cells[p] {
		slots[k] = v
	}
	slots[r.ItemType] = r
	out.cells[p] = slots
	return out
}

// Without returns a new matrix with r's slot emptied, provided the slot
// still holds r. A slot already refilled by a newer record is left alone.
func (m CompletionMatrix) Without(cal Calendar, r UploadRecord) CompletionMatrix {
	p := cal.PeriodOf(r.Timestamp)
	cur, ok := m.cells[p][r.ItemType]
	if !ok || cur.ID != r.ID {
		return m
	}
	out := m.shallowCopy()
	slots := make(map[ChecklistItem]UploadRecord, len(m.cells[p]))
	for k, v := range m.cells[p] {
		if k != r.ItemType {
			slots[k] = v
		}
	}
	if len(slots) == 0 {
		delete(out.cells, p)
	} else {
		out.cells[p] = slots
	}
	return out
}

// Rows lays the matrix out for display: periods most recent first, cells in
// checklist order. Records for items outside the checklist are not shown.
func (m CompletionMatrix) Rows(checklist Checklist) []MatrixRow {
	periods := m.Periods()
	rows := make([]MatrixRow, 0, len(periods))
	for _, p := range periods {
		row := MatrixRow{Period: p, Label: p.Label(), Cells: make([]MatrixCell, 0, checklist.Len())}
		for _, item := range checklist.items {
			cell := MatrixCell{Item: item}
			if r, ok := m.cells[p][item]; ok {
				cell.Record = &r
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func (m CompletionMatrix) shallowCopy() CompletionMatrix {
	out := CompletionMatrix{cells: make(map[Period]map[ChecklistItem]UploadRecord, len(m.cells)+1)}
	for p, slots := range m.cells {
		out.cells[p] = slots
	}
	return out
}
