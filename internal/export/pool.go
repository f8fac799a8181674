// Package export renders talent-pool reports as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"hireline/internal/domain"
)

const (
	SummarySheet = "Summary"
	PoolSheet    = "Talent Pool"
)

// Report is what goes into a workbook: the pool records matching the
// caller's filter plus the per-disposition counts over the whole pool.
type Report struct {
	Records     []domain.PooledCandidate
	Summary     map[domain.Disposition]int
	Filter      string
	GeneratedAt time.Time
}

var poolColumns = []struct {
	header string
	width  float64
	value  func(p domain.PooledCandidate) any
}{
	{"Pool ID", 38, func(p domain.PooledCandidate) any { return p.ID }},
	{"Candidate", 28, func(p domain.PooledCandidate) any { return p.CandidateName }},
	{"Candidate ID", 38, func(p domain.PooledCandidate) any { return p.CandidateID }},
	{"Original Job Order", 30, func(p domain.PooledCandidate) any { return p.OriginalJobTitle }},
	{"Pooled From", 18, func(p domain.PooledCandidate) any { return string(p.PooledFromStatus) }},
	{"Reason", 30, func(p domain.PooledCandidate) any { return p.PoolReason }},
	{"Pooled By", 18, func(p domain.PooledCandidate) any { return p.PooledBy }},
	{"Pooled At", 22, func(p domain.PooledCandidate) any { return p.PooledAt }},
	{"Disposition", 16, func(p domain.PooledCandidate) any { return string(p.Disposition) }},
	{"New Application", 38, func(p domain.PooledCandidate) any { return deref(p.NewApplicationID) }},
	{"Notes", 40, func(p domain.PooledCandidate) any { return p.Notes }},
}

// Build lays the report out in a fresh workbook. The caller owns Close.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(PoolSheet); err != nil {
		f.Close()
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := summarySheet(f, header, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := poolSheet(f, header, r.Records); err != nil {
		f.Close()
		return nil, fmt.Errorf("talent pool sheet: %w", err)
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook to path, appending .xlsx when missing, and
// returns the final path.
func Save(path string, r Report) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(out, r); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

func summarySheet(f *excelize.File, header int, r Report) error {
	sh := SummarySheet
	if err := f.SetColWidth(sh, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(sh, "B", "B", 40); err != nil {
		return err
	}
	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	rows := [][]any{
		{"Talent Pool Report"},
		{},
		{"Generated", generated.UTC().Format(time.RFC3339)},
		{"Filter", orDash(r.Filter)},
		{"Records in report", len(r.Records)},
		{},
		{"Disposition", "Count"},
	}
	total := 0
	for _, d := range domain.Dispositions {
		rows = append(rows, []any{string(d), r.Summary[d]})
		total += r.Summary[d]
	}
	rows = append(rows, []any{"total", total})
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sh, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, "A1", "B1", header); err != nil {
		return err
	}
	if err := f.MergeCell(sh, "A1", "B1"); err != nil {
		return err
	}
	return f.SetCellStyle(sh, "A7", "B7", header)
}

func poolSheet(f *excelize.File, header int, records []domain.PooledCandidate) error {
	sh := PoolSheet
	headers := make([]any, len(poolColumns))
	for i, c := range poolColumns {
		headers[i] = c.header
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sh, col, col, c.width); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(sh, "A1", &headers); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(poolColumns), 1)
	if err := f.SetCellStyle(sh, "A1", last, header); err != nil {
		return err
	}
	for i, p := range records {
		row := make([]any, len(poolColumns))
		for j, c := range poolColumns {
			row[j] = c.value(p)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sh, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(sh, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
