package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"hireline/internal/domain"
)

func sampleReport() Report {
	newApp := "app-9"
	return Report{
		Records: []domain.PooledCandidate{
			{ID: "p-1", CandidateName: "Ada Lovelace", CandidateID: "c-1", OriginalJobTitle: "Backend Engineer",
				PooledFromStatus: domain.StatusOffer, PoolReason: "JO moved to pooling", PooledBy: "System",
				PooledAt: "2026-01-02T03:04:05Z", Disposition: domain.DispositionAvailable},
			{ID: "p-2", CandidateName: "Alan Turing", CandidateID: "c-2", OriginalJobTitle: "Backend Engineer",
				PooledFromStatus: domain.StatusHRInterview, PooledBy: "recruiter", PooledAt: "2026-01-03T00:00:00Z",
				Disposition: domain.DispositionActivated, NewApplicationID: &newApp},
		},
		Summary: map[domain.Disposition]int{
			domain.DispositionAvailable: 3,
			domain.DispositionActivated: 1,
		},
		Filter:      "job_order=jo-1",
		GeneratedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestWriteProducesBothSheets(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleReport()); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SummarySheet || sheets[1] != PoolSheet {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	rows, err := f.GetRows(PoolSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Pool ID" || rows[1][1] != "Ada Lovelace" || rows[2][8] != "activated" || rows[2][9] != "app-9" {
		t.Fatalf("unexpected pool rows: %v", rows)
	}
}

func TestSummaryCountsEveryDisposition(t *testing.T) {
	f, err := Build(sampleReport())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	counts := map[string]string{}
	for _, r := range rows {
		if len(r) == 2 {
			counts[r[0]] = r[1]
		}
	}
	for _, d := range domain.Dispositions {
		if _, ok := counts[string(d)]; !ok {
			t.Fatalf("missing disposition %s in summary: %v", d, rows)
		}
	}
	if counts["available"] != "3" || counts["on_hold"] != "0" || counts["total"] != "4" {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if counts["Filter"] != "job_order=jo-1" || counts["Generated"] != "2026-01-05T00:00:00Z" {
		t.Fatalf("unexpected header rows: %v", counts)
	}
}

func TestSaveAppendsExtension(t *testing.T) {
	base := filepath.Join(t.TempDir(), "pool_report")
	path, err := Save(base, Report{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != base+".xlsx" {
		t.Fatalf("expected .xlsx suffix, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}

	kept := filepath.Join(t.TempDir(), "Report.XLSX")
	path, err = Save(kept, sampleReport())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != kept {
		t.Fatalf("existing extension should be kept, got %s", path)
	}
}
