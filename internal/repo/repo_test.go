package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"

	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/migrate"
)

const ts = "2024-03-01T10:00:00Z"

func newTestRepo(t *testing.T) (Repo, context.Context) {
	t.Helper()
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(ctx, conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn, Dialect: dialect}, ctx
}

func seed(t *testing.T, r Repo, ctx context.Context) (domain.JobOrder, domain.Candidate, domain.Application) {
	t.Helper()
	jo := domain.JobOrder{ID: "jo-1", Number: "JO-0001", Title: "Backend", Quantity: 1, Status: domain.JobOrderOpen, CreatedAt: ts, UpdatedAt: ts}
	if err := r.InsertJobOrder(ctx, nil, jo); err != nil {
		t.Fatalf("insert job order: %v", err)
	}
	c := domain.Candidate{ID: "c-1", FullName: "Ada", CreatedAt: ts, UpdatedAt: ts}
	if err := r.InsertCandidate(ctx, nil, c); err != nil {
		t.Fatalf("insert candidate: %v", err)
	}
	score := 71.5
	app := domain.Application{ID: "a-1", CandidateID: c.ID, JobOrderID: jo.ID, PipelineStatus: domain.StatusOffer,
		MatchScore: &score, Remarks: "strong", CreatedAt: ts, UpdatedAt: ts}
	if err := r.InsertApplication(ctx, nil, app); err != nil {
		t.Fatalf("insert application: %v", err)
	}
	return jo, c, app
}

func TestInClauseByDialect(t *testing.T) {
	clause, args := Repo{Dialect: db.SQLite}.inClause("id", []string{"a", "b", "c"})
	if clause != "id IN (?,?,?)" || len(args) != 3 || args[2] != "c" {
		t.Fatalf("unexpected sqlite clause %q %v", clause, args)
	}
	clause, args = Repo{Dialect: db.Postgres}.inClause("id", []string{"a", "b"})
	if clause != "id = ANY(?)" || len(args) != 1 {
		t.Fatalf("unexpected postgres clause %q %v", clause, args)
	}
	if _, ok := args[0].(*pq.StringArray); !ok {
		t.Fatalf("postgres arg should be a string array, got %T", args[0])
	}
}

func TestUpsertApplicationReusesPairRow(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, c, app := seed(t, r, ctx)

	id, err := r.UpsertApplication(ctx, nil, domain.Application{
		ID: "a-2", CandidateID: c.ID, JobOrderID: app.JobOrderID, PipelineStatus: domain.StatusHRInterview,
		MatchScore: app.MatchScore, Remarks: app.Remarks, CreatedAt: ts, UpdatedAt: "2024-03-05T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id != app.ID {
		t.Fatalf("expected existing row %s, got %s", app.ID, id)
	}
	got, err := r.GetApplication(ctx, nil, app.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PipelineStatus != domain.StatusHRInterview || got.UpdatedAt != "2024-03-05T10:00:00Z" {
		t.Fatalf("upsert did not update the row: %+v", got)
	}
	if _, err := r.GetApplication(ctx, nil, "a-2", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no second row, got %v", err)
	}
}

func TestInsertPooledCandidateConflict(t *testing.T) {
	r, ctx := newTestRepo(t)
	jo, c, app := seed(t, r, ctx)
	p := domain.PooledCandidate{ID: "p-1", CandidateID: c.ID, OriginalApplicationID: app.ID, OriginalJobOrderID: jo.ID,
		PooledFromStatus: domain.StatusOffer, PooledBy: "hr", PooledAt: ts, CreatedAt: ts, UpdatedAt: ts}
	inserted, err := r.InsertPooledCandidate(ctx, nil, p, false)
	if err != nil || !inserted {
		t.Fatalf("first insert: %v %v", inserted, err)
	}
	p.ID = "p-2"
	inserted, err = r.InsertPooledCandidate(ctx, nil, p, true)
	if err != nil || inserted {
		t.Fatalf("idempotent insert should report no row: %v %v", inserted, err)
	}
	if _, err := r.InsertPooledCandidate(ctx, nil, p, false); err == nil {
		t.Fatalf("strict insert should hit the unique constraint")
	}
	got, err := r.GetPooledByApplication(ctx, nil, app.ID)
	if err != nil || got.ID != "p-1" || got.Disposition != domain.DispositionAvailable {
		t.Fatalf("unexpected pool record %+v %v", got, err)
	}
	joined, err := r.GetPooledCandidate(ctx, nil, "p-1", false)
	if err != nil || joined.CandidateName != "Ada" || joined.OriginalJobTitle != "Backend" {
		t.Fatalf("unexpected joined record %+v %v", joined, err)
	}
}

func TestBulkUpdateSkipsActivated(t *testing.T) {
	r, ctx := newTestRepo(t)
	jo, c, app := seed(t, r, ctx)
	other := domain.Candidate{ID: "c-2", FullName: "Ben", CreatedAt: ts, UpdatedAt: ts}
	if err := r.InsertCandidate(ctx, nil, other); err != nil {
		t.Fatalf("insert candidate: %v", err)
	}
	app2 := domain.Application{ID: "a-3", CandidateID: other.ID, JobOrderID: jo.ID, PipelineStatus: domain.StatusHRInterview, CreatedAt: ts, UpdatedAt: ts}
	if err := r.InsertApplication(ctx, nil, app2); err != nil {
		t.Fatalf("insert application: %v", err)
	}
	for _, p := range []domain.PooledCandidate{
		{ID: "p-1", CandidateID: c.ID, OriginalApplicationID: app.ID, OriginalJobOrderID: jo.ID, PooledFromStatus: domain.StatusOffer, PooledBy: "hr", PooledAt: ts, CreatedAt: ts, UpdatedAt: ts},
		{ID: "p-2", CandidateID: other.ID, OriginalApplicationID: app2.ID, OriginalJobOrderID: jo.ID, PooledFromStatus: domain.StatusHRInterview, PooledBy: "hr", PooledAt: ts, CreatedAt: ts, UpdatedAt: ts},
	} {
		if _, err := r.InsertPooledCandidate(ctx, nil, p, false); err != nil {
			t.Fatalf("insert pool record: %v", err)
		}
	}
	if err := r.MarkPooledActivated(ctx, nil, "p-1", app.ID, jo.ID, ts); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := r.MarkPooledActivated(ctx, nil, "p-1", app.ID, jo.ID, ts); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second activation must not match, got %v", err)
	}

	notes := "quarterly review"
	n, err := r.BulkUpdatePooledDisposition(ctx, nil, []string{"p-1", "p-2", "p-x"}, domain.DispositionOnHold, &notes, "2024-03-02T00:00:00Z")
	if err != nil || n != 1 {
		t.Fatalf("expected one updated row, got %d %v", n, err)
	}
	counts, err := r.CountPooledByDisposition(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[domain.DispositionActivated] != 1 || counts[domain.DispositionOnHold] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	disp, err := r.PooledDispositions(ctx, nil, []string{"p-1", "p-2", "p-x"})
	if err != nil || len(disp) != 2 || disp["p-2"] != domain.DispositionOnHold {
		t.Fatalf("unexpected dispositions %v %v", disp, err)
	}
}

func TestLastTimelineEntryBreaksTiesByID(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, c, app := seed(t, r, ctx)
	from := domain.StatusHRInterview
	for _, to := range []domain.PipelineStatus{domain.StatusHRInterview, domain.StatusTechInterview} {
		e := domain.TimelineEntry{ApplicationID: app.ID, CandidateID: c.ID, ToStatus: to, ChangedDate: ts, ChangedBy: "hr"}
		if to == domain.StatusTechInterview {
			e.FromStatus = &from
		}
		if _, err := r.InsertTimelineEntry(ctx, nil, e); err != nil {
			t.Fatalf("insert timeline: %v", err)
		}
	}
	last, err := r.LastTimelineEntry(ctx, nil, app.ID)
	if err != nil {
		t.Fatalf("last entry: %v", err)
	}
	if last.ToStatus != domain.StatusTechInterview {
		t.Fatalf("expected the later insert to win the tie, got %+v", last)
	}
	if _, err := r.LastTimelineEntry(ctx, nil, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
