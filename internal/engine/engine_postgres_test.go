package engine_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/migrate"
	"hireline/internal/repo"
)

func TestPoolingFlowPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("HIRELINE_POSTGRES_DSN_INTEGRATION")
	if dsn == "" {
		t.Skip("HIRELINE_POSTGRES_DSN_INTEGRATION not set")
	}
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, db.Config{Driver: "postgres", DSN: dsn})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, dialect, config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	src, err := eng.CreateJobOrder(ctx, engine.JobOrderInput{Title: "pg source"}, "it")
	if err != nil {
		t.Fatalf("create job order: %v", err)
	}
	dst, err := eng.CreateJobOrder(ctx, engine.JobOrderInput{Title: "pg target"}, "it")
	if err != nil {
		t.Fatalf("create job order: %v", err)
	}
	s := 87.0
	a, err := eng.IngestCandidate(ctx, engine.IngestInput{FullName: "pg a", JobOrderID: src.ID, MatchScore: &s}, "it")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	b, err := eng.IngestCandidate(ctx, engine.IngestInput{FullName: "pg b", JobOrderID: src.ID}, "it")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := eng.TransitionApplication(ctx, b.Application.ID, domain.StatusHired, "it"); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if _, err := eng.SetJobOrderStatus(ctx, src.ID, domain.JobOrderPooling, "it"); err != nil {
		t.Fatalf("set pooling: %v", err)
	}
	eng.WaitBackground()

	recs, err := eng.ListPooledCandidates(ctx, repo.PoolFilter{JobOrderID: src.ID})
	if err != nil || len(recs) != 1 || recs[0].OriginalApplicationID != a.Application.ID {
		t.Fatalf("expected one pool record for a, got %+v %v", recs, err)
	}
	act, err := eng.ActivatePooledCandidate(ctx, recs[0].ID, engine.ActivateOptions{TargetJobOrderID: dst.ID, Actor: "it"})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if act.Application.MatchScore == nil || *act.Application.MatchScore != 87 {
		t.Fatalf("carry-over lost: %+v", act.Application)
	}
	res, err := eng.BulkSetPooledDisposition(ctx, []string{recs[0].ID}, domain.DispositionArchived, nil, "it")
	if err != nil {
		t.Fatalf("bulk disposition: %v", err)
	}
	if res.Updated != 0 || len(res.Skipped) != 1 {
		t.Fatalf("activated record must be skipped: %+v", res)
	}
}
