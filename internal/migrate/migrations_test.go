package migrate

import (
	"context"
	"testing"

	"hireline/internal/db"
)

func TestMigrateIsRepeatable(t *testing.T) {
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := Migrate(ctx, conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(ctx, conn, dialect); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	all, _ := loadMigrations(dialect)
	if v != all[len(all)-1].Version {
		t.Fatalf("expected version %d, got %d", all[len(all)-1].Version, v)
	}
	for _, table := range []string{"job_orders", "candidates", "candidate_job_applications", "candidate_timeline", "pooled_candidates", "activity_log"} {
		var name string
		if err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestDialectsShipSameVersions(t *testing.T) {
	lite, err := loadMigrations(db.SQLite)
	if err != nil {
		t.Fatal(err)
	}
	pg, err := loadMigrations(db.Postgres)
	if err != nil {
		t.Fatal(err)
	}
	if len(lite) != len(pg) {
		t.Fatalf("dialects diverge: %d sqlite vs %d postgres migrations", len(lite), len(pg))
	}
	for i := range lite {
		if lite[i].Version != pg[i].Version {
			t.Fatalf("version mismatch at %d: %d vs %d", i, lite[i].Version, pg[i].Version)
		}
	}
}
