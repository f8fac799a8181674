package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"hireline/internal/config"
	"hireline/internal/engine"
	"hireline/internal/lock"
	"hireline/internal/migrate"
	"hireline/internal/notify"
)

func TestBootstrapDefaults(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	rt, err := Bootstrap(ctx, Options{Workspace: t.TempDir(), LogWriter: &logs})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close(ctx)

	if rt.Dialect != "sqlite" {
		t.Fatalf("expected sqlite dialect, got %s", rt.Dialect)
	}
	if _, ok := rt.Engine.Notifier.(notify.Nop); !ok {
		t.Fatalf("expected no-op notifier without webhook, got %T", rt.Engine.Notifier)
	}
	if _, ok := rt.Engine.Locker.(*lock.Local); !ok {
		t.Fatalf("expected local guard without redis, got %T", rt.Engine.Locker)
	}
	v, err := migrate.Version(ctx, rt.DB)
	if err != nil || v == 0 {
		t.Fatalf("expected migrated schema, got %d %v", v, err)
	}
}

func TestBootstrapReadsWorkspaceConfigAndOverrides(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	yml := "pooling:\n  system_actor: Pool Bot\n  bulk_reason: closing\nlog:\n  level: warn\n  format: json\n"
	if err := os.WriteFile(config.Path(workspace), []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	rt, err := Bootstrap(ctx, Options{
		Workspace: workspace,
		LogWriter: &bytes.Buffer{},
		Overrides: Overrides{LogLevel: "debug", JWTSecret: " s3cret "},
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close(ctx)

	if rt.Config.Pooling.SystemActor != "Pool Bot" || rt.Config.Log.Format != "json" {
		t.Fatalf("file values not applied: %+v", rt.Config)
	}
	if rt.Config.Log.Level != "debug" || rt.Config.Auth.JWTSecret != "s3cret" {
		t.Fatalf("overrides not applied: %+v", rt.Config)
	}
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	_, err := Bootstrap(context.Background(), Options{
		Workspace: t.TempDir(),
		LogWriter: &bytes.Buffer{},
		Overrides: Overrides{DBDriver: "mysql"},
	})
	if err == nil || !strings.Contains(err.Error(), "driver") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestCloseDrainsWebhookNotifications(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	ctx := context.Background()
	rt, err := Bootstrap(ctx, Options{
		Workspace: t.TempDir(),
		LogWriter: &bytes.Buffer{},
		Overrides: Overrides{WebhookURL: hook.URL},
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, ok := rt.Engine.Notifier.(*notify.Dispatcher); !ok {
		t.Fatalf("expected dispatcher notifier, got %T", rt.Engine.Notifier)
	}
	jo, err := rt.Engine.CreateJobOrder(ctx, engine.JobOrderInput{Title: "Ops"}, "tester")
	if err != nil {
		t.Fatalf("create job order: %v", err)
	}
	if _, err := rt.Engine.SetJobOrderStatus(ctx, jo.ID, "closed", "tester"); err != nil {
		t.Fatalf("close job order: %v", err)
	}
	if err := rt.Close(ctx); err != nil {
		t.Fatalf("close runtime: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 delivered notifications, got %d", got)
	}
}
