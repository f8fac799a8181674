package tasks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGroupRunsAndIsolatesFailures(t *testing.T) {
	var buf bytes.Buffer
	g := NewGroup(slog.New(slog.NewTextHandler(&buf, nil)))
	var ran atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	g.Go(ctx, "ok", func(ctx context.Context) error {
		ran.Add(1)
		return ctx.Err()
	})
	g.Go(ctx, "fails", func(context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	})
	g.Go(ctx, "panics", func(context.Context) error {
		ran.Add(1)
		panic("kaboom")
	})
	cancel()
	g.Wait()
	if ran.Load() != 3 {
		t.Fatalf("expected 3 tasks, got %d", ran.Load())
	}
	out := buf.String()
	if !strings.Contains(out, "task=fails") || !strings.Contains(out, "task=panics") {
		t.Fatalf("failures not logged: %s", out)
	}
	if strings.Contains(out, "task=ok") {
		t.Fatalf("detached context should not be canceled: %s", out)
	}
}
