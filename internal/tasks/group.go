package tasks

import (
	"context"
	"log/slog"
	"sync"
)

// Group runs fire-and-forget work after a primary operation has committed.
// Errors and panics are logged and never reach the caller that started the task.
type Group struct {
	Logger *slog.Logger
	wg     sync.WaitGroup
}

func NewGroup(logger *slog.Logger) *Group {
	return &Group{Logger: logger}
}

// Go runs fn on its own goroutine with a context detached from the
// caller's cancellation.
func (g *Group) Go(ctx context.Context, name string, fn func(context.Context) error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detached := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background task panicked", slog.String("task", name), slog.Any("panic", r))
			}
		}()
		if err := fn(detached); err != nil {
			logger.Error("background task failed", slog.String("task", name), slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every started task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
