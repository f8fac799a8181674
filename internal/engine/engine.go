package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/lock"
	"hireline/internal/notify"
	"hireline/internal/repo"
	"hireline/internal/tasks"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Notifier notify.Notifier
	Locker   lock.Locker
	Tasks    *tasks.Group
	Config   *config.Config
	Logger   *slog.Logger
	Now      func() time.Time
}

// New wires an engine with in-process defaults: no notifications, a local
// bulk-pool guard and a fresh background task group.
func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config, logger *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := repo.Repo{DB: conn, Dialect: dialect}
	return Engine{
		DB:       conn,
		Repo:     r,
		Events:   events.Writer{Repo: r, Logger: logger},
		Notifier: notify.Nop{},
		Locker:   lock.NewLocal(),
		Tasks:    tasks.NewGroup(logger),
		Config:   cfg,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) config() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// activity writes an audit entry after the primary transaction committed.
func (e Engine) activity(ctx context.Context, activityType, entityType, entityID, actor string, payload events.Payload) {
	w := e.Events
	w.Now = e.now
	if w.Logger == nil {
		w.Logger = e.logger()
	}
	w.Append(ctx, activityType, entityType, entityID, actor, payload)
}

func (e Engine) notify(action notify.Action, jo domain.JobOrder) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.Dispatch(action, jo)
}

// InvalidStateError rejects an operation the entity's current state does not allow.
type InvalidStateError struct {
	Entity string
	ID     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// ValidationError rejects input outside the allowed values before any write.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func invalidState(entity, id, format string, args ...any) error {
	return &InvalidStateError{Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, repo.ErrNotFound)
	}
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// wholeDaysSince floors now-from to whole days, never below zero.
func wholeDaysSince(from string, now time.Time) (*int, bool) {
	t, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return nil, false
	}
	days := int(math.Floor(now.Sub(t).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days, true
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func actorOr(actor, fallback string) string {
	if actor == "" {
		return fallback
	}
	return actor
}
