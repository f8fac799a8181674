package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/observability"
	"hireline/internal/repo"
)

// durationDays is the whole days spent in the state being left: measured
// from the latest timeline entry, else from applied_date, else unknown.
func (e Engine) durationDays(ctx context.Context, tx *sql.Tx, app domain.Application, now time.Time) (*int, error) {
	last, err := e.Repo.LastTimelineEntry(ctx, tx, app.ID)
	switch {
	case err == nil:
		if d, ok := wholeDaysSince(last.ChangedDate, now); ok {
			return d, nil
		}
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}
	if app.AppliedDate != nil {
		if d, ok := wholeDaysSince(*app.AppliedDate, now); ok {
			return d, nil
		}
	}
	return nil, nil
}

// applyTransition moves app to status inside tx: status write first, then
// the timeline entry. The caller holds the row lock and commits.
func (e Engine) applyTransition(ctx context.Context, tx *sql.Tx, app domain.Application, to domain.PipelineStatus, actor, notes string, now time.Time) (domain.Application, error) {
	ts := formatTS(now)
	if err := e.Repo.UpdateApplicationStatus(ctx, tx, app.ID, to, ts); err != nil {
		return app, fmt.Errorf("update application status: %w", err)
	}
	if to == domain.StatusHired && app.PipelineStatus != domain.StatusHired {
		if err := e.Repo.IncrementHiredCount(ctx, tx, app.JobOrderID, ts); err != nil {
			return app, notFound(err, "job order", app.JobOrderID)
		}
	}
	duration, err := e.durationDays(ctx, tx, app, now)
	if err != nil {
		return app, fmt.Errorf("compute duration: %w", err)
	}
	from := app.PipelineStatus
	entry := domain.TimelineEntry{
		ApplicationID: app.ID,
		CandidateID:   app.CandidateID,
		FromStatus:    &from,
		ToStatus:      to,
		ChangedDate:   ts,
		DurationDays:  duration,
		Notes:         notes,
		ChangedBy:     actor,
	}
	if _, err := e.Repo.InsertTimelineEntry(ctx, tx, entry); err != nil {
		return app, fmt.Errorf("insert timeline entry: %w", err)
	}
	app.PipelineStatus = to
	app.StatusChangedDate = &ts
	app.UpdatedAt = ts
	app.DurationDays = duration
	return app, nil
}

// TransitionApplication moves an application to another pipeline stage.
// Setting the current status again is a successful no-op. hired and
// rejected end the funnel and cannot be left. Pooling and reactivation
// have their own operations and are rejected here.
func (e Engine) TransitionApplication(ctx context.Context, applicationID string, to domain.PipelineStatus, actor string) (app domain.Application, err error) {
	ctx, span := observability.StartSpan(ctx, "application.transition",
		attribute.String("application_id", applicationID), attribute.String("to_status", string(to)))
	defer func() { observability.EndSpan(span, err) }()

	if !to.Valid() {
		return domain.Application{}, &ValidationError{Field: "pipeline_status", Value: string(to), Reason: "unknown pipeline status"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	app, err = e.Repo.GetApplication(ctx, tx, applicationID, true)
	if err != nil {
		return domain.Application{}, notFound(err, "application", applicationID)
	}
	if app.PipelineStatus == to {
		return app, nil
	}
	if to == domain.StatusPooled {
		return domain.Application{}, invalidState("application", applicationID, "use the pool operation to pool an application")
	}
	if app.PipelineStatus == domain.StatusPooled {
		return domain.Application{}, invalidState("application", applicationID, "application is pooled; activate its pool record instead")
	}
	if app.PipelineStatus.IsTerminal() {
		return domain.Application{}, invalidState("application", applicationID, "application is %s; the status is final", app.PipelineStatus)
	}
	from := app.PipelineStatus
	app, err = e.applyTransition(ctx, tx, app, to, actor, "", e.now())
	if err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	payload := events.Payload{"from": from, "to": to, "job_order_id": app.JobOrderID, "candidate_id": app.CandidateID}
	if app.DurationDays != nil {
		payload["duration_days"] = *app.DurationDays
	}
	e.activity(ctx, events.TypeApplicationTransition, "application", app.ID, actor, payload)
	return app, nil
}
