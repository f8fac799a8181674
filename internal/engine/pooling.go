package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/observability"
	"hireline/internal/repo"
)

type PoolOptions struct {
	Reason   string
	Notes    string
	PooledBy string
}

func poolNote(reason string) string {
	if reason == "" {
		return "Moved to talent pool"
	}
	return "Moved to talent pool: " + reason
}

// poolInTx transitions app to pooled and writes its pool record. With
// idempotent set an existing record for the application is kept.
func (e Engine) poolInTx(ctx context.Context, tx *sql.Tx, app domain.Application, opts PoolOptions, idempotent bool, now time.Time) (string, bool, error) {
	ts := formatTS(now)
	pooledFrom := app.PipelineStatus
	if _, err := e.applyTransition(ctx, tx, app, domain.StatusPooled, opts.PooledBy, poolNote(opts.Reason), now); err != nil {
		return "", false, err
	}
	rec := domain.PooledCandidate{
		ID:                    uuid.NewString(),
		CandidateID:           app.CandidateID,
		OriginalApplicationID: app.ID,
		OriginalJobOrderID:    app.JobOrderID,
		PooledFromStatus:      pooledFrom,
		PoolReason:            opts.Reason,
		Notes:                 opts.Notes,
		PooledBy:              opts.PooledBy,
		PooledAt:              ts,
		Disposition:           domain.DispositionAvailable,
		CreatedAt:             ts,
		UpdatedAt:             ts,
	}
	inserted, err := e.Repo.InsertPooledCandidate(ctx, tx, rec, idempotent)
	if err != nil {
		return "", false, fmt.Errorf("insert pool record: %w", err)
	}
	return rec.ID, inserted, nil
}

// PoolApplication moves one application into the talent pool and records
// its lineage. Pooling an already pooled application is rejected.
func (e Engine) PoolApplication(ctx context.Context, applicationID string, opts PoolOptions) (rec domain.PooledCandidate, err error) {
	ctx, span := observability.StartSpan(ctx, "application.pool", attribute.String("application_id", applicationID))
	defer func() { observability.EndSpan(span, err) }()

	opts.PooledBy = actorOr(opts.PooledBy, "anonymous")
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PooledCandidate{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplication(ctx, tx, applicationID, true)
	if err != nil {
		return domain.PooledCandidate{}, notFound(err, "application", applicationID)
	}
	if app.PipelineStatus == domain.StatusPooled {
		return domain.PooledCandidate{}, invalidState("application", applicationID, "already pooled")
	}
	existing, err := e.Repo.GetPooledByApplication(ctx, tx, applicationID)
	switch {
	case err == nil:
		return domain.PooledCandidate{}, invalidState("application", applicationID,
			"already has pool record %s with disposition %s", existing.ID, existing.Disposition)
	case !errors.Is(err, repo.ErrNotFound):
		return domain.PooledCandidate{}, err
	}
	pooledFrom := app.PipelineStatus
	poolID, _, err := e.poolInTx(ctx, tx, app, opts, false, e.now())
	if err != nil {
		return domain.PooledCandidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PooledCandidate{}, err
	}
	e.activity(ctx, events.TypeApplicationPooled, "application", applicationID, opts.PooledBy, events.Payload{
		"pooled_candidate_id": poolID,
		"pooled_from_status":  pooledFrom,
		"job_order_id":        app.JobOrderID,
		"candidate_id":        app.CandidateID,
		"reason":              opts.Reason,
	})
	return e.GetPooledCandidate(ctx, poolID)
}

type BulkPoolFailure struct {
	ApplicationID string `json:"application_id"`
	Error         string `json:"error"`
}

type BulkPoolResult struct {
	JobOrderID string            `json:"job_order_id"`
	Pooled     []string          `json:"pooled"`
	Skipped    []string          `json:"skipped"`
	Failed     []BulkPoolFailure `json:"failed"`
	// Guarded is set when another pass for the same job order was running.
	Guarded bool `json:"guarded,omitempty"`
}

// maxBulkPasses bounds how often a cascade re-scans for applications that
// arrived while it was running.
const maxBulkPasses = 3

// BulkPoolJobOrder pools every active application of a job order, one
// transaction per application. A failing application is logged and the
// pass moves on. Applications that show up mid-pass are picked up by a
// re-scan.
func (e Engine) BulkPoolJobOrder(ctx context.Context, jobOrderID string) (res BulkPoolResult, err error) {
	ctx, span := observability.StartSpan(ctx, "job_order.bulk_pool", attribute.String("job_order_id", jobOrderID))
	defer func() { observability.EndSpan(span, err) }()

	res = BulkPoolResult{JobOrderID: jobOrderID}
	if _, err := e.Repo.GetJobOrder(ctx, nil, jobOrderID); err != nil {
		return res, notFound(err, "job order", jobOrderID)
	}
	cfg := e.config()
	if e.Locker != nil {
		release, ok, err := e.Locker.TryAcquire(ctx, "bulk-pool:"+jobOrderID, cfg.GuardTTL())
		if err != nil {
			return res, fmt.Errorf("acquire bulk-pool guard: %w", err)
		}
		if !ok {
			e.logger().Warn("bulk pool skipped: another pass holds the guard",
				slog.String("job_order_id", jobOrderID))
			res.Guarded = true
			return res, nil
		}
		defer release()
	}
	opts := PoolOptions{Reason: cfg.Pooling.BulkReason, PooledBy: cfg.Pooling.SystemActor}
	seen := make(map[string]struct{})
	for pass := 0; pass < maxBulkPasses; pass++ {
		ids, err := e.Repo.PoolableApplicationIDs(ctx, jobOrderID)
		if err != nil {
			return res, err
		}
		fresh := ids[:0]
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			break
		}
		for _, id := range fresh {
			pooled, err := e.bulkPoolOne(ctx, id, opts)
			switch {
			case err != nil:
				e.logger().Warn("bulk pool application failed",
					slog.String("job_order_id", jobOrderID),
					slog.String("application_id", id),
					slog.String("error", err.Error()))
				res.Failed = append(res.Failed, BulkPoolFailure{ApplicationID: id, Error: err.Error()})
			case pooled:
				res.Pooled = append(res.Pooled, id)
			default:
				res.Skipped = append(res.Skipped, id)
			}
		}
	}
	e.activity(ctx, events.TypeJobOrderBulkPooled, "job_order", jobOrderID, opts.PooledBy, events.Payload{
		"pooled":  len(res.Pooled),
		"skipped": len(res.Skipped),
		"failed":  len(res.Failed),
	})
	e.logger().Info("bulk pool finished",
		slog.String("job_order_id", jobOrderID),
		slog.Int("pooled", len(res.Pooled)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}

// bulkPoolOne re-reads the application under lock; one that left the
// active set since the scan is skipped. An application that already has a
// pool record is not pooled again, since the new state would have no
// lineage to activate from.
func (e Engine) bulkPoolOne(ctx context.Context, applicationID string, opts PoolOptions) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	app, err := e.Repo.GetApplication(ctx, tx, applicationID, true)
	if err != nil {
		return false, notFound(err, "application", applicationID)
	}
	if !app.PipelineStatus.IsActive() {
		return false, nil
	}
	pooledFrom := app.PipelineStatus
	poolID, inserted, err := e.poolInTx(ctx, tx, app, opts, true, e.now())
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, invalidState("application", applicationID, "already has a pool record; left in %s", pooledFrom)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	e.activity(ctx, events.TypeApplicationPooled, "application", applicationID, opts.PooledBy, events.Payload{
		"pooled_candidate_id": poolID,
		"pooled_from_status":  pooledFrom,
		"job_order_id":        app.JobOrderID,
		"candidate_id":        app.CandidateID,
		"reason":              opts.Reason,
	})
	return true, nil
}

type ActivateOptions struct {
	TargetJobOrderID string
	// TargetStatus defaults to hr_interview.
	TargetStatus domain.PipelineStatus
	Actor        string
	Notes        string
}

type ActivationResult struct {
	PooledCandidate domain.PooledCandidate `json:"pooled_candidate"`
	Application     domain.Application     `json:"application"`
}

// ActivatePooledCandidate turns an available pool record into an active
// application on the target job order, carrying over the original review
// context. The original application is left untouched, so a job order that
// still holds the original of a pool record cannot be the target.
func (e Engine) ActivatePooledCandidate(ctx context.Context, pooledID string, opts ActivateOptions) (res ActivationResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pooled_candidate.activate", attribute.String("pooled_candidate_id", pooledID))
	defer func() { observability.EndSpan(span, err) }()

	target := opts.TargetStatus
	if target == "" {
		target = domain.StatusHRInterview
	}
	if !target.Valid() || target == domain.StatusPooled {
		return res, &ValidationError{Field: "target_status", Value: string(target), Reason: "must be a non-pooled pipeline status"}
	}
	targetJO := strings.TrimSpace(opts.TargetJobOrderID)
	if targetJO == "" {
		return res, &ValidationError{Field: "target_job_order_id", Reason: "is required"}
	}
	actor := actorOr(opts.Actor, "anonymous")

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	rec, err := e.Repo.GetPooledCandidate(ctx, tx, pooledID, true)
	if err != nil {
		return res, notFound(err, "pooled candidate", pooledID)
	}
	if rec.Disposition != domain.DispositionAvailable {
		return res, invalidState("pooled candidate", pooledID, "disposition is %s; only available records can be activated", rec.Disposition)
	}
	if _, err := e.Repo.GetJobOrder(ctx, tx, targetJO); err != nil {
		return res, notFound(err, "job order", targetJO)
	}
	active, err := e.Repo.ActiveApplicationFor(ctx, tx, rec.CandidateID, targetJO)
	switch {
	case err == nil:
		return res, invalidState("pooled candidate", pooledID,
			"candidate already has an active application %s (%s) for job order %s", active.ID, active.PipelineStatus, targetJO)
	case !errors.Is(err, repo.ErrNotFound):
		return res, err
	}
	if err := e.ensureNotHistory(ctx, tx, pooledID, rec.CandidateID, targetJO); err != nil {
		return res, err
	}
	orig, err := e.Repo.GetApplication(ctx, tx, rec.OriginalApplicationID, false)
	if err != nil {
		return res, notFound(err, "application", rec.OriginalApplicationID)
	}

	now := e.now()
	ts := formatTS(now)
	newApp := domain.Application{
		ID:                uuid.NewString(),
		CandidateID:       rec.CandidateID,
		JobOrderID:        targetJO,
		PipelineStatus:    target,
		MatchScore:        orig.MatchScore,
		EmploymentType:    orig.EmploymentType,
		Remarks:           orig.Remarks,
		AppliedDate:       &ts,
		StatusChangedDate: &ts,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	// duration is measured before the upsert rewrites a reused row
	duration, err := e.activationDuration(ctx, tx, rec.CandidateID, targetJO, now)
	if err != nil {
		return res, err
	}
	newID, err := e.Repo.UpsertApplication(ctx, tx, newApp)
	if err != nil {
		return res, fmt.Errorf("upsert application: %w", err)
	}
	if target == domain.StatusHired {
		if err := e.Repo.IncrementHiredCount(ctx, tx, targetJO, ts); err != nil {
			return res, notFound(err, "job order", targetJO)
		}
	}
	if err := e.Repo.MarkPooledActivated(ctx, tx, pooledID, newID, targetJO, ts); err != nil {
		return res, notFound(err, "pooled candidate", pooledID)
	}
	pooled := domain.StatusPooled
	notes := fmt.Sprintf("Activated from talent pool record %s", pooledID)
	if opts.Notes != "" {
		notes += ": " + opts.Notes
	}
	if _, err := e.Repo.InsertTimelineEntry(ctx, tx, domain.TimelineEntry{
		ApplicationID: newID,
		CandidateID:   rec.CandidateID,
		FromStatus:    &pooled,
		ToStatus:      target,
		ChangedDate:   ts,
		DurationDays:  duration,
		Notes:         notes,
		ChangedBy:     actor,
	}); err != nil {
		return res, fmt.Errorf("insert timeline entry: %w", err)
	}
	app, err := e.Repo.GetApplication(ctx, tx, newID, false)
	if err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	app.DurationDays = duration
	e.activity(ctx, events.TypePooledActivated, "pooled_candidate", pooledID, actor, events.Payload{
		"new_application_id":      newID,
		"new_job_order_id":        targetJO,
		"original_application_id": rec.OriginalApplicationID,
		"target_status":           target,
	})
	rec, err = e.GetPooledCandidate(ctx, pooledID)
	if err != nil {
		return res, err
	}
	return ActivationResult{PooledCandidate: rec, Application: app}, nil
}

// ensureNotHistory rejects a target whose (candidate, job order) row is the
// original application of a pool record: the upsert would rewrite it.
func (e Engine) ensureNotHistory(ctx context.Context, tx *sql.Tx, pooledID, candidateID, jobOrderID string) error {
	existing, err := e.Repo.FindApplication(ctx, tx, candidateID, jobOrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	held, err := e.Repo.GetPooledByApplication(ctx, tx, existing.ID)
	switch {
	case err == nil:
		return invalidState("pooled candidate", pooledID,
			"job order %s keeps pooled application %s as history of pool record %s; choose another job order",
			jobOrderID, existing.ID, held.ID)
	case errors.Is(err, repo.ErrNotFound):
		return nil
	default:
		return err
	}
}

// activationDuration applies the timeline duration rule to the row the
// upsert will land on. A brand-new application has spent zero days.
func (e Engine) activationDuration(ctx context.Context, tx *sql.Tx, candidateID, jobOrderID string, now time.Time) (*int, error) {
	existing, err := e.Repo.FindApplication(ctx, tx, candidateID, jobOrderID)
	if errors.Is(err, repo.ErrNotFound) {
		zero := 0
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	return e.durationDays(ctx, tx, existing, now)
}

type DispositionUpdate struct {
	// Disposition may be empty for a notes-only update.
	Disposition domain.Disposition
	Notes       *string
	Actor       string
}

// SetPooledDisposition curates a pool record. Activated records only
// accept notes.
func (e Engine) SetPooledDisposition(ctx context.Context, pooledID string, upd DispositionUpdate) (rec domain.PooledCandidate, err error) {
	ctx, span := observability.StartSpan(ctx, "pooled_candidate.set_disposition",
		attribute.String("pooled_candidate_id", pooledID), attribute.String("disposition", string(upd.Disposition)))
	defer func() { observability.EndSpan(span, err) }()

	if upd.Disposition == "" && upd.Notes == nil {
		return rec, &ValidationError{Field: "disposition", Reason: "disposition or notes is required"}
	}
	if upd.Disposition != "" {
		if !upd.Disposition.Valid() {
			return rec, &ValidationError{Field: "disposition", Value: string(upd.Disposition), Reason: "unknown disposition"}
		}
		if !upd.Disposition.Settable() {
			return rec, &ValidationError{Field: "disposition", Value: string(upd.Disposition), Reason: "set only by activation"}
		}
	}
	actor := actorOr(upd.Actor, "anonymous")

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rec, err
	}
	defer tx.Rollback()
	current, err := e.Repo.GetPooledCandidate(ctx, tx, pooledID, true)
	if err != nil {
		return rec, notFound(err, "pooled candidate", pooledID)
	}
	ts := formatTS(e.now())
	switch {
	case upd.Disposition == "":
		err = e.Repo.UpdatePooledNotes(ctx, tx, pooledID, *upd.Notes, ts)
	case current.Disposition == domain.DispositionActivated:
		return rec, invalidState("pooled candidate", pooledID, "record is activated; only notes can change")
	default:
		err = e.Repo.UpdatePooledDisposition(ctx, tx, pooledID, upd.Disposition, upd.Notes, ts)
	}
	if err != nil {
		return rec, notFound(err, "pooled candidate", pooledID)
	}
	if err := tx.Commit(); err != nil {
		return rec, err
	}
	payload := events.Payload{"from": current.Disposition}
	if upd.Disposition != "" {
		payload["to"] = upd.Disposition
	}
	if upd.Notes != nil {
		payload["notes"] = *upd.Notes
	}
	e.activity(ctx, events.TypePooledDisposition, "pooled_candidate", pooledID, actor, payload)
	return e.GetPooledCandidate(ctx, pooledID)
}

type BulkDispositionResult struct {
	Updated int64 `json:"updated"`
	// Skipped lists activated records, which keep their disposition.
	Skipped []string `json:"skipped_ids"`
	Missing []string `json:"missing_ids"`
}

// BulkSetPooledDisposition applies one disposition to many records in a
// single transaction.
func (e Engine) BulkSetPooledDisposition(ctx context.Context, ids []string, d domain.Disposition, notes *string, actor string) (res BulkDispositionResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pooled_candidate.bulk_disposition",
		attribute.Int("count", len(ids)), attribute.String("disposition", string(d)))
	defer func() { observability.EndSpan(span, err) }()

	if !d.Valid() {
		return res, &ValidationError{Field: "disposition", Value: string(d), Reason: "unknown disposition"}
	}
	if !d.Settable() {
		return res, &ValidationError{Field: "disposition", Value: string(d), Reason: "set only by activation"}
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return res, &ValidationError{Field: "ids", Reason: "at least one pooled candidate id is required"}
	}
	actor = actorOr(actor, "anonymous")

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()
	current, err := e.Repo.PooledDispositions(ctx, tx, ids)
	if err != nil {
		return res, err
	}
	var updatable []string
	for _, id := range ids {
		cur, ok := current[id]
		switch {
		case !ok:
			res.Missing = append(res.Missing, id)
		case cur == domain.DispositionActivated:
			res.Skipped = append(res.Skipped, id)
		default:
			updatable = append(updatable, id)
		}
	}
	res.Updated, err = e.Repo.BulkUpdatePooledDisposition(ctx, tx, updatable, d, notes, formatTS(e.now()))
	if err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	e.activity(ctx, events.TypePooledBulkDisposition, "pooled_candidate", "bulk", actor, events.Payload{
		"ids":         updatable,
		"disposition": d,
		"skipped":     res.Skipped,
		"missing":     res.Missing,
	})
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
