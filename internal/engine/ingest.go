package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/observability"
	"hireline/internal/repo"
)

// IngestInput is what CV ingestion hands over: a person and the job order
// they applied to. Set CandidateID to link an existing candidate instead.
type IngestInput struct {
	CandidateID    string
	FullName       string
	Email          string
	Phone          string
	Source         string
	JobOrderID     string
	MatchScore     *float64
	EmploymentType string
	Remarks        string
	AppliedAt      *time.Time
}

type IngestResult struct {
	Candidate   domain.Candidate   `json:"candidate"`
	Application domain.Application `json:"application"`
}

// IngestCandidate seeds the pipeline with an hr_interview application and
// its first timeline entry.
func (e Engine) IngestCandidate(ctx context.Context, in IngestInput, actor string) (res IngestResult, err error) {
	ctx, span := observability.StartSpan(ctx, "candidate.ingest", attribute.String("job_order_id", in.JobOrderID))
	defer func() { observability.EndSpan(span, err) }()

	if in.JobOrderID == "" {
		return res, &ValidationError{Field: "job_order_id", Reason: "is required"}
	}
	in.FullName = strings.TrimSpace(in.FullName)
	if in.CandidateID == "" && in.FullName == "" {
		return res, &ValidationError{Field: "full_name", Reason: "is required"}
	}
	if in.MatchScore != nil && (*in.MatchScore < 0 || *in.MatchScore > 100) {
		return res, &ValidationError{Field: "match_score", Reason: "must be within [0,100]"}
	}
	actor = actorOr(actor, "anonymous")
	now := e.now()
	ts := formatTS(now)
	applied := ts
	if in.AppliedAt != nil {
		if in.AppliedAt.After(now) {
			return res, &ValidationError{Field: "applied_at", Value: formatTS(*in.AppliedAt), Reason: "is in the future"}
		}
		applied = formatTS(*in.AppliedAt)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetJobOrder(ctx, tx, in.JobOrderID); err != nil {
		return res, notFound(err, "job order", in.JobOrderID)
	}
	var cand domain.Candidate
	if in.CandidateID != "" {
		cand, err = e.Repo.GetCandidate(ctx, tx, in.CandidateID)
		if err != nil {
			return res, notFound(err, "candidate", in.CandidateID)
		}
		existing, err := e.Repo.FindApplication(ctx, tx, cand.ID, in.JobOrderID)
		switch {
		case err == nil:
			return res, invalidState("candidate", cand.ID, "already linked to job order %s by application %s (%s)",
				in.JobOrderID, existing.ID, existing.PipelineStatus)
		case !errors.Is(err, repo.ErrNotFound):
			return res, err
		}
	} else {
		cand = domain.Candidate{
			ID:        uuid.NewString(),
			FullName:  in.FullName,
			Email:     strings.TrimSpace(in.Email),
			Phone:     strings.TrimSpace(in.Phone),
			Source:    in.Source,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := e.Repo.InsertCandidate(ctx, tx, cand); err != nil {
			return res, err
		}
	}
	app := domain.Application{
		ID:                uuid.NewString(),
		CandidateID:       cand.ID,
		JobOrderID:        in.JobOrderID,
		PipelineStatus:    domain.StatusHRInterview,
		MatchScore:        in.MatchScore,
		EmploymentType:    in.EmploymentType,
		Remarks:           in.Remarks,
		AppliedDate:       &applied,
		StatusChangedDate: &ts,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if err := e.Repo.InsertApplication(ctx, tx, app); err != nil {
		return res, err
	}
	duration, err := e.durationDays(ctx, tx, app, now)
	if err != nil {
		return res, err
	}
	if _, err := e.Repo.InsertTimelineEntry(ctx, tx, domain.TimelineEntry{
		ApplicationID: app.ID,
		CandidateID:   cand.ID,
		ToStatus:      domain.StatusHRInterview,
		ChangedDate:   ts,
		DurationDays:  duration,
		Notes:         "Application received",
		ChangedBy:     actor,
	}); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	app.DurationDays = duration
	e.activity(ctx, events.TypeCandidateIngested, "candidate", cand.ID, actor, events.Payload{
		"application_id": app.ID,
		"job_order_id":   in.JobOrderID,
		"source":         cand.Source,
	})
	return IngestResult{Candidate: cand, Application: app}, nil
}
