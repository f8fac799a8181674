package engine

import (
	"context"

	"hireline/internal/domain"
	"hireline/internal/repo"
)

func (e Engine) GetJobOrder(ctx context.Context, id string) (domain.JobOrder, error) {
	jo, err := e.Repo.GetJobOrder(ctx, nil, id)
	return jo, notFound(err, "job order", id)
}

func (e Engine) ListJobOrders(ctx context.Context, status domain.JobOrderStatus) ([]domain.JobOrder, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Value: string(status), Reason: "unknown job order status"}
	}
	return e.Repo.ListJobOrders(ctx, string(status))
}

func (e Engine) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, nil, id)
	return c, notFound(err, "candidate", id)
}

func (e Engine) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	app, err := e.Repo.GetApplication(ctx, nil, id, false)
	return app, notFound(err, "application", id)
}

// ListApplications filters by job order and/or status. A named job order
// must exist.
func (e Engine) ListApplications(ctx context.Context, f repo.ApplicationFilter) ([]domain.Application, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{Field: "pipeline_status", Value: string(f.Status), Reason: "unknown pipeline status"}
	}
	if f.JobOrderID != "" {
		if _, err := e.GetJobOrder(ctx, f.JobOrderID); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListApplications(ctx, f)
}

func (e Engine) ListTimeline(ctx context.Context, applicationID string) ([]domain.TimelineEntry, error) {
	if _, err := e.GetApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return e.Repo.ListTimeline(ctx, applicationID)
}

func (e Engine) GetPooledCandidate(ctx context.Context, id string) (domain.PooledCandidate, error) {
	p, err := e.Repo.GetPooledCandidate(ctx, nil, id, false)
	return p, notFound(err, "pooled candidate", id)
}

func (e Engine) ListPooledCandidates(ctx context.Context, f repo.PoolFilter) ([]domain.PooledCandidate, error) {
	if f.Disposition != "" && !f.Disposition.Valid() {
		return nil, &ValidationError{Field: "disposition", Value: string(f.Disposition), Reason: "unknown disposition"}
	}
	return e.Repo.ListPooledCandidates(ctx, f)
}

// PoolSummary counts pool records per disposition, including zero counts.
func (e Engine) PoolSummary(ctx context.Context) (map[domain.Disposition]int, error) {
	counts, err := e.Repo.CountPooledByDisposition(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range domain.Dispositions {
		if _, ok := counts[d]; !ok {
			counts[d] = 0
		}
	}
	return counts, nil
}

func (e Engine) ListActivity(ctx context.Context, f repo.ActivityFilter) ([]domain.Activity, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return e.Repo.ListActivity(ctx, f)
}
