package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"hireline/internal/domain"
	"hireline/internal/repo"
)

const (
	TypeJobOrderCreated       = "job_order.created"
	TypeJobOrderStatusChanged = "job_order.status_changed"
	TypeCandidateIngested     = "candidate.ingested"
	TypeApplicationTransition = "application.status_changed"
	TypeApplicationPooled     = "application.pooled"
	TypeJobOrderBulkPooled    = "job_order.bulk_pooled"
	TypePooledActivated       = "pooled_candidate.activated"
	TypePooledDisposition     = "pooled_candidate.disposition_changed"
	TypePooledBulkDisposition = "pooled_candidate.bulk_disposition"
)

type Payload map[string]any

// Writer appends to the activity log. Writes are best-effort: a failure
// is logged and never reaches the caller.
type Writer struct {
	Repo   repo.Repo
	Now    func() time.Time
	Logger *slog.Logger
}

func (w Writer) Append(ctx context.Context, activityType, entityType, entityID, performedBy string, payload Payload) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("activity payload not encodable", slog.String("type", activityType), slog.String("error", err.Error()))
		data = []byte("{}")
	}
	if performedBy == "" {
		performedBy = "anonymous"
	}
	a := domain.Activity{
		TS:              now().UTC().Format(time.RFC3339),
		ActivityType:    activityType,
		EntityType:      entityType,
		EntityID:        entityID,
		PerformedByName: performedBy,
		Details:         string(data),
	}
	if err := w.Repo.InsertActivity(context.WithoutCancel(ctx), a); err != nil {
		logger.Warn("activity log write failed",
			slog.String("type", activityType),
			slog.String("entity_type", entityType),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()))
	}
}
