package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/notify"
	"hireline/internal/observability"
)

type JobOrderInput struct {
	Title       string
	Description string
	Department  string
	Level       string
	Quantity    int
}

func (e Engine) CreateJobOrder(ctx context.Context, in JobOrderInput, actor string) (jo domain.JobOrder, err error) {
	ctx, span := observability.StartSpan(ctx, "job_order.create")
	defer func() { observability.EndSpan(span, err) }()

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return jo, &ValidationError{Field: "title", Reason: "is required"}
	}
	if in.Quantity < 0 {
		return jo, &ValidationError{Field: "quantity", Reason: "must be >= 0"}
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return jo, err
	}
	defer tx.Rollback()
	number, err := e.Repo.NextJobOrderNumber(ctx, tx)
	if err != nil {
		return jo, err
	}
	ts := formatTS(e.now())
	jo = domain.JobOrder{
		ID:          uuid.NewString(),
		Number:      number,
		Title:       in.Title,
		Description: in.Description,
		Department:  in.Department,
		Level:       in.Level,
		Quantity:    in.Quantity,
		Status:      domain.JobOrderOpen,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertJobOrder(ctx, tx, jo); err != nil {
		return domain.JobOrder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobOrder{}, err
	}
	e.notify(notify.ActionCreate, jo)
	e.activity(ctx, events.TypeJobOrderCreated, "job_order", jo.ID, actorOr(actor, "anonymous"), events.Payload{
		"jo_number": jo.Number,
		"title":     jo.Title,
		"quantity":  jo.Quantity,
	})
	return jo, nil
}

type JobOrderStatusResult struct {
	JobOrder       domain.JobOrder       `json:"job_order"`
	PreviousStatus domain.JobOrderStatus `json:"previous_status"`
	Notification   notify.Action         `json:"notification"`
	// PoolingStarted is set when the bulk-pool cascade was scheduled.
	PoolingStarted bool `json:"pooling_started"`
}

// SetJobOrderStatus writes the new status and then fires the side effects:
// a notification classified by the active/inactive edge, and on entry into
// pooling the bulk-pool cascade. Neither side effect can fail the call.
func (e Engine) SetJobOrderStatus(ctx context.Context, jobOrderID string, status domain.JobOrderStatus, actor string) (res JobOrderStatusResult, err error) {
	ctx, span := observability.StartSpan(ctx, "job_order.set_status",
		attribute.String("job_order_id", jobOrderID), attribute.String("status", string(status)))
	defer func() { observability.EndSpan(span, err) }()

	if !status.Valid() {
		return res, &ValidationError{Field: "status", Value: string(status), Reason: "unknown job order status"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()
	jo, err := e.Repo.GetJobOrder(ctx, tx, jobOrderID)
	if err != nil {
		return res, notFound(err, "job order", jobOrderID)
	}
	previous := jo.Status
	ts := formatTS(e.now())
	if err := e.Repo.UpdateJobOrderStatus(ctx, tx, jobOrderID, status, ts); err != nil {
		return res, notFound(err, "job order", jobOrderID)
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	jo.Status = status
	jo.UpdatedAt = ts

	action := notify.ActionForStatusChange(previous, status)
	e.notify(action, jo)
	actor = actorOr(actor, "anonymous")
	e.activity(ctx, events.TypeJobOrderStatusChanged, "job_order", jobOrderID, actor, events.Payload{
		"from":         previous,
		"to":           status,
		"notification": action,
	})
	res = JobOrderStatusResult{JobOrder: jo, PreviousStatus: previous, Notification: action}
	if status == domain.JobOrderPooling {
		e.startBulkPool(ctx, jobOrderID)
		res.PoolingStarted = true
	}
	return res, nil
}

func (e Engine) startBulkPool(ctx context.Context, jobOrderID string) {
	run := func(ctx context.Context) error {
		_, err := e.BulkPoolJobOrder(ctx, jobOrderID)
		return err
	}
	if e.Tasks != nil {
		e.Tasks.Go(ctx, "bulk-pool "+jobOrderID, run)
		return
	}
	if err := run(context.WithoutCancel(ctx)); err != nil {
		e.logger().Error("bulk pool cascade failed", slog.String("job_order_id", jobOrderID), slog.String("error", err.Error()))
	}
}

// WaitBackground blocks until scheduled cascades have finished.
func (e Engine) WaitBackground() {
	if e.Tasks != nil {
		e.Tasks.Wait()
	}
}
