package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/repo"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

type idPath struct {
	ID string `path:"id"`
}

func (h handlers) registerJobOrders(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job-order",
		Method:        http.MethodPost,
		Path:          "/job-orders",
		Summary:       "Create job order",
		Tags:          []string{"job-orders"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateJobOrderRequest `json:"body"`
	}) (*struct {
		Body domain.JobOrder `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		jo, err := h.e.CreateJobOrder(ctx, engine.JobOrderInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Department:  input.Body.Department,
			Level:       input.Body.Level,
			Quantity:    input.Body.Quantity,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.JobOrder `json:"body"`
		}{Body: jo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-job-orders",
		Method:      http.MethodGet,
		Path:        "/job-orders",
		Summary:     "List job orders",
		Tags:        []string{"job-orders"},
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body JobOrderList `json:"body"`
	}, error) {
		items, err := h.e.ListJobOrders(ctx, domain.JobOrderStatus(input.Status))
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body JobOrderList `json:"body"`
		}{Body: JobOrderList{Items: orEmpty(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-order",
		Method:      http.MethodGet,
		Path:        "/job-orders/{id}",
		Summary:     "Get job order",
		Tags:        []string{"job-orders"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.JobOrder `json:"body"`
	}, error) {
		jo, err := h.e.GetJobOrder(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.JobOrder `json:"body"`
		}{Body: jo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-job-order-status",
		Method:      http.MethodPatch,
		Path:        "/job-orders/{id}/status",
		Summary:     "Change job order status",
		Description: "Moving a job order into pooling schedules the bulk-pool cascade for its active applications.",
		Tags:        []string{"job-orders"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*struct {
		Body engine.JobOrderStatusResult `json:"body"`
	}, error) {
		res, err := h.e.SetJobOrderStatus(ctx, input.ID, domain.JobOrderStatus(input.Body.Status), actorFromContext(ctx))
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body engine.JobOrderStatusResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-job-order-applications",
		Method:      http.MethodGet,
		Path:        "/job-orders/{id}/applications",
		Summary:     "List applications of a job order",
		Tags:        []string{"job-orders", "applications"},
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Status string `query:"status"`
	}) (*struct {
		Body ApplicationList `json:"body"`
	}, error) {
		items, err := h.e.ListApplications(ctx, repo.ApplicationFilter{
			JobOrderID: input.ID,
			Status:     domain.PipelineStatus(input.Status),
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body ApplicationList `json:"body"`
		}{Body: ApplicationList{Items: orEmpty(items)}}, nil
	})
}

func (h handlers) registerCandidates(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "ingest-candidate",
		Method:        http.MethodPost,
		Path:          "/candidates",
		Summary:       "Ingest a candidate into a job order pipeline",
		Tags:          []string{"candidates"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body IngestCandidateRequest `json:"body"`
	}) (*struct {
		Body engine.IngestResult `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		b := input.Body
		res, err := h.e.IngestCandidate(ctx, engine.IngestInput{
			CandidateID:    b.CandidateID,
			FullName:       b.FullName,
			Email:          b.Email,
			Phone:          b.Phone,
			Source:         b.Source,
			JobOrderID:     b.JobOrderID,
			MatchScore:     b.MatchScore,
			EmploymentType: b.EmploymentType,
			Remarks:        b.Remarks,
			AppliedAt:      b.AppliedAt,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body engine.IngestResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-candidate",
		Method:      http.MethodGet,
		Path:        "/candidates/{id}",
		Summary:     "Get candidate",
		Tags:        []string{"candidates"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Candidate `json:"body"`
	}, error) {
		c, err := h.e.GetCandidate(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.Candidate `json:"body"`
		}{Body: c}, nil
	})
}

func (h handlers) registerApplications(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Get application",
		Tags:        []string{"applications"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		app, err := h.e.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-application",
		Method:      http.MethodPatch,
		Path:        "/applications/{id}/status",
		Summary:     "Move an application to another pipeline stage",
		Tags:        []string{"applications"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		app, err := h.e.TransitionApplication(ctx, input.ID, domain.PipelineStatus(input.Body.Status), actorFromContext(ctx))
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "pool-application",
		Method:        http.MethodPost,
		Path:          "/applications/{id}/pool",
		Summary:       "Move an application into the talent pool",
		Tags:          []string{"applications", "pool"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body *PoolApplicationRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body domain.PooledCandidate `json:"body"`
	}, error) {
		opts := engine.PoolOptions{PooledBy: actorFromContext(ctx)}
		if input.Body != nil {
			opts.Reason = input.Body.Reason
			opts.Notes = input.Body.Notes
		}
		rec, err := h.e.PoolApplication(ctx, input.ID, opts)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.PooledCandidate `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-application-timeline",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/timeline",
		Summary:     "Chronological status history of an application",
		Tags:        []string{"applications"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body TimelineList `json:"body"`
	}, error) {
		items, err := h.e.ListTimeline(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body TimelineList `json:"body"`
		}{Body: TimelineList{Items: orEmpty(items)}}, nil
	})
}

func (h handlers) registerPool(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pooled-candidates",
		Method:      http.MethodGet,
		Path:        "/pooled-candidates",
		Summary:     "List talent pool records",
		Tags:        []string{"pool"},
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Disposition string `query:"disposition"`
		JobOrderID  string `query:"job_order_id"`
		CandidateID string `query:"candidate_id"`
		Limit       int    `query:"limit" minimum:"0"`
	}) (*struct {
		Body PooledCandidateList `json:"body"`
	}, error) {
		items, err := h.e.ListPooledCandidates(ctx, repo.PoolFilter{
			Disposition: domain.Disposition(input.Disposition),
			JobOrderID:  input.JobOrderID,
			CandidateID: input.CandidateID,
			Limit:       input.Limit,
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body PooledCandidateList `json:"body"`
		}{Body: PooledCandidateList{Items: orEmpty(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pool-summary",
		Method:      http.MethodGet,
		Path:        "/pooled-candidates/summary",
		Summary:     "Count pool records per disposition",
		Tags:        []string{"pool"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PoolSummary `json:"body"`
	}, error) {
		counts, err := h.e.PoolSummary(ctx)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		out := PoolSummary{Counts: map[string]int{}}
		for d, n := range counts {
			out.Counts[string(d)] = n
			out.Total += n
		}
		return &struct {
			Body PoolSummary `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pooled-candidate",
		Method:      http.MethodGet,
		Path:        "/pooled-candidates/{id}",
		Summary:     "Get talent pool record",
		Tags:        []string{"pool"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.PooledCandidate `json:"body"`
	}, error) {
		rec, err := h.e.GetPooledCandidate(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.PooledCandidate `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-pooled-candidate",
		Method:      http.MethodPatch,
		Path:        "/pooled-candidates/{id}",
		Summary:     "Set disposition and notes of a pool record",
		Tags:        []string{"pool"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdatePooledRequest `json:"body"`
	}) (*struct {
		Body domain.PooledCandidate `json:"body"`
	}, error) {
		if input.Body.Disposition == "" && input.Body.Notes == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "disposition or notes required", nil)
		}
		rec, err := h.e.SetPooledDisposition(ctx, input.ID, engine.DispositionUpdate{
			Disposition: domain.Disposition(input.Body.Disposition),
			Notes:       input.Body.Notes,
			Actor:       actorFromContext(ctx),
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body domain.PooledCandidate `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-pooled-candidate",
		Method:      http.MethodPost,
		Path:        "/pooled-candidates/{id}/activate",
		Summary:     "Bring a pooled candidate back into a pipeline",
		Tags:        []string{"pool"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ActivateRequest `json:"body"`
	}) (*struct {
		Body engine.ActivationResult `json:"body"`
	}, error) {
		opts := engine.ActivateOptions{
			TargetJobOrderID: input.Body.JobOrderID,
			TargetStatus:     domain.PipelineStatus(input.Body.Status),
			Notes:            input.Body.Notes,
			Actor:            actorFromContext(ctx),
		}
		res, err := h.e.ActivatePooledCandidate(ctx, input.ID, opts)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body engine.ActivationResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-pooled-disposition",
		Method:      http.MethodPost,
		Path:        "/pooled-candidates/bulk-action",
		Summary:     "Set one disposition on many pool records",
		Tags:        []string{"pool"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		Body BulkActionRequest `json:"body"`
	}) (*struct {
		Body engine.BulkDispositionResult `json:"body"`
	}, error) {
		res, err := h.e.BulkSetPooledDisposition(ctx, input.Body.IDs, domain.Disposition(input.Body.Disposition),
			input.Body.Notes, actorFromContext(ctx))
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		res.Skipped = orEmpty(res.Skipped)
		res.Missing = orEmpty(res.Missing)
		return &struct {
			Body engine.BulkDispositionResult `json:"body"`
		}{Body: res}, nil
	})
}

func (h handlers) registerActivity(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Recent audit log entries, newest first",
		Tags:        []string{"activity"},
	}, func(ctx context.Context, input *struct {
		EntityType string `query:"entity_type" enum:"job_order,candidate,application,pooled_candidate"`
		EntityID   string `query:"entity_id"`
		Type       string `query:"type"`
		Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body ActivityList `json:"body"`
	}, error) {
		items, err := h.e.ListActivity(ctx, repo.ActivityFilter{
			EntityType: input.EntityType,
			EntityID:   input.EntityID,
			Type:       input.Type,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body ActivityList `json:"body"`
		}{Body: ActivityList{Items: orEmpty(items)}}, nil
	})
}
