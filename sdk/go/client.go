package hirelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal hireline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorName is sent as X-Actor-Name when no bearer token is set.
	ActorName  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// JobOrder represents the API job order model.
type JobOrder struct {
	ID         string `json:"id"`
	Number     string `json:"jo_number"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Quantity   int    `json:"quantity"`
	HiredCount int    `json:"hired_count"`
	UpdatedAt  string `json:"updated_at"`
}

// JobOrderStatusResult is returned by SetJobOrderStatus.
type JobOrderStatusResult struct {
	JobOrder       JobOrder `json:"job_order"`
	PreviousStatus string   `json:"previous_status"`
	Notification   string   `json:"notification"`
	PoolingStarted bool     `json:"pooling_started"`
}

// Application represents a candidate's application to a job order (partial).
type Application struct {
	ID                string   `json:"id"`
	CandidateID       string   `json:"candidate_id"`
	JobOrderID        string   `json:"job_order_id"`
	PipelineStatus    string   `json:"pipeline_status"`
	MatchScore        *float64 `json:"match_score,omitempty"`
	StatusChangedDate *string  `json:"status_changed_date,omitempty"`
	DurationDays      *int     `json:"duration_days,omitempty"`
}

// Candidate represents a person (partial).
type Candidate struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

// IngestRequest seeds a job order pipeline with a candidate.
type IngestRequest struct {
	CandidateID string   `json:"candidate_id,omitempty"`
	FullName    string   `json:"full_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Source      string   `json:"source,omitempty"`
	JobOrderID  string   `json:"job_order_id"`
	MatchScore  *float64 `json:"match_score,omitempty"`
}

type IngestResult struct {
	Candidate   Candidate   `json:"candidate"`
	Application Application `json:"application"`
}

// TimelineEntry is one stage change.
type TimelineEntry struct {
	ID           int64   `json:"id"`
	FromStatus   *string `json:"from_status"`
	ToStatus     string  `json:"to_status"`
	ChangedDate  string  `json:"changed_date"`
	DurationDays *int    `json:"duration_days"`
	ChangedBy    string  `json:"changed_by"`
}

// PooledCandidate represents a talent pool record (partial).
type PooledCandidate struct {
	ID                    string  `json:"id"`
	CandidateID           string  `json:"candidate_id"`
	CandidateName         string  `json:"candidate_name"`
	OriginalApplicationID string  `json:"original_application_id"`
	OriginalJobOrderID    string  `json:"original_job_order_id"`
	PooledFromStatus      string  `json:"pooled_from_status"`
	PoolReason            string  `json:"pool_reason"`
	Notes                 string  `json:"notes"`
	PooledBy              string  `json:"pooled_by"`
	Disposition           string  `json:"disposition"`
	NewApplicationID      *string `json:"new_application_id"`
	NewJobOrderID         *string `json:"new_job_order_id"`
}

// ActivateRequest names the target job order; an empty Status means
// hr_interview.
type ActivateRequest struct {
	JobOrderID string `json:"job_order_id"`
	Status     string `json:"status,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type ActivationResult struct {
	PooledCandidate PooledCandidate `json:"pooled_candidate"`
	Application     Application     `json:"application"`
}

type BulkDispositionResult struct {
	Updated int64    `json:"updated"`
	Skipped []string `json:"skipped_ids"`
	Missing []string `json:"missing_ids"`
}

// PoolFilter narrows ListPooledCandidates.
type PoolFilter struct {
	Disposition string
	JobOrderID  string
	CandidateID string
	Limit       int
}

// Activity is an audit log entry.
type Activity struct {
	ID              int64  `json:"id"`
	TS              string `json:"ts"`
	ActivityType    string `json:"activity_type"`
	EntityType      string `json:"entity_type"`
	EntityID        string `json:"entity_id"`
	PerformedByName string `json:"performed_by_name"`
	Details         string `json:"details_json"`
}

// APIError wraps non-2xx responses. Code carries the envelope code such as
// not_found, invalid_state or validation_failed.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateJobOrder opens a job order.
func (c *Client) CreateJobOrder(ctx context.Context, title string, quantity int) (JobOrder, error) {
	body := map[string]any{"title": title}
	if quantity > 0 {
		body["quantity"] = quantity
	}
	var resp JobOrder
	err := c.do(ctx, http.MethodPost, "job-orders", body, &resp)
	return resp, err
}

// SetJobOrderStatus changes a job order's status.
func (c *Client) SetJobOrderStatus(ctx context.Context, id, status string) (JobOrderStatusResult, error) {
	var resp JobOrderStatusResult
	err := c.do(ctx, http.MethodPatch, "job-orders/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp, err
}

// IngestCandidate adds a candidate to a job order pipeline.
func (c *Client) IngestCandidate(ctx context.Context, req IngestRequest) (IngestResult, error) {
	var resp IngestResult
	err := c.do(ctx, http.MethodPost, "candidates", req, &resp)
	return resp, err
}

// MoveApplication transitions an application to another stage.
func (c *Client) MoveApplication(ctx context.Context, id, status string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPatch, "applications/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp, err
}

// PoolApplication moves an application into the talent pool.
func (c *Client) PoolApplication(ctx context.Context, id, reason, notes string) (PooledCandidate, error) {
	var resp PooledCandidate
	body := map[string]any{"reason": reason, "notes": notes}
	err := c.do(ctx, http.MethodPost, "applications/"+url.PathEscape(id)+"/pool", body, &resp)
	return resp, err
}

// Timeline returns the stage history of an application.
func (c *Client) Timeline(ctx context.Context, applicationID string) ([]TimelineEntry, error) {
	var resp struct {
		Items []TimelineEntry `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "applications/"+url.PathEscape(applicationID)+"/timeline", nil, &resp)
	return resp.Items, err
}

// ListPooledCandidates lists talent pool records.
func (c *Client) ListPooledCandidates(ctx context.Context, f PoolFilter) ([]PooledCandidate, error) {
	q := url.Values{}
	if f.Disposition != "" {
		q.Set("disposition", f.Disposition)
	}
	if f.JobOrderID != "" {
		q.Set("job_order_id", f.JobOrderID)
	}
	if f.CandidateID != "" {
		q.Set("candidate_id", f.CandidateID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	endpoint := "pooled-candidates"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []PooledCandidate `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// SetDisposition updates a pool record. A nil notes leaves notes unchanged.
func (c *Client) SetDisposition(ctx context.Context, id, disposition string, notes *string) (PooledCandidate, error) {
	body := map[string]any{}
	if disposition != "" {
		body["disposition"] = disposition
	}
	if notes != nil {
		body["notes"] = *notes
	}
	var resp PooledCandidate
	err := c.do(ctx, http.MethodPatch, "pooled-candidates/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// Activate brings a pooled candidate back into a pipeline.
func (c *Client) Activate(ctx context.Context, id string, req ActivateRequest) (ActivationResult, error) {
	var resp ActivationResult
	err := c.do(ctx, http.MethodPost, "pooled-candidates/"+url.PathEscape(id)+"/activate", req, &resp)
	return resp, err
}

// BulkDisposition applies one disposition to many pool records.
func (c *Client) BulkDisposition(ctx context.Context, ids []string, disposition string) (BulkDispositionResult, error) {
	var resp BulkDispositionResult
	body := map[string]any{"ids": ids, "disposition": disposition}
	err := c.do(ctx, http.MethodPost, "pooled-candidates/bulk-action", body, &resp)
	return resp, err
}

// Activity returns recent audit entries for an entity, newest first.
func (c *Client) Activity(ctx context.Context, entityType, entityID string, limit int) ([]Activity, error) {
	q := url.Values{}
	if entityType != "" {
		q.Set("entity_type", entityType)
	}
	if entityID != "" {
		q.Set("entity_id", entityID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := "activity"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Activity `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorName != "":
		req.Header.Set("X-Actor-Name", c.ActorName)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
