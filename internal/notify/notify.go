package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hireline/internal/domain"
)

// Action tells the external system of record what happened to a job order.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ActionForStatusChange is delete when a job order leaves the active set and
// update for every other status write, including same-status writes.
func ActionForStatusChange(from, to domain.JobOrderStatus) Action {
	if from.IsActive() && !to.IsActive() {
		return ActionDelete
	}
	return ActionUpdate
}

// Sender delivers one notification synchronously.
type Sender interface {
	Send(ctx context.Context, action Action, jo domain.JobOrder) error
}

// Notifier accepts notifications without blocking the caller.
type Notifier interface {
	Dispatch(action Action, jo domain.JobOrder)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Dispatch(Action, domain.JobOrder) {}

func (Nop) Send(context.Context, Action, domain.JobOrder) error { return nil }

const defaultWebhookTimeout = 5 * time.Second

// Webhook posts job order notifications as JSON.
type Webhook struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Client  *http.Client
	Now     func() time.Time
}

type webhookBody struct {
	Action   Action          `json:"action"`
	JobOrder domain.JobOrder `json:"job_order"`
	SentAt   string          `json:"sent_at"`
}

func (w Webhook) Send(ctx context.Context, action Action, jo domain.JobOrder) error {
	if strings.TrimSpace(w.URL) == "" {
		return nil
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	data, err := json.Marshal(webhookBody{Action: action, JobOrder: jo, SentAt: now().UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hireline-Action", string(action))
	req.Header.Set("X-Hireline-Job-Order", jo.ID)
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Hireline-Secret", w.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
