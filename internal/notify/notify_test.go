package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"hireline/internal/domain"
)

func TestActionForStatusChange(t *testing.T) {
	cases := []struct {
		from, to domain.JobOrderStatus
		want     Action
	}{
		{domain.JobOrderOpen, domain.JobOrderClosed, ActionDelete},
		{domain.JobOrderClosed, domain.JobOrderOpen, ActionUpdate},
		{domain.JobOrderOpen, domain.JobOrderOnHold, ActionUpdate},
		{domain.JobOrderOnHold, domain.JobOrderPooling, ActionUpdate},
		{domain.JobOrderPooling, domain.JobOrderArchived, ActionDelete},
		{domain.JobOrderClosed, domain.JobOrderArchived, ActionUpdate},
		{domain.JobOrderClosed, domain.JobOrderClosed, ActionUpdate},
		{domain.JobOrderOpen, domain.JobOrderOpen, ActionUpdate},
	}
	for _, tc := range cases {
		if got := ActionForStatusChange(tc.from, tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %s want %s", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestWebhookSend(t *testing.T) {
	var got webhookBody
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := Webhook{URL: srv.URL, Secret: "s3cret", Now: func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }}
	jo := domain.JobOrder{ID: "jo-1", Number: "JO-0001", Title: "Backend Engineer", Status: domain.JobOrderClosed}
	if err := hook.Send(context.Background(), ActionDelete, jo); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Action != ActionDelete || got.JobOrder.ID != "jo-1" || got.SentAt != "2024-03-01T00:00:00Z" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if headers.Get("X-Hireline-Secret") != "s3cret" || headers.Get("X-Hireline-Action") != "delete" {
		t.Fatalf("missing headers: %v", headers)
	}
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	err := Webhook{URL: srv.URL}.Send(context.Background(), ActionUpdate, domain.JobOrder{ID: "jo-1"})
	if err == nil {
		t.Fatalf("expected error for 502")
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Action
	err  error
}

func (r *recordingSender) Send(_ context.Context, action Action, _ domain.JobOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, action)
	return r.err
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 8, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Dispatch(ActionCreate, domain.JobOrder{ID: "a"})
	d.Dispatch(ActionUpdate, domain.JobOrder{ID: "b"})
	d.Dispatch(ActionDelete, domain.JobOrder{ID: "c"})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(sender.sent))
	}
	// after close dispatch is a logged no-op
	d.Dispatch(ActionUpdate, domain.JobOrder{ID: "d"})
	if len(sender.sent) != 3 {
		t.Fatalf("delivery after close")
	}
}

func TestDispatcherSwallowsSenderErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("unreachable")}
	d := NewDispatcher(sender, 1, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Dispatch(ActionUpdate, domain.JobOrder{ID: "a"})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one attempt, got %d", len(sender.sent))
	}
}
