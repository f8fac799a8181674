package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(ctx, conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(conn, dialect, config.Default(), logger)
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: auth, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			e.WaitBackground()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

func expectStatus(t *testing.T, res *http.Response, data []byte, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("status %d want %d: %s", res.StatusCode, want, string(data))
	}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope %s: %v", string(data), err)
	}
	return env.Error.Code
}

func TestPoolAndActivateOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{AllowActorHeader: true})
	defer cleanup()
	client := srv.Client()
	as := map[string]string{actorHeader: "maria"}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/job-orders", map[string]any{
		"title":    "Backend Engineer",
		"quantity": 1,
	}, as)
	expectStatus(t, res, data, http.StatusCreated)
	jo := decode[domain.JobOrder](t, data)
	if jo.Status != domain.JobOrderOpen || jo.Number == "" {
		t.Fatalf("unexpected job order: %+v", jo)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/candidates", map[string]any{
		"full_name":    "Ada Lovelace",
		"email":        "ada@example.com",
		"job_order_id": jo.ID,
		"match_score":  88.5,
	}, as)
	expectStatus(t, res, data, http.StatusCreated)
	ingested := decode[engine.IngestResult](t, data)
	appID := ingested.Application.ID

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/applications/"+appID+"/status",
		map[string]any{"status": "tech_interview"}, as)
	expectStatus(t, res, data, http.StatusOK)
	if app := decode[domain.Application](t, data); app.PipelineStatus != domain.StatusTechInterview {
		t.Fatalf("unexpected application: %+v", app)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+appID+"/pool",
		map[string]any{"reason": "no headcount", "notes": "strong systems skills"}, as)
	expectStatus(t, res, data, http.StatusCreated)
	pooled := decode[domain.PooledCandidate](t, data)
	if pooled.PooledBy != "maria" || pooled.PooledFromStatus != domain.StatusTechInterview || pooled.Disposition != domain.DispositionAvailable {
		t.Fatalf("unexpected pool record: %+v", pooled)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/pooled-candidates?disposition=available", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	if list := decode[PooledCandidateList](t, data); len(list.Items) != 1 || list.Items[0].CandidateName != "Ada Lovelace" {
		t.Fatalf("unexpected pool listing: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/pooled-candidates/"+pooled.ID+"/activate",
		map[string]any{"notes": "reopened"}, as)
	expectStatus(t, res, data, http.StatusBadRequest)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/pooled-candidates/"+pooled.ID+"/activate",
		map[string]any{"job_order_id": jo.ID}, as)
	expectStatus(t, res, data, http.StatusConflict)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/job-orders", map[string]any{"title": "Platform Engineer"}, as)
	expectStatus(t, res, data, http.StatusCreated)
	target := decode[domain.JobOrder](t, data)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/pooled-candidates/"+pooled.ID+"/activate",
		map[string]any{"job_order_id": target.ID, "notes": "reopened"}, as)
	expectStatus(t, res, data, http.StatusOK)
	activated := decode[engine.ActivationResult](t, data)
	if activated.PooledCandidate.Disposition != domain.DispositionActivated || activated.Application.PipelineStatus != domain.StatusHRInterview ||
		activated.Application.JobOrderID != target.ID || activated.Application.ID == appID {
		t.Fatalf("unexpected activation: %+v", activated)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/applications/"+activated.Application.ID+"/timeline", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	timeline := decode[TimelineList](t, data)
	last := timeline.Items[len(timeline.Items)-1]
	if last.FromStatus == nil || *last.FromStatus != domain.StatusPooled || last.ChangedBy != "maria" {
		t.Fatalf("unexpected last timeline entry: %+v", last)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/pooled-candidates/summary", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	if summary := decode[PoolSummary](t, data); summary.Counts["activated"] != 1 || summary.Total != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/activity?entity_type=pooled_candidate", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	acts := decode[ActivityList](t, data)
	if len(acts.Items) == 0 || acts.Items[0].PerformedByName != "maria" {
		t.Fatalf("unexpected activity: %s", string(data))
	}
}

func TestErrorEnvelopeMapping(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/applications/missing", nil, nil)
	expectStatus(t, res, data, http.StatusNotFound)
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("unexpected code %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/job-orders", map[string]any{"title": "QA"}, nil)
	expectStatus(t, res, data, http.StatusCreated)
	jo := decode[domain.JobOrder](t, data)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/job-orders/"+jo.ID+"/status", map[string]any{"status": "paused"}, nil)
	expectStatus(t, res, data, http.StatusUnprocessableEntity)
	if code := errorCode(t, data); code != "validation_failed" {
		t.Fatalf("unexpected code %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/candidates", map[string]any{
		"full_name": "Grace", "job_order_id": jo.ID,
	}, nil)
	expectStatus(t, res, data, http.StatusCreated)
	app := decode[engine.IngestResult](t, data).Application

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/applications/"+app.ID+"/status", map[string]any{"status": "pooled"}, nil)
	expectStatus(t, res, data, http.StatusConflict)
	if code := errorCode(t, data); code != "invalid_state" {
		t.Fatalf("unexpected code %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/pool", nil, nil)
	expectStatus(t, res, data, http.StatusCreated)
	pooled := decode[domain.PooledCandidate](t, data)
	if pooled.PooledBy != anonymousActor {
		t.Fatalf("expected anonymous actor, got %q", pooled.PooledBy)
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/pooled-candidates/"+pooled.ID, map[string]any{"disposition": "activated"}, nil)
	expectStatus(t, res, data, http.StatusUnprocessableEntity)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/pooled-candidates/"+pooled.ID, map[string]any{}, nil)
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/job-orders", nil, nil)
	expectStatus(t, res, data, http.StatusBadRequest)
	if code := errorCode(t, data); code != "bad_request" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestJobOrderPoolingCascadeOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/job-orders", map[string]any{"title": "Designer"}, nil)
	expectStatus(t, res, data, http.StatusCreated)
	jo := decode[domain.JobOrder](t, data)
	for _, name := range []string{"Ann", "Ben", "Cid"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/candidates", map[string]any{"full_name": name, "job_order_id": jo.ID}, nil)
		expectStatus(t, res, data, http.StatusCreated)
		if name == "Cid" {
			id := decode[engine.IngestResult](t, data).Application.ID
			res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/applications/"+id+"/status", map[string]any{"status": "rejected"}, nil)
			expectStatus(t, res, data, http.StatusOK)
		}
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/job-orders/"+jo.ID+"/status", map[string]any{"status": "pooling"}, nil)
	expectStatus(t, res, data, http.StatusOK)
	result := decode[engine.JobOrderStatusResult](t, data)
	if !result.PoolingStarted || result.PreviousStatus != domain.JobOrderOpen || result.JobOrder.Status != domain.JobOrderPooling {
		t.Fatalf("unexpected status result: %+v", result)
	}
	srv.Engine.WaitBackground()

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/pooled-candidates?job_order_id="+jo.ID, nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	list := decode[PooledCandidateList](t, data)
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 pooled records, got %d", len(list.Items))
	}
	for _, p := range list.Items {
		if p.PooledBy != "System" {
			t.Fatalf("cascade should pool as the system actor: %+v", p)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/job-orders/"+jo.ID+"/applications?status=pooled", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	if apps := decode[ApplicationList](t, data); len(apps.Items) != 2 {
		t.Fatalf("expected 2 pooled applications, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/pooled-candidates/bulk-action", map[string]any{
		"ids":         []string{list.Items[0].ID, list.Items[1].ID, "nope"},
		"disposition": "on_hold",
	}, nil)
	expectStatus(t, res, data, http.StatusOK)
	bulk := decode[engine.BulkDispositionResult](t, data)
	if bulk.Updated != 2 || len(bulk.Missing) != 1 {
		t.Fatalf("unexpected bulk result: %+v", bulk)
	}
}

func TestJWTActorResolution(t *testing.T) {
	const secret = "s3cret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret, AllowActorHeader: true})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/job-orders", nil, map[string]string{actorHeader: "mallory"})
	expectStatus(t, res, data, http.StatusUnauthorized)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/job-orders", nil, map[string]string{"Authorization": "Bearer garbage"})
	expectStatus(t, res, data, http.StatusUnauthorized)
	if code := errorCode(t, data); code != "invalid_credentials" {
		t.Fatalf("unexpected code %s", code)
	}

	sign := func(claims jwtClaims) string {
		t.Helper()
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}
	noExpiry := sign(jwtClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-19"}})
	expired := sign(jwtClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-19",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	for _, tok := range []string{noExpiry, expired} {
		res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/job-orders", nil, map[string]string{"Authorization": "Bearer " + tok})
		expectStatus(t, res, data, http.StatusUnauthorized)
		if code := errorCode(t, data); code != "invalid_credentials" {
			t.Fatalf("unexpected code %s", code)
		}
	}

	token, err := IssueToken(secret, "u-17", "Rosa Recruiter", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/job-orders", map[string]any{"title": "SRE"}, bearer)
	expectStatus(t, res, data, http.StatusCreated)
	jo := decode[domain.JobOrder](t, data)

	subjectOnly, err := IssueToken(secret, "u-18", "", 0)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/job-orders/"+jo.ID+"/status",
		map[string]any{"status": "on_hold"}, map[string]string{"Authorization": "Bearer " + subjectOnly})
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/activity?entity_type=job_order&entity_id="+jo.ID, nil, bearer)
	expectStatus(t, res, data, http.StatusOK)
	acts := decode[ActivityList](t, data).Items
	if len(acts) != 2 || acts[0].PerformedByName != "u-18" || acts[1].PerformedByName != "Rosa Recruiter" {
		t.Fatalf("unexpected actors: %+v", acts)
	}
}

func TestOpenAPIDocumentServedConcurrently(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: "s3cret"})
	defer cleanup()
	client := srv.Client()

	const n = 8
	bodies := make([][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/v1/openapi.json")
			if err != nil {
				t.Errorf("get openapi: %v", err)
				return
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				t.Errorf("status %d", res.StatusCode)
				return
			}
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if !bytes.Equal(bodies[0], bodies[i]) {
			t.Fatalf("openapi documents differ between requests")
		}
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(bodies[0], &doc); err != nil || len(doc.Paths) == 0 {
		t.Fatalf("unexpected openapi document: %v", err)
	}
}
