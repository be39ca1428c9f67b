package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jusscott/risk-assessment-app-sub005/circuitstate"
	"github.com/jusscott/risk-assessment-app-sub005/resilience"
)

// newTestClient builds a client against a single test server, with fast
// retries and a breaker configured per test.
func newTestClient(t *testing.T, service, baseURL string, settings Settings, breaker resilience.BreakerConfig) (*Client, *circuitstate.Registry) {
	t.Helper()

	registry := circuitstate.NewRegistry(circuitstate.RegistryConfig{
		Defaults: breaker,
	})
	t.Cleanup(registry.Close)

	settings.BaseURL = baseURL
	cli := New(Config{
		Registry: registry,
		Services: map[string]Settings{service: settings},
	})
	return cli, registry
}

func TestClient_GetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/templates" {
			t.Errorf("path = %q, want /api/templates", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cli, _ := newTestClient(t, "questionnaire-service", srv.URL, Settings{}, resilience.BreakerConfig{})

	resp, err := cli.Get(context.Background(), "questionnaire-service", "/api/templates")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
}

func TestClient_RetriesTransient5xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cli, reg := newTestClient(t, "report-service", srv.URL,
		Settings{MaxRetries: 2, RetryDelay: time.Millisecond},
		resilience.BreakerConfig{Threshold: 5})

	resp, err := cli.Get(context.Background(), "report-service", "/api/reports")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}

	// The whole retried sequence is one breaker outcome, and a success.
	snap, _ := reg.Snapshot("report-service")
	if snap.TotalRequests != 1 || snap.TotalSuccesses != 1 || snap.TotalFailures != 0 {
		t.Errorf("breaker totals = %+v, want 1 request, 1 success", snap)
	}
}

func TestClient_NoRetryOn4xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cli, _ := newTestClient(t, "payment-service", srv.URL,
		Settings{MaxRetries: 3, RetryDelay: time.Millisecond},
		resilience.BreakerConfig{})

	_, err := cli.Get(context.Background(), "payment-service", "/api/invoices/42")
	if err == nil {
		t.Fatal("Get() error = nil, want upstream client error")
	}
	if got := resilience.ClassOf(err); got != resilience.ClassUpstreamClient {
		t.Errorf("error class = %v, want upstream_client", got)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (4xx must not retry)", got)
	}

	var re *resilience.Error
	if !errors.As(err, &re) {
		t.Fatal("error is not a *resilience.Error")
	}
	if re.Service != "payment-service" || re.Status != http.StatusNotFound {
		t.Errorf("error context = %+v, want payment-service/404", re)
	}
}

func TestClient_ExhaustedRetriesAreOneBreakerFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cli, reg := newTestClient(t, "analysis-service", srv.URL,
		Settings{MaxRetries: 1, RetryDelay: time.Millisecond},
		resilience.BreakerConfig{Threshold: 2})

	_, err := cli.Get(context.Background(), "analysis-service", "/api/analyses")
	if err == nil {
		t.Fatal("Get() error = nil, want upstream server error")
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 (1 attempt + 1 retry)", got)
	}

	snap, _ := reg.Snapshot("analysis-service")
	if snap.TotalRequests != 1 || snap.TotalFailures != 1 {
		t.Errorf("breaker totals = %+v, want 1 request, 1 failure", snap)
	}
	if snap.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", snap.ConsecutiveFailures)
	}
	if reg.IsOpen("analysis-service") {
		t.Error("circuit opened after a single exhausted sequence with threshold 2")
	}
}

func TestClient_CircuitOpenFailsFastWithoutIO(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cli, reg := newTestClient(t, "auth-service", srv.URL,
		Settings{MaxRetries: -1, RetryDelay: time.Millisecond},
		resilience.BreakerConfig{Threshold: 2, ResetTimeout: time.Hour})

	// Trip the breaker.
	_, _ = cli.Get(context.Background(), "auth-service", "/api/verify")
	_, _ = cli.Get(context.Background(), "auth-service", "/api/verify")
	if !cli.IsCircuitOpen("auth-service") {
		t.Fatal("circuit did not open after threshold failures")
	}

	before := hits.Load()
	_, err := cli.Get(context.Background(), "auth-service", "/api/verify")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Get() while open = %v, want ErrCircuitOpen", err)
	}
	if got := resilience.ClassOf(err); got != resilience.ClassCircuitOpen {
		t.Errorf("error class = %v, want circuit_open", got)
	}
	if hits.Load() != before {
		t.Error("open circuit still reached the network")
	}

	var re *resilience.Error
	if !errors.As(err, &re) || re.Service != "auth-service" {
		t.Errorf("circuit-open error missing service context: %v", err)
	}

	// Admin reset restores traffic.
	reg.ResetCircuit("auth-service")
	if cli.IsCircuitOpen("auth-service") {
		t.Error("circuit still open after reset")
	}
}

func TestClient_TimeoutClassifiedAndCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cli, reg := newTestClient(t, "report-service", srv.URL,
		Settings{MaxRetries: -1, ConnectionTimeout: 10 * time.Millisecond},
		resilience.BreakerConfig{Threshold: 5})

	_, err := cli.Get(context.Background(), "report-service", "/api/reports")
	if err == nil {
		t.Fatal("Get() error = nil, want timeout")
	}
	if got := resilience.ClassOf(err); got != resilience.ClassTimeout {
		t.Errorf("error class = %v, want timeout", got)
	}

	snap, _ := reg.Snapshot("report-service")
	if snap.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1 (timeout counts as failure)", snap.TotalFailures)
	}
}

func TestClient_NilOptionsSubstitutedAndWarned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	registry := circuitstate.NewRegistry(circuitstate.RegistryConfig{})
	defer registry.Close()

	cli := New(Config{
		Registry: registry,
		Logger:   zap.New(core),
		Services: map[string]Settings{"questionnaire-service": {BaseURL: srv.URL}},
	})

	resp, err := cli.Do(context.Background(), "questionnaire-service", nil)
	if err != nil {
		t.Fatalf("Do() with nil options = %v, want success with defaults", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}

	if logs.FilterMessageSnippet("without options").Len() != 1 {
		t.Error("expected a warning about substituted options")
	}
}

func TestClient_MissingServiceNameSubstituted(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	registry := circuitstate.NewRegistry(circuitstate.RegistryConfig{})
	defer registry.Close()

	cli := New(Config{Registry: registry, Logger: zap.New(core)})

	// No base URL for the substituted service: a configuration error comes
	// back, but no panic and the warning is logged.
	_, err := cli.Do(context.Background(), "", &Options{Path: "/api"})
	if got := resilience.ClassOf(err); got != resilience.ClassConfiguration {
		t.Errorf("error class = %v, want configuration", got)
	}
	if logs.FilterMessageSnippet("without service name").Len() != 1 {
		t.Error("expected a warning about the substituted service name")
	}
}

func TestClient_HeadersAndCorrelation(t *testing.T) {
	var gotAuth, gotReqID, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cli, _ := newTestClient(t, "payment-service", srv.URL, Settings{}, resilience.BreakerConfig{})

	_, err := cli.Do(context.Background(), "payment-service", &Options{
		Method:      http.MethodPost,
		Path:        "/api/invoices",
		Body:        []byte(`{"amount":100}`),
		BearerToken: "tok-123",
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}
	if gotReqID == "" {
		t.Error("X-Request-ID header not set")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
}

func TestClient_CheckHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	registry := circuitstate.NewRegistry(circuitstate.RegistryConfig{})
	defer registry.Close()
	cli := New(Config{Registry: registry})

	if !cli.CheckHealth(context.Background(), healthy.URL) {
		t.Error("CheckHealth(healthy) = false, want true")
	}
	if cli.CheckHealth(context.Background(), failing.URL) {
		t.Error("CheckHealth(failing) = true, want false")
	}
	if cli.CheckHealth(context.Background(), "http://127.0.0.1:1") {
		t.Error("CheckHealth(unreachable) = true, want false")
	}
}

func TestClient_PostPutDelete(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cli, _ := newTestClient(t, "questionnaire-service", srv.URL, Settings{}, resilience.BreakerConfig{})

	ctx := context.Background()
	if _, err := cli.Post(ctx, "questionnaire-service", "/api/submissions", []byte(`{}`)); err != nil {
		t.Errorf("Post() error = %v", err)
	}
	if _, err := cli.Put(ctx, "questionnaire-service", "/api/submissions/1", []byte(`{}`)); err != nil {
		t.Errorf("Put() error = %v", err)
	}
	if _, err := cli.Delete(ctx, "questionnaire-service", "/api/submissions/1"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	want := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	if len(methods) != len(want) {
		t.Fatalf("methods = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Errorf("method %d = %s, want %s", i, methods[i], want[i])
		}
	}
}
