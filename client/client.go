package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jusscott/risk-assessment-app-sub005/circuitstate"
	"github.com/jusscott/risk-assessment-app-sub005/observe"
	"github.com/jusscott/risk-assessment-app-sub005/resilience"
)

const (
	// defaultServiceName is substituted when a caller omits the service
	// name, so the call still gets a breaker instead of crashing.
	defaultServiceName = "unknown"

	tracerName = "github.com/jusscott/risk-assessment-app-sub005/client"
)

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Settings are the per-service call parameters.
type Settings struct {
	// BaseURL is the service's base URL; Options.Path is joined to it.
	BaseURL string

	// MaxRetries is the number of transient retries per call. A negative
	// value disables retrying. Default: 2
	MaxRetries int

	// RetryDelay is the linear backoff step between retries. Default: 100ms
	RetryDelay time.Duration

	// ConnectionTimeout bounds each individual attempt. Default: 5s
	ConnectionTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	} else if s.MaxRetries == 0 {
		s.MaxRetries = 2
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 100 * time.Millisecond
	}
	if s.ConnectionTimeout <= 0 {
		s.ConnectionTimeout = 5 * time.Second
	}
	return s
}

// Config configures the resilient client.
type Config struct {
	// Registry is the shared circuit state. Required; a nil registry gets
	// a private one so the client never crashes its caller, but sharing is
	// the point.
	Registry *circuitstate.Registry

	// HTTPClient is the underlying transport. Default: http.Client with
	// no client-level timeout (attempts are bounded per call).
	HTTPClient Doer

	// Defaults apply to services without an entry in Services.
	Defaults Settings

	// Services holds per-service settings, including base URLs.
	Services map[string]Settings

	// Logger records warnings and retries. Default: no-op logger.
	Logger *zap.Logger

	// Metrics records request outcomes. Default: unregistered collectors.
	Metrics *observe.Metrics
}

// Client executes outbound calls with a per-service circuit breaker, a
// linear retry policy inside each breaker-tracked outcome, and a
// per-attempt timeout. It is the one HTTP surface the business services
// use to talk to each other.
type Client struct {
	http     Doer
	registry *circuitstate.Registry
	logger   *zap.Logger
	metrics  *observe.Metrics
	tracer   trace.Tracer
	defaults Settings
	services map[string]Settings
}

// New creates a resilient client.
func New(config Config) *Client {
	registry := config.Registry
	if registry == nil {
		registry = circuitstate.NewRegistry(circuitstate.RegistryConfig{})
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = observe.NewMetrics(nil)
	}

	services := make(map[string]Settings, len(config.Services))
	for name, s := range config.Services {
		services[name] = s.withDefaults()
	}

	return &Client{
		http:     httpClient,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
		defaults: config.Defaults.withDefaults(),
		services: services,
	}
}

// Registry returns the shared circuit state the client reports into.
func (c *Client) Registry() *circuitstate.Registry {
	return c.registry
}

func (c *Client) settingsFor(service string) Settings {
	if s, ok := c.services[service]; ok {
		return s
	}
	return c.defaults
}

// Do executes one call against the named service. The whole retry sequence
// counts as a single breaker outcome: success if any attempt succeeds,
// failure only when all attempts are exhausted. When the breaker is open
// the call fails immediately with a circuit-open error and no I/O happens.
//
// Missing parameters are substituted with safe defaults and logged as
// warnings; this client sits on the hot path of every inter-service call
// and must never take its caller down over a bad argument.
func (c *Client) Do(ctx context.Context, service string, opts *Options) (*Response, error) {
	if service == "" {
		c.logger.Warn("request without service name, substituting default",
			zap.String("default", defaultServiceName))
		service = defaultServiceName
	}
	if opts == nil {
		c.logger.Warn("request without options, substituting defaults",
			zap.String("service", service))
		opts = &Options{}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	settings := c.settingsFor(service)
	rawURL := opts.URL
	if rawURL == "" {
		if settings.BaseURL == "" {
			c.logger.Warn("no base URL configured for service",
				zap.String("service", service))
			return nil, resilience.NewError(resilience.ClassConfiguration, service,
				fmt.Errorf("no base URL configured for service %q", service))
		}
		rawURL = joinURL(settings.BaseURL, opts.Path)
	}
	if len(opts.Query) > 0 {
		rawURL += "?" + opts.Query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "resilient_client.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.service", service),
			attribute.String("http.method", method),
		))
	defer span.End()

	breaker := c.registry.Breaker(service)
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries: settings.MaxRetries,
		BaseDelay:  settings.RetryDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.metrics.RetriesTotal.WithLabelValues(service).Inc()
			c.logger.Debug("retrying request",
				zap.String("service", service),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	})

	var resp *Response
	start := time.Now()

	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Execute(ctx, func(ctx context.Context) error {
			r, attemptErr := c.attempt(ctx, service, method, rawURL, opts, settings)
			if attemptErr != nil {
				return attemptErr
			}
			resp = r
			return nil
		})
	})

	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = resilience.NewError(resilience.ClassCircuitOpen, service, resilience.ErrCircuitOpen)
		}
		outcome := resilience.ClassOf(err).String()
		c.metrics.ObserveRequest(service, outcome, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	c.metrics.ObserveRequest(service, "success", elapsed)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

// attempt issues one HTTP request bounded by the per-attempt timeout and
// maps the outcome onto the error taxonomy.
func (c *Client) attempt(ctx context.Context, service, method, rawURL string, opts *Options, settings Settings) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = settings.ConnectionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, resilience.NewError(resilience.ClassConfiguration, service, err)
	}

	for key, values := range opts.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if len(opts.Body) > 0 && req.Header.Get("Content-Type") == "" {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	if opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewError(resilience.Classify(err), service, err)
	}
	defer func() { _ = res.Body.Close() }()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, resilience.NewError(resilience.Classify(err), service, err)
	}

	if res.StatusCode >= 400 {
		return nil, resilience.NewUpstreamError(service, res.StatusCode,
			fmt.Errorf("%s %s: %s", method, rawURL, res.Status))
	}

	return &Response{
		StatusCode: res.StatusCode,
		Headers:    res.Header.Clone(),
		Body:       payload,
	}, nil
}

// Get issues a GET against the named service.
func (c *Client) Get(ctx context.Context, service, path string) (*Response, error) {
	return c.Do(ctx, service, &Options{Method: http.MethodGet, Path: path})
}

// Post issues a POST with a JSON body against the named service.
func (c *Client) Post(ctx context.Context, service, path string, body []byte) (*Response, error) {
	return c.Do(ctx, service, &Options{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT with a JSON body against the named service.
func (c *Client) Put(ctx context.Context, service, path string, body []byte) (*Response, error) {
	return c.Do(ctx, service, &Options{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues a DELETE against the named service.
func (c *Client) Delete(ctx context.Context, service, path string) (*Response, error) {
	return c.Do(ctx, service, &Options{Method: http.MethodDelete, Path: path})
}

// IsCircuitOpen reports whether the named service's circuit is open.
func (c *Client) IsCircuitOpen(service string) bool {
	return c.registry.IsOpen(service)
}

// CheckHealth probes a health endpoint directly by base URL and reports
// reachability. It bypasses breakers and retries: callers that want those
// semantics poll through Do with a service name.
func (c *Client) CheckHealth(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.defaults.ConnectionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(baseURL, "/health"), nil)
	if err != nil {
		return false
	}

	res, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode < 400
}
