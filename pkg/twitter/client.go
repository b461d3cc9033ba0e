package twitter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/weiland/HourlyImage/pkg/twitter/oauth"
	"github.com/weiland/HourlyImage/pkg/utils/debug"
	"github.com/weiland/HourlyImage/pkg/utils/errors"
	"github.com/weiland/HourlyImage/pkg/utils/metrics"
)

type ClientConfig struct {
	Credentials oauth.Credentials
	// Endpoints defaults to DefaultEndpoints; empty fields are filled in.
	Endpoints Endpoints
	// Transport defaults to an HTTPTransport with Timeout.
	Transport Transport
	Timeout   time.Duration
	// Noncer and Now override nonce and timestamp generation.
	Noncer oauth.Noncer
	Now    func() time.Time
	// Limiter paces outgoing calls. It only delays, it never retries.
	Limiter *rate.Limiter
	Metrics *metrics.MetricsCollector
}

// Client is an OAuth 1.0a signed client for the v1.1 REST API. Every call builds
// a fresh request with its own nonce and timestamp; calls share no mutable state
// and may run concurrently. There is no retry: failures are returned as-is.
type Client struct {
	builder   *oauth.Builder
	endpoints Endpoints
	transport Transport
	limiter   *rate.Limiter
	metrics   *metrics.MetricsCollector
}

// NewClient validates config and returns a Client. Incomplete credentials or
// unusable endpoints fail with a configuration error.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, errors.Configuration("create twitter client", ErrInvalidConfig)
	}
	if err := config.Credentials.Validate(); err != nil {
		return nil, errors.Configuration("validate credentials", err)
	}

	endpoints := config.Endpoints.WithDefaults()
	if err := endpoints.Validate(); err != nil {
		return nil, errors.Configuration("validate endpoints", err)
	}

	builder, err := oauth.NewBuilder(config.Credentials)
	if err != nil {
		return nil, errors.Configuration("create request builder", err)
	}
	if config.Noncer != nil {
		builder.Noncer = config.Noncer
	}
	if config.Now != nil {
		builder.Now = config.Now
	}

	transport := config.Transport
	if transport == nil {
		transport = NewHTTPTransport(config.Timeout)
	}

	return &Client{
		builder:   builder,
		endpoints: endpoints,
		transport: transport,
		limiter:   config.Limiter,
		metrics:   config.Metrics,
	}, nil
}

// Endpoints returns the hosts the client talks to.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Get calls path on the API host.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) (*JSONResponse, error) {
	return c.do(ctx, http.MethodGet, c.endpoints.APIBase, path, params)
}

// Post calls path on the API host.
func (c *Client) Post(ctx context.Context, path string, params map[string]string) (*JSONResponse, error) {
	return c.do(ctx, http.MethodPost, c.endpoints.APIBase, path, params)
}

// Put calls path on the API host.
func (c *Client) Put(ctx context.Context, path string, params map[string]string) (*JSONResponse, error) {
	return c.do(ctx, http.MethodPut, c.endpoints.APIBase, path, params)
}

// Delete calls path on the API host.
func (c *Client) Delete(ctx context.Context, path string, params map[string]string) (*JSONResponse, error) {
	return c.do(ctx, http.MethodDelete, c.endpoints.APIBase, path, params)
}

// Upload POSTs to path on the upload host.
func (c *Client) Upload(ctx context.Context, path string, params map[string]string) (*JSONResponse, error) {
	return c.do(ctx, http.MethodPost, c.endpoints.UploadBase, path, params)
}

// Prepare signs a request for path without sending it.
func (c *Client) Prepare(method, base, path string, params map[string]string) (*oauth.Request, error) {
	return c.builder.NewRequest(method, c.endpoints.ResourceURL(base, path), params)
}

func (c *Client) do(ctx context.Context, method, base, path string, params map[string]string) (*JSONResponse, error) {
	start := time.Now()
	resp, err := c.send(ctx, method, base, path, params)
	c.record(time.Since(start), err)
	return resp, err
}

func (c *Client) send(ctx context.Context, method, base, path string, params map[string]string) (*JSONResponse, error) {
	// Sign only once the limiter lets the call through, so the timestamp is fresh.
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Transport("wait for rate limiter", err)
		}
	}

	req, err := c.Prepare(method, base, path, params)
	if err != nil {
		return nil, err
	}
	out, err := req.Build()
	if err != nil {
		return nil, err
	}

	slog.Debug("sending signed request",
		"method", out.Method,
		"url", out.URL,
		"nonce", req.Nonce(),
		"timestamp", req.Timestamp(),
	)
	if debug.IsDebugShowBaseString() {
		if baseString, err := req.BaseString(); err == nil {
			slog.Debug("signature base string", "base_string", baseString)
		}
	}

	status, body, err := c.transport.Send(ctx, out)
	if err != nil {
		return nil, errors.Transport("send request", err)
	}
	slog.Debug("received response", "method", out.Method, "url", out.URL, "status", status, "bytes", len(body))

	return decodeResponse(status, body)
}

func (c *Client) record(elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordLatency(metrics.MetricTwitterAPI, elapsed)
	c.metrics.IncrementCounter(metrics.MetricTwitterAPI)
	switch errors.TypeOf(err) {
	case errors.TypeAPI:
		c.metrics.IncrementCounter(metrics.MetricTwitterAPIError)
	case errors.TypeTransport:
		c.metrics.IncrementCounter(metrics.MetricTransportError)
	}
}
