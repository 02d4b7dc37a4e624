package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UnauthorizedHandler is notified of every 401 observed by a Client.
type UnauthorizedHandler func(ctx context.Context, err *Error)

// Config holds common client configuration
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000.
	BaseURL string

	// BasePath prefixes every request path.
	BasePath string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries of a transient failure. Zero takes the
	// default and a negative value disables retries.
	MaxRetries int

	// RetryDelay is the fixed wait before each retry.
	RetryDelay time.Duration

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper

	// Jar carries the credential-bearing cookies between calls.
	Jar http.CookieJar
}

// NoRetries disables retries when used as Config.MaxRetries.
const NoRetries = -1

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://fwf.ns-6k0uv9r0.svc.cluster.local:8000",
		BasePath:   "/api",
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// Client is the single choke point for calls to the backend.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client

	mu       sync.RWMutex
	handlers []UnauthorizedHandler
}

// New creates a client. Zero fields of cfg take their defaults.
func New(cfg Config) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.BasePath == "" {
		cfg.BasePath = def.BasePath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", cfg.BaseURL)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		cfg:  cfg,
		base: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       cfg.Jar,
		},
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// OnUnauthorized subscribes h to 401 responses.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Get issues a GET and decodes the payload into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the payload into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body and decodes the payload into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body and decodes the payload into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do issues a request and decodes only the response payload into out, which may be nil.
// Failed calls return an *Error. A 401 is published to the subscribed handlers before
// Do returns.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req := &request{
		method: method,
		path:   path,
		url:    c.resolve(path, query),
		body:   payload,
	}

	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("method", method))
	started := time.Now()

	metrics.APIRequestsTotal.Add(ctx, 1, attrs)
	data, err := c.execute(ctx, req)
	metrics.APIDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			metrics.APIErrorsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("kind", apiErr.Kind.String()),
			))
			if apiErr.Kind == KindUnauthorized {
				c.publishUnauthorized(ctx, apiErr)
			}
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}

	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.Trim(c.cfg.BasePath, "/") + "/" + strings.TrimPrefix(path, "/")
	u.Path = strings.ReplaceAll(u.Path, "//", "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// attempt performs one round trip of req.
func (c *Client) attempt(ctx context.Context, req *request) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")

	log.Debug().Str("method", req.method).Str("path", req.path).Int("retry", req.retryCount).Msg("Sending request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, req, err)
	}

	log.Debug().Str("method", req.method).Str("path", req.path).Int("status", resp.StatusCode).Msg("Received response")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	kind := KindSemantic
	if resp.StatusCode == http.StatusUnauthorized {
		kind = KindUnauthorized
	}

	return nil, &Error{
		Kind:       kind,
		Method:     req.method,
		Path:       req.path,
		StatusCode: resp.StatusCode,
		Message:    StatusMessage(resp.StatusCode, NormalizeMessage(data)),
		Detail:     string(data),
	}
}

// transportError classifies a failure that produced no usable response. A cancelled
// caller context is returned as is so it is never retried.
func (c *Client) transportError(ctx context.Context, req *request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, ctxErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		log.Debug().Str("path", req.path).Msg("Request timed out")
	}

	return &Error{
		Kind:    KindTransient,
		Method:  req.method,
		Path:    req.path,
		Message: MsgNetwork,
		Err:     err,
	}
}

func (c *Client) publishUnauthorized(ctx context.Context, err *Error) {
	c.mu.RLock()
	handlers := append([]UnauthorizedHandler(nil), c.handlers...)
	c.mu.RUnlock()

	log.Info().Str("path", err.Path).Int("handlers", len(handlers)).Msg("Backend reported unauthorized")

	for _, h := range handlers {
		h(ctx, err)
	}
}
