// Package apiclient is the request/response helper shared by every outbound provider call.
package apiclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/version"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	// Provider labels logs, metrics and errors ("apify", "twitter", "llm").
	Provider string
	Timeout  time.Duration
	// RateLimit is the client-side request budget in requests per second; 0 disables it.
	RateLimit float64
	Metrics   *metrics.ProviderMetrics
}

// Client sends single requests to one provider. It never retries on its own.
type Client struct {
	http     *resty.Client
	provider string
	limiter  *rate.Limiter
	metrics  *metrics.ProviderMetrics
}

// Response is a fully read provider response. Non-2xx statuses are not errors at this level.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:     rc,
		provider: cfg.Provider,
		metrics:  cfg.Metrics,
	}

	if cfg.RateLimit > 0 {
		burst := max(1, int(cfg.RateLimit))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		rc.OnBeforeRequest(c.waitForBudget)
	}

	return c
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) waitForBudget(_ *resty.Client, r *resty.Request) error {
	if c.limiter.Allow() {
		return nil
	}
	if c.metrics != nil {
		c.metrics.RateLimitWaits.WithLabelValues(c.provider).Inc()
	}
	return c.limiter.Wait(r.Context())
}

// Send issues one request. body may be nil, []byte or string (sent raw), url.Values (form-encoded)
// or any other value (JSON-encoded). Connection, timeout and cancellation failures are TransportErrors.
func (c *Client) Send(ctx context.Context, method, rawURL string, headers map[string]string, body any) (*Response, error) {
	req := c.http.R().SetContext(ctx).SetHeaders(headers)

	switch b := body.(type) {
	case nil:
	case []byte:
		req.SetBody(b)
	case string:
		req.SetBody(b)
	case url.Values:
		req.SetFormDataFromValues(b)
	default:
		req.SetHeader("Content-Type", "application/json").SetBody(b)
	}

	start := time.Now()
	resp, err := req.Execute(method, rawURL)
	elapsed := time.Since(start)

	if err != nil {
		c.observe(0, elapsed)
		slog.WarnContext(ctx, "Provider request failed", "provider", c.provider, "method", method, "path", pathOf(rawURL), "error", err)
		return nil, apperrors.TransportError(c.provider+" request failed", err).WithContext("provider", c.provider)
	}

	c.observe(resp.StatusCode(), elapsed)
	slog.DebugContext(ctx, "Provider request completed",
		"provider", c.provider,
		"method", method,
		"path", pathOf(rawURL),
		"status", resp.StatusCode(),
		"duration", elapsed,
	)

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

func (c *Client) observe(status int, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(c.provider, metrics.StatusClass(status)).Inc()
	c.metrics.RequestDuration.WithLabelValues(c.provider).Observe(elapsed.Seconds())
}

// pathOf drops the query string; Apify takes its token as a query parameter.
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err builds the AuthError for a non-2xx response, carrying the provider's own message.
func (r *Response) Err(provider string) *apperrors.Error {
	msg := ProviderMessage(r.Body)
	if msg == "" {
		msg = http.StatusText(r.StatusCode)
	}
	return apperrors.AuthError(r.StatusCode, provider+": "+msg).WithContext("provider", provider)
}

// DecodeJSON decodes body into v. Unknown fields are ignored.
func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.ParseError("malformed JSON response", err)
	}
	return nil
}

// BuildURL joins a base URL and path and appends query parameters.
func BuildURL(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
