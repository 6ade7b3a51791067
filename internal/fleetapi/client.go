// Package fleetapi is the HTTP client for the fleet-management API. All
// network I/O of the agents goes through it: authenticated reads with page
// walking, audited writes, and a reachability probe. Every call passes a
// minimum-spacing rate gate so an agent walking hundreds of paginated
// records cannot burst-load the shared backend.
package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

const (
	apiPrefix = "/api/v1"

	// PageSize is the page length for GetAll; a shorter page ends the walk.
	PageSize = 100
	// MaxEntities caps how many records GetAll returns for one collection.
	MaxEntities = 500

	defaultTimeout      = 30 * time.Second
	probeTimeout        = 5 * time.Second
	defaultRateInterval = 100 * time.Millisecond
)

// APIError is a non-2xx response or transport failure, carrying enough
// context for the caller to decide fatal vs recoverable.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fleet api %s: %s", e.Path, e.Body)
	}
	return fmt.Sprintf("fleet api %s: status %d: %s", e.Path, e.Status, e.Body)
}

// envelope is the optional {success, data} wrapper some endpoints use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// unwrap strips the response envelope when present, returning the inner
// data; bodies without the wrapper pass through unchanged.
func unwrap(body []byte) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil && env.Data != nil {
		return env.Data
	}
	return body
}

// Login exchanges credentials for a bearer token. The token is found under
// accessToken, access_token, or token, inside or outside the envelope; a
// response with none of those is an error.
func Login(ctx context.Context, baseURL, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("marshal login body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+apiPrefix+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Path: "/auth/login", Body: string(respBody)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(unwrap(respBody), &fields); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	for _, key := range []string{"accessToken", "access_token", "token"} {
		if raw, ok := fields[key]; ok {
			var token string
			if err := json.Unmarshal(raw, &token); err == nil && token != "" {
				return token, nil
			}
		}
	}
	return "", fmt.Errorf("login response has no token")
}

// Client is one agent's session against the fleet API. It is not safe for
// concurrent use beyond what the internal rate limiter serializes; agents
// are single-threaded per run apart from the initial concurrent fetches,
// which the limiter spaces out correctly.
type Client struct {
	baseURL string
	token   string
	agent   string
	http    *http.Client
	probe   *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	audit []models.RemediationAction
}

// Option adjusts client construction.
type Option func(*Client)

// WithRateInterval overrides the minimum spacing between calls.
func WithRateInterval(d time.Duration) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithTimeout overrides the per-request timeout for data calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithProbeTimeout overrides the short timeout used by Probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) { c.probe.Timeout = d }
}

// NewClient creates an authenticated client for one agent run. If the
// bearer token is a JWT with an exp claim that has already passed or is
// about to, a warning is logged up front; an expired token will otherwise
// only surface as 401s mid-run.
func NewClient(baseURL, token, agent string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		agent:   agent,
		http:    &http.Client{Timeout: defaultTimeout},
		probe:   &http.Client{Timeout: probeTimeout},
		limiter: rate.NewLimiter(rate.Every(defaultRateInterval), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if exp, ok := tokenExpiry(token); ok {
		if remaining := time.Until(exp); remaining < 5*time.Minute {
			c.logger.Warn("bearer token expires soon", "expires_at", exp, "remaining", remaining)
		}
	}
	return c
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. Verification is the backend's job; the agent only wants to
// warn before starting a long paginated walk with a dying token.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AuditLog returns all remediation actions recorded by this client.
func (c *Client) AuditLog() []models.RemediationAction {
	return c.audit
}

// wait enforces the minimum spacing since the previous call.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Path: "(rate gate)", Body: err.Error()}
	}
	return nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// get performs one authenticated GET and returns the unwrapped body.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + apiPrefix + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "error").Inc()
		return nil, &APIError{Path: path, Body: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, statusClass(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Path: path, Body: string(body)}
	}
	return unwrap(body), nil
}

// Get fetches a single resource and decodes it into T.
func Get[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	var out T
	raw, err := c.get(ctx, path, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// page matches the two wrapped collection shapes; bare arrays are handled
// separately in decodeBatch.
type page[T any] struct {
	Items []T `json:"items"`
	Data  []T `json:"data"`
}

func decodeBatch[T any](raw json.RawMessage, path string) ([]T, error) {
	var batch []T
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}
	var p page[T]
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", path, err)
	}
	if p.Items != nil {
		return p.Items, nil
	}
	if p.Data != nil {
		return p.Data, nil
	}
	return nil, nil
}

// GetAll walks a paginated collection until a short page, an empty batch,
// or the MaxEntities ceiling. Tolerates three response shapes: bare array,
// {items: [...]}, and {data: [...]}.
func GetAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var items []T
	for pageNum := 1; len(items) < MaxEntities; pageNum++ {
		q := url.Values{}
		for k, vs := range params {
			q[k] = vs
		}
		q.Set("page", strconv.Itoa(pageNum))
		q.Set("limit", strconv.Itoa(PageSize))

		raw, err := c.get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		batch, err := decodeBatch[T](raw, path)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 && pageNum > 1 {
			break
		}
		items = append(items, batch...)
		if len(batch) < PageSize {
			break
		}
	}
	if len(items) > MaxEntities {
		items = items[:MaxEntities]
	}
	return items, nil
}

// AuditInfo describes the mutating call for the remediation audit trail.
type AuditInfo struct {
	Target   string
	TargetID string
	Action   string
	Before   any
}

// Patch performs a mutating PATCH and unconditionally records a
// RemediationAction, success or failure. On failure the error is returned
// to the caller after recording.
func (c *Client) Patch(ctx context.Context, path string, body any, audit AuditInfo) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPatch, path, body, audit)
}

// Post performs a mutating POST with the same audit semantics as Patch.
func (c *Client) Post(ctx context.Context, path string, body any, audit AuditInfo) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPost, path, body, audit)
}

func (c *Client) mutate(ctx context.Context, method, path string, body any, audit AuditInfo) (json.RawMessage, error) {
	action := models.RemediationAction{
		ID:        uuid.New().String(),
		Agent:     c.agent,
		Timestamp: time.Now().UTC(),
		Action:    audit.Action,
		Target:    audit.Target,
		TargetID:  audit.TargetID,
		Method:    method,
		Endpoint:  apiPrefix + path,
		Before:    audit.Before,
	}
	if action.Action == "" {
		action.Action = method + " " + path
	}
	if action.Target == "" {
		action.Target = "unknown"
	}
	if action.TargetID == "" {
		action.TargetID = "unknown"
	}
	defer func() { c.audit = append(c.audit, action) }()

	data, err := c.doMutate(ctx, method, path, body)
	if err != nil {
		action.Error = err.Error()
		return nil, err
	}
	action.Success = true
	var after any
	if json.Unmarshal(data, &after) == nil {
		action.After = after
	}
	return data, nil
}

func (c *Client) doMutate(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, &APIError{Path: path, Body: err.Error()}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	metrics.APIRequestsTotal.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Path: path, Body: string(respBody)}
	}
	return unwrap(respBody), nil
}

// Probe checks whether a URL is reachable with a HEAD request and a short
// timeout. Returns true for 2xx/3xx; never returns an error.
func (c *Client) Probe(ctx context.Context, rawURL string) bool {
	if err := c.wait(ctx); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
