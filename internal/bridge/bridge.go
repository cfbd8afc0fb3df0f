package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// DefaultBaseURL is used when no bridge variable is set
const DefaultBaseURL = "http://127.0.0.1:63000"

// Timeouts
const (
	DefaultSearchTimeout = 5 * time.Second
	HealthTimeout        = 2 * time.Second
)

// Environment variables checked in order for the bridge URL
var EnvBaseURL = []string{"IDEA_BRIDGE_BASE_URL", "IDEA_BRIDGE_URL", "IDEA_BRIDGE_HTTP"}

// Errors
var (
	ErrBridgeStatus      = errors.New("bridge returned non-success status")
	ErrMalformedResponse = errors.New("malformed bridge response")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BaseURLFromEnv returns the first configured bridge URL or DefaultBaseURL
func BaseURLFromEnv() string {
	for _, key := range EnvBaseURL {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return DefaultBaseURL
}

// Client talks to the IDE bridge HTTP API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call search timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a bridge client for baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse bridge url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse bridge url: %q is not absolute", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		timeout:    DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured bridge URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// wireHit is the minimum shape a search result must have
type wireHit struct {
	FQN        *string `json:"fqn" validate:"required,min=1"`
	Kind       *string `json:"kind" validate:"required,oneof=CLASS INTERFACE METHOD"`
	Module     *string `json:"module" validate:"required"`
	Summary    *string `json:"summary" validate:"required"`
	ScoreHints *struct {
		References       *int `json:"references" validate:"omitnil,min=0"`
		LastModifiedDays *int `json:"lastModifiedDays" validate:"omitnil,min=0"`
	} `json:"scoreHints"`
}

// SearchSymbols runs an exact-match symbol search. Every result is shape
// checked; one malformed entry rejects the whole response.
func (c *Client) SearchSymbols(ctx context.Context, query string, limit int, moduleFilter string) ([]types.SymbolHit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath("/api/symbols/search")
	q := u.Query()
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	if moduleFilter != "" {
		q.Set("module", moduleFilter)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return decodeResults(body)
}

func decodeResults(body []byte) ([]types.SymbolHit, error) {
	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}

	hits := make([]types.SymbolHit, 0, len(envelope.Results))
	for i, raw := range envelope.Results {
		var shape wireHit
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrMalformedResponse, i, err)
		}
		if err := validate.Struct(shape); err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrMalformedResponse, i, err)
		}
		var hit types.SymbolHit
		if err := json.Unmarshal(raw, &hit); err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrMalformedResponse, i, err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Health is the bridge reachability report
type Health struct {
	URL          string `json:"url"`
	Reachable    bool   `json:"reachable"`
	Status       string `json:"status"`
	SymbolCount  *int   `json:"symbolCount"`
	DataSource   string `json:"dataSource,omitempty"`
	PSICachePath string `json:"psiCachePath,omitempty"`
}

// Health probes /healthz and, when healthy, /api/info. It never fails;
// problems are reported in the Status field.
func (c *Client) Health(ctx context.Context) Health {
	h := Health{URL: c.BaseURL()}

	hctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()
	if _, err := c.get(hctx, c.baseURL.JoinPath("/healthz").String()); err != nil {
		h.Status = err.Error()
		return h
	}
	h.Reachable = true
	h.Status = "ok"

	ictx, icancel := context.WithTimeout(ctx, HealthTimeout)
	defer icancel()
	body, err := c.get(ictx, c.baseURL.JoinPath("/api/info").String())
	if err != nil {
		return h
	}
	var info struct {
		SymbolCount  *int   `json:"symbolCount"`
		DataSource   string `json:"dataSource"`
		PSICachePath string `json:"psiCachePath"`
	}
	if json.Unmarshal(body, &info) == nil {
		h.SymbolCount = info.SymbolCount
		h.DataSource = info.DataSource
		h.PSICachePath = info.PSICachePath
	}
	return h
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bridge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d %s", ErrBridgeStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
