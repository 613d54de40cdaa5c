// Package remote implements the engine collaborators as JSON over HTTP.
//
// One Client serves any subset of the three collaborator roles; bootstrap
// builds one per configured base URL.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"tripgroups/pkg/domain"
)

// DefaultTimeout bounds a single collaborator request.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 4 << 10

var (
	_ domain.ParticipantSource   = (*Client)(nil)
	_ domain.CompatibilityScorer = (*Client)(nil)
	_ domain.Optimizer           = (*Client)(nil)
)

// StatusError reports a non-2xx collaborator response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client talks to a collaborator service rooted at baseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHeader adds a static header to every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalised root URL.
func (c *Client) BaseURL() string { return c.baseURL }

type participantsResponse struct {
	Participants []domain.Participant `json:"participants"`
}

type compatibilityRequest struct {
	Participants []domain.Participant `json:"participants"`
}

type optimizeRequest struct {
	Participants []domain.Participant   `json:"participants"`
	Options      domain.OptimizeOptions `json:"options"`
}

type optimizeResponse struct {
	Groups []domain.Group `json:"groups"`
}

// FetchParticipants calls GET {base}/adventures/{id}/participants.
func (c *Client) FetchParticipants(ctx context.Context, adventureID string) ([]domain.Participant, error) {
	var resp participantsResponse
	path := "/adventures/" + url.PathEscape(adventureID) + "/participants"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch participants for %s: %w", adventureID, err)
	}
	if resp.Participants == nil {
		resp.Participants = []domain.Participant{}
	}
	return resp.Participants, nil
}

// ComputeCompatibility calls POST {base}/compatibility.
func (c *Client) ComputeCompatibility(ctx context.Context, participants []domain.Participant) (domain.Compatibility, error) {
	var resp domain.Compatibility
	if err := c.do(ctx, http.MethodPost, "/compatibility", compatibilityRequest{Participants: participants}, &resp); err != nil {
		return domain.Compatibility{}, fmt.Errorf("compute compatibility: %w", err)
	}
	return resp, nil
}

// OptimizePartition calls POST {base}/optimize.
func (c *Client) OptimizePartition(ctx context.Context, participants []domain.Participant, opts domain.OptimizeOptions) ([]domain.Group, error) {
	var resp optimizeResponse
	if err := c.do(ctx, http.MethodPost, "/optimize", optimizeRequest{Participants: participants, Options: opts}, &resp); err != nil {
		return nil, fmt.Errorf("optimize partition: %w", err)
	}
	return resp.Groups, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
