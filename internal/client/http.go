package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// maxErrorBody bounds how much of an error response is kept in an APIError.
const maxErrorBody = 4 << 10

// HTTPClient talks to the relay's JSON API and event stream.
type HTTPClient struct {
	base  string
	token string
	hc    *http.Client
}

type HTTPOption func(*HTTPClient)

// WithHTTPClient swaps the transport, for example to trust a private CA.
// The client must have no Timeout or Watch streams get cut off.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.hc = hc }
}

// NewHTTPClient targets a relay base URL such as "https://relay.lab:3000".
// A non-empty token is sent as a bearer token.
func NewHTTPClient(baseURL, token string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{base: strings.TrimRight(baseURL, "/"), token: token, hc: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Send(ctx context.Context, s model.MotionSample) error {
	return c.call(ctx, http.MethodPost, "/motion", s, nil)
}

func (c *HTTPClient) Latest(ctx context.Context) (*model.Reading, error) {
	return get[model.Reading](ctx, c, "/v1/readings/latest")
}

func (c *HTTPClient) GetReading(ctx context.Context, id string) (*model.Reading, error) {
	return get[model.Reading](ctx, c, "/v1/readings/"+url.PathEscape(id))
}

func (c *HTTPClient) ListReadings(ctx context.Context, req *ListReadingsRequest) (*ListReadingsResponse, error) {
	return get[ListReadingsResponse](ctx, c, withQuery("/v1/readings", req.query()))
}

func (c *HTTPClient) Stats(ctx context.Context) (*model.Stats, error) {
	return get[model.Stats](ctx, c, "/v1/stats")
}

func (c *HTTPClient) Reporters(ctx context.Context) (*ReportersResponse, error) {
	return get[ReportersResponse](ctx, c, "/v1/reporters")
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	h, err := get[struct {
		Status string `json:"status"`
	}](ctx, c, "/v1/health")
	if err != nil {
		return "", err
	}
	return h.Status, nil
}

func (r *ListReadingsRequest) query() url.Values {
	q := url.Values{}
	if r.Source != "" {
		q.Set("source", r.Source)
	}
	if !r.Since.IsZero() {
		q.Set("since", r.Since.UTC().Format(time.RFC3339))
	}
	if r.Limit > 0 {
		q.Set("limit", strconv.Itoa(r.Limit))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// APIError is a non-2xx response from the relay.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an HTTP 404 or a gRPC NotFound.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return isGRPCNotFound(err)
}

func get[T any](ctx context.Context, c *HTTPClient, path string) (*T, error) {
	out := new(T)
	if err := c.call(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// call sends in as JSON when non-nil and decodes a 2xx body into out when
// non-nil.
func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apiError(resp.StatusCode, b)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// apiError prefers the relay's {"error": "..."} message over the raw body.
func apiError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: status, Message: msg}
}
