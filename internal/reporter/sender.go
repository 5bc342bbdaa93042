package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// MotionPath is the fixed server path samples are posted to.
const MotionPath = "/motion"

// Response is the part of a server response the reporter inspects.
type Response struct {
	StatusCode int
	StatusText string
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender transmits one sample to the relay.
type Sender interface {
	Send(ctx context.Context, sample model.MotionSample) (*Response, error)
}

// HTTPSender posts samples as JSON to <baseURL>/motion.
type HTTPSender struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSender returns a sender targeting baseURL (e.g.
// "https://relay.local:3000"). A nil client means a client with no timeout.
func NewHTTPSender(baseURL string, httpClient *http.Client) *HTTPSender {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPSender{
		endpoint:   strings.TrimRight(baseURL, "/") + MotionPath,
		httpClient: httpClient,
	}
}

// Send posts the sample. Non-2xx statuses are returned as a Response, not an
// error; only transport failures produce an error. The body is never read.
func (s *HTTPSender) Send(ctx context.Context, sample model.MotionSample) (*Response, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("marshaling sample: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	return &Response{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
	}, nil
}

// statusText strips the numeric code from resp.Status ("500 Internal Server
// Error" -> "Internal Server Error").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
