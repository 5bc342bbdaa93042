package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/model"
)

const (
	reconnectMin = 500 * time.Millisecond
	reconnectMax = 15 * time.Second
)

// Event is one server-sent event from GET /v1/events/stream.
type Event struct {
	ID    string
	Topic string
	Data  json.RawMessage
}

// StreamQuery narrows an event stream. Zero values select everything.
type StreamQuery struct {
	Topics []string
	Source string
	// MaxRate thins sample events to at most this many per second.
	MaxRate float64
}

func (q StreamQuery) path() string {
	v := url.Values{}
	if len(q.Topics) > 0 {
		v.Set("topics", strings.Join(q.Topics, ","))
	}
	if q.Source != "" {
		v.Set("source", q.Source)
	}
	if q.MaxRate > 0 {
		v.Set("max_rate", strconv.FormatFloat(q.MaxRate, 'f', -1, 64))
	}
	if len(v) == 0 {
		return "/v1/events/stream"
	}
	return "/v1/events/stream?" + v.Encode()
}

// Events streams server events selected by q to fn until ctx is cancelled.
// Dropped connections are retried with Last-Event-ID so no buffered event
// is missed. HTTP errors such as 401 end the stream.
func (c *HTTPClient) Events(ctx context.Context, q StreamQuery, fn func(Event)) error {
	path := q.path()

	var lastID string
	backoff := reconnectMin
	for {
		got, err := c.streamOnce(ctx, path, lastID, func(e Event) {
			lastID = e.ID
			fn(e)
		})
		if ctx.Err() != nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return err
		}
		if got {
			backoff = reconnectMin
		}
		slog.Debug("event stream dropped, reconnecting", "last_id", lastID, "backoff", backoff, "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, reconnectMax)
	}
}

// Watch implements MotionClient over the SSE event stream.
func (c *HTTPClient) Watch(ctx context.Context, source string, fn func(*model.Reading)) error {
	q := StreamQuery{Topics: []string{events.TopicSampleReceived}, Source: source}
	return c.Events(ctx, q, func(e Event) {
		var ev events.SampleReceived
		if err := json.Unmarshal(e.Data, &ev); err != nil || ev.Reading == nil {
			slog.Debug("skipping undecodable sample event", "id", e.ID, "err", err)
			return
		}
		fn(ev.Reading)
	})
}

// streamOnce reads one SSE connection to completion. It reports whether any
// event was delivered.
func (c *HTTPClient) streamOnce(ctx context.Context, path, lastID string, fn func(Event)) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("opening event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, apiError(resp.StatusCode, body)
	}

	got := false
	err = readSSE(resp.Body, func(e Event) {
		got = true
		fn(e)
	})
	return got, err
}

// readSSE parses a text/event-stream body, calling fn for each complete
// event. Comment lines (keepalives) are skipped. It returns io.ErrUnexpectedEOF
// when the body ends, since the server never closes a healthy stream.
func readSSE(r io.Reader, fn func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var cur Event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.Topic != "" || len(data) > 0 {
				cur.Data = json.RawMessage(strings.Join(data, "\n"))
				fn(cur)
			}
			cur, data = Event{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			cur.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			cur.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
