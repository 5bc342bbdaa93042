package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/events"
)

const (
	// replayBufferSize is how many recent events a reconnecting SSE client
	// can catch up on via Last-Event-ID.
	replayBufferSize = 1000

	// watcherBuffer is the per-watcher queue depth. A watcher that falls
	// further behind loses events; ingestion never waits for it.
	watcherBuffer = 64

	sseKeepaliveInterval = 15 * time.Second
	sseRetryMillis       = 2000

	// maxStreamRate caps the max_rate a watcher may ask for.
	maxStreamRate = 1000
)

// streamEvent is one relay event as delivered to SSE and gRPC watchers.
type streamEvent struct {
	ID     uint64
	Topic  string
	Source string // reporter the event concerns, if any
	Data   []byte
}

// streamFilter selects what a watcher receives. Zero values match all.
type streamFilter struct {
	topics []string // dot patterns, "*" for one segment, trailing ">" for the rest
	source string
	// minSampleGap thins motion.sample.received to at most one event per
	// gap. Other topics are never thinned.
	minSampleGap time.Duration
}

func (f streamFilter) matches(e *streamEvent) bool {
	if f.source != "" && e.Source != f.source {
		return false
	}
	if len(f.topics) == 0 {
		return true
	}
	for _, pattern := range f.topics {
		if matchTopicPattern(pattern, e.Topic) {
			return true
		}
	}
	return false
}

type watcher struct {
	filter     streamFilter
	ch         chan *streamEvent
	lastSample atomic.Int64 // unix nanos of the last sample let through
}

// admit reports whether e should be queued for w at now.
func (w *watcher) admit(e *streamEvent, now time.Time) bool {
	if !w.filter.matches(e) {
		return false
	}
	if w.filter.minSampleGap <= 0 || e.Topic != events.TopicSampleReceived {
		return true
	}
	last := w.lastSample.Load()
	if now.UnixNano()-last < int64(w.filter.minSampleGap) {
		return false
	}
	return w.lastSample.CompareAndSwap(last, now.UnixNano())
}

// replayRing keeps the most recent events in publish order.
type replayRing struct {
	mu   sync.RWMutex
	buf  []streamEvent
	next int // slot the next event goes into
	n    int
}

func newReplayRing(size int) *replayRing {
	return &replayRing{buf: make([]streamEvent, size)}
}

func (r *replayRing) add(e streamEvent) {
	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	r.n = min(r.n+1, len(r.buf))
	r.mu.Unlock()
}

// since returns buffered events newer than lastID, oldest first, and how
// many newer events have already been evicted.
func (r *replayRing) since(lastID uint64) (evts []*streamEvent, lost uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.n == 0 {
		return nil, 0
	}
	oldest := (r.next - r.n + len(r.buf)) % len(r.buf)
	if first := r.buf[oldest].ID; first > lastID+1 {
		lost = first - lastID - 1
	}
	for i := range r.n {
		e := &r.buf[(oldest+i)%len(r.buf)]
		if e.ID > lastID {
			evts = append(evts, e)
		}
	}
	return evts, lost
}

// resume returns the events a reconnecting watcher missed after lastID
// that match f, and the highest ID the snapshot covered. The watcher is
// subscribed before the snapshot is taken, so live events at or below
// through are already in evts.
func (r *replayRing) resume(lastID uint64, f streamFilter) (evts []*streamEvent, lost, through uint64) {
	missed, lost := r.since(lastID)
	for _, e := range missed {
		through = max(through, e.ID)
		if f.matches(e) {
			evts = append(evts, e)
		}
	}
	return evts, lost, through
}

// streamHub numbers relay events and fans them out to SSE and gRPC watchers.
type streamHub struct {
	mu       sync.RWMutex
	watchers map[*watcher]struct{}
	seq      atomic.Uint64
	dropped  atomic.Uint64
	replay   *replayRing
	now      func() time.Time
}

func newStreamHub() *streamHub {
	return &streamHub{
		watchers: make(map[*watcher]struct{}),
		replay:   newReplayRing(replayBufferSize),
		now:      time.Now,
	}
}

// broadcast numbers the event, records it for replay and queues it for
// every interested watcher without blocking.
func (h *streamHub) broadcast(topic, source string, payload []byte) {
	e := &streamEvent{ID: h.seq.Add(1), Topic: topic, Source: source, Data: payload}
	h.replay.add(*e)

	now := h.now()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.watchers {
		if !w.admit(e, now) {
			continue
		}
		select {
		case w.ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// subscribe registers a watcher. Callers must unsubscribe when done.
func (h *streamHub) subscribe(f streamFilter) *watcher {
	w := &watcher{filter: f, ch: make(chan *streamEvent, watcherBuffer)}
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()
	return w
}

func (h *streamHub) unsubscribe(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	h.mu.Unlock()
}

func (h *streamHub) watcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// matchTopicPattern matches a dot-separated topic against a pattern.
// "*" matches one segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// parseTopics splits a comma-separated topic list, dropping blanks.
func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// sampleGap converts a max_rate (samples per second) into the minimum gap
// between samples. Zero means unthrottled.
func sampleGap(rate float64) (time.Duration, error) {
	switch {
	case rate == 0:
		return 0, nil
	case rate < 0 || rate > maxStreamRate:
		return 0, inputErrorf("max_rate must be between 0 and %d", maxStreamRate)
	}
	return time.Duration(float64(time.Second) / rate), nil
}

// streamFilterFromQuery reads topics, source and max_rate.
func streamFilterFromQuery(r *http.Request) (streamFilter, error) {
	q := r.URL.Query()
	f := streamFilter{topics: parseTopics(q.Get("topics")), source: q.Get("source")}
	if s := q.Get("max_rate"); s != "" {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return f, inputErrorf("invalid max_rate %q", s)
		}
		if f.minSampleGap, err = sampleGap(rate); err != nil {
			return f, err
		}
	}
	return f, nil
}

// handleEventStream handles GET /v1/events/stream.
func (s *MotionServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	filter, err := streamFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wt := s.hub.subscribe(filter)
	defer s.hub.unsubscribe(wt)

	streams := s.metrics.streamClients.WithLabelValues("sse")
	streams.Inc()
	defer streams.Dec()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry:%d\n\n", sseRetryMillis)

	var replayed uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if lastID, err := strconv.ParseUint(v, 10, 64); err == nil {
			missed, lost, through := s.hub.replay.resume(lastID, filter)
			if lost > 0 {
				fmt.Fprintf(w, ":replay truncated, %d events lost\n\n", lost)
			}
			for _, e := range missed {
				writeSSEEvent(w, e)
			}
			replayed = through
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-wt.ch:
			if e.ID <= replayed {
				continue
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, e *streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", e.ID, e.Topic, e.Data)
}

// broadcastEvent JSON-encodes event and hands it to the hub.
func (s *MotionServer) broadcastEvent(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for broadcast", "topic", topic, "err", err)
		return
	}
	s.hub.broadcast(topic, events.EventSource(event), payload)
}
