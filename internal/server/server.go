package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/idgen"
	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/motionv1"
	"github.com/alfredjeanlab/motionrelay/internal/presence"
	"github.com/alfredjeanlab/motionrelay/internal/store"
)

// MotionServer receives motion samples and fans them out to stores, the
// event bus and live watchers. It serves both HTTP and gRPC.
type MotionServer struct {
	store      store.Store
	publisher  events.Publisher
	hub        *streamHub
	metrics    *Metrics
	logger     *slog.Logger
	staticDir  string
	trustProxy bool
	now        func() time.Time

	Presence *presence.Tracker
}

// Compile-time check that MotionServer implements the gRPC service.
var _ motionv1.MotionServiceServer = (*MotionServer)(nil)

// Option configures a MotionServer.
type Option func(*MotionServer)

// WithLogger sets the server's logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *MotionServer) { s.logger = l }
}

// WithStaticDir serves the reporter page from dir instead of the embedded
// fallback page. A missing directory falls back to the embedded page.
func WithStaticDir(dir string) Option {
	return func(s *MotionServer) { s.staticDir = dir }
}

// WithTrustProxy takes the client address from X-Forwarded-For and related
// headers. Enable only behind a reverse proxy that sets them.
func WithTrustProxy(trust bool) Option {
	return func(s *MotionServer) { s.trustProxy = trust }
}

// NewMotionServer returns a new MotionServer backed by the given store and publisher.
func NewMotionServer(s store.Store, p events.Publisher, opts ...Option) *MotionServer {
	ms := &MotionServer{
		store:     s,
		publisher: p,
		hub:       newStreamHub(),
		logger:    slog.Default(),
		now:       time.Now,
		Presence:  presence.New(),
	}
	for _, opt := range opts {
		opt(ms)
	}
	ms.metrics = newMetrics(ms.Presence, ms.hub)
	return ms
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

func inputErrorf(format string, args ...any) error {
	return inputError(fmt.Sprintf(format, args...))
}

// Ingest validates and records a sample received from source. On success the
// stored reading is published on the bus and broadcast to watchers.
func (s *MotionServer) Ingest(ctx context.Context, acc *model.Acceleration, source, userAgent string) (*model.Reading, error) {
	start := s.now()

	if err := model.ValidateAcceleration(acc); err != nil {
		s.Reject(ctx, source, "invalid", err.Error())
		return nil, inputError(err.Error())
	}
	sample, err := acc.Sample()
	if err != nil {
		s.Reject(ctx, source, "incomplete", err.Error())
		return nil, inputError(err.Error())
	}

	id, err := idgen.Reading()
	if err != nil {
		return nil, err
	}
	r := &model.Reading{
		ID:         id,
		X:          sample.X,
		Y:          sample.Y,
		Z:          sample.Z,
		Source:     source,
		UserAgent:  userAgent,
		ReceivedAt: start.UTC(),
	}
	if err := s.store.RecordReading(ctx, r); err != nil {
		return nil, fmt.Errorf("record reading: %w", err)
	}

	s.logger.Debug("motion sample received", "sample", sample.String(), "id", r.ID, "source", source)
	s.metrics.observeSample(sample, s.now().Sub(start))

	if s.Presence.Record(source, userAgent) {
		s.logger.Info("reporter joined", "source", source, "user_agent", userAgent)
		s.publish(ctx, events.TopicReporterJoined, events.ReporterJoined{
			Source:    source,
			UserAgent: userAgent,
			At:        r.ReceivedAt,
		})
	}
	s.publish(ctx, events.TopicSampleReceived, events.SampleReceived{Reading: r})

	return r, nil
}

// Reject counts and announces a sample that could not be accepted.
func (s *MotionServer) Reject(ctx context.Context, source, reason, detail string) {
	s.metrics.samplesRejected.WithLabelValues(reason).Inc()
	s.logger.Debug("motion sample rejected", "source", source, "reason", reason, "detail", detail)
	s.publish(ctx, events.TopicSampleRejected, events.SampleRejected{Source: source, Reason: detail})
}

// publish sends an event to the bus and to SSE/gRPC watchers. Bus failures
// are logged and do not fail the caller. Publishers that talk to a broker
// are wrapped in an events.QueuedPublisher so this never waits on the
// network; a full queue is already reported by the queue itself.
func (s *MotionServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil && !errors.Is(err, events.ErrQueueFull) {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
	s.broadcastEvent(topic, event)
}

// StartPresenceReaper marks reporters idle after idle without samples and
// announces them on the bus.
func (s *MotionServer) StartPresenceReaper(idle time.Duration) {
	s.Presence.StartReaper(presence.ReaperConfig{
		IdleThreshold: idle,
		SweepInterval: sweepInterval(idle),
		OnIdle: func(e presence.Entry) {
			s.publish(context.Background(), events.TopicReporterIdle, events.ReporterIdle{
				Source:   e.Source,
				LastSeen: e.LastSeen,
				Samples:  e.Samples,
			})
		},
	})
}

// Stop shuts down background workers.
func (s *MotionServer) Stop() {
	s.Presence.Stop()
}

func sweepInterval(idle time.Duration) time.Duration {
	if idle <= 0 {
		return 0
	}
	return max(idle/4, time.Second)
}

// isNotFound reports whether err is a store miss.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func isInputError(err error) bool {
	var ie inputError
	return errors.As(err, &ie)
}
