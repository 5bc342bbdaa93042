package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/store"
)

// Destination receives the full readings export.
type Destination interface {
	Name() string
	Write(ctx context.Context, data []byte) error
}

// target tracks the newest reading a destination has successfully received.
type target struct {
	dest     Destination
	lastSeen string
	synced   bool
}

func (t *target) stale(latest string) bool {
	return !t.synced || t.lastSeen != latest
}

// Scheduler periodically exports the store to its destinations. Each
// destination is only rewritten when a reading arrived since its own last
// successful write, so one failing destination retries without rewriting
// the others.
type Scheduler struct {
	store    store.Store
	targets  []*target
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex // serialises Sync
	stop context.CancelFunc
	done chan struct{}
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	sc := &Scheduler{store: s, interval: interval, logger: logger}
	for _, d := range destinations {
		sc.targets = append(sc.targets, &target{dest: d})
	}
	return sc
}

// Start runs Run in the background until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Stop cancels a started scheduler and waits for an in-flight sync.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	s.stop()
	<-s.done
}

// Run syncs immediately and then once per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sync failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Sync writes the current export to every stale destination concurrently
// and reports whether anything was written. Failures are joined; failed
// destinations stay stale and are retried on the next call.
func (s *Scheduler) Sync(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest string
	switch r, err := s.store.LatestReading(ctx); {
	case err == nil:
		latest = r.ID
	case !errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("reading latest: %w", err)
	}

	var pending []*target
	for _, t := range s.targets {
		if t.stale(latest) {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		s.logger.Debug("sync skipped, no new readings")
		return false, nil
	}

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		return false, err
	}
	data := buf.Bytes()

	errs := make([]error, len(pending))
	var wg sync.WaitGroup
	for i, t := range pending {
		wg.Go(func() {
			start := time.Now()
			if err := t.dest.Write(ctx, data); err != nil {
				errs[i] = fmt.Errorf("%s: %w", t.dest.Name(), err)
				s.logger.Error("sync destination failed", "destination", t.dest.Name(), "err", err)
				return
			}
			t.synced, t.lastSeen = true, latest
			s.logger.Info("sync destination written", "destination", t.dest.Name(),
				"bytes", len(data), "duration", time.Since(start).Round(time.Millisecond))
		})
	}
	wg.Wait()
	return true, errors.Join(errs...)
}
