// Package presence keeps the live roster of reporting devices.
//
// Every accepted sample is recorded against its reporter's source address.
// A reaper marks reporters idle once they go quiet and forgets them after a
// longer grace period; a sample from an idle reporter counts as a rejoin.
package presence

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Entry is one reporter as shown by GET /v1/reporters.
type Entry struct {
	Source     string    `json:"source"`
	UserAgent  string    `json:"user_agent,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	IdleSecs   float64   `json:"idle_secs"`
	Samples    int64     `json:"samples"`
	RatePerSec float64   `json:"rate_per_sec"`
	Idle       bool      `json:"idle,omitempty"`
	IdleSince  time.Time `json:"idle_since,omitempty"`
}

// ReaperConfig controls idle detection. Zero durations take defaults of
// 2m idle, 30m eviction and a 30s sweep.
type ReaperConfig struct {
	IdleThreshold time.Duration
	EvictAfter    time.Duration
	SweepInterval time.Duration

	// OnIdle runs once per reporter going idle, without the tracker lock.
	OnIdle func(e Entry)
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	c.IdleThreshold = cmp.Or(c.IdleThreshold, 2*time.Minute)
	c.EvictAfter = cmp.Or(c.EvictAfter, 30*time.Minute)
	c.SweepInterval = cmp.Or(c.SweepInterval, 30*time.Second)
	return c
}

type reporter struct {
	userAgent string
	firstSeen time.Time
	lastSeen  time.Time
	samples   int64
	idleSince time.Time // zero while active
}

func (r *reporter) idle() bool { return !r.idleSince.IsZero() }

func (r *reporter) entry(source string, now time.Time) Entry {
	e := Entry{
		Source:    source,
		UserAgent: r.userAgent,
		FirstSeen: r.firstSeen,
		LastSeen:  r.lastSeen,
		IdleSecs:  now.Sub(r.lastSeen).Seconds(),
		Samples:   r.samples,
		Idle:      r.idle(),
		IdleSince: r.idleSince,
	}
	if span := r.lastSeen.Sub(r.firstSeen).Seconds(); span > 0 {
		e.RatePerSec = float64(r.samples-1) / span
	}
	return e
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	reporters map[string]*reporter
	now       func() time.Time
	logger    *slog.Logger

	stopReaper context.CancelFunc
	reaperDone chan struct{}
}

func New() *Tracker {
	return &Tracker{
		reporters: make(map[string]*reporter),
		now:       time.Now,
		logger:    slog.Default().With("component", "presence"),
	}
}

// Record counts a sample from source and reports whether the reporter
// joined, either for the first time or after being idle. Samples without a
// source are not tracked.
func (t *Tracker) Record(source, userAgent string) (joined bool) {
	if source == "" {
		return false
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.reporters[source]
	switch {
	case r == nil:
		r = &reporter{firstSeen: now}
		t.reporters[source] = r
		joined = true
	case r.idle():
		t.logger.Info("reporter resumed", "source", source, "idle_for", now.Sub(r.idleSince).Round(time.Second))
		r.idleSince = time.Time{}
		joined = true
	}
	r.lastSeen = now
	r.samples++
	if userAgent != "" {
		r.userAgent = userAgent
	}
	return joined
}

// Roster lists reporters newest activity first, ties by source. With a
// positive staleAfter, reporters silent for longer are left out.
func (t *Tracker) Roster(staleAfter time.Duration) []Entry {
	now := t.now()

	t.mu.RLock()
	out := make([]Entry, 0, len(t.reporters))
	for source, r := range t.reporters {
		if staleAfter > 0 && now.Sub(r.lastSeen) > staleAfter {
			continue
		}
		out = append(out, r.entry(source, now))
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(b.LastSeen.Compare(a.LastSeen), cmp.Compare(a.Source, b.Source))
	})
	return out
}

// Active counts reporters that are not idle.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, r := range t.reporters {
		if !r.idle() {
			n++
		}
	}
	return n
}

// Reap sweeps every cfg.SweepInterval until ctx is done.
func (t *Tracker) Reap(ctx context.Context, cfg ReaperConfig) {
	cfg = cfg.withDefaults()
	t.logger.Info("reaper started", "idle_threshold", cfg.IdleThreshold, "sweep_interval", cfg.SweepInterval)
	tick := time.NewTicker(cfg.SweepInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.sweep(cfg)
		}
	}
}

// StartReaper runs Reap in the background until Stop.
func (t *Tracker) StartReaper(cfg ReaperConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	t.stopReaper = cancel
	t.reaperDone = make(chan struct{})
	go func() {
		defer close(t.reaperDone)
		t.Reap(ctx, cfg)
	}()
}

// Stop halts a started reaper and waits for it. It is a no-op otherwise.
func (t *Tracker) Stop() {
	if t.stopReaper == nil {
		return
	}
	t.stopReaper()
	<-t.reaperDone
	t.stopReaper = nil
}

// sweep marks quiet reporters idle and forgets long-idle ones.
func (t *Tracker) sweep(cfg ReaperConfig) {
	now := t.now()
	var gone []Entry

	t.mu.Lock()
	for source, r := range t.reporters {
		switch {
		case r.idle() && now.Sub(r.idleSince) > cfg.EvictAfter:
			delete(t.reporters, source)
		case !r.idle() && now.Sub(r.lastSeen) > cfg.IdleThreshold:
			r.idleSince = now
			gone = append(gone, r.entry(source, now))
		}
	}
	t.mu.Unlock()

	for _, e := range gone {
		t.logger.Info("reporter idle", "source", e.Source, "samples", e.Samples, "last_seen", e.LastSeen)
		if cfg.OnIdle != nil {
			cfg.OnIdle(e)
		}
	}
}
