package hooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// StandardGravity is the magnitude of a device at rest, in m/s².
const StandardGravity = 9.81

// DefaultCooldown is the minimum gap between shake hooks, or between
// rejected-sample hooks, for one source.
const DefaultCooldown = 5 * time.Second

// Config names the command to run per trigger. Empty commands are skipped.
type Config struct {
	Joined   string
	Idle     string
	Rejected string
	Shake    string

	// ShakeThreshold is how far the acceleration magnitude must stray from
	// gravity before the shake hook fires.
	ShakeThreshold float64
	// Cooldown limits the per-sample hooks (shake and rejected) to one run
	// per source per window.
	Cooldown time.Duration
	Timeout  time.Duration
}

// Enabled reports whether any hook command is configured.
func (c Config) Enabled() bool {
	return c.Joined != "" || c.Idle != "" || c.Rejected != "" || c.Shake != ""
}

type runFunc func(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result

// Dispatcher is an events.Publisher that runs the configured hook command
// for each matching event. Commands run in the background; Close waits for
// them.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	run    runFunc
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	lastFired map[cooldownKey]time.Time
}

var _ events.Publisher = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher for cfg.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:       cfg,
		logger:    logger,
		run:       Execute,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		lastFired: make(map[cooldownKey]time.Time),
	}
}

// Publish starts the hook for topic, if any. It never fails the caller.
func (d *Dispatcher) Publish(_ context.Context, topic string, event any) error {
	command, env, ok := d.match(topic, event)
	if !ok {
		return nil
	}
	env["MOTION_EVENT"] = topic
	if data, err := json.Marshal(event); err == nil {
		env["MOTION_EVENT_JSON"] = string(data)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		res := d.run(d.ctx, command, d.cfg.Timeout, env)
		if res.Err != nil {
			d.logger.Warn("hooks: command failed",
				"event", topic, "command", command, "exit_code", res.ExitCode,
				"timed_out", res.TimedOut, "output", res.Output, "err", res.Err)
			return
		}
		d.logger.Info("hooks: command ran",
			"event", topic, "source", env["MOTION_SOURCE"], "duration", res.Duration)
	}()
	return nil
}

// Close waits for running hooks, then cancels any that outlive it.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	d.cancel()
	return nil
}

func (d *Dispatcher) match(topic string, event any) (string, map[string]string, bool) {
	switch ev := event.(type) {
	case events.ReporterJoined:
		if topic != events.TopicReporterJoined || d.cfg.Joined == "" {
			return "", nil, false
		}
		return d.cfg.Joined, map[string]string{
			"MOTION_SOURCE":     ev.Source,
			"MOTION_USER_AGENT": ev.UserAgent,
		}, true
	case events.ReporterIdle:
		if topic != events.TopicReporterIdle || d.cfg.Idle == "" {
			return "", nil, false
		}
		return d.cfg.Idle, map[string]string{
			"MOTION_SOURCE":  ev.Source,
			"MOTION_SAMPLES": strconv.FormatInt(ev.Samples, 10),
		}, true
	case events.SampleRejected:
		if topic != events.TopicSampleRejected || d.cfg.Rejected == "" || !d.cooled(topic, ev.Source) {
			return "", nil, false
		}
		return d.cfg.Rejected, map[string]string{
			"MOTION_SOURCE": ev.Source,
			"MOTION_REASON": ev.Reason,
		}, true
	case events.SampleReceived:
		if topic != events.TopicSampleReceived || d.cfg.Shake == "" || ev.Reading == nil {
			return "", nil, false
		}
		magnitude, ok := d.shake(ev.Reading)
		if !ok {
			return "", nil, false
		}
		r := ev.Reading
		return d.cfg.Shake, map[string]string{
			"MOTION_SOURCE":    r.Source,
			"MOTION_X":         formatFloat(r.X),
			"MOTION_Y":         formatFloat(r.Y),
			"MOTION_Z":         formatFloat(r.Z),
			"MOTION_MAGNITUDE": formatFloat(magnitude),
		}, true
	}
	return "", nil, false
}

// shake reports whether r is a shake that should fire a hook, honouring the
// per-source cooldown.
func (d *Dispatcher) shake(r *model.Reading) (float64, bool) {
	magnitude := Magnitude(r.Sample())
	if d.cfg.ShakeThreshold <= 0 || math.Abs(magnitude-StandardGravity) < d.cfg.ShakeThreshold {
		return magnitude, false
	}
	return magnitude, d.cooled(events.TopicSampleReceived, r.Source)
}

type cooldownKey struct {
	topic, source string
}

// cooled reports whether the hook for topic may fire for source now, and
// if so starts a new cooldown window.
func (d *Dispatcher) cooled(topic, source string) bool {
	key := cooldownKey{topic, source}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastFired[key]; ok && now.Sub(last) < d.cfg.Cooldown {
		return false
	}
	d.lastFired[key] = now
	return true
}

// Magnitude returns the length of the acceleration vector.
func Magnitude(s model.MotionSample) float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
