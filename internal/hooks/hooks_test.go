package hooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/model"
)

type call struct {
	command string
	env     map[string]string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) run(_ context.Context, command string, _ time.Duration, env map[string]string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{command: command, env: env})
	return Result{}
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func newTestDispatcher(cfg Config) (*Dispatcher, *recorder) {
	d := NewDispatcher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	d.run = rec.run
	return d, rec
}

func reading(source string, x, y, z float64) *model.Reading {
	return &model.Reading{ID: "mo-test", X: x, Y: y, Z: z, Source: source}
}

func TestDispatcher_Triggers(t *testing.T) {
	cfg := Config{
		Joined:         "on-join",
		Idle:           "on-idle",
		Rejected:       "on-reject",
		Shake:          "on-shake",
		ShakeThreshold: 5,
	}
	tests := []struct {
		name    string
		topic   string
		event   any
		command string
		env     map[string]string
	}{
		{
			name:    "joined",
			topic:   events.TopicReporterJoined,
			event:   events.ReporterJoined{Source: "10.0.0.2", UserAgent: "Safari"},
			command: "on-join",
			env:     map[string]string{"MOTION_SOURCE": "10.0.0.2", "MOTION_USER_AGENT": "Safari"},
		},
		{
			name:    "idle",
			topic:   events.TopicReporterIdle,
			event:   events.ReporterIdle{Source: "10.0.0.2", Samples: 12},
			command: "on-idle",
			env:     map[string]string{"MOTION_SOURCE": "10.0.0.2", "MOTION_SAMPLES": "12"},
		},
		{
			name:    "rejected",
			topic:   events.TopicSampleRejected,
			event:   events.SampleRejected{Source: "10.0.0.3", Reason: "x: is required"},
			command: "on-reject",
			env:     map[string]string{"MOTION_SOURCE": "10.0.0.3", "MOTION_REASON": "x: is required"},
		},
		{
			name:    "shake",
			topic:   events.TopicSampleReceived,
			event:   events.SampleReceived{Reading: reading("10.0.0.2", 12, 0, 9.81)},
			command: "on-shake",
			env:     map[string]string{"MOTION_SOURCE": "10.0.0.2", "MOTION_X": "12.00", "MOTION_Z": "9.81"},
		},
		{name: "resting sample", topic: events.TopicSampleReceived, event: events.SampleReceived{Reading: reading("10.0.0.2", 0.1, 0.2, 9.8)}},
		{name: "topic mismatch", topic: events.TopicReporterIdle, event: events.ReporterJoined{Source: "10.0.0.2"}},
		{name: "unknown event", topic: "motion.other", event: map[string]string{"a": "b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, rec := newTestDispatcher(cfg)
			if err := d.Publish(context.Background(), tc.topic, tc.event); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			d.Close()

			calls := rec.snapshot()
			if tc.command == "" {
				if len(calls) != 0 {
					t.Fatalf("expected no hook, got %+v", calls)
				}
				return
			}
			if len(calls) != 1 {
				t.Fatalf("got %d calls, want 1", len(calls))
			}
			c := calls[0]
			if c.command != tc.command {
				t.Errorf("command = %q, want %q", c.command, tc.command)
			}
			if c.env["MOTION_EVENT"] != tc.topic {
				t.Errorf("MOTION_EVENT = %q", c.env["MOTION_EVENT"])
			}
			if !json.Valid([]byte(c.env["MOTION_EVENT_JSON"])) {
				t.Errorf("MOTION_EVENT_JSON = %q", c.env["MOTION_EVENT_JSON"])
			}
			for k, want := range tc.env {
				if got := c.env[k]; got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestDispatcher_UnconfiguredHooksSkipped(t *testing.T) {
	d, rec := newTestDispatcher(Config{Idle: "on-idle"})
	d.Publish(context.Background(), events.TopicReporterJoined, events.ReporterJoined{Source: "a"})
	d.Publish(context.Background(), events.TopicSampleReceived, events.SampleReceived{Reading: reading("a", 40, 0, 0)})
	d.Close()
	if calls := rec.snapshot(); len(calls) != 0 {
		t.Fatalf("expected no hooks, got %+v", calls)
	}
}

func TestDispatcher_ShakeCooldown(t *testing.T) {
	d, rec := newTestDispatcher(Config{Shake: "on-shake", ShakeThreshold: 5, Cooldown: time.Second})
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	shake := func(source string) {
		d.Publish(context.Background(), events.TopicSampleReceived, events.SampleReceived{Reading: reading(source, 0, 0, 25)})
	}
	shake("a")
	shake("a") // within cooldown
	shake("b") // other source
	now = now.Add(1500 * time.Millisecond)
	shake("a")
	d.Close()

	var sources []string
	for _, c := range rec.snapshot() {
		sources = append(sources, c.env["MOTION_SOURCE"])
	}
	if len(sources) != 3 {
		t.Fatalf("hooks fired for %v, want a, b, a", sources)
	}
}

func TestDispatcher_RejectedCooldown(t *testing.T) {
	d, rec := newTestDispatcher(Config{Rejected: "on-reject", Shake: "on-shake", ShakeThreshold: 5, Cooldown: time.Second})
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	reject := func(source string) {
		d.Publish(context.Background(), events.TopicSampleRejected, events.SampleRejected{Source: source, Reason: "x: is required"})
	}
	for range 50 {
		reject("a") // a reporter failing at sensor rate
	}
	reject("b")
	// A shake from the same source has its own window.
	d.Publish(context.Background(), events.TopicSampleReceived, events.SampleReceived{Reading: reading("a", 0, 0, 25)})
	now = now.Add(1500 * time.Millisecond)
	reject("a")
	d.Close()

	var got []string
	for _, c := range rec.snapshot() {
		got = append(got, c.command+":"+c.env["MOTION_SOURCE"])
	}
	slices.Sort(got)
	want := []string{"on-reject:a", "on-reject:a", "on-reject:b", "on-shake:a"}
	if !slices.Equal(got, want) {
		t.Fatalf("hooks fired %v, want %v", got, want)
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if (Config{ShakeThreshold: 3}).Enabled() {
		t.Error("threshold alone should not enable hooks")
	}
	if !(Config{Rejected: "true"}).Enabled() {
		t.Error("rejected hook should enable")
	}
}

func TestMagnitude(t *testing.T) {
	if got := Magnitude(model.MotionSample{X: 3, Y: 4, Z: 0}); got != 5 {
		t.Errorf("Magnitude = %v, want 5", got)
	}
}

func TestExecute(t *testing.T) {
	res := Execute(context.Background(), `echo "$MOTION_SOURCE"`, time.Second, map[string]string{"MOTION_SOURCE": "10.0.0.9"})
	if res.Err != nil {
		t.Fatalf("Execute: %v", res.Err)
	}
	if res.Output != "10.0.0.9" || res.ExitCode != 0 || res.TimedOut {
		t.Errorf("got %+v", res)
	}
}

func TestExecute_StderrAndFailure(t *testing.T) {
	res := Execute(context.Background(), "echo boom >&2; exit 3", time.Second, nil)
	if res.Err == nil {
		t.Fatal("expected error for exit 3")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Output != "boom" {
		t.Errorf("Output = %q, want stderr fallback", res.Output)
	}
}

func TestExecute_Timeout(t *testing.T) {
	// Below MinTimeout, so the command gets the full second.
	res := Execute(context.Background(), "sleep 5", 100*time.Millisecond, nil)
	if !res.TimedOut || res.Err == nil {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if !strings.Contains(res.Err.Error(), "timed out after 1s") {
		t.Errorf("Err = %v", res.Err)
	}
	if res.Duration < MinTimeout/2 || res.Duration > 4*time.Second {
		t.Errorf("Execute took %v, want about %v", res.Duration, MinTimeout)
	}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultTimeout},
		{-time.Second, DefaultTimeout},
		{time.Millisecond, MinTimeout},
		{5 * time.Second, 5 * time.Second},
		{time.Hour, MaxTimeout},
	}
	for _, tt := range tests {
		if got := clampTimeout(tt.in); got != tt.want {
			t.Errorf("clampTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExecute_TruncatesOutput(t *testing.T) {
	res := Execute(context.Background(), "head -c 10000 /dev/zero | tr '\\0' x", time.Second, nil)
	if res.Err != nil {
		t.Fatalf("Execute: %v", res.Err)
	}
	if len(res.Output) != maxOutput+len("...(truncated)") {
		t.Errorf("len(Output) = %d", len(res.Output))
	}
}

func TestHookEnv_Sorted(t *testing.T) {
	got := hookEnv(map[string]string{"MOTION_SOURCE": "a", "MOTION_EVENT": "b", "MOTION_AXIS_X": "1"})
	want := []string{"MOTION_AXIS_X=1", "MOTION_EVENT=b", "MOTION_SOURCE=a"}
	if !slices.Equal(got, want) {
		t.Errorf("hookEnv = %v, want %v", got, want)
	}
}
