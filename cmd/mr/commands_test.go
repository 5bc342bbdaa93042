package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/client"
	"github.com/alfredjeanlab/motionrelay/internal/config"
	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/hooks"
	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/presence"
	"github.com/alfredjeanlab/motionrelay/internal/reporter"
	"github.com/alfredjeanlab/motionrelay/internal/server"
	"github.com/alfredjeanlab/motionrelay/internal/store/memory"
)

func TestParseSample(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    model.MotionSample
		wantErr string
	}{
		{name: "integers", args: []string{"1", "-2", "9"}, want: model.MotionSample{X: 1, Y: -2, Z: 9}},
		{name: "decimals", args: []string{"0.12", "-0.5", "9.81"}, want: model.MotionSample{X: 0.12, Y: -0.5, Z: 9.81}},
		{name: "not a number", args: []string{"1", "abc", "3"}, wantErr: `invalid y value "abc"`},
		{name: "infinite", args: []string{"Inf", "0", "0"}, wantErr: "x: must be a finite number"},
		{name: "nan", args: []string{"0", "0", "NaN"}, wantErr: "z: must be a finite number"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseSample(tc.args)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSimulatedVector(t *testing.T) {
	const rate = 10.0
	for i := range 40 {
		acc := simulatedVector(i, rate, 3)
		s, err := acc.Sample()
		if err != nil {
			t.Fatalf("event %d incomplete: %v", i, err)
		}
		if math.Abs(s.X) > 3.1 || math.Abs(s.Y) > 1.6 {
			t.Errorf("event %d out of range: %s", i, s)
		}
		if math.Abs(s.Z-standardGravity) > 0.06 {
			t.Errorf("event %d z = %v, want ~%v", i, s.Z, standardGravity)
		}
	}
	// A quarter period at 0.5 Hz is half a second, i.e. rate/2 events.
	if x := simulatedVector(int(rate/2), rate, 3).X; *x < 2.9 {
		t.Errorf("x at quarter period = %v, want near amplitude", *x)
	}
}

func TestConsoleView(t *testing.T) {
	var buf bytes.Buffer
	v := newConsoleView(&buf, false)

	v.SetAxes("1.00", "2.00", "3.00")
	v.SetStatus(reporter.StatusSent)
	v.SetStatus(reporter.StatusSent)
	v.SetStatus(reporter.StatusSendErr + "Bad Request")
	v.SetStatus(reporter.StatusFetchErr + "connection refused")
	v.SetStatus(reporter.StatusIncomplete)

	sent, failed := v.counts()
	if sent != 2 || failed != 2 {
		t.Errorf("counts = %d sent, %d failed; want 2, 2", sent, failed)
	}
	if got := strings.Count(buf.String(), reporter.StatusSent); got != 1 {
		t.Errorf("repeated status printed %d times, want 1:\n%s", got, buf.String())
	}
	if strings.Contains(buf.String(), "x=1.00") {
		t.Error("axes printed without verbose")
	}
}

func startRelay(t *testing.T) (*memory.Store, string) {
	t.Helper()
	st := memory.New(100)
	ms := server.NewMotionServer(st, &events.NoopPublisher{},
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ts := httptest.NewServer(ms.NewHTTPHandler(""))
	t.Cleanup(ts.Close)
	return st, ts.URL
}

func runSimulate(t *testing.T, flags map[string]string) (string, error) {
	t.Helper()
	for k, v := range flags {
		if err := simulateCmd.Flags().Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	t.Cleanup(func() {
		for k := range flags {
			f := simulateCmd.Flags().Lookup(k)
			_ = f.Value.Set(f.DefValue)
		}
	})
	var out bytes.Buffer
	simulateCmd.SetOut(&out)
	err := simulateCmd.RunE(simulateCmd, nil)
	return out.String(), err
}

func TestSimulateAgainstRelay(t *testing.T) {
	st, url := startRelay(t)
	httpURL = url

	out, err := runSimulate(t, map[string]string{"count": "5", "rate": "200"})
	if err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "emitted 5 events: 5 sent, 0 failed") {
		t.Errorf("summary missing:\n%s", out)
	}
	_, total, err := st.ListReadings(context.Background(), model.ReadingFilter{})
	if err != nil || total != 5 {
		t.Errorf("stored %d readings (err %v), want 5", total, err)
	}
}

func TestSimulate_GapsAndGatedPermission(t *testing.T) {
	st, url := startRelay(t)
	httpURL = url

	out, err := runSimulate(t, map[string]string{"count": "4", "rate": "200", "gap-every": "2", "gated": "true"})
	if err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	if !strings.Contains(out, reporter.StatusGranted) {
		t.Errorf("permission status missing:\n%s", out)
	}
	if !strings.Contains(out, "emitted 4 events: 2 sent") {
		t.Errorf("summary wrong:\n%s", out)
	}
	_, total, _ := st.ListReadings(context.Background(), model.ReadingFilter{})
	if total != 2 {
		t.Errorf("stored %d readings, want 2", total)
	}
}

func TestSimulate_RelayDown(t *testing.T) {
	_, url := startRelay(t)
	httpURL = url + "/missing"

	_, err := runSimulate(t, map[string]string{"count": "2", "rate": "200"})
	if err == nil || !strings.Contains(err.Error(), "2 samples failed") {
		t.Fatalf("err = %v, want failure count", err)
	}
}

func TestSendCommand(t *testing.T) {
	st, url := startRelay(t)
	httpClient = client.NewHTTPClient(url, "")
	motionClient = httpClient

	if err := sendCmd.RunE(sendCmd, []string{"0.5", "-1", "9.8"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	r, err := st.LatestReading(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Sample() != (model.MotionSample{X: 0.5, Y: -1, Z: 9.8}) {
		t.Errorf("stored %s", r.Sample())
	}
	if r.UserAgent != client.UserAgent {
		t.Errorf("UserAgent = %q", r.UserAgent)
	}
}

func TestPrintStats(t *testing.T) {
	first := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	last := first.Add(1500 * time.Millisecond)
	st := &model.Stats{
		Count: 3,
		X:     model.AxisStats{Min: -1, Max: 1, Mean: 0},
		Y:     model.AxisStats{Min: 0, Max: 2, Mean: 1},
		Z:     model.AxisStats{Min: 9.7, Max: 9.9, Mean: 9.8},
		First: &first,
		Last:  &last,
	}
	var buf bytes.Buffer
	printStats(&buf, st)
	out := buf.String()
	for _, want := range []string{"Readings: 3", "AXIS", "9.80", "(1.5s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printStats(&buf, &model.Stats{})
	if strings.TrimSpace(buf.String()) != "Readings: 0" {
		t.Errorf("empty stats = %q", buf.String())
	}
}

func TestPrintReporters(t *testing.T) {
	var buf bytes.Buffer
	printReporters(&buf, nil)
	if strings.TrimSpace(buf.String()) != "no reporters" {
		t.Errorf("empty roster = %q", buf.String())
	}

	buf.Reset()
	printReporters(&buf, []presence.Entry{
		{Source: "10.0.0.2", Samples: 42, RatePerSec: 9.5, IdleSecs: 1, UserAgent: "Safari"},
		{Source: "10.0.0.3", Samples: 7, Idle: true, IdleSecs: 180},
	})
	out := buf.String()
	for _, want := range []string{"10.0.0.2", "active", "9.5/s", "Safari", "10.0.0.3", "idle", "3m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestOpenPublisherAndStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{HistorySize: 7, HookShakeThreshold: 5}

	pub, err := openPublisher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pub.(*events.NoopPublisher); !ok {
		t.Errorf("publisher = %T, want *events.NoopPublisher", pub)
	}

	cfg.HookIdle = "true"
	pub, err = openPublisher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pub.(*hooks.Dispatcher); !ok {
		t.Errorf("publisher = %T, want *hooks.Dispatcher", pub)
	}
	pub.Close()

	cfg.KafkaBrokers, cfg.KafkaTopic = []string{"127.0.0.1:1"}, "motion.readings"
	pub, err = openPublisher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pub.(*events.QueuedPublisher); !ok {
		t.Errorf("publisher = %T, want broker publishers behind *events.QueuedPublisher", pub)
	}
	pub.Close()
	cfg.KafkaBrokers = nil

	st, err := openStore(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	mem, ok := st.(*memory.Store)
	if !ok || mem.Capacity() != 7 {
		t.Errorf("store = %T, want memory store of capacity 7", st)
	}

	if s := startSync(cfg, st, logger); s != nil {
		t.Error("sync scheduler started without an interval")
	}
}
