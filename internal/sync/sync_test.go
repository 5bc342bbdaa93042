package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Name() string { return "mock" }

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	ms := seedStore(t, 2)
	dest := &mockDestination{}

	sched := NewScheduler(ms, []Destination{dest}, 20*time.Millisecond, discardLogger())
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	// The store never changed, so only the initial sync writes.
	if writes := dest.writes.Load(); writes != 1 {
		t.Fatalf("expected exactly 1 write, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 3 {
		t.Fatalf("expected header + 2 readings, got %d lines", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(seedStore(t, 0), nil, time.Minute, discardLogger())
	sched.Stop()
}

func TestSync_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t, 1)
	dest1, dest2 := &mockDestination{}, &mockDestination{}
	sched := NewScheduler(ms, []Destination{dest1, dest2}, time.Minute, discardLogger())

	wrote, err := sched.Sync(ctx)
	if err != nil || !wrote {
		t.Fatalf("first sync: wrote=%v err=%v", wrote, err)
	}
	wrote, err = sched.Sync(ctx)
	if err != nil || wrote {
		t.Fatalf("unchanged sync: wrote=%v err=%v", wrote, err)
	}

	if err := ms.RecordReading(ctx, &model.Reading{ID: "mo-new", ReceivedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("record: %v", err)
	}
	wrote, err = sched.Sync(ctx)
	if err != nil || !wrote {
		t.Fatalf("sync after new reading: wrote=%v err=%v", wrote, err)
	}

	if dest1.writes.Load() != 2 || dest2.writes.Load() != 2 {
		t.Fatalf("writes = %d, %d, want 2 each", dest1.writes.Load(), dest2.writes.Load())
	}
}

func TestSync_RetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	failing := &mockDestination{err: errors.New("bucket unreachable")}
	sched := NewScheduler(seedStore(t, 1), []Destination{failing}, time.Minute, discardLogger())

	if _, err := sched.Sync(ctx); err == nil {
		t.Fatal("expected destination error")
	}
	failing.err = nil
	wrote, err := sched.Sync(ctx)
	if err != nil || !wrote {
		t.Fatalf("retry: wrote=%v err=%v", wrote, err)
	}
}

func TestSync_OnlyRewritesStaleDestinations(t *testing.T) {
	ctx := context.Background()
	ok := &mockDestination{}
	flaky := &mockDestination{err: errors.New("push rejected")}
	sched := NewScheduler(seedStore(t, 1), []Destination{ok, flaky}, time.Minute, discardLogger())

	_, err := sched.Sync(ctx)
	if err == nil || !strings.Contains(err.Error(), "mock: push rejected") {
		t.Fatalf("expected named destination error, got %v", err)
	}
	flaky.err = nil
	if wrote, err := sched.Sync(ctx); err != nil || !wrote {
		t.Fatalf("retry: wrote=%v err=%v", wrote, err)
	}
	if ok.writes.Load() != 1 || flaky.writes.Load() != 2 {
		t.Fatalf("writes ok=%d flaky=%d, want 1 and 2", ok.writes.Load(), flaky.writes.Load())
	}
}

func TestSchedulerRun_StopsWithContext(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seedStore(t, 1), []Destination{dest}, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	for dest.writes.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Destination_Write(t *testing.T) {
	fake := &fakeS3{}
	day := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	dest := &S3Destination{
		client: fake,
		bucket: "motion-backups",
		key:    "motion/{date}/readings.jsonl",
		now:    func() time.Time { return day },
	}

	data := []byte(`{"type":"header","reading_count":12}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if *fake.input.Bucket != "motion-backups" || *fake.input.Key != "motion/2026-03-14/readings.jsonl" {
		t.Errorf("put %s/%s", *fake.input.Bucket, *fake.input.Key)
	}
	if *fake.input.ContentType != "application/x-ndjson" {
		t.Errorf("content type = %q", *fake.input.ContentType)
	}
	if fake.input.ChecksumAlgorithm != types.ChecksumAlgorithmSha256 {
		t.Errorf("checksum algorithm = %q", fake.input.ChecksumAlgorithm)
	}
	if got := fake.input.Metadata["reading-count"]; got != "12" {
		t.Errorf("reading-count metadata = %q", got)
	}
	if !bytes.Equal(fake.body, data) {
		t.Errorf("body = %q", fake.body)
	}

	fake.err = errors.New("access denied")
	err := dest.Write(context.Background(), data)
	if err == nil || !strings.Contains(err.Error(), "s3://motion-backups/motion/2026-03-14/readings.jsonl") {
		t.Fatalf("expected put error naming the object, got %v", err)
	}
}

func TestS3Destination_FixedKey(t *testing.T) {
	fake := &fakeS3{}
	dest := &S3Destination{client: fake, bucket: "b", key: "motion/readings.jsonl"}

	if err := dest.Write(context.Background(), []byte("not an export")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if *fake.input.Key != "motion/readings.jsonl" {
		t.Errorf("key = %q", *fake.input.Key)
	}
	if _, ok := fake.input.Metadata["reading-count"]; ok {
		t.Error("reading-count set without a header")
	}
	if dest.Name() != "s3://b/motion/readings.jsonl" {
		t.Errorf("Name() = %q", dest.Name())
	}
}

func TestNewS3Destination_RequiresBucket(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), S3Options{Key: "k"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
