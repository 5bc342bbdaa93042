package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/store"
)

func reading(i int, source string, at time.Time) *model.Reading {
	return &model.Reading{
		ID:         fmt.Sprintf("mo-%d", i),
		X:          float64(i),
		Y:          -float64(i),
		Z:          9.81,
		Source:     source,
		ReceivedAt: at,
	}
}

func TestStore_EmptyLatest(t *testing.T) {
	s := New(4)
	if _, err := s.LatestReading(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("LatestReading on empty store: err = %v, want ErrNotFound", err)
	}
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 0 || st.First != nil {
		t.Errorf("Stats on empty store = %+v", st)
	}
}

func TestStore_RingEviction(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		if err := s.RecordReading(ctx, reading(i, "a", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("RecordReading: %v", err)
		}
	}

	got, total, err := s.ListReadings(ctx, model.ReadingFilter{})
	if err != nil {
		t.Fatalf("ListReadings: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if fmt.Sprint(ids) != "[mo-5 mo-4 mo-3]" {
		t.Errorf("ids = %v, want newest first [mo-5 mo-4 mo-3]", ids)
	}

	latest, err := s.LatestReading(ctx)
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if latest.ID != "mo-5" {
		t.Errorf("latest = %q, want mo-5", latest.ID)
	}
	if _, err := s.GetReading(ctx, "mo-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("evicted reading still found: err = %v", err)
	}
}

func TestStore_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 6; i++ {
		src := "phone-a"
		if i%2 == 0 {
			src = "phone-b"
		}
		_ = s.RecordReading(ctx, reading(i, src, base.Add(time.Duration(i)*time.Minute)))
	}

	for _, tc := range []struct {
		name      string
		filter    model.ReadingFilter
		wantIDs   string
		wantTotal int
	}{
		{"All", model.ReadingFilter{}, "[mo-6 mo-5 mo-4 mo-3 mo-2 mo-1]", 6},
		{"Limit", model.ReadingFilter{Limit: 2}, "[mo-6 mo-5]", 6},
		{"Source", model.ReadingFilter{Source: "phone-b"}, "[mo-6 mo-4 mo-2]", 3},
		{"Since", model.ReadingFilter{Since: base.Add(5 * time.Minute)}, "[mo-6 mo-5]", 2},
		{"SourceLimit", model.ReadingFilter{Source: "phone-a", Limit: 1}, "[mo-5]", 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, total, err := s.ListReadings(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListReadings: %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if fmt.Sprint(ids) != tc.wantIDs {
				t.Errorf("ids = %v, want %s", ids, tc.wantIDs)
			}
			if total != tc.wantTotal {
				t.Errorf("total = %d, want %d", total, tc.wantTotal)
			}
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	r := reading(1, "a", time.Now())
	_ = s.RecordReading(ctx, r)
	r.X = 100

	got, _ := s.LatestReading(ctx)
	if got.X != 1 {
		t.Errorf("stored reading aliased caller value: X = %v", got.X)
	}
	got.X = 200
	again, _ := s.LatestReading(ctx)
	if again.X != 1 {
		t.Errorf("returned reading aliased store: X = %v", again.X)
	}
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultCapacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		_ = s.RecordReading(ctx, reading(i, "a", base.Add(time.Duration(i)*time.Second)))
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 3 {
		t.Errorf("Count = %d, want 3", st.Count)
	}
	if st.X.Min != 1 || st.X.Max != 3 || st.X.Mean != 2 {
		t.Errorf("X = %+v, want min 1 max 3 mean 2", st.X)
	}
	if st.Y.Min != -3 || st.Y.Max != -1 {
		t.Errorf("Y = %+v", st.Y)
	}
	if !st.First.Equal(base.Add(time.Second)) || !st.Last.Equal(base.Add(3*time.Second)) {
		t.Errorf("First/Last = %v/%v", st.First, st.Last)
	}
}
