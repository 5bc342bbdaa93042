package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string      `json:"version"`
	Type         string      `json:"type"`
	Timestamp    time.Time   `json:"timestamp"`
	ReadingCount int         `json:"reading_count"`
	Stats        model.Stats `json:"stats"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes every reading held by the store as JSONL to w, oldest
// first, after a header carrying the reading count and summary stats.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	readings, _, err := s.ListReadings(ctx, model.ReadingFilter{})
	if err != nil {
		return fmt.Errorf("list readings: %w", err)
	}
	slices.Reverse(readings)

	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		ReadingCount: len(readings),
		Stats:        stats,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range readings {
		if err := enc.Encode(record{Type: "reading", Data: r}); err != nil {
			return fmt.Errorf("encode reading %s: %w", r.ID, err)
		}
	}

	return nil
}

// exportHeader decodes the header record at the start of an export.
func exportHeader(data []byte) (header, bool) {
	line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	var h header
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return header{}, false
	}
	return h, true
}
