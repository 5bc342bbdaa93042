package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// Event topic constants
const (
	TopicSampleReceived = "motion.sample.received"
	TopicSampleRejected = "motion.sample.rejected"

	// Reporter presence events
	TopicReporterJoined = "motion.reporter.joined"
	TopicReporterIdle   = "motion.reporter.idle"
)

// Event types

type SampleReceived struct {
	Reading *model.Reading `json:"reading"`
}

type SampleRejected struct {
	Source string `json:"source,omitempty"`
	Reason string `json:"reason"`
}

type ReporterJoined struct {
	Source    string    `json:"source"`
	UserAgent string    `json:"user_agent,omitempty"`
	At        time.Time `json:"at"`
}

type ReporterIdle struct {
	Source   string    `json:"source"`
	LastSeen time.Time `json:"last_seen"`
	Samples  int64     `json:"samples"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// EventSource returns the reporter a relay event concerns, or "" for events
// that carry none.
func EventSource(event any) string {
	switch e := event.(type) {
	case SampleReceived:
		if e.Reading != nil {
			return e.Reading.Source
		}
	case SampleRejected:
		return e.Source
	case ReporterJoined:
		return e.Source
	case ReporterIdle:
		return e.Source
	}
	return ""
}
