// Package client provides a transport-agnostic interface for the motion relay
// and HTTP/JSON and gRPC implementations of it.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/presence"
)

// UserAgent identifies CLI traffic in server logs and the reporter roster.
const UserAgent = "motionrelay-cli"

// MotionClient is the interface the CLI uses to talk to a relay server. It is
// implemented by HTTPClient (default) and GRPCClient.
type MotionClient interface {
	// Send reports one sample as if it came from a device.
	Send(ctx context.Context, s model.MotionSample) error
	// Latest returns the most recent reading. A server with no readings
	// yields an error satisfying IsNotFound.
	Latest(ctx context.Context) (*model.Reading, error)
	// Watch calls fn for every reading the server accepts until ctx is
	// cancelled or the stream fails. A cancelled ctx returns nil.
	Watch(ctx context.Context, source string, fn func(*model.Reading)) error
	Health(ctx context.Context) (string, error)

	Close() error
}

// ListReadingsRequest holds parameters for listing readings.
type ListReadingsRequest struct {
	Source string
	Since  time.Time
	Limit  int
}

// ListReadingsResponse is the response from ListReadings.
type ListReadingsResponse struct {
	Readings []*model.Reading `json:"readings"`
	Total    int              `json:"total"`
}

// ReportersResponse is the response from Reporters.
type ReportersResponse struct {
	Reporters []presence.Entry `json:"reporters"`
}
