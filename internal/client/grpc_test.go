package client

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/server"
	"github.com/alfredjeanlab/motionrelay/internal/store/memory"
)

var (
	_ MotionClient = (*GRPCClient)(nil)
	_ MotionClient = (*HTTPClient)(nil)
)

// newGRPCTestClient runs a real relay over an in-memory listener.
func newGRPCTestClient(t *testing.T, serverToken, clientToken string) *GRPCClient {
	t.Helper()
	ms := server.NewMotionServer(memory.New(10), &events.NoopPublisher{})
	lis := bufconn.Listen(1 << 20)
	srv := server.NewGRPCServer(ms, serverToken)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", clientToken,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGRPCClient_SendLatest(t *testing.T) {
	c := newGRPCTestClient(t, "secret", "secret")
	ctx := context.Background()

	if _, err := c.Latest(ctx); !IsNotFound(err) {
		t.Fatalf("expected not found on empty server, got %v", err)
	}
	if err := c.Send(ctx, model.MotionSample{X: 0.5, Y: -0.5, Z: 9.8}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	r, err := c.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.X != 0.5 || r.Y != -0.5 || r.Z != 9.8 {
		t.Fatalf("unexpected reading %+v", r)
	}
	if r.UserAgent == "" {
		t.Fatal("expected user agent to be recorded")
	}
	status, err := c.Health(ctx)
	if err != nil || status != "ok" {
		t.Fatalf("Health = %q, %v", status, err)
	}
}

func TestGRPCClient_Unauthenticated(t *testing.T) {
	c := newGRPCTestClient(t, "secret", "")
	if err := c.Send(context.Background(), model.MotionSample{}); err == nil {
		t.Fatal("expected auth error")
	}
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health should not need a token: %v", err)
	}
}

func TestGRPCClient_Watch(t *testing.T) {
	c := newGRPCTestClient(t, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *model.Reading, 1)
	done := make(chan error, 1)
	watchCtx, stop := context.WithCancel(ctx)
	go func() {
		done <- c.Watch(watchCtx, "", func(r *model.Reading) {
			select {
			case got <- r:
			default:
			}
		})
	}()

	// The stream subscribes asynchronously; keep sending until one lands.
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	var r *model.Reading
	for r == nil {
		select {
		case r = <-got:
		case <-tick.C:
			if err := c.Send(ctx, model.MotionSample{X: 7}); err != nil {
				t.Fatalf("Send: %v", err)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for watched reading")
		}
	}
	if r.X != 7 {
		t.Fatalf("expected x=7, got %+v", r)
	}

	stop()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v after cancel", err)
	}
}
