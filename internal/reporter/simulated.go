package reporter

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// SimulatedPlatform is an in-process Platform. Motion events are injected
// with Emit; the permission prompt resolves to Permission or fails with
// PermissionErr. If Prompt is non-nil, RequestPermission blocks on it and
// uses the received value instead.
type SimulatedPlatform struct {
	Cap           model.Capability
	Permission    string
	PermissionErr error
	Prompt        chan string

	mu        sync.Mutex
	listeners []func(*model.Acceleration)
	prompts   int
}

var _ Platform = (*SimulatedPlatform)(nil)

func (p *SimulatedPlatform) Capability() model.Capability { return p.Cap }

func (p *SimulatedPlatform) RequestPermission(ctx context.Context) (string, error) {
	p.mu.Lock()
	p.prompts++
	p.mu.Unlock()
	if p.PermissionErr != nil {
		return "", p.PermissionErr
	}
	if p.Prompt != nil {
		select {
		case v := <-p.Prompt:
			return v, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.Permission, nil
}

func (p *SimulatedPlatform) Listen(fn func(*model.Acceleration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Emit delivers one motion event to every listener.
func (p *SimulatedPlatform) Emit(acc *model.Acceleration) {
	p.mu.Lock()
	listeners := append([]func(*model.Acceleration){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(acc)
	}
}

// Listeners returns the number of subscribed listeners.
func (p *SimulatedPlatform) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Prompts returns how many times the permission prompt was shown.
func (p *SimulatedPlatform) Prompts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}
