// Package reporter implements the browser-side motion reporter: a one-shot
// permission flow, a motion-event listener, axis rendering and a
// fire-and-forget POST of every complete sample.
//
// The host environment is reached only through the Platform, View and Sender
// interfaces, so the same Reporter drives the js/wasm browser binding, the
// CLI simulator and the tests.
package reporter

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// Status messages shown to the user.
const (
	StatusUnsupported    = "DeviceMotionEvent not supported by this browser."
	StatusPrompt         = "Click button to request motion permission."
	StatusGranted        = "Permission granted. Listening for motion..."
	StatusNotGranted     = "Permission not granted."
	StatusPermissionErr  = "Permission error: "
	StatusUngated        = "Listening for motion (no specific permission needed or available)..."
	StatusIncomplete     = "Accelerometer data not available or incomplete."
	StatusSent           = "Data sent successfully!"
	StatusSendErr        = "Error sending data: "
	StatusFetchErr       = "Fetch error: "
	permissionGrantedVal = "granted"
)

// Platform is the host's motion capability.
type Platform interface {
	// Capability reports which motion support the host exposes.
	Capability() model.Capability
	// RequestPermission runs the platform permission prompt and returns the
	// resolved permission value ("granted", "denied", ...). Only called on
	// gated platforms. It blocks until the prompt resolves or rejects.
	RequestPermission(ctx context.Context) (string, error)
	// Listen subscribes fn to every delivered motion event. A nil vector or
	// nil component means the platform did not provide that value.
	Listen(fn func(*model.Acceleration))
}

// View is the user-facing surface: three axis fields, a status line and the
// single permission-request control.
type View interface {
	SetAxes(x, y, z string)
	SetStatus(msg string)
	HideControl()
	// OnActivate registers fn as the control's activation handler.
	OnActivate(fn func())
}

// State is a snapshot of the reporter's page-wide state.
type State struct {
	Permission model.PermissionState
	Status     string
	X, Y, Z    string
	Listening  bool
	Hidden     bool
}

// Reporter forwards motion samples from a Platform to a Sender and renders
// progress on a View.
type Reporter struct {
	platform Platform
	view     View
	sender   Sender
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	requested bool

	inflight sync.WaitGroup
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the diagnostic channel. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// New returns a Reporter in the unknown permission state.
func New(p Platform, v View, s Sender, opts ...Option) *Reporter {
	r := &Reporter{
		platform: p,
		view:     v,
		sender:   s,
		logger:   slog.Default(),
		state:    State{Permission: model.PermissionUnknown},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Initialize checks motion support once the page is ready. Unsupported
// platforms get a terminal status and a hidden control; otherwise the
// control's activation is bound to RequestPermission.
func (r *Reporter) Initialize() {
	if r.platform.Capability() == model.CapabilityUnsupported {
		r.setStatus(StatusUnsupported)
		r.hideControl()
		return
	}
	r.view.OnActivate(func() {
		r.RequestPermission(context.Background())
	})
	r.setStatus(StatusPrompt)
}

// RequestPermission decides the permission state. It runs at most once per
// Reporter; later calls are ignored, as is any call on an unsupported
// platform. On gated platforms it blocks until the prompt settles.
func (r *Reporter) RequestPermission(ctx context.Context) {
	capability := r.platform.Capability()
	if capability == model.CapabilityUnsupported {
		return
	}
	r.mu.Lock()
	if r.requested {
		r.mu.Unlock()
		return
	}
	r.requested = true
	r.mu.Unlock()

	if capability == model.CapabilityUngated {
		r.setPermission(model.PermissionNotRequired, StatusUngated)
		r.listen()
		r.hideControl()
		return
	}

	result, err := r.platform.RequestPermission(ctx)
	switch {
	case err != nil:
		r.setPermission(model.PermissionDenied, StatusPermissionErr+err.Error())
		r.logger.Error("motion permission request failed", "err", err)
	case result == permissionGrantedVal:
		r.setPermission(model.PermissionGranted, StatusGranted)
		r.listen()
	default:
		r.setPermission(model.PermissionDenied, StatusNotGranted)
	}
	r.hideControl()
}

// HandleMotion processes one motion event. Incomplete vectors only update
// the status; complete ones are rendered and sent asynchronously.
func (r *Reporter) HandleMotion(acc *model.Acceleration) {
	sample, err := acc.Sample()
	if err != nil {
		r.setStatus(StatusIncomplete)
		return
	}

	x, y, z := FormatAxis(sample.X), FormatAxis(sample.Y), FormatAxis(sample.Z)
	r.mu.Lock()
	r.state.X, r.state.Y, r.state.Z = x, y, z
	r.view.SetAxes(x, y, z)
	r.mu.Unlock()

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.send(sample)
	}()
}

// send transmits one sample and reports the outcome. Whichever response
// resolves last owns the status line.
func (r *Reporter) send(sample model.MotionSample) {
	resp, err := r.sender.Send(context.Background(), sample)
	if err != nil {
		r.setStatus(StatusFetchErr + err.Error())
		r.logger.Error("fetch error", "err", err)
		return
	}
	if !resp.OK() {
		r.setStatus(StatusSendErr + resp.StatusText)
		r.logger.Error("error sending data",
			"status", resp.StatusCode,
			"status_text", resp.StatusText,
		)
		return
	}
	r.setStatus(StatusSent)
}

// Wait blocks until every in-flight send has resolved.
func (r *Reporter) Wait() {
	r.inflight.Wait()
}

// State returns a snapshot of the current state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// FormatAxis renders an axis value with two decimals.
func FormatAxis(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (r *Reporter) setStatus(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Status = msg
	r.view.SetStatus(msg)
}

func (r *Reporter) setPermission(p model.PermissionState, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Permission = p
	r.state.Status = msg
	r.view.SetStatus(msg)
}

func (r *Reporter) listen() {
	r.mu.Lock()
	if r.state.Listening {
		r.mu.Unlock()
		return
	}
	r.state.Listening = true
	r.mu.Unlock()
	r.platform.Listen(r.HandleMotion)
}

func (r *Reporter) hideControl() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Hidden {
		return
	}
	r.state.Hidden = true
	r.view.HideControl()
}
