//go:build js && wasm

// Package browser binds the reporter to a real browser: the
// DeviceMotionEvent API for the platform and DOM elements for the view.
package browser

import (
	"context"
	"errors"

	"syscall/js"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/reporter"
)

// Element IDs the reporter page must provide.
const (
	IDX       = "xVal"
	IDY       = "yVal"
	IDZ       = "zVal"
	IDStatus  = "status"
	IDControl = "permissionButton"
)

// Platform reads motion events from the window's DeviceMotionEvent API.
type Platform struct {
	window js.Value
	funcs  []js.Func
}

var _ reporter.Platform = (*Platform)(nil)

// NewPlatform returns a Platform bound to the global window.
func NewPlatform() *Platform {
	return &Platform{window: js.Global()}
}

func (p *Platform) Capability() model.Capability {
	dme := p.window.Get("DeviceMotionEvent")
	if dme.IsUndefined() || dme.IsNull() {
		return model.CapabilityUnsupported
	}
	if dme.Get("requestPermission").Type() == js.TypeFunction {
		return model.CapabilityGated
	}
	return model.CapabilityUngated
}

// RequestPermission calls DeviceMotionEvent.requestPermission() and waits for
// the promise to settle. It must not be called from a JS callback goroutine.
func (p *Platform) RequestPermission(ctx context.Context) (string, error) {
	promise := p.window.Get("DeviceMotionEvent").Call("requestPermission")
	v, err := await(ctx, promise)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (p *Platform) Listen(fn func(*model.Acceleration)) {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			fn(nil)
			return nil
		}
		fn(acceleration(args[0].Get("accelerationIncludingGravity")))
		return nil
	})
	p.funcs = append(p.funcs, cb)
	p.window.Call("addEventListener", "devicemotion", cb)
}

// Release frees the registered JS callbacks.
func (p *Platform) Release() {
	for _, f := range p.funcs {
		f.Release()
	}
	p.funcs = nil
}

func acceleration(v js.Value) *model.Acceleration {
	if v.IsUndefined() || v.IsNull() {
		return nil
	}
	return &model.Acceleration{
		X: component(v.Get("x")),
		Y: component(v.Get("y")),
		Z: component(v.Get("z")),
	}
}

func component(v js.Value) *float64 {
	if v.Type() != js.TypeNumber {
		return nil
	}
	f := v.Float()
	return &f
}

// await blocks until promise settles. Rejections are returned as errors
// carrying the JS value's string form.
func await(ctx context.Context, promise js.Value) (js.Value, error) {
	type result struct {
		v   js.Value
		err error
	}
	ch := make(chan result, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		ch <- result{v: v}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		msg := "unknown error"
		if len(args) > 0 {
			msg = args[0].Call("toString").String()
		}
		ch <- result{err: errors.New(msg)}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}

// View renders reporter state into the page's DOM.
type View struct {
	x, y, z, status, control js.Value
	funcs                    []js.Func
}

var _ reporter.View = (*View)(nil)

// NewView looks up the reporter elements in document.
func NewView(document js.Value) *View {
	byID := func(id string) js.Value { return document.Call("getElementById", id) }
	return &View{
		x:       byID(IDX),
		y:       byID(IDY),
		z:       byID(IDZ),
		status:  byID(IDStatus),
		control: byID(IDControl),
	}
}

func (v *View) SetAxes(x, y, z string) {
	v.x.Set("textContent", x)
	v.y.Set("textContent", y)
	v.z.Set("textContent", z)
}

func (v *View) SetStatus(msg string) {
	v.status.Set("textContent", msg)
}

func (v *View) HideControl() {
	v.control.Get("style").Set("display", "none")
}

// OnActivate binds fn to the control's click. fn runs on its own goroutine
// because it may block on the permission promise.
func (v *View) OnActivate(fn func()) {
	cb := js.FuncOf(func(js.Value, []js.Value) any {
		go fn()
		return nil
	})
	v.funcs = append(v.funcs, cb)
	v.control.Call("addEventListener", "click", cb)
}

// OnReady runs fn once the document is parsed.
func OnReady(document js.Value, fn func()) {
	if document.Get("readyState").String() != "loading" {
		fn()
		return
	}
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		cb.Release()
		fn()
		return nil
	})
	document.Call("addEventListener", "DOMContentLoaded", cb)
}
