package mirror

import (
	"context"
	"errors"
	"sync"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/devices"
	"github.com/odvcencio/respview/pkg/devtools"
)

// Device is the live state of one emulated viewport. Its target is fixed at
// provisioning. mu serializes flag changes and command sequences between the
// capture loop and input handling.
type Device struct {
	ID     string
	Target browser.TargetID
	Preset devices.Preset

	mu          sync.Mutex
	client      *devtools.Client
	attached    bool
	initialized bool
}

// DeviceInfo is a point-in-time view of a Device.
type DeviceInfo struct {
	ID          string           `json:"id"`
	Target      browser.TargetID `json:"target"`
	Attached    bool             `json:"attached"`
	Initialized bool             `json:"initialized"`
}

func newDevice(id string, target browser.TargetID, preset devices.Preset) *Device {
	return &Device{ID: id, Target: target, Preset: preset}
}

// Info snapshots the device flags.
func (d *Device) Info() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceInfo{ID: d.ID, Target: d.Target, Attached: d.attached, Initialized: d.initialized}
}

func (d *Device) clip() devtools.Clip {
	return devtools.Clip{Width: float64(d.Preset.Width), Height: float64(d.Preset.Height), Scale: 1}
}

// clamp bounds a point to the preset viewport.
func (d *Device) clamp(x, y float64) (float64, float64) {
	return clampRange(x, 0, float64(d.Preset.Width-1)), clampRange(y, 0, float64(d.Preset.Height-1))
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// The methods below require d.mu to be held.

func (r *Runtime) ensureAttached(ctx context.Context, d *Device) error {
	if d.attached {
		return nil
	}
	conn, err := r.host.Attach(ctx, d.Target)
	if err != nil {
		// Deadline and stop cancellations are reported by the caller.
		if ctx.Err() == nil {
			r.status(d.ID, StatusError, err.Error())
		}
		return err
	}
	d.client = devtools.New(conn)
	d.attached = true
	return nil
}

func (r *Runtime) applyEmulation(ctx context.Context, d *Device) error {
	if d.client == nil {
		return browser.ErrDetached
	}
	p := d.Preset
	err := d.client.SetDeviceMetrics(ctx, devtools.Metrics{
		Width:             p.Width,
		Height:            p.Height,
		DeviceScaleFactor: p.PixelRatio,
		Mobile:            p.IsMobile(),
	})
	if err != nil {
		return err
	}
	if err := d.client.SetUserAgent(ctx, p.UserAgent); err != nil {
		return err
	}
	return d.client.SetTouchEmulation(ctx, p.IsMobile(), r.opts.MaxTouchPoints)
}

func (r *Runtime) navigate(ctx context.Context, d *Device) error {
	if err := d.client.EnableDomains(ctx); err != nil {
		return err
	}
	return d.client.Navigate(ctx, r.session.URL)
}

// ensureInitialized attaches, emulates and loads the session URL once.
func (r *Runtime) ensureInitialized(ctx context.Context, d *Device) error {
	if d.initialized {
		return nil
	}
	t := r.opts.Timings
	r.status(d.ID, StatusStarting, "")

	if err := WithDeadline(ctx, "debugger.attach", t.AttachTimeout, func(ctx context.Context) error {
		return r.ensureAttached(ctx, d)
	}); err != nil {
		return err
	}
	if err := WithDeadline(ctx, "applyEmulation", t.EmulationTimeout, func(ctx context.Context) error {
		return r.applyEmulation(ctx, d)
	}); err != nil {
		return err
	}
	r.activate(ctx, d)
	if err := WithDeadline(ctx, "navigate", t.NavigateTimeout, func(ctx context.Context) error {
		return r.navigate(ctx, d)
	}); err != nil {
		return err
	}
	if err := sleep(ctx, t.SettleDelay); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

// activate brings the target to front so it keeps painting. Best effort.
func (r *Runtime) activate(ctx context.Context, d *Device) {
	if err := r.host.ActivateTarget(ctx, d.Target); err != nil && !errors.Is(err, context.Canceled) {
		r.log.WithDevice(d.ID).Debug("activate target failed", "error", err.Error())
	}
}
