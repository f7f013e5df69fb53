package mirror

import (
	"context"
	"fmt"

	"github.com/odvcencio/respview/pkg/devtools"
)

// Reload hard-reloads a device without waiting for the load. The next tick
// re-runs emulation and navigation. Unknown devices are ignored.
func (r *Runtime) Reload(ctx context.Context, deviceID string) (err error) {
	d, ok := r.devices[deviceID]
	if !ok {
		return nil
	}
	defer func() { inputEvents.WithLabelValues("reload", resultLabel(err)).Inc() }()

	ctx, cancel := r.bind(ctx)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if r.stopping.Load() {
		return ErrStopping
	}
	if err := r.ensureAttached(ctx, d); err != nil {
		return err
	}
	d.initialized = false
	return d.client.Reload(ctx, true)
}

// Input forwards a click or wheel event to a device, initializing it first.
// Coordinates are clamped to the device viewport. Unknown devices are ignored.
func (r *Runtime) Input(ctx context.Context, deviceID string, ev InputEvent) (err error) {
	d, ok := r.devices[deviceID]
	if !ok {
		return nil
	}
	defer func() { inputEvents.WithLabelValues(eventKind(ev), resultLabel(err)).Inc() }()

	ctx, cancel := r.bind(ctx)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if r.stopping.Load() {
		return ErrStopping
	}
	if err := r.ensureInitialized(ctx, d); err != nil {
		return err
	}

	switch e := ev.(type) {
	case ClickEvent:
		x, y := d.clamp(e.X, e.Y)
		button := devtools.ButtonLeft
		if e.Button == 2 {
			button = devtools.ButtonRight
		}
		return d.client.Click(ctx, x, y, button)
	case WheelEvent:
		x, y := d.clamp(e.X, e.Y)
		return d.client.Wheel(ctx, x, y, e.DeltaX, e.DeltaY)
	default:
		return fmt.Errorf("%w: input event %T", ErrUnknownMessage, ev)
	}
}
