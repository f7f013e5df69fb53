package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/devices"
	"github.com/odvcencio/respview/pkg/observability"
)

// ErrNoDevices is returned when none of the requested devices could be
// provisioned.
var ErrNoDevices = errors.New("no device targets were created")

// PresetLookup resolves device preset ids.
type PresetLookup interface {
	Lookup(id string) (devices.Preset, bool)
}

// provision creates the display surface and one target per known device.
// The first device reuses the surface's initial target. On failure
// everything already created is released.
func (r *Runtime) provision(ctx context.Context, presets PresetLookup) (err error) {
	ctx, span := observability.StartSpan(ctx, "mirror.provision",
		observability.AttrSessionID.String(r.key),
		observability.AttrURL.String(r.session.URL),
	)
	defer func() { observability.EndSpan(span, err) }()

	surface, err := r.host.CreateSurface(ctx, r.opts.Surface)
	if err != nil {
		return fmt.Errorf("create display surface: %w", err)
	}
	r.surface = surface
	defer func() {
		if err != nil {
			r.release()
		}
	}()

	type wanted struct {
		id     string
		preset devices.Preset
	}
	var known []wanted
	seen := make(map[string]bool, len(r.session.Devices))
	for _, id := range r.session.Devices {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := presets.Lookup(id); ok {
			known = append(known, wanted{id: id, preset: p})
		}
	}
	if len(known) == 0 {
		return ErrNoDevices
	}

	existing, err := r.host.ListTargets(ctx, surface)
	if err != nil {
		return fmt.Errorf("list surface targets: %w", err)
	}
	hostTarget, ok := browser.PickHost(existing)
	if !ok {
		return ErrNoDevices
	}

	if err := r.host.NavigateTarget(ctx, hostTarget, r.session.URL); err != nil {
		r.log.WithDevice(known[0].id).Debug("initial navigation failed", "error", err.Error())
	}
	r.addDevice(newDevice(known[0].id, hostTarget, known[0].preset))

	for _, w := range known[1:] {
		target, err := r.host.CreateTarget(ctx, surface, r.session.URL, true)
		if err != nil {
			return fmt.Errorf("create target for %s: %w", w.id, err)
		}
		r.addDevice(newDevice(w.id, target, w.preset))
	}
	return nil
}

// release frees whatever provision managed to create.
func (r *Runtime) release() {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.TeardownTimeout)
	defer cancel()
	_ = runTeardown(ctx, r.log, r.teardownSteps())
}
