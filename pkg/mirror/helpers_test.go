package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/respview/pkg/browser/browsertest"
	"github.com/odvcencio/respview/pkg/devices"
)

const (
	mobileID  = "mobile-360x800"
	tabletID  = "tablet-768x1024"
	desktopID = "desktop-1920x1080"
)

// recorder is a Channel that keeps every message it is sent.
type recorder struct {
	mu   sync.Mutex
	msgs []Outbound
}

func (r *recorder) Send(_ context.Context, msg Outbound) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outbound(nil), r.msgs...)
}

func (r *recorder) forDevice(deviceID string) []Outbound {
	var out []Outbound
	for _, m := range r.all() {
		if _, d := m.Scope(); d == deviceID {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) statuses(deviceID string, status Status) []StatusMessage {
	var out []StatusMessage
	for _, m := range r.forDevice(deviceID) {
		if s, ok := m.(StatusMessage); ok && s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) frames(deviceID string) []FrameMessage {
	var out []FrameMessage
	for _, m := range r.forDevice(deviceID) {
		if f, ok := m.(FrameMessage); ok {
			out = append(out, f)
		}
	}
	return out
}

func testOptions() Options {
	o := DefaultOptions()
	o.Timings = Timings{
		CaptureInterval:  time.Hour,
		AttachTimeout:    250 * time.Millisecond,
		EmulationTimeout: 250 * time.Millisecond,
		NavigateTimeout:  250 * time.Millisecond,
		SettleDelay:      time.Millisecond,
		PaintDelay:       time.Millisecond,
		CaptureTimeout:   100 * time.Millisecond,
	}
	o.SendTimeout = 100 * time.Millisecond
	o.TeardownTimeout = time.Second
	return o
}

func newTestRegistry(t *testing.T, host *browsertest.Host, opts Options) *Registry {
	t.Helper()
	catalog, err := devices.NewCatalog()
	require.NoError(t, err)
	reg, err := NewRegistry(RegistryConfig{Host: host, Presets: catalog, Options: opts})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func testSession(id string, deviceIDs ...string) Session {
	return Session{
		ID:        id,
		URL:       "https://example.com/",
		Devices:   deviceIDs,
		Mode:      ModeMirror,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func waitLive(t *testing.T, rec *recorder, deviceIDs ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, id := range deviceIDs {
			if len(rec.statuses(id, StatusLive)) == 0 {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func waitIdle(t *testing.T, rt *Runtime) {
	t.Helper()
	require.Eventually(t, func() bool { return !rt.ticking.Load() }, 2*time.Second, 5*time.Millisecond)
}
