package server

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/respview/pkg/browser/browsertest"
	"github.com/odvcencio/respview/pkg/bus"
	"github.com/odvcencio/respview/pkg/devices"
	"github.com/odvcencio/respview/pkg/mirror"
	"github.com/odvcencio/respview/pkg/storage"
)

type testEnv struct {
	server    *Server
	http      *httptest.Server
	host      *browsertest.Host
	registry  *mirror.Registry
	store     *storage.Store
	ephemeral *storage.Ephemeral
	bus       *bus.MemoryBus
}

func testOptions() mirror.Options {
	o := mirror.DefaultOptions()
	o.Timings = mirror.Timings{
		CaptureInterval:  time.Hour,
		AttachTimeout:    250 * time.Millisecond,
		EmulationTimeout: 250 * time.Millisecond,
		NavigateTimeout:  250 * time.Millisecond,
		SettleDelay:      time.Millisecond,
		PaintDelay:       time.Millisecond,
		CaptureTimeout:   100 * time.Millisecond,
	}
	o.SendTimeout = 200 * time.Millisecond
	o.TeardownTimeout = time.Second
	return o
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	host := browsertest.New()
	catalog, err := devices.NewCatalog()
	require.NoError(t, err)
	registry, err := mirror.NewRegistry(mirror.RegistryConfig{Host: host, Presets: catalog, Options: testOptions()})
	require.NoError(t, err)

	store, err := storage.New(filepath.Join(t.TempDir(), "respview.db"))
	require.NoError(t, err)
	ephemeral := storage.NewEphemeral(time.Hour)
	memBus := bus.NewMemoryBus()

	srv, err := New(cfg, Deps{
		Registry:  registry,
		Catalog:   catalog,
		Store:     store,
		Ephemeral: ephemeral,
		Bus:       memBus,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		// Go <1.24 shim for t.Context(), which is already canceled when cleanups run.
		closeCtx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = registry.Close(closeCtx)
		_ = memBus.Close()
		_ = store.Close()
	})
	return &testEnv{server: srv, http: ts, host: host, registry: registry, store: store, ephemeral: ephemeral, bus: memBus}
}
