package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/observability"
)

// RegistryConfig configures the session registry.
type RegistryConfig struct {
	Host    browser.Host
	Presets PresetLookup
	Options Options
	Logger  *observability.Logger
	// Now stamps captured frames. Defaults to time.Now.
	Now func() time.Time
}

// Registry owns every live Runtime, keyed by session id. At most one runtime
// exists per id.
type Registry struct {
	host    browser.Host
	presets PresetLookup
	opts    Options
	log     *observability.Logger
	now     func() time.Time

	// locks serialize Start and Stop per session id so a restart fully stops
	// the stale runtime before the new one is registered. Different ids never
	// wait on each other.
	locksMu sync.Mutex
	locks   map[string]*idLock

	mu       sync.RWMutex
	runtimes map[string]*Runtime
}

// NewRegistry creates a registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Host == nil {
		return nil, errors.New("mirror registry requires a browser host")
	}
	if cfg.Presets == nil {
		return nil, errors.New("mirror registry requires a preset catalog")
	}
	opts := cfg.Options.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		host:     cfg.Host,
		presets:  cfg.Presets,
		opts:     opts,
		log:      log,
		now:      now,
		locks:    make(map[string]*idLock),
		runtimes: make(map[string]*Runtime),
	}, nil
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the lifecycle lock for id and returns its release.
func (r *Registry) lock(id string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &idLock{}
		r.locks[id] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.locksMu.Unlock()
	}
}

// Start provisions a runtime for session under id and begins capturing into
// ch. An existing runtime with the same id is stopped first. If provisioning
// fails, every requested device gets an error status and nothing is
// registered. Provisioning is bounded by Options.ProvisionTimeout.
func (r *Registry) Start(ctx context.Context, id string, session Session, ch Channel) (*Runtime, error) {
	defer r.lock(id)()

	// Outbound messages carry the id the runtime is registered under.
	session.ID = id

	if err := r.stopLocked(ctx, id); err != nil {
		r.log.WithSession(id).Warn("stale session teardown incomplete", "error", err.Error())
	}

	rt := newRuntime(id, session, ch, r.host, r.opts, r.log, r.now)
	err := WithDeadline(ctx, "provision", r.opts.ProvisionTimeout, func(ctx context.Context) error {
		return rt.provision(ctx, r.presets)
	})
	if err != nil {
		sessionStarts.WithLabelValues("error").Inc()
		r.log.ProvisionFailed(id, err)
		for _, deviceID := range session.Devices {
			sendTo(ch, r.opts.SendTimeout, r.log, StatusMessage{
				SessionID: id,
				DeviceID:  deviceID,
				Status:    StatusError,
				Message:   err.Error(),
			})
		}
		return nil, fmt.Errorf("start session %s: %w", id, err)
	}

	r.mu.Lock()
	r.runtimes[id] = rt
	r.mu.Unlock()
	activeSessions.Inc()
	sessionStarts.WithLabelValues("ok").Inc()

	ids := make([]string, 0, len(rt.order))
	for _, d := range rt.order {
		ids = append(ids, d.ID)
	}
	r.log.SessionStarted(id, session.URL, ids)

	rt.startCapture()
	return rt, nil
}

// Stop tears down the runtime registered under id. Stopping an unknown id is
// a no-op.
func (r *Registry) Stop(ctx context.Context, id string) error {
	defer r.lock(id)()
	return r.stopLocked(ctx, id)
}

func (r *Registry) stopLocked(ctx context.Context, id string) error {
	r.mu.RLock()
	rt, ok := r.runtimes[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	err := rt.stop(ctx)

	r.mu.Lock()
	delete(r.runtimes, id)
	r.mu.Unlock()
	activeSessions.Dec()
	return err
}

// Get returns the runtime registered under id.
func (r *Registry) Get(id string) (*Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.runtimes[id]
	return rt, ok
}

// List snapshots every registered runtime, ordered by id.
func (r *Registry) List() []RuntimeInfo {
	r.mu.RLock()
	runtimes := make([]*Runtime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		runtimes = append(runtimes, rt)
	}
	r.mu.RUnlock()

	out := make([]RuntimeInfo, 0, len(runtimes))
	for _, rt := range runtimes {
		out = append(out, rt.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Close stops every runtime.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.runtimes))
	for id := range r.runtimes {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := r.Stop(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
