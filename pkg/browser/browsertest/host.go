// Package browsertest provides an in-memory browser.Host for tests. It records
// every host operation and CDP command so tests can assert on ordering, and
// lets tests intercept commands to inject latency or failures.
package browsertest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/respview/pkg/browser"
)

// Op is a recorded host-level operation or CDP command.
type Op struct {
	Kind    string
	Surface browser.SurfaceID
	Target  browser.TargetID
	Method  string
	Params  json.RawMessage
	At      time.Time
}

// HandlerFunc intercepts a CDP command. Returning handled=false falls back to
// the default response.
type HandlerFunc func(ctx context.Context, target browser.TargetID, method string, params json.RawMessage) (res []byte, handled bool, err error)

type surfaceState struct {
	id      browser.SurfaceID
	targets []browser.TargetID
	active  browser.TargetID
	removed bool
}

type targetState struct {
	id      browser.TargetID
	surface browser.SurfaceID
	url     string
	closed  bool
	shots   int
}

// Host is a fake rendering host. The zero value is not usable; call New.
type Host struct {
	mu       sync.Mutex
	seq      int
	surfaces map[browser.SurfaceID]*surfaceState
	targets  map[browser.TargetID]*targetState
	conns    map[browser.TargetID]*Conn
	ops      []Op
	handler  HandlerFunc

	createSurfaceErr  error
	createSurfaceGate chan struct{}
	createTargetErr   error
	attachErr         map[browser.TargetID]error
	initialTargets    int
	initialActive     int
}

// New creates a fake host whose surfaces start with one target.
func New() *Host {
	return &Host{
		surfaces:       make(map[browser.SurfaceID]*surfaceState),
		targets:        make(map[browser.TargetID]*targetState),
		conns:          make(map[browser.TargetID]*Conn),
		attachErr:      make(map[browser.TargetID]error),
		initialTargets: 1,
	}
}

// SetHandler installs a CDP command interceptor.
func (h *Host) SetHandler(fn HandlerFunc) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// FailCreateSurface makes subsequent CreateSurface calls fail with err.
func (h *Host) FailCreateSurface(err error) {
	h.mu.Lock()
	h.createSurfaceErr = err
	h.mu.Unlock()
}

// HoldCreateSurface makes subsequent CreateSurface calls block until release
// is called or their context is done.
func (h *Host) HoldCreateSurface() (release func()) {
	gate := make(chan struct{})
	h.mu.Lock()
	h.createSurfaceGate = gate
	h.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.createSurfaceGate == gate {
				h.createSurfaceGate = nil
			}
			h.mu.Unlock()
			close(gate)
		})
	}
}

// FailCreateTarget makes subsequent CreateTarget calls fail with err.
func (h *Host) FailCreateTarget(err error) {
	h.mu.Lock()
	h.createTargetErr = err
	h.mu.Unlock()
}

// FailAttach makes Attach on target fail with err.
func (h *Host) FailAttach(target browser.TargetID, err error) {
	h.mu.Lock()
	h.attachErr[target] = err
	h.mu.Unlock()
}

// SetInitialTargets controls how many targets a new surface starts with.
func (h *Host) SetInitialTargets(n int) {
	h.mu.Lock()
	h.initialTargets = n
	h.mu.Unlock()
}

// SetInitialActive picks which initial target of a new surface is marked
// active. A negative index leaves none active.
func (h *Host) SetInitialActive(i int) {
	h.mu.Lock()
	h.initialActive = i
	h.mu.Unlock()
}

func (h *Host) record(op Op) {
	op.At = time.Now()
	h.ops = append(h.ops, op)
}

func (h *Host) nextID(prefix string) string {
	h.seq++
	return fmt.Sprintf("%s-%d", prefix, h.seq)
}

func (h *Host) CreateSurface(ctx context.Context, opts browser.SurfaceOptions) (browser.SurfaceID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	gate := h.createSurfaceGate
	h.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createSurfaceErr != nil {
		return "", h.createSurfaceErr
	}
	opts = opts.WithDefaults()
	s := &surfaceState{id: browser.SurfaceID(h.nextID("surface"))}
	for i := 0; i < h.initialTargets; i++ {
		t := &targetState{id: browser.TargetID(h.nextID("target")), surface: s.id, url: opts.InitialURL}
		h.targets[t.id] = t
		s.targets = append(s.targets, t.id)
	}
	if i := h.initialActive; i >= 0 && i < len(s.targets) {
		s.active = s.targets[i]
	}
	h.surfaces[s.id] = s
	h.record(Op{Kind: "create_surface", Surface: s.id})
	return s.id, nil
}

func (h *Host) ListTargets(ctx context.Context, surface browser.SurfaceID) ([]browser.TargetInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.surfaces[surface]
	if !ok || s.removed {
		return nil, browser.ErrSurfaceClosed
	}
	var out []browser.TargetInfo
	for _, id := range s.targets {
		t := h.targets[id]
		if t == nil || t.closed {
			continue
		}
		out = append(out, browser.TargetInfo{ID: id, URL: t.url, Active: id == s.active})
	}
	return out, nil
}

func (h *Host) CreateTarget(ctx context.Context, surface browser.SurfaceID, url string, background bool) (browser.TargetID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createTargetErr != nil {
		return "", h.createTargetErr
	}
	s, ok := h.surfaces[surface]
	if !ok || s.removed {
		return "", browser.ErrSurfaceClosed
	}
	t := &targetState{id: browser.TargetID(h.nextID("target")), surface: surface, url: url}
	h.targets[t.id] = t
	s.targets = append(s.targets, t.id)
	if !background {
		s.active = t.id
	}
	h.record(Op{Kind: "create_target", Surface: surface, Target: t.id})
	return t.id, nil
}

func (h *Host) NavigateTarget(ctx context.Context, target browser.TargetID, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.targets[target]
	if !ok || t.closed {
		return browser.ErrTargetClosed
	}
	t.url = url
	h.record(Op{Kind: "navigate_target", Surface: t.surface, Target: target})
	return nil
}

func (h *Host) ActivateTarget(ctx context.Context, target browser.TargetID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.targets[target]
	if !ok || t.closed {
		return browser.ErrTargetClosed
	}
	if s := h.surfaces[t.surface]; s != nil {
		s.active = target
	}
	h.record(Op{Kind: "activate_target", Surface: t.surface, Target: target})
	return nil
}

func (h *Host) CloseTargets(ctx context.Context, targets []browser.TargetID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for _, id := range targets {
		t, ok := h.targets[id]
		if !ok || t.closed {
			errs = append(errs, browser.WrapHostError("close target", id, browser.ErrTargetClosed))
			continue
		}
		t.closed = true
		h.record(Op{Kind: "close_target", Surface: t.surface, Target: id})
	}
	return errors.Join(errs...)
}

func (h *Host) RemoveSurface(ctx context.Context, surface browser.SurfaceID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.surfaces[surface]
	if !ok || s.removed {
		return browser.ErrSurfaceClosed
	}
	s.removed = true
	for _, id := range s.targets {
		if t := h.targets[id]; t != nil {
			t.closed = true
		}
	}
	h.record(Op{Kind: "remove_surface", Surface: surface})
	return nil
}

func (h *Host) Attach(ctx context.Context, target browser.TargetID) (browser.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.attachErr[target]; err != nil {
		return nil, err
	}
	t, ok := h.targets[target]
	if !ok || t.closed {
		return nil, browser.ErrTargetClosed
	}
	c := &Conn{host: h, target: target, session: proto.TargetSessionID("session-" + string(target))}
	h.conns[target] = c
	h.record(Op{Kind: "attach", Surface: t.surface, Target: target})
	return c, nil
}

func (h *Host) Close() error {
	return nil
}

// Ops returns a copy of the recorded operations.
func (h *Host) Ops() []Op {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Op(nil), h.ops...)
}

// OpsOfKind returns the recorded operations with the given kind.
func (h *Host) OpsOfKind(kind string) []Op {
	var out []Op
	for _, op := range h.Ops() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Commands returns the CDP commands sent to target, in order.
func (h *Host) Commands(target browser.TargetID) []Op {
	var out []Op
	for _, op := range h.Ops() {
		if op.Kind == "call" && op.Target == target {
			out = append(out, op)
		}
	}
	return out
}

// CommandsNamed returns the CDP commands with the given method sent to target.
func (h *Host) CommandsNamed(target browser.TargetID, method string) []Op {
	var out []Op
	for _, op := range h.Commands(target) {
		if op.Method == method {
			out = append(out, op)
		}
	}
	return out
}

// LiveTargets returns targets that have not been closed.
func (h *Host) LiveTargets() []browser.TargetID {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []browser.TargetID
	for _, s := range h.surfaces {
		for _, id := range s.targets {
			if t := h.targets[id]; t != nil && !t.closed {
				out = append(out, id)
			}
		}
	}
	return out
}

// LiveSurfaces returns surfaces that have not been removed.
func (h *Host) LiveSurfaces() []browser.SurfaceID {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []browser.SurfaceID
	for id, s := range h.surfaces {
		if !s.removed {
			out = append(out, id)
		}
	}
	return out
}

// SurfaceTargets returns every target ever created in surface, in creation
// order.
func (h *Host) SurfaceTargets(surface browser.SurfaceID) []browser.TargetID {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.surfaces[surface]; s != nil {
		return append([]browser.TargetID(nil), s.targets...)
	}
	return nil
}

// TargetURL returns the last URL the host loaded into target.
func (h *Host) TargetURL(target browser.TargetID) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t := h.targets[target]; t != nil {
		return t.url
	}
	return ""
}

func (h *Host) call(ctx context.Context, c *Conn, method string, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	t := h.targets[c.target]
	if t == nil || t.closed {
		h.mu.Unlock()
		return nil, browser.ErrTargetClosed
	}
	if c.detached {
		h.mu.Unlock()
		return nil, browser.ErrDetached
	}
	h.record(Op{Kind: "call", Surface: t.surface, Target: c.target, Method: method, Params: raw})
	handler := h.handler
	h.mu.Unlock()

	if handler != nil {
		res, handled, err := handler(ctx, c.target, method, raw)
		if handled || err != nil {
			return res, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.defaultResponse(c.target, method, raw)
}

func (h *Host) defaultResponse(target browser.TargetID, method string, params json.RawMessage) ([]byte, error) {
	switch method {
	case "Page.captureScreenshot":
		h.mu.Lock()
		t := h.targets[target]
		t.shots++
		data := fmt.Sprintf("frame:%s:%d", target, t.shots)
		h.mu.Unlock()
		return json.Marshal(map[string]string{"data": base64.StdEncoding.EncodeToString([]byte(data))})
	case "Page.navigate":
		var req struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(params, &req)
		h.mu.Lock()
		if t := h.targets[target]; t != nil {
			t.url = req.URL
		}
		h.mu.Unlock()
		return []byte(`{"frameId":"frame-main","loaderId":"loader-1"}`), nil
	default:
		return []byte(`{}`), nil
	}
}

// Conn is the fake remote-debugging channel returned by Host.Attach.
type Conn struct {
	host     *Host
	target   browser.TargetID
	session  proto.TargetSessionID
	detached bool
}

func (c *Conn) Call(ctx context.Context, sessionID, methodName string, params interface{}) ([]byte, error) {
	return c.host.call(ctx, c, methodName, params)
}

func (c *Conn) SessionID() proto.TargetSessionID {
	return c.session
}

func (c *Conn) Detach(ctx context.Context) error {
	c.host.mu.Lock()
	defer c.host.mu.Unlock()
	if c.detached {
		return browser.ErrDetached
	}
	c.detached = true
	c.host.record(Op{Kind: "detach", Target: c.target})
	return nil
}

// Target returns the target this channel is attached to.
func (c *Conn) Target() browser.TargetID {
	return c.target
}
