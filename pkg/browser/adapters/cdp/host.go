package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/devtools"
)

type surfaceRecord struct {
	contextID proto.BrowserBrowserContextID
	windowID  proto.BrowserWindowID
	// foreground is the target last brought to the front of the window.
	foreground browser.TargetID
}

// Host is a Chromium-backed browser.Host driven over the DevTools protocol.
type Host struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher

	mu       sync.Mutex
	surfaces map[browser.SurfaceID]*surfaceRecord
	owners   map[browser.TargetID]browser.SurfaceID
}

func newHost(cfg Config, b *rod.Browser) *Host {
	return &Host{
		cfg:      cfg,
		browser:  b,
		surfaces: make(map[browser.SurfaceID]*surfaceRecord),
		owners:   make(map[browser.TargetID]browser.SurfaceID),
	}
}

// NewHost connects to the configured browser, launching one when no control
// URL is set.
func NewHost(ctx context.Context, cfg Config) (*Host, error) {
	merged := cfg.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	h := newHost(merged, nil)
	controlURL := merged.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(merged.Headless)
		if merged.Bin != "" {
			l = l.Bin(merged.Bin)
		}
		for _, raw := range merged.LaunchFlags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w: %w", browser.ErrUnavailable, err)
		}
		h.launcher = l
		controlURL = u
	} else if strings.HasPrefix(controlURL, "http://") {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("resolve control url: %w: %w", browser.ErrUnavailable, err)
		}
		controlURL = u
	}

	connectCtx, cancel := context.WithTimeout(ctx, merged.ConnectTimeout)
	defer cancel()
	b := newBrowser().ControlURL(controlURL).Context(connectCtx)
	if err := b.Connect(); err != nil {
		h.killLauncher()
		return nil, fmt.Errorf("connect browser: %w: %w", browser.ErrUnavailable, err)
	}
	// Detach the connection from the dial deadline.
	h.browser = b.Context(context.Background())
	return h, nil
}

// newBrowser returns a rod browser that leaves page metrics alone. Presets
// own every emulation override on our targets.
func newBrowser() *rod.Browser {
	return rod.New().NoDefaultDevice()
}

func (h *Host) client(ctx context.Context) *rod.Browser {
	return h.browser.Context(ctx)
}

func (h *Host) CreateSurface(ctx context.Context, opts browser.SurfaceOptions) (browser.SurfaceID, error) {
	if h == nil || h.browser == nil {
		return "", browser.ErrUnavailable
	}
	opts = opts.WithDefaults()
	c := h.client(ctx)

	bc, err := proto.TargetCreateBrowserContext{}.Call(c)
	if err != nil {
		return "", browser.WrapHostError("create browser context", "", err)
	}
	created, err := proto.TargetCreateTarget{
		URL:              opts.InitialURL,
		BrowserContextID: bc.BrowserContextID,
		NewWindow:        true,
		Background:       true,
	}.Call(c)
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(c)
		return "", browser.WrapHostError("create display surface", "", err)
	}

	// The window opens in the background and its first target is in front.
	rec := &surfaceRecord{
		contextID:  bc.BrowserContextID,
		foreground: browser.TargetID(created.TargetID),
	}
	if win, err := (proto.BrowserGetWindowForTarget{TargetID: created.TargetID}).Call(c); err == nil {
		rec.windowID = win.WindowID
		// Normal state, small and on-screen. Never minimized.
		_ = proto.BrowserSetWindowBounds{
			WindowID: win.WindowID,
			Bounds:   &proto.BrowserBounds{WindowState: proto.BrowserWindowStateNormal},
		}.Call(c)
		_ = proto.BrowserSetWindowBounds{
			WindowID: win.WindowID,
			Bounds: &proto.BrowserBounds{
				Left:   intPtr(opts.Left),
				Top:    intPtr(opts.Top),
				Width:  intPtr(opts.Width),
				Height: intPtr(opts.Height),
			},
		}.Call(c)
	}

	id := browser.SurfaceID(bc.BrowserContextID)
	h.mu.Lock()
	h.surfaces[id] = rec
	h.owners[rec.foreground] = id
	h.mu.Unlock()
	return id, nil
}

func (h *Host) surface(id browser.SurfaceID) (*surfaceRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.surfaces[id]
	if !ok {
		return nil, browser.ErrSurfaceClosed
	}
	return rec, nil
}

func (h *Host) ListTargets(ctx context.Context, surface browser.SurfaceID) ([]browser.TargetInfo, error) {
	rec, err := h.surface(surface)
	if err != nil {
		return nil, err
	}
	res, err := proto.TargetGetTargets{}.Call(h.client(ctx))
	if err != nil {
		return nil, browser.WrapHostError("list targets", "", err)
	}
	var out []browser.TargetInfo
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, info := range res.TargetInfos {
		if info.BrowserContextID != rec.contextID || info.Type != proto.TargetTargetInfoTypePage {
			continue
		}
		id := browser.TargetID(info.TargetID)
		h.owners[id] = surface
		out = append(out, browser.TargetInfo{
			ID:     id,
			URL:    info.URL,
			Active: id == rec.foreground,
		})
	}
	return out, nil
}

func (h *Host) CreateTarget(ctx context.Context, surface browser.SurfaceID, url string, background bool) (browser.TargetID, error) {
	rec, err := h.surface(surface)
	if err != nil {
		return "", err
	}
	res, err := proto.TargetCreateTarget{
		URL:              url,
		BrowserContextID: rec.contextID,
		Background:       background,
	}.Call(h.client(ctx))
	if err != nil {
		return "", browser.WrapHostError("create target", "", err)
	}
	id := browser.TargetID(res.TargetID)
	h.mu.Lock()
	h.owners[id] = surface
	if !background {
		rec.foreground = id
	}
	h.mu.Unlock()
	return id, nil
}

// NavigateTarget loads url on a short-lived session that is detached again
// before returning.
func (h *Host) NavigateTarget(ctx context.Context, target browser.TargetID, url string) error {
	c, err := h.Attach(ctx, target)
	if err != nil {
		return err
	}
	defer func() { _ = c.Detach(context.WithoutCancel(ctx)) }()
	if err := devtools.New(c).Navigate(ctx, url); err != nil {
		return browser.WrapHostError("navigate target", target, err)
	}
	return nil
}

// ActivateTarget brings target to the front of its surface window so it
// paints. In a headed browser activation also raises and focuses the window,
// so a target already in front is not activated again.
func (h *Host) ActivateTarget(ctx context.Context, target browser.TargetID) error {
	rec := h.ownerOf(target)
	if rec != nil {
		h.mu.Lock()
		front := rec.foreground == target
		h.mu.Unlock()
		if front {
			return nil
		}
	}
	err := proto.TargetActivateTarget{TargetID: proto.TargetTargetID(target)}.Call(h.client(ctx))
	if err != nil {
		return browser.WrapHostError("activate target", target, translate(err))
	}
	if rec != nil {
		h.mu.Lock()
		rec.foreground = target
		h.mu.Unlock()
	}
	return nil
}

func (h *Host) ownerOf(target browser.TargetID) *surfaceRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.owners[target]; ok {
		return h.surfaces[id]
	}
	return nil
}

func (h *Host) CloseTargets(ctx context.Context, targets []browser.TargetID) error {
	var errs []error
	c := h.client(ctx)
	for _, id := range targets {
		if _, err := (proto.TargetCloseTarget{TargetID: proto.TargetTargetID(id)}).Call(c); err != nil {
			errs = append(errs, browser.WrapHostError("close target", id, translate(err)))
		}
		h.forget(id)
	}
	return errors.Join(errs...)
}

func (h *Host) RemoveSurface(ctx context.Context, surface browser.SurfaceID) error {
	rec, err := h.surface(surface)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.surfaces, surface)
	for id, owner := range h.owners {
		if owner == surface {
			delete(h.owners, id)
		}
	}
	h.mu.Unlock()
	err = proto.TargetDisposeBrowserContext{BrowserContextID: rec.contextID}.Call(h.client(ctx))
	return browser.WrapHostError("remove surface", "", translate(err))
}

func (h *Host) forget(target browser.TargetID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec := h.surfaces[h.owners[target]]; rec != nil && rec.foreground == target {
		rec.foreground = ""
	}
	delete(h.owners, target)
}

func (h *Host) Attach(ctx context.Context, target browser.TargetID) (browser.Conn, error) {
	if h == nil || h.browser == nil {
		return nil, browser.ErrUnavailable
	}
	res, err := proto.TargetAttachToTarget{
		TargetID: proto.TargetTargetID(target),
		Flatten:  true,
	}.Call(h.client(ctx))
	if err != nil {
		return nil, browser.WrapHostError("attach", target, translate(err))
	}
	return &conn{host: h, target: target, session: res.SessionID}, nil
}

// Close drops all surfaces and disconnects. A launched browser is killed.
func (h *Host) Close() error {
	if h == nil || h.browser == nil {
		return nil
	}
	h.mu.Lock()
	ids := make([]browser.SurfaceID, 0, len(h.surfaces))
	for id := range h.surfaces {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		_ = h.RemoveSurface(context.Background(), id)
	}

	var err error
	if h.launcher != nil {
		err = h.browser.Close()
		h.killLauncher()
	}
	return err
}

func (h *Host) killLauncher() {
	if h.launcher != nil {
		h.launcher.Kill()
		h.launcher.Cleanup()
	}
}

func intPtr(v int) *int {
	return &v
}

// translate maps CDP "no such target" style failures onto browser sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no target with given id"), strings.Contains(msg, "target closed"):
		return fmt.Errorf("%w: %v", browser.ErrTargetClosed, err)
	case strings.Contains(msg, "session with given id not found"), strings.Contains(msg, "no session with given id"):
		return fmt.Errorf("%w: %v", browser.ErrDetached, err)
	case strings.Contains(msg, "failed to find browser context"):
		return fmt.Errorf("%w: %v", browser.ErrSurfaceClosed, err)
	}
	return err
}
