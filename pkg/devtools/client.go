// Package devtools issues typed DevTools protocol commands over an attached
// browser.Conn.
package devtools

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/respview/pkg/browser"
)

// ErrNavigation is returned when the page reports a navigation error.
var ErrNavigation = errors.New("navigation failed")

// Client sends commands on one debugging session.
type Client struct {
	conn browser.Conn
}

// New wraps an attached connection.
func New(conn browser.Conn) *Client {
	return &Client{conn: conn}
}

// Conn returns the underlying connection.
func (c *Client) Conn() browser.Conn {
	return c.conn
}

// scoped binds a context and session so proto commands can be called on it.
type scoped struct {
	ctx  context.Context
	conn browser.Conn
}

func (s scoped) Call(ctx context.Context, sessionID, method string, params interface{}) ([]byte, error) {
	return s.conn.Call(ctx, sessionID, method, params)
}

func (s scoped) GetContext() context.Context {
	return s.ctx
}

func (s scoped) GetSessionID() proto.TargetSessionID {
	return s.conn.SessionID()
}

func (c *Client) with(ctx context.Context) scoped {
	return scoped{ctx: ctx, conn: c.conn}
}

// Metrics describes an emulated viewport.
type Metrics struct {
	Width             int
	Height            int
	DeviceScaleFactor float64
	Mobile            bool
}

func (c *Client) SetDeviceMetrics(ctx context.Context, m Metrics) error {
	err := proto.EmulationSetDeviceMetricsOverride{
		Width:             m.Width,
		Height:            m.Height,
		DeviceScaleFactor: m.DeviceScaleFactor,
		Mobile:            m.Mobile,
	}.Call(c.with(ctx))
	return wrap("Emulation.setDeviceMetricsOverride", err)
}

func (c *Client) SetUserAgent(ctx context.Context, ua string) error {
	err := proto.NetworkSetUserAgentOverride{UserAgent: ua}.Call(c.with(ctx))
	return wrap("Network.setUserAgentOverride", err)
}

// SetTouchEmulation toggles touch input. maxTouchPoints is only sent when
// enabling.
func (c *Client) SetTouchEmulation(ctx context.Context, enabled bool, maxTouchPoints int) error {
	req := proto.EmulationSetTouchEmulationEnabled{Enabled: enabled}
	if enabled {
		req.MaxTouchPoints = &maxTouchPoints
	}
	return wrap("Emulation.setTouchEmulationEnabled", req.Call(c.with(ctx)))
}

// EnableDomains enables the Page, Network and Runtime domains.
func (c *Client) EnableDomains(ctx context.Context) error {
	s := c.with(ctx)
	if err := (proto.PageEnable{}).Call(s); err != nil {
		return wrap("Page.enable", err)
	}
	if err := (proto.NetworkEnable{}).Call(s); err != nil {
		return wrap("Network.enable", err)
	}
	return wrap("Runtime.enable", proto.RuntimeEnable{}.Call(s))
}

// Navigate loads url. A page-level error text is reported as ErrNavigation.
func (c *Client) Navigate(ctx context.Context, url string) error {
	res, err := proto.PageNavigate{URL: url}.Call(c.with(ctx))
	if err != nil {
		return wrap("Page.navigate", err)
	}
	if res != nil && res.ErrorText != "" {
		return fmt.Errorf("%w: %s", ErrNavigation, res.ErrorText)
	}
	return nil
}

func (c *Client) Reload(ctx context.Context, ignoreCache bool) error {
	return wrap("Page.reload", proto.PageReload{IgnoreCache: ignoreCache}.Call(c.with(ctx)))
}

// Clip is a capture rectangle in CSS pixels.
type Clip struct {
	X, Y          float64
	Width, Height float64
	Scale         float64
}

// CaptureJPEG captures the clip region from the compositor surface.
func (c *Client) CaptureJPEG(ctx context.Context, clip Clip, quality int) ([]byte, error) {
	if clip.Scale == 0 {
		clip.Scale = 1
	}
	res, err := proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
		Clip: &proto.PageViewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  clip.Scale,
		},
		FromSurface:           true,
		CaptureBeyondViewport: false,
	}.Call(c.with(ctx))
	if err != nil {
		return nil, wrap("Page.captureScreenshot", err)
	}
	return res.Data, nil
}

// MouseKind is the kind of synthetic mouse event.
type MouseKind string

const (
	MousePressed  MouseKind = "mousePressed"
	MouseReleased MouseKind = "mouseReleased"
	MouseWheel    MouseKind = "mouseWheel"
)

// MouseButton names a pointer button.
type MouseButton string

const (
	ButtonNone  MouseButton = "none"
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// MouseEvent is a synthetic mouse event in viewport coordinates.
type MouseEvent struct {
	Kind       MouseKind
	X, Y       float64
	Button     MouseButton
	ClickCount int
	DeltaX     float64
	DeltaY     float64
}

func (c *Client) DispatchMouse(ctx context.Context, ev MouseEvent) error {
	req := proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventType(ev.Kind),
		X:          ev.X,
		Y:          ev.Y,
		ClickCount: ev.ClickCount,
		DeltaX:     ev.DeltaX,
		DeltaY:     ev.DeltaY,
	}
	if ev.Button != "" {
		req.Button = proto.InputMouseButton(ev.Button)
	}
	return wrap("Input.dispatchMouseEvent", req.Call(c.with(ctx)))
}

// Click presses and releases button at (x, y).
func (c *Client) Click(ctx context.Context, x, y float64, button MouseButton) error {
	ev := MouseEvent{Kind: MousePressed, X: x, Y: y, Button: button, ClickCount: 1}
	if err := c.DispatchMouse(ctx, ev); err != nil {
		return err
	}
	ev.Kind = MouseReleased
	return c.DispatchMouse(ctx, ev)
}

// Wheel scrolls by (dx, dy) at (x, y).
func (c *Client) Wheel(ctx context.Context, x, y, dx, dy float64) error {
	return c.DispatchMouse(ctx, MouseEvent{Kind: MouseWheel, X: x, Y: y, DeltaX: dx, DeltaY: dy})
}

func wrap(method string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", method, err)
}
