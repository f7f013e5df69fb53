package mirror

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/respview/pkg/browser/browsertest"
)

type mouseParams struct {
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Button     string  `json:"button"`
	ClickCount int     `json:"clickCount"`
	DeltaX     float64 `json:"deltaX"`
	DeltaY     float64 `json:"deltaY"`
}

func mouseEvents(t *testing.T, host *browsertest.Host, rt *Runtime) []mouseParams {
	t.Helper()
	var out []mouseParams
	for _, op := range host.CommandsNamed(rt.order[0].Target, "Input.dispatchMouseEvent") {
		var p mouseParams
		require.NoError(t, json.Unmarshal(op.Params, &p))
		out = append(out, p)
	}
	return out
}

func startSingle(t *testing.T) (*browsertest.Host, *Runtime, *recorder) {
	t.Helper()
	host := browsertest.New()
	reg := newTestRegistry(t, host, testOptions())
	rec := &recorder{}
	rt, err := reg.Start(context.Background(), "s1", testSession("s1", mobileID), rec)
	require.NoError(t, err)
	waitLive(t, rec, mobileID)
	waitIdle(t, rt)
	return host, rt, rec
}

func TestClickIsClampedToViewport(t *testing.T) {
	host, rt, _ := startSingle(t)

	require.NoError(t, rt.Input(context.Background(), mobileID, ClickEvent{X: 360 + 50, Y: -20}))

	events := mouseEvents(t, host, rt)
	require.Len(t, events, 2)
	assert.Equal(t, "mousePressed", events[0].Type)
	assert.Equal(t, "mouseReleased", events[1].Type)
	for _, ev := range events {
		assert.Equal(t, 359.0, ev.X)
		assert.Equal(t, 0.0, ev.Y)
		assert.Equal(t, "left", ev.Button)
		assert.Equal(t, 1, ev.ClickCount)
	}
}

func TestSecondaryButtonMapsToRight(t *testing.T) {
	host, rt, _ := startSingle(t)
	require.NoError(t, rt.Input(context.Background(), mobileID, ClickEvent{X: 10, Y: 900, Button: 2}))
	events := mouseEvents(t, host, rt)
	require.Len(t, events, 2)
	assert.Equal(t, "right", events[0].Button)
	assert.Equal(t, 799.0, events[0].Y)

	require.NoError(t, rt.Input(context.Background(), mobileID, ClickEvent{X: 10, Y: 10, Button: 1}))
	events = mouseEvents(t, host, rt)
	assert.Equal(t, "left", events[2].Button)
}

func TestWheelIsClampedAndForwarded(t *testing.T) {
	host, rt, _ := startSingle(t)
	require.NoError(t, rt.Input(context.Background(), mobileID, WheelEvent{X: -4, Y: 1000, DeltaX: 3, DeltaY: 240}))

	events := mouseEvents(t, host, rt)
	require.Len(t, events, 1)
	assert.Equal(t, "mouseWheel", events[0].Type)
	assert.Equal(t, 0.0, events[0].X)
	assert.Equal(t, 799.0, events[0].Y)
	assert.Equal(t, 3.0, events[0].DeltaX)
	assert.Equal(t, 240.0, events[0].DeltaY)
}

func TestInputOnUnknownDeviceIsIgnored(t *testing.T) {
	host, rt, _ := startSingle(t)
	require.NoError(t, rt.Input(context.Background(), "nope", ClickEvent{X: 1, Y: 1}))
	require.NoError(t, rt.Reload(context.Background(), "nope"))
	assert.Empty(t, mouseEvents(t, host, rt))
}

func TestReloadResetsInitializationWithoutReattaching(t *testing.T) {
	host, rt, _ := startSingle(t)
	target := rt.order[0].Target
	ctx := context.Background()

	require.NoError(t, rt.Reload(ctx, mobileID))
	info := rt.order[0].Info()
	assert.True(t, info.Attached)
	assert.False(t, info.Initialized)

	reloads := host.CommandsNamed(target, "Page.reload")
	require.Len(t, reloads, 1)
	assert.JSONEq(t, `{"ignoreCache":true}`, string(reloads[0].Params))

	rt.tick(rt.ctx)

	assert.True(t, rt.order[0].Info().Initialized)
	assert.Len(t, host.OpsOfKind("attach"), 1)
	assert.Len(t, host.CommandsNamed(target, "Emulation.setDeviceMetricsOverride"), 2)
	assert.Len(t, host.CommandsNamed(target, "Page.navigate"), 2)
	assert.Len(t, host.CommandsNamed(target, "Page.captureScreenshot"), 2)
}

func TestInputInitializesDeviceFirst(t *testing.T) {
	host, rt, rec := startSingle(t)
	require.NoError(t, rt.Reload(context.Background(), mobileID))

	require.NoError(t, rt.Input(context.Background(), mobileID, ClickEvent{X: 5, Y: 5}))
	assert.True(t, rt.order[0].Info().Initialized)
	assert.Len(t, host.CommandsNamed(rt.order[0].Target, "Page.navigate"), 2)
	assert.Len(t, rec.statuses(mobileID, StatusStarting), 2)
}
