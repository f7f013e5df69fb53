package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/browser/browsertest"
)

func attach(t *testing.T) (*browsertest.Host, browser.TargetID, *Client) {
	t.Helper()
	ctx := context.Background()
	host := browsertest.New()
	surface, err := host.CreateSurface(ctx, browser.DefaultSurfaceOptions())
	require.NoError(t, err)
	targets, err := host.ListTargets(ctx, surface)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	conn, err := host.Attach(ctx, targets[0].ID)
	require.NoError(t, err)
	return host, targets[0].ID, New(conn)
}

func params(t *testing.T, op browsertest.Op) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(op.Params, &out))
	return out
}

func TestEmulationCommands(t *testing.T) {
	host, target, c := attach(t)
	ctx := context.Background()

	require.NoError(t, c.SetDeviceMetrics(ctx, Metrics{Width: 390, Height: 844, DeviceScaleFactor: 3, Mobile: true}))
	require.NoError(t, c.SetUserAgent(ctx, "ua/1"))
	require.NoError(t, c.SetTouchEmulation(ctx, true, 5))
	require.NoError(t, c.SetTouchEmulation(ctx, false, 5))

	cmds := host.Commands(target)
	require.Len(t, cmds, 4)
	metrics := params(t, cmds[0])
	assert.Equal(t, "Emulation.setDeviceMetricsOverride", cmds[0].Method)
	assert.EqualValues(t, 390, metrics["width"])
	assert.EqualValues(t, 3, metrics["deviceScaleFactor"])
	assert.Equal(t, true, metrics["mobile"])
	assert.Equal(t, "ua/1", params(t, cmds[1])["userAgent"])
	assert.EqualValues(t, 5, params(t, cmds[2])["maxTouchPoints"])
	_, hasMax := params(t, cmds[3])["maxTouchPoints"]
	assert.False(t, hasMax)
}

func TestEnableDomainsOrder(t *testing.T) {
	host, target, c := attach(t)
	require.NoError(t, c.EnableDomains(context.Background()))

	var methods []string
	for _, op := range host.Commands(target) {
		methods = append(methods, op.Method)
	}
	assert.Equal(t, []string{"Page.enable", "Network.enable", "Runtime.enable"}, methods)
}

func TestNavigateErrorText(t *testing.T) {
	host, target, c := attach(t)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, "https://example.com/"))
	assert.Equal(t, "https://example.com/", host.TargetURL(target))

	host.SetHandler(func(ctx context.Context, _ browser.TargetID, method string, _ json.RawMessage) ([]byte, bool, error) {
		if method == "Page.navigate" {
			return []byte(`{"frameId":"f","errorText":"net::ERR_NAME_NOT_RESOLVED"}`), true, nil
		}
		return nil, false, nil
	})
	err := c.Navigate(ctx, "https://nope.invalid/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNavigation))
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
}

func TestCaptureJPEG(t *testing.T) {
	host, target, c := attach(t)
	data, err := c.CaptureJPEG(context.Background(), Clip{Width: 360, Height: 800}, 70)
	require.NoError(t, err)
	assert.Equal(t, "frame:"+string(target)+":1", string(data))

	cmds := host.CommandsNamed(target, "Page.captureScreenshot")
	require.Len(t, cmds, 1)
	p := params(t, cmds[0])
	assert.Equal(t, "jpeg", p["format"])
	assert.EqualValues(t, 70, p["quality"])
	assert.Equal(t, true, p["fromSurface"])
	clip := p["clip"].(map[string]any)
	assert.EqualValues(t, 360, clip["width"])
	assert.EqualValues(t, 800, clip["height"])
	assert.EqualValues(t, 1, clip["scale"])
}

func TestClickSendsPressThenRelease(t *testing.T) {
	host, target, c := attach(t)
	require.NoError(t, c.Click(context.Background(), 10, 20, ButtonRight))

	cmds := host.CommandsNamed(target, "Input.dispatchMouseEvent")
	require.Len(t, cmds, 2)
	first, second := params(t, cmds[0]), params(t, cmds[1])
	assert.Equal(t, "mousePressed", first["type"])
	assert.Equal(t, "mouseReleased", second["type"])
	assert.Equal(t, "right", first["button"])
	assert.EqualValues(t, 1, second["clickCount"])
	assert.EqualValues(t, 10, first["x"])
	assert.EqualValues(t, 20, first["y"])
}

func TestWheel(t *testing.T) {
	host, target, c := attach(t)
	require.NoError(t, c.Wheel(context.Background(), 5, 6, 0, 120))
	cmds := host.CommandsNamed(target, "Input.dispatchMouseEvent")
	require.Len(t, cmds, 1)
	p := params(t, cmds[0])
	assert.Equal(t, "mouseWheel", p["type"])
	assert.EqualValues(t, 120, p["deltaY"])
}

func TestCallsFailAfterDetach(t *testing.T) {
	_, _, c := attach(t)
	ctx := context.Background()
	require.NoError(t, c.Conn().Detach(ctx))
	err := c.Reload(ctx, true)
	assert.ErrorIs(t, err, browser.ErrDetached)
	assert.ErrorIs(t, c.Conn().Detach(ctx), browser.ErrDetached)
}
