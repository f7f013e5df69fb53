package mirror

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"mirror/start","session":{"id":"s1","url":"https://a.test","devices":["mobile-360x800"],"mode":"mirror","createdAt":"2026-01-02T03:04:05.000Z"}}`))
	require.NoError(t, err)
	start, ok := msg.(StartMessage)
	require.True(t, ok)
	assert.Equal(t, "s1", start.Session.ID)
	assert.Equal(t, []string{"mobile-360x800"}, start.Session.Devices)
	assert.Equal(t, ModeMirror, start.Session.Mode)

	msg, err = DecodeInbound([]byte(`{"type":"mirror/stop","sessionId":"s1"}`))
	require.NoError(t, err)
	assert.Equal(t, StopMessage{SessionID: "s1"}, msg)

	msg, err = DecodeInbound([]byte(`{"type":"mirror/reload","sessionId":"s1","deviceId":"d"}`))
	require.NoError(t, err)
	assert.Equal(t, ReloadMessage{SessionID: "s1", DeviceID: "d"}, msg)

	msg, err = DecodeInbound([]byte(`{"type":"mirror/input","sessionId":"s1","deviceId":"d","event":{"kind":"click","x":4,"y":5,"button":2}}`))
	require.NoError(t, err)
	assert.Equal(t, InputMessage{SessionID: "s1", DeviceID: "d", Event: ClickEvent{X: 4, Y: 5, Button: 2}}, msg)

	msg, err = DecodeInbound([]byte(`{"type":"mirror/input","sessionId":"s1","deviceId":"d","event":{"kind":"wheel","x":1,"y":2,"deltaX":0,"deltaY":-120}}`))
	require.NoError(t, err)
	assert.Equal(t, InputMessage{SessionID: "s1", DeviceID: "d", Event: WheelEvent{X: 1, Y: 2, DeltaY: -120}}, msg)
}

func TestDecodeInboundRejects(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"mirror/explode"}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodeInbound([]byte(`{"type":"mirror/input","deviceId":"d","event":{"kind":"drag"}}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodeInbound([]byte(`{"type":"mirror/input","deviceId":"d"}`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`{"type":"mirror/start"}`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`not json`))
	assert.Error(t, err)
}

func TestOutboundJSON(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 891_000_000, time.FixedZone("X", 3600))
	raw, err := json.Marshal(FrameMessage{SessionID: "s1", DeviceID: "d", Mime: FrameMimeJPEG, DataBase64: "AAAA", CapturedAt: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"mirror/frame","sessionId":"s1","deviceId":"d","mime":"image/jpeg","dataBase64":"AAAA","capturedAt":"2026-03-04T04:06:07.891Z"}`, string(raw))

	raw, err = json.Marshal(StatusMessage{SessionID: "s1", DeviceID: "d", Status: StatusLive})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"mirror/status","sessionId":"s1","deviceId":"d","status":"live"}`, string(raw))

	raw, err = json.Marshal(StatusMessage{SessionID: "s1", DeviceID: "d", Status: StatusError, Message: "navigate timed out"})
	require.NoError(t, err)
	back, err := DecodeOutbound(raw)
	require.NoError(t, err)
	assert.Equal(t, StatusMessage{SessionID: "s1", DeviceID: "d", Status: StatusError, Message: "navigate timed out"}, back)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "responsive-view:abc", ChannelName(DefaultChannelPrefix, "abc"))
	id, ok := ParseChannel(DefaultChannelPrefix, "responsive-view:abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	_, ok = ParseChannel(DefaultChannelPrefix, "responsive-view:")
	assert.False(t, ok)
	_, ok = ParseChannel(DefaultChannelPrefix, "other:abc")
	assert.False(t, ok)
}

func TestSessionValidate(t *testing.T) {
	assert.NoError(t, testSession("s1", mobileID).Validate())
	assert.Error(t, testSession("", mobileID).Validate())
	assert.Error(t, testSession("s1").Validate())
	s := testSession("s1", mobileID)
	s.Mode = "carousel"
	assert.Error(t, s.Validate())
}
