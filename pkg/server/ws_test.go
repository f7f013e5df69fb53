package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/odvcencio/respview/pkg/bus"
	"github.com/odvcencio/respview/pkg/mirror"
)

func dialMirror(t *testing.T, env *testEnv, channel string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/mirror/" + channel
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	return conn
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) mirror.Outbound {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	msg, err := mirror.DecodeOutbound(data)
	require.NoError(t, err)
	return msg
}

func TestMirrorChannelStartStreamsFramesAndStopsOnClose(t *testing.T) {
	env := newTestEnv(t, Config{SubjectPrefix: "test.mirror"})

	published := make(chan *bus.Message, 16)
	_, err := env.bus.Subscribe(context.Background(), "test.mirror.s1.>", func(m *bus.Message) { published <- m })
	require.NoError(t, err)

	conn := dialMirror(t, env, "responsive-view:s1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := map[string]any{
		"type": "mirror/start",
		"session": map[string]any{
			"id":      "ignored",
			"url":     "https://example.com",
			"devices": []string{"mobile-360x800"},
			"mode":    "mirror",
		},
	}
	require.NoError(t, wsjson.Write(ctx, conn, start))

	var statuses []mirror.Status
	var frame *mirror.FrameMessage
	for len(statuses) < 2 {
		switch m := readOutbound(t, ctx, conn).(type) {
		case mirror.StatusMessage:
			assert.Equal(t, "s1", m.SessionID)
			statuses = append(statuses, m.Status)
		case mirror.FrameMessage:
			frame = &m
		}
	}
	assert.Equal(t, []mirror.Status{mirror.StatusStarting, mirror.StatusLive}, statuses)
	require.NotNil(t, frame)
	assert.Equal(t, "mobile-360x800", frame.DeviceID)
	assert.Equal(t, mirror.FrameMimeJPEG, frame.Mime)

	_, ok := env.registry.Get("s1")
	require.True(t, ok)

	select {
	case m := <-published:
		assert.True(t, strings.HasPrefix(m.Subject, "test.mirror.s1."))
	case <-time.After(time.Second):
		t.Fatal("expected outbound traffic on the bus")
	}

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		_, ok := env.registry.Get("s1")
		return !ok && len(env.host.LiveSurfaces()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMirrorChannelRejectsForeignChannel(t *testing.T) {
	env := newTestEnv(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/mirror/other:s1"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestConnLimiter(t *testing.T) {
	l := newConnLimiter(2, 1)
	require.NoError(t, l.Acquire("s1"))
	assert.ErrorIs(t, l.Acquire("s1"), errSessionClaimed)
	require.NoError(t, l.Acquire("s2"))
	assert.ErrorIs(t, l.Acquire("s3"), errTooManyClients)

	l.Release("s1")
	require.NoError(t, l.Acquire("s1"))
	l.Release("s2")
	l.Release("s2")
	require.NoError(t, l.Acquire("s3"))
	assert.ErrorIs(t, l.Acquire("s4"), errTooManyClients, "a stray release must not free a slot")

	shared := newConnLimiter(0, -1)
	require.NoError(t, shared.Acquire("s1"))
	require.NoError(t, shared.Acquire("s1"))

	var unlimited *connLimiter
	assert.NoError(t, unlimited.Acquire("s1"))
}

func TestMirrorChannelRejectsSecondClientForSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	first := dialMirror(t, env, "responsive-view:s1")
	defer first.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/mirror/responsive-view:s1"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 409, resp.StatusCode)

	other := dialMirror(t, env, "responsive-view:s2")
	other.Close(websocket.StatusNormalClosure, "")
}

func TestStartWSPingNilConn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startWSPing(ctx, nil, time.Millisecond, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
}
