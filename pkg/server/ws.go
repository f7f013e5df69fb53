package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/odvcencio/respview/pkg/bus"
	"github.com/odvcencio/respview/pkg/mirror"
)

const maxWSReadBytes = 64 << 10

// wsChannel delivers outbound mirror messages to one socket.
type wsChannel struct {
	conn *websocket.Conn
}

func (c *wsChannel) Send(ctx context.Context, msg mirror.Outbound) error {
	return wsjson.Write(ctx, c.conn, msg)
}

// handleMirror serves one UI channel. The session id comes from the channel
// name; closing the socket stops the session.
func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	sessionID, ok := mirror.ParseChannel(s.cfg.ChannelPrefix, name)
	if !ok || sessionID == "" {
		respondError(w, http.StatusBadRequest, errors.New("unknown channel"))
		return
	}
	if err := s.conns.Acquire(sessionID); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, errSessionClaimed) {
			status = http.StatusConflict
		}
		respondError(w, status, err)
		return
	}
	defer s.conns.Release(sessionID)

	patterns, anyOrigin := s.originPatterns()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     patterns,
		InsecureSkipVerify: anyOrigin,
	})
	if err != nil {
		s.log.Warn("mirror websocket accept failed", "channel", name, "error", err)
		return
	}
	conn.SetReadLimit(maxWSReadBytes)

	connID := uuid.NewString()
	log := s.log.WithConn(connID, name).WithSession(sessionID)
	metricMirrorClients.Inc()
	defer metricMirrorClients.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	startWSPing(ctx, conn, s.cfg.PingInterval, s.cfg.PingTimeout)

	var ch mirror.Channel = &wsChannel{conn: conn}
	ch = bus.NewFanout(ch, s.bus, s.cfg.SubjectPrefix, log)
	router := mirror.NewRouter(s.registry, sessionID, ch, mirror.RouterConfig{
		InputRate:  s.cfg.InputRate,
		InputBurst: s.cfg.InputBurst,
		Logger:     log,
	})
	log.Info("mirror channel connected")

	status := websocket.StatusNormalClosure
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("mirror channel read ended", "error", err)
				status = websocket.StatusGoingAway
			}
			break
		}
		if typ != websocket.MessageText {
			continue
		}
		_ = router.HandleRaw(ctx, data)
	}

	_ = router.Disconnect(context.WithoutCancel(ctx))
	conn.Close(status, "")
	log.Info("mirror channel closed")
}
