package server

import (
	"context"
	"time"

	"nhooyr.io/websocket"
)

const (
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second
)

func startWSPing(ctx context.Context, conn *websocket.Conn, interval, timeout time.Duration) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, timeout)
				_ = conn.Ping(pingCtx)
				cancel()
			}
		}
	}()
}
