package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raterudder/energydash/pkg/log"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// handleStream pushes a dashboard snapshot over a WebSocket on connect and
// after every change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote an error response
		log.Ctx(ctx).WarnContext(ctx, "failed to upgrade stream", slog.Any("error", err))
		return
	}
	defer conn.Close()

	changes, unsubscribe := s.dashboard.Subscribe()
	defer unsubscribe()

	// the reader only handles control frames and notices when the client goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	send := func() bool {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(s.buildDashboard(s.now())); err != nil {
			log.Ctx(ctx).DebugContext(ctx, "failed to write stream message", slog.Any("error", err))
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-changes:
			if !send() {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait),
			)
			return
		}
	}
}
