package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/damione1/poker-rooms/internal/config"
	"github.com/damione1/poker-rooms/internal/protocol"
	"github.com/damione1/poker-rooms/internal/security"
)

// handleWebSocket validates the room address, upgrades the connection and
// pumps inbound frames into the coordinator until the connection closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room")
	if err := security.ValidateRoomAddress(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Origins,
	})
	if err != nil {
		s.metrics.IncrementConnectionErrors()
		return
	}
	wsc.SetReadLimit(config.MaxMessageBytes)

	conn := newWSConn(wsc)
	defer conn.Close()

	s.rooms.Connect(r.Context(), roomID, conn)
	s.logf("connection accepted (room=%s conn=%s)", roomID, conn.ID())

	defer func() {
		s.rooms.Disconnect(context.Background(), roomID, conn)
		s.limiter.Remove(conn.ID())
		s.logf("connection closed (room=%s conn=%s)", roomID, conn.ID())
	}()

	// Keepalive pings, the write mutex on conn keeps them off the
	// broadcast frames.
	pingCtx, stopPings := context.WithCancel(r.Context())
	defer stopPings()
	go func() {
		ticker := time.NewTicker(config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.Ping(pingCtx); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := wsc.Read(r.Context())
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.metrics.IncrementConnectionErrors()
			}
			return
		}

		s.metrics.IncrementMessagesReceived()

		if !s.limiter.Allow(conn.ID()) {
			s.metrics.IncrementRateLimitViolations()
			_ = conn.Send(r.Context(), protocol.MustEncode(protocol.TypeError, protocol.ErrorPayload{
				Message: "Rate limit exceeded. Please slow down.",
			}))
			continue
		}

		// Looked up per message: the room may have been hibernated and
		// resumed since the last frame.
		s.rooms.Lookup(roomID).HandleMessage(r.Context(), conn, data)
	}
}
