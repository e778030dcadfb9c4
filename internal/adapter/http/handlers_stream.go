package adapthttp

import (
	"net/http"
	"time"

	"portfolio/internal/app"

	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type streamEvent struct {
	Type      string `json:"type"`
	Remaining string `json:"remaining,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// handleSessionStream pushes the remaining session time until the session
// ends, then sends an "expired" event and closes. It never extends the
// session.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("session stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads are needed to process control frames and notice the client
	// going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		d, err := s.guard.Check(ctx, token)
		if err != nil {
			s.logger.Warn("session stream check failed", "error", err)
		} else if d.State != app.Permitted {
			_ = s.send(conn, streamEvent{Type: "expired"})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session expired"),
				time.Now().Add(streamWriteWait))
			return
		} else if err := s.send(conn, streamEvent{
			Type:      "status",
			Remaining: app.FormatRemaining(d.Remaining),
			ExpiresAt: d.Session.ExpiresAt,
		}); err != nil {
			return
		}

		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) send(conn *websocket.Conn, ev streamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(ev)
}
