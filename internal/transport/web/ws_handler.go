package web

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
	wsDefaultPing    = 30 * time.Second
)

// upgrader returns a websocket upgrader bound to the CORS origins / Retourne un upgrader limité aux origines CORS
func (h *Handler) upgrader() *websocket.Upgrader {
	allowed := h.container.Config.Cors.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			return origin == "" || slices.Contains(allowed, origin) || slices.Contains(allowed, "*")
		},
	}
}

// Events streams resource change notifications over a websocket
// Events diffuse les notifications de changement sur un websocket
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conf := h.container.Config.Websocket
	if !conf.Enabled {
		ErrorResponse(w, "Flux d'événements désactivé", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		slog.Debug("websocket upgrade failed", "err", err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	sub := h.container.Hub.Subscribe(userID)

	pingInterval := conf.PingInterval
	if pingInterval <= 0 {
		pingInterval = wsDefaultPing
	}

	done := make(chan struct{})
	go readPump(conn, pingInterval, done)

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.container.Hub.Unsubscribe(sub)
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// dropped as a slow consumer or hub closed
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump discards client frames and signals when the peer goes away
// readPump ignore les trames du client et signale la déconnexion
func readPump(conn *websocket.Conn, pingInterval time.Duration, done chan<- struct{}) {
	defer close(done)
	pongWait := pingInterval * 2
	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed", "err", err)
			}
			return
		}
	}
}
