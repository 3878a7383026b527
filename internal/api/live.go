package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hostwatch/internal/events"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingPeriod   = 30 * time.Second
	livePongWait     = 2 * livePingPeriod
)

// liveFeed streams hub events to websocket clients.
type liveFeed struct {
	hub      *events.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func newLiveFeed(hub *events.Hub, logger *slog.Logger) *liveFeed {
	return &liveFeed{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// serve upgrades the request and forwards events until either side closes.
// Params: standard HTTP handler arguments.
// Returns: none.
func (f *liveFeed) serve(w http.ResponseWriter, r *http.Request) {
	if f.hub == nil {
		http.Error(w, "live feed disabled", http.StatusNotFound)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	feed, unsubscribe := f.hub.Subscribe(0)
	defer unsubscribe()

	closed := make(chan struct{})
	go f.readLoop(conn, closed)

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-feed:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are handled.
// Params: conn client connection; closed is closed when reading stops.
// Returns: none.
func (f *liveFeed) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
