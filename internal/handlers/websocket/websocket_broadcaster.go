package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// WebSocketBroadcaster pushes committed ledger events to every connected client.
type WebSocketBroadcaster struct {
	log      *slog.Logger
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
}

var _ useCases.Broadcaster = (*WebSocketBroadcaster)(nil)

func NewWebSocketBroadcaster(log *slog.Logger) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		log:      log.With(slog.String("component", "websocket")),
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (b *WebSocketBroadcaster) BroadcastEvent(event *model.LedgerEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		b.log.Error("failed to marshal event", sl.Err(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.log.Debug("websocket write error", sl.Err(err))
			c.Close()
			delete(b.clients, c)
		}
	}
}

// Clients returns the number of connected clients.
func (b *WebSocketBroadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade error", sl.Err(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		// read loop detects closed connections
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
