package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteWait bounds how long a single push may block on a slow or stalled
// client. The hub is invoked synchronously from the fan-out path, so an
// unbounded write would stall every later send on that conversation.
const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient adapts a websocket connection to the hub's EventSender. Writes
// are serialized: the hub can push from multiple goroutines but gorilla
// connections allow only one concurrent writer.
type wsClient struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	writeWait time.Duration
}

func (c *wsClient) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(ev)
}

// handleWS upgrades the request and registers the connection in the event
// hub under the authenticated user's key. The read loop exists only to
// detect the close; clients never send data upstream on this socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		http.Error(w, "missing auth claims", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed for %s: %v", claims.UserKey, err)
		return
	}

	client := &wsClient{conn: conn, writeWait: wsWriteWait}
	id := s.hub.Register(claims.UserKey, client)
	defer func() {
		s.hub.Unregister(claims.UserKey, id)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
