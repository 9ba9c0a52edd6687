package fixsession

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSStatusFeed is a narrowed adaptation of the teacher's ws.Hub
// (register/unregister/broadcast channel trio), scoped to session-state
// transitions instead of market ticks. Order-lifecycle events are not
// published on it.
type WSStatusFeed struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusEvent is the JSON payload broadcast on every state transition.
type StatusEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// NewWSStatusFeed constructs an idle feed; call Run to start its loop.
func NewWSStatusFeed() *WSStatusFeed {
	return &WSStatusFeed{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run drives the feed's register/unregister/broadcast loop. Call it once
// in its own goroutine.
func (f *WSStatusFeed) Run() {
	for {
		select {
		case c := <-f.register:
			f.mu.Lock()
			f.clients[c] = true
			f.mu.Unlock()
		case c := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			f.mu.Unlock()
		case payload := <-f.broadcast:
			f.mu.RLock()
			for c := range f.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer: drop rather than block the feed.
				}
			}
			f.mu.RUnlock()
		}
	}
}

// PublishState implements fixsession.StatusFeed. Best-effort: a full
// broadcast channel drops the event rather than blocking the caller.
func (f *WSStatusFeed) PublishState(sessionID string, state State) {
	payload, err := json.Marshal(StatusEvent{
		Type:      "session_state",
		SessionID: sessionID,
		State:     string(state),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[FIX] status feed marshal error: %v", err)
		return
	}
	select {
	case f.broadcast <- payload:
	default:
		log.Printf("[FIX] status feed broadcast buffer full, dropping %s transition for %s", state, sessionID)
	}
}

// ServeHTTP upgrades a connection and registers it as a status subscriber.
func (f *WSStatusFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[FIX] status feed upgrade failed: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, 64)}
	f.register <- c
	go f.writePump(c)
}

func (f *WSStatusFeed) writePump(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.unregister <- c
			return
		}
	}
}
