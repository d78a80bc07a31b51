package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-competition-service/internal/domain"
)

// Hub routes outbound events to audience-scoped rooms. Rooms are keyed
// "<audience>-<competitionID>", so two competitions never share a room. It
// implements the engine's Broadcaster port and is safe for concurrent
// dispatch from multiple game instances.
type Hub struct {
	log *logrus.Logger

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		log:   log,
		rooms: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) Broadcast(competitionID string, audience domain.Audience, event domain.Event) {
	key := roomKey(audience, competitionID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[key] {
		c.enqueue(event)
	}
}

func (h *Hub) BroadcastAll(competitionID string, event domain.Event) {
	for _, audience := range domain.Audiences {
		h.Broadcast(competitionID, audience, event)
	}
}

func (h *Hub) register(competitionID string, audience domain.Audience, c *client) {
	key := roomKey(audience, competitionID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*client]struct{})
	}
	h.rooms[key][c] = struct{}{}
}

func (h *Hub) unregister(competitionID string, audience domain.Audience, c *client) {
	key := roomKey(audience, competitionID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[key]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, key)
		}
	}
}

func roomKey(audience domain.Audience, competitionID string) string {
	return string(audience) + "-" + competitionID
}

// client is one websocket connection with a buffered outbound queue. A
// dedicated writer goroutine is the only place that touches the connection
// for writes.
type client struct {
	conn *websocket.Conn
	send chan domain.Event
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan domain.Event, 32),
	}
}

// enqueue delivers an event without blocking the broadcaster; when the queue
// is full the oldest event is dropped, since every payload carries full
// authoritative state.
func (c *client) enqueue(event domain.Event) {
	select {
	case c.send <- event:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- event:
		default:
		}
	}
}

func (c *client) writePump(log *logrus.Logger) {
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			log.WithError(err).Debug("ws write failed")
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}
