package core

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	presenceWriteWait  = 10 * time.Second
	presencePongWait   = 60 * time.Second
	presencePingPeriod = (presencePongWait * 9) / 10
	presenceMaxMessage = 4096
	presenceSendBuffer = 32
	maxChatMessageLen  = 1000
)

// Event names on the presence channel.
const (
	EventUser        = "user"
	EventChatMessage = "chat message"
)

// PresenceEvent is broadcast on every connect and disconnect.
type PresenceEvent struct {
	Username     string `json:"username"`
	CurrentUsers int    `json:"currentUsers"`
	Connected    bool   `json:"connected"`
}

// ChatMessage is a relayed client message.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Envelope is the frame written to clients.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PresenceClient is one open connection in the hub.
type PresenceClient struct {
	user User
	send chan []byte
}

// User returns the identity the connection was admitted with.
func (c *PresenceClient) User() User { return c.user }

// Messages yields outbound frames; it is closed when the client leaves the hub.
func (c *PresenceClient) Messages() <-chan []byte { return c.send }

// PresenceHub tracks connected clients. Membership changes and broadcasts
// happen under one lock so every client sees counts in the same order.
// The counter is process-local and starts at zero.
type PresenceHub struct {
	mu      sync.Mutex
	clients map[*PresenceClient]struct{}
	count   int
	metrics *Metrics
}

func NewPresenceHub(metrics *Metrics) *PresenceHub {
	return &PresenceHub{
		clients: make(map[*PresenceClient]struct{}),
		metrics: metrics,
	}
}

// Join registers a client for user and broadcasts the new count to everyone, the joiner included.
func (h *PresenceHub) Join(user User) *PresenceClient {
	c := &PresenceClient{user: user, send: make(chan []byte, presenceSendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.count++
	h.setGaugeLocked()
	h.publishLocked(encodeEnvelope(EventUser, PresenceEvent{
		Username:     user.Username,
		CurrentUsers: h.count,
		Connected:    true,
	}))
	return c
}

// Leave removes the client and broadcasts the decremented count. Repeated calls are no-ops.
func (h *PresenceHub) Leave(c *PresenceClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Relay broadcasts a chat message from c. Blank messages are dropped and long ones truncated.
func (h *PresenceHub) Relay(c *PresenceClient, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if utf8.RuneCountInString(text) > maxChatMessageLen {
		text = string([]rune(text)[:maxChatMessageLen])
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	h.publishLocked(encodeEnvelope(EventChatMessage, ChatMessage{Username: c.user.Username, Message: text}))
	if h.metrics != nil {
		h.metrics.PresenceMessages.Inc()
	}
	return true
}

// Count returns the number of connected clients.
func (h *PresenceHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Usernames returns the roster of connected users, one entry per connection.
func (h *PresenceHub) Usernames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c.user.Username)
	}
	return out
}

// CloseAll disconnects every client without announcing departures. Used at shutdown.
func (h *PresenceHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.count = 0
	h.setGaugeLocked()
}

func (h *PresenceHub) removeLocked(c *PresenceClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.count--
	h.setGaugeLocked()
	h.publishLocked(encodeEnvelope(EventUser, PresenceEvent{
		Username:     c.user.Username,
		CurrentUsers: h.count,
		Connected:    false,
	}))
}

// publishLocked queues msg for every client. Clients whose queue is full are
// disconnected, which in turn announces their departure.
func (h *PresenceHub) publishLocked(msg []byte) {
	var slow []*PresenceClient
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		log.Printf("presence: dropping slow client user=%s", c.user.Username)
		h.removeLocked(c)
	}
}

func (h *PresenceHub) setGaugeLocked() {
	if h.metrics != nil {
		h.metrics.ConnectedUsers.Set(float64(h.count))
	}
}

// ServeConn runs the connection until either side closes it, then leaves the hub.
func (h *PresenceHub) ServeConn(conn *websocket.Conn, user User) {
	c := h.Join(user)
	go writePump(conn, c)
	h.readPump(conn, c)
}

func (h *PresenceHub) readPump(conn *websocket.Conn, c *PresenceClient) {
	defer func() {
		h.Leave(c)
		conn.Close()
	}()
	conn.SetReadLimit(presenceMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(presencePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(presencePongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				log.Printf("presence: read error user=%s: %v", c.user.Username, err)
			}
			return
		}
		var in struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg, &in); err != nil {
			// plain text frames are accepted as the message body
			in.Message = string(msg)
		}
		h.Relay(c, in.Message)
	}
}

func writePump(conn *websocket.Conn, c *PresenceClient) {
	ticker := time.NewTicker(presencePingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(presenceWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(presenceWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeEnvelope(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	out, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil
	}
	return out
}
