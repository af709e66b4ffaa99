package hub

import (
	"encoding/json"
	"sync"

	"github.com/flowdeck/chat-core/internal/config"
	"github.com/flowdeck/chat-core/internal/presence"
	"github.com/flowdeck/chat-core/pkg/log"
)

// Hub delivers outbound events to connected sessions. Recipients are
// resolved through the Presence Tracker at dispatch time, so a session
// that disconnected between enqueue and delivery is simply skipped.
//
// Each session receives events in the order they were dispatched to it;
// no ordering is guaranteed across sessions.
type Hub struct {
	clients    map[string]*Client // sessionID -> client
	presence   *presence.Tracker
	register   chan *Client
	unregister chan *Client
	dispatch   chan *envelope
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// envelope is one queued delivery. Exactly one of RoomID, UserID, or
// SessionID is set.
type envelope struct {
	RoomID    string
	UserID    string
	SessionID string
	Data      []byte
	Exclude   string // session ID to skip on room broadcasts
}

// NewHub creates a Hub over the given presence tracker.
func NewHub(p *presence.Tracker, cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		presence:   p,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatch:   make(chan *envelope, 256),
		config:     cfg,
	}
}

// Run processes registrations and deliveries until the hub is stopped.
// Intended to run on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldSessionID, client.ID).Msg("session registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldSessionID, client.ID).Msg("session unregistered")

		case env := <-h.dispatch:
			h.deliver(env)
		}
	}
}

func (h *Hub) deliver(env *envelope) {
	var targets []string
	switch {
	case env.RoomID != "":
		targets = h.presence.RoomSessions(env.RoomID)
	case env.UserID != "":
		targets = h.presence.UserSessions(env.UserID)
	default:
		targets = []string{env.SessionID}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sessionID := range targets {
		if sessionID == env.Exclude {
			continue
		}
		client, ok := h.clients[sessionID]
		if !ok {
			// Absent session: delivery is a no-op, not an error.
			continue
		}
		if !client.enqueue(env.Data) {
			// Slow consumer; drop the connection rather than block the hub.
			go h.Unregister(client)
		}
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a session and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ToRoom delivers the payload to every session currently present in the
// room. excludeSession may name one session to skip ("" skips none).
func (h *Hub) ToRoom(roomID string, payload interface{}, excludeSession string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.dispatch <- &envelope{RoomID: roomID, Data: data, Exclude: excludeSession}
	return nil
}

// ToUser delivers the payload to every live session of the user, whether
// or not those sessions are in any room. No-op for offline users.
func (h *Hub) ToUser(userID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.dispatch <- &envelope{UserID: userID, Data: data}
	return nil
}

// ToSession delivers the payload to one session. No-op if absent.
func (h *Hub) ToSession(sessionID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.dispatch <- &envelope{SessionID: sessionID, Data: data}
	return nil
}
