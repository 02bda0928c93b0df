package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/observability"
)

// Hub tracks which connection belongs to which authenticated user and which
// room broadcast groups each connection is subscribed to. A user may hold
// several concurrent connections (multiple devices); transport subscriptions
// are independent of the persisted membership fact.
type Hub struct {
	mu sync.RWMutex

	users map[string]map[*Client]struct{}
	rooms map[uint]map[*Client]struct{}

	// Room subscriptions per user, kept across reconnects so a fresh
	// connection for the same user rejoins its groups.
	subscriptions map[string]map[uint]struct{}

	log zerolog.Logger
}

// NewHub constructs an empty connection registry.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		users:         make(map[string]map[*Client]struct{}),
		rooms:         make(map[uint]map[*Client]struct{}),
		subscriptions: make(map[string]map[uint]struct{}),
		log:           logger.With().Str("component", "realtime_hub").Logger(),
	}
}

// Authenticate binds the connection to its user, subscribes it to the listed
// rooms plus any groups remembered from a previous connection, and counts it
// towards the user's presence.
func (h *Hub) Authenticate(client *Client, roomIDs []uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.userID
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*Client]struct{})
	}
	h.users[userID][client] = struct{}{}

	if _, ok := h.subscriptions[userID]; !ok {
		h.subscriptions[userID] = make(map[uint]struct{})
	}
	for _, roomID := range roomIDs {
		h.subscriptions[userID][roomID] = struct{}{}
	}
	for roomID := range h.subscriptions[userID] {
		h.joinLocked(client, roomID)
	}

	observability.ChatConnectionsActive().Inc()
	h.log.Debug().Str("user_id", userID).Int("rooms", len(h.subscriptions[userID])).Msg("connection authenticated")
}

// JoinRoomChannel adds the connection to a room's broadcast group.
func (h *Hub) JoinRoomChannel(client *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.joinLocked(client, roomID)
	if subs, ok := h.subscriptions[client.userID]; ok {
		subs[roomID] = struct{}{}
	}
}

// LeaveRoomChannel removes the connection from a room's broadcast group and
// forgets the subscription for future connections of the same user.
func (h *Hub) LeaveRoomChannel(client *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client, roomID)
	if subs, ok := h.subscriptions[client.userID]; ok {
		delete(subs, roomID)
	}
}

// Disconnect removes the connection from every tracking structure. The user's
// remembered subscriptions survive so a reconnect resumes them.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.userID
	if conns, ok := h.users[userID]; ok {
		if _, tracked := conns[client]; tracked {
			delete(conns, client)
			observability.ChatConnectionsActive().Dec()
		}
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}

	for roomID, clients := range h.rooms {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.log.Debug().Str("user_id", userID).Msg("connection disconnected")
}

// BroadcastToRoom delivers the event to every connection subscribed to the
// room. Delivery is best-effort: slow consumers are dropped rather than
// allowed to stall the room.
func (h *Hub) BroadcastToRoom(roomID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		if !client.enqueue(event) {
			observability.ChatFanoutDropped().Inc()
			h.log.Warn().Uint("room_id", roomID).Str("user_id", client.userID).Msg("dropping event for slow consumer")
		}
	}
}

// SendToUser delivers the event to all connections bound to the user.
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.users[userID] {
		if !client.enqueue(event) {
			observability.ChatFanoutDropped().Inc()
			h.log.Warn().Str("user_id", userID).Msg("dropping event for slow consumer")
		}
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.users[userID]) > 0
}

func (h *Hub) joinLocked(client *Client, roomID uint) {
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, roomID uint) {
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}
