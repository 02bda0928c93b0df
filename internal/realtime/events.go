package realtime

import (
	"encoding/json"
	"time"
)

// EventType names the frames exchanged over the live surface.
type EventType string

// Client -> server events.
const (
	EventAuthenticate EventType = "authenticate"
	EventSendMessage  EventType = "send_message"
	EventMessageRead  EventType = "message_read"
	EventJoinRoom     EventType = "join_room"
	EventLeaveRoom    EventType = "leave_room"
)

// Server -> client events.
const (
	EventMessageOptimistic  EventType = "message_optimistic"
	EventMessageConfirmed   EventType = "message_confirmed"
	EventMessageError       EventType = "message_error"
	EventReceiveMessage     EventType = "receive_message"
	EventMessageReadReceipt EventType = "message_read_receipt"
	EventUserJoined         EventType = "user_joined"
	EventUserLeft           EventType = "user_left"
	EventRoomUpdated        EventType = "room_updated"
	EventRoomsUpdated       EventType = "rooms_updated"
)

// Event is a single outbound frame.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an outbound frame.
func NewEvent(eventType EventType, payload interface{}) Event {
	return Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
}

// Inbound is a raw frame read from a client; payload decoding is deferred to
// the router so a malformed payload only fails its own event.
type Inbound struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AuthenticatePayload binds the connection to the user's room subscriptions.
type AuthenticatePayload struct {
	UserID  string `json:"user_id"`
	RoomIDs []uint `json:"room_ids"`
}

// SendMessagePayload carries an optimistic message send.
type SendMessagePayload struct {
	TempID    string `json:"temp_id"`
	RoomID    uint   `json:"room_id"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url"`
	IsRequest bool   `json:"is_request"`
}

// MessageReadPayload acknowledges that the user has read a message.
type MessageReadPayload struct {
	MessageID uint `json:"message_id"`
}

// RoomChannelPayload targets a room broadcast group subscription.
type RoomChannelPayload struct {
	RoomID uint `json:"room_id"`
}

// ConfirmedPayload reconciles a client temp id with the persisted message.
type ConfirmedPayload struct {
	TempID  string      `json:"temp_id"`
	Message interface{} `json:"message"`
}

// ErrorPayload reports a failed client event.
type ErrorPayload struct {
	TempID  string `json:"temp_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReadReceiptPayload notifies the original sender that a message was read.
type ReadReceiptPayload struct {
	MessageID uint   `json:"message_id"`
	ReaderID  string `json:"reader_id"`
	RoomID    uint   `json:"room_id"`
}

// MembershipPayload announces a membership change inside a room.
type MembershipPayload struct {
	RoomID uint   `json:"room_id"`
	UserID string `json:"user_id"`
}

// RoomsUpdatedPayload tells a user that their room list changed.
type RoomsUpdatedPayload struct {
	ChangeType string      `json:"change_type"`
	Room       interface{} `json:"room"`
}
