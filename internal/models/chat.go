package models

import (
	"time"

	"gorm.io/datatypes"
)

// Room types supported by the chat layer.
const (
	RoomTypeDirect = "direct"
	RoomTypeGroup  = "group"
)

// Room visibility values.
const (
	RoomVisibilityPublic  = "public"
	RoomVisibilityPrivate = "private"
)

// Message delivery states. Transitions are monotonic: sent -> delivered -> read.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// Invitation entry states kept per invitee.
const (
	InviteStatePending = "pending"
)

// Room is a container for a conversation between two or more users.
// TotalMembers is denormalized and must match the count of RoomMember rows;
// both are mutated inside the same transaction.
type Room struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255" json:"name,omitempty"`
	Type             string    `gorm:"size:16;not null;default:group" json:"type"`
	Description      string    `gorm:"type:text" json:"description,omitempty"`
	ImageURL         string    `gorm:"size:512" json:"image_url,omitempty"`
	Visibility       string    `gorm:"size:16;not null;default:private" json:"visibility"`
	CreatorID        string    `gorm:"size:64;index;not null" json:"creator_id"`
	TotalMembers     int       `gorm:"not null;default:0" json:"total_members"`
	BroadcastEnabled bool      `gorm:"not null;default:false" json:"broadcast_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Members  []RoomMember  `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Messages []ChatMessage `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// RoomMember records that a user belongs to a room. Its existence is the sole
// authorization fact for reading and sending messages in that room.
type RoomMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"not null;uniqueIndex:idx_room_user" json:"room_id"`
	UserID   string    `gorm:"size:64;not null;uniqueIndex:idx_room_user;index" json:"user_id"`
	IsAdmin  bool      `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// ChatMessage is a single message inside a room. Either Content or MediaURL
// must be present. Status only ever moves forward.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index;not null" json:"room_id"`
	SenderID  string    `gorm:"size:64;index;not null" json:"sender_id"`
	Content   string    `gorm:"type:text" json:"content,omitempty"`
	MediaURL  string    `gorm:"size:512" json:"media_url,omitempty"`
	Status    string    `gorm:"size:16;not null;default:sent" json:"status"`
	IsRequest bool      `gorm:"not null;default:false" json:"is_request"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Invitation is a pending proposal for specific users to join a room.
// Invitees maps invitee user id to its entry state; entries are removed as
// invitees accept or decline, and the row is deleted once drained.
type Invitation struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	RoomID    uint              `gorm:"index;not null" json:"room_id"`
	InviterID string            `gorm:"size:64;index;not null" json:"inviter_id"`
	Invitees  datatypes.JSONMap `gorm:"type:json" json:"invitees"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MessageStatusRank orders delivery states for monotonic transitions.
func MessageStatusRank(status string) int {
	switch status {
	case MessageStatusSent:
		return 0
	case MessageStatusDelivered:
		return 1
	case MessageStatusRead:
		return 2
	default:
		return -1
	}
}
