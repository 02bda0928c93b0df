package dto

import (
	"time"

	"github.com/nearbyhq/chat-api/internal/models"
)

// MessageSendRequest is the payload to post a message into a room.
// Content and MediaURL may not both be empty; the engine enforces this.
type MessageSendRequest struct {
	RoomID    uint   `json:"room_id" validate:"required"`
	Content   string `json:"content" validate:"omitempty,max=4000"`
	MediaURL  string `json:"media_url" validate:"omitempty,url,max=512"`
	IsRequest bool   `json:"is_request"`
}

// ChatHistoryQuery filters message history retrieval.
type ChatHistoryQuery struct {
	RoomID uint       `query:"room_id" validate:"required"`
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
	Status    string    `json:"status"`
	IsRequest bool      `json:"is_request"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(message models.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:        message.ID,
		RoomID:    message.RoomID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		MediaURL:  message.MediaURL,
		Status:    message.Status,
		IsRequest: message.IsRequest,
		CreatedAt: message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of messages into DTOs.
func NewMessageResponseSlice(messages []models.ChatMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// UploadResponse describes a stored media asset referenced by messages.
type UploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
