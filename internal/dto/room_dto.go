package dto

import (
	"time"

	"github.com/nearbyhq/chat-api/internal/models"
)

// RoomCreateRequest is the payload to open a new room with an initial member set.
type RoomCreateRequest struct {
	Name        string   `json:"name" validate:"omitempty,max=255"`
	Type        string   `json:"type" validate:"required,oneof=direct group"`
	Description string   `json:"description" validate:"omitempty,max=2000"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url,max=512"`
	Visibility  string   `json:"visibility" validate:"omitempty,oneof=public private"`
	MemberIDs   []string `json:"member_ids" validate:"required,min=1,dive,required,max=64"`
}

// RoomUpdateRequest mutates room metadata. Nil fields are left untouched.
type RoomUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url,max=512"`
}

// BroadcastToggleRequest flips a room's broadcast mode.
type BroadcastToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// MemberRequest identifies a user to add to or remove from a room.
type MemberRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// RoomMemberResponse is the serialized membership fact.
type RoomMemberResponse struct {
	RoomID   uint      `json:"room_id"`
	UserID   string    `json:"user_id"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomResponse is the serialized representation of a room.
type RoomResponse struct {
	ID               uint                 `json:"id"`
	Name             string               `json:"name,omitempty"`
	Type             string               `json:"type"`
	Description      string               `json:"description,omitempty"`
	ImageURL         string               `json:"image_url,omitempty"`
	Visibility       string               `json:"visibility"`
	CreatorID        string               `json:"creator_id"`
	TotalMembers     int                  `json:"total_members"`
	BroadcastEnabled bool                 `json:"broadcast_enabled"`
	CreatedAt        time.Time            `json:"created_at"`
	Members          []RoomMemberResponse `json:"members,omitempty"`
}

// NewRoomMemberResponse converts a membership model into a DTO.
func NewRoomMemberResponse(member models.RoomMember) RoomMemberResponse {
	return RoomMemberResponse{
		RoomID:   member.RoomID,
		UserID:   member.UserID,
		IsAdmin:  member.IsAdmin,
		JoinedAt: member.JoinedAt,
	}
}

// NewRoomResponse converts a room model into a DTO, including members when preloaded.
func NewRoomResponse(room models.Room) RoomResponse {
	response := RoomResponse{
		ID:               room.ID,
		Name:             room.Name,
		Type:             room.Type,
		Description:      room.Description,
		ImageURL:         room.ImageURL,
		Visibility:       room.Visibility,
		CreatorID:        room.CreatorID,
		TotalMembers:     room.TotalMembers,
		BroadcastEnabled: room.BroadcastEnabled,
		CreatedAt:        room.CreatedAt,
	}
	if len(room.Members) > 0 {
		members := make([]RoomMemberResponse, 0, len(room.Members))
		for _, member := range room.Members {
			members = append(members, NewRoomMemberResponse(member))
		}
		response.Members = members
	}
	return response
}

// NewRoomResponseSlice converts a slice of rooms into DTOs.
func NewRoomResponseSlice(rooms []models.Room) []RoomResponse {
	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, NewRoomResponse(room))
	}
	return out
}
