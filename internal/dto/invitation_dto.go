package dto

import (
	"time"

	"github.com/nearbyhq/chat-api/internal/models"
)

// InvitationCreateRequest proposes room membership to a set of users.
type InvitationCreateRequest struct {
	RoomID   uint     `json:"room_id" validate:"required"`
	Invitees []string `json:"invitees" validate:"required,min=1,dive,required,max=64"`
}

// InvitationResponse is the serialized representation of a pending invitation.
type InvitationResponse struct {
	ID        uint              `json:"id"`
	RoomID    uint              `json:"room_id"`
	InviterID string            `json:"inviter_id"`
	Invitees  map[string]string `json:"invitees"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewInvitationResponse converts an invitation model into a DTO.
func NewInvitationResponse(invitation models.Invitation) InvitationResponse {
	response := InvitationResponse{
		ID:        invitation.ID,
		RoomID:    invitation.RoomID,
		InviterID: invitation.InviterID,
		Invitees:  make(map[string]string, len(invitation.Invitees)),
		CreatedAt: invitation.CreatedAt,
	}
	for userID, state := range invitation.Invitees {
		if str, ok := state.(string); ok {
			response.Invitees[userID] = str
		}
	}
	return response
}

// NewInvitationResponseSlice converts a slice of invitations into DTOs.
func NewInvitationResponseSlice(items []models.Invitation) []InvitationResponse {
	out := make([]InvitationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewInvitationResponse(item))
	}
	return out
}
