package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/models"
	"github.com/nearbyhq/chat-api/internal/realtime"
)

// SocketGateway routes live-surface frames into the chat engine and runs the
// optimistic send protocol: draft echoed to the sender, then either a
// confirmation carrying the persisted id or an error the client can retry on.
type SocketGateway struct {
	fanout Fanout
	chat   ChatService
	logger zerolog.Logger
}

// NewSocketGateway constructs the gateway.
func NewSocketGateway(fanout Fanout, chat ChatService, logger zerolog.Logger) *SocketGateway {
	return &SocketGateway{
		fanout: fanout,
		chat:   chat,
		logger: logger.With().Str("component", "socket_gateway").Logger(),
	}
}

// OnAuthenticate binds the connection to its room subscriptions. The user
// identity always comes from the upgrade-time token; a payload user id that
// disagrees is rejected.
func (g *SocketGateway) OnAuthenticate(_ context.Context, client *realtime.Client, payload realtime.AuthenticatePayload) {
	if payload.UserID != "" && payload.UserID != client.UserID() {
		client.Send(realtime.NewEvent(realtime.EventMessageError, realtime.ErrorPayload{
			Code:    "identity_mismatch",
			Message: "authenticate user does not match connection identity",
		}))
		return
	}

	g.fanout.Authenticate(client, payload.RoomIDs)
}

func (g *SocketGateway) OnSendMessage(ctx context.Context, client *realtime.Client, payload realtime.SendMessagePayload) {
	tempID := payload.TempID
	if tempID == "" {
		tempID = uuid.NewString()
	}

	draft := dto.MessageResponse{
		RoomID:    payload.RoomID,
		SenderID:  client.UserID(),
		Content:   payload.Content,
		MediaURL:  payload.MediaURL,
		Status:    models.MessageStatusSent,
		IsRequest: payload.IsRequest,
		CreatedAt: time.Now().UTC(),
	}
	client.Send(realtime.NewEvent(realtime.EventMessageOptimistic, realtime.ConfirmedPayload{
		TempID:  tempID,
		Message: draft,
	}))

	message, err := g.chat.SendMessage(ctx, client.UserID(), dto.MessageSendRequest{
		RoomID:    payload.RoomID,
		Content:   payload.Content,
		MediaURL:  payload.MediaURL,
		IsRequest: payload.IsRequest,
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", client.UserID()).Uint("room_id", payload.RoomID).Msg("socket send failed")
		client.Send(realtime.NewEvent(realtime.EventMessageError, realtime.ErrorPayload{
			TempID:  tempID,
			Code:    errorCode(err),
			Message: err.Error(),
		}))
		return
	}

	client.Send(realtime.NewEvent(realtime.EventMessageConfirmed, realtime.ConfirmedPayload{
		TempID:  tempID,
		Message: message,
	}))
}

func (g *SocketGateway) OnMessageRead(ctx context.Context, client *realtime.Client, payload realtime.MessageReadPayload) {
	if _, err := g.chat.MarkRead(ctx, payload.MessageID, client.UserID()); err != nil {
		client.Send(realtime.NewEvent(realtime.EventMessageError, realtime.ErrorPayload{
			Code:    errorCode(err),
			Message: err.Error(),
		}))
	}
}

// OnJoinRoom subscribes the connection to a room broadcast group. This is a
// transport-level subscription only; the engine re-checks the membership fact
// on every action.
func (g *SocketGateway) OnJoinRoom(_ context.Context, client *realtime.Client, payload realtime.RoomChannelPayload) {
	g.fanout.JoinRoomChannel(client, payload.RoomID)
}

func (g *SocketGateway) OnLeaveRoom(_ context.Context, client *realtime.Client, payload realtime.RoomChannelPayload) {
	g.fanout.LeaveRoomChannel(client, payload.RoomID)
}

// errorCode maps engine errors to machine-distinguishable codes on the wire.
func errorCode(err error) string {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrBroadcastRestricted):
		return "broadcast_restricted"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.As(err, &validationErrors):
		return "validation_error"
	default:
		return "transient_error"
	}
}
