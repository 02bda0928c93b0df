package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/models"
	"github.com/nearbyhq/chat-api/internal/observability"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/repository"
)

// ChatService is the message lifecycle engine: it decides whether a message
// may be created, persists it, and drives its status transitions.
type ChatService interface {
	SendMessage(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	MarkDelivered(ctx context.Context, messageID uint) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, messageID uint, readerID string) (dto.MessageResponse, error)
	DeleteMessage(ctx context.Context, messageID uint, senderID string, roomID uint) error
	History(ctx context.Context, requesterID string, query dto.ChatHistoryQuery) ([]dto.MessageResponse, error)
}

type chatService struct {
	messages  repository.MessageRepository
	rooms     repository.RoomRepository
	members   *MembershipIndex
	events    EventPublisher
	notifier  Notifier
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewChatService constructs the engine. The fan-out surface and the offline
// notifier are injected; the engine holds no ambient transport state.
func NewChatService(
	messages repository.MessageRepository,
	rooms repository.RoomRepository,
	members *MembershipIndex,
	events EventPublisher,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &chatService{
		messages:  messages,
		rooms:     rooms,
		members:   members,
		events:    events,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/nearbyhq/chat-api/internal/service/chat"),
		sanitizer: sanitizer,
	}
}

func (s *chatService) SendMessage(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	mediaURL := strings.TrimSpace(payload.MediaURL)
	if content == "" && mediaURL == "" {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	room, err := s.rooms.Get(ctx, payload.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrNotFound
		}
		return dto.MessageResponse{}, err
	}

	member, ok, err := s.members.Member(ctx, room.ID, senderID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !ok {
		return dto.MessageResponse{}, ErrNotAMember
	}
	if room.BroadcastEnabled && !member.IsAdmin {
		return dto.MessageResponse{}, ErrBroadcastRestricted
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("chat.room_id", int64(room.ID)),
		attribute.String("chat.sender_id", senderID),
		attribute.Bool("chat.is_request", payload.IsRequest),
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(attrs...))
	defer span.End()

	message := models.ChatMessage{
		RoomID:    room.ID,
		SenderID:  senderID,
		Content:   content,
		MediaURL:  mediaURL,
		Status:    models.MessageStatusSent,
		IsRequest: payload.IsRequest,
	}

	if err := s.messages.Save(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	observability.ChatMessagesSent().WithLabelValues(messageKind(message)).Inc()

	s.events.RoomBroadcast(spanCtx, room.ID, realtime.NewEvent(realtime.EventReceiveMessage, response))

	if s.notifyOffline(spanCtx, room.ID, senderID, response) {
		if _, err := s.MarkDelivered(spanCtx, message.ID); err != nil {
			s.logger.Warn().Err(err).Uint("message_id", message.ID).Msg("failed to mark message delivered")
		}
	}

	return response, nil
}

func (s *chatService) MarkDelivered(ctx context.Context, messageID uint) (dto.MessageResponse, error) {
	message, err := s.messages.AdvanceStatus(ctx, messageID, models.MessageStatusDelivered)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrNotFound
		}
		return dto.MessageResponse{}, err
	}
	return dto.NewMessageResponse(message), nil
}

// MarkRead is idempotent: reading an already-read message is a no-op and the
// read receipt is only emitted on the first transition. A reader without a
// membership in the message's room sees the same NotFound as a missing id.
func (s *chatService) MarkRead(ctx context.Context, messageID uint, readerID string) (dto.MessageResponse, error) {
	before, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrNotFound
		}
		return dto.MessageResponse{}, err
	}

	_, ok, err := s.members.Member(ctx, before.RoomID, readerID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !ok {
		return dto.MessageResponse{}, ErrNotFound
	}

	message, err := s.messages.AdvanceStatus(ctx, messageID, models.MessageStatusRead)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrNotFound
		}
		return dto.MessageResponse{}, err
	}

	if models.MessageStatusRank(before.Status) < models.MessageStatusRank(models.MessageStatusRead) {
		receipt := realtime.ReadReceiptPayload{
			MessageID: message.ID,
			ReaderID:  readerID,
			RoomID:    message.RoomID,
		}
		s.events.UserSend(ctx, message.SenderID, realtime.NewEvent(realtime.EventMessageReadReceipt, receipt))
	}

	return dto.NewMessageResponse(message), nil
}

// DeleteMessage removes a message only for its own sender. A mismatched
// sender or room reports the same NotFound as a missing id so existence is
// never leaked to non-authors.
func (s *chatService) DeleteMessage(ctx context.Context, messageID uint, senderID string, roomID uint) error {
	err := s.messages.DeleteOwned(ctx, messageID, senderID, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *chatService) History(ctx context.Context, requesterID string, query dto.ChatHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	_, ok, err := s.members.Member(ctx, query.RoomID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAMember
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.messages.ListByRoom(ctx, query.RoomID, before, query.Limit)
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

// notifyOffline pushes the message to members without a live connection and
// reports whether any recipient held one. Push failures are logged and
// suppressed; they never fail the send.
func (s *chatService) notifyOffline(ctx context.Context, roomID uint, senderID string, message dto.MessageResponse) bool {
	memberIDs, err := s.rooms.MemberIDs(ctx, roomID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("room_id", roomID).Msg("failed to resolve members for offline push")
		return false
	}

	anyOnline := false
	for _, userID := range memberIDs {
		if userID == senderID {
			continue
		}
		if s.events.IsOnline(userID) {
			anyOnline = true
			continue
		}
		if err := s.notifier.Push(ctx, userID, "chat_message", message); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("offline push failed")
		}
	}
	return anyOnline
}

func messageKind(message models.ChatMessage) string {
	switch {
	case message.IsRequest:
		return "request"
	case message.MediaURL != "":
		return "media"
	default:
		return "text"
	}
}
