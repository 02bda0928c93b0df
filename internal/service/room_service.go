package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/models"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/repository"
)

// Room list change kinds carried on personal-channel events.
const (
	RoomChangeCreated = "created"
	RoomChangeJoined  = "joined"
	RoomChangeLeft    = "left"
	RoomChangeUpdated = "updated"
	RoomChangeDeleted = "deleted"
)

// RoomService owns the room lifecycle and the membership facts.
type RoomService interface {
	CreateRoom(ctx context.Context, creatorID string, payload dto.RoomCreateRequest) (dto.RoomResponse, error)
	GetRoom(ctx context.Context, roomID uint, requesterID string) (dto.RoomResponse, error)
	ListRooms(ctx context.Context, userID string) ([]dto.RoomResponse, error)
	UpdateRoom(ctx context.Context, roomID uint, requesterID string, payload dto.RoomUpdateRequest) (dto.RoomResponse, error)
	DeleteRoom(ctx context.Context, roomID uint, requesterID string) error
	ToggleBroadcast(ctx context.Context, roomID uint, requesterID string, enabled bool) (dto.RoomResponse, error)
	AddMember(ctx context.Context, roomID uint, userID string) (dto.RoomMemberResponse, error)
	RemoveMember(ctx context.Context, roomID uint, userID string) error
}

type roomService struct {
	rooms     repository.RoomRepository
	members   *MembershipIndex
	events    EventPublisher
	notifier  Notifier
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewRoomService constructs a room service.
func NewRoomService(
	rooms repository.RoomRepository,
	members *MembershipIndex,
	events EventPublisher,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) RoomService {
	return &roomService{
		rooms:     rooms,
		members:   members,
		events:    events,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "room_service").Logger(),
		tracer:    otel.Tracer("github.com/nearbyhq/chat-api/internal/service/room"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *roomService) CreateRoom(ctx context.Context, creatorID string, payload dto.RoomCreateRequest) (dto.RoomResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoomResponse{}, err
	}

	visibility := payload.Visibility
	if visibility == "" {
		visibility = models.RoomVisibilityPrivate
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if payload.Type == models.RoomTypeDirect {
		// Direct rooms stay anonymous; clients render the peer's name.
		name = ""
	}

	spanCtx, span := s.tracer.Start(ctx, "room.create", trace.WithAttributes(
		attribute.String("room.creator_id", creatorID),
		attribute.String("room.type", payload.Type),
	))
	defer span.End()

	room := models.Room{
		Name:        name,
		Type:        payload.Type,
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		ImageURL:    strings.TrimSpace(payload.ImageURL),
		Visibility:  visibility,
		CreatorID:   creatorID,
	}

	if err := s.rooms.Create(spanCtx, &room, payload.MemberIDs); err != nil {
		span.RecordError(err)
		return dto.RoomResponse{}, err
	}

	response := dto.NewRoomResponse(room)
	s.logger.Info().Uint("room_id", room.ID).Str("creator_id", creatorID).Int("members", room.TotalMembers).Msg("room created")

	for _, member := range room.Members {
		s.events.UserSend(spanCtx, member.UserID, realtime.NewEvent(realtime.EventRoomsUpdated, realtime.RoomsUpdatedPayload{
			ChangeType: RoomChangeCreated,
			Room:       response,
		}))
	}

	return response, nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID uint, requesterID string) (dto.RoomResponse, error) {
	room, err := s.rooms.GetWithMembers(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoomResponse{}, ErrNotFound
		}
		return dto.RoomResponse{}, err
	}

	if room.Visibility == models.RoomVisibilityPrivate {
		_, ok, err := s.members.Member(ctx, roomID, requesterID)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		if !ok {
			// Private rooms are invisible to outsiders.
			return dto.RoomResponse{}, ErrNotFound
		}
	}

	return dto.NewRoomResponse(room), nil
}

func (s *roomService) ListRooms(ctx context.Context, userID string) ([]dto.RoomResponse, error) {
	rooms, err := s.rooms.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewRoomResponseSlice(rooms), nil
}

func (s *roomService) UpdateRoom(ctx context.Context, roomID uint, requesterID string, payload dto.RoomUpdateRequest) (dto.RoomResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoomResponse{}, err
	}

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoomResponse{}, ErrNotFound
		}
		return dto.RoomResponse{}, err
	}

	if err := s.authorizeAdmin(ctx, room, requesterID); err != nil {
		return dto.RoomResponse{}, err
	}

	if payload.Name != nil {
		room.Name = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Name))
	}
	if payload.Description != nil {
		room.Description = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
	}
	if payload.ImageURL != nil {
		room.ImageURL = strings.TrimSpace(*payload.ImageURL)
	}

	if err := s.rooms.Update(ctx, &room); err != nil {
		return dto.RoomResponse{}, err
	}

	response := dto.NewRoomResponse(room)
	s.events.RoomBroadcast(ctx, room.ID, realtime.NewEvent(realtime.EventRoomUpdated, response))

	return response, nil
}

func (s *roomService) DeleteRoom(ctx context.Context, roomID uint, requesterID string) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if room.CreatorID != requesterID {
		return ErrForbidden
	}

	memberIDs, err := s.rooms.MemberIDs(ctx, roomID)
	if err != nil {
		return err
	}

	if err := s.rooms.Delete(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	response := dto.NewRoomResponse(room)
	for _, userID := range memberIDs {
		s.members.Invalidate(ctx, roomID, userID)
		s.events.UserSend(ctx, userID, realtime.NewEvent(realtime.EventRoomsUpdated, realtime.RoomsUpdatedPayload{
			ChangeType: RoomChangeDeleted,
			Room:       response,
		}))
	}

	s.logger.Info().Uint("room_id", roomID).Str("requester_id", requesterID).Msg("room deleted")
	return nil
}

// ToggleBroadcast flips broadcast mode. Only the room's creator may toggle;
// the change takes effect for every subsequent send immediately.
func (s *roomService) ToggleBroadcast(ctx context.Context, roomID uint, requesterID string, enabled bool) (dto.RoomResponse, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoomResponse{}, ErrNotFound
		}
		return dto.RoomResponse{}, err
	}

	if room.CreatorID != requesterID {
		return dto.RoomResponse{}, ErrForbidden
	}

	updated, err := s.rooms.SetBroadcast(ctx, roomID, enabled)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	response := dto.NewRoomResponse(updated)
	s.events.RoomBroadcast(ctx, roomID, realtime.NewEvent(realtime.EventRoomUpdated, response))

	return response, nil
}

func (s *roomService) AddMember(ctx context.Context, roomID uint, userID string) (dto.RoomMemberResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "room.add_member", trace.WithAttributes(
		attribute.Int64("room.id", int64(roomID)),
		attribute.String("room.user_id", userID),
	))
	defer span.End()

	member, err := s.rooms.AddMember(spanCtx, roomID, userID, false)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrDuplicateMember) {
			return dto.RoomMemberResponse{}, ErrAlreadyMember
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoomMemberResponse{}, ErrNotFound
		}
		return dto.RoomMemberResponse{}, err
	}

	s.members.Invalidate(spanCtx, roomID, userID)
	s.announceMembership(spanCtx, roomID, userID, realtime.EventUserJoined, RoomChangeJoined)

	if !s.events.IsOnline(userID) {
		if err := s.notifier.Push(spanCtx, userID, "room_joined", dto.NewRoomMemberResponse(member)); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("membership push failed")
		}
	}

	return dto.NewRoomMemberResponse(member), nil
}

func (s *roomService) RemoveMember(ctx context.Context, roomID uint, userID string) error {
	err := s.rooms.RemoveMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.members.Invalidate(ctx, roomID, userID)
	s.announceMembership(ctx, roomID, userID, realtime.EventUserLeft, RoomChangeLeft)

	return nil
}

func (s *roomService) announceMembership(ctx context.Context, roomID uint, userID string, eventType realtime.EventType, change string) {
	payload := realtime.MembershipPayload{RoomID: roomID, UserID: userID}
	s.events.RoomBroadcast(ctx, roomID, realtime.NewEvent(eventType, payload))

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("room_id", roomID).Msg("failed to load room for membership event")
		return
	}
	s.events.UserSend(ctx, userID, realtime.NewEvent(realtime.EventRoomsUpdated, realtime.RoomsUpdatedPayload{
		ChangeType: change,
		Room:       dto.NewRoomResponse(room),
	}))
}

func (s *roomService) authorizeAdmin(ctx context.Context, room models.Room, requesterID string) error {
	if room.CreatorID == requesterID {
		return nil
	}
	member, ok, err := s.members.Member(ctx, room.ID, requesterID)
	if err != nil {
		return err
	}
	if !ok || !member.IsAdmin {
		return ErrForbidden
	}
	return nil
}
