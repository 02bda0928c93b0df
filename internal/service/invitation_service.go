package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/models"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/repository"
)

// RoomChangeInvited flags a pending invitation on the personal channel.
const RoomChangeInvited = "invited"

// InvitationService manages pending room invitations. Accepting consumes the
// invitee's entry and promotes it into a membership fact through the room
// service, so the counter+row pairing stays atomic.
type InvitationService interface {
	Invite(ctx context.Context, inviterID string, payload dto.InvitationCreateRequest) (dto.InvitationResponse, error)
	Accept(ctx context.Context, invitationID uint, userID string) (dto.RoomMemberResponse, error)
	Decline(ctx context.Context, invitationID uint, userID string) error
	Revoke(ctx context.Context, invitationID uint, requesterID string) error
	ListForUser(ctx context.Context, userID string) ([]dto.InvitationResponse, error)
	ListByRoom(ctx context.Context, roomID uint, requesterID string) ([]dto.InvitationResponse, error)
}

type invitationService struct {
	invitations repository.InvitationRepository
	rooms       repository.RoomRepository
	members     *MembershipIndex
	roomService RoomService
	events      EventPublisher
	notifier    Notifier
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewInvitationService constructs an invitation service.
func NewInvitationService(
	invitations repository.InvitationRepository,
	rooms repository.RoomRepository,
	members *MembershipIndex,
	roomService RoomService,
	events EventPublisher,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) InvitationService {
	return &invitationService{
		invitations: invitations,
		rooms:       rooms,
		members:     members,
		roomService: roomService,
		events:      events,
		notifier:    notifier,
		validator:   validate,
		logger:      logger.With().Str("component", "invitation_service").Logger(),
	}
}

func (s *invitationService) Invite(ctx context.Context, inviterID string, payload dto.InvitationCreateRequest) (dto.InvitationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.InvitationResponse{}, err
	}

	room, err := s.rooms.Get(ctx, payload.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.InvitationResponse{}, ErrNotFound
		}
		return dto.InvitationResponse{}, err
	}

	if room.CreatorID != inviterID {
		_, ok, err := s.members.Member(ctx, room.ID, inviterID)
		if err != nil {
			return dto.InvitationResponse{}, err
		}
		if !ok {
			return dto.InvitationResponse{}, ErrNotAMember
		}
	}

	invitees := datatypes.JSONMap{}
	for _, userID := range payload.Invitees {
		if userID == inviterID {
			continue
		}
		_, alreadyMember, err := s.members.Member(ctx, room.ID, userID)
		if err != nil {
			return dto.InvitationResponse{}, err
		}
		if alreadyMember {
			continue
		}
		invitees[userID] = models.InviteStatePending
	}

	if len(invitees) == 0 {
		return dto.InvitationResponse{}, ErrAlreadyMember
	}

	invitation := models.Invitation{
		RoomID:    room.ID,
		InviterID: inviterID,
		Invitees:  invitees,
	}

	if err := s.invitations.Create(ctx, &invitation); err != nil {
		return dto.InvitationResponse{}, err
	}

	response := dto.NewInvitationResponse(invitation)
	roomResponse := dto.NewRoomResponse(room)

	for userID := range invitees {
		s.events.UserSend(ctx, userID, realtime.NewEvent(realtime.EventRoomsUpdated, realtime.RoomsUpdatedPayload{
			ChangeType: RoomChangeInvited,
			Room:       roomResponse,
		}))
		if !s.events.IsOnline(userID) {
			if err := s.notifier.Push(ctx, userID, "room_invitation", response); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("invitation push failed")
			}
		}
	}

	s.logger.Info().Uint("room_id", room.ID).Str("inviter_id", inviterID).Int("invitees", len(invitees)).Msg("invitation created")
	return response, nil
}

// Accept consumes the invitee's entry and adds the membership. The invitation
// row is deleted once its last entry is consumed.
func (s *invitationService) Accept(ctx context.Context, invitationID uint, userID string) (dto.RoomMemberResponse, error) {
	invitation, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoomMemberResponse{}, ErrNotFound
		}
		return dto.RoomMemberResponse{}, err
	}

	if _, invited := invitation.Invitees[userID]; !invited {
		// Not being invited is indistinguishable from a missing invitation.
		return dto.RoomMemberResponse{}, ErrNotFound
	}

	member, err := s.roomService.AddMember(ctx, invitation.RoomID, userID)
	if err != nil && !errors.Is(err, ErrAlreadyMember) {
		return dto.RoomMemberResponse{}, err
	}

	if err := s.consumeEntry(ctx, invitation, userID); err != nil {
		return dto.RoomMemberResponse{}, err
	}

	return member, nil
}

func (s *invitationService) Decline(ctx context.Context, invitationID uint, userID string) error {
	invitation, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if _, invited := invitation.Invitees[userID]; !invited {
		return ErrNotFound
	}

	return s.consumeEntry(ctx, invitation, userID)
}

// Revoke deletes the whole invitation. Only the inviter or the room's
// creator may revoke.
func (s *invitationService) Revoke(ctx context.Context, invitationID uint, requesterID string) error {
	invitation, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if invitation.InviterID != requesterID {
		room, err := s.rooms.Get(ctx, invitation.RoomID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if room.CreatorID != requesterID {
			return ErrForbidden
		}
	}

	return s.invitations.Delete(ctx, invitationID)
}

func (s *invitationService) ListForUser(ctx context.Context, userID string) ([]dto.InvitationResponse, error) {
	invitations, err := s.invitations.ListForInvitee(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewInvitationResponseSlice(invitations), nil
}

func (s *invitationService) ListByRoom(ctx context.Context, roomID uint, requesterID string) ([]dto.InvitationResponse, error) {
	_, ok, err := s.members.Member(ctx, roomID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAMember
	}

	invitations, err := s.invitations.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return dto.NewInvitationResponseSlice(invitations), nil
}

func (s *invitationService) consumeEntry(ctx context.Context, invitation models.Invitation, userID string) error {
	delete(invitation.Invitees, userID)
	if len(invitation.Invitees) == 0 {
		return s.invitations.Delete(ctx, invitation.ID)
	}
	return s.invitations.Update(ctx, &invitation)
}
