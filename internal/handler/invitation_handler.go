package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/service"
	"github.com/nearbyhq/chat-api/internal/utils"
)

// InvitationHandler exposes the room invitation endpoints.
type InvitationHandler struct {
	service   service.InvitationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewInvitationHandler constructs an invitation handler.
func NewInvitationHandler(service service.InvitationService, validator *validator.Validate, logger zerolog.Logger) *InvitationHandler {
	return &InvitationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "invitation_handler").Logger(),
	}
}

// Register binds invitation routes under the provided router group.
func (h *InvitationHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.listForUser)
	router.Get("/room/:roomId", h.listByRoom)
	router.Post("/:id/accept", h.accept)
	router.Post("/:id/decline", h.decline)
	router.Delete("/:id", h.revoke)
}

func (h *InvitationHandler) create(c *fiber.Ctx) error {
	inviterID := userIDFromContext(c)
	if inviterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.InvitationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	invitation, err := h.service.Invite(withRequestContext(c), inviterID, payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "invitation created", invitation)
}

func (h *InvitationHandler) listForUser(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	invitations, err := h.service.ListForUser(withRequestContext(c), userID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "pending invitations", invitations)
}

func (h *InvitationHandler) listByRoom(c *fiber.Ctx) error {
	requesterID := userIDFromContext(c)
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	roomID, err := parseUintParam(c, "roomId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	invitations, err := h.service.ListByRoom(withRequestContext(c), roomID, requesterID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "room invitations", invitations)
}

func (h *InvitationHandler) accept(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	invitationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	member, err := h.service.Accept(withRequestContext(c), invitationID, userID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "invitation accepted", member)
}

func (h *InvitationHandler) decline(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	invitationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Decline(withRequestContext(c), invitationID, userID); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "invitation declined", nil)
}

func (h *InvitationHandler) revoke(c *fiber.Ctx) error {
	requesterID := userIDFromContext(c)
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	invitationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Revoke(withRequestContext(c), invitationID, requesterID); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "invitation revoked", nil)
}
