package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/service"
	"github.com/nearbyhq/chat-api/internal/utils"
)

// RoomHandler exposes the room lifecycle and membership endpoints.
type RoomHandler struct {
	service   service.RoomService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoomHandler constructs a room handler instance.
func NewRoomHandler(service service.RoomService, validator *validator.Validate, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds room routes under the provided router group.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/broadcast", h.toggleBroadcast)
	router.Post("/:id/members", h.addMember)
	router.Delete("/:id/members/:userId", h.removeMember)
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	creatorID := userIDFromContext(c)
	if creatorID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.RoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, err := h.service.CreateRoom(withRequestContext(c), creatorID, payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", room)
}

func (h *RoomHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	rooms, err := h.service.ListRooms(withRequestContext(c), userID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "rooms", rooms)
}

func (h *RoomHandler) get(c *fiber.Ctx) error {
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	room, err := h.service.GetRoom(withRequestContext(c), roomID, userIDFromContext(c))
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "room", room)
}

func (h *RoomHandler) update(c *fiber.Ctx) error {
	requesterID := userIDFromContext(c)
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RoomUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, err := h.service.UpdateRoom(withRequestContext(c), roomID, requesterID, payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "room updated", room)
}

func (h *RoomHandler) delete(c *fiber.Ctx) error {
	requesterID := userIDFromContext(c)
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteRoom(withRequestContext(c), roomID, requesterID); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "room deleted", nil)
}

func (h *RoomHandler) toggleBroadcast(c *fiber.Ctx) error {
	requesterID := userIDFromContext(c)
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BroadcastToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	room, err := h.service.ToggleBroadcast(withRequestContext(c), roomID, requesterID, *payload.Enabled)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "broadcast mode updated", room)
}

func (h *RoomHandler) addMember(c *fiber.Ctx) error {
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MemberRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	member, err := h.service.AddMember(withRequestContext(c), roomID, payload.UserID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "member added", member)
}

func (h *RoomHandler) removeMember(c *fiber.Ctx) error {
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := c.Params("userId")
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user id required")
	}

	if err := h.service.RemoveMember(withRequestContext(c), roomID, userID); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "member removed", nil)
}
