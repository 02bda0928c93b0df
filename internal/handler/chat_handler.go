package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/middleware"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/service"
	"github.com/nearbyhq/chat-api/internal/utils"
)

// ChatHandler wires the message endpoints and the websocket upgrade.
type ChatHandler struct {
	service   service.ChatService
	hub       *realtime.Hub
	gateway   *service.SocketGateway
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(chat service.ChatService, hub *realtime.Hub, gateway *service.SocketGateway, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   chat,
		hub:       hub,
		gateway:   gateway,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("/history", h.history)
	router.Post("/messages", h.send)
	router.Patch("/messages/:id/read", h.markRead)
	router.Delete("/messages/:id", h.deleteMessage)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := realtime.NewClient(h.hub, conn, userID, h.logger)

	h.logger.Info().Str("user_id", userID).Msg("chat websocket connected")
	client.Serve(baseCtx, h.gateway)
	h.logger.Info().Str("user_id", userID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	senderID := userIDFromContext(c)
	if senderID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.SendMessage(withRequestContext(c), senderID, payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	requesterID := userIDFromContext(c)
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	roomID, err := parseUintQuery(c, "room_id")
	if err != nil || roomID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "room_id required")
	}

	var beforePtr *time.Time
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		beforePtr = &parsed
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	query := dto.ChatHistoryQuery{
		RoomID: roomID,
		Before: beforePtr,
		Limit:  limit,
	}

	messages, err := h.service.History(withRequestContext(c), requesterID, query)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "chat history", messages)
}

func (h *ChatHandler) markRead(c *fiber.Ctx) error {
	readerID := userIDFromContext(c)
	if readerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	message, err := h.service.MarkRead(withRequestContext(c), messageID, readerID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "message read", message)
}

func (h *ChatHandler) deleteMessage(c *fiber.Ctx) error {
	senderID := userIDFromContext(c)
	if senderID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	roomID, err := parseUintQuery(c, "room_id")
	if err != nil || roomID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "room_id required")
	}

	if err := h.service.DeleteMessage(withRequestContext(c), messageID, senderID, roomID); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "message deleted", nil)
}

func websocketUserID(conn *websocket.Conn) string {
	if value := conn.Locals("user_id"); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
