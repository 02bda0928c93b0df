package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/service"
	"github.com/nearbyhq/chat-api/internal/utils"
)

// UploadHandler handles chat media uploads.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/", h.upload)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	if userIDFromContext(c) == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.Upload(withRequestContext(c), file)
	if err != nil {
		status := statusForError(err)
		if status == fiber.StatusInternalServerError {
			h.logger.Error().Err(err).Msg("upload failed")
			return utils.SendError(c, status, "upload failed")
		}
		return utils.SendError(c, status, err.Error())
	}

	return utils.SendSuccess(c, "upload successful", result)
}
