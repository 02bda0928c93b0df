package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nearbyhq/chat-api/internal/config"
	"github.com/nearbyhq/chat-api/internal/handler"
	"github.com/nearbyhq/chat-api/internal/middleware"
	"github.com/nearbyhq/chat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RoomHandler       *handler.RoomHandler
	ChatHandler       *handler.ChatHandler
	InvitationHandler *handler.InvitationHandler
	UploadHandler     *handler.UploadHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.RoomHandler != nil {
		rooms := app.Group("/api/v1/rooms", jwtMiddleware, middleware.RateLimit("rooms", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.RoomHandler.Register(rooms)
	}

	if deps.ChatHandler != nil {
		chat := app.Group("/api/v1/chat", jwtMiddleware, middleware.RateLimit("chat", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.ChatHandler.Register(chat)
	}

	if deps.InvitationHandler != nil {
		invitations := app.Group("/api/v1/invitations", jwtMiddleware, middleware.RateLimit("invitations", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.InvitationHandler.Register(invitations)
	}

	if deps.UploadHandler != nil {
		uploads := app.Group("/api/v1/uploads", jwtMiddleware, middleware.RateLimit("uploads", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.UploadHandler.Register(uploads)
	}
}
