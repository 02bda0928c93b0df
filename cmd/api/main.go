package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/config"
	"github.com/nearbyhq/chat-api/internal/database"
	"github.com/nearbyhq/chat-api/internal/handler"
	"github.com/nearbyhq/chat-api/internal/middleware"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/repository"
	"github.com/nearbyhq/chat-api/internal/router"
	"github.com/nearbyhq/chat-api/internal/service"
	cloud "github.com/nearbyhq/chat-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)

	hub := realtime.NewHub(logger)
	eventBus := service.NewEventBus(hub, redisClient, cfg.EventChannel, natsConn, logger)

	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	eventBus.Start(busCtx)

	membershipIndex := service.NewMembershipIndex(roomRepo, redisClient, "chat:member", cfg.MembershipCacheTTL, logger)
	notifier := service.NewNATSNotifier(natsConn, cfg.PushSubject, logger)

	chatService := service.NewChatService(messageRepo, roomRepo, membershipIndex, eventBus, notifier, validate, logger)
	roomService := service.NewRoomService(roomRepo, membershipIndex, eventBus, notifier, validate, logger)
	invitationService := service.NewInvitationService(invitationRepo, roomRepo, membershipIndex, roomService, eventBus, notifier, validate, logger)
	uploadService := service.NewUploadService(uploader, cfg.UploadMaxMB, logger)

	gateway := service.NewSocketGateway(hub, chatService, logger)

	roomHandler := handler.NewRoomHandler(roomService, validate, logger)
	chatHandler := handler.NewChatHandler(chatService, hub, gateway, validate, logger)
	invitationHandler := handler.NewInvitationHandler(invitationService, validate, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RoomHandler:       roomHandler,
		ChatHandler:       chatHandler,
		InvitationHandler: invitationHandler,
		UploadHandler:     uploadHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
