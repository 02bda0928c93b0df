package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/handler"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/service"
)

type stubChatService struct {
	service.ChatService
	message dto.MessageResponse
}

func (s stubChatService) SendMessage(context.Context, string, dto.MessageSendRequest) (dto.MessageResponse, error) {
	return s.message, nil
}

func TestSendMessageResponseContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "chat_message.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	svc := stubChatService{message: dto.MessageResponse{
		ID:        42,
		RoomID:    7,
		SenderID:  "alice",
		Content:   "hello world",
		Status:    "sent",
		CreatedAt: time.Now().UTC(),
	}}

	hub := realtime.NewHub(zerolog.Nop())
	gateway := service.NewSocketGateway(hub, svc, zerolog.Nop())
	chatHandler := handler.NewChatHandler(svc, hub, gateway, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		c.Locals("user_id", "alice")
		return c.Next()
	})
	chatHandler.Register(group)

	body, _ := json.Marshal(dto.MessageSendRequest{RoomID: 7, Content: "hello world"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}
