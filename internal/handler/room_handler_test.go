package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nearbyhq/chat-api/internal/dto"
	"github.com/nearbyhq/chat-api/internal/handler"
	"github.com/nearbyhq/chat-api/internal/service"
)

type stubRoomService struct {
	service.RoomService
	room    dto.RoomResponse
	member  dto.RoomMemberResponse
	rooms   []dto.RoomResponse
	err     error
	created dto.RoomCreateRequest
	removed string
}

func (s *stubRoomService) CreateRoom(_ context.Context, _ string, payload dto.RoomCreateRequest) (dto.RoomResponse, error) {
	s.created = payload
	return s.room, s.err
}

func (s *stubRoomService) GetRoom(context.Context, uint, string) (dto.RoomResponse, error) {
	return s.room, s.err
}

func (s *stubRoomService) ListRooms(context.Context, string) ([]dto.RoomResponse, error) {
	return s.rooms, s.err
}

func (s *stubRoomService) ToggleBroadcast(context.Context, uint, string, bool) (dto.RoomResponse, error) {
	return s.room, s.err
}

func (s *stubRoomService) AddMember(context.Context, uint, string) (dto.RoomMemberResponse, error) {
	return s.member, s.err
}

func (s *stubRoomService) RemoveMember(_ context.Context, _ uint, userID string) error {
	s.removed = userID
	return s.err
}

func newRoomApp(svc service.RoomService, userID string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/rooms", func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	h := handler.NewRoomHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	h.Register(group)
	return app
}

func TestRoomHandlerCreate(t *testing.T) {
	svc := &stubRoomService{room: dto.RoomResponse{ID: 1, Type: "group", CreatorID: "alice", TotalMembers: 2}}
	app := newRoomApp(svc, "alice")

	body, _ := json.Marshal(dto.RoomCreateRequest{Name: "general", Type: "group", MemberIDs: []string{"bob"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, []string{"bob"}, svc.created.MemberIDs)
}

func TestRoomHandlerRequiresAuthentication(t *testing.T) {
	app := newRoomApp(&stubRoomService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomHandlerGetMapsNotFound(t *testing.T) {
	app := newRoomApp(&stubRoomService{err: service.ErrNotFound}, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/42", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomHandlerToggleBroadcastValidatesBody(t *testing.T) {
	app := newRoomApp(&stubRoomService{room: dto.RoomResponse{ID: 1, BroadcastEnabled: true}}, "alice")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/rooms/1/broadcast", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "enabled flag is required")

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/rooms/1/broadcast", bytes.NewReader([]byte(`{"enabled":true}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomHandlerRemoveMemberForbidden(t *testing.T) {
	app := newRoomApp(&stubRoomService{err: service.ErrForbidden}, "alice")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/1/members/bob", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
