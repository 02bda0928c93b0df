package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nearbyhq/chat-api/internal/models"
)

func newCachedIndex(t *testing.T) (*fakeRoomRepo, *miniredis.Miniredis, *MembershipIndex) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rooms := newFakeRoomRepo()
	index := NewMembershipIndex(rooms, client, "chat:member", 0, zerolog.Nop())
	return rooms, server, index
}

func TestMembershipIndexCachesLookups(t *testing.T) {
	rooms, server, index := newCachedIndex(t)
	room := rooms.seedRoom(models.Room{Name: "general", Type: models.RoomTypeGroup, CreatorID: "alice"}, "bob")

	member, found, err := index.Member(context.Background(), room.ID, "bob")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "bob", member.UserID)

	require.True(t, server.Exists("chat:member:1:bob"), "lookup populates the cache")

	// A cached entry answers without touching the repository.
	require.NoError(t, rooms.RemoveMember(context.Background(), room.ID, "bob"))
	_, found, err = index.Member(context.Background(), room.ID, "bob")
	require.NoError(t, err)
	require.True(t, found, "stale until invalidated")

	index.Invalidate(context.Background(), room.ID, "bob")
	_, found, err = index.Member(context.Background(), room.ID, "bob")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMembershipIndexMissIsNotCached(t *testing.T) {
	rooms, server, index := newCachedIndex(t)
	room := rooms.seedRoom(models.Room{Name: "general", Type: models.RoomTypeGroup, CreatorID: "alice"})

	_, found, err := index.Member(context.Background(), room.ID, "stranger")
	require.NoError(t, err)
	require.False(t, found)
	require.False(t, server.Exists("chat:member:1:stranger"))

	// The user joins; the next lookup must see the fresh fact.
	_, err = rooms.AddMember(context.Background(), room.ID, "stranger", false)
	require.NoError(t, err)

	_, found, err = index.Member(context.Background(), room.ID, "stranger")
	require.NoError(t, err)
	require.True(t, found)
}

func TestMembershipIndexHonorsConfiguredTTL(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rooms := newFakeRoomRepo()
	index := NewMembershipIndex(rooms, client, "chat:member", 30*time.Second, zerolog.Nop())
	room := rooms.seedRoom(models.Room{Name: "general", Type: models.RoomTypeGroup, CreatorID: "alice"}, "bob")

	_, found, err := index.Member(context.Background(), room.ID, "bob")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 30*time.Second, server.TTL("chat:member:1:bob"))

	server.FastForward(31 * time.Second)
	require.False(t, server.Exists("chat:member:1:bob"), "entry expires after the configured ttl")
}

func TestMembershipIndexWorksWithoutRedis(t *testing.T) {
	rooms := newFakeRoomRepo()
	index := NewMembershipIndex(rooms, nil, "", 0, zerolog.Nop())
	room := rooms.seedRoom(models.Room{Name: "general", Type: models.RoomTypeGroup, CreatorID: "alice"})

	member, found, err := index.Member(context.Background(), room.ID, "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, member.IsAdmin)
}
