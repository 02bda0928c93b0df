package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/models"
	"github.com/nearbyhq/chat-api/internal/repository"
)

const defaultMembershipCacheTTL = 5 * time.Minute

// MembershipIndex answers "does this user belong to this room, and with what
// role" for every authorization decision. It is a read-mostly cache over the
// room repository; the repository stays the source of truth and every
// membership-mutating operation must call Invalidate so an authorization
// decision is never served from a stale entry.
type MembershipIndex struct {
	rooms  repository.RoomRepository
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewMembershipIndex constructs the index. A nil redis client disables
// caching and every lookup hits the repository directly. A non-positive ttl
// falls back to the default.
func NewMembershipIndex(rooms repository.RoomRepository, redisClient *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *MembershipIndex {
	if prefix == "" {
		prefix = "chat:member"
	}
	if ttl <= 0 {
		ttl = defaultMembershipCacheTTL
	}
	return &MembershipIndex{
		rooms:  rooms,
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "membership_index").Logger(),
	}
}

// Member returns the active membership fact for (room, user), or found=false
// when none exists.
func (i *MembershipIndex) Member(ctx context.Context, roomID uint, userID string) (models.RoomMember, bool, error) {
	if cached, ok := i.fetch(ctx, roomID, userID); ok {
		return cached, true, nil
	}

	member, err := i.rooms.GetMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoomMember{}, false, nil
		}
		return models.RoomMember{}, false, err
	}

	i.store(ctx, member)
	return member, true, nil
}

// Invalidate drops the cached entry for (room, user). Called on every
// membership mutation before the change is announced.
func (i *MembershipIndex) Invalidate(ctx context.Context, roomID uint, userID string) {
	if i.redis == nil {
		return
	}
	if err := i.redis.Del(ctx, i.key(roomID, userID)).Err(); err != nil {
		i.logger.Warn().Err(err).Uint("room_id", roomID).Str("user_id", userID).Msg("failed to invalidate membership cache")
	}
}

func (i *MembershipIndex) fetch(ctx context.Context, roomID uint, userID string) (models.RoomMember, bool) {
	if i.redis == nil {
		return models.RoomMember{}, false
	}

	raw, err := i.redis.Get(ctx, i.key(roomID, userID)).Result()
	if err != nil {
		return models.RoomMember{}, false
	}

	var member models.RoomMember
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		i.logger.Warn().Err(err).Msg("failed to unmarshal cached membership")
		return models.RoomMember{}, false
	}
	return member, true
}

func (i *MembershipIndex) store(ctx context.Context, member models.RoomMember) {
	if i.redis == nil {
		return
	}

	payload, err := json.Marshal(member)
	if err != nil {
		i.logger.Warn().Err(err).Msg("failed to marshal membership for cache")
		return
	}
	if err := i.redis.Set(ctx, i.key(member.RoomID, member.UserID), payload, i.ttl).Err(); err != nil {
		i.logger.Warn().Err(err).Msg("failed to cache membership")
	}
}

func (i *MembershipIndex) key(roomID uint, userID string) string {
	return fmt.Sprintf("%s:%d:%s", i.prefix, roomID, userID)
}
