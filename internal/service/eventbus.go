package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/realtime"
)

// Event scopes used on the cross-node wire.
const (
	scopeRoom = "room"
	scopeUser = "user"
)

// Fanout is the transport-level delivery surface the chat core publishes
// through. *realtime.Hub satisfies it; the engine never reaches into a global
// socket handle.
type Fanout interface {
	Authenticate(client *realtime.Client, roomIDs []uint)
	JoinRoomChannel(client *realtime.Client, roomID uint)
	LeaveRoomChannel(client *realtime.Client, roomID uint)
	BroadcastToRoom(roomID uint, event realtime.Event)
	SendToUser(userID string, event realtime.Event)
	IsOnline(userID string) bool
}

// EventPublisher delivers events to room broadcast groups and personal
// channels, locally and across nodes.
type EventPublisher interface {
	RoomBroadcast(ctx context.Context, roomID uint, event realtime.Event)
	UserSend(ctx context.Context, userID string, event realtime.Event)
	IsOnline(userID string) bool
}

// wireEvent is the envelope mirrored between nodes so connections attached to
// any instance observe the same events.
type wireEvent struct {
	Source string          `json:"source"`
	Scope  string          `json:"scope"`
	RoomID uint            `json:"room_id,omitempty"`
	UserID string          `json:"user_id,omitempty"`
	Event  realtime.Event  `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

// EventBus fans events out to the local hub and mirrors them over redis
// pub/sub and NATS so other nodes can do the same. Mirror failures are logged
// and suppressed; local delivery always proceeds.
type EventBus struct {
	fanout      Fanout
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

// NewEventBus constructs the bus. Nil redis/nats handles disable the
// corresponding mirror; stream and subject names are both derived from one
// configured channel base.
func NewEventBus(fanout Fanout, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *EventBus {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &EventBus{
		fanout:      fanout,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "event_bus").Logger(),
		nodeID:      uuid.NewString(),
	}
}

// Start launches the cross-node consumers.
func (b *EventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisStream != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

func (b *EventBus) RoomBroadcast(ctx context.Context, roomID uint, event realtime.Event) {
	b.fanout.BroadcastToRoom(roomID, event)
	b.mirror(ctx, wireEvent{Scope: scopeRoom, RoomID: roomID, Event: event})
}

func (b *EventBus) UserSend(ctx context.Context, userID string, event realtime.Event) {
	b.fanout.SendToUser(userID, event)
	b.mirror(ctx, wireEvent{Scope: scopeUser, UserID: userID, Event: event})
}

func (b *EventBus) IsOnline(userID string) bool {
	return b.fanout.IsOnline(userID)
}

func (b *EventBus) mirror(ctx context.Context, event wireEvent) {
	if (b.redis == nil || b.redisStream == "") && (b.nats == nil || b.natsSubject == "") {
		return
	}

	event.Source = b.nodeID
	event.SentAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal wire event")
		return
	}

	if b.redis != nil && b.redisStream != "" {
		if err := b.redis.Publish(ctx, b.redisStream, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to mirror event to redis")
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Msg("failed to mirror event to nats")
		}
	}
}

func (b *EventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("event redis subscription closed")
			return
		}
		b.handleWire([]byte(msg.Payload))
	}
}

func (b *EventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, "chat-api", func(msg *nats.Msg) {
		b.handleWire(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats event subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain nats event subscription")
		}
	}()
}

func (b *EventBus) handleWire(data []byte) {
	var event wireEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid wire event")
		return
	}

	if event.Source == b.nodeID {
		return
	}

	switch event.Scope {
	case scopeRoom:
		b.fanout.BroadcastToRoom(event.RoomID, event.Event)
	case scopeUser:
		b.fanout.SendToUser(event.UserID, event.Event)
	default:
		b.logger.Warn().Str("scope", event.Scope).Msg("unknown wire event scope")
	}
}
