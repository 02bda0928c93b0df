package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nearbyhq/chat-api/internal/observability"
)

// Notifier pushes events to users who hold no live connection. Delivery is
// best-effort: a push failure must never fail the operation that raised it.
type Notifier interface {
	Push(ctx context.Context, userID, kind string, payload interface{}) error
}

type pushEnvelope struct {
	UserID  string      `json:"user_id"`
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type natsNotifier struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSNotifier publishes offline pushes to a NATS subject consumed by the
// push-delivery gateway.
func NewNATSNotifier(conn *nats.Conn, subject string, logger zerolog.Logger) Notifier {
	return &natsNotifier{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "push_notifier").Logger(),
	}
}

func (n *natsNotifier) Push(_ context.Context, userID, kind string, payload interface{}) error {
	envelope := pushEnvelope{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		observability.ChatPushes().WithLabelValues("error").Inc()
		return err
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		observability.ChatPushes().WithLabelValues("error").Inc()
		return err
	}

	observability.ChatPushes().WithLabelValues("ok").Inc()
	n.logger.Debug().Str("user_id", userID).Str("kind", kind).Msg("offline push published")
	return nil
}

type nopNotifier struct{}

// NewNopNotifier is used when no push transport is configured.
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

func (nopNotifier) Push(context.Context, string, string, interface{}) error {
	return nil
}
