package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const messagesChannel = "gateway.messages"

// messageEnvelope is the JSON structure published to the gateway message channel, letting every gateway process
// (including the one that received the original send) fan a message out to its own locally connected clients.
type messageEnvelope struct {
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher publishes already-serialised outbound messages to a Valkey pub/sub channel shared by every gateway
// process, so a message sent to a process handling only some of a room's connections still reaches all of them.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewPublisher(rdb *redis.Client, logger zerolog.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: logger}
}

// Publish publishes payload, a pre-serialised outbound frame, scoped to roomID.
func (p *Publisher) Publish(ctx context.Context, roomID string, payload []byte) error {
	data, err := json.Marshal(messageEnvelope{RoomID: roomID, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal gateway message envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, messagesChannel, data).Err(); err != nil {
		return fmt.Errorf("publish gateway message: %w", err)
	}
	return nil
}
