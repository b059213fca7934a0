package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPublisherPublishDeliversEnvelope(t *testing.T) {
	t.Parallel()
	_, rdb := newTestRedis(t)
	pub := NewPublisher(rdb, zerolog.Nop())
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, messagesChannel)
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()

	if err := pub.Publish(ctx, "ROOM-1", []byte(`{"type":"message","text":"hi"}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-ch:
		var env messageEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.RoomID != "ROOM-1" {
			t.Fatalf("RoomID = %q, want %q", env.RoomID, "ROOM-1")
		}
		var decoded struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(env.Payload, &decoded); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if decoded.Text != "hi" {
			t.Fatalf("Text = %q, want %q", decoded.Text, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
