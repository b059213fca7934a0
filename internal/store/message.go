package store

import (
	"context"
	"fmt"
	"time"
)

// Message is a chat-room row at ROOM#<roomId>/MSG#<ts>#<msgId>, persisted by the Messaging Core (C8) with a
// server-assigned timestamp and per-millisecond counter so concurrent sends within the same room sort deterministically.
type Message struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	RoomID    string    `dynamodbav:"roomId"`
	MessageID string    `dynamodbav:"messageId"`
	SenderID  string    `dynamodbav:"senderId"`
	Text      string    `dynamodbav:"text"`
	SentAt    time.Time `dynamodbav:"sentAt"`
}

// MessageRepository is the typed Core Store surface for chat history.
type MessageRepository struct {
	c *Client
}

func NewMessageRepository(c *Client) *MessageRepository { return &MessageRepository{c: c} }

func (r *MessageRepository) Append(ctx context.Context, roomID string, m Message, counter int64) error {
	ts := fmt.Sprintf("%d-%06d", m.SentAt.UTC().UnixMilli(), counter)
	m.PK, m.SK = RoomPK(roomID), MessageSK(ts, m.MessageID)
	return r.c.Put(ctx, r.c.CoreTable, m)
}

// ListRecent pages through a room's history, newest first.
func (r *MessageRepository) ListRecent(ctx context.Context, roomID string, page Page) ([]Message, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, RoomPK(roomID), "MSG#", page, Descending())
	if err != nil {
		return nil, "", err
	}
	messages := make([]Message, 0, len(res.Items))
	for _, item := range res.Items {
		var m Message
		if err := unmarshalInto(item, &m); err != nil {
			return nil, "", err
		}
		messages = append(messages, m)
	}
	return messages, res.NextCursor, nil
}
