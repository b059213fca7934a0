package gateway

import (
	"encoding/json"
	"time"

	"github.com/goalguild/core-service/internal/store"
)

// inboundFrame is the only shape a client is expected to send: a flat chat message. A frame that is not valid JSON
// closes the connection with CloseDecodeError; a JSON frame with no text is ignored.
type inboundFrame struct {
	Text string `json:"text"`
}

// outboundMessage is broadcast to every client in a room, including the sender, once a message has been persisted.
type outboundMessage struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId"`
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
}

// outboundError is sent to a single client just before the connection is closed with the matching close code, so the
// client has a machine-readable reason rather than just a close frame.
type outboundError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newOutboundMessage(roomID string, m store.Message) []byte {
	payload, _ := json.Marshal(outboundMessage{
		Type:      "message",
		RoomID:    roomID,
		MessageID: m.MessageID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		SentAt:    m.SentAt,
	})
	return payload
}

func newOutboundError(code, message string) []byte {
	payload, _ := json.Marshal(outboundError{Type: "error", Code: code, Message: message})
	return payload
}
