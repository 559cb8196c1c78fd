package ws

import (
	"encoding/json"
	"strings"

	"pinkchat/backend/pkg/errors"
)

// Event types carried in Envelope.Type
const (
	EventMessage      = "message"
	EventTyping       = "typing"
	EventStopTyping   = "stopTyping"
	EventStatusUpdate = "statusUpdate"
	EventError        = "error"
)

// Envelope is the frame for every event in both directions
type Envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// MessageContent is the inbound message payload
type MessageContent struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver,omitempty"`
	Text     string `json:"text,omitempty"`
	MediaRef string `json:"mediaRef,omitempty"`
}

// PresenceContent is the payload of typing, stopTyping and statusUpdate
type PresenceContent struct {
	UserID string `json:"userId"`
}

// ErrorContent is sent to the originating connection when an event fails
type ErrorContent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type outbound struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

func encode(eventType string, content any) ([]byte, error) {
	return json.Marshal(outbound{Type: eventType, Content: content})
}

func decodeContent(env Envelope, v any) error {
	if len(env.Content) == 0 || string(env.Content) == "null" {
		return errors.NewValidationError(env.Type + " content is required")
	}
	if err := json.Unmarshal(env.Content, v); err != nil {
		return errors.NewValidationError("malformed " + env.Type + " content")
	}
	return nil
}

// resolveUser picks the acting user for an event. Authenticated connections
// may omit the id but cannot claim someone else's.
func resolveUser(claimed string, c *Client) (string, error) {
	claimed = strings.TrimSpace(claimed)
	if c.UserID == "" || c.Anonymous {
		return claimed, nil
	}
	if claimed == "" {
		return c.UserID, nil
	}
	if claimed != c.UserID {
		return "", errors.NewValidationError("sender does not match the authenticated user")
	}
	return claimed, nil
}
