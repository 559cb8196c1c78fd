package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"pinkchat/backend/pkg/errors"
)

// BroadcastReceiver marks a message addressed to every connected user
const BroadcastReceiver = "all"

// MediaMarker stands in for the body of a notification about a media-only message
const MediaMarker = "📎 Attachment"

// Message is a chat message. Once persisted only Delivered and Read change.
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Sender    string    `json:"sender" gorm:"not null;index:idx_messages_sender_ts,priority:1"`
	Receiver  string    `json:"receiver" gorm:"not null;default:all;index"`
	Text      string    `json:"text,omitempty"`
	MediaRef  string    `json:"mediaRef,omitempty" gorm:"column:media_ref"`
	Delivered bool      `json:"delivered" gorm:"not null;default:false"`
	Read      bool      `json:"read" gorm:"not null;default:false"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_messages_sender_ts,priority:2"`
}

// TableName overrides the table name
func (Message) TableName() string {
	return "messages"
}

// Normalize trims the user supplied fields and fills in the broadcast receiver
func (m *Message) Normalize() {
	m.Sender = strings.TrimSpace(m.Sender)
	m.Receiver = strings.TrimSpace(m.Receiver)
	m.MediaRef = strings.TrimSpace(m.MediaRef)
	if m.Receiver == "" {
		m.Receiver = BroadcastReceiver
	}
}

// Validate checks the fields a client must supply
func (m *Message) Validate() error {
	if m.Sender == "" {
		return errors.NewValidationError("sender is required")
	}
	if strings.TrimSpace(m.Text) == "" && m.MediaRef == "" {
		return errors.NewValidationError("text or mediaRef is required")
	}
	return nil
}

// Summary returns the title and body of the push notification for m. The
// body is the text cut to maxBody runes, or a media marker.
func (m *Message) Summary(maxBody int) (title, body string) {
	title = m.Sender
	body = strings.TrimSpace(m.Text)
	if body == "" {
		return title, MediaMarker
	}
	if maxBody > 0 && utf8.RuneCountInString(body) > maxBody {
		runes := []rune(body)
		body = string(runes[:maxBody]) + "…"
	}
	return title, body
}
