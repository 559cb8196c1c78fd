package models

import (
	"encoding/json"
	"time"
)

// Subscription is an opaque push endpoint registered by a client. The relay
// never validates or deduplicates it.
type Subscription struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}
