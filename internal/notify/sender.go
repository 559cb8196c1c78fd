package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pinkchat/backend/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Sender delivers one encoded payload to one subscription
type Sender interface {
	Send(ctx context.Context, sub models.Subscription, payload []byte) error
}

// WebPushConfig holds the VAPID identity used to sign push requests
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int
	Timeout    time.Duration
}

// WebPushSender sends notifications through the Web Push protocol
type WebPushSender struct {
	opts webpush.Options
}

func NewWebPushSender(cfg WebPushConfig) *WebPushSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebPushSender{
		opts: webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.PublicKey,
			VAPIDPrivateKey: cfg.PrivateKey,
			TTL:             cfg.TTL,
			HTTPClient:      &http.Client{Timeout: timeout},
		},
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.Subscription, payload []byte) error {
	var target webpush.Subscription
	if err := json.Unmarshal(sub.Payload, &target); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	if target.Endpoint == "" {
		return fmt.Errorf("subscription has no endpoint")
	}

	opts := s.opts
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &target, &opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// endpointOf extracts the push endpoint for logging. Opaque payloads yield "".
func endpointOf(sub models.Subscription) string {
	var probe struct {
		Endpoint string `json:"endpoint"`
	}
	_ = json.Unmarshal(sub.Payload, &probe)
	return probe.Endpoint
}
