package ws

import (
	"context"
	"fmt"
	"net/http"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("pinkchat/backend/internal/ws")

const statusNotifyBody = "posted a new status"

// HandleEvent processes one inbound event from c. A failure affects only
// this event and is reported to c alone.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, env Envelope) {
	if err := h.handle(ctx, c, env); err != nil {
		h.reject(ctx, c, env.Type, err)
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, env Envelope) error {
	switch env.Type {
	case EventMessage:
		return h.onMessage(ctx, c, env)
	case EventTyping, EventStopTyping:
		return h.onTyping(ctx, c, env)
	case EventStatusUpdate:
		return h.onStatusUpdate(ctx, c, env)
	case "":
		return errors.NewValidationError("event type is required")
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown event type %q", env.Type))
	}
}

func (h *Hub) onMessage(ctx context.Context, c *Client, env Envelope) error {
	ctx, span := tracer.Start(ctx, "relay.message")
	defer span.End()

	var in MessageContent
	if err := decodeContent(env, &in); err != nil {
		return err
	}
	sender, err := resolveUser(in.Sender, c)
	if err != nil {
		return err
	}

	msg := &models.Message{
		Sender:   sender,
		Receiver: in.Receiver,
		Text:     in.Text,
		MediaRef: in.MediaRef,
	}
	msg.Normalize()
	if err := msg.Validate(); err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, h.opts.StoreTimeout)
	saved, err := h.store.SaveMessage(storeCtx, msg)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if errors.HasCode(err, errors.CodeStore) {
			return err
		}
		return errors.NewStoreError(err)
	}
	span.SetAttributes(
		attribute.String("message.id", saved.ID),
		attribute.String("message.sender", saved.Sender),
	)

	payload, err := encode(EventMessage, saved)
	if err != nil {
		return errors.Wrap(err, http.StatusInternalServerError, errors.CodeInternal, "failed to encode message")
	}

	id := saved.ID
	if !h.publish(delivery{
		from:        c,
		payload:     payload,
		onDelivered: func() { h.markDelivered(id) },
	}) {
		// stored but the hub is stopping; peers recover it through the read path
		c.log.Warn("hub stopping, message stored but not relayed", "message_id", id)
		return nil
	}
	h.metrics.EventRelayed(ctx, EventMessage)

	title, body := saved.Summary(h.opts.NotifyBodyMax)
	h.notify(title, body)
	return nil
}

func (h *Hub) onTyping(ctx context.Context, c *Client, env Envelope) error {
	var in PresenceContent
	if err := decodeContent(env, &in); err != nil {
		return err
	}
	user, err := resolveUser(in.UserID, c)
	if err != nil {
		return err
	}
	if user == "" {
		return errors.NewValidationError("userId is required")
	}

	payload, err := encode(env.Type, PresenceContent{UserID: user})
	if err != nil {
		return errors.Wrap(err, http.StatusInternalServerError, errors.CodeInternal, "failed to encode event")
	}
	h.publish(delivery{from: c, payload: payload})
	h.metrics.EventRelayed(ctx, env.Type)
	return nil
}

func (h *Hub) onStatusUpdate(ctx context.Context, c *Client, env Envelope) error {
	var in PresenceContent
	if err := decodeContent(env, &in); err != nil {
		return err
	}
	user, err := resolveUser(in.UserID, c)
	if err != nil {
		return err
	}
	if user == "" {
		return errors.NewValidationError("userId is required")
	}
	if !h.announceStatus(user, c) {
		return nil
	}
	h.metrics.EventRelayed(ctx, EventStatusUpdate)
	return nil
}

// PublishStatus announces a stored status post to every connection and
// fires a push notification.
func (h *Hub) PublishStatus(post *models.StatusPost) bool {
	return h.announceStatus(post.Author, nil)
}

func (h *Hub) announceStatus(user string, from *Client) bool {
	payload, err := encode(EventStatusUpdate, PresenceContent{UserID: user})
	if err != nil {
		return false
	}
	if !h.publish(delivery{from: from, includeSender: true, payload: payload}) {
		return false
	}
	h.notify(user, statusNotifyBody)
	return true
}

func (h *Hub) notify(title, body string) {
	if h.notifier == nil {
		return
	}
	h.notifier.Notify(title, body)
}

func (h *Hub) markDelivered(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.StoreTimeout)
	defer cancel()
	if err := h.store.MarkDelivered(ctx, id); err != nil {
		h.log.LogError(err, "failed to mark message delivered", "message_id", id)
	}
}

func (h *Hub) reject(ctx context.Context, c *Client, eventType string, err error) {
	appErr := errors.FromError(err)
	h.metrics.EventRejected(ctx, appErr.Code)
	c.log.LogError(err, "event rejected", "event", eventType, "code", appErr.Code)

	payload, encErr := encode(EventError, ErrorContent{Code: appErr.Code, Message: appErr.Message})
	if encErr != nil {
		return
	}
	h.publish(delivery{to: c, payload: payload})
}
