package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/internal/store"
	"pinkchat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

// MessageReader is the read side of the persistence gateway
type MessageReader interface {
	ListMessages(ctx context.Context, f store.Filter, order store.Order) ([]models.Message, error)
	MarkRead(ctx context.Context, id string) error
}

// MessageController serves message history for clients catching up after
// a reconnect
type MessageController struct {
	messages MessageReader
}

// NewMessageController creates a new message controller
func NewMessageController(messages MessageReader) *MessageController {
	return &MessageController{messages: messages}
}

// RegisterRoutes registers the routes for the message controller
func (mc *MessageController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/messages", mc.ListMessages)
	rg.POST("/messages/:id/read", mc.MarkRead)
}

// ListMessages handles GET /api/messages?sender=&receiver=&since=&order=&limit=
func (mc *MessageController) ListMessages(c *gin.Context) {
	filter := store.Filter{
		Sender:   c.Query("sender"),
		Receiver: c.Query("receiver"),
		Limit:    defaultMessageLimit,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.Error(errors.NewValidationError("limit must be a positive integer"))
			return
		}
		filter.Limit = min(limit, maxMessageLimit)
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.Error(errors.NewValidationError("since must be an RFC3339 timestamp"))
			return
		}
		filter.Since = since
	}

	msgs, err := mc.messages.ListMessages(c.Request.Context(), filter, store.ParseOrder(c.Query("order")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// MarkRead handles POST /api/messages/:id/read
func (mc *MessageController) MarkRead(c *gin.Context) {
	if err := mc.messages.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
