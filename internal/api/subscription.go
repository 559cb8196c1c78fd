package api

import (
	"context"
	"encoding/json"
	"net/http"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// SubscriptionRegistrar stores push subscriptions
type SubscriptionRegistrar interface {
	Register(ctx context.Context, raw json.RawMessage) (models.Subscription, error)
}

type SubscriptionController struct {
	registrar SubscriptionRegistrar
}

func NewSubscriptionController(registrar SubscriptionRegistrar) *SubscriptionController {
	return &SubscriptionController{registrar: registrar}
}

func (sc *SubscriptionController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscriptions", sc.Subscribe)
}

// Subscribe handles POST /api/subscriptions. Any JSON document is accepted
// as-is; duplicates are stored again. Unlike the dispatcher's Register, which
// takes any payload, a body that is not valid JSON is rejected with 400 since
// it could never be replayed to a push service.
func (sc *SubscriptionController) Subscribe(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.Error(errors.NewValidationError("request body must be a JSON document"))
		return
	}

	sub, err := sc.registrar.Register(c.Request.Context(), body)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": sub.ID})
}
