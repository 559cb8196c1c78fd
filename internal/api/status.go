package api

import (
	"context"
	"net/http"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// StatusStore persists and lists status posts
type StatusStore interface {
	SaveStatus(ctx context.Context, p *models.StatusPost) (*models.StatusPost, error)
	ListStatuses(ctx context.Context, author string) ([]models.StatusPost, error)
}

// StatusPublisher announces a new post to connected clients
type StatusPublisher interface {
	PublishStatus(p *models.StatusPost) bool
}

// StatusController handles the upload-triggered status path
type StatusController struct {
	statuses  StatusStore
	publisher StatusPublisher
}

func NewStatusController(statuses StatusStore, publisher StatusPublisher) *StatusController {
	return &StatusController{statuses: statuses, publisher: publisher}
}

func (sc *StatusController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/statuses", sc.CreateStatus)
	rg.GET("/statuses", sc.ListStatuses)
}

type createStatusRequest struct {
	Author   string `json:"author"`
	MediaRef string `json:"mediaRef" binding:"required"`
	Caption  string `json:"caption"`
}

// CreateStatus handles POST /api/statuses
func (sc *StatusController) CreateStatus(c *gin.Context) {
	var req createStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("mediaRef is required"))
		return
	}

	author := req.Author
	if uid := c.GetString(middleware.ContextUserID); uid != "" {
		author = uid
	}
	if author == "" {
		c.Error(errors.NewValidationError("author is required"))
		return
	}

	post, err := sc.statuses.SaveStatus(c.Request.Context(), &models.StatusPost{
		Author:   author,
		MediaRef: req.MediaRef,
		Caption:  req.Caption,
	})
	if err != nil {
		c.Error(err)
		return
	}

	sc.publisher.PublishStatus(post)
	c.JSON(http.StatusCreated, post)
}

// ListStatuses handles GET /api/statuses?author=
func (sc *StatusController) ListStatuses(c *gin.Context) {
	posts, err := sc.statuses.ListStatuses(c.Request.Context(), c.Query("author"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": posts})
}
