package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// setupDocsRoutes serves the API document the validator enforces
func (r *Router) setupDocsRoutes() {
	r.Engine.GET("/api/docs/openapi", func(c *gin.Context) {
		schema := r.Container.Validator.Schema()
		contentType := "application/yaml"
		if strings.HasPrefix(strings.TrimSpace(string(schema)), "{") {
			contentType = "application/json"
		}
		c.Data(http.StatusOK, contentType, schema)
	})
	r.Logger.Info("OpenAPI document available", "url", "/api/docs/openapi")
}
