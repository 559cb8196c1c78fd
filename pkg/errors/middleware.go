package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the errors handlers attach with c.Error. A typed
// AppError wins over plain errors so a handler can add context without
// losing the status it meant to send.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := pick(c.Errors)
		log := logger.FromGin(c).With(
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
		)
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.LogError(appErr, "request failed")
		} else {
			log.Warn("request rejected", "message", appErr.Message)
		}

		render(c, appErr)
	}
}

// RecoveryWithLogger turns a handler panic into an INTERNAL_ERROR response.
// The panic value is only echoed back in gin debug mode.
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.FromGin(c).Error("panic recovered",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
				"path", c.Request.URL.Path,
			)

			appErr := NewInternalServerError(CodeInternal, "the server encountered an unexpected error")
			if gin.IsDebugging() {
				appErr.Details = fmt.Sprintf("panic: %v", r)
			}
			render(c, appErr)
		}()

		c.Next()
	}
}

func pick(errs []*gin.Error) *AppError {
	for _, e := range errs {
		var appErr *AppError
		if stderrors.As(e.Err, &appErr) {
			return appErr
		}
	}
	return FromError(errs[0].Err)
}

func render(c *gin.Context, appErr *AppError) {
	body := gin.H{"error": appErr}
	if id := c.Writer.Header().Get("X-Request-ID"); id != "" {
		body["request_id"] = id
	}
	c.AbortWithStatusJSON(appErr.StatusCode, body)
}
