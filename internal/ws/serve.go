package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/jwt"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TokenValidator checks a bearer token
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Handler upgrades HTTP requests to relay connections
type Handler struct {
	hub            *Hub
	tokens         TokenValidator
	allowAnonymous bool
	upgrader       websocket.Upgrader
}

// NewHandler builds the upgrade handler. tokens may be nil when no JWT
// secret is configured; then only anonymous connections are possible.
func NewHandler(hub *Hub, tokens TokenValidator, allowedOrigins []string, allowAnonymous bool) *Handler {
	origins, allowAll := normalizeOrigins(allowedOrigins)
	return &Handler{
		hub:            hub,
		tokens:         tokens,
		allowAnonymous: allowAnonymous,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), origins, allowAll)
			},
		},
	}
}

// ServeWs identifies the caller and hands the upgraded connection to the hub
func (h *Handler) ServeWs(c *gin.Context) {
	id, err := h.identify(c)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).LogError(err, "websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, id)
	if !h.hub.Register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
	}
}

func (h *Handler) identify(c *gin.Context) (Identity, error) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	if token != "" {
		if h.tokens == nil {
			return Identity{}, errors.NewUnauthorizedError(errors.CodeUnauthorized, "token authentication is not configured")
		}
		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			return Identity{}, errors.NewUnauthorizedError(errors.CodeUnauthorized, "invalid or expired token")
		}
		return Identity{UserID: claims.UserID}, nil
	}

	if !h.allowAnonymous {
		return Identity{}, errors.NewUnauthorizedError(errors.CodeUnauthorized, "authentication required")
	}
	return Identity{UserID: strings.TrimSpace(c.Query("userId")), Anonymous: true}, nil
}

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	out := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			out[n] = struct{}{}
		}
	}
	return out, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// originAllowed accepts requests without an Origin header, which only
// non-browser clients send.
func originAllowed(origin string, allowed map[string]struct{}, allowAll bool) bool {
	if origin == "" || allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, exists := allowed[n]
	return exists
}
