package jwt

import (
	"time"
)

// Service is a wrapper for JWT operations
type Service struct {
	secretKey []byte
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 24 * time.Hour
	}

	return &Service{
		secretKey: []byte(secretKey),
		expiry:    expiry,
	}
}

// Enabled reports whether a signing secret is configured
func (s *Service) Enabled() bool {
	return s != nil && len(s.secretKey) > 0
}

// GenerateToken signs a token for userID. Used by tooling and tests; the
// production tokens come from the auth service.
func (s *Service) GenerateToken(userID, username string) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}
	return generateToken(s.secretKey, userID, username, s.expiry)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrNoSecret
	}
	return validateToken(s.secretKey, tokenString)
}
