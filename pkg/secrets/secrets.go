package secrets

import (
	"context"
	"errors"
	"os"
	"strings"

	"pinkchat/backend/pkg/logger"
)

// Well-known secret keys used by the relay
const (
	KeyJWTSecret       = "jwt_secret"
	KeyVAPIDPublicKey  = "vapid_public_key"
	KeyVAPIDPrivateKey = "vapid_private_key"
)

var ErrSecretNotFound = errors.New("secret not found")

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// NewManager returns a Vault-backed manager when Vault is enabled and an
// environment-only one otherwise.
func NewManager(cfg VaultConfig, log *logger.Logger) (Manager, error) {
	if !cfg.Enabled {
		return EnvManager{}, nil
	}
	return NewVaultManager(cfg, log)
}

// EnvManager reads secrets from environment variables only
type EnvManager struct{}

// GetSecret looks up key as an upper-cased environment variable
func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// GetSecretWithDefault implements Manager
func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if value, err := m.GetSecret(ctx, key); err == nil {
		return value
	}
	return defaultValue
}

// envKey maps "vapid-public.key" style names to VAPID_PUBLIC_KEY
func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
