package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pinkchat/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

var (
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// VaultConfig points at the KV v2 document holding the relay's secrets
type VaultConfig struct {
	Enabled     bool
	Address     string
	Token       string
	Namespace   string
	Mount       string
	SecretsPath string
	Timeout     time.Duration
	MaxRetries  int
	// CacheTTL bounds how long a loaded document is served before re-reading
	CacheTTL time.Duration
}

// VaultManager serves keys from a single KV v2 document (for example
// secret/pinkchat with jwt_secret, vapid_public_key, vapid_private_key).
// Keys missing from the document fall back to the environment.
type VaultManager struct {
	client *vault.Client
	cfg    VaultConfig
	env    EnvManager
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	doc      map[string]string
	loadedAt time.Time
}

// NewVaultManager builds a client for cfg; nothing is read until the first lookup
func NewVaultManager(cfg VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if cfg.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Token == "" {
		return nil, ErrNoVaultToken
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.SecretsPath == "" {
		cfg.SecretsPath = "pinkchat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	vc.Timeout = cfg.Timeout
	vc.MaxRetries = cfg.MaxRetries

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &VaultManager{
		client: client,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}, nil
}

// GetSecret returns key from the Vault document, or from the environment
// when the document does not carry it. Vault being unreachable is an error.
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	doc, err := m.document(ctx, false)
	if err != nil {
		return "", err
	}
	if v, ok := doc[key]; ok {
		return v, nil
	}

	m.log.Debug("secret not in vault document, trying environment", "key", key, "path", m.cfg.SecretsPath)
	return m.env.GetSecret(ctx, key)
}

// GetSecretWithDefault implements Manager
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	v, err := m.GetSecret(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			m.log.LogError(err, "failed to read secret, using default", "key", key)
		}
		return defaultValue
	}
	return v
}

// Refresh drops the cached document and reads it again
func (m *VaultManager) Refresh(ctx context.Context) error {
	_, err := m.document(ctx, true)
	return err
}

func (m *VaultManager) document(ctx context.Context, force bool) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && m.doc != nil && m.now().Sub(m.loadedAt) < m.cfg.CacheTTL {
		return m.doc, nil
	}

	kv, err := m.client.KVv2(m.cfg.Mount).Get(ctx, m.cfg.SecretsPath)
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		m.log.Warn("vault secrets document missing", "mount", m.cfg.Mount, "path", m.cfg.SecretsPath)
		kv = nil
	case err != nil:
		return nil, fmt.Errorf("read %s/%s: %w", m.cfg.Mount, m.cfg.SecretsPath, err)
	}

	doc := make(map[string]string)
	if kv != nil {
		for k, v := range kv.Data {
			if s, ok := v.(string); ok && s != "" {
				doc[k] = s
			}
		}
	}

	m.doc = doc
	m.loadedAt = m.now()
	return doc, nil
}
