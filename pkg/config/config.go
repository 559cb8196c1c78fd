package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string
		Env      string
		Timeout  time.Duration
		GRPCPort string
	}

	// Database configuration
	Database struct {
		Backend  string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Retries  int
		Timeout  time.Duration
	}

	// Redis configuration
	Redis struct {
		URL      string
		Password string
		DB       int
	}

	// JWT configuration
	JWT struct {
		Secret string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		EventRate      float64
		EventBurst     int
		AllowedOrigins []string
		MaxMessageSize int64
		AllowAnonymous bool
	}

	// Relay tuning
	Relay struct {
		SendBuffer          int
		StoreTimeout        time.Duration
		StatusTTL           time.Duration
		StatusPurgeInterval time.Duration
		NotifyBodyMax       int
		BreakerThreshold    uint
		BreakerCooldown     time.Duration
	}

	// Push notification settings
	Push struct {
		Backend         string
		VAPIDPublicKey  string
		VAPIDPrivateKey string
		Subscriber      string
		TTL             int
		Timeout         time.Duration
		Concurrency     int
	}

	// Vault settings
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		Mount       string
		SecretsPath string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// OpenAPISchema is the path of an optional override for the embedded API document
	OpenAPISchema string
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process-wide Config, loading it from the environment
// (and an optional .env file) on first use.
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load builds a Config from the current environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "5000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9095")

	cfg.Database.Backend = getEnvString("STORE_BACKEND", "postgres")
	cfg.Database.DSN = getEnvString("DATABASE_DSN", "")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "pinkchat")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	cfg.Redis.URL = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.EventRate = getEnvFloat("EVENT_RATE", 20)
	cfg.Security.EventBurst = getEnvInt("EVENT_BURST", 40)
	cfg.Security.AllowedOrigins = getEnvStringSlice("CLIENT_URL", []string{"*"})
	cfg.Security.MaxMessageSize = getEnvInt64("MAX_MESSAGE_SIZE", 64<<10)
	cfg.Security.AllowAnonymous = getEnvBool("ALLOW_ANONYMOUS", true)

	cfg.Relay.SendBuffer = getEnvInt("SEND_BUFFER", 256)
	cfg.Relay.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 5*time.Second)
	cfg.Relay.StatusTTL = getEnvDuration("STATUS_TTL", 24*time.Hour)
	cfg.Relay.StatusPurgeInterval = getEnvDuration("STATUS_PURGE_INTERVAL", 10*time.Minute)
	cfg.Relay.NotifyBodyMax = getEnvInt("NOTIFY_BODY_MAX", 120)
	cfg.Relay.BreakerThreshold = uint(getEnvInt("BREAKER_THRESHOLD", 5))
	cfg.Relay.BreakerCooldown = getEnvDuration("BREAKER_COOLDOWN", 30*time.Second)

	cfg.Push.Backend = getEnvString("SUBSCRIPTION_BACKEND", "memory")
	cfg.Push.VAPIDPublicKey = getEnvString("VAPID_PUBLIC_KEY", "")
	cfg.Push.VAPIDPrivateKey = getEnvString("VAPID_PRIVATE_KEY", "")
	cfg.Push.Subscriber = getEnvString("VAPID_SUBSCRIBER", "mailto:admin@pinkchat.local")
	cfg.Push.TTL = getEnvInt("PUSH_TTL", 60)
	cfg.Push.Timeout = getEnvDuration("PUSH_TIMEOUT", 10*time.Second)
	cfg.Push.Concurrency = getEnvInt("PUSH_CONCURRENCY", 16)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "pinkchat")

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.OpenAPISchema = getEnvString("OPENAPI_SCHEMA", "")

	return cfg
}

// IsProduction reports whether the server runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
