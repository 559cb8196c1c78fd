package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pinkchat/backend/internal/notify"
	"pinkchat/backend/internal/store"
	"pinkchat/backend/internal/ws"
	"pinkchat/backend/pkg/config"
	"pinkchat/backend/pkg/health"
	"pinkchat/backend/pkg/jwt"
	"pinkchat/backend/pkg/logger"
	"pinkchat/backend/pkg/middleware"
	"pinkchat/backend/pkg/observability"
	"pinkchat/backend/pkg/resilience"
	"pinkchat/backend/pkg/secrets"
	"pinkchat/backend/pkg/validator"
	sharedredis "pinkchat/backend/shared/redis"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	Secrets secrets.Manager

	JWTService *jwt.Service
	DB         *gorm.DB
	Redis      *redis.Client

	Breaker       *resilience.CircuitBreaker
	Store         store.Store
	Subscriptions notify.SubscriptionStore
	Dispatcher    *notify.Dispatcher
	Hub           *ws.Hub

	Health      *health.Checker
	Validator   *validator.OpenAPIValidator
	RateLimiter *middleware.RateLimiter

	MeterProvider  *sdkmetric.MeterProvider
	MetricsHandler http.Handler
	Metrics        *observability.Metrics

	shutdownTracing func(context.Context) error
}

// New builds every service from cfg. Nothing is started until Start.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	if err := c.initObservability(); err != nil {
		return nil, err
	}
	if err := c.initSecrets(ctx); err != nil {
		return nil, err
	}
	if err := c.initStore(ctx); err != nil {
		return nil, err
	}
	if err := c.initPush(ctx); err != nil {
		return nil, err
	}

	c.Hub = ws.NewHub(c.Store, c.Dispatcher, log, c.Metrics, ws.Options{
		SendBuffer:     cfg.Relay.SendBuffer,
		StoreTimeout:   cfg.Relay.StoreTimeout,
		NotifyBodyMax:  cfg.Relay.NotifyBodyMax,
		EventRate:      rate.Limit(cfg.Security.EventRate),
		EventBurst:     cfg.Security.EventBurst,
		MaxMessageSize: cfg.Security.MaxMessageSize,
	})

	v, err := validator.NewOpenAPIValidator(cfg.OpenAPISchema)
	if err != nil {
		return nil, err
	}
	c.Validator = v

	c.RateLimiter = middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:   rate.Limit(cfg.Security.RateLimit),
		Burst:   cfg.Security.RateLimitBurst,
		IdleTTL: time.Hour,
	})

	c.initHealth()
	return c, nil
}

func (c *Container) initObservability() error {
	tracesOut := io.Discard
	if c.Config.Logging.Level == "debug" {
		tracesOut = newLogWriter(c.Logger)
	}
	shutdown, err := observability.SetupTracing("pinkchat-relay", tracesOut)
	if err != nil {
		return err
	}
	c.shutdownTracing = shutdown

	mp, handler, err := observability.SetupMetrics()
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("relay metrics: %w", err)
	}
	c.MeterProvider, c.MetricsHandler, c.Metrics = mp, handler, metrics
	return nil
}

func (c *Container) initSecrets(ctx context.Context) error {
	mgr, err := secrets.NewManager(secrets.VaultConfig{
		Enabled:     c.Config.Vault.Enabled,
		Address:     c.Config.Vault.Address,
		Token:       c.Config.Vault.Token,
		Namespace:   c.Config.Vault.Namespace,
		Mount:       c.Config.Vault.Mount,
		SecretsPath: c.Config.Vault.SecretsPath,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("secrets manager: %w", err)
	}
	c.Secrets = mgr

	secret := mgr.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, c.Config.JWT.Secret)
	c.JWTService = jwt.NewService(secret, 0)
	if !c.JWTService.Enabled() {
		c.Logger.Warn("no JWT secret configured, token authentication disabled")
	}
	return nil
}

func (c *Container) initStore(ctx context.Context) error {
	var backend store.Store
	switch c.Config.Database.Backend {
	case "memory":
		backend = store.NewMemoryStore(c.Config.Relay.StatusTTL)
		c.Logger.Warn("using in-memory store, messages are lost on restart")
	case "postgres", "":
		db, err := config.NewDB(ctx, c.Config, c.Logger)
		if err != nil {
			return err
		}
		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		c.DB = db
		backend = store.NewGormStore(db, c.Config.Relay.StatusTTL)
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Config.Database.Backend)
	}

	breakerCfg := resilience.DefaultConfig("store")
	if c.Config.Relay.BreakerThreshold > 0 {
		breakerCfg.FailureThreshold = c.Config.Relay.BreakerThreshold
	}
	if c.Config.Relay.BreakerCooldown > 0 {
		breakerCfg.Cooldown = c.Config.Relay.BreakerCooldown
	}
	c.Breaker = resilience.NewCircuitBreaker(breakerCfg, c.Logger)
	c.Store = store.NewGuardedStore(backend, c.Breaker, c.Config.Relay.StoreTimeout)
	return nil
}

func (c *Container) initPush(ctx context.Context) error {
	switch c.Config.Push.Backend {
	case "memory", "":
		c.Subscriptions = notify.NewMemorySubscriptions()
	case "redis":
		client, err := sharedredis.NewClient(ctx, sharedredis.Options{
			URL:      c.Config.Redis.URL,
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if err != nil {
			return err
		}
		c.Redis = client
		c.Subscriptions = notify.NewRedisSubscriptions(client, notify.DefaultRedisKey)
	default:
		return fmt.Errorf("unknown SUBSCRIPTION_BACKEND %q", c.Config.Push.Backend)
	}

	pub := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyVAPIDPublicKey, c.Config.Push.VAPIDPublicKey)
	priv := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyVAPIDPrivateKey, c.Config.Push.VAPIDPrivateKey)

	var sender notify.Sender
	if pub != "" && priv != "" {
		sender = notify.NewWebPushSender(notify.WebPushConfig{
			PublicKey:  pub,
			PrivateKey: priv,
			Subscriber: c.Config.Push.Subscriber,
			TTL:        c.Config.Push.TTL,
			Timeout:    c.Config.Push.Timeout,
		})
	} else {
		c.Logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	c.Dispatcher = notify.NewDispatcher(c.Subscriptions, sender, c.Logger, c.Metrics, c.Config.Push.Timeout)
	c.Dispatcher.SetConcurrency(c.Config.Push.Concurrency)
	return nil
}

func (c *Container) initHealth() {
	c.Health = health.NewChecker(c.Logger, 30*time.Second)
	c.Health.RegisterPing("database", true, c.Store.Ping)
	c.Health.RegisterCheck("store-breaker", false, func(context.Context) (health.Status, string, error) {
		if c.Breaker.State() == resilience.StateClosed {
			return health.StatusUp, "circuit closed", nil
		}
		return health.StatusDegraded, "circuit " + string(c.Breaker.State()), nil
	})
	if c.Redis != nil {
		c.Health.RegisterPing("redis", false, func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		})
	}
}

// Start launches the background workers. They stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) {
	go c.Hub.Run()
	go c.RateLimiter.Run(ctx)
	go store.RunJanitor(ctx, c.Store, c.Config.Relay.StatusPurgeInterval, c.Logger)
	c.Health.Start(ctx)
}

// Close stops the hub, waits for pending pushes and releases connections
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.Hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub: %w", err))
	}
	if err := c.Dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher: %w", err))
	}
	if err := c.MeterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	if c.shutdownTracing != nil {
		if err := c.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
	}
	return stderrors.Join(errs...)
}

// logWriter forwards exported spans to the debug log
type logWriter struct {
	log *logger.Logger
}

func newLogWriter(log *logger.Logger) io.Writer {
	return logWriter{log: log}
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debug("span exported", "span", string(p))
	return len(p), nil
}
