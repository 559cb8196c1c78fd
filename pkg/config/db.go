package config

import (
	"context"
	"fmt"
	"time"

	"pinkchat/backend/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const maxConnectBackoff = 30 * time.Second

// DSN returns the postgres connection string, preferring DATABASE_DSN
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// NewDB opens the message database. While postgres is still coming up it
// retries DB_CONNECT_RETRIES times with doubling delays, giving up early if
// ctx is cancelled.
func NewDB(ctx context.Context, cfg *Config, log *logger.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsProduction() {
		level = gormlogger.Error
	}
	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(level)}

	attempts := max(cfg.Database.Retries, 1)
	delay := time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			if err = configurePool(ctx, db, cfg); err == nil {
				return db, nil
			}
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		log.Warn("database not ready, retrying",
			"attempt", attempt,
			"of", attempts,
			"delay", delay.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, maxConnectBackoff)
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, lastErr)
}

func configurePool(ctx context.Context, db *gorm.DB, cfg *Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetMaxIdleConns(max(cfg.Database.MaxConns/2, 1))
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return Ping(ctx, db, cfg.Database.Timeout)
}

// Ping checks the connection within timeout; used at startup and by the health checker
func Ping(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
