package store

import (
	"context"
	"time"

	"pinkchat/backend/pkg/logger"
)

// RunJanitor purges expired status posts every interval until ctx is done
func RunJanitor(ctx context.Context, s Store, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpiredStatuses(ctx)
			if err != nil {
				log.LogError(err, "status purge failed")
				continue
			}
			if n > 0 {
				log.Info("purged expired status posts", "count", n)
			}
		}
	}
}
