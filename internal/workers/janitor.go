package workers

import (
	"context"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/store"
)

const defaultJanitorInterval = time.Minute

// Janitor periodically evicts expired entries from a store that only drops
// them lazily on access.
type Janitor struct {
	purger   store.ExpiredPurger
	interval time.Duration

	logger *logger.Logger
}

func NewJanitor(purger store.ExpiredPurger, interval time.Duration, logger *logger.Logger) *Janitor {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	return &Janitor{purger: purger, interval: interval, logger: logger}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.interval).Msg("session janitor started")
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("session janitor stopped")
			return
		case <-ticker.C:
			if n := j.purger.PurgeExpired(); n > 0 {
				j.logger.Debug().Int("purged", n).Msg("expired session entries evicted")
			}
		}
	}
}
