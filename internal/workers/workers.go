package workers

import (
	"context"
	"sync"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/store"
)

type Workers struct {
	workers []Worker
}

// NewWorkers creates the jobs the configured storages need. The in-process
// session store gets a janitor; Redis expires keys on its own.
func NewWorkers(storages *store.Storages, cfg config.Workers, logger *logger.Logger) *Workers {
	w := &Workers{}
	if storages.Purger != nil {
		w.workers = append(w.workers, NewJanitor(storages.Purger, cfg.JanitorInterval, logger))
	}
	return w
}

// Run starts every worker and blocks until all of them return.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, worker := range w.workers {
		wg.Go(func() {
			worker.Run(ctx)
		})
	}
	wg.Wait()
}
