package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the janitor evicts expired entries.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper is a cache that can evict its expired entries in bulk.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically sweeps a cache so entries that are never read again
// do not linger until process exit.
type Janitor struct {
	cache    Sweeper
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewJanitor creates a janitor for c. A zero interval uses DefaultSweepInterval.
func NewJanitor(c Sweeper, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cache:    c,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins background sweeping. Calling Start more than once, or after
// Stop, is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running || j.stopped {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	go j.run(ctx)
}

// Stop halts sweeping and waits for the background goroutine to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running || j.stopped {
		j.stopped = true
		j.mu.Unlock()
		return
	}
	j.stopped = true
	j.mu.Unlock()

	close(j.stopCh)
	<-j.doneCh
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and returns the number of evicted entries.
func (j *Janitor) RunOnce() int {
	removed := j.cache.Sweep()
	if removed > 0 {
		j.logger.Debug("swept expired cache entries", "removed", removed)
	}
	return removed
}
