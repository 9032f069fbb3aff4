// Package workers contains background workers for fordon.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/plateworks/fordon/internal/shell/store"
)

// JanitorConfig configures the cache janitor worker.
type JanitorConfig struct {
	// Interval is the time between prune cycles. Default: 10 minutes.
	Interval time.Duration

	// CycleTimeout is the timeout for a single prune cycle. Default: 30 seconds.
	CycleTimeout time.Duration
}

// DefaultJanitorConfig returns the default configuration.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:     10 * time.Minute,
		CycleTimeout: 30 * time.Second,
	}
}

// Janitor periodically removes expired cached pages from the store.
// Expired entries are already treated as misses by the lookup service;
// the janitor keeps the database from growing without bound.
type Janitor struct {
	store  store.Store
	config JanitorConfig
	logger *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a new cache janitor worker.
func NewJanitor(s store.Store, config JanitorConfig, logger *slog.Logger) *Janitor {
	if config.Interval == 0 {
		config.Interval = 10 * time.Minute
	}
	if config.CycleTimeout == 0 {
		config.CycleTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		store:  s,
		config: config,
		logger: logger.With("component", "janitor"),
	}
}

// Start begins the janitor background goroutine.
func (j *Janitor) Start() {
	j.ctx, j.cancel = context.WithCancel(context.Background())

	j.wg.Add(1)
	go j.run()

	j.logger.Info("janitor started", "interval", j.config.Interval)
}

// Stop gracefully stops the janitor. It waits for an in-progress prune
// cycle to complete.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

// run is the main loop that prunes expired pages periodically.
func (j *Janitor) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.runCycle()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.runCycle()
		}
	}
}

// runCycle executes a single prune pass.
func (j *Janitor) runCycle() {
	ctx, cancel := context.WithTimeout(j.ctx, j.config.CycleTimeout)
	defer cancel()

	deleted, err := j.store.DeleteExpiredPages(ctx, time.Now())
	if err != nil {
		j.logger.Error("failed to prune expired pages", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Debug("pruned expired pages", "count", deleted)
	}
}
