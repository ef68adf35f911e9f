// Package health runs periodic health checks over the governance daemon's
// storage, with optional recovery actions.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/metrics"
)

// DefaultInterval is how often checks run.
const DefaultInterval = 60 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewChecker creates a checker over the governance store and, when dataDir
// is non-empty, the directory holding its files.
func NewChecker(store domain.Store, dataDir string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		interval: DefaultInterval,
		logger:   logger.With("component", "health"),
		now:      time.Now,
	}
	c.Add(Check{
		Name:    "store",
		CheckFn: store.Ping,
	})
	if dataDir != "" {
		c.Add(Check{
			Name: "data_dir",
			CheckFn: func(context.Context) error {
				return checkDataDir(dataDir)
			},
			RecoverFn: func(context.Context) error {
				return os.MkdirAll(dataDir, 0o755)
			},
		})
	}
	return c
}

// Add registers another check. Not safe to call once Run has started.
func (c *Checker) Add(check Check) {
	c.checks = append(c.checks, check)
}

// SetInterval changes the period between runs.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: c.now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			c.logger.Warn("health check failed", "check", check.Name, "err", err)
			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.logger.Error("health recovery failed", "check", check.Name, "err", rerr)
				}
			}
		} else {
			s.Healthy = true
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(boolGauge(s.Healthy))
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// RunOnce runs every check once and returns the results.
func (c *Checker) RunOnce(ctx context.Context) []Status {
	c.runAll(ctx)
	return c.Statuses()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", dir)
	}
	return nil
}
