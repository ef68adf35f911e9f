package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/heritage-dao/heritage/internal/api"
	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/health"
	"github.com/heritage-dao/heritage/internal/infra/audit"
	"github.com/heritage-dao/heritage/internal/infra/badgerstore"
	"github.com/heritage-dao/heritage/internal/infra/directory"
	"github.com/heritage-dao/heritage/internal/infra/governance"
	"github.com/heritage-dao/heritage/internal/infra/memstore"
	"github.com/heritage-dao/heritage/internal/infra/sqlite"
)

// Daemon is the heritage governance runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Logger    *slog.Logger
	Store     domain.Store
	DB        *sqlite.DB // set only for the sqlite backend
	Directory *directory.Directory
	Audit     *audit.Fanout
	Engine    *governance.Engine
	Sweeper   *governance.Sweeper
	Health    *health.Checker
	Server    *api.Server
	cancel    context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	logger := NewLogger(cfg.Logging, os.Stderr)
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates a Daemon that logs to logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{Config: cfg, Logger: logger}

	// Storage backend
	if err := d.openStore(); err != nil {
		return nil, err
	}

	// User directory and artifact registry
	d.Directory = directory.New(logger)
	if err := d.seedRoster(); err != nil {
		d.Close()
		return nil, err
	}

	// Audit: structured log always, plus the durable log on sqlite
	d.Audit = audit.NewFanout(audit.NewLogSink(logger))
	if d.DB != nil {
		d.Audit.Add(d.DB)
	}

	d.Engine = governance.NewEngine(cfg.Governance.EngineConfig(), governance.Deps{
		Store:     d.Store,
		Users:     d.Directory,
		Artifacts: d.Directory,
		Audit:     d.Audit,
		Logger:    logger,
	})
	d.Sweeper = governance.NewSweeper(d.Engine, cfg.Governance.SweepEvery(), logger)

	dataDir := ""
	if d.backend() != BackendMemory {
		dataDir = cfg.Storage.Dir
	}
	d.Health = health.NewChecker(d.Store, dataDir, logger)
	d.Health.SetInterval(cfg.Telemetry.HealthEvery())

	d.Server = api.NewServer(d.Engine, logger)
	d.Server.SetHealthChecker(d.Health)
	d.Server.SetRegistry(d.Directory)
	if d.DB != nil {
		d.Server.SetAuditLog(d.DB)
	}
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

func (d *Daemon) backend() string {
	return strings.ToLower(d.Config.Storage.Backend)
}

func (d *Daemon) openStore() error {
	switch d.backend() {
	case BackendMemory:
		d.Store = memstore.New()
	case BackendSQLite:
		db, err := sqlite.Open(d.Config.Storage.Dir, d.Logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		d.DB = db
		d.Store = db
	case BackendBadger:
		s, err := badgerstore.Open(
			badgerstore.WithDataDir(d.Config.Storage.Dir),
			badgerstore.WithLogger(d.Logger),
		)
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		d.Store = s
	default:
		return fmt.Errorf("unknown storage backend %q", d.Config.Storage.Backend)
	}
	d.Logger.Info("store opened", "backend", d.backend(), "dir", d.Config.Storage.Dir)
	return nil
}

func (d *Daemon) seedRoster() error {
	path := d.Config.Roster.File
	if path == "" {
		return nil
	}
	r, err := directory.LoadRoster(path)
	if errors.Is(err, os.ErrNotExist) {
		d.Logger.Warn("roster not found, starting with an empty directory", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	d.Directory.Seed(r)
	d.Logger.Info("roster loaded", "path", path, "users", len(r.Users), "artifacts", len(r.Artifacts))
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Background services
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); d.Health.Run(ctx) }()
	go func() { defer wg.Done(); d.Sweeper.Run(ctx) }()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Heritage governance serving on http://%s\n", addr)
	fmt.Printf("  Storage: %s\n", d.backend())
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	err := httpServer.ListenAndServe()
	cancel()
	<-done
	wg.Wait()
	d.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.Warn("close store", "err", err)
		}
		d.Store = nil
	}
}
