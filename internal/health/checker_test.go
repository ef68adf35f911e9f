package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heritage-dao/heritage/internal/infra/memstore"
	"github.com/heritage-dao/heritage/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(memstore.New(), "", nil)
	if len(c.checks) != 1 {
		t.Errorf("checks without data dir = %d, want 1", len(c.checks))
	}

	c = NewChecker(newTestDB(t), t.TempDir(), nil)
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}
}

func TestChecker_SetInterval(t *testing.T) {
	c := NewChecker(memstore.New(), "", nil)
	c.SetInterval(15 * time.Second)
	if c.interval != 15*time.Second {
		t.Errorf("interval = %v, want 15s", c.interval)
	}
	c.SetInterval(0)
	if c.interval != 15*time.Second {
		t.Errorf("zero interval should be ignored, got %v", c.interval)
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), nil)
	statuses := c.RunOnce(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("Statuses() = %d, want 2", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(memstore.New(), "", nil)
	// No statuses yet: vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run")
	}
}

func TestChecker_StoreClosed(t *testing.T) {
	store := memstore.New()
	store.Close()

	c := NewChecker(store, "", nil)
	c.runAll(context.Background())
	if c.IsHealthy() {
		t.Error("closed store should be unhealthy")
	}
	if s := c.Statuses()[0]; s.Name != "store" || s.Error == "" {
		t.Errorf("status = %+v", s)
	}
}

func TestChecker_DataDirRecovers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	c := NewChecker(memstore.New(), dir, nil)
	c.runAll(context.Background())
	if c.IsHealthy() {
		t.Fatal("missing data dir should fail the first run")
	}

	// Recovery created the directory.
	c.runAll(context.Background())
	if !c.IsHealthy() {
		t.Errorf("data dir not recovered: %+v", c.Statuses())
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(memstore.New(), path, nil)
	c.runAll(context.Background())
	for _, s := range c.Statuses() {
		if s.Name == "data_dir" && s.Healthy {
			t.Error("data_dir should fail when path is a file")
		}
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := NewChecker(memstore.New(), "", nil)
	c.checks = nil
	c.Add(Check{
		Name:    "always_fail",
		CheckFn: func(ctx context.Context) error { return os.ErrPermission },
	})
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 || statuses[0].Healthy || statuses[0].Error == "" {
		t.Errorf("statuses = %+v", statuses)
	}
}

func TestChecker_StatusesReturnsCopy(t *testing.T) {
	c := NewChecker(memstore.New(), "", nil)
	c.runAll(context.Background())

	s := c.Statuses()
	s[0].Healthy = false
	if !c.Statuses()[0].Healthy {
		t.Error("Statuses() should return a copy")
	}
}
