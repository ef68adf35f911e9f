// Package daemon manages the heritage governance daemon lifecycle and
// configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/heritage-dao/heritage/internal/health"
	"github.com/heritage-dao/heritage/internal/infra/governance"
)

// EnvPrefix prefixes every environment override, e.g. HERITAGE_API_PORT.
const EnvPrefix = "heritage"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds all daemon configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Storage    StorageConfig    `toml:"storage"`
	Governance GovernanceConfig `toml:"governance"`
	Roster     RosterConfig     `toml:"roster"`
	Logging    LoggingConfig    `toml:"logging"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects the governance store.
type StorageConfig struct {
	Backend string `toml:"backend"` // memory, sqlite or badger
	Dir     string `toml:"dir"`
}

// GovernanceConfig holds engine parameters. Durations use time.ParseDuration
// syntax.
type GovernanceConfig struct {
	EmergencyGrace            string `toml:"emergency_grace" split_words:"true"`
	ExecutionWindow           string `toml:"execution_window" split_words:"true"`
	EvidenceExtension         string `toml:"evidence_extension" split_words:"true"`
	MaxDeadlineExtensions     uint32 `toml:"max_deadline_extensions" split_words:"true"`
	RequireVoterCapability    bool   `toml:"require_voter_capability" split_words:"true"`
	RequireProposerCapability bool   `toml:"require_proposer_capability" split_words:"true"`
	SweepInterval             string `toml:"sweep_interval" split_words:"true"`
}

// RosterConfig points at the YAML roster seeding users and artifacts.
type RosterConfig struct {
	File string `toml:"file"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// TelemetryConfig controls metrics exposure and health checking.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus"`
	HealthInterval string `toml:"health_interval" split_words:"true"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := heritageHome()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8470,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Dir:     filepath.Join(homeDir, "data"),
		},
		Governance: GovernanceConfig{
			EmergencyGrace:        "2h",
			ExecutionWindow:       "24h",
			EvidenceExtension:     "24h",
			MaxDeadlineExtensions: 3,
			SweepInterval:         "1m",
		},
		Roster: RosterConfig{
			File: filepath.Join(homeDir, "roster.yaml"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: "1m",
		},
	}
}

// LoadConfig reads config from $HERITAGE_HOME/config.toml, falling back to
// defaults, then applies HERITAGE_* environment overrides.
func LoadConfig() (Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile is LoadConfig with an explicit file path.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case BackendMemory, BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("storage.backend %q: want memory, sqlite or badger", c.Storage.Backend)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	return nil
}

// SaveConfig writes the config to $HERITAGE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigFile(ConfigPath(), cfg)
}

// SaveConfigFile writes the config to path.
func SaveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// EngineConfig converts the [governance] section into engine parameters.
// Unparseable durations fall back to the engine defaults.
func (g GovernanceConfig) EngineConfig() governance.Config {
	def := governance.DefaultConfig()
	return governance.Config{
		EmergencyGrace:            parseDuration(g.EmergencyGrace, def.EmergencyGrace),
		ExecutionWindow:           parseDuration(g.ExecutionWindow, def.ExecutionWindow),
		EvidenceExtension:         parseDuration(g.EvidenceExtension, def.EvidenceExtension),
		MaxDeadlineExtensions:     g.MaxDeadlineExtensions,
		RequireVoterCapability:    g.RequireVoterCapability,
		RequireProposerCapability: g.RequireProposerCapability,
	}
}

// SweepEvery returns the sweeper interval.
func (g GovernanceConfig) SweepEvery() time.Duration {
	return parseDuration(g.SweepInterval, time.Minute)
}

// HealthEvery returns the health check interval.
func (t TelemetryConfig) HealthEvery() time.Duration {
	return parseDuration(t.HealthInterval, health.DefaultInterval)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(heritageHome(), "config.toml")
}

// heritageHome returns the heritage data directory.
func heritageHome() string {
	if env := os.Getenv("HERITAGE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".heritage")
}

// HeritageHome is exported for use by other packages.
func HeritageHome() string {
	return heritageHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
