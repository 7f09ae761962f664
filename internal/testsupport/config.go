package testsupport

import (
	"path/filepath"
	"testing"

	"radarpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Instrument = "RADAR01"
	cfg.FTP.Host = "127.0.0.1"
	cfg.FTP.BasePath = "/scans"
	cfg.Paths.BaseDir = base
	cfg.Paths.RawDir = filepath.Join(base, "raw")
	cfg.Paths.ProcessedDir = filepath.Join(base, "processed")
	cfg.Paths.StatePath = filepath.Join(base, "state.json")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "radarpiped.sock")
	cfg.State.Backend = "json"
	cfg.Download.PollInterval = 1
	cfg.Processing.PollInterval = 1
	cfg.Processing.QuiescentCycles = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSQLiteState switches the test config to the sqlite tracker backend.
func WithSQLiteState() ConfigOption {
	return func(cfg *config.Config) {
		cfg.State.Backend = "sqlite"
		cfg.Paths.StatePath = filepath.Join(cfg.Paths.BaseDir, "state.db")
	}
}

// WithInstrument overrides the instrument filter on the test config.
func WithInstrument(instrument string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Instrument = instrument
	}
}
