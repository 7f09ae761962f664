package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// FTP contains the remote file source connection settings.
type FTP struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	BasePath string `toml:"base_path"`
}

// Paths contains the local directory layout. Only BaseDir is required; the
// daemon manager derives the rest from it when they are left empty.
type Paths struct {
	BaseDir      string `toml:"base_dir"`
	RawDir       string `toml:"raw_dir"`
	ProcessedDir string `toml:"processed_dir"`
	StatePath    string `toml:"state_path"`
	LogDir       string `toml:"log_dir"`
	SocketPath   string `toml:"socket_path"`
}

// State selects and tunes the durable acquisition tracker.
type State struct {
	// Backend is "sqlite" or "json".
	Backend string `toml:"backend"`
}

// Download contains the download daemon settings.
type Download struct {
	Enabled       bool `toml:"enabled"`
	PollInterval  int  `toml:"poll_interval"` // seconds
	MaxConcurrent int  `toml:"max_concurrent"`
}

// Processing contains the grouping/processing daemon settings.
type Processing struct {
	Enabled       bool   `toml:"enabled"`
	PollInterval  int    `toml:"poll_interval"` // seconds
	MaxConcurrent int    `toml:"max_concurrent"`
	VolumeTypes   string `toml:"volume_types"` // YAML table path, optional
	// QuiescentCycles is the fallback completeness policy when no volume
	// type table is configured: a group dispatches after this many poll
	// cycles without a new member.
	QuiescentCycles int `toml:"quiescent_cycles"`
}

// Notifications contains optional ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"` // seconds
	OnProcessed    bool   `toml:"on_processed"`
	OnError        bool   `toml:"on_error"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration for the pipeline. It is constructed
// once by Load and passed into every component; nothing reads ambient state.
type Config struct {
	Instrument    string        `toml:"instrument"`
	FTP           FTP           `toml:"ftp"`
	Paths         Paths         `toml:"paths"`
	State         State         `toml:"state"`
	Download      Download      `toml:"download"`
	Processing    Processing    `toml:"processing"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/radarpipe/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file. An
// empty path falls back to DefaultConfigPath; a missing file yields defaults.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the local directory layout.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BaseDir, c.Paths.RawDir, c.Paths.ProcessedDir, c.Paths.LogDir, filepath.Dir(c.Paths.StatePath)} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
