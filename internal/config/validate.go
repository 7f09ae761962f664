package config

import (
	"fmt"
	"strings"
)

// ValidationError reports an invalid configuration value. Validation failures
// are the only errors that halt the process before the daemons start.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration for values the daemons cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Instrument) == "" {
		return &ValidationError{Field: "instrument", Reason: "instrument id is required"}
	}
	if c.Download.Enabled {
		if strings.TrimSpace(c.FTP.Host) == "" {
			return &ValidationError{Field: "ftp.host", Reason: "host is required when the download daemon is enabled"}
		}
		if c.FTP.Port <= 0 || c.FTP.Port > 65535 {
			return &ValidationError{Field: "ftp.port", Reason: fmt.Sprintf("port %d out of range", c.FTP.Port)}
		}
		if strings.TrimSpace(c.FTP.BasePath) == "" {
			return &ValidationError{Field: "ftp.base_path", Reason: "remote base path is required when the download daemon is enabled"}
		}
	}
	switch c.State.Backend {
	case "sqlite", "json":
	default:
		return &ValidationError{Field: "state.backend", Reason: fmt.Sprintf("unsupported backend %q (expected sqlite or json)", c.State.Backend)}
	}
	if c.Download.PollInterval <= 0 {
		return &ValidationError{Field: "download.poll_interval", Reason: "poll interval must be positive"}
	}
	if c.Download.MaxConcurrent <= 0 {
		return &ValidationError{Field: "download.max_concurrent", Reason: "concurrency limit must be positive"}
	}
	if c.Processing.PollInterval <= 0 {
		return &ValidationError{Field: "processing.poll_interval", Reason: "poll interval must be positive"}
	}
	if c.Processing.MaxConcurrent <= 0 {
		return &ValidationError{Field: "processing.max_concurrent", Reason: "concurrency limit must be positive"}
	}
	if c.Processing.QuiescentCycles <= 0 {
		return &ValidationError{Field: "processing.quiescent_cycles", Reason: "quiescent cycle count must be positive"}
	}
	return nil
}
