package config

import "path/filepath"

// Default returns the baseline configuration before file values are applied.
func Default() Config {
	return Config{
		FTP: FTP{
			Port:     21,
			Username: "anonymous",
		},
		Paths: Paths{
			BaseDir: "~/radarpipe",
		},
		State: State{
			Backend: "sqlite",
		},
		Download: Download{
			Enabled:       true,
			PollInterval:  60,
			MaxConcurrent: 5,
		},
		Processing: Processing{
			Enabled:         true,
			PollInterval:    30,
			MaxConcurrent:   2,
			QuiescentCycles: 3,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			OnProcessed:    true,
			OnError:        true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// normalize expands paths and derives the directory layout from BaseDir for
// any path left unset.
func (c *Config) normalize() error {
	base, err := expandPath(c.Paths.BaseDir)
	if err != nil {
		return &ValidationError{Field: "paths.base_dir", Reason: err.Error()}
	}
	c.Paths.BaseDir = base

	derive := func(field *string, fallback string) error {
		if *field == "" {
			*field = fallback
			return nil
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
		return nil
	}

	stateName := "state.db"
	if c.State.Backend == "json" {
		stateName = "state.json"
	}

	if err := derive(&c.Paths.RawDir, filepath.Join(base, "raw")); err != nil {
		return &ValidationError{Field: "paths.raw_dir", Reason: err.Error()}
	}
	if err := derive(&c.Paths.ProcessedDir, filepath.Join(base, "processed")); err != nil {
		return &ValidationError{Field: "paths.processed_dir", Reason: err.Error()}
	}
	if err := derive(&c.Paths.StatePath, filepath.Join(base, stateName)); err != nil {
		return &ValidationError{Field: "paths.state_path", Reason: err.Error()}
	}
	if err := derive(&c.Paths.LogDir, filepath.Join(base, "logs")); err != nil {
		return &ValidationError{Field: "paths.log_dir", Reason: err.Error()}
	}
	if err := derive(&c.Paths.SocketPath, filepath.Join(base, "radarpiped.sock")); err != nil {
		return &ValidationError{Field: "paths.socket_path", Reason: err.Error()}
	}
	if c.Processing.VolumeTypes != "" {
		expanded, err := expandPath(c.Processing.VolumeTypes)
		if err != nil {
			return &ValidationError{Field: "processing.volume_types", Reason: err.Error()}
		}
		c.Processing.VolumeTypes = expanded
	}
	return nil
}
