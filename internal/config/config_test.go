package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"radarpipe/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndDerivesPaths(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
instrument = "RADAR01"

[ftp]
host = "ftp.example.org"
base_path = "/scans"

[paths]
base_dir = "`+base+`"
`)

	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %s", resolved)
	}

	if cfg.FTP.Port != 21 || cfg.FTP.Username != "anonymous" {
		t.Errorf("ftp defaults = %+v", cfg.FTP)
	}
	if cfg.Paths.RawDir != filepath.Join(base, "raw") {
		t.Errorf("raw dir = %s", cfg.Paths.RawDir)
	}
	if cfg.Paths.ProcessedDir != filepath.Join(base, "processed") {
		t.Errorf("processed dir = %s", cfg.Paths.ProcessedDir)
	}
	if cfg.Paths.StatePath != filepath.Join(base, "state.db") {
		t.Errorf("state path = %s for sqlite backend", cfg.Paths.StatePath)
	}
	if cfg.Paths.SocketPath != filepath.Join(base, "radarpiped.sock") {
		t.Errorf("socket path = %s", cfg.Paths.SocketPath)
	}
	if !cfg.Download.Enabled || cfg.Download.PollInterval != 60 {
		t.Errorf("download defaults = %+v", cfg.Download)
	}
}

func TestLoadDerivesJSONStatePath(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
instrument = "RADAR01"

[ftp]
host = "ftp.example.org"
base_path = "/scans"

[paths]
base_dir = "`+base+`"

[state]
backend = "json"
`)

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.StatePath != filepath.Join(base, "state.json") {
		t.Errorf("state path = %s for json backend", cfg.Paths.StatePath)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		toml  string
		field string
	}{
		{
			name:  "missing instrument",
			toml:  "[ftp]\nhost = \"h\"\nbase_path = \"/scans\"\n",
			field: "instrument",
		},
		{
			name:  "missing host",
			toml:  "instrument = \"R\"\n[ftp]\nbase_path = \"/scans\"\n",
			field: "ftp.host",
		},
		{
			name:  "bad backend",
			toml:  "instrument = \"R\"\n[ftp]\nhost = \"h\"\nbase_path = \"/scans\"\n[state]\nbackend = \"etcd\"\n",
			field: "state.backend",
		},
		{
			name:  "zero poll interval",
			toml:  "instrument = \"R\"\n[ftp]\nhost = \"h\"\nbase_path = \"/scans\"\n[download]\nenabled = true\npoll_interval = 0\n",
			field: "download.poll_interval",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.toml)
			_, _, err := config.Load(path)
			var verr *config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("error field = %s, want %s", verr.Field, tc.field)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("second write accepted")
	}
}

func TestLoadVolumeTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume_types.yaml")
	if err := os.WriteFile(path, []byte(`
"0315": [DBZH, DBZV, ZDR, RHOHV]
"0200": [VRAD, WRAD]
`), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table, err := config.LoadVolumeTypes(path)
	if err != nil {
		t.Fatalf("load volume types: %v", err)
	}
	if !reflect.DeepEqual(table["0315"], []string{"DBZH", "DBZV", "ZDR", "RHOHV"}) {
		t.Errorf("0315 fields = %v", table["0315"])
	}
	if !reflect.DeepEqual(table["0200"], []string{"VRAD", "WRAD"}) {
		t.Errorf("0200 fields = %v", table["0200"])
	}
}

func TestLoadVolumeTypesRejectsEmptyFieldList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume_types.yaml")
	if err := os.WriteFile(path, []byte(`"0315": []`), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	if _, err := config.LoadVolumeTypes(path); err == nil {
		t.Fatal("empty field list accepted")
	}
}
