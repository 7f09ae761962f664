package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"radarpipe/internal/align"
)

// ScanFileSpec describes one native-format scan file fixture.
type ScanFileSpec struct {
	Instrument string
	Scan       string
	Sweep      string
	Field      string
	Timestamp  string // scanfile layout, e.g. 20240101T000000Z
	NRays      int
	NGates     int
	GateOffset float64
	GateSize   float64
	Fill       float64
}

// Filename returns the canonical filename for the fixture.
func (s ScanFileSpec) Filename() string {
	return fmt.Sprintf("%s_%s_%s_%s_%s.json",
		s.Instrument, s.Scan, s.Sweep, s.Field, s.Timestamp)
}

// WriteScanFile writes the fixture into dir and returns its full path.
func WriteScanFile(t testing.TB, dir string, spec ScanFileSpec) string {
	t.Helper()

	if spec.NRays == 0 {
		spec.NRays = 4
	}
	if spec.NGates == 0 {
		spec.NGates = 10
	}
	if spec.GateSize == 0 {
		spec.GateSize = 100
	}

	data := make([][]float64, spec.NRays)
	for r := range data {
		row := make([]float64, spec.NGates)
		for g := range row {
			row[g] = spec.Fill
		}
		data[r] = row
	}

	doc := map[string]any{
		"field": spec.Field,
		"sweeps": []align.SweepDescriptor{{
			NRays:      spec.NRays,
			NGates:     spec.NGates,
			GateOffset: spec.GateOffset,
			GateSize:   spec.GateSize,
		}},
		"data": data,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal scan fixture: %v", err)
	}
	path := filepath.Join(dir, spec.Filename())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir fixture dir: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write scan fixture: %v", err)
	}
	return path
}
