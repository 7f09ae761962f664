package volume

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"radarpipe/internal/align"
	"radarpipe/internal/scanfile"
)

// Decoder turns one scan file on disk into a field record ready for
// alignment. The on-disk encoding is deployment-specific; the daemon only
// depends on this interface.
type Decoder interface {
	Decode(ctx context.Context, localPath string) (*align.FieldRecord, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, localPath string) (*align.FieldRecord, error)

func (f DecoderFunc) Decode(ctx context.Context, localPath string) (*align.FieldRecord, error) {
	return f(ctx, localPath)
}

// Consumer receives each assembled volume and returns where it wrote the
// result. A consumer failure marks the group failed but never corrupts the
// alignment output handed to it.
type Consumer interface {
	Consume(ctx context.Context, key scanfile.VolumeKey, vol *align.AssembledVolume) (string, error)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(ctx context.Context, key scanfile.VolumeKey, vol *align.AssembledVolume) (string, error)

func (f ConsumerFunc) Consume(ctx context.Context, key scanfile.VolumeKey, vol *align.AssembledVolume) (string, error) {
	return f(ctx, key, vol)
}

// SummaryWriter is the default consumer: it writes a JSON descriptor of the
// assembled volume into the processed directory. Data arrays are summarized
// rather than dumped; the descriptor exists so operators can inspect what was
// assembled without a binary reader.
type SummaryWriter struct {
	Dir string
}

type volumeSummary struct {
	Instrument   string             `json:"instrument"`
	Scan         string             `json:"scan"`
	Time         time.Time          `json:"time"`
	NGates       int                `json:"ngates"`
	NSweeps      int                `json:"nsweeps"`
	RaysPerSweep []int              `json:"rays_per_sweep"`
	GateSize     float64            `json:"gate_size"`
	GateOffset   float64            `json:"gate_offset"`
	FixedAngles  []float64          `json:"fixed_angles"`
	Fields       []fieldSummary     `json:"fields"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

type fieldSummary struct {
	Name  string `json:"name"`
	Units string `json:"units"`
	Rays  int    `json:"rays"`
	Gates int    `json:"gates"`
}

// Consume writes the summary file and returns its path.
func (w *SummaryWriter) Consume(ctx context.Context, key scanfile.VolumeKey, vol *align.AssembledVolume) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure processed directory: %w", err)
	}

	summary := volumeSummary{
		Instrument:   key.Instrument,
		Scan:         key.Scan,
		Time:         key.Time,
		NGates:       vol.NGates,
		NSweeps:      vol.NSweeps,
		RaysPerSweep: vol.RaysPerSweep,
		GateSize:     vol.GateSize,
		GateOffset:   vol.GateOffset,
		FixedAngles:  vol.FixedAngles,
		Metadata:     vol.Metadata,
	}
	for _, f := range vol.Fields {
		fs := fieldSummary{Name: f.Name, Units: f.Units, Rays: len(f.Data)}
		if fs.Rays > 0 {
			fs.Gates = len(f.Data[0])
		}
		summary.Fields = append(summary.Fields, fs)
	}

	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode volume summary: %w", err)
	}

	path := filepath.Join(w.Dir, key.String()+".json")
	tmp, err := os.CreateTemp(w.Dir, ".volume.*")
	if err != nil {
		return "", fmt.Errorf("create summary temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write volume summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close summary temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("place volume summary: %w", err)
	}
	return path, nil
}

var _ Consumer = (*SummaryWriter)(nil)
