package volume

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"radarpipe/internal/align"
)

// nativeDocument is the on-disk JSON shape of one decoded scan file. Null
// cells map to the missing value.
type nativeDocument struct {
	Field    string                  `json:"field"`
	Sweeps   []align.SweepDescriptor `json:"sweeps"`
	Data     [][]*float64            `json:"data"`
	Metadata map[string]string       `json:"metadata,omitempty"`
}

// NativeDecoder reads scan files in the pipeline's own JSON encoding.
// Deployments with a binary scan format substitute their own Decoder.
type NativeDecoder struct{}

// NewNativeDecoder returns the JSON scan-file decoder.
func NewNativeDecoder() *NativeDecoder { return &NativeDecoder{} }

// Decode parses one scan file into a field record.
func (NativeDecoder) Decode(ctx context.Context, localPath string) (*align.FieldRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read scan file: %w", err)
	}

	var doc nativeDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse scan file %s: %w", localPath, err)
	}

	data := make([][]float64, len(doc.Data))
	for r, row := range doc.Data {
		cells := make([]float64, len(row))
		for g, cell := range row {
			if cell == nil {
				cells[g] = align.Missing
				continue
			}
			cells[g] = *cell
		}
		data[r] = cells
	}

	return align.NewFieldRecord(doc.Field, data, doc.Sweeps, doc.Metadata)
}

var _ Decoder = (*NativeDecoder)(nil)
