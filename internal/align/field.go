package align

import (
	"fmt"
	"math"
)

// Missing is the in-memory missing-value marker. Aligned arrays are seeded
// with it and gates outside a field's native coverage keep it.
var Missing = math.NaN()

// IsMissing reports whether a sample carries the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// SweepDescriptor carries the geometry of one sweep: a full rotation at a
// fixed elevation angle producing NRays x NGates samples.
type SweepDescriptor struct {
	NRays      int     `json:"nrays"`
	NGates     int     `json:"ngates"`
	GateOffset float64 `json:"gate_offset"` // meters to the first gate center
	GateSize   float64 `json:"gate_size"`   // meters between gate centers
	Elevation  float64 `json:"elevation"`   // degrees
}

// FieldRecord is one decoded field of one volume: a rays x gates data array
// with the sweeps concatenated ray-wise, paired 1:1 with its descriptors.
type FieldRecord struct {
	Name     string
	Data     [][]float64
	Sweeps   []SweepDescriptor
	Metadata map[string]string
}

// NewFieldRecord validates shape consistency between the descriptors and the
// data array and returns the assembled record. Inconsistency is a fatal
// construction error, never silently truncated.
func NewFieldRecord(name string, data [][]float64, sweeps []SweepDescriptor, metadata map[string]string) (*FieldRecord, error) {
	if name == "" {
		return nil, &Error{Field: name, Reason: "field name is empty"}
	}
	if len(sweeps) == 0 {
		return nil, &Error{Field: name, Reason: "no sweep descriptors"}
	}

	totalRays := 0
	ngates := sweeps[0].NGates
	for i, sw := range sweeps {
		if sw.NRays <= 0 || sw.NGates <= 0 {
			return nil, &Error{Field: name, Reason: fmt.Sprintf("sweep %d has non-positive dimensions", i)}
		}
		if sw.GateSize <= 0 {
			return nil, &Error{Field: name, Reason: fmt.Sprintf("sweep %d has non-positive gate size", i)}
		}
		if sw.NGates != ngates {
			return nil, &Error{Field: name, Reason: fmt.Sprintf("sweep %d gate count %d differs from first sweep %d", i, sw.NGates, ngates)}
		}
		totalRays += sw.NRays
	}
	if len(data) != totalRays {
		return nil, &Error{Field: name, Reason: fmt.Sprintf("data has %d rays, descriptors declare %d", len(data), totalRays)}
	}
	for r, row := range data {
		if len(row) != ngates {
			return nil, &Error{Field: name, Reason: fmt.Sprintf("ray %d has %d gates, descriptors declare %d", r, len(row), ngates)}
		}
	}

	return &FieldRecord{Name: name, Data: data, Sweeps: sweeps, Metadata: metadata}, nil
}

// NGates returns the gate count shared by all sweeps of the field.
func (f *FieldRecord) NGates() int { return f.Sweeps[0].NGates }

// NRays returns the total ray count across all sweeps.
func (f *FieldRecord) NRays() int {
	total := 0
	for _, sw := range f.Sweeps {
		total += sw.NRays
	}
	return total
}

// LastGate is the far edge of the field's radial coverage, taken from the
// first sweep descriptor. The field with the maximum LastGate defines the
// reference grid for the volume.
func (f *FieldRecord) LastGate() float64 {
	sw := f.Sweeps[0]
	return sw.GateOffset + sw.GateSize*float64(sw.NGates)
}
