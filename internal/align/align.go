package align

import (
	"fmt"
)

// fieldUnits maps field names to display units. Unmapped names carry no
// explicit unit.
var fieldUnits = map[string]string{
	"DBZH":  "dBZ",
	"DBZV":  "dBZ",
	"TH":    "dBZ",
	"TV":    "dBZ",
	"ZDR":   "dB",
	"KDP":   "deg/km",
	"PHIDP": "deg",
	"VRAD":  "m/s",
	"WRAD":  "m/s",
	"RHOHV": "unitless",
}

// Units returns the display unit for a field name, empty when unmapped.
func Units(field string) string { return fieldUnits[field] }

// Error reports a per-volume alignment failure. It is fatal for the one
// volume being assembled and must not abort sibling volumes.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "align: " + e.Reason
	}
	return fmt.Sprintf("align %s: %s", e.Field, e.Reason)
}

// AlignedField is one field re-expressed on the volume's reference grid.
type AlignedField struct {
	Name  string
	Units string
	Data  [][]float64 // nrays x reference ngates, Missing outside coverage
}

// AssembledVolume is the multi-field volume on the reference geometry,
// immutable after assembly. Ownership passes to the consumer.
type AssembledVolume struct {
	NGates       int
	NSweeps      int
	RaysPerSweep []int
	GateSize     float64
	GateOffset   float64
	Range        []float64 // gate center distances, meters
	FixedAngles  []float64 // per-sweep elevation, degrees
	Azimuth      []float64 // per ray
	Elevation    []float64 // per ray
	Fields       []AlignedField
	Metadata     map[string]string
}

// Align assembles a non-empty list of decoded field records for one volume
// onto the reference geometry. The input order is significant only for
// breaking reference-selection ties; output is deterministic for a given
// input (same list, same order, bit-identical volume).
func Align(fields []*FieldRecord) (*AssembledVolume, error) {
	if len(fields) == 0 {
		return nil, &Error{Reason: "no fields to align"}
	}

	ref := fields[0]
	for _, f := range fields[1:] {
		if f.LastGate() > ref.LastGate() {
			ref = f
		}
	}

	refSweep := ref.Sweeps[0]
	vol := &AssembledVolume{
		NGates:     refSweep.NGates,
		NSweeps:    len(ref.Sweeps),
		GateSize:   refSweep.GateSize,
		GateOffset: refSweep.GateOffset,
		Metadata:   make(map[string]string, len(ref.Metadata)),
	}
	for k, v := range ref.Metadata {
		vol.Metadata[k] = v
	}

	vol.Range = make([]float64, vol.NGates)
	for g := range vol.Range {
		vol.Range[g] = vol.GateOffset + vol.GateSize*float64(g)
	}

	// The reference field supplies the angular axes: each sweep's elevation
	// repeated across its rays, and per-sweep azimuth ramps concatenated.
	vol.RaysPerSweep = make([]int, 0, len(ref.Sweeps))
	vol.FixedAngles = make([]float64, 0, len(ref.Sweeps))
	vol.Azimuth = make([]float64, 0, ref.NRays())
	vol.Elevation = make([]float64, 0, ref.NRays())
	for _, sw := range ref.Sweeps {
		vol.RaysPerSweep = append(vol.RaysPerSweep, sw.NRays)
		vol.FixedAngles = append(vol.FixedAngles, sw.Elevation)
		for r := 0; r < sw.NRays; r++ {
			vol.Azimuth = append(vol.Azimuth, float64(r))
			vol.Elevation = append(vol.Elevation, sw.Elevation)
		}
	}

	vol.Fields = make([]AlignedField, 0, len(fields))
	for _, f := range fields {
		data, err := alignToReference(f, refSweep)
		if err != nil {
			return nil, err
		}
		vol.Fields = append(vol.Fields, AlignedField{
			Name:  f.Name,
			Units: Units(f.Name),
			Data:  data,
		})
	}

	return vol, nil
}

func alignToReference(f *FieldRecord, ref SweepDescriptor) ([][]float64, error) {
	sw := f.Sweeps[0]
	if sw.GateSize != ref.GateSize {
		return nil, &Error{Field: f.Name, Reason: fmt.Sprintf("gate size %g differs from reference %g", sw.GateSize, ref.GateSize)}
	}

	shift := int((sw.GateOffset - ref.GateOffset) / ref.GateSize)
	if shift < 0 {
		return nil, &Error{Field: f.Name, Reason: fmt.Sprintf("gate offset %g precedes reference %g", sw.GateOffset, ref.GateOffset)}
	}
	if shift+sw.NGates > ref.NGates {
		return nil, &Error{Field: f.Name, Reason: fmt.Sprintf("shifted field (%d+%d gates) exceeds reference grid of %d", shift, sw.NGates, ref.NGates)}
	}

	out := make([][]float64, len(f.Data))
	for r, row := range f.Data {
		aligned := make([]float64, ref.NGates)
		for g := range aligned {
			aligned[g] = Missing
		}
		copy(aligned[shift:shift+sw.NGates], row)
		out[r] = aligned
	}
	return out, nil
}
