package align_test

import (
	"errors"
	"reflect"
	"testing"

	"radarpipe/internal/align"
)

func mustRecord(t *testing.T, name string, sweeps []align.SweepDescriptor, fill float64) *align.FieldRecord {
	t.Helper()

	totalRays := 0
	for _, sw := range sweeps {
		totalRays += sw.NRays
	}
	data := make([][]float64, totalRays)
	for r := range data {
		row := make([]float64, sweeps[0].NGates)
		for g := range row {
			row[g] = fill
		}
		data[r] = row
	}
	rec, err := align.NewFieldRecord(name, data, sweeps, nil)
	if err != nil {
		t.Fatalf("build record %s: %v", name, err)
	}
	return rec
}

func TestAlignShiftsShorterFieldOntoReference(t *testing.T) {
	ref := mustRecord(t, "DBZH", []align.SweepDescriptor{
		{NRays: 2, NGates: 200, GateOffset: 0, GateSize: 100},
	}, 1)
	short := mustRecord(t, "KDP", []align.SweepDescriptor{
		{NRays: 2, NGates: 50, GateOffset: 100, GateSize: 100},
	}, 2)

	vol, err := align.Align([]*align.FieldRecord{ref, short})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if vol.NGates != 200 {
		t.Fatalf("ngates = %d, want 200", vol.NGates)
	}

	var kdp *align.AlignedField
	for i := range vol.Fields {
		if vol.Fields[i].Name == "KDP" {
			kdp = &vol.Fields[i]
		}
	}
	if kdp == nil {
		t.Fatal("KDP missing from volume")
	}

	// Offset 100 over gate size 100 shifts by one: the field occupies
	// gates [1, 51) and everything outside stays missing.
	row := kdp.Data[0]
	if len(row) != 200 {
		t.Fatalf("row length = %d, want 200", len(row))
	}
	if !align.IsMissing(row[0]) {
		t.Errorf("gate 0 = %v, want missing", row[0])
	}
	for g := 1; g < 51; g++ {
		if row[g] != 2 {
			t.Fatalf("gate %d = %v, want 2", g, row[g])
		}
	}
	for g := 51; g < 200; g++ {
		if !align.IsMissing(row[g]) {
			t.Fatalf("gate %d = %v, want missing", g, row[g])
		}
	}
}

func TestAlignReferenceSelection(t *testing.T) {
	// far reaches 20000 m, near reaches 10000 m.
	far := mustRecord(t, "DBZH", []align.SweepDescriptor{
		{NRays: 1, NGates: 200, GateOffset: 0, GateSize: 100},
	}, 1)
	near := mustRecord(t, "VRAD", []align.SweepDescriptor{
		{NRays: 1, NGates: 100, GateOffset: 0, GateSize: 100},
	}, 2)

	vol, err := align.Align([]*align.FieldRecord{near, far})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if vol.NGates != 200 {
		t.Errorf("ngates = %d, want far field's 200", vol.NGates)
	}
}

func TestAlignReferenceTieBreaksToFirst(t *testing.T) {
	// Identical coverage but different geometry split: both end at 20000 m.
	a := mustRecord(t, "DBZH", []align.SweepDescriptor{
		{NRays: 1, NGates: 200, GateOffset: 0, GateSize: 100},
	}, 1)
	b := mustRecord(t, "VRAD", []align.SweepDescriptor{
		{NRays: 1, NGates: 199, GateOffset: 100, GateSize: 100},
	}, 2)

	vol, err := align.Align([]*align.FieldRecord{a, b})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if vol.NGates != 200 || vol.GateOffset != 0 {
		t.Errorf("reference = (%d gates, offset %g), want first field (200, 0)", vol.NGates, vol.GateOffset)
	}
}

func TestAlignIsDeterministic(t *testing.T) {
	build := func() []*align.FieldRecord {
		return []*align.FieldRecord{
			mustRecord(t, "DBZH", []align.SweepDescriptor{
				{NRays: 3, NGates: 120, GateOffset: 0, GateSize: 250, Elevation: 0.5},
			}, 7),
			mustRecord(t, "ZDR", []align.SweepDescriptor{
				{NRays: 3, NGates: 60, GateOffset: 500, GateSize: 250, Elevation: 0.5},
			}, 3),
		}
	}

	first, err := align.Align(build())
	if err != nil {
		t.Fatalf("first align: %v", err)
	}
	second, err := align.Align(build())
	if err != nil {
		t.Fatalf("second align: %v", err)
	}
	if !volumesEqual(first, second) {
		t.Error("same input produced different volumes")
	}
}

// volumesEqual compares assembled volumes cell-wise, treating two missing
// samples as equal. reflect.DeepEqual cannot do that for NaN.
func volumesEqual(a, b *align.AssembledVolume) bool {
	if a.NGates != b.NGates || a.NSweeps != b.NSweeps ||
		a.GateSize != b.GateSize || a.GateOffset != b.GateOffset {
		return false
	}
	if !reflect.DeepEqual(a.RaysPerSweep, b.RaysPerSweep) ||
		!reflect.DeepEqual(a.Range, b.Range) ||
		!reflect.DeepEqual(a.FixedAngles, b.FixedAngles) ||
		!reflect.DeepEqual(a.Azimuth, b.Azimuth) ||
		!reflect.DeepEqual(a.Elevation, b.Elevation) {
		return false
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		fa, fb := a.Fields[i], b.Fields[i]
		if fa.Name != fb.Name || fa.Units != fb.Units || len(fa.Data) != len(fb.Data) {
			return false
		}
		for r := range fa.Data {
			if len(fa.Data[r]) != len(fb.Data[r]) {
				return false
			}
			for g := range fa.Data[r] {
				va, vb := fa.Data[r][g], fb.Data[r][g]
				if align.IsMissing(va) != align.IsMissing(vb) {
					return false
				}
				if !align.IsMissing(va) && va != vb {
					return false
				}
			}
		}
	}
	return true
}

func TestAlignGateSizeMismatchFailsVolume(t *testing.T) {
	ref := mustRecord(t, "DBZH", []align.SweepDescriptor{
		{NRays: 1, NGates: 200, GateOffset: 0, GateSize: 100},
	}, 1)
	bad := mustRecord(t, "VRAD", []align.SweepDescriptor{
		{NRays: 1, NGates: 100, GateOffset: 0, GateSize: 250},
	}, 2)

	_, err := align.Align([]*align.FieldRecord{ref, bad})
	var alignErr *align.Error
	if !errors.As(err, &alignErr) {
		t.Fatalf("expected *align.Error, got %v", err)
	}
	if alignErr.Field != "VRAD" {
		t.Errorf("error names field %q, want VRAD", alignErr.Field)
	}
}

func TestAlignRejectsFieldOutsideReferenceGrid(t *testing.T) {
	ref := mustRecord(t, "DBZH", []align.SweepDescriptor{
		{NRays: 1, NGates: 100, GateOffset: 0, GateSize: 100},
	}, 1)
	// Same coverage end but starts before the reference.
	early := mustRecord(t, "VRAD", []align.SweepDescriptor{
		{NRays: 1, NGates: 50, GateOffset: -100, GateSize: 100},
	}, 2)

	_, err := align.Align([]*align.FieldRecord{ref, early})
	var alignErr *align.Error
	if !errors.As(err, &alignErr) {
		t.Fatalf("expected *align.Error, got %v", err)
	}
}

func TestAlignEmptyInput(t *testing.T) {
	if _, err := align.Align(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestAlignAngularAxes(t *testing.T) {
	ref := mustRecord(t, "DBZH", []align.SweepDescriptor{
		{NRays: 2, NGates: 10, GateOffset: 0, GateSize: 100, Elevation: 0.5},
		{NRays: 3, NGates: 10, GateOffset: 0, GateSize: 100, Elevation: 1.5},
	}, 1)

	vol, err := align.Align([]*align.FieldRecord{ref})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if !reflect.DeepEqual(vol.RaysPerSweep, []int{2, 3}) {
		t.Errorf("rays per sweep = %v", vol.RaysPerSweep)
	}
	if !reflect.DeepEqual(vol.FixedAngles, []float64{0.5, 1.5}) {
		t.Errorf("fixed angles = %v", vol.FixedAngles)
	}
	if !reflect.DeepEqual(vol.Elevation, []float64{0.5, 0.5, 1.5, 1.5, 1.5}) {
		t.Errorf("elevation axis = %v", vol.Elevation)
	}
	if !reflect.DeepEqual(vol.Azimuth, []float64{0, 1, 0, 1, 2}) {
		t.Errorf("azimuth axis = %v", vol.Azimuth)
	}
	if vol.Range[1] != 100 {
		t.Errorf("range[1] = %v, want 100", vol.Range[1])
	}
}

func TestNewFieldRecordValidatesShape(t *testing.T) {
	sweeps := []align.SweepDescriptor{{NRays: 2, NGates: 3, GateSize: 100}}

	if _, err := align.NewFieldRecord("", [][]float64{{1, 2, 3}, {1, 2, 3}}, sweeps, nil); err == nil {
		t.Error("empty name accepted")
	}
	if _, err := align.NewFieldRecord("DBZH", [][]float64{{1, 2, 3}}, sweeps, nil); err == nil {
		t.Error("ray count mismatch accepted")
	}
	if _, err := align.NewFieldRecord("DBZH", [][]float64{{1, 2}, {1, 2, 3}}, sweeps, nil); err == nil {
		t.Error("ragged row accepted")
	}
	if _, err := align.NewFieldRecord("DBZH", nil, nil, nil); err == nil {
		t.Error("missing sweeps accepted")
	}
	if _, err := align.NewFieldRecord("DBZH", [][]float64{{1, 2, 3}, {1, 2, 3}}, sweeps, nil); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
}

func TestUnits(t *testing.T) {
	if got := align.Units("DBZH"); got != "dBZ" {
		t.Errorf("DBZH units = %q", got)
	}
	if got := align.Units("KDP"); got != "deg/km" {
		t.Errorf("KDP units = %q", got)
	}
	if got := align.Units("UNKNOWN"); got != "" {
		t.Errorf("unknown field units = %q", got)
	}
}
