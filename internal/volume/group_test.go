package volume_test

import (
	"testing"

	"radarpipe/internal/config"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/volume"
)

func member(t *testing.T, filename string) volume.Member {
	t.Helper()
	name, err := scanfile.Parse(filename)
	if err != nil {
		t.Fatalf("parse %s: %v", filename, err)
	}
	return volume.Member{Name: name, LocalPath: "/tmp/" + filename}
}

func TestGrouperBucketsByVolumeKey(t *testing.T) {
	gr := volume.NewGrouper()
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr"))
	gr.Add(member(t, "RADAR01_VOLA_S2_DBZH_20240101T120000Z.bfr"))
	gr.Add(member(t, "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr"))
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120500Z.bfr"))

	if gr.Len() != 2 {
		t.Fatalf("groups = %d, want 2", gr.Len())
	}

	groups := gr.Tick()
	if len(groups) != 2 {
		t.Fatalf("snapshot has %d groups", len(groups))
	}
	if len(groups[0].Members) != 3 {
		t.Errorf("first group has %d members, want 3", len(groups[0].Members))
	}
	if len(groups[1].Members) != 1 {
		t.Errorf("second group has %d members, want 1", len(groups[1].Members))
	}
}

func TestGrouperIgnoresDuplicateFilenames(t *testing.T) {
	gr := volume.NewGrouper()
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr"))
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr"))

	groups := gr.Tick()
	if len(groups) != 1 || len(groups[0].Members) != 1 {
		t.Errorf("duplicate add changed the group: %+v", groups)
	}
}

func TestQuiescenceCountersResetOnGrowth(t *testing.T) {
	gr := volume.NewGrouper()
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr"))

	groups := gr.Tick()
	if groups[0].CyclesSinceGrowth != 0 {
		t.Fatalf("cycles after first tick = %d, want 0", groups[0].CyclesSinceGrowth)
	}

	groups = gr.Tick()
	if groups[0].CyclesSinceGrowth != 1 {
		t.Fatalf("cycles after second tick = %d, want 1", groups[0].CyclesSinceGrowth)
	}

	// New member resets the counter.
	gr.Add(member(t, "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr"))
	groups = gr.Tick()
	if groups[0].CyclesSinceGrowth != 0 {
		t.Errorf("cycles after growth = %d, want 0", groups[0].CyclesSinceGrowth)
	}
}

func TestFieldSetComplete(t *testing.T) {
	types := config.VolumeTypes{"VOLA": {"DBZH", "VRAD"}}
	complete := volume.FieldSetComplete(types)

	gr := volume.NewGrouper()
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr"))
	if g := gr.Tick()[0]; complete(g) {
		t.Error("group complete with VRAD missing")
	}

	gr.Add(member(t, "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr"))
	if g := gr.Tick()[0]; !complete(g) {
		t.Error("group incomplete with all expected fields present")
	}

	// Scans absent from the table never dispatch.
	other := volume.NewGrouper()
	other.Add(member(t, "RADAR01_VOLB_S1_DBZH_20240101T120000Z.bfr"))
	if g := other.Tick()[0]; complete(g) {
		t.Error("unknown scan id dispatched")
	}
}

func TestQuiescentComplete(t *testing.T) {
	complete := volume.QuiescentComplete(2)

	gr := volume.NewGrouper()
	gr.Add(member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr"))

	for i := 0; i < 2; i++ {
		if g := gr.Tick()[0]; complete(g) {
			t.Fatalf("group complete after %d idle cycles, want 2", g.CyclesSinceGrowth)
		}
	}
	if g := gr.Tick()[0]; !complete(g) {
		t.Errorf("group incomplete after %d idle cycles", g.CyclesSinceGrowth)
	}
}

func TestGrouperRemove(t *testing.T) {
	gr := volume.NewGrouper()
	m := member(t, "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr")
	gr.Add(m)
	gr.Remove(m.Name.Key())
	if gr.Len() != 0 {
		t.Errorf("groups = %d after remove", gr.Len())
	}
}
