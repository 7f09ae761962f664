package volume_test

import (
	"os"
	"path/filepath"
	"testing"

	"radarpipe/internal/logging"
	"radarpipe/internal/volume"
)

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.json")

	journal, err := volume.OpenJournal(path, logging.NewNop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := journal.Record("RADAR01_VOLA_20240101T120000Z", volume.JournalEntry{
		Status:     volume.StatusProcessed,
		RunID:      "run-1",
		OutputPath: "/processed/out.json",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	reopened, err := volume.OpenJournal(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	if !reopened.Has("RADAR01_VOLA_20240101T120000Z") {
		t.Fatal("entry lost across reopen")
	}
	entry, ok := reopened.Get("RADAR01_VOLA_20240101T120000Z")
	if !ok {
		t.Fatal("entry not returned")
	}
	if entry.Status != volume.StatusProcessed || entry.OutputPath != "/processed/out.json" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.ProcessedAt.IsZero() {
		t.Error("processed timestamp not stamped")
	}
}

func TestJournalCounts(t *testing.T) {
	journal, err := volume.OpenJournal(filepath.Join(t.TempDir(), "volumes.json"), logging.NewNop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	entries := map[string]volume.JournalEntry{
		"a": {Status: volume.StatusProcessed},
		"b": {Status: volume.StatusProcessed},
		"c": {Status: volume.StatusFailed, Error: "gate size mismatch"},
	}
	for key, entry := range entries {
		if err := journal.Record(key, entry); err != nil {
			t.Fatalf("record %s: %v", key, err)
		}
	}

	processed, failed := journal.Counts()
	if processed != 2 || failed != 1 {
		t.Errorf("counts = (%d, %d), want (2, 1)", processed, failed)
	}
}

func TestJournalStartsEmptyOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	journal, err := volume.OpenJournal(path, logging.NewNop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if journal.Has("anything") {
		t.Error("corrupt journal produced entries")
	}
	if err := journal.Record("key", volume.JournalEntry{Status: volume.StatusProcessed}); err != nil {
		t.Fatalf("record after recovery: %v", err)
	}
}

func TestJournalRollsBackFailedRecord(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "journal")
	if err := os.WriteFile(blocker, []byte("in the way"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	journal, err := volume.OpenJournal(filepath.Join(blocker, "volumes.json"), logging.NewNop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	key := "RADAR01_VOLA_20240101T120000Z"
	if err := journal.Record(key, volume.JournalEntry{Status: volume.StatusProcessed}); err == nil {
		t.Fatal("record succeeded with the journal directory blocked")
	}
	if journal.Has(key) {
		t.Fatal("undurable outcome reported as journaled; the group would never reprocess")
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatalf("remove blocker: %v", err)
	}
	if err := journal.Record(key, volume.JournalEntry{Status: volume.StatusProcessed}); err != nil {
		t.Fatalf("record after repair: %v", err)
	}
	if !journal.Has(key) {
		t.Fatal("entry missing after successful record")
	}
}
