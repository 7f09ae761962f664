package volume

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"radarpipe/internal/logging"
)

// JournalStatus is the recorded outcome of one dispatched group.
type JournalStatus string

const (
	StatusProcessed JournalStatus = "processed"
	StatusFailed    JournalStatus = "failed"
)

// JournalEntry records one group outcome. Independent of download state so
// processing recovers on its own after a restart.
type JournalEntry struct {
	Status      JournalStatus `json:"status"`
	RunID       string        `json:"run_id"`
	OutputPath  string        `json:"output_path,omitempty"`
	Error       string        `json:"error,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// Journal is the durable processed-group record, one JSON file rewritten
// atomically per mutation. A corrupt journal degrades to empty with a
// warning, mirroring the acquisition tracker's recovery policy.
type Journal struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]JournalEntry
}

// OpenJournal loads (or initializes) the journal at path.
func OpenJournal(path string, logger *slog.Logger) (*Journal, error) {
	j := &Journal{
		path:    path,
		logger:  logging.WithComponent(logger, "volume-journal"),
		entries: make(map[string]JournalEntry),
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		j.logger.Warn("journal unreadable, starting empty", logging.String("path", path), logging.Error(err))
	default:
		if err := json.Unmarshal(raw, &j.entries); err != nil {
			j.logger.Warn("journal corrupt, starting empty", logging.String("path", path), logging.Error(err))
			j.entries = make(map[string]JournalEntry)
		}
	}
	return j, nil
}

// Has reports whether the group key already has a recorded outcome.
func (j *Journal) Has(key string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.entries[key]
	return ok
}

// Get returns the entry for key, if recorded.
func (j *Journal) Get(key string) (JournalEntry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[key]
	return entry, ok
}

// Record stores an outcome durably. The entry is kept in memory only if the
// rewrite lands; a failed write leaves the group unjournaled so it is
// dispatched again.
func (j *Journal) Record(key string, entry JournalEntry) error {
	entry.ProcessedAt = time.Now().UTC()
	j.mu.Lock()
	defer j.mu.Unlock()
	prev, existed := j.entries[key]
	j.entries[key] = entry
	if err := j.persist(); err != nil {
		if existed {
			j.entries[key] = prev
		} else {
			delete(j.entries, key)
		}
		return err
	}
	return nil
}

// Counts returns the number of processed and failed entries.
func (j *Journal) Counts() (processed, failed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, entry := range j.entries {
		switch entry.Status {
		case StatusProcessed:
			processed++
		case StatusFailed:
			failed++
		}
	}
	return processed, failed
}

func (j *Journal) persist() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("ensure journal directory: %w", err)
	}
	raw, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".journal.*")
	if err != nil {
		return fmt.Errorf("create journal temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close journal temp file: %w", err)
	}
	return os.Rename(tmpPath, j.path)
}
