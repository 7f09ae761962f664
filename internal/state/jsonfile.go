package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"radarpipe/internal/logging"
)

// JSONTracker persists acquisition records in one structured JSON file,
// rewritten atomically after every mutation. Suited to modest file counts;
// the SQLite backend scales further and adds indexed range queries.
type JSONTracker struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]Record
}

// OpenJSON loads (or initializes) the flat-file tracker at path. A corrupted
// or unreadable file degrades to an empty store with a warning.
func OpenJSON(path string, logger *slog.Logger) (*JSONTracker, error) {
	t := &JSONTracker{
		path:    path,
		logger:  logging.WithComponent(logger, "state"),
		records: make(map[string]Record),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		t.logger.Debug("no state file, starting empty", logging.String("path", path))
	case err != nil:
		t.logger.Warn("state file unreadable, starting empty",
			logging.String("path", path), logging.Error(fmt.Errorf("%w: %v", ErrCorrupt, err)))
	default:
		if err := json.Unmarshal(raw, &t.records); err != nil {
			t.logger.Warn("state file corrupt, starting empty",
				logging.String("path", path), logging.Error(fmt.Errorf("%w: %v", ErrCorrupt, err)))
			t.records = make(map[string]Record)
		}
	}
	return t, nil
}

// persist rewrites the store through a temp file and rename so a crash never
// leaves a truncated state file. Caller holds the mutex.
func (t *JSONTracker) persist() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}
	raw, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".state.*")
	if err != nil {
		return fmt.Errorf("create state temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state temp file: %w", err)
	}
	return os.Rename(tmpPath, t.path)
}

func (t *JSONTracker) IsAcquired(_ context.Context, filename string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[filename]
	return ok, nil
}

func (t *JSONTracker) MarkAcquired(_ context.Context, rec Record) error {
	if rec.Filename == "" {
		return errors.New("mark acquired: empty filename")
	}
	rec.AcquiredAt = time.Now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()
	prev, existed := t.records[rec.Filename]
	t.records[rec.Filename] = rec
	if err := t.persist(); err != nil {
		// The mark is only durable once the rewrite lands; keep memory in
		// step with disk so the file is retried next cycle.
		if existed {
			t.records[rec.Filename] = prev
		} else {
			delete(t.records, rec.Filename)
		}
		return err
	}
	return nil
}

func (t *JSONTracker) AcquiredSet(_ context.Context) (map[string]struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[string]struct{}, len(t.records))
	for name := range t.records {
		set[name] = struct{}{}
	}
	return set, nil
}

func (t *JSONTracker) Info(_ context.Context, filename string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[filename]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *JSONTracker) Remove(_ context.Context, filename string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.records[filename]
	if !ok {
		return nil
	}
	delete(t.records, filename)
	if err := t.persist(); err != nil {
		t.records[filename] = prev
		return err
	}
	return nil
}

func (t *JSONTracker) ByDateRange(_ context.Context, start, end time.Time, instrument string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type entry struct {
		name string
		at   time.Time
	}
	matches := make([]entry, 0)
	for name, rec := range t.records {
		if instrument != "" && rec.Instrument != instrument {
			continue
		}
		if inRange(rec.ObservedAt, start, end) {
			matches = append(matches, entry{name: name, at: rec.ObservedAt})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].at.Equal(matches[j].at) {
			return matches[i].name < matches[j].name
		}
		return matches[i].at.Before(matches[j].at)
	})
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return names, nil
}

func (t *JSONTracker) Latest(_ context.Context, instrument string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var latest *Record
	for name := range t.records {
		rec := t.records[name]
		if instrument != "" && rec.Instrument != instrument {
			continue
		}
		if latest == nil || rec.ObservedAt.After(latest.ObservedAt) {
			copied := rec
			latest = &copied
		}
	}
	return latest, nil
}

func (t *JSONTracker) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.records
	t.records = make(map[string]Record)
	if err := t.persist(); err != nil {
		t.records = prev
		return err
	}
	return nil
}

func (t *JSONTracker) Count(_ context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records), nil
}

func (t *JSONTracker) Close() error { return nil }

var _ Tracker = (*JSONTracker)(nil)
