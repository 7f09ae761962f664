package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"radarpipe/internal/config"
)

// ErrCorrupt tags a persisted store that could not be read. Trackers recover
// from it by resetting to an empty store; it is logged, never fatal.
var ErrCorrupt = errors.New("state store corrupt")

// Record is one durable acquisition entry, keyed uniquely by filename.
type Record struct {
	Filename   string    `json:"filename"`
	RemotePath string    `json:"remote_path"`
	LocalPath  string    `json:"local_path,omitempty"`
	Size       int64     `json:"size,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	Instrument string    `json:"instrument,omitempty"`
	Field      string    `json:"field,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Tracker is the durable acquisition state contract, implemented identically
// by the JSON and SQLite backends.
type Tracker interface {
	// IsAcquired reports whether filename has a durable record.
	IsAcquired(ctx context.Context, filename string) (bool, error)
	// MarkAcquired durably records an acquisition. Idempotent: re-marking
	// the same filename updates the stored record without creating a
	// duplicate. AcquiredAt is stamped by the tracker.
	MarkAcquired(ctx context.Context, rec Record) error
	// AcquiredSet returns the set of all recorded filenames.
	AcquiredSet(ctx context.Context) (map[string]struct{}, error)
	// Info returns the record for filename, or nil when absent.
	Info(ctx context.Context, filename string) (*Record, error)
	// Remove retracts a record, e.g. after a verified-bad download.
	Remove(ctx context.Context, filename string) error
	// ByDateRange returns filenames whose observation time t satisfies
	// start <= t <= end, optionally filtered by instrument, ordered by
	// observation time.
	ByDateRange(ctx context.Context, start, end time.Time, instrument string) ([]string, error)
	// Latest returns the record with the newest observation time,
	// optionally filtered by instrument; nil when the store is empty.
	Latest(ctx context.Context, instrument string) (*Record, error)
	// Clear removes every record.
	Clear(ctx context.Context) error
	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Open constructs the tracker selected by configuration.
func Open(cfg *config.Config, logger *slog.Logger) (Tracker, error) {
	switch cfg.State.Backend {
	case "json":
		return OpenJSON(cfg.Paths.StatePath, logger)
	case "sqlite":
		return OpenSQLite(cfg.Paths.StatePath, logger)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// Checksum computes the SHA-256 fingerprint of a file's full content along
// with its size. Two independently downloaded copies of the same remote file
// produce identical fingerprints regardless of backend.
func Checksum(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

func inRange(t, start, end time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(start) && !t.After(end)
}
