package state

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"radarpipe/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// observedLayout stores observation times with second precision, matching the
// filename grammar, so lexical SQL comparisons order correctly.
const observedLayout = "2006-01-02T15:04:05Z"

// SQLiteTracker is the transactional tracker backend.
type SQLiteTracker struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the tracker database at path. An unreadable
// database file is moved aside and recreated empty, logged as a warning.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteTracker, error) {
	logger = logging.WithComponent(logger, "state")

	db, err := openDatabase(path)
	if err != nil {
		// Corrupt store: move it aside and start empty rather than fail.
		aside := path + ".corrupt"
		logger.Warn("state database unreadable, resetting to empty store",
			logging.String("path", path),
			logging.String("moved_to", aside),
			logging.Error(fmt.Errorf("%w: %v", ErrCorrupt, err)))
		if renameErr := os.Rename(path, aside); renameErr != nil {
			return nil, fmt.Errorf("move corrupt state database: %w", renameErr)
		}
		db, err = openDatabase(path)
		if err != nil {
			return nil, err
		}
	}

	return &SQLiteTracker{db: db, path: path, logger: logger}, nil
}

func openDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Single writer connection: concurrent MarkAcquired calls from in-flight
	// downloads serialize here instead of racing on the file.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := initSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (t *SQLiteTracker) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

func (t *SQLiteTracker) IsAcquired(ctx context.Context, filename string) (bool, error) {
	var one int
	err := t.db.QueryRowContext(ctx, "SELECT 1 FROM acquisitions WHERE filename = ?", filename).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query acquisition: %w", err)
	}
	return true, nil
}

func (t *SQLiteTracker) MarkAcquired(ctx context.Context, rec Record) error {
	if rec.Filename == "" {
		return errors.New("mark acquired: empty filename")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var observed any
	if !rec.ObservedAt.IsZero() {
		observed = rec.ObservedAt.UTC().Format(observedLayout)
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO acquisitions
			(filename, remote_path, local_path, size, checksum, instrument, field, observed_at, acquired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			remote_path = excluded.remote_path,
			local_path  = excluded.local_path,
			size        = excluded.size,
			checksum    = excluded.checksum,
			instrument  = excluded.instrument,
			field       = excluded.field,
			observed_at = excluded.observed_at,
			acquired_at = excluded.acquired_at`,
		rec.Filename, rec.RemotePath, nullableString(rec.LocalPath), nullableInt(rec.Size),
		nullableString(rec.Checksum), nullableString(rec.Instrument), nullableString(rec.Field),
		observed, now,
	)
	if err != nil {
		return fmt.Errorf("mark acquired: %w", err)
	}
	return nil
}

func (t *SQLiteTracker) AcquiredSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT filename FROM acquisitions")
	if err != nil {
		return nil, fmt.Errorf("query acquired set: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		set[name] = struct{}{}
	}
	return set, rows.Err()
}

const recordColumns = "filename, remote_path, local_path, size, checksum, instrument, field, observed_at, acquired_at"

func (t *SQLiteTracker) Info(ctx context.Context, filename string) (*Record, error) {
	row := t.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM acquisitions WHERE filename = ?", filename)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get acquisition: %w", err)
	}
	return rec, nil
}

func (t *SQLiteTracker) Remove(ctx context.Context, filename string) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM acquisitions WHERE filename = ?", filename); err != nil {
		return fmt.Errorf("remove acquisition: %w", err)
	}
	return nil
}

func (t *SQLiteTracker) ByDateRange(ctx context.Context, start, end time.Time, instrument string) ([]string, error) {
	query := `SELECT filename FROM acquisitions
		WHERE observed_at IS NOT NULL AND observed_at >= ? AND observed_at <= ?`
	args := []any{start.UTC().Format(observedLayout), end.UTC().Format(observedLayout)}
	if instrument != "" {
		query += " AND instrument = ?"
		args = append(args, instrument)
	}
	query += " ORDER BY observed_at, filename"

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query date range: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (t *SQLiteTracker) Latest(ctx context.Context, instrument string) (*Record, error) {
	query := "SELECT " + recordColumns + " FROM acquisitions WHERE observed_at IS NOT NULL"
	args := []any{}
	if instrument != "" {
		query += " AND instrument = ?"
		args = append(args, instrument)
	}
	query += " ORDER BY observed_at DESC LIMIT 1"

	row := t.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest acquisition: %w", err)
	}
	return rec, nil
}

func (t *SQLiteTracker) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM acquisitions"); err != nil {
		return fmt.Errorf("clear acquisitions: %w", err)
	}
	return nil
}

func (t *SQLiteTracker) Count(ctx context.Context) (int, error) {
	var count int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM acquisitions").Scan(&count); err != nil {
		return 0, fmt.Errorf("count acquisitions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var localPath, checksum, instrument, field, observed sql.NullString
	var size sql.NullInt64
	var acquired string

	err := row.Scan(&rec.Filename, &rec.RemotePath, &localPath, &size, &checksum,
		&instrument, &field, &observed, &acquired)
	if err != nil {
		return nil, err
	}

	rec.LocalPath = localPath.String
	rec.Checksum = checksum.String
	rec.Instrument = instrument.String
	rec.Field = field.String
	rec.Size = size.Int64
	if observed.Valid {
		if ts, err := time.Parse(observedLayout, observed.String); err == nil {
			rec.ObservedAt = ts
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, acquired); err == nil {
		rec.AcquiredAt = ts
	}
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

var _ Tracker = (*SQLiteTracker)(nil)
