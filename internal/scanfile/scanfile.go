// Package scanfile parses the fixed filename grammar used by the remote
// instrument: INSTRUMENT_SCAN_SWEEP_FIELD_TIMESTAMPZ.ext with the timestamp
// in UTC as YYYYMMDDTHHMMSSZ. The parsed name is the acquisition identity for
// the whole pipeline: the download daemon filters listings through it and the
// processing daemon derives volume grouping keys from it.
package scanfile

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// TimeLayout is the timestamp segment format, always UTC.
const TimeLayout = "20060102T150405Z"

// Name is the parsed identity of one scan file. Immutable once parsed.
type Name struct {
	Filename   string
	Instrument string
	Scan       string
	Sweep      string
	Field      string
	Time       time.Time
	Ext        string
}

// VolumeKey identifies the logical acquisition volume a file belongs to:
// every field recorded by one instrument for one scan at one instant.
type VolumeKey struct {
	Instrument string
	Scan       string
	Time       time.Time
}

// String renders the key in filename-like form, usable as a stable map key
// and as the volume identifier in state stores and log lines.
func (k VolumeKey) String() string {
	return fmt.Sprintf("%s_%s_%s", k.Instrument, k.Scan, k.Time.UTC().Format(TimeLayout))
}

// Parse splits a filename (a bare name or a remote path; any directory prefix
// is ignored) against the instrument grammar. Files that do not match return
// an error and are skipped by the daemons rather than downloaded.
func Parse(filename string) (Name, error) {
	base := path.Base(strings.TrimSpace(filename))
	if base == "" || base == "." {
		return Name{}, fmt.Errorf("parse scan filename: empty name")
	}

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	parts := strings.Split(stem, "_")
	if len(parts) != 5 {
		return Name{}, fmt.Errorf("parse scan filename %q: expected 5 segments, got %d", base, len(parts))
	}
	for i, part := range parts {
		if part == "" {
			return Name{}, fmt.Errorf("parse scan filename %q: empty segment %d", base, i)
		}
	}

	ts, err := time.Parse(TimeLayout, parts[4])
	if err != nil {
		return Name{}, fmt.Errorf("parse scan filename %q: bad timestamp: %w", base, err)
	}

	return Name{
		Filename:   base,
		Instrument: parts[0],
		Scan:       parts[1],
		Sweep:      parts[2],
		Field:      parts[3],
		Time:       ts.UTC(),
		Ext:        strings.TrimPrefix(ext, "."),
	}, nil
}

// Key returns the volume grouping key for the file.
func (n Name) Key() VolumeKey {
	return VolumeKey{Instrument: n.Instrument, Scan: n.Scan, Time: n.Time}
}

// Recognized reports whether the filename matches the grammar.
func Recognized(filename string) bool {
	_, err := Parse(filename)
	return err == nil
}
