package transfer

import (
	"context"
	"fmt"
)

// Probe is the tri-state result of a directory probe. The protocol offers no
// reliable metadata for file-vs-directory disambiguation; the only dependable
// test is attempting a change-directory and observing the outcome.
type Probe int

const (
	ProbeUnknown Probe = iota
	ProbeDir
	ProbeFile
)

func (p Probe) String() string {
	switch p {
	case ProbeDir:
		return "dir"
	case ProbeFile:
		return "file"
	default:
		return "unknown"
	}
}

// Client is the logical transfer contract. Both the blocking FTP client and
// the concurrent pool satisfy it.
type Client interface {
	// List returns the entry names of a remote directory in lexical order.
	List(ctx context.Context, dir string) ([]string, error)
	// Stat probes whether a remote path is a directory, a file, or
	// undeterminable.
	Stat(ctx context.Context, path string) (Probe, error)
	// Download retrieves a remote file into localPath. The write is atomic:
	// either localPath holds the complete file or it does not exist.
	Download(ctx context.Context, remotePath, localPath string) error
	// Exists reports whether the remote path exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// TransferError is a network or protocol failure, carrying the operation and
// remote path. It is never fatal to a daemon: callers skip the file and retry
// on the next poll cycle.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func transferErr(op, path string, err error) error {
	return &TransferError{Op: op, Path: path, Err: err}
}
