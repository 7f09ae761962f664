package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"

	"radarpipe/internal/config"
	"radarpipe/internal/logging"
)

const dialTimeout = 30 * time.Second

// FTPClient is the blocking transfer client. It holds one control connection
// and is safe for a single caller at a time; concurrent transfers go through
// a Pool, which dials one connection per in-flight download.
type FTPClient struct {
	cfg    config.FTP
	logger *slog.Logger
	conn   *ftp.ServerConn
}

// NewFTPClient builds a disconnected client. Connect must be called before
// use; Close releases the control connection.
func NewFTPClient(cfg config.FTP, logger *slog.Logger) *FTPClient {
	return &FTPClient{cfg: cfg, logger: logging.WithComponent(logger, "transfer")}
}

// Connect dials and authenticates the control connection.
func (c *FTPClient) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return transferErr("connect", addr, err)
	}
	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		_ = conn.Quit()
		return transferErr("login", addr, err)
	}
	c.conn = conn
	c.logger.Debug("connected", logging.String("host", c.cfg.Host))
	return nil
}

// Close quits the control connection. Safe to call when not connected.
func (c *FTPClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Quit()
	c.conn = nil
	return err
}

func (c *FTPClient) ensure(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	return c.Connect(ctx)
}

// List returns the entry names of dir, sorted lexically.
func (c *FTPClient) List(ctx context.Context, dir string) ([]string, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	names, err := c.conn.NameList(dir)
	if err != nil {
		c.drop()
		return nil, transferErr("list", dir, err)
	}
	entries := make([]string, 0, len(names))
	for _, name := range names {
		base := filepath.Base(name)
		if base == "." || base == ".." {
			continue
		}
		entries = append(entries, base)
	}
	sort.Strings(entries)
	return entries, nil
}

// Stat probes path with a change-directory attempt. A permanent-failure reply
// means the path is not a directory, which the protocol makes the only
// trustworthy file signal; anything else is unknown and surfaced as an error.
func (c *FTPClient) Stat(ctx context.Context, path string) (Probe, error) {
	if err := c.ensure(ctx); err != nil {
		return ProbeUnknown, err
	}
	cwd, err := c.conn.CurrentDir()
	if err != nil {
		c.drop()
		return ProbeUnknown, transferErr("stat", path, err)
	}
	if err := c.conn.ChangeDir(path); err != nil {
		if isPermanentReply(err) {
			return ProbeFile, nil
		}
		c.drop()
		return ProbeUnknown, transferErr("stat", path, err)
	}
	if err := c.conn.ChangeDir(cwd); err != nil {
		c.drop()
		return ProbeUnknown, transferErr("stat", path, err)
	}
	return ProbeDir, nil
}

// Exists reports whether path exists on the server.
func (c *FTPClient) Exists(ctx context.Context, path string) (bool, error) {
	if err := c.ensure(ctx); err != nil {
		return false, err
	}
	if _, err := c.conn.FileSize(path); err != nil {
		if isPermanentReply(err) {
			return false, nil
		}
		c.drop()
		return false, transferErr("exists", path, err)
	}
	return true, nil
}

// Download retrieves remotePath into localPath via a same-directory temporary
// file and an atomic rename.
func (c *FTPClient) Download(ctx context.Context, remotePath, localPath string) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("ensure download directory: %w", err)
	}

	resp, err := c.conn.Retr(remotePath)
	if err != nil {
		c.drop()
		return transferErr("retrieve", remotePath, err)
	}
	defer resp.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp); err != nil {
		_ = tmp.Close()
		c.drop()
		return transferErr("retrieve", remotePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}

	c.logger.Debug("downloaded",
		logging.String(logging.FieldRemotePath, remotePath),
		logging.String("local_path", localPath))
	return nil
}

// drop discards a control connection after a protocol error so the next
// operation redials instead of reusing a possibly desynchronized session.
func (c *FTPClient) drop() {
	if c.conn != nil {
		_ = c.conn.Quit()
		c.conn = nil
	}
}

func isPermanentReply(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code >= 500 && proto.Code < 600
	}
	return false
}

var _ Client = (*FTPClient)(nil)
