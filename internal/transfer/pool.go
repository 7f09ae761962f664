package transfer

import (
	"context"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"radarpipe/internal/config"
	"radarpipe/internal/logging"
)

// Dialer produces a connected client. The pool owns the returned client for
// the duration of one transfer.
type Dialer func(ctx context.Context) (Client, error)

// Pool is the cooperative transfer variant: it satisfies the same logical
// contract as FTPClient but caps concurrent in-flight transfers with a
// counting semaphore and never blocks the caller's control loop beyond slot
// acquisition. Each transfer runs on its own connection because the protocol
// allows one data channel per control session.
type Pool struct {
	dial   Dialer
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewPool builds a pool that dials FTP connections from cfg, allowing at most
// maxConcurrent in-flight transfers.
func NewPool(cfg config.FTP, maxConcurrent int, logger *slog.Logger) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	dial := func(ctx context.Context) (Client, error) {
		client := NewFTPClient(cfg, logger)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	return NewPoolWithDialer(dial, maxConcurrent, logger)
}

// NewPoolWithDialer builds a pool over an arbitrary dialer; tests inject fake
// clients through it.
func NewPoolWithDialer(dial Dialer, maxConcurrent int, logger *slog.Logger) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{
		dial:   dial,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		logger: logging.WithComponent(logger, "transfer-pool"),
	}
}

// Download acquires a transfer slot (blocking until one frees or ctx ends),
// dials a connection, and retrieves the file atomically. Exceeding the cap
// queues the transfer; it is never dropped.
func (p *Pool) Download(ctx context.Context, remotePath, localPath string) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	client, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client)

	return client.Download(ctx, remotePath, localPath)
}

// List lists a remote directory on a dedicated connection.
func (p *Pool) List(ctx context.Context, dir string) ([]string, error) {
	client, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer closeClient(client)
	return client.List(ctx, dir)
}

// Stat probes a remote path on a dedicated connection.
func (p *Pool) Stat(ctx context.Context, path string) (Probe, error) {
	client, err := p.dial(ctx)
	if err != nil {
		return ProbeUnknown, err
	}
	defer closeClient(client)
	return client.Stat(ctx, path)
}

// Exists checks a remote path on a dedicated connection.
func (p *Pool) Exists(ctx context.Context, path string) (bool, error) {
	client, err := p.dial(ctx)
	if err != nil {
		return false, err
	}
	defer closeClient(client)
	return client.Exists(ctx, path)
}

func closeClient(client Client) {
	if closer, ok := client.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

var _ Client = (*Pool)(nil)
