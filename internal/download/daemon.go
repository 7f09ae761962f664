// Package download runs the polling acquisition daemon: it discovers remote
// scan files, downloads the ones the state tracker has not recorded, and
// durably marks each success before reporting it acquired.
package download

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"radarpipe/internal/config"
	"radarpipe/internal/logging"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/state"
	"radarpipe/internal/transfer"
)

// Phase is the daemon's position in its poll cycle.
type Phase string

const (
	PhaseStopped     Phase = "stopped"
	PhasePolling     Phase = "polling"
	PhaseDownloading Phase = "downloading"
)

// Stats is a snapshot of daemon counters.
type Stats struct {
	Running    bool   `json:"running"`
	Phase      Phase  `json:"phase"`
	Cycles     int64  `json:"cycles"`
	Downloaded int64  `json:"downloaded"`
	Failed     int64  `json:"failed"`
	Acquired   int    `json:"acquired"`
	LastError  string `json:"last_error,omitempty"`
}

// OnAcquired is invoked after a file is durably recorded. The processing
// daemon subscribes through it; the callback must not block for long.
type OnAcquired func(rec state.Record, name scanfile.Name)

// OnTerminated is invoked when the poll loop stops on an unexpected error
// rather than an operator request. Transfer errors retry and never fire it.
type OnTerminated func(err error)

// Daemon polls the remote source and downloads unrecorded files with bounded
// concurrency.
type Daemon struct {
	cfg     *config.Config
	tracker state.Tracker
	logger  *slog.Logger
	onFile  OnAcquired
	onTerm  OnTerminated

	mu      sync.Mutex
	pool    *transfer.Pool
	dial    transfer.Dialer
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	phase   Phase

	interval time.Duration

	cycles     int64
	downloaded int64
	failed     int64
	lastError  string
}

// Option configures optional daemon behavior.
type Option func(*Daemon)

// WithDialer overrides the transfer connection factory; tests inject fake
// clients through it.
func WithDialer(dial transfer.Dialer) Option {
	return func(d *Daemon) { d.dial = dial }
}

// WithOnAcquired registers the acquisition callback.
func WithOnAcquired(fn OnAcquired) Option {
	return func(d *Daemon) { d.onFile = fn }
}

// WithOnTerminated registers the unexpected-termination callback.
func WithOnTerminated(fn OnTerminated) Option {
	return func(d *Daemon) { d.onTerm = fn }
}

// New constructs a stopped download daemon.
func New(cfg *config.Config, tracker state.Tracker, logger *slog.Logger, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		tracker:  tracker,
		logger:   logging.WithComponent(logger, "download"),
		phase:    PhaseStopped,
		interval: time.Duration(cfg.Download.PollInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dial == nil {
		d.dial = func(ctx context.Context) (transfer.Client, error) {
			client := transfer.NewFTPClient(cfg.FTP, logger)
			if err := client.Connect(ctx); err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	d.pool = transfer.NewPoolWithDialer(d.dial, cfg.Download.MaxConcurrent, logger)
	return d
}

// Start launches the poll loop. It returns an error if already running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("download daemon already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.running = true
	d.cancel = cancel
	d.done = make(chan struct{})
	d.phase = PhasePolling

	go d.run(runCtx)
	return nil
}

// Stop requests shutdown and waits for the loop to exit. In-flight transfers
// finish; the stop flag is observed at cycle boundaries. Idempotent and safe
// to call before Start.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	cancel()
	<-done
}

func (d *Daemon) run(ctx context.Context) {
	defer func() {
		d.mu.Lock()
		d.running = false
		d.phase = PhaseStopped
		close(d.done)
		d.mu.Unlock()
		d.logger.Info("download daemon stopped")
	}()

	d.logger.Info("download daemon started",
		logging.String("host", d.cfg.FTP.Host),
		logging.String(logging.FieldRemotePath, d.cfg.FTP.BasePath),
		logging.Duration("poll_interval", d.pollInterval()))

	for {
		if _, err := d.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			var terr *transfer.TransferError
			if !errors.As(err, &terr) {
				// Unexpected failure: terminate cleanly rather than crash.
				d.logger.Error("download cycle failed, stopping daemon", logging.Error(err))
				if d.onTerm != nil {
					d.onTerm(err)
				}
				return
			}
			d.logger.Warn("remote listing failed, retrying next cycle", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.pollInterval()):
		}
	}
}

// RunCycle performs one poll cycle: list, filter, subtract acquired, download
// with bounded concurrency, mark successes. The discovered set is fixed
// before any download starts; files appearing mid-cycle wait for the next
// cycle. Returns the number of files downloaded and marked.
func (d *Daemon) RunCycle(ctx context.Context) (int, error) {
	d.setPhase(PhasePolling)
	d.mu.Lock()
	d.cycles++
	pool := d.pool
	d.mu.Unlock()

	entries, err := pool.List(ctx, d.cfg.FTP.BasePath)
	if err != nil {
		d.noteError(err)
		return 0, err
	}

	acquired, err := d.tracker.AcquiredSet(ctx)
	if err != nil {
		d.noteError(err)
		return 0, err
	}

	pending := make([]scanfile.Name, 0)
	for _, entry := range entries {
		name, err := scanfile.Parse(entry)
		if err != nil {
			continue // not a scan file (readme, directories, foreign names)
		}
		if d.cfg.Instrument != "" && name.Instrument != d.cfg.Instrument {
			continue
		}
		if _, ok := acquired[name.Filename]; ok {
			continue
		}
		pending = append(pending, name)
	}

	if len(pending) == 0 {
		d.logger.Debug("no new files", logging.Int("listed", len(entries)))
		return 0, nil
	}

	d.logger.Info("new files discovered",
		logging.Int("count", len(pending)),
		logging.Int("listed", len(entries)))
	d.setPhase(PhaseDownloading)
	defer d.setPhase(PhasePolling)

	var (
		group, groupCtx = errgroup.WithContext(context.WithoutCancel(ctx))
		countMu         sync.Mutex
		succeeded       int
	)
	// Dispatched downloads run to completion even when Stop is called
	// mid-cycle; the pool's semaphore caps how many are in flight.
	for _, name := range pending {
		name := name
		group.Go(func() error {
			if err := d.fetchOne(groupCtx, pool, name); err != nil {
				d.logger.Warn("download failed, will retry next cycle",
					logging.String(logging.FieldFilename, name.Filename),
					logging.Error(err))
				d.noteFailure(err)
				return nil // per-file isolation: siblings continue
			}
			countMu.Lock()
			succeeded++
			countMu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	d.logger.Info("cycle complete",
		logging.Int("downloaded", succeeded),
		logging.Int("failed", len(pending)-succeeded))
	return succeeded, nil
}

func (d *Daemon) fetchOne(ctx context.Context, pool *transfer.Pool, name scanfile.Name) error {
	remotePath := d.cfg.FTP.BasePath + "/" + name.Filename
	localPath := d.cfg.Paths.RawDir + "/" + name.Filename

	if err := pool.Download(ctx, remotePath, localPath); err != nil {
		return err
	}

	checksum, size, err := state.Checksum(localPath)
	if err != nil {
		return err
	}

	rec := state.Record{
		Filename:   name.Filename,
		RemotePath: remotePath,
		LocalPath:  localPath,
		Size:       size,
		Checksum:   checksum,
		Instrument: name.Instrument,
		Field:      name.Field,
		ObservedAt: name.Time,
	}
	// Durable record first: the file only counts as acquired once the
	// tracker write has committed.
	if err := d.tracker.MarkAcquired(ctx, rec); err != nil {
		return err
	}

	d.mu.Lock()
	d.downloaded++
	onFile := d.onFile
	d.mu.Unlock()

	if onFile != nil {
		onFile(rec, name)
	}
	return nil
}

// Stats returns a snapshot of counters plus the tracker's record count.
func (d *Daemon) Stats(ctx context.Context) Stats {
	count, err := d.tracker.Count(ctx)
	if err != nil {
		count = -1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Running:    d.running,
		Phase:      d.phase,
		Cycles:     d.cycles,
		Downloaded: d.downloaded,
		Failed:     d.failed,
		Acquired:   count,
		LastError:  d.lastError,
	}
}

// SetPollInterval adjusts the sleep between cycles at runtime.
func (d *Daemon) SetPollInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if interval > 0 {
		d.interval = interval
	}
}

// SetMaxConcurrent replaces the transfer pool with one sized to n. Transfers
// already in flight on the old pool run to completion.
func (d *Daemon) SetMaxConcurrent(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > 0 {
		d.pool = transfer.NewPoolWithDialer(d.dial, n, d.logger)
	}
}

func (d *Daemon) pollInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

func (d *Daemon) setPhase(phase Phase) {
	d.mu.Lock()
	d.phase = phase
	d.mu.Unlock()
}

func (d *Daemon) noteError(err error) {
	d.mu.Lock()
	d.lastError = err.Error()
	d.mu.Unlock()
}

func (d *Daemon) noteFailure(err error) {
	d.mu.Lock()
	d.failed++
	d.lastError = err.Error()
	d.mu.Unlock()
}
