package volume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"radarpipe/internal/align"
	"radarpipe/internal/config"
	"radarpipe/internal/logging"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/state"
)

// OnProcessed is invoked after a group's outcome has been journaled as
// processed.
type OnProcessed func(key scanfile.VolumeKey, outputPath string)

// OnError is invoked after a group's outcome has been journaled as failed.
type OnError func(key scanfile.VolumeKey, err error)

// Stats is a snapshot of processing daemon counters.
type Stats struct {
	Running   bool   `json:"running"`
	Cycles    int64  `json:"cycles"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Pending   int    `json:"pending_groups"`
	LastError string `json:"last_error,omitempty"`
}

// Daemon groups acquired files and dispatches complete groups through the
// alignment pipeline with bounded concurrency. Group failures are isolated;
// one bad volume never stops its siblings or the loop.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	grouper  *Grouper
	journal  *Journal
	decoder  Decoder
	consumer Consumer

	onProcessed OnProcessed
	onError     OnError

	mu            sync.Mutex
	complete      Completeness
	fieldSetBound bool
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
	interval      time.Duration
	maxConcurrent int

	cycles    int64
	processed int64
	failed    int64
	lastError string
}

// Option configures optional daemon behavior.
type Option func(*Daemon)

// WithCompleteness overrides the configured completeness policy.
func WithCompleteness(c Completeness) Option {
	return func(d *Daemon) {
		d.complete = c
		d.fieldSetBound = true
	}
}

// WithConsumer overrides the default summary-writing consumer.
func WithConsumer(c Consumer) Option {
	return func(d *Daemon) { d.consumer = c }
}

// WithOnProcessed registers the success callback.
func WithOnProcessed(fn OnProcessed) Option {
	return func(d *Daemon) { d.onProcessed = fn }
}

// WithOnError registers the failure callback.
func WithOnError(fn OnError) Option {
	return func(d *Daemon) { d.onError = fn }
}

// NewDaemon constructs a stopped processing daemon. The completeness policy
// follows the configuration: a volume-type table when one is configured,
// quiescence otherwise.
func NewDaemon(cfg *config.Config, journal *Journal, decoder Decoder, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if decoder == nil {
		return nil, errors.New("processing daemon requires a decoder")
	}
	d := &Daemon{
		cfg:           cfg,
		logger:        logging.WithComponent(logger, "processing"),
		grouper:       NewGrouper(),
		journal:       journal,
		decoder:       decoder,
		consumer:      &SummaryWriter{Dir: cfg.Paths.ProcessedDir},
		interval:      time.Duration(cfg.Processing.PollInterval) * time.Second,
		maxConcurrent: cfg.Processing.MaxConcurrent,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.complete == nil {
		if cfg.Processing.VolumeTypes != "" {
			types, err := config.LoadVolumeTypes(cfg.Processing.VolumeTypes)
			if err != nil {
				return nil, fmt.Errorf("load volume types: %w", err)
			}
			d.complete = FieldSetComplete(types)
			d.fieldSetBound = true
		} else {
			d.complete = QuiescentComplete(cfg.Processing.QuiescentCycles)
		}
	}
	return d, nil
}

// Notify feeds one acquired file into the grouper. Safe to call concurrently
// from the download daemon's callback; never blocks on processing.
func (d *Daemon) Notify(rec state.Record, name scanfile.Name) {
	if d.journal.Has(name.Key().String()) {
		return
	}
	d.grouper.Add(Member{Name: name, LocalPath: rec.LocalPath})
}

// Recover walks the raw directory and re-admits files whose groups have no
// journaled outcome yet. Called once at startup so acquisitions made before a
// restart are not stranded.
func (d *Daemon) Recover(ctx context.Context) error {
	entries, err := os.ReadDir(d.cfg.Paths.RawDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("scan raw directory: %w", err)
	}

	admitted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, err := scanfile.Parse(entry.Name())
		if err != nil {
			continue
		}
		if d.journal.Has(name.Key().String()) {
			continue
		}
		d.grouper.Add(Member{
			Name:      name,
			LocalPath: filepath.Join(d.cfg.Paths.RawDir, entry.Name()),
		})
		admitted++
	}
	if admitted > 0 {
		d.logger.Info("recovered unprocessed files",
			logging.Int("files", admitted),
			logging.Int("groups", d.grouper.Len()))
	}
	return nil
}

// Start launches the poll loop. It returns an error if already running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("processing daemon already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.running = true
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(runCtx)
	return nil
}

// Stop requests shutdown and waits for the loop to exit. Groups already
// dispatched finish and journal their outcome. Idempotent.
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
		close(d.done)
		d.mu.Unlock()
		d.logger.Info("processing daemon stopped")
	}()

	d.logger.Info("processing daemon started",
		logging.Duration("poll_interval", d.pollInterval()))

	for {
		d.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.pollInterval()):
		}
	}
}

// RunCycle advances the quiescence counters and dispatches every complete,
// unjournaled group. Returns the number of groups that processed
// successfully this cycle.
func (d *Daemon) RunCycle(ctx context.Context) int {
	d.mu.Lock()
	d.cycles++
	complete := d.complete
	limit := d.maxConcurrent
	d.mu.Unlock()

	var ready []*Group
	for _, g := range d.grouper.Tick() {
		if d.journal.Has(g.Key.String()) {
			d.grouper.Remove(g.Key)
			continue
		}
		if complete(g) {
			ready = append(ready, g)
		}
	}
	if len(ready) == 0 {
		return 0
	}

	d.logger.Info("dispatching complete groups", logging.Int("count", len(ready)))

	// Dispatched groups finish even when Stop arrives mid-cycle.
	group, groupCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	if limit > 0 {
		group.SetLimit(limit)
	}
	var (
		countMu   sync.Mutex
		succeeded int
	)
	for _, g := range ready {
		g := g
		group.Go(func() error {
			if err := d.processGroup(groupCtx, g); err != nil {
				d.noteGroupFailure(g.Key, err)
				return nil // group isolation: siblings continue
			}
			countMu.Lock()
			succeeded++
			countMu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return succeeded
}

func (d *Daemon) processGroup(ctx context.Context, g *Group) error {
	logger := d.logger.With(logging.String(logging.FieldVolume, g.Key.String()))

	fields := make([]*align.FieldRecord, 0, len(g.Members))
	for _, m := range g.Members {
		rec, err := d.decoder.Decode(ctx, m.LocalPath)
		if err != nil {
			// A bad member degrades the volume, it does not doom it.
			logger.Warn("member decode failed, excluding from volume",
				logging.String(logging.FieldFilename, m.Name.Filename),
				logging.Error(err))
			continue
		}
		fields = append(fields, rec)
	}
	if len(fields) == 0 {
		return errors.New("no member decoded successfully")
	}

	vol, err := align.Align(fields)
	if err != nil {
		return err
	}

	outputPath, err := d.consumer.Consume(ctx, g.Key, vol)
	if err != nil {
		return fmt.Errorf("consume volume: %w", err)
	}

	entry := JournalEntry{
		Status:     StatusProcessed,
		RunID:      uuid.NewString(),
		OutputPath: outputPath,
	}
	if err := d.journal.Record(g.Key.String(), entry); err != nil {
		return fmt.Errorf("journal outcome: %w", err)
	}
	d.grouper.Remove(g.Key)

	d.mu.Lock()
	d.processed++
	onProcessed := d.onProcessed
	d.mu.Unlock()

	logger.Info("volume processed",
		logging.Int("fields", len(vol.Fields)),
		logging.Int("ngates", vol.NGates),
		logging.String("output", outputPath))
	if onProcessed != nil {
		onProcessed(g.Key, outputPath)
	}
	return nil
}

func (d *Daemon) noteGroupFailure(key scanfile.VolumeKey, cause error) {
	d.logger.Error("group processing failed",
		logging.String(logging.FieldVolume, key.String()),
		logging.Error(cause))

	entry := JournalEntry{
		Status: StatusFailed,
		RunID:  uuid.NewString(),
		Error:  cause.Error(),
	}
	if err := d.journal.Record(key.String(), entry); err != nil {
		d.logger.Error("journal write failed", logging.Error(err))
	}
	d.grouper.Remove(key)

	d.mu.Lock()
	d.failed++
	d.lastError = cause.Error()
	onError := d.onError
	d.mu.Unlock()

	if onError != nil {
		onError(key, cause)
	}
}

// Stats returns a snapshot of counters.
func (d *Daemon) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Running:   d.running,
		Cycles:    d.cycles,
		Processed: d.processed,
		Failed:    d.failed,
		Pending:   d.grouper.Len(),
		LastError: d.lastError,
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

// SetQuiescentCycles retunes the quiescence policy at runtime. Ignored when
// a volume-type table or explicit policy governs completeness.
func (d *Daemon) SetQuiescentCycles(cycles int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fieldSetBound || cycles < 1 {
		return
	}
	d.complete = QuiescentComplete(cycles)
}

func (d *Daemon) pollInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}
