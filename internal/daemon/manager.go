package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"radarpipe/internal/config"
	"radarpipe/internal/download"
	"radarpipe/internal/logging"
	"radarpipe/internal/notifications"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/state"
	"radarpipe/internal/volume"
)

// Manager owns the pipeline services and enforces single-instance execution.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracker  state.Tracker
	journal  *volume.Journal
	notifier notifications.Service

	download   *download.Daemon
	processing *volume.Daemon

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents manager runtime information.
type Status struct {
	Running    bool            `json:"running"`
	PID        int             `json:"pid"`
	LockPath   string          `json:"lock_path"`
	StatePath  string          `json:"state_path"`
	Backend    string          `json:"state_backend"`
	Download   *download.Stats `json:"download,omitempty"`
	Processing *volume.Stats   `json:"processing,omitempty"`
	Volumes    VolumeCounts    `json:"volumes"`
}

// VolumeCounts summarizes journaled group outcomes.
type VolumeCounts struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// New constructs a manager with initialized dependencies. Directories are
// created and the tracker opened; daemons stay stopped until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("manager requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	tracker, err := state.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open state tracker: %w", err)
	}

	journal, err := volume.OpenJournal(filepath.Join(cfg.Paths.BaseDir, "volumes.json"), logger)
	if err != nil {
		_ = tracker.Close()
		return nil, fmt.Errorf("open volume journal: %w", err)
	}

	notifier := notifications.NewService(cfg)

	m := &Manager{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "manager"),
		tracker:  tracker,
		journal:  journal,
		notifier: notifier,
		lockPath: filepath.Join(cfg.Paths.BaseDir, "radarpiped.lock"),
	}
	m.lock = flock.New(m.lockPath)

	if cfg.Processing.Enabled {
		opts := []volume.Option{}
		if cfg.Notifications.OnProcessed {
			opts = append(opts, volume.WithOnProcessed(func(key scanfile.VolumeKey, outputPath string) {
				m.notify(func(ctx context.Context) error {
					return notifier.NotifyVolumeProcessed(ctx, key.String(), outputPath)
				})
			}))
		}
		if cfg.Notifications.OnError {
			opts = append(opts, volume.WithOnError(func(key scanfile.VolumeKey, cause error) {
				m.notify(func(ctx context.Context) error {
					return notifier.NotifyVolumeFailed(ctx, key.String(), cause)
				})
			}))
		}
		m.processing, err = volume.NewDaemon(cfg, journal, volume.NewNativeDecoder(), logger, opts...)
		if err != nil {
			_ = tracker.Close()
			return nil, err
		}
	}

	if cfg.Download.Enabled {
		opts := []download.Option{}
		if m.processing != nil {
			opts = append(opts, download.WithOnAcquired(m.processing.Notify))
		}
		if cfg.Notifications.OnError {
			opts = append(opts, download.WithOnTerminated(func(cause error) {
				m.notify(func(ctx context.Context) error {
					return notifier.NotifyError(ctx, cause, "download daemon")
				})
			}))
		}
		m.download = download.New(cfg, tracker, logger, opts...)
	}

	return m, nil
}

// Start acquires the instance lock and launches the enabled daemons.
func (m *Manager) Start(ctx context.Context) error {
	if m.running.Load() {
		return errors.New("manager already running")
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another radarpiped instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.processing != nil {
		if err := m.processing.Recover(runCtx); err != nil {
			m.logger.Warn("recovery scan failed", logging.Error(err))
		}
		if err := m.processing.Start(runCtx); err != nil {
			m.releaseLock()
			cancel()
			return fmt.Errorf("start processing daemon: %w", err)
		}
	}
	if m.download != nil {
		if err := m.download.Start(runCtx); err != nil {
			if m.processing != nil {
				m.processing.Stop()
			}
			m.releaseLock()
			cancel()
			return fmt.Errorf("start download daemon: %w", err)
		}
	}

	m.running.Store(true)
	m.logger.Info("pipeline started",
		logging.Bool("download", m.download != nil),
		logging.Bool("processing", m.processing != nil),
		logging.String("lock", m.lockPath))
	return nil
}

// Stop halts the daemons and releases the instance lock. Download stops
// first so no new acquisitions arrive while processing drains. Idempotent.
func (m *Manager) Stop() {
	if !m.running.Load() {
		return
	}

	if m.download != nil {
		m.download.Stop()
	}
	if m.processing != nil {
		m.processing.Stop()
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.releaseLock()
	m.running.Store(false)
	m.logger.Info("pipeline stopped")
}

// Close stops the daemons and releases held resources.
func (m *Manager) Close() error {
	m.Stop()
	return m.tracker.Close()
}

// Status returns the current pipeline status.
func (m *Manager) Status(ctx context.Context) Status {
	status := Status{
		Running:   m.running.Load(),
		PID:       os.Getpid(),
		LockPath:  m.lockPath,
		StatePath: m.cfg.Paths.StatePath,
		Backend:   m.cfg.State.Backend,
	}
	if m.download != nil {
		stats := m.download.Stats(ctx)
		status.Download = &stats
	}
	if m.processing != nil {
		stats := m.processing.Stats()
		status.Processing = &stats
	}
	status.Volumes.Processed, status.Volumes.Failed = m.journal.Counts()
	return status
}

// Tracker exposes the shared acquisition tracker for IPC queries.
func (m *Manager) Tracker() state.Tracker { return m.tracker }

// TestNotification triggers a test notification with the current settings.
func (m *Manager) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(m.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := m.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Reconfigurable runtime settings. Everything else requires a restart.
const (
	settingDownloadPollInterval   = "download.poll_interval"
	settingDownloadMaxConcurrent  = "download.max_concurrent"
	settingProcessingPollInterval = "processing.poll_interval"
	settingQuiescentCycles        = "processing.quiescent_cycles"
)

// UpdateConfig applies known runtime settings and returns the keys applied.
// Unknown keys and unparseable values are rejected without applying anything.
func (m *Manager) UpdateConfig(settings map[string]string) ([]string, error) {
	type change func()
	changes := make(map[string]change, len(settings))

	for key, raw := range settings {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value <= 0 {
			return nil, fmt.Errorf("setting %s requires a positive integer, got %q", key, raw)
		}

		switch key {
		case settingDownloadPollInterval:
			if m.download == nil {
				return nil, fmt.Errorf("setting %s: download daemon not enabled", key)
			}
			changes[key] = func() { m.download.SetPollInterval(time.Duration(value) * time.Second) }
		case settingDownloadMaxConcurrent:
			if m.download == nil {
				return nil, fmt.Errorf("setting %s: download daemon not enabled", key)
			}
			changes[key] = func() { m.download.SetMaxConcurrent(value) }
		case settingProcessingPollInterval:
			if m.processing == nil {
				return nil, fmt.Errorf("setting %s: processing daemon not enabled", key)
			}
			changes[key] = func() { m.processing.SetPollInterval(time.Duration(value) * time.Second) }
		case settingQuiescentCycles:
			if m.processing == nil {
				return nil, fmt.Errorf("setting %s: processing daemon not enabled", key)
			}
			changes[key] = func() { m.processing.SetQuiescentCycles(value) }
		default:
			return nil, fmt.Errorf("unknown setting %q", key)
		}
	}

	applied := make([]string, 0, len(changes))
	for key, apply := range changes {
		apply()
		applied = append(applied, key)
		m.logger.Info("runtime setting applied",
			logging.String("setting", key),
			logging.String("value", settings[key]))
	}
	sort.Strings(applied)
	return applied, nil
}

func (m *Manager) notify(send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			m.logger.Warn("notification failed", logging.Error(err))
		}
	}()
}

func (m *Manager) releaseLock() {
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("failed to release instance lock", logging.Error(err))
	}
}
