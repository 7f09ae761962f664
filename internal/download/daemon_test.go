package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"radarpipe/internal/download"
	"radarpipe/internal/logging"
	"radarpipe/internal/scanfile"
	"radarpipe/internal/state"
	"radarpipe/internal/testsupport"
	"radarpipe/internal/transfer"
)

func openTracker(t *testing.T, path string) state.Tracker {
	t.Helper()
	tracker, err := state.OpenJSON(path, logging.NewNop())
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	return tracker
}

func TestRunCycleDownloadsOnlyUnacquiredScanFiles(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	tracker := openTracker(t, cfg.Paths.StatePath)
	defer tracker.Close()

	remote := testsupport.NewFakeClient()
	remote.AddFile("/scans/RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr", []byte("dbzh"))
	remote.AddFile("/scans/RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr", []byte("vrad"))
	remote.AddFile("/scans/README.txt", []byte("not a scan"))

	// One file is already tracked and must not be fetched again.
	if err := tracker.MarkAcquired(ctx, state.Record{
		Filename: "RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr",
	}); err != nil {
		t.Fatalf("pre-mark: %v", err)
	}

	var (
		mu    sync.Mutex
		names []string
	)
	daemon := download.New(cfg, tracker, logging.NewNop(),
		download.WithDialer(remote.Dialer()),
		download.WithOnAcquired(func(rec state.Record, name scanfile.Name) {
			mu.Lock()
			names = append(names, name.Filename)
			mu.Unlock()
		}))

	downloaded, err := daemon.RunCycle(ctx)
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if downloaded != 1 {
		t.Fatalf("first cycle downloaded %d, want 1", downloaded)
	}
	if got := remote.Downloads(); got != 1 {
		t.Errorf("remote saw %d downloads, want 1", got)
	}
	if len(names) != 1 || names[0] != "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr" {
		t.Errorf("acquired callbacks = %v", names)
	}

	local := filepath.Join(cfg.Paths.RawDir, "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr")
	if _, err := os.Stat(local); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}

	info, err := tracker.Info(ctx, "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info == nil {
		t.Fatal("downloaded file not tracked")
	}
	if info.Checksum == "" || info.Size != int64(len("vrad")) {
		t.Errorf("tracked record = %+v", info)
	}

	// Second cycle: everything already acquired, nothing moves.
	downloaded, err = daemon.RunCycle(ctx)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if downloaded != 0 {
		t.Errorf("second cycle downloaded %d, want 0", downloaded)
	}
	if got := remote.Downloads(); got != 1 {
		t.Errorf("remote saw %d downloads after second cycle, want 1", got)
	}
}

func TestRunCycleIgnoresOtherInstruments(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	tracker := openTracker(t, cfg.Paths.StatePath)
	defer tracker.Close()

	remote := testsupport.NewFakeClient()
	remote.AddFile("/scans/RADAR02_VOLA_S1_DBZH_20240101T120000Z.bfr", []byte("foreign"))

	daemon := download.New(cfg, tracker, logging.NewNop(),
		download.WithDialer(remote.Dialer()))

	downloaded, err := daemon.RunCycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if downloaded != 0 {
		t.Errorf("downloaded %d files of a foreign instrument", downloaded)
	}
}

func TestRunCycleIsolatesPerFileFailures(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	tracker := openTracker(t, cfg.Paths.StatePath)
	defer tracker.Close()

	remote := testsupport.NewFakeClient()
	remote.AddFile("/scans/RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr", []byte("good"))
	remote.AddFile("/scans/RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr", []byte("bad"))
	remote.FailDownload("/scans/RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr", errors.New("data channel reset"))

	daemon := download.New(cfg, tracker, logging.NewNop(),
		download.WithDialer(remote.Dialer()))

	downloaded, err := daemon.RunCycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if downloaded != 1 {
		t.Fatalf("downloaded = %d, want the one healthy file", downloaded)
	}

	stats := daemon.Stats(ctx)
	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}
	if stats.LastError == "" {
		t.Error("last error not recorded")
	}

	// The failed file stays unacquired and is retried next cycle.
	acquired, err := tracker.IsAcquired(ctx, "RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr")
	if err != nil {
		t.Fatalf("is acquired: %v", err)
	}
	if acquired {
		t.Error("failed download recorded as acquired")
	}

	remote.FailDownload("/scans/RADAR01_VOLA_S1_VRAD_20240101T120000Z.bfr", nil)
	downloaded, err = daemon.RunCycle(ctx)
	if err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if downloaded != 1 {
		t.Errorf("retry cycle downloaded %d, want 1", downloaded)
	}
}

func TestRunCycleReturnsTransferErrorOnListingFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	tracker := openTracker(t, cfg.Paths.StatePath)
	defer tracker.Close()

	remote := testsupport.NewFakeClient()
	remote.FailList(errors.New("control channel closed"))

	daemon := download.New(cfg, tracker, logging.NewNop(),
		download.WithDialer(remote.Dialer()))

	if _, err := daemon.RunCycle(ctx); err == nil {
		t.Fatal("expected listing error")
	}
}

func TestStartAndStop(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	tracker := openTracker(t, cfg.Paths.StatePath)
	defer tracker.Close()

	remote := testsupport.NewFakeClient()
	remote.AddFile("/scans/RADAR01_VOLA_S1_DBZH_20240101T120000Z.bfr", []byte("dbzh"))

	daemon := download.New(cfg, tracker, logging.NewNop(),
		download.WithDialer(remote.Dialer()))

	if err := daemon.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := daemon.Start(ctx); err == nil {
		t.Error("second start accepted")
	}
	daemon.Stop()
	daemon.Stop() // idempotent

	stats := daemon.Stats(ctx)
	if stats.Running {
		t.Error("daemon reports running after stop")
	}
}

// brokenListClient fails listings with a plain error, the kind a transfer
// retry cannot help.
type brokenListClient struct{ transfer.Client }

func (brokenListClient) List(context.Context, string) ([]string, error) {
	return nil, errors.New("unexpected protocol state")
}

func TestUnexpectedListingErrorStopsDaemon(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	tracker := openTracker(t, cfg.Paths.StatePath)
	defer tracker.Close()

	terminated := make(chan error, 1)
	daemon := download.New(cfg, tracker, logging.NewNop(),
		download.WithDialer(func(ctx context.Context) (transfer.Client, error) {
			return brokenListClient{}, nil
		}),
		download.WithOnTerminated(func(err error) { terminated <- err }))

	if err := daemon.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case err := <-terminated:
		if err == nil {
			t.Fatal("termination callback fired without an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon kept running on an unexpected listing error")
	}

	deadline := time.Now().Add(2 * time.Second)
	for daemon.Stats(ctx).Running {
		if time.Now().After(deadline) {
			t.Fatal("daemon still reports running after termination")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
