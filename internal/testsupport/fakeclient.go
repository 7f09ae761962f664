package testsupport

import (
	"context"
	"errors"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"radarpipe/internal/transfer"
)

// FakeClient is an in-memory transfer.Client. Remote files live in a map
// keyed by full remote path; failures can be injected per path.
type FakeClient struct {
	mu        sync.Mutex
	files     map[string][]byte
	failPaths map[string]error
	downloads int
	listErr   error
}

// NewFakeClient returns an empty in-memory remote.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		files:     make(map[string][]byte),
		failPaths: make(map[string]error),
	}
}

// AddFile places a file on the fake remote.
func (f *FakeClient) AddFile(remotePath string, contents []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[remotePath] = contents
}

// FailDownload makes downloads of remotePath return err.
func (f *FakeClient) FailDownload(remotePath string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPaths[remotePath] = err
}

// FailList makes directory listings return err.
func (f *FakeClient) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// Downloads reports how many downloads completed successfully.
func (f *FakeClient) Downloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

// Dialer returns a transfer.Dialer handing out this client.
func (f *FakeClient) Dialer() transfer.Dialer {
	return func(ctx context.Context) (transfer.Client, error) {
		return f, nil
	}
}

func (f *FakeClient) List(ctx context.Context, dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, &transfer.TransferError{Op: "list", Path: dir, Err: f.listErr}
	}

	prefix := strings.TrimSuffix(dir, "/") + "/"
	var names []string
	for remotePath := range f.files {
		if strings.HasPrefix(remotePath, prefix) {
			names = append(names, path.Base(remotePath))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeClient) Stat(ctx context.Context, p string) (transfer.Probe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[p]; ok {
		return transfer.ProbeFile, nil
	}
	prefix := strings.TrimSuffix(p, "/") + "/"
	for remotePath := range f.files {
		if strings.HasPrefix(remotePath, prefix) {
			return transfer.ProbeDir, nil
		}
	}
	return transfer.ProbeUnknown, nil
}

func (f *FakeClient) Download(ctx context.Context, remotePath, localPath string) error {
	f.mu.Lock()
	contents, ok := f.files[remotePath]
	failErr := f.failPaths[remotePath]
	f.mu.Unlock()

	if failErr != nil {
		return &transfer.TransferError{Op: "download", Path: remotePath, Err: failErr}
	}
	if !ok {
		return &transfer.TransferError{Op: "download", Path: remotePath, Err: errors.New("no such file")}
	}
	if err := os.WriteFile(localPath, contents, 0o644); err != nil {
		return err
	}

	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	return nil
}

func (f *FakeClient) Exists(ctx context.Context, p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[p]
	return ok, nil
}

var _ transfer.Client = (*FakeClient)(nil)
