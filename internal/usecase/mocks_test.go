package usecase

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
	"github.com/eliteGoblin/focusd/appsweep/internal/infra"
)

// mockProcessInspector returns a fixed snapshot
type mockProcessInspector struct {
	snap  *domain.ProcessSnapshot
	err   error
	calls int
}

func (m *mockProcessInspector) Snapshot(ctx context.Context) (*domain.ProcessSnapshot, error) {
	m.calls++
	if m.err != nil {
		return domain.NewIncompleteSnapshot(), m.err
	}
	if m.snap == nil {
		return domain.NewProcessSnapshot(nil), nil
	}
	return m.snap, nil
}

// mockBundleReader serves manifests from a map keyed by bundle path
type mockBundleReader struct {
	infos map[string]*domain.BundleInfo
	errs  map[string]error
}

func (m *mockBundleReader) Read(bundlePath string) (*domain.BundleInfo, error) {
	if err, ok := m.errs[bundlePath]; ok {
		return nil, err
	}
	if info, ok := m.infos[bundlePath]; ok {
		return info, nil
	}
	return nil, &domain.ReadError{Kind: domain.ReadMissing, Path: bundlePath}
}

// mockGuard reports running by bundle path
type mockGuard struct {
	mu      sync.Mutex
	running map[string]bool
	queries []domain.RunningQuery
}

func (m *mockGuard) IsRunning(ctx context.Context, q domain.RunningQuery) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	return m.running[q.BundlePath]
}

// mockRelocator records calls instead of touching a real trash
type mockRelocator struct {
	supportErr error
	errs       map[string]error
	moved      []string
	onMove     func(path string)
}

func (m *mockRelocator) Relocate(path string) (string, error) {
	if err, ok := m.errs[path]; ok {
		return "", err
	}
	if m.onMove != nil {
		m.onMove(path)
	}
	m.moved = append(m.moved, path)
	return filepath.Join("/trash", filepath.Base(path)), nil
}

// checkedRelocator adds the Supported check to mockRelocator
type checkedRelocator struct {
	mockRelocator
}

func (m *checkedRelocator) Supported() error {
	return m.supportErr
}

// denyFS wraps the real filesystem and returns permission errors below denied dirs
type denyFS struct {
	domain.FileSystemManager
	denied []string
}

func newDenyFS(home string, denied ...string) *denyFS {
	return &denyFS{FileSystemManager: infra.NewFileSystemManagerWithHome(home), denied: denied}
}

func (d *denyFS) blocked(path string) bool {
	for _, dir := range d.denied {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (d *denyFS) Exists(path string) (bool, error) {
	if d.blocked(path) {
		return false, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrPermission}
	}
	return d.FileSystemManager.Exists(path)
}

func (d *denyFS) ReadDir(dir string) ([]fs.DirEntry, error) {
	if d.blocked(dir) {
		return nil, &fs.PathError{Op: "open", Path: dir, Err: fs.ErrPermission}
	}
	return d.FileSystemManager.ReadDir(dir)
}

// writeFile creates a file of the given size, making parent directories.
func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

// mkBundle creates an empty bundle directory.
func mkBundle(t *testing.T, root, name string) string {
	t.Helper()
	p := filepath.Join(root, name+".app")
	require.NoError(t, os.MkdirAll(filepath.Join(p, "Contents"), 0755))
	return p
}

// entryPaths extracts paths from file entries.
func entryPaths(entries []domain.FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}
