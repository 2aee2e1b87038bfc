package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// mockBundleReader is a test double for domain.BundleReader
type mockBundleReader struct {
	infos map[string]*domain.BundleInfo
	reads []string
}

func newMockBundleReader() *mockBundleReader {
	return &mockBundleReader{infos: make(map[string]*domain.BundleInfo)}
}

func (m *mockBundleReader) Read(bundlePath string) (*domain.BundleInfo, error) {
	m.reads = append(m.reads, bundlePath)
	if info, ok := m.infos[bundlePath]; ok {
		return info, nil
	}
	return nil, &domain.ReadError{Kind: domain.ReadMissing, Path: bundlePath}
}

// mockCommandRunner records invocations instead of executing them
type mockCommandRunner struct {
	calls [][]string
	err   error
}

func (m *mockCommandRunner) Run(name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return nil, m.err
}

// writeInfoPlist creates bundle/Contents/Info.plist with the given keys.
func writeInfoPlist(t *testing.T, bundle string, keys map[string]string) {
	t.Helper()

	contents := filepath.Join(bundle, "Contents")
	require.NoError(t, os.MkdirAll(contents, 0755))

	body := ""
	for k, v := range keys {
		body += fmt.Sprintf("\t<key>%s</key>\n\t<string>%s</string>\n", k, v)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
` + body + `</dict>
</plist>
`
	require.NoError(t, os.WriteFile(filepath.Join(contents, "Info.plist"), []byte(doc), 0644))
}

// writeFile creates a file and its parents.
func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}
