package usecase

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eliteGoblin/focusd/appsweep/internal/catalog"
	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
	"github.com/eliteGoblin/focusd/appsweep/internal/infra"
)

func newTestCorrelator(t *testing.T) (*Correlator, string, string) {
	t.Helper()
	home := t.TempDir()
	sys := t.TempDir()
	reg := catalog.NewRegistryWithHome(home, sys)
	return NewCorrelator(reg, infra.NewFileSystemManagerWithHome(home), zap.NewNop()), home, sys
}

func TestCorrelator_FullTable(t *testing.T) {
	c, home, sys := newTestCorrelator(t)
	lib := filepath.Join(home, "Library")

	writeFile(t, filepath.Join(lib, "Preferences", "com.acme.Foo.plist"), 10)
	writeFile(t, filepath.Join(lib, "Preferences", "com.acme.Foo.helper.plist"), 5)
	writeFile(t, filepath.Join(lib, "Preferences", "Foo Settings.json"), 3)
	writeFile(t, filepath.Join(lib, "Application Support", "Foo", "state.db"), 100)
	writeFile(t, filepath.Join(lib, "Caches", "com.acme.Foo", "blob"), 40)
	writeFile(t, filepath.Join(lib, "Logs", "Foo", "today.log"), 7)
	writeFile(t, filepath.Join(lib, "LaunchAgents", "com.acme.Foo.updater.plist"), 2)
	writeFile(t, filepath.Join(lib, "Containers", "com.acme.Foo", "Data", "x"), 1)
	writeFile(t, filepath.Join(sys, "Library", "Receipts", "com.acme.Foo.pkg.bom"), 9)
	writeFile(t, filepath.Join(sys, "private", "var", "db", "receipts", "com.acme.Foo.pkg.plist"), 4)

	// Unrelated noise
	writeFile(t, filepath.Join(lib, "Preferences", "com.other.Bar.plist"), 1)
	writeFile(t, filepath.Join(lib, "Caches", "org.example.cache"), 1)

	entries, diags := c.Correlate("com.acme.Foo", "Foo")

	assert.Empty(t, diags)
	assert.Equal(t, []string{
		filepath.Join(lib, "Preferences", "com.acme.Foo.plist"),
		filepath.Join(lib, "Preferences", "com.acme.Foo.helper.plist"),
		filepath.Join(lib, "Preferences", "Foo Settings.json"),
		filepath.Join(lib, "Application Support", "Foo"),
		filepath.Join(lib, "Caches", "com.acme.Foo"),
		filepath.Join(lib, "Logs", "Foo"),
		filepath.Join(lib, "LaunchAgents", "com.acme.Foo.updater.plist"),
		filepath.Join(lib, "Containers", "com.acme.Foo"),
		filepath.Join(sys, "Library", "Receipts", "com.acme.Foo.pkg.bom"),
		filepath.Join(sys, "private", "var", "db", "receipts", "com.acme.Foo.pkg.plist"),
	}, entryPaths(entries))

	byPath := make(map[string]domain.FileEntry)
	for _, e := range entries {
		byPath[e.Path] = e
	}

	prefs := byPath[filepath.Join(lib, "Preferences", "com.acme.Foo.plist")]
	assert.Equal(t, domain.ExactByIdentifier, prefs.Rule)
	assert.Equal(t, domain.CategoryPreferences, prefs.Category)
	assert.Equal(t, int64(10), prefs.SizeBytes)

	named := byPath[filepath.Join(lib, "Preferences", "Foo Settings.json")]
	assert.True(t, named.LowConfidence())

	assert.Equal(t, int64(100), byPath[filepath.Join(lib, "Application Support", "Foo")].SizeBytes)
	assert.Equal(t, domain.CategoryReceipt, byPath[filepath.Join(sys, "Library", "Receipts", "com.acme.Foo.pkg.bom")].Category)
}

func TestCorrelator_EveryEntryExistsUnderARoot(t *testing.T) {
	c, home, _ := newTestCorrelator(t)
	lib := filepath.Join(home, "Library")
	writeFile(t, filepath.Join(lib, "Preferences", "com.acme.Foo.plist"), 1)
	writeFile(t, filepath.Join(lib, "Caches", "com.acme.Foo.shipit", "x"), 1)

	entries, _ := c.Correlate("com.acme.Foo", "Foo")

	require.NotEmpty(t, entries)
	for _, e := range entries {
		_, err := os.Lstat(e.Path)
		assert.NoError(t, err, e.Path)
		assert.True(t, domain.IsDescendant(e.Root, e.Path), e.Path)
		_, ok := c.registry.RootOf(e.Path)
		assert.True(t, ok, e.Path)
	}
}

func TestCorrelator_DedupesOverlappingRules(t *testing.T) {
	c, home, _ := newTestCorrelator(t)
	caches := filepath.Join(home, "Library", "Caches")

	// Both the exact-id and the prefix-id rule match this directory.
	writeFile(t, filepath.Join(caches, "com.acme.Foo", "x"), 1)

	entries, _ := c.Correlate("com.acme.Foo", "Foo")

	require.Len(t, entries, 1)
	assert.Equal(t, domain.ExactByIdentifier, entries[0].Rule)
}

func TestCorrelator_PrefixCaseRules(t *testing.T) {
	c, home, _ := newTestCorrelator(t)
	prefs := filepath.Join(home, "Library", "Preferences")

	writeFile(t, filepath.Join(prefs, "COM.ACME.FOO.extra.plist"), 1)
	writeFile(t, filepath.Join(prefs, "fOO-window-state.plist"), 1)

	entries, _ := c.Correlate("com.acme.Foo", "Foo")

	// Identifiers are case-sensitive, names are not.
	assert.Equal(t, []string{filepath.Join(prefs, "fOO-window-state.plist")}, entryPaths(entries))
}

func TestCorrelator_ShortNamesMatchPrefixRules(t *testing.T) {
	c, home, _ := newTestCorrelator(t)
	lib := filepath.Join(home, "Library")

	writeFile(t, filepath.Join(lib, "Preferences", "Qt-settings.plist"), 1)
	writeFile(t, filepath.Join(lib, "Application Support", "Qt", "x"), 1)

	entries, _ := c.Correlate("", "Qt")

	assert.Equal(t, []string{
		filepath.Join(lib, "Preferences", "Qt-settings.plist"),
		filepath.Join(lib, "Application Support", "Qt"),
	}, entryPaths(entries))
	for _, e := range entries {
		assert.True(t, e.LowConfidence(), e.Path)
	}
}

func TestCorrelator_DegradedRecordUsesNameRulesOnly(t *testing.T) {
	c, home, _ := newTestCorrelator(t)
	lib := filepath.Join(home, "Library")

	writeFile(t, filepath.Join(lib, "Logs", "Widget", "a.log"), 1)
	writeFile(t, filepath.Join(lib, "Preferences", "com.acme.Widget.plist"), 1)

	entries, _ := c.Correlate("", "Widget")

	assert.Equal(t, []string{filepath.Join(lib, "Logs", "Widget")}, entryPaths(entries))
}

func TestCorrelator_RejectsTraversalKeys(t *testing.T) {
	c, home, _ := newTestCorrelator(t)
	writeFile(t, filepath.Join(home, "Library", "secret"), 1)

	entries, diags := c.Correlate("../secret", "..")

	assert.Empty(t, entries)
	assert.Empty(t, diags)
}

func TestCorrelator_UnreadableRootIsDiagnostic(t *testing.T) {
	home := t.TempDir()
	lib := filepath.Join(home, "Library")
	caches := filepath.Join(lib, "Caches")

	writeFile(t, filepath.Join(lib, "Preferences", "com.acme.Foo.plist"), 1)
	writeFile(t, filepath.Join(caches, "com.acme.Foo", "x"), 1)

	core, logs := observer.New(zapcore.WarnLevel)
	reg := catalog.NewRegistryWithHome(home, t.TempDir())
	c := NewCorrelator(reg, newDenyFS(home, caches), zap.New(core))

	entries, diags := c.Correlate("com.acme.Foo", "Foo")

	assert.Equal(t, []string{filepath.Join(lib, "Preferences", "com.acme.Foo.plist")}, entryPaths(entries))
	require.Len(t, diags, 1, "one diagnostic per root even though three rules touch it")
	assert.Equal(t, caches, diags[0].Path)
	assert.True(t, errors.Is(diags[0].Err, fs.ErrPermission))

	warned := logs.FilterMessage("search root unreadable, skipping").All()
	require.Len(t, warned, 1)
	assert.Equal(t, caches, warned[0].ContextMap()["root"])
}

func TestCorrelator_MissingRootsAreSilent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	home := t.TempDir()
	reg := catalog.NewRegistryWithHome(home, filepath.Join(home, "no-system"))
	c := NewCorrelator(reg, infra.NewFileSystemManagerWithHome(home), zap.New(core))

	entries, diags := c.Correlate("com.acme.Foo", "Foo")

	assert.Empty(t, entries)
	assert.Empty(t, diags)
	assert.Zero(t, logs.Len())
}

func TestCorrelator_SizesWithSingleWorker(t *testing.T) {
	home := t.TempDir()
	lib := filepath.Join(home, "Library")
	writeFile(t, filepath.Join(lib, "Caches", "com.acme.Foo", "a"), 30)
	writeFile(t, filepath.Join(lib, "Logs", "com.acme.Foo.log"), 12)

	reg := catalog.NewRegistryWithHome(home, t.TempDir())
	c := NewCorrelatorWithWorkers(reg, infra.NewFileSystemManagerWithHome(home), 0, zap.NewNop())

	entries, _ := c.Correlate("com.acme.Foo", "Foo")

	require.Len(t, entries, 2)
	assert.Equal(t, int64(30), entries[0].SizeBytes)
	assert.Equal(t, int64(12), entries[1].SizeBytes)
}

func TestMatchesPrefix(t *testing.T) {
	tests := []struct {
		name  string
		child string
		key   string
		rule  domain.MatchRule
		want  bool
	}{
		{"identifier exact case", "com.acme.Foo.plist", "com.acme.Foo", domain.PrefixByIdentifier, true},
		{"identifier wrong case", "com.Acme.Foo.plist", "com.acme.Foo", domain.PrefixByIdentifier, false},
		{"name any case", "FOO Helper", "Foo", domain.PrefixByName, true},
		{"name not a prefix", "MyFoo", "Foo", domain.PrefixByName, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesPrefix(tt.child, tt.key, tt.rule))
		})
	}
}
