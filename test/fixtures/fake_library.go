// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"

	"howett.net/plist"
)

// FakeApp describes one bundle to lay down.
type FakeApp struct {
	Name       string
	Identifier string
	Version    string
	// Executable defaults to Name.
	Executable string
	// SkipManifest leaves Contents/Info.plist out.
	SkipManifest bool
}

// FakeLibrary creates a directory structure mimicking a macOS home and system root.
type FakeLibrary struct {
	HomeDir    string
	SystemRoot string
}

// NewFakeLibrary creates a new fake library generator.
func NewFakeLibrary(homeDir, systemRoot string) *FakeLibrary {
	return &FakeLibrary{HomeDir: homeDir, SystemRoot: systemRoot}
}

// UserApplications returns ~/Applications.
func (f *FakeLibrary) UserApplications() string {
	return filepath.Join(f.HomeDir, "Applications")
}

// SystemApplications returns <system>/Applications.
func (f *FakeLibrary) SystemApplications() string {
	return filepath.Join(f.SystemRoot, "Applications")
}

// Library returns ~/Library/<parts...>.
func (f *FakeLibrary) Library(parts ...string) string {
	return filepath.Join(append([]string{f.HomeDir, "Library"}, parts...)...)
}

// SystemLibrary returns <system>/Library/<parts...>.
func (f *FakeLibrary) SystemLibrary(parts ...string) string {
	return filepath.Join(append([]string{f.SystemRoot, "Library"}, parts...)...)
}

// TrashDir returns the trash used by tests.
func (f *FakeLibrary) TrashDir() string {
	return filepath.Join(f.HomeDir, ".Trash")
}

// AddApp creates <root>/<Name>.app with an Info.plist and returns its path.
func (f *FakeLibrary) AddApp(root string, app FakeApp) (string, error) {
	bundle := filepath.Join(root, app.Name+".app")
	exe := app.Executable
	if exe == "" {
		exe = app.Name
	}
	macos := filepath.Join(bundle, "Contents", "MacOS")
	if err := os.MkdirAll(macos, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(macos, exe), []byte("#!/bin/sh\n"), 0755); err != nil {
		return "", err
	}
	if app.SkipManifest {
		return bundle, nil
	}

	info := map[string]string{
		"CFBundleName":       app.Name,
		"CFBundleExecutable": exe,
	}
	if app.Identifier != "" {
		info["CFBundleIdentifier"] = app.Identifier
	}
	if app.Version != "" {
		info["CFBundleShortVersionString"] = app.Version
	}
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), data, 0644); err != nil {
		return "", err
	}
	return bundle, nil
}

// AddFile creates a file of size bytes, making parent directories.
func (f *FakeLibrary) AddFile(path string, size int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, make([]byte, size), 0644)
}

// Create lays down the default scenario: Foo and Bar installed, Bar with
// leftovers in every user category, plus an unrelated preference file.
func (f *FakeLibrary) Create() error {
	for _, dir := range []string{f.UserApplications(), f.SystemApplications()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	apps := []FakeApp{
		{Name: "Foo", Identifier: "com.acme.Foo", Version: "1.0"},
		{Name: "Bar", Identifier: "com.acme.Bar", Version: "2.3.1"},
	}
	for _, app := range apps {
		if _, err := f.AddApp(f.SystemApplications(), app); err != nil {
			return err
		}
	}

	files := map[string]int{
		f.Library("Preferences", "com.acme.Bar.plist"):          120,
		f.Library("Preferences", "com.acme.Unrelated.plist"):    80,
		f.Library("Caches", "com.acme.Bar", "Cache.db"):         4096,
		f.Library("Application Support", "Bar", "state.json"):   512,
		f.Library("Logs", "Bar", "bar.log"):                     256,
		f.Library("LaunchAgents", "com.acme.Bar.updater.plist"): 64,
	}
	for path, size := range files {
		if err := f.AddFile(path, size); err != nil {
			return err
		}
	}
	return nil
}

// BarLeftovers returns the related files Create lays down for Bar, in catalog order.
func (f *FakeLibrary) BarLeftovers() []string {
	return []string{
		f.Library("Preferences", "com.acme.Bar.plist"),
		f.Library("Application Support", "Bar"),
		f.Library("Caches", "com.acme.Bar"),
		f.Library("Logs", "Bar"),
		f.Library("LaunchAgents", "com.acme.Bar.updater.plist"),
	}
}

// Exists reports whether path exists without following symlinks.
func (f *FakeLibrary) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Cleanup removes the fake home and system root.
func (f *FakeLibrary) Cleanup() error {
	for _, dir := range []string{f.HomeDir, f.SystemRoot} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
