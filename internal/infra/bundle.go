package infra

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// PlistBundleReader implements domain.BundleReader by parsing Info.plist.
// Both XML and binary property lists are accepted.
type PlistBundleReader struct{}

// NewBundleReader creates a new bundle reader.
func NewBundleReader() *PlistBundleReader {
	return &PlistBundleReader{}
}

// manifestPaths lists where a bundle keeps its manifest, in lookup order.
// Wrapped iOS apps carry Info.plist at the bundle root.
func manifestPaths(bundlePath string) []string {
	return []string{
		filepath.Join(bundlePath, "Contents", "Info.plist"),
		filepath.Join(bundlePath, "Info.plist"),
	}
}

// Read parses the bundle manifest.
func (r *PlistBundleReader) Read(bundlePath string) (*domain.BundleInfo, error) {
	for _, manifest := range manifestPaths(bundlePath) {
		data, err := os.ReadFile(manifest)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &domain.ReadError{Kind: domain.ReadMalformed, Path: manifest, Err: err}
		}
		return parseManifest(manifest, data)
	}
	return nil, &domain.ReadError{Kind: domain.ReadMissing, Path: bundlePath}
}

func parseManifest(path string, data []byte) (*domain.BundleInfo, error) {
	// Decode into a generic dictionary so that odd value types in unrelated
	// keys do not fail the whole manifest.
	var dict map[string]interface{}
	if _, err := plist.Unmarshal(data, &dict); err != nil {
		return nil, &domain.ReadError{Kind: domain.ReadMalformed, Path: path, Err: err}
	}
	if dict == nil {
		return nil, &domain.ReadError{Kind: domain.ReadMalformed, Path: path, Err: errors.New("manifest is not a dictionary")}
	}

	return &domain.BundleInfo{
		Identifier:  firstString(dict, "CFBundleIdentifier"),
		DisplayName: firstString(dict, "CFBundleName", "CFBundleDisplayName"),
		Version:     firstString(dict, "CFBundleShortVersionString", "CFBundleVersion"),
		Executable:  firstString(dict, "CFBundleExecutable"),
	}, nil
}

// firstString returns the first non-empty string value among keys.
func firstString(dict map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := dict[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Ensure PlistBundleReader implements domain.BundleReader.
var _ domain.BundleReader = (*PlistBundleReader)(nil)
