package domain

import (
	"path/filepath"
	"strings"
)

// BundleExtension is the directory suffix of an application bundle.
const BundleExtension = ".app"

// NameFromBundlePath derives a display name from the bundle's folder name.
func NameFromBundlePath(bundlePath string) string {
	return strings.TrimSuffix(filepath.Base(bundlePath), BundleExtension)
}

// IsBundleName reports whether a directory entry name has the bundle extension.
func IsBundleName(name string) bool {
	return strings.HasSuffix(name, BundleExtension) && len(name) > len(BundleExtension)
}
