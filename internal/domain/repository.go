package domain

import (
	"context"
	"io/fs"
)

// BundleInfo is the identifying metadata read from a bundle manifest.
type BundleInfo struct {
	Identifier  string
	DisplayName string
	Version     string
	Executable  string
}

// ProcessInspector takes snapshots of the process table.
// Implementation: uses gopsutil for cross-platform support.
type ProcessInspector interface {
	// Snapshot enumerates running processes once.
	// On error the returned snapshot is incomplete and reports everything as running.
	Snapshot(ctx context.Context) (*ProcessSnapshot, error)
}

// BundleReader extracts metadata from an application bundle.
type BundleReader interface {
	// Read parses the bundle manifest. Errors are *ReadError.
	Read(bundlePath string) (*BundleInfo, error)
}

// FileSystemManager handles the read-only filesystem operations of a scan.
type FileSystemManager interface {
	// Exists reports whether path exists without following a final symlink.
	// A non-nil error means existence could not be determined.
	Exists(path string) (bool, error)

	// ReadDir lists the immediate children of dir, sorted by name.
	ReadDir(dir string) ([]fs.DirEntry, error)

	// Size returns the size of a file, or the recursive sum for a directory.
	// Unreadable parts count as zero.
	Size(path string) int64

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// Relocator moves a path into the reversible holding area (trash).
// It returns the path's new location. ErrUnsupported means no holding area exists.
type Relocator interface {
	Relocate(path string) (string, error)
}

// RunningGuard answers live "is this app running right now" questions before removal.
type RunningGuard interface {
	IsRunning(ctx context.Context, q RunningQuery) bool
}

// CorrelationSource enumerates related files for an app.
type CorrelationSource interface {
	Correlate(identifier, displayName string) ([]FileEntry, []Diagnostic)
}
