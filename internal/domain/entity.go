// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"path/filepath"
	"strings"
)

// Category tags the class of search root a related file was found under.
type Category string

const (
	CategoryPreferences Category = "preferences"
	CategoryCache       Category = "cache"
	CategoryLogs        Category = "logs"
	CategorySupport     Category = "support"
	CategoryAgent       Category = "agent"
	CategoryReceipt     Category = "receipt"
	CategoryContainer   Category = "container"
)

// MatchRule is how a candidate path is derived from an app's identifier or name.
type MatchRule int

const (
	ExactByIdentifier MatchRule = iota
	ExactByName
	PrefixByIdentifier
	PrefixByName
)

func (r MatchRule) String() string {
	switch r {
	case ExactByIdentifier:
		return "exact-id"
	case ExactByName:
		return "exact-name"
	case PrefixByIdentifier:
		return "prefix-id"
	case PrefixByName:
		return "prefix-name"
	default:
		return "unknown"
	}
}

// MarshalText encodes the rule by name.
func (r MatchRule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ByName reports whether the rule keys on the display name rather than the identifier.
func (r MatchRule) ByName() bool {
	return r == ExactByName || r == PrefixByName
}

// Wildcard reports whether the rule enumerates the root's children.
func (r MatchRule) Wildcard() bool {
	return r == PrefixByIdentifier || r == PrefixByName
}

// AppRecord is one discovered application bundle.
type AppRecord struct {
	Identifier   string      `json:"identifier,omitempty"`
	DisplayName  string      `json:"display_name"`
	Version      string      `json:"version,omitempty"`
	Executable   string      `json:"executable,omitempty"`
	BundlePath   string      `json:"bundle_path"`
	IsRunning    bool        `json:"is_running"`
	Degraded     bool        `json:"degraded,omitempty"` // manifest missing or malformed
	RelatedFiles []FileEntry `json:"related_files"`
}

// Key identifies the record within one scan result.
func (a AppRecord) Key() string {
	return a.BundlePath
}

// TotalSize sums the sizes of all related files.
func (a AppRecord) TotalSize() int64 {
	var total int64
	for _, f := range a.RelatedFiles {
		total += f.SizeBytes
	}
	return total
}

// Query returns the running-state lookup for this record.
func (a AppRecord) Query() RunningQuery {
	return RunningQuery{
		Identifier:  a.Identifier,
		DisplayName: a.DisplayName,
		Executable:  a.Executable,
		BundlePath:  a.BundlePath,
	}
}

// Clone returns a deep copy of the record.
func (a AppRecord) Clone() AppRecord {
	c := a
	if a.RelatedFiles != nil {
		c.RelatedFiles = make([]FileEntry, len(a.RelatedFiles))
		copy(c.RelatedFiles, a.RelatedFiles)
	}
	return c
}

// FileEntry is one auxiliary path correlated to an app.
type FileEntry struct {
	Path      string    `json:"path"`
	Root      string    `json:"root"`
	Category  Category  `json:"category"`
	Rule      MatchRule `json:"rule"`
	SizeBytes int64     `json:"size_bytes"`
	Selected  bool      `json:"selected"` // owned by the presentation layer
}

// LowConfidence reports whether the entry was matched by display name only.
func (f FileEntry) LowConfidence() bool {
	return f.Rule.ByName()
}

// TaskKind names the kind of background task.
type TaskKind string

const (
	TaskScan    TaskKind = "scan"
	TaskRemove  TaskKind = "remove"
	TaskRefresh TaskKind = "refresh"
)

// TaskProgress is a transient progress event.
type TaskProgress struct {
	Phase   TaskKind
	Current int
	Total   int
	Message string
}

// Diagnostic records a non-fatal access problem hit during a scan.
type Diagnostic struct {
	Path string
	Op   string
	Err  error
}

func (d Diagnostic) String() string {
	return d.Op + " " + d.Path + ": " + d.Err.Error()
}

// ScanResult is the output of one discovery cycle.
type ScanResult struct {
	Apps        []AppRecord
	Diagnostics []Diagnostic
	Scanned     int // bundles enumerated, including discarded ones
}

// RemovalStatus is the per-path result of a removal attempt.
type RemovalStatus string

const (
	StatusMoved          RemovalStatus = "moved"
	StatusSkippedRunning RemovalStatus = "skipped-running"
	StatusSkippedMissing RemovalStatus = "skipped-missing"
	StatusFailed         RemovalStatus = "failed"
)

// RemovalItem is one path selected for removal together with its owning app.
type RemovalItem struct {
	Path  string
	Owner AppRecord
}

// IsBundle reports whether the item is the owning bundle itself.
func (i RemovalItem) IsBundle() bool {
	return filepath.Clean(i.Path) == filepath.Clean(i.Owner.BundlePath)
}

// RemovalOutcome captures what happened to a single path.
type RemovalOutcome struct {
	Path        string        `json:"path"`
	Owner       string        `json:"owner"`
	Status      RemovalStatus `json:"status"`
	Destination string        `json:"destination,omitempty"` // location inside the trash
	Reason      string        `json:"reason,omitempty"`
}

// Succeeded reports whether the path actually left its original location.
func (o RemovalOutcome) Succeeded() bool {
	return o.Status == StatusMoved
}

// IsDescendant reports whether path lies strictly below root.
func IsDescendant(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
