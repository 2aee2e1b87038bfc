package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// ProcessInfo describes one running process at snapshot time.
type ProcessInfo struct {
	PID      int32
	Name     string
	ExePath  string
	BundleID string // identifier of the enclosing .app, if any
}

// RunningQuery holds the keys an app can be matched by.
type RunningQuery struct {
	Identifier  string
	DisplayName string
	Executable  string
	BundlePath  string
}

// ProcessSnapshot is an immutable view of the process table.
// One snapshot is taken per discovery cycle so that all verdicts in a scan agree.
type ProcessSnapshot struct {
	procs    []ProcessInfo
	complete bool
	TakenAt  time.Time
}

// NewProcessSnapshot builds a complete snapshot from the given processes.
func NewProcessSnapshot(procs []ProcessInfo) *ProcessSnapshot {
	return &ProcessSnapshot{procs: procs, complete: true, TakenAt: time.Now()}
}

// NewIncompleteSnapshot builds a snapshot for a process table that could not be read.
// Every query against it reports running.
func NewIncompleteSnapshot() *ProcessSnapshot {
	return &ProcessSnapshot{complete: false, TakenAt: time.Now()}
}

// Complete reports whether the process table was fully enumerated.
func (s *ProcessSnapshot) Complete() bool {
	return s != nil && s.complete
}

// Len returns the number of processes in the snapshot.
func (s *ProcessSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.procs)
}

// IsRunning reports whether any process matches the query.
// An incomplete snapshot errs toward running.
func (s *ProcessSnapshot) IsRunning(q RunningQuery) bool {
	if !s.Complete() {
		return true
	}

	names := make([]string, 0, 2)
	for _, n := range []string{q.DisplayName, q.Executable} {
		if n = normalizeProcessName(n); n != "" {
			names = append(names, n)
		}
	}

	var bundlePrefix string
	if q.BundlePath != "" {
		bundlePrefix = filepath.Clean(q.BundlePath) + string(filepath.Separator)
	}

	for _, p := range s.procs {
		if q.Identifier != "" && p.BundleID == q.Identifier {
			return true
		}
		if bundlePrefix != "" && strings.HasPrefix(p.ExePath, bundlePrefix) {
			return true
		}
		name := normalizeProcessName(p.Name)
		if name == "" {
			continue
		}
		for _, n := range names {
			if name == n {
				return true
			}
		}
	}
	return false
}

// normalizeProcessName lowercases and strips executable extensions.
func normalizeProcessName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".app")
	name = strings.TrimSuffix(name, ".exe")
	return name
}
