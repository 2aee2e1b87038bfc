// Package infra implements infrastructure concerns (process table, bundles, filesystem, trash).
package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// ProcessInspectorImpl implements domain.ProcessInspector and domain.RunningGuard using gopsutil.
type ProcessInspectorImpl struct {
	reader domain.BundleReader
	logger *zap.Logger
}

// NewProcessInspector creates a new process inspector.
// The reader resolves the bundle identifier of each process's enclosing .app.
func NewProcessInspector(reader domain.BundleReader, logger *zap.Logger) *ProcessInspectorImpl {
	return &ProcessInspectorImpl{reader: reader, logger: logger}
}

// Snapshot enumerates the process table once.
func (pi *ProcessInspectorImpl) Snapshot(ctx context.Context) (*domain.ProcessSnapshot, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return domain.NewIncompleteSnapshot(), fmt.Errorf("failed to list processes: %w", err)
	}

	bundleIDs := make(map[string]string)
	infos := make([]domain.ProcessInfo, 0, len(procs))

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // Process may have exited
		}

		// Exe is often unreadable for other users' processes; the name still counts.
		exe, _ := p.ExeWithContext(ctx)

		info := domain.ProcessInfo{PID: p.Pid, Name: name, ExePath: exe}
		if bundle := EnclosingBundle(exe); bundle != "" {
			id, seen := bundleIDs[bundle]
			if !seen {
				if bi, err := pi.reader.Read(bundle); err == nil {
					id = bi.Identifier
				}
				bundleIDs[bundle] = id
			}
			info.BundleID = id
		}
		infos = append(infos, info)
	}

	return domain.NewProcessSnapshot(infos), nil
}

// IsRunning takes a fresh snapshot and checks the query against it.
// A failed snapshot reports running so removal is blocked rather than permitted.
func (pi *ProcessInspectorImpl) IsRunning(ctx context.Context, q domain.RunningQuery) bool {
	snap, err := pi.Snapshot(ctx)
	if err != nil {
		pi.logger.Warn("process snapshot failed, treating app as running",
			zap.String("identifier", q.Identifier),
			zap.String("name", q.DisplayName),
			zap.Error(err))
	}
	return snap.IsRunning(q)
}

// EnclosingBundle returns the outermost .app directory containing exe, or "".
// Helpers nested inside an app resolve to the app that ships them.
func EnclosingBundle(exe string) string {
	idx := strings.Index(exe, ".app/")
	if idx < 0 {
		return ""
	}
	return exe[:idx+len(".app")]
}

// Ensure ProcessInspectorImpl implements the domain interfaces.
var (
	_ domain.ProcessInspector = (*ProcessInspectorImpl)(nil)
	_ domain.RunningGuard     = (*ProcessInspectorImpl)(nil)
)
