package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// ProgressFunc receives progress events from a long-running operation.
type ProgressFunc func(domain.TaskProgress)

// Discovery enumerates installed application bundles and correlates
// their auxiliary files.
type Discovery struct {
	fsManager  domain.FileSystemManager
	reader     domain.BundleReader
	inspector  domain.ProcessInspector
	correlator domain.CorrelationSource
	logger     *zap.Logger
}

// NewDiscovery creates a new discovery use case.
func NewDiscovery(
	fs domain.FileSystemManager,
	reader domain.BundleReader,
	inspector domain.ProcessInspector,
	correlator domain.CorrelationSource,
	logger *zap.Logger,
) *Discovery {
	return &Discovery{
		fsManager:  fs,
		reader:     reader,
		inspector:  inspector,
		correlator: correlator,
		logger:     logger,
	}
}

// Scan runs one discovery cycle over the installation roots.
//
// A single process snapshot is taken up front so every record in the
// result shares the same running verdicts. Unreadable roots and bundles
// are reported as diagnostics and never abort the scan. The only error
// returned is the context's, in which case no partial result is produced.
func (d *Discovery) Scan(ctx context.Context, roots []string, progress ProgressFunc) (*domain.ScanResult, error) {
	start := time.Now()
	if progress == nil {
		progress = func(domain.TaskProgress) {}
	}

	snap, err := d.inspector.Snapshot(ctx)
	if err != nil {
		d.logger.Warn("process table unavailable, treating all apps as running", zap.Error(err))
	}
	if snap == nil {
		snap = domain.NewIncompleteSnapshot()
	}

	diags := newDiagnosticSet()
	bundles := d.enumerate(roots, diags)
	total := len(bundles)

	if total == 0 {
		progress(domain.TaskProgress{Phase: domain.TaskScan, Message: "no application bundles found"})
	}

	records := make([]domain.AppRecord, 0, total)
	for i, bundle := range bundles {
		if err := ctx.Err(); err != nil {
			d.logger.Info("scan cancelled", zap.Int("scanned", i), zap.Int("total", total))
			return nil, err
		}

		rec, ok := d.buildRecord(bundle, snap, diags)
		if ok {
			records = append(records, rec)
		}

		progress(domain.TaskProgress{
			Phase:   domain.TaskScan,
			Current: i + 1,
			Total:   total,
			Message: "scanned " + filepath.Base(bundle),
		})
	}

	sortRecords(records)

	d.logger.Info("scan complete",
		zap.Int("bundles", total),
		zap.Int("apps", len(records)),
		zap.Int("diagnostics", diags.len()),
		zap.Bool("process_snapshot_complete", snap.Complete()),
		zap.Duration("duration", time.Since(start)))

	return &domain.ScanResult{
		Apps:        records,
		Diagnostics: diags.list(),
		Scanned:     total,
	}, nil
}

// Refresh rebuilds the record of one installed bundle: manifest, running
// verdict and related files, against a fresh process snapshot. A bundle that
// no longer exists yields an error wrapping fs.ErrNotExist.
func (d *Discovery) Refresh(ctx context.Context, bundlePath string, progress ProgressFunc) (domain.AppRecord, []domain.Diagnostic, error) {
	if progress == nil {
		progress = func(domain.TaskProgress) {}
	}
	if err := ctx.Err(); err != nil {
		return domain.AppRecord{}, nil, err
	}

	bundlePath = filepath.Clean(d.fsManager.ExpandHome(bundlePath))
	exists, err := d.fsManager.Exists(bundlePath)
	if err != nil {
		return domain.AppRecord{}, nil, fmt.Errorf("checking %s: %w", bundlePath, err)
	}
	if !exists {
		return domain.AppRecord{}, nil, fmt.Errorf("bundle %s: %w", bundlePath, fs.ErrNotExist)
	}

	snap, err := d.inspector.Snapshot(ctx)
	if err != nil {
		d.logger.Warn("process table unavailable, treating app as running", zap.Error(err))
	}
	if snap == nil {
		snap = domain.NewIncompleteSnapshot()
	}

	diags := newDiagnosticSet()
	rec, ok := d.buildRecord(bundlePath, snap, diags)
	if !ok {
		return domain.AppRecord{}, nil, fmt.Errorf("bundle %s has no identifier or name", bundlePath)
	}
	if err := ctx.Err(); err != nil {
		return domain.AppRecord{}, nil, err
	}

	progress(domain.TaskProgress{
		Phase:   domain.TaskRefresh,
		Current: 1,
		Total:   1,
		Message: "refreshed " + filepath.Base(bundlePath),
	})

	d.logger.Info("record refreshed",
		zap.String("bundle", bundlePath),
		zap.Int("related", len(rec.RelatedFiles)),
		zap.Bool("running", rec.IsRunning))

	return rec, diags.list(), nil
}

// enumerate lists bundle paths across all roots, in root order then name order.
func (d *Discovery) enumerate(roots []string, diags *diagnosticSet) []string {
	var bundles []string
	seenRoot := make(map[string]bool)

	for _, root := range roots {
		root = filepath.Clean(d.fsManager.ExpandHome(root))
		if seenRoot[root] {
			continue
		}
		seenRoot[root] = true

		entries, err := d.fsManager.ReadDir(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				d.logger.Debug("installation root absent", zap.String("root", root))
				continue
			}
			d.logger.Warn("installation root unreadable, skipping",
				zap.String("root", root),
				zap.Error(err))
			diags.add(domain.Diagnostic{Path: root, Op: "readdir", Err: err})
			continue
		}

		for _, entry := range entries {
			if !domain.IsBundleName(entry.Name()) {
				continue
			}
			if !entry.IsDir() && entry.Type()&fs.ModeSymlink == 0 {
				continue
			}
			bundles = append(bundles, filepath.Join(root, entry.Name()))
		}
	}
	return bundles
}

// buildRecord reads one bundle into an AppRecord. ok is false when the
// bundle has neither an identifier nor a usable name.
func (d *Discovery) buildRecord(bundlePath string, snap *domain.ProcessSnapshot, diags *diagnosticSet) (domain.AppRecord, bool) {
	rec := domain.AppRecord{BundlePath: bundlePath}

	info, err := d.reader.Read(bundlePath)
	if err != nil {
		rec.Degraded = true
		if errors.Is(err, fs.ErrPermission) {
			diags.add(domain.Diagnostic{Path: bundlePath, Op: "read manifest", Err: err})
		}
		d.logger.Info("bundle manifest unusable, using folder name",
			zap.String("bundle", bundlePath),
			zap.Error(err))
		info = &domain.BundleInfo{}
	}

	rec.Identifier = info.Identifier
	rec.DisplayName = info.DisplayName
	rec.Version = info.Version
	rec.Executable = info.Executable
	if rec.DisplayName == "" {
		rec.DisplayName = domain.NameFromBundlePath(bundlePath)
	}

	if rec.Identifier == "" && rec.DisplayName == "" {
		d.logger.Warn("bundle has no identifier or name, discarding", zap.String("bundle", bundlePath))
		return domain.AppRecord{}, false
	}

	rec.IsRunning = snap.IsRunning(rec.Query())

	related, cdiags := d.correlator.Correlate(rec.Identifier, rec.DisplayName)
	for _, diag := range cdiags {
		diags.add(diag)
	}
	rec.RelatedFiles = related
	if rec.RelatedFiles == nil {
		rec.RelatedFiles = []domain.FileEntry{}
	}

	d.logger.Debug("bundle scanned",
		zap.String("bundle", bundlePath),
		zap.String("identifier", rec.Identifier),
		zap.Int("related", len(related)),
		zap.Bool("running", rec.IsRunning))

	return rec, true
}

// sortRecords orders by display name, case-insensitive, ties broken by path.
func sortRecords(records []domain.AppRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := strings.ToLower(records[i].DisplayName), strings.ToLower(records[j].DisplayName)
		if a != b {
			return a < b
		}
		return records[i].BundlePath < records[j].BundlePath
	})
}

// diagnosticSet collects diagnostics once per (path, op).
type diagnosticSet struct {
	seen  map[string]bool
	items []domain.Diagnostic
}

func newDiagnosticSet() *diagnosticSet {
	return &diagnosticSet{seen: make(map[string]bool)}
}

func (s *diagnosticSet) add(d domain.Diagnostic) {
	key := fmt.Sprintf("%s\x00%s", d.Path, d.Op)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.items = append(s.items, d)
}

func (s *diagnosticSet) len() int {
	return len(s.items)
}

func (s *diagnosticSet) list() []domain.Diagnostic {
	return s.items
}
