package scheduler

import (
	"context"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
	"github.com/eliteGoblin/focusd/appsweep/internal/usecase"
)

// Scanner runs a discovery cycle.
type Scanner interface {
	Scan(ctx context.Context, roots []string, progress usecase.ProgressFunc) (*domain.ScanResult, error)
}

// BatchRemover relocates a batch of paths.
type BatchRemover interface {
	Remove(ctx context.Context, items []domain.RemovalItem, onOutcome usecase.OutcomeFunc) ([]domain.RemovalOutcome, error)
}

// Refresher rebuilds the record of a single bundle.
type Refresher interface {
	Refresh(ctx context.Context, bundlePath string, progress usecase.ProgressFunc) (domain.AppRecord, []domain.Diagnostic, error)
}

// ScanTask discovers installed apps under a set of installation roots.
type ScanTask struct {
	scanner Scanner
	roots   []string
}

// NewScanTask creates a scan over roots.
func NewScanTask(scanner Scanner, roots []string) *ScanTask {
	return &ScanTask{scanner: scanner, roots: roots}
}

func (t *ScanTask) Kind() domain.TaskKind {
	return domain.TaskScan
}

func (t *ScanTask) Execute(ctx context.Context, rep *Reporter) (Result, error) {
	res, err := t.scanner.Scan(ctx, t.roots, func(p domain.TaskProgress) {
		rep.Progress(p.Current, p.Total, p.Message)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Scan: res, Total: res.Scanned}, nil
}

// RemovalTask relocates the given items into the holding area.
type RemovalTask struct {
	remover BatchRemover
	items   []domain.RemovalItem
}

// NewRemovalTask creates a removal of items, processed in order.
func NewRemovalTask(remover BatchRemover, items []domain.RemovalItem) *RemovalTask {
	return &RemovalTask{remover: remover, items: items}
}

func (t *RemovalTask) Kind() domain.TaskKind {
	return domain.TaskRemove
}

// Locks returns the bundle paths of every record the batch touches.
func (t *RemovalTask) Locks() []string {
	seen := make(map[string]bool)
	var locks []string
	for _, item := range t.items {
		p := item.Owner.BundlePath
		if p != "" && !seen[p] {
			seen[p] = true
			locks = append(locks, p)
		}
	}
	return locks
}

func (t *RemovalTask) Execute(ctx context.Context, rep *Reporter) (Result, error) {
	outcomes, err := t.remover.Remove(ctx, t.items, func(current, total int, o domain.RemovalOutcome) {
		rep.Outcome(current, total, o)
	})
	return Result{Outcomes: outcomes, Total: len(t.items)}, err
}

// RefreshTask re-correlates one existing record.
type RefreshTask struct {
	refresher  Refresher
	bundlePath string
}

// NewRefreshTask creates a refresh of the record at bundlePath.
func NewRefreshTask(refresher Refresher, bundlePath string) *RefreshTask {
	return &RefreshTask{refresher: refresher, bundlePath: bundlePath}
}

func (t *RefreshTask) Kind() domain.TaskKind {
	return domain.TaskRefresh
}

// Locks holds the refreshed record so its selection cannot change mid-run.
func (t *RefreshTask) Locks() []string {
	return []string{t.bundlePath}
}

func (t *RefreshTask) Execute(ctx context.Context, rep *Reporter) (Result, error) {
	rec, diags, err := t.refresher.Refresh(ctx, t.bundlePath, func(p domain.TaskProgress) {
		rep.Progress(p.Current, p.Total, p.Message)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Record: &rec, Diagnostics: diags, Total: 1}, nil
}
