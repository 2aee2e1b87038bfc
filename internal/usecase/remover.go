package usecase

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/catalog"
	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// Failure reasons reported on RemovalOutcome.
const (
	ReasonOutsideRoots = "outside search roots"
	ReasonPermission   = "permission denied"
	ReasonCrossVolume  = "cross-volume move not possible"
	ReasonHoldingFull  = "holding area full"
)

// OutcomeFunc is called once per processed item, in input order.
type OutcomeFunc func(current, total int, outcome domain.RemovalOutcome)

// supportChecker is implemented by relocators that can report up front
// whether a holding area exists.
type supportChecker interface {
	Supported() error
}

// Remover moves selected paths into the holding area, one at a time.
type Remover struct {
	relocator domain.Relocator
	guard     domain.RunningGuard
	fsManager domain.FileSystemManager
	registry  *catalog.Registry
	logger    *zap.Logger
}

// NewRemover creates a new removal use case.
func NewRemover(
	relocator domain.Relocator,
	guard domain.RunningGuard,
	fs domain.FileSystemManager,
	reg *catalog.Registry,
	logger *zap.Logger,
) *Remover {
	return &Remover{
		relocator: relocator,
		guard:     guard,
		fsManager: fs,
		registry:  reg,
		logger:    logger,
	}
}

// Remove processes items in order and returns one outcome per item.
//
// Per-item failures never stop the batch. ErrUnsupported and cancellation
// stop it; the outcomes produced so far are returned together with the error.
func (r *Remover) Remove(ctx context.Context, items []domain.RemovalItem, onOutcome OutcomeFunc) ([]domain.RemovalOutcome, error) {
	if onOutcome == nil {
		onOutcome = func(int, int, domain.RemovalOutcome) {}
	}

	if p, ok := r.relocator.(supportChecker); ok {
		if err := p.Supported(); err != nil {
			r.logger.Error("holding area unavailable", zap.Error(err))
			return nil, err
		}
	}

	total := len(items)
	outcomes := make([]domain.RemovalOutcome, 0, total)
	check := &ownerCheck{guard: r.guard}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			r.logger.Info("removal cancelled",
				zap.Int("processed", i),
				zap.Int("total", total))
			return outcomes, err
		}

		outcome, err := r.removeOne(ctx, item, check)
		if errors.Is(err, domain.ErrUnsupported) {
			r.logger.Error("holding area unavailable",
				zap.Int("processed", i),
				zap.Int("total", total),
				zap.Error(err))
			return outcomes, err
		}

		r.logOutcome(outcome, err)
		outcomes = append(outcomes, outcome)
		onOutcome(i+1, total, outcome)
	}

	return outcomes, nil
}

func (r *Remover) removeOne(ctx context.Context, item domain.RemovalItem, check *ownerCheck) (domain.RemovalOutcome, error) {
	outcome := domain.RemovalOutcome{
		Path:  item.Path,
		Owner: item.Owner.DisplayName,
	}

	if !r.inScope(item) {
		outcome.Status = domain.StatusFailed
		outcome.Reason = ReasonOutsideRoots
		return outcome, nil
	}

	if check.isRunning(ctx, item.Owner) {
		outcome.Status = domain.StatusSkippedRunning
		return outcome, nil
	}

	exists, err := r.fsManager.Exists(item.Path)
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Reason = failureReason(err)
		return outcome, err
	}
	if !exists {
		outcome.Status = domain.StatusSkippedMissing
		return outcome, nil
	}

	dest, err := r.relocator.Relocate(item.Path)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupported) {
			return outcome, err
		}
		outcome.Status = domain.StatusFailed
		outcome.Reason = failureReason(err)
		return outcome, err
	}

	outcome.Status = domain.StatusMoved
	outcome.Destination = dest
	return outcome, nil
}

// ownerCheck holds the live running verdict for a run of consecutive items
// with the same owner. A new owner triggers a fresh check.
type ownerCheck struct {
	guard   domain.RunningGuard
	checked bool
	owner   string
	running bool
}

func (c *ownerCheck) isRunning(ctx context.Context, owner domain.AppRecord) bool {
	if c.checked && c.owner == owner.Key() {
		return c.running
	}
	c.checked = true
	c.owner = owner.Key()
	c.running = c.guard.IsRunning(ctx, owner.Query())
	return c.running
}

// inScope accepts the owner's own bundle or anything strictly below a catalog root.
func (r *Remover) inScope(item domain.RemovalItem) bool {
	if !filepath.IsAbs(item.Path) {
		return false
	}
	if item.Owner.BundlePath != "" && item.IsBundle() {
		return true
	}
	_, ok := r.registry.RootOf(item.Path)
	return ok
}

func (r *Remover) logOutcome(o domain.RemovalOutcome, err error) {
	fields := []zap.Field{
		zap.String("path", o.Path),
		zap.String("owner", o.Owner),
		zap.String("status", string(o.Status)),
	}
	switch o.Status {
	case domain.StatusMoved:
		r.logger.Info("moved to trash", append(fields, zap.String("destination", o.Destination))...)
	case domain.StatusFailed:
		fields = append(fields, zap.String("reason", o.Reason))
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		r.logger.Warn("removal failed", fields...)
	default:
		r.logger.Info("removal skipped", fields...)
	}
}

// failureReason maps an OS error to a short user-facing reason.
func failureReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermission
	case errors.Is(err, syscall.EXDEV):
		return ReasonCrossVolume
	case errors.Is(err, syscall.ENOSPC):
		return ReasonHoldingFull
	default:
		return err.Error()
	}
}
