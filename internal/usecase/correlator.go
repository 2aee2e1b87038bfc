// Package usecase contains application business logic.
package usecase

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/appsweep/internal/catalog"
	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// DefaultSizeWorkers bounds concurrent size walks per correlation.
const DefaultSizeWorkers = 4

// Correlator implements domain.CorrelationSource over a catalog.Registry.
type Correlator struct {
	registry    *catalog.Registry
	fsManager   domain.FileSystemManager
	sizeWorkers int
	logger      *zap.Logger
}

// NewCorrelator creates a correlator for the given search-root table.
func NewCorrelator(reg *catalog.Registry, fs domain.FileSystemManager, logger *zap.Logger) *Correlator {
	return NewCorrelatorWithWorkers(reg, fs, DefaultSizeWorkers, logger)
}

// NewCorrelatorWithWorkers creates a correlator with a custom size-walk concurrency.
func NewCorrelatorWithWorkers(reg *catalog.Registry, fs domain.FileSystemManager, workers int, logger *zap.Logger) *Correlator {
	if workers < 1 {
		workers = 1
	}
	return &Correlator{
		registry:    reg,
		fsManager:   fs,
		sizeWorkers: workers,
		logger:      logger,
	}
}

// Correlate evaluates every catalog entry for the app and returns the
// existing paths in table order. Unreadable roots become diagnostics.
func (c *Correlator) Correlate(identifier, displayName string) ([]domain.FileEntry, []domain.Diagnostic) {
	var (
		entries []domain.FileEntry
		diags   []domain.Diagnostic
		seen    = make(map[string]bool)
		lister  = newRootLister(c.fsManager, c.logger)
	)

	for _, e := range c.registry.GetAll() {
		key := e.Key(identifier, displayName)
		if key == "" {
			continue
		}

		var paths []string
		if e.Rule.Wildcard() {
			children, diag := lister.list(e.Root)
			if diag != nil {
				diags = append(diags, *diag)
				continue
			}
			for _, child := range children {
				if matchesPrefix(child.Name(), key, e.Rule) {
					paths = append(paths, filepath.Join(e.Root, child.Name()))
				}
			}
		} else {
			candidate := e.Candidate(key)
			if candidate == "" {
				continue
			}
			ok, err := c.fsManager.Exists(candidate)
			if err != nil {
				if diag := lister.fail(e.Root, "stat", err); diag != nil {
					diags = append(diags, *diag)
				}
				continue
			}
			if !ok {
				continue
			}
			paths = append(paths, candidate)
		}

		for _, p := range paths {
			if seen[p] || !domain.IsDescendant(e.Root, p) {
				continue
			}
			seen[p] = true
			entries = append(entries, domain.FileEntry{
				Path:     p,
				Root:     e.Root,
				Category: e.Category,
				Rule:     e.Rule,
			})
		}
	}

	c.fillSizes(entries)
	return entries, diags
}

// fillSizes computes entry sizes concurrently. Size never fails; errors count as zero.
func (c *Correlator) fillSizes(entries []domain.FileEntry) {
	var g errgroup.Group
	g.SetLimit(c.sizeWorkers)
	for i := range entries {
		i := i
		g.Go(func() error {
			entries[i].SizeBytes = c.fsManager.Size(entries[i].Path)
			return nil
		})
	}
	_ = g.Wait()
}

// matchesPrefix applies the wildcard rule: identifiers are case-sensitive,
// names are not.
func matchesPrefix(name, key string, rule domain.MatchRule) bool {
	if rule == domain.PrefixByName {
		return strings.HasPrefix(strings.ToLower(name), strings.ToLower(key))
	}
	return strings.HasPrefix(name, key)
}

// rootLister caches directory listings for one correlation so that a root
// shared by several rules is read once and reported at most once.
type rootLister struct {
	fsManager domain.FileSystemManager
	logger    *zap.Logger
	listings  map[string][]fs.DirEntry
	failed    map[string]bool
}

func newRootLister(fsm domain.FileSystemManager, logger *zap.Logger) *rootLister {
	return &rootLister{
		fsManager: fsm,
		logger:    logger,
		listings:  make(map[string][]fs.DirEntry),
		failed:    make(map[string]bool),
	}
}

func (l *rootLister) list(root string) ([]fs.DirEntry, *domain.Diagnostic) {
	if l.failed[root] {
		return nil, nil
	}
	if children, ok := l.listings[root]; ok {
		return children, nil
	}

	children, err := l.fsManager.ReadDir(root)
	if err != nil {
		return nil, l.fail(root, "readdir", err)
	}
	l.listings[root] = children
	return children, nil
}

// fail marks root as unusable. Missing roots are normal and produce no diagnostic.
func (l *rootLister) fail(root, op string, err error) *domain.Diagnostic {
	if l.failed[root] {
		return nil
	}
	l.failed[root] = true

	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Debug("search root absent", zap.String("root", root))
		return nil
	}

	l.logger.Warn("search root unreadable, skipping",
		zap.String("root", root),
		zap.String("op", op),
		zap.Error(err))
	return &domain.Diagnostic{Path: root, Op: op, Err: err}
}

// Ensure Correlator implements domain.CorrelationSource.
var _ domain.CorrelationSource = (*Correlator)(nil)
