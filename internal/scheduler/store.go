package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

var (
	// ErrRecordLocked means a running removal references the record.
	ErrRecordLocked = errors.New("record is locked by a running removal")

	// ErrUnknownRecord means no record has the given bundle path.
	ErrUnknownRecord = errors.New("unknown app record")

	// ErrUnknownEntry means the record has no related file at the given path.
	ErrUnknownEntry = errors.New("unknown related file")
)

// Store is the shared state between the worker and the interactive side.
// Only the scheduler's publish step replaces the record list; callers may
// toggle FileEntry.Selected through SetSelected.
type Store struct {
	mu          sync.RWMutex
	apps        []domain.AppRecord
	index       map[string]int
	diagnostics []domain.Diagnostic
	outcomes    []domain.RemovalOutcome
	scannedAt   time.Time
	readOnly    bool
	locked      map[string]bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index:  make(map[string]int),
		locked: make(map[string]bool),
	}
}

// Apps returns a deep copy of the current record list.
func (s *Store) Apps() []domain.AppRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AppRecord, len(s.apps))
	for i, a := range s.apps {
		out[i] = a.Clone()
	}
	return out
}

// App returns a copy of the record with the given bundle path.
func (s *Store) App(bundlePath string) (domain.AppRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[bundlePath]
	if !ok {
		return domain.AppRecord{}, false
	}
	return s.apps[i].Clone(), true
}

// Diagnostics returns the access problems of the last published scan.
func (s *Store) Diagnostics() []domain.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Diagnostic(nil), s.diagnostics...)
}

// Outcomes returns the outcomes of the last published removal.
func (s *Store) Outcomes() []domain.RemovalOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RemovalOutcome(nil), s.outcomes...)
}

// ScannedAt returns when the current record list was published.
func (s *Store) ScannedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scannedAt
}

// ReadOnly reports whether a task is running.
func (s *Store) ReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}

// SetSelected toggles the selection flag of one related file.
func (s *Store) SetSelected(bundlePath, path string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[bundlePath]
	if !ok {
		return ErrUnknownRecord
	}
	if s.locked[bundlePath] {
		return ErrRecordLocked
	}
	files := s.apps[i].RelatedFiles
	for j := range files {
		if files[j].Path == path {
			files[j].Selected = selected
			return nil
		}
	}
	return ErrUnknownEntry
}

// SelectWhere sets Selected on every related file of the record to pred's verdict.
// It returns the number of files left selected.
func (s *Store) SelectWhere(bundlePath string, pred func(domain.FileEntry) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[bundlePath]
	if !ok {
		return 0, ErrUnknownRecord
	}
	if s.locked[bundlePath] {
		return 0, ErrRecordLocked
	}
	n := 0
	files := s.apps[i].RelatedFiles
	for j := range files {
		files[j].Selected = pred(files[j])
		if files[j].Selected {
			n++
		}
	}
	return n, nil
}

// SelectedItems returns a removal item for every selected related file, in
// record order.
func (s *Store) SelectedItems() []domain.RemovalItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.RemovalItem
	for _, a := range s.apps {
		for _, f := range a.RelatedFiles {
			if f.Selected {
				items = append(items, domain.RemovalItem{Path: f.Path, Owner: a.Clone()})
			}
		}
	}
	return items
}

// begin marks the store read-only and locks the given records.
func (s *Store) begin(locks []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readOnly = true
	for _, p := range locks {
		s.locked[p] = true
	}
}

// end clears the read-only flag and all record locks.
func (s *Store) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readOnly = false
	s.locked = make(map[string]bool)
}

// publishScan replaces the record list in one step.
func (s *Store) publishScan(result *domain.ScanResult) {
	apps := make([]domain.AppRecord, len(result.Apps))
	for i, a := range result.Apps {
		apps[i] = a.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps = apps
	s.diagnostics = append([]domain.Diagnostic(nil), result.Diagnostics...)
	s.outcomes = nil
	s.scannedAt = time.Now()
	s.reindex()
}

// publishRecord replaces one record in place. Selection flags carry over for
// related files still present; new ones start unselected. Diagnostics are
// merged into the current list.
func (s *Store) publishRecord(rec domain.AppRecord, diags []domain.Diagnostic) error {
	rec = rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[rec.BundlePath]
	if !ok {
		return ErrUnknownRecord
	}

	selected := make(map[string]bool)
	for _, f := range s.apps[i].RelatedFiles {
		if f.Selected {
			selected[f.Path] = true
		}
	}
	for j := range rec.RelatedFiles {
		rec.RelatedFiles[j].Selected = selected[rec.RelatedFiles[j].Path]
	}
	s.apps[i] = rec

	for _, d := range diags {
		if !containsDiagnostic(s.diagnostics, d) {
			s.diagnostics = append(s.diagnostics, d)
		}
	}
	return nil
}

func containsDiagnostic(list []domain.Diagnostic, d domain.Diagnostic) bool {
	for _, x := range list {
		if x.Path == d.Path && x.Op == d.Op {
			return true
		}
	}
	return false
}

// publishRemoval records outcomes and drops moved paths from the record list.
// A record whose bundle was moved is dropped entirely.
func (s *Store) publishRemoval(outcomes []domain.RemovalOutcome) {
	moved := make(map[string]bool)
	for _, o := range outcomes {
		if o.Succeeded() {
			moved[o.Path] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes = append([]domain.RemovalOutcome(nil), outcomes...)
	if len(moved) == 0 {
		return
	}

	apps := make([]domain.AppRecord, 0, len(s.apps))
	for _, a := range s.apps {
		if moved[a.BundlePath] {
			continue
		}
		kept := make([]domain.FileEntry, 0, len(a.RelatedFiles))
		for _, f := range a.RelatedFiles {
			if !moved[f.Path] {
				kept = append(kept, f)
			}
		}
		a.RelatedFiles = kept
		apps = append(apps, a)
	}
	s.apps = apps
	s.reindex()
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.apps))
	for i, a := range s.apps {
		s.index[a.BundlePath] = i
	}
}
