package catalog

import (
	"path/filepath"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// Registry holds the ordered search-root table.
// Entry order is significant: when several rules yield the same path,
// the earliest entry wins.
type Registry struct {
	entries []Entry
}

// NewRegistryWithHome creates the default table rooted at home and systemRoot.
// Callers pass the real user's home so that sudo invocations search it.
func NewRegistryWithHome(home, systemRoot string) *Registry {
	lib := filepath.Join(home, "Library")
	sysLib := filepath.Join(systemRoot, "Library")

	prefs := filepath.Join(lib, "Preferences")
	support := filepath.Join(lib, "Application Support")
	caches := filepath.Join(lib, "Caches")
	logs := filepath.Join(lib, "Logs")
	agents := filepath.Join(lib, "LaunchAgents")
	containers := filepath.Join(lib, "Containers")

	sysPrefs := filepath.Join(sysLib, "Preferences")
	sysSupport := filepath.Join(sysLib, "Application Support")
	sysReceipts := filepath.Join(sysLib, "Receipts")
	receiptsDB := filepath.Join(systemRoot, "private", "var", "db", "receipts")

	return NewRegistryWithEntries(
		// User-space
		Entry{Root: prefs, Category: domain.CategoryPreferences, Rule: domain.ExactByIdentifier, Scope: ScopeUser, Suffix: ".plist"},
		Entry{Root: prefs, Category: domain.CategoryPreferences, Rule: domain.PrefixByIdentifier, Scope: ScopeUser},
		Entry{Root: prefs, Category: domain.CategoryPreferences, Rule: domain.PrefixByName, Scope: ScopeUser},

		Entry{Root: support, Category: domain.CategorySupport, Rule: domain.ExactByIdentifier, Scope: ScopeUser},
		Entry{Root: support, Category: domain.CategorySupport, Rule: domain.ExactByName, Scope: ScopeUser},

		Entry{Root: caches, Category: domain.CategoryCache, Rule: domain.ExactByIdentifier, Scope: ScopeUser},
		Entry{Root: caches, Category: domain.CategoryCache, Rule: domain.PrefixByIdentifier, Scope: ScopeUser},
		Entry{Root: caches, Category: domain.CategoryCache, Rule: domain.ExactByName, Scope: ScopeUser},

		Entry{Root: logs, Category: domain.CategoryLogs, Rule: domain.ExactByIdentifier, Scope: ScopeUser},
		Entry{Root: logs, Category: domain.CategoryLogs, Rule: domain.ExactByName, Scope: ScopeUser},
		Entry{Root: logs, Category: domain.CategoryLogs, Rule: domain.PrefixByIdentifier, Scope: ScopeUser},

		Entry{Root: agents, Category: domain.CategoryAgent, Rule: domain.PrefixByIdentifier, Scope: ScopeUser},

		Entry{Root: containers, Category: domain.CategoryContainer, Rule: domain.ExactByIdentifier, Scope: ScopeUser},
		Entry{Root: containers, Category: domain.CategoryContainer, Rule: domain.PrefixByIdentifier, Scope: ScopeUser},

		// System-wide
		Entry{Root: sysPrefs, Category: domain.CategoryPreferences, Rule: domain.ExactByIdentifier, Scope: ScopeSystem, Suffix: ".plist"},

		Entry{Root: sysSupport, Category: domain.CategorySupport, Rule: domain.ExactByIdentifier, Scope: ScopeSystem},
		Entry{Root: sysSupport, Category: domain.CategorySupport, Rule: domain.ExactByName, Scope: ScopeSystem},

		Entry{Root: sysReceipts, Category: domain.CategoryReceipt, Rule: domain.PrefixByIdentifier, Scope: ScopeSystem},
		Entry{Root: sysReceipts, Category: domain.CategoryReceipt, Rule: domain.PrefixByName, Scope: ScopeSystem},

		Entry{Root: receiptsDB, Category: domain.CategoryReceipt, Rule: domain.PrefixByIdentifier, Scope: ScopeSystem},
	)
}

// NewRegistryWithEntries creates a registry with a custom table (for testing).
func NewRegistryWithEntries(entries ...Entry) *Registry {
	r := &Registry{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		r.Register(e)
	}
	return r
}

// Register appends an entry to the table.
func (r *Registry) Register(e Entry) {
	e.Root = filepath.Clean(e.Root)
	r.entries = append(r.entries, e)
}

// GetAll returns the table in evaluation order.
func (r *Registry) GetAll() []Entry {
	result := make([]Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Roots returns the distinct search roots in table order.
func (r *Registry) Roots() []string {
	seen := make(map[string]bool, len(r.entries))
	roots := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if !seen[e.Root] {
			seen[e.Root] = true
			roots = append(roots, e.Root)
		}
	}
	return roots
}

// RootOf returns the search root that path descends from.
func (r *Registry) RootOf(path string) (string, bool) {
	for _, root := range r.Roots() {
		if domain.IsDescendant(root, path) {
			return root, true
		}
	}
	return "", false
}
