// Package catalog holds the declarative table of search roots that auxiliary
// app files are correlated against. Each entry pairs a root directory with a
// category and a matching rule; the correlator evaluates entries as data.
package catalog

import (
	"path/filepath"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// Version identifies the revision of the default table.
// Bump it whenever roots or rules change.
const Version = 1

// Scope says whether a root is per-user or system-wide.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// Entry is one (search_root, category, matching_rule) row.
type Entry struct {
	Root     string
	Category domain.Category
	Rule     domain.MatchRule
	Scope    Scope
	// Suffix is appended to the key by exact rules (e.g. ".plist").
	Suffix string
}

// Candidate returns the exact path for key, or "" when the rule is a wildcard
// or the key cannot name a direct child of the root.
func (e Entry) Candidate(key string) string {
	if e.Rule.Wildcard() || !validKey(key) {
		return ""
	}
	p := filepath.Join(e.Root, key+e.Suffix)
	if !domain.IsDescendant(e.Root, p) || filepath.Dir(p) != filepath.Clean(e.Root) {
		return ""
	}
	return p
}

// Key picks the identifier or the display name, depending on the rule.
func (e Entry) Key(identifier, displayName string) string {
	if e.Rule.ByName() {
		return displayName
	}
	return identifier
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		if r == '/' || r == filepath.Separator || r == 0 {
			return false
		}
	}
	return true
}
