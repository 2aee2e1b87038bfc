package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the privilege level the tool runs with.
type ExecMode string

const (
	// ExecModeUser runs as the invoking user; system roots may be unreadable.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root (sudo); system receipts become readable.
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds the paths that depend on who we run as.
type ExecModeConfig struct {
	Mode              ExecMode
	Home              string   // Real user's home, even under sudo
	SystemRoot        string   // Prefix for system-wide roots ("/" outside tests)
	InstallationRoots []string // Where .app bundles are looked for
	IsRoot            bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	isRoot := os.Geteuid() == 0
	mode := ExecModeUser
	if isRoot {
		mode = ExecModeSystem
	}
	return NewExecModeConfig(mode, GetRealUserHome(), "/", isRoot)
}

// NewExecModeConfig builds a config for explicit home and system root (for testing).
func NewExecModeConfig(mode ExecMode, home, systemRoot string, isRoot bool) *ExecModeConfig {
	return &ExecModeConfig{
		Mode:       mode,
		Home:       home,
		SystemRoot: systemRoot,
		InstallationRoots: []string{
			filepath.Join(home, "Applications"),
			filepath.Join(systemRoot, "Applications"),
		},
		IsRoot: isRoot,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root, system roots readable)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
