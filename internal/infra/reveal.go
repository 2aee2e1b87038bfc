package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// Revealer shows a path in the platform file manager.
type Revealer struct {
	goos   string
	runner CommandRunner
	logger *zap.Logger
}

// NewRevealer creates a revealer for the current platform.
func NewRevealer(runner CommandRunner, logger *zap.Logger) *Revealer {
	return NewRevealerForOS(runtime.GOOS, runner, logger)
}

// NewRevealerForOS creates a revealer for goos (for testing).
func NewRevealerForOS(goos string, runner CommandRunner, logger *zap.Logger) *Revealer {
	return &Revealer{goos: goos, runner: runner, logger: logger}
}

// Reveal selects path in Finder on macOS, or opens its parent folder on
// freedesktop systems. Other platforms return domain.ErrUnsupported.
func (r *Revealer) Reveal(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(abs); err != nil {
		return err
	}

	var name string
	var args []string
	switch r.goos {
	case "darwin":
		name, args = "open", []string{"-R", abs}
	case "linux", "freebsd", "openbsd", "netbsd":
		name, args = "xdg-open", []string{filepath.Dir(abs)}
	default:
		return fmt.Errorf("reveal on %s: %w", r.goos, domain.ErrUnsupported)
	}

	r.logger.Debug("revealing path", zap.String("path", abs), zap.String("command", name))
	if _, err := r.runner.Run(name, args...); err != nil {
		return fmt.Errorf("reveal %s: %w", abs, err)
	}
	return nil
}
