package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/Bios-Marcel/wastebasket/v2"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// TrashFlavor selects the platform's holding-area layout.
type TrashFlavor string

const (
	// FlavorMacOS moves items into ~/.Trash, falling back to Finder across volumes.
	FlavorMacOS TrashFlavor = "macos"
	// FlavorFreedesktop hands items to wastebasket, which follows the XDG trash layout.
	FlavorFreedesktop TrashFlavor = "freedesktop"
	// FlavorNone means no reversible holding area is available.
	FlavorNone TrashFlavor = "none"
)

// maxUniqueAttempts bounds the search for a free name inside the trash.
const maxUniqueAttempts = 10000

// freedesktopDestination is reported for items wastebasket trashed; it does
// not say which name it picked.
const freedesktopDestination = "Trash"

// Trash implements domain.Relocator. It never deletes anything: an item either
// ends up in the trash or stays where it was.
type Trash struct {
	flavor TrashFlavor
	dir    string
	runner CommandRunner
	logger *zap.Logger
	trash  func(paths ...string) error
}

// NewTrash creates the trash for the current platform and the given home.
func NewTrash(home string, logger *zap.Logger) *Trash {
	switch runtime.GOOS {
	case "darwin":
		return NewTrashWithDir(FlavorMacOS, filepath.Join(home, ".Trash"), &RealCommandRunner{}, logger)
	case "linux", "freebsd", "openbsd", "netbsd":
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		return NewTrashWithDir(FlavorFreedesktop, filepath.Join(dataHome, "Trash"), &RealCommandRunner{}, logger)
	default:
		return NewTrashWithDir(FlavorNone, "", nil, logger)
	}
}

// NewTrashWithDir creates a trash with an explicit layout and location (for testing).
func NewTrashWithDir(flavor TrashFlavor, dir string, runner CommandRunner, logger *zap.Logger) *Trash {
	return &Trash{
		flavor: flavor,
		dir:    dir,
		runner: runner,
		logger: logger,
		trash:  wastebasket.Trash,
	}
}

// Dir returns the trash location.
func (t *Trash) Dir() string {
	return t.dir
}

// Supported checks that the holding area exists or can be created.
func (t *Trash) Supported() error {
	switch t.flavor {
	case FlavorMacOS:
		if err := os.MkdirAll(t.dir, 0700); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnsupported, err)
		}
	case FlavorFreedesktop:
		for _, sub := range []string{"files", "info"} {
			if err := os.MkdirAll(filepath.Join(t.dir, sub), 0700); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrUnsupported, err)
			}
		}
	default:
		return domain.ErrUnsupported
	}
	return nil
}

// Relocate moves path into the trash and returns its new location.
func (t *Trash) Relocate(path string) (string, error) {
	if err := t.Supported(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	switch t.flavor {
	case FlavorMacOS:
		return t.relocateMacOS(abs)
	default:
		return t.relocateFreedesktop(abs)
	}
}

func (t *Trash) relocateMacOS(path string) (string, error) {
	dest, err := t.moveExclusive(path)
	if err == nil {
		return dest, nil
	}
	if !isCrossDevice(err) || t.runner == nil {
		return "", err
	}

	// Items on other volumes belong in that volume's .Trashes; Finder knows where.
	t.logger.Debug("cross-volume move, delegating to Finder", zap.String("path", path))
	script := fmt.Sprintf(`tell application "Finder" to delete POSIX file "%s"`, appleScriptQuote(path))
	if _, err := t.runner.Run("osascript", "-e", script); err != nil {
		return "", fmt.Errorf("finder trash: %w", err)
	}
	return "Finder Trash", nil
}

// moveExclusive renames path to the first free name in the trash. The rename
// itself refuses to replace an existing entry.
func (t *Trash) moveExclusive(path string) (string, error) {
	base := filepath.Base(path)
	for i := 1; i <= maxUniqueAttempts; i++ {
		dest := filepath.Join(t.dir, uniqueName(base, i))
		err := renameNoReplace(path, dest)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return dest, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", base, t.dir)
}

func (t *Trash) relocateFreedesktop(path string) (string, error) {
	// A vanished path must surface as fs.ErrNotExist, not as a successful trash.
	if _, err := os.Lstat(path); err != nil {
		return "", err
	}
	if err := t.trash(path); err != nil {
		return "", fmt.Errorf("trash %s: %w", path, err)
	}
	return freedesktopDestination, nil
}

// uniqueName returns the i-th candidate for base: "a.plist", "a 2.plist", ...
func uniqueName(base string, i int) string {
	if i <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return fmt.Sprintf("%s %d%s", stem, i, ext)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Ensure Trash implements domain.Relocator.
var _ domain.Relocator = (*Trash)(nil)
