package infra

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() *FileSystemManagerImpl {
	return &FileSystemManagerImpl{homeDir: GetRealUserHome()}
}

// NewFileSystemManagerWithHome creates a filesystem manager with custom home (for testing).
func NewFileSystemManagerWithHome(home string) *FileSystemManagerImpl {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists. Symlinks are not followed, so a dangling
// link still counts as present.
func (fm *FileSystemManagerImpl) Exists(path string) (bool, error) {
	_, err := os.Lstat(fm.ExpandHome(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadDir lists the immediate children of dir, sorted by name.
func (fm *FileSystemManagerImpl) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(fm.ExpandHome(dir))
}

// Size returns the byte size of path. Directories are summed recursively
// without following symlinks; anything unreadable contributes zero.
func (fm *FileSystemManagerImpl) Size(path string) int64 {
	path = fm.ExpandHome(path)

	info, err := os.Lstat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}

	var total int64
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, keep walking the rest.
			if d != nil && d.IsDir() && p != path {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// HomeDir returns the home directory used for expansion.
func (fm *FileSystemManagerImpl) HomeDir() string {
	return fm.homeDir
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
