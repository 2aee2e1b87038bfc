package infra

import (
	"errors"
	"io/fs"
	"os"
)

// renameIfAbsent is the check-then-rename fallback for platforms and
// filesystems without an exclusive rename.
func renameIfAbsent(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(oldpath, newpath)
}
