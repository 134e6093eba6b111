package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// MkdirAll creates dir and any missing parents, like mkdir -p.
// Existing directories are accepted; a path component that exists as
// anything else fails with ErrPathConflict.
func MkdirAll(dir string) error {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: dir, Err: ErrPathConflict}
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return err
	}

	if parent := filepath.Dir(dir); parent != dir {
		if err := MkdirAll(parent); err != nil {
			return err
		}
	}

	if err := os.Mkdir(dir, dirPerm); err != nil {
		// someone else may have created it in between
		info, serr := os.Stat(dir)
		if serr != nil {
			return err
		}
		if !info.IsDir() {
			return &fs.PathError{Op: "mkdir", Path: dir, Err: ErrPathConflict}
		}
	}
	return nil
}
