package fsops

import (
	"errors"
	"io/fs"
	"os"
)

// Remove deletes a file, symlink or directory tree. A missing path is not
// an error.
func Remove(p string) error {
	if err := os.RemoveAll(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveSymlinks deletes every symlink at or below root and nothing else.
func RemoveSymlinks(root string) error { return removeKind(root, Symlink) }

// RemoveFiles deletes every regular file at or below root. Directories,
// symlinks and special files are kept.
func RemoveFiles(root string) error { return removeKind(root, Regular) }

func removeKind(root string, kind Kind) error {
	e, err := lstatEntry(root, "")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return removeKindEntry(e, kind)
}

func removeKindEntry(e Entry, kind Kind) error {
	if e.Kind == Directory {
		children, err := readDir(e.Path, e.Rel)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, c := range children {
			if err := removeKindEntry(c, kind); err != nil {
				return err
			}
		}
		return nil
	}
	if e.Kind != kind {
		return nil
	}
	if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
