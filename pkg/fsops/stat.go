package fsops

import (
	"os"
	"time"
)

// CanExecute reports whether the owner execute bit is set on path.
// It returns false when path cannot be stat'ed.
func CanExecute(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o100 != 0
}

// NewerThan reports whether any non-directory entry below location that
// filter accepts was modified after t. The walk stops at the first hit.
// Symlinks are judged by their own modification time.
func NewerThan(location string, filter Filter, t time.Time) (bool, error) {
	return newerIn(location, "", filter, t)
}

func newerIn(dir, rel string, filter Filter, t time.Time) (bool, error) {
	children, err := readDir(dir, rel)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if c.Kind == Directory {
			found, err := newerIn(c.Path, c.Rel, filter, t)
			if err != nil || found {
				return found, err
			}
			continue
		}
		if filter.accept(c) && c.ModTime.After(t) {
			return true, nil
		}
	}
	return false, nil
}
