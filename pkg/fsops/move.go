package fsops

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

// Move moves src to dest.
//
// Each entry is renamed when possible and copied then removed otherwise,
// which covers moves across filesystems. A directory is never renamed as a
// whole: dest is created and the children are moved one by one. When filter
// rejects anything below src, the rejected entries stay where they are and so
// do their parent directories; src is removed only once it is empty.
// Moving a directory onto itself is a no-op and moving it into its own
// subtree fails with ErrDestInsideSource.
func Move(src, dest string, filter Filter) error {
	e, err := lstatEntry(src, "")
	if err != nil {
		return err
	}
	if e.Kind == Directory {
		err := checkDirTarget("move", src, dest)
		if errors.Is(err, ErrSameFile) {
			return nil
		}
		if err != nil {
			return err
		}
		if info, err := os.Lstat(src); err == nil && sameFile(info, dest) {
			return nil
		}
	}
	if e.Kind != Directory {
		if err := MkdirAll(filepath.Dir(dest)); err != nil {
			return err
		}
		return moveEntry(e, dest)
	}
	_, err = moveDir(e, dest, filter)
	return err
}

func moveEntry(e Entry, dest string) error {
	err := os.Rename(e.Path, dest)
	if err == nil {
		return nil
	}
	if isCrossDevice(err) {
		slog.Debug("rename crosses devices, falling back to copy", "src", e.Path, "dest", dest)
	} else {
		slog.Debug("rename failed, falling back to copy", "src", e.Path, "dest", dest, "err", err)
	}
	if err := copyEntry(e, dest, nil); err != nil {
		return err
	}
	return Remove(e.Path)
}

// moveDir reports whether e was emptied and removed.
func moveDir(e Entry, dest string, filter Filter) (bool, error) {
	if err := MkdirAll(dest); err != nil {
		return false, err
	}
	children, err := readDir(e.Path, e.Rel)
	if err != nil {
		return false, err
	}

	complete := true
	for _, c := range children {
		target := filepath.Join(dest, c.Name)
		if !filter.accept(c) {
			complete = false
			continue
		}
		if c.Kind == Directory && filter != nil {
			done, err := moveDir(c, target, filter)
			if err != nil {
				return false, err
			}
			complete = complete && done
			continue
		}
		if err := moveEntry(c, target); err != nil {
			return false, err
		}
	}

	if !complete {
		slog.Debug("source not emptied, keeping it", "src", e.Path)
		return false, nil
	}
	return true, os.Remove(e.Path)
}
