package fsops

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Copy copies src to dest.
//
// A regular file is copied byte for byte and dest gets src's permission
// bits; missing parent directories are created. A symlink is recreated at
// dest with the same target, replacing whatever was there. A directory is
// copied recursively into dest, which may already exist; its existing
// content is kept and same-named files are overwritten. Children rejected by
// filter are skipped at every depth.
//
// Copying a file onto itself fails with ErrSameFile and copying a directory
// into its own subtree fails with ErrDestInsideSource.
func Copy(src, dest string, filter Filter) error {
	e, err := lstatEntry(src, "")
	if err != nil {
		return err
	}
	if e.Kind == Directory {
		if err := checkDirTarget("copy", src, dest); err != nil {
			return err
		}
		if info, err := os.Lstat(src); err == nil && sameFile(info, dest) {
			return &fs.PathError{Op: "copy", Path: dest, Err: ErrSameFile}
		}
	}
	return copyEntry(e, dest, filter)
}

func copyEntry(e Entry, dest string, filter Filter) error {
	switch e.Kind {
	case Regular:
		return copyFile(e, dest)
	case Symlink:
		return copySymlink(e, dest)
	case Directory:
		return copyDir(e, dest, filter)
	default:
		return &fs.PathError{Op: "copy", Path: e.Path, Err: ErrUnsupportedKind}
	}
}

func copyDir(e Entry, dest string, filter Filter) error {
	if err := MkdirAll(dest); err != nil {
		return err
	}
	children, err := readDir(e.Path, e.Rel)
	if err != nil {
		return err
	}
	for _, c := range children {
		if !filter.accept(c) {
			continue
		}
		if err := copyEntry(c, filepath.Join(dest, c.Name), filter); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(e Entry, dest string) (err error) {
	if err := MkdirAll(filepath.Dir(dest)); err != nil {
		return err
	}
	in, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	// O_TRUNC below would empty the source
	if sameFile(info, dest) {
		return &fs.PathError{Op: "copy", Path: dest, Err: ErrSameFile}
	}

	mode := preservedMode(e.Mode)
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	// OpenFile is subject to umask and leaves an existing file's mode alone
	return out.Chmod(mode)
}

func copySymlink(e Entry, dest string) error {
	target, err := os.Readlink(e.Path)
	if err != nil {
		return err
	}
	if err := MkdirAll(filepath.Dir(dest)); err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(target, dest)
}

func preservedMode(m fs.FileMode) fs.FileMode {
	return m & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
}
