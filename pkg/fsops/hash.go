package fsops

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// ContentHash returns the hex SHA-256 of every file below location that
// filter accepts, concatenated in depth-first listing order. Symlinks
// contribute their target string, not the content they point at.
func ContentHash(location string, filter Filter) (string, error) {
	h := sha256.New()
	if err := HashTree(h, location, filter); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashTree writes the content ContentHash digests into h. Directories are
// always descended; filter applies to the files inside them. When location
// is not a directory it is hashed on its own.
func HashTree(h hash.Hash, location string, filter Filter) error {
	e, err := lstatEntry(location, "")
	if err != nil {
		return err
	}
	buf := make([]byte, copyBufferSize)
	if e.Kind != Directory {
		return hashEntry(h, e, buf)
	}
	return hashDir(h, e, filter, buf)
}

func hashDir(h hash.Hash, e Entry, filter Filter, buf []byte) error {
	children, err := readDir(e.Path, e.Rel)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.Kind == Directory {
			if err := hashDir(h, c, filter, buf); err != nil {
				return err
			}
			continue
		}
		if !filter.accept(c) {
			continue
		}
		if err := hashEntry(h, c, buf); err != nil {
			return err
		}
	}
	return nil
}

func hashEntry(h hash.Hash, e Entry, buf []byte) error {
	switch e.Kind {
	case Symlink:
		target, err := os.Readlink(e.Path)
		if err != nil {
			return err
		}
		_, err = io.WriteString(h, target)
		return err
	case Regular:
		f, err := os.Open(e.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.CopyBuffer(h, f, buf)
		return err
	}
	return nil
}
