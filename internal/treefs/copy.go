package treefs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tg123/treeops/pkg/fsops"
)

// CopyTree copies src to dst across any pair of backends. Local to local
// copies go through fsops.Copy so modes and symlinks survive. Otherwise
// every file below src that filter accepts is streamed to the same
// relative path below dst. It returns the number of files streamed; a local
// copy reports 0.
func CopyTree(ctx context.Context, src, dst string, filter fsops.Filter) (int, error) {
	if IsLocal(src) && IsLocal(dst) {
		return 0, fsops.Copy(src, dst, filter)
	}

	srcFS := Resolve(src)
	dstFS := Resolve(dst)
	st, err := srcFS.Stat(ctx, src)
	if err != nil {
		return 0, err
	}
	if !st.IsDir {
		if IsAz(dst) && strings.HasSuffix(dst, "/") {
			dst += path.Base(filepath.ToSlash(src))
		}
		if err := copyOne(ctx, srcFS, src, dstFS, dst); err != nil {
			return 0, err
		}
		return 1, nil
	}

	files, err := srcFS.ListRecursive(ctx, src)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !accept(filter, f) {
			continue
		}
		target := joinPath(dst, f.Name)
		slog.Debug("copy", "src", f.Path, "dst", target)
		if err := copyOne(ctx, srcFS, f.Path, dstFS, target); err != nil {
			return n, fmt.Errorf("copy %s: %w", f.Path, err)
		}
		n++
	}
	return n, nil
}

func copyOne(ctx context.Context, srcFS Backend, src string, dstFS Backend, dst string) error {
	r, err := srcFS.Read(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()
	return dstFS.Write(ctx, dst, r)
}

// Hash returns the hex SHA-256 of the content of every file below p that
// filter accepts, in sorted relative-path order. A single file hashes alone.
func Hash(ctx context.Context, p string, filter fsops.Filter) (string, error) {
	b := Resolve(p)
	st, err := b.Stat(ctx, p)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if !st.IsDir {
		if err := hashOne(ctx, b, p, h); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	files, err := ListTree(ctx, p, filter)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if err := hashOne(ctx, b, f.Path, h); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ListTree returns the files below p that filter accepts, sorted by
// relative path.
func ListTree(ctx context.Context, p string, filter fsops.Filter) ([]Entry, error) {
	files, err := Resolve(p).ListRecursive(ctx, p)
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if accept(filter, f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hashOne(ctx context.Context, b Backend, p string, w io.Writer) error {
	r, err := b.Read(ctx, p)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}

// joinPath appends a slash separated relative path to a local path or URL.
func joinPath(base, rel string) string {
	if !IsLocal(base) {
		return strings.TrimSuffix(base, "/") + "/" + rel
	}
	return filepath.Join(base, filepath.FromSlash(rel))
}

// accept applies filter to a file entry whose Name is its relative path.
func accept(filter fsops.Filter, e Entry) bool {
	if filter == nil {
		return true
	}
	return filter(fsops.Entry{
		Name:    path.Base(e.Name),
		Path:    e.Path,
		Rel:     e.Name,
		Kind:    fsops.Regular,
		Size:    e.Size,
		ModTime: e.ModTime,
	})
}
