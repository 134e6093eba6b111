package treefs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/tg123/treeops/pkg/fsops"
)

type localFS struct{}

func (localFS) Match(string) bool {
	return true
}

func (localFS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (localFS) Write(ctx context.Context, path string, r io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsops.MkdirAll(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}

func (localFS) List(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		path = "."
	}
	entries, err := fsops.ListEntries(path)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fromFsops(e))
	}
	return out, nil
}

func (localFS) ListRecursive(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		path = "."
	}
	var out []Entry
	files := func(e fsops.Entry) bool { return e.Kind == fsops.Regular }
	paths, err := fsops.ListAll(path, fsops.ListOptions{Filter: files})
	if err != nil {
		return nil, err
	}
	root := filepath.Clean(path)
	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Name:    filepath.ToSlash(rel),
			Path:    p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (localFS) Stat(ctx context.Context, path string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}, nil
}

func (localFS) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fsops.Remove(path)
}

func fromFsops(e fsops.Entry) Entry {
	return Entry{
		Name:    e.Name,
		Path:    e.Path,
		Size:    e.Size,
		IsDir:   e.Kind == fsops.Directory,
		ModTime: e.ModTime,
	}
}
