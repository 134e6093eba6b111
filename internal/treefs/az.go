package treefs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/tg123/treeops/internal/azblob"
)

type azFS struct {
	mu    sync.RWMutex
	store *azblob.Store
}

func (a *azFS) setStore(s *azblob.Store) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = s
}

func (a *azFS) s() *azblob.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

func (*azFS) Match(path string) bool {
	return IsAz(path)
}

func (a *azFS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	ap, err := azblob.Parse(path)
	if err != nil {
		return nil, err
	}
	return a.s().DownloadStream(ctx, ap)
}

func (a *azFS) Write(ctx context.Context, path string, r io.Reader) error {
	ap, err := azblob.Parse(path)
	if err != nil {
		return err
	}
	return a.s().UploadStream(ctx, ap, r)
}

func (a *azFS) List(ctx context.Context, path string) ([]Entry, error) {
	ap, err := azblob.Parse(path)
	if err != nil {
		return nil, err
	}
	list, err := a.s().List(ctx, ap)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list))
	for _, bm := range list {
		if bm.Name == "" {
			continue
		}
		entries = append(entries, Entry{
			Name:    bm.Name,
			Path:    azChildPath(ap, bm.Name),
			Size:    bm.Size,
			IsDir:   strings.HasSuffix(bm.Name, "/"),
			ModTime: bm.ModTime,
		})
	}
	return entries, nil
}

func (a *azFS) ListRecursive(ctx context.Context, path string) ([]Entry, error) {
	ap, err := azblob.Parse(path)
	if err != nil {
		return nil, err
	}
	list, err := a.s().ListRecursive(ctx, ap)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list))
	for _, bm := range list {
		if bm.Name == "" || strings.HasSuffix(bm.Name, "/") {
			continue
		}
		entries = append(entries, Entry{
			Name:    bm.Name,
			Path:    ap.WithDir().Child(bm.Name).String(),
			Size:    bm.Size,
			ModTime: bm.ModTime,
		})
	}
	return entries, nil
}

// Stat treats a blob name that only exists as a prefix as a directory.
func (a *azFS) Stat(ctx context.Context, target string) (Entry, error) {
	ap, err := azblob.Parse(target)
	if err != nil {
		return Entry{}, err
	}
	if ap.IsDirLike() {
		return Entry{Name: pathBase(ap.Blob), Path: ap.String(), IsDir: true}, nil
	}
	bm, err := a.s().HeadBlob(ctx, ap)
	if err == nil {
		return Entry{
			Name:    path.Base(ap.Blob),
			Path:    ap.String(),
			Size:    bm.Size,
			ModTime: bm.ModTime,
		}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Entry{}, err
	}
	children, lerr := a.s().ListRecursive(ctx, ap)
	if lerr != nil || len(children) == 0 {
		return Entry{}, err
	}
	return Entry{Name: path.Base(ap.Blob), Path: ap.WithDir().String(), IsDir: true}, nil
}

func (a *azFS) Remove(ctx context.Context, target string) error {
	ap, err := azblob.Parse(target)
	if err != nil {
		return err
	}
	if ap.IsDirLike() {
		return a.s().DeletePrefix(ctx, ap)
	}
	err = a.s().Delete(ctx, ap)
	if errors.Is(err, fs.ErrNotExist) {
		return a.s().DeletePrefix(ctx, ap.WithDir())
	}
	return err
}

func azChildPath(ap azblob.AzurePath, name string) string {
	trimmed := strings.TrimSuffix(name, "/")
	if ap.Container == "" {
		return azblob.AzurePath{Account: ap.Account, Container: trimmed}.String()
	}
	return ap.WithDir().Child(trimmed).String()
}

// pathBase returns the last path element, ignoring trailing slashes.
func pathBase(name string) string {
	trimmed := strings.TrimSuffix(name, "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}
