// Package treefs resolves a path to the backend that stores it, so trees can
// be read, listed, copied and removed the same way on local disk and in Azure
// Blob Storage.
package treefs

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tg123/treeops/internal/azblob"
)

// Backend provides access to one kind of storage.
type Backend interface {
	Match(path string) bool
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, r io.Reader) error
	List(ctx context.Context, path string) ([]Entry, error)
	// ListRecursive returns every file below path. Entry.Name is the slash
	// separated path relative to path.
	ListRecursive(ctx context.Context, path string) ([]Entry, error)
	Stat(ctx context.Context, path string) (Entry, error)
	Remove(ctx context.Context, path string) error
}

// Entry is backend-neutral metadata.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

var (
	backendsMu sync.RWMutex
	backends   []Backend
	azBackend  = &azFS{store: azblob.New(azblob.OptionsFromEnv())}
	local      = localFS{}
)

func init() {
	Register(azBackend)
}

// Register adds a backend. Backends are tried in registration order and
// paths nothing claims are local.
func Register(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends = append(backends, b)
}

// Resolve returns the first backend that matches path.
func Resolve(path string) Backend {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	for _, b := range backends {
		if b.Match(path) {
			return b
		}
	}
	return local
}

// SetAzureOptions replaces the endpoint and credentials used for az:// paths.
func SetAzureOptions(opts azblob.Options) {
	azBackend.setStore(azblob.New(opts))
}

// IsAz reports whether path refers to an Azure blob resource.
func IsAz(path string) bool {
	return strings.HasPrefix(path, "az://") || azblob.IsBlobURL(path)
}

// IsLocal reports whether path is served by the local backend.
func IsLocal(path string) bool {
	_, ok := Resolve(path).(localFS)
	return ok
}
