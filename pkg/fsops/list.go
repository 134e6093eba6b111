package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// List returns the names of location's children accepted by filter, in
// directory listing order.
func List(location string, filter Filter) ([]string, error) {
	return listNames(location, filter, func(Entry) bool { return true })
}

// ListDirs is List restricted to directories. Symlinks to directories count
// as directories.
func ListDirs(location string, filter Filter) ([]string, error) {
	return listNames(location, filter, Entry.ResolvesToDir)
}

// ListFiles is List restricted to everything that is not a directory.
func ListFiles(location string, filter Filter) ([]string, error) {
	return listNames(location, filter, func(e Entry) bool { return !e.ResolvesToDir() })
}

// ListEntries returns location's children with their metadata.
func ListEntries(location string) ([]Entry, error) {
	return readDir(location, "")
}

func listNames(location string, filter Filter, keep func(Entry) bool) ([]string, error) {
	entries, err := readDir(location, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !filter.accept(e) || !keep(e) {
			continue
		}
		out = append(out, e.Name)
	}
	return out, nil
}

// ResolvesToDir reports whether e is a directory or a symlink to one.
func (e Entry) ResolvesToDir() bool {
	if e.Kind != Symlink {
		return e.Kind == Directory
	}
	info, err := os.Stat(e.Path)
	return err == nil && info.IsDir()
}

// ListOptions configures ListAll.
type ListOptions struct {
	// Follow descends into symlinked directories. Cycles are visited once.
	Follow bool
	// Filter selects which paths are returned. Rejected directories are
	// still descended into.
	Filter Filter
}

// ListAll returns every path below location, depth first: each directory is
// followed by its own subtree before its next sibling, and siblings come in
// name order as os.ReadDir reports them.
func ListAll(location string, opts ListOptions) ([]string, error) {
	root := filepath.Clean(location)
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	conf := fastwalk.Config{Follow: opts.Follow}

	// fastwalk visits directories concurrently, so children are grouped by
	// parent and the tree is laid out afterwards.
	var (
		mu       sync.Mutex
		children = map[string][]walkNode{}
	)
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		p = filepath.Clean(p)
		if p == root {
			return nil
		}
		keep := true
		if opts.Filter != nil {
			e, err := walkEntry(root, p, opts.Follow)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			keep = opts.Filter(e)
		}
		parent := filepath.Dir(p)
		mu.Lock()
		children[parent] = append(children[parent], walkNode{path: p, keep: keep})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []string
	var emit func(dir string)
	emit = func(dir string) {
		nodes := children[dir]
		sort.Slice(nodes, func(i, j int) bool {
			return filepath.Base(nodes[i].path) < filepath.Base(nodes[j].path)
		})
		for _, n := range nodes {
			if n.keep {
				out = append(out, n.path)
			}
			emit(n.path)
		}
	}
	emit(root)
	return out, nil
}

type walkNode struct {
	path string
	keep bool
}

func walkEntry(root, p string, follow bool) (Entry, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return Entry{}, err
	}
	stat := os.Lstat
	if follow {
		stat = os.Stat
	}
	info, err := stat(p)
	if err != nil {
		return Entry{}, err
	}
	return newEntry(p, filepath.ToSlash(rel), info), nil
}
