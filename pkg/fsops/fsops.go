// Package fsops implements recursive tree operations over the local
// filesystem: copy, move, remove, list, hash and in-place substitution.
//
// Every call is synchronous and self-contained. Symlinks are never followed
// except by ListAll when Follow is set; they are copied, moved and hashed as
// links.
package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// copyBufferSize is the buffer used when duplicating file content.
const copyBufferSize = 64 * 1024

// dirPerm is the mode for directories created by MkdirAll.
const dirPerm fs.FileMode = 0o755

var (
	// ErrPathConflict is returned when a non-directory blocks directory creation.
	ErrPathConflict = errors.New("path exists and is not a directory")
	// ErrUnsupportedKind is returned for devices, sockets and pipes.
	ErrUnsupportedKind = errors.New("unsupported file type")
	// ErrSameFile is returned when source and destination are one file.
	ErrSameFile = errors.New("source and destination are the same file")
	// ErrDestInsideSource is returned when a directory would be copied or
	// moved into its own subtree.
	ErrDestInsideSource = errors.New("destination is inside the source directory")
)

// Kind classifies an entry as reported by lstat.
type Kind uint8

const (
	Regular Kind = iota
	Directory
	Symlink
	Other
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "file"
	case Directory:
		return "dir"
	case Symlink:
		return "symlink"
	default:
		return "other"
	}
}

func kindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return Regular
	case mode.IsDir():
		return Directory
	case mode&fs.ModeSymlink != 0:
		return Symlink
	default:
		return Other
	}
}

// Entry describes one filesystem object found during an operation.
type Entry struct {
	Name    string
	Path    string
	Rel     string // slash separated, relative to the operation root
	Kind    Kind
	Mode    fs.FileMode
	Size    int64
	ModTime time.Time
}

func newEntry(p, rel string, info fs.FileInfo) Entry {
	return Entry{
		Name:    info.Name(),
		Path:    p,
		Rel:     rel,
		Kind:    kindOf(info.Mode()),
		Mode:    info.Mode(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func lstatEntry(p, rel string) (Entry, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return Entry{}, err
	}
	return newEntry(p, rel, info), nil
}

// sameFile reports whether dest already exists and is the object at src.
// dest is followed, so a link to src counts.
func sameFile(src fs.FileInfo, dest string) bool {
	info, err := os.Stat(dest)
	return err == nil && os.SameFile(src, info)
}

// checkDirTarget rejects dest when it is src itself or lies below it.
func checkDirTarget(op, src, dest string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absSrc, absDest)
	if err != nil {
		return nil
	}
	switch {
	case rel == ".":
		return &fs.PathError{Op: op, Path: dest, Err: ErrSameFile}
	case rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return nil
	default:
		return &fs.PathError{Op: op, Path: dest, Err: ErrDestInsideSource}
	}
}

// Filter decides whether an entry takes part in an operation.
// A nil Filter accepts everything.
type Filter func(Entry) bool

func (f Filter) accept(e Entry) bool {
	return f == nil || f(e)
}

// MatchRegexp accepts entries whose name matches re.
func MatchRegexp(re *regexp.Regexp) Filter {
	return func(e Entry) bool { return re.MatchString(e.Name) }
}

// MatchGlob accepts entries whose relative path matches a doublestar pattern
// such as "**/*.go". Patterns without a slash are matched against the name.
func MatchGlob(pattern string) (Filter, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &fs.PathError{Op: "glob", Path: pattern, Err: doublestar.ErrBadPattern}
	}
	byName := !containsSlash(pattern)
	return func(e Entry) bool {
		target := e.Rel
		if byName {
			target = e.Name
		}
		ok, _ := doublestar.Match(pattern, target)
		return ok
	}, nil
}

// Exclude inverts f.
func Exclude(f Filter) Filter {
	if f == nil {
		return func(Entry) bool { return false }
	}
	return func(e Entry) bool { return !f(e) }
}

// All accepts an entry only if every non-nil filter does.
func All(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(e Entry) bool {
		for _, f := range active {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

func childRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return path.Join(rel, name)
}

// readDir returns the children of dir as entries, in os.ReadDir order.
func readDir(dir, rel string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, newEntry(filepath.Join(dir, de.Name()), childRel(rel, de.Name()), info))
	}
	return out, nil
}
