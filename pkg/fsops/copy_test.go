package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestCopyTreeWithSymlink(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	writeFile(t, filepath.Join(a, "x.txt"), "hi", 0o644)
	symlink(t, "x.txt", filepath.Join(a, "link"))

	if err := Copy(a, b, nil); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	if got := readFile(t, filepath.Join(b, "x.txt")); got != "hi" {
		t.Fatalf("unexpected content %q", got)
	}
	info, err := os.Stat(filepath.Join(b, "x.txt"))
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}

	linfo, err := os.Lstat(filepath.Join(b, "link"))
	if err != nil {
		t.Fatalf("lstat link: %v", err)
	}
	if linfo.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected symlink, got %v", linfo.Mode())
	}
	target, err := os.Readlink(filepath.Join(b, "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "x.txt" {
		t.Fatalf("unexpected link target %q", target)
	}
}

func TestCopyFilePreservesMode(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "run.sh")
	writeFile(t, src, "#!/bin/sh\n", 0o750)
	dest := filepath.Join(root, "out", "nested", "run.sh")

	if err := Copy(src, dest, nil); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o750 {
		t.Fatalf("expected 0750, got %v", info.Mode().Perm())
	}
}

func TestCopyLargeFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "big")
	content := strings.Repeat("0123456789abcdef", copyBufferSize/8+3)
	writeFile(t, src, content, 0o600)

	dest := filepath.Join(root, "big.copy")
	if err := Copy(src, dest, nil); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if got := readFile(t, dest); got != content {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(got), len(content))
	}
}

func TestCopyOverwritesAndKeepsExisting(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(src, "same.txt"), "new", 0o644)
	writeFile(t, filepath.Join(dest, "same.txt"), "old content", 0o644)
	writeFile(t, filepath.Join(dest, "keep.txt"), "keep", 0o644)
	symlink(t, "elsewhere", filepath.Join(dest, "link"))
	symlink(t, "same.txt", filepath.Join(src, "link"))

	if err := Copy(src, dest, nil); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "same.txt")); got != "new" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "keep.txt")); got != "keep" {
		t.Fatalf("existing file lost, got %q", got)
	}
	target, err := os.Readlink(filepath.Join(dest, "link"))
	if err != nil || target != "same.txt" {
		t.Fatalf("expected replaced link to same.txt, got %q (%v)", target, err)
	}
}

func TestCopyFilter(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a", 0o644)
	writeFile(t, filepath.Join(src, "b.log"), "b", 0o644)
	writeFile(t, filepath.Join(src, "sub", "c.txt"), "c", 0o644)
	writeFile(t, filepath.Join(src, "sub", "d.log"), "d", 0o644)

	logs := MatchRegexp(regexp.MustCompile(`\.log$`))
	dest := filepath.Join(root, "dest")
	if err := Copy(src, dest, Exclude(logs)); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	for _, p := range []string{"a.txt", "sub/c.txt"} {
		if !exists(filepath.Join(dest, p)) {
			t.Fatalf("expected %s to be copied", p)
		}
	}
	for _, p := range []string{"b.log", "sub/d.log"} {
		if exists(filepath.Join(dest, p)) {
			t.Fatalf("expected %s to be skipped", p)
		}
	}
}

func TestCopyMissingSource(t *testing.T) {
	root := t.TempDir()
	err := Copy(filepath.Join(root, "nope"), filepath.Join(root, "dest"), nil)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestCopyDestParentConflict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src.txt"), "x", 0o644)
	writeFile(t, filepath.Join(root, "blocker"), "x", 0o644)

	err := Copy(filepath.Join(root, "src.txt"), filepath.Join(root, "blocker", "dest.txt"), nil)
	if !errors.Is(err, ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict, got %v", err)
	}
}

func TestCopyFileOntoItself(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "f.txt")
	writeFile(t, p, "hello", 0o644)

	if err := Copy(p, p, nil); !errors.Is(err, ErrSameFile) {
		t.Fatalf("expected ErrSameFile, got %v", err)
	}
	if got := readFile(t, p); got != "hello" {
		t.Fatalf("source content lost: %q", got)
	}

	// a link pointing back at the source is the same file too
	link := filepath.Join(root, "link")
	symlink(t, "f.txt", link)
	if err := Copy(p, link, nil); !errors.Is(err, ErrSameFile) {
		t.Fatalf("expected ErrSameFile through link, got %v", err)
	}
	if got := readFile(t, p); got != "hello" {
		t.Fatalf("source content lost through link: %q", got)
	}
}

func TestCopyDirIntoItself(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a")
	writeFile(t, filepath.Join(src, "x.txt"), "x", 0o644)

	if err := Copy(src, filepath.Join(src, "b"), nil); !errors.Is(err, ErrDestInsideSource) {
		t.Fatalf("expected ErrDestInsideSource, got %v", err)
	}
	if exists(filepath.Join(src, "b")) {
		t.Fatal("destination created inside source")
	}
	if err := Copy(src, src, nil); !errors.Is(err, ErrSameFile) {
		t.Fatalf("expected ErrSameFile, got %v", err)
	}
	// a sibling sharing the prefix is fine
	if err := Copy(src, filepath.Join(root, "ab"), nil); err != nil {
		t.Fatalf("Copy to sibling: %v", err)
	}
}
