package fsops

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func writeFile(t *testing.T, p, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := os.Chmod(p, mode); err != nil {
		t.Fatalf("chmod %s: %v", p, err)
	}
}

func symlink(t *testing.T, target, p string) {
	t.Helper()
	if err := os.Symlink(target, p); err != nil {
		t.Fatalf("symlink %s -> %s: %v", p, target, err)
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(data)
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{Regular: "file", Directory: "dir", Symlink: "symlink", Other: "other"} {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestMatchGlob(t *testing.T) {
	byName, err := MatchGlob("*.go")
	if err != nil {
		t.Fatalf("MatchGlob: %v", err)
	}
	if !byName(Entry{Name: "main.go", Rel: "cmd/main.go"}) {
		t.Fatal("expected name match for nested file")
	}
	if byName(Entry{Name: "README.md", Rel: "README.md"}) {
		t.Fatal("unexpected match")
	}

	byPath, err := MatchGlob("pkg/**/*.go")
	if err != nil {
		t.Fatalf("MatchGlob: %v", err)
	}
	if !byPath(Entry{Name: "a.go", Rel: "pkg/x/y/a.go"}) {
		t.Fatal("expected ** match")
	}
	if byPath(Entry{Name: "a.go", Rel: "cmd/a.go"}) {
		t.Fatal("unexpected match outside pkg")
	}

	if _, err := MatchGlob("[unterminated"); err == nil {
		t.Fatal("expected error for bad pattern")
	}
}

func TestFilterCombinators(t *testing.T) {
	txt := MatchRegexp(regexp.MustCompile(`\.txt$`))
	notTmp := Exclude(MatchRegexp(regexp.MustCompile(`^tmp`)))
	f := All(txt, nil, notTmp)

	cases := map[string]bool{
		"a.txt":    true,
		"tmp.txt":  false,
		"a.log":    false,
		"tmpa.log": false,
	}
	for name, want := range cases {
		if got := f(Entry{Name: name}); got != want {
			t.Fatalf("filter(%q) = %v, want %v", name, got, want)
		}
	}

	if All() != nil || All(nil, nil) != nil {
		t.Fatal("All without filters should be nil")
	}
	if Exclude(nil)(Entry{Name: "x"}) {
		t.Fatal("Exclude(nil) should reject everything")
	}
	if !Filter(nil).accept(Entry{}) {
		t.Fatal("nil filter should accept")
	}
}

func TestMkdirAll(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "x", "y", "z")
	if err := MkdirAll(target); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, p := range []string{"x", "x/y", "x/y/z"} {
		info, err := os.Stat(filepath.Join(root, p))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", p, err)
		}
	}
	if err := MkdirAll(target); err != nil {
		t.Fatalf("second MkdirAll should be a no-op: %v", err)
	}
}

func TestMkdirAllConflict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x"), "file", 0o644)

	err := MkdirAll(filepath.Join(root, "x", "y"))
	if !errors.Is(err, ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict, got %v", err)
	}
	err = MkdirAll(filepath.Join(root, "x"))
	if !errors.Is(err, ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict for existing file, got %v", err)
	}
}
