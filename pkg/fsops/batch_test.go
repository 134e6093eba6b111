package fsops

import (
	"path/filepath"
	"regexp"
	"testing"
)

func TestBatchRenameCopy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.tmpl"), "a", 0o644)
	writeFile(t, filepath.Join(root, "sub", "b.tmpl"), "b", 0o644)
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "c", 0o644)

	rename := ReplaceName(regexp.MustCompile(`\.tmpl$`), ".conf")
	if err := BatchRename(root, rename, ActionCopy); err != nil {
		t.Fatalf("BatchRename: %v", err)
	}
	for _, p := range []string{"a.tmpl", "a.conf", "sub/b.tmpl", "sub/b.conf", "sub/c.txt"} {
		if !exists(filepath.Join(root, p)) {
			t.Fatalf("expected %s", p)
		}
	}
	if got := readFile(t, filepath.Join(root, "sub", "b.conf")); got != "b" {
		t.Fatalf("unexpected content %q", got)
	}
	if exists(filepath.Join(root, "sub", "c.conf")) {
		t.Fatal("non-matching file renamed")
	}
}

func TestBatchRenameMove(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README"), "r", 0o644)
	writeFile(t, filepath.Join(root, "docs", "README"), "d", 0o644)

	if err := BatchRename(root, ExactName("README", "README.md"), ActionMove); err != nil {
		t.Fatalf("BatchRename: %v", err)
	}
	for _, p := range []string{"README", "docs/README"} {
		if exists(filepath.Join(root, p)) {
			t.Fatalf("%s should have been moved", p)
		}
	}
	if got := readFile(t, filepath.Join(root, "docs", "README.md")); got != "d" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestBatchRenameSameNameIsNoop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), "k", 0o644)

	identity := func(_, name string) (string, bool) { return name, true }
	if err := BatchRename(root, identity, ActionMove); err != nil {
		t.Fatalf("BatchRename: %v", err)
	}
	if got := readFile(t, filepath.Join(root, "keep.txt")); got != "k" {
		t.Fatalf("file damaged: %q", got)
	}
}

func TestActionString(t *testing.T) {
	if ActionCopy.String() != "copy" || ActionMove.String() != "move" {
		t.Fatalf("unexpected action strings %s %s", ActionCopy, ActionMove)
	}
}
