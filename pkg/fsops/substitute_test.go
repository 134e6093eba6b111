package fsops

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestSubstitute(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "conf.ini")
	writeFile(t, p, "host=old\nport=1\nhost=old\n", 0o640)

	changed, err := Substitute(p, regexp.MustCompile(`host=(\w+)`), "host=new-$1")
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if !changed {
		t.Fatal("expected change")
	}
	if got := readFile(t, p); got != "host=new-old\nport=1\nhost=new-old\n" {
		t.Fatalf("unexpected content %q", got)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("mode not preserved: %v", info.Mode().Perm())
	}
}

func TestSubstituteNoMatch(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "f.txt")
	writeFile(t, p, "nothing here\n", 0o644)
	before, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	changed, err := Substitute(p, regexp.MustCompile(`absent`), "x")
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if changed {
		t.Fatal("expected no change")
	}
	after, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !os.SameFile(before, after) || !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("file was rewritten")
	}
}

func TestSubstituteBinary(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "blob.bin")
	content := "\x00\x01\x02abc\x00\xff"
	writeFile(t, p, content, 0o644)

	changed, err := Substitute(p, regexp.MustCompile(`abc`), "xyz")
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if changed {
		t.Fatal("binary file must not be edited")
	}
	if got := readFile(t, p); got != content {
		t.Fatal("binary file content changed")
	}
}

func TestSubstituteThroughSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	writeFile(t, target, "v=1\n", 0o644)
	link := filepath.Join(root, "link.txt")
	symlink(t, "real.txt", link)

	changed, err := Substitute(link, regexp.MustCompile(`1`), "2")
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if !changed {
		t.Fatal("expected change")
	}
	if got := readFile(t, target); got != "v=2\n" {
		t.Fatalf("target not rewritten: %q", got)
	}
	info, err := os.Lstat(link)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("link replaced by a regular file: %v", err)
	}
}

func TestSubstituteMissing(t *testing.T) {
	if _, err := Substitute(filepath.Join(t.TempDir(), "nope"), regexp.MustCompile(`x`), "y"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
