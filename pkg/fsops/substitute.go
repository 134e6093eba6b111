package fsops

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"

	"github.com/natefinch/atomic"

	"github.com/tg123/treeops/internal/detect"
)

// Substitute replaces every match of re in the file at path with repl,
// expanding $1 style references. It returns false without touching the
// file when the content looks binary or re does not match. The rewrite is
// atomic and keeps the file's mode; a symlink is resolved and its target
// rewritten.
func Substitute(path string, re *regexp.Regexp, repl string) (bool, error) {
	path, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, err
	}
	binary, err := detect.IsBinary(path)
	if err != nil {
		return false, err
	}
	if binary {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !re.Match(data) {
		return false, nil
	}

	if err := atomic.WriteFile(path, bytes.NewReader(re.ReplaceAll(data, []byte(repl)))); err != nil {
		return false, err
	}
	// atomic.WriteFile does not guarantee the original mode on every platform
	if err := os.Chmod(path, preservedMode(info.Mode())); err != nil {
		return true, err
	}
	return true, nil
}
