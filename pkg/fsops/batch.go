package fsops

import (
	"path/filepath"
	"regexp"
)

// RenameFunc picks a new name for the file name inside dir. Returning false
// leaves the file alone.
type RenameFunc func(dir, name string) (string, bool)

// Action selects what BatchRename does with a renamed file.
type Action int

const (
	// ActionCopy keeps the original next to the renamed copy.
	ActionCopy Action = iota
	// ActionMove replaces the original.
	ActionMove
)

func (a Action) String() string {
	if a == ActionMove {
		return "move"
	}
	return "copy"
}

// BatchRename walks location and offers every non-directory entry to
// rename. Directories are always descended. Each accepted file is copied or
// moved to its new name in the same directory.
func BatchRename(location string, rename RenameFunc, action Action) error {
	return batchRename(location, "", rename, action)
}

func batchRename(dir, rel string, rename RenameFunc, action Action) error {
	children, err := readDir(dir, rel)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.Kind == Directory {
			if err := batchRename(c.Path, c.Rel, rename, action); err != nil {
				return err
			}
			continue
		}
		newName, ok := rename(dir, c.Name)
		if !ok || newName == "" || newName == c.Name {
			continue
		}
		dest := filepath.Join(dir, newName)
		switch action {
		case ActionMove:
			err = Move(c.Path, dest, nil)
		default:
			err = Copy(c.Path, dest, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceName renames files whose name matches re, substituting repl.
func ReplaceName(re *regexp.Regexp, repl string) RenameFunc {
	return func(_, name string) (string, bool) {
		if !re.MatchString(name) {
			return "", false
		}
		return re.ReplaceAllString(name, repl), true
	}
}

// ExactName renames files called oldName to newName.
func ExactName(oldName, newName string) RenameFunc {
	return func(_, name string) (string, bool) {
		return newName, name == oldName
	}
}
