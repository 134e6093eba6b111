package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/tg123/treeops/internal/detect"
	"github.com/tg123/treeops/internal/treefs"
	"github.com/tg123/treeops/pkg/fsops"
)

var (
	okColor   = color.New(color.FgGreen)
	skipColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

func stdout(c *cli.Command) io.Writer { return c.Root().Writer }
func stderr(c *cli.Command) io.Writer { return c.Root().ErrWriter }

func unsupportedSchemeError(cmd string, target string) error {
	return fmt.Errorf("%s: unsupported protocol: %s", cmd, target)
}

// excludeRegexp turns -x into a filter that rejects matching names.
func excludeRegexp(c *cli.Command) (fsops.Filter, error) {
	expr := c.String("x")
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%s: bad -x: %w", c.Name, err)
	}
	return fsops.Exclude(fsops.MatchRegexp(re)), nil
}

// includeGlob turns -g into a filter on non-directory entries.
func includeGlob(c *cli.Command) (fsops.Filter, error) {
	pattern := c.String("g")
	if pattern == "" {
		return nil, nil
	}
	g, err := fsops.MatchGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: bad -g: %w", c.Name, err)
	}
	return func(e fsops.Entry) bool { return e.Kind == fsops.Directory || g(e) }, nil
}

// treeFilter combines -x, -g and the configured excludes.
func treeFilter(ctx context.Context, c *cli.Command) (fsops.Filter, error) {
	x, err := excludeRegexp(c)
	if err != nil {
		return nil, err
	}
	g, err := includeGlob(c)
	if err != nil {
		return nil, err
	}
	return fsops.All(x, g, configFrom(ctx).ExcludeFilter()), nil
}

func cmdMkdir(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdMkdir called", "args", c.Args().Slice())
	if c.Args().Len() == 0 {
		return fmt.Errorf("mkdir: need at least one path")
	}
	for _, p := range c.Args().Slice() {
		if !treefs.IsLocal(p) {
			return unsupportedSchemeError("mkdir", p)
		}
		if err := fsops.MkdirAll(p); err != nil {
			return err
		}
	}
	return nil
}

func cmdLS(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdLS called", "args", c.Args().Slice())
	target := "."
	if c.Args().Len() > 0 {
		target = c.Args().Get(0)
	}
	if c.Bool("dirs") && c.Bool("files") {
		return fmt.Errorf("ls: --dirs and --files are exclusive")
	}
	filter, err := excludeRegexp(c)
	if err != nil {
		return err
	}
	w := stdout(c)

	if !treefs.IsLocal(target) {
		entries, err := treefs.Resolve(target).List(ctx, target)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if c.Bool("dirs") && !e.IsDir || c.Bool("files") && e.IsDir {
				continue
			}
			if filter != nil && !filter(fsops.Entry{Name: strings.TrimSuffix(e.Name, "/")}) {
				continue
			}
			if c.Bool("l") {
				typ := "-"
				if e.IsDir {
					typ = "d"
				}
				fmt.Fprintf(w, "%1s %10d %s %s\n", typ, e.Size, formatTime(e.ModTime), e.Path)
			} else {
				fmt.Fprintln(w, e.Path)
			}
		}
		return nil
	}

	if c.Bool("l") {
		entries, err := fsops.ListEntries(target)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			isDir := e.ResolvesToDir()
			if c.Bool("dirs") && !isDir || c.Bool("files") && isDir {
				continue
			}
			if filter != nil && !filter(e) {
				continue
			}
			typ := "-"
			switch e.Kind {
			case fsops.Directory:
				typ = "d"
			case fsops.Symlink:
				typ = "l"
			}
			fmt.Fprintf(w, "%1s %10d %s %s\n", typ, e.Size, formatTime(e.ModTime), e.Name)
		}
		return nil
	}

	list := fsops.List
	switch {
	case c.Bool("dirs"):
		list = fsops.ListDirs
	case c.Bool("files"):
		list = fsops.ListFiles
	}
	names, err := list(target, filter)
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func cmdLSTree(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdLSTree called", "args", c.Args().Slice())
	target := "."
	if c.Args().Len() > 0 {
		target = c.Args().Get(0)
	}
	cfg := configFrom(ctx)
	filter := cfg.ExcludeFilter()
	if pattern := c.String("g"); pattern != "" {
		g, err := fsops.MatchGlob(pattern)
		if err != nil {
			return fmt.Errorf("lstree: bad -g: %w", err)
		}
		filter = fsops.All(filter, g)
	}
	w := stdout(c)

	if !treefs.IsLocal(target) {
		entries, err := treefs.ListTree(ctx, target, filter)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(w, e.Path)
		}
		return nil
	}

	paths, err := fsops.ListAll(target, fsops.ListOptions{
		Follow: c.Bool("follow") || cfg.FollowSymlinks,
		Filter: filter,
	})
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
	return nil
}

func cmdCP(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdCP called", "args", c.Args().Slice())
	if c.Args().Len() != 2 {
		return fmt.Errorf("cp: need src dst")
	}
	src, dst := c.Args().Get(0), c.Args().Get(1)
	filter, err := treeFilter(ctx, c)
	if err != nil {
		return err
	}
	n, err := treefs.CopyTree(ctx, src, dst, filter)
	if err != nil {
		return fmt.Errorf("cp: %w", err)
	}
	if !c.Bool("q") {
		if n > 0 {
			okColor.Fprintf(stdout(c), "Copied %s -> %s (%d files)\n", src, dst, n)
		} else {
			okColor.Fprintf(stdout(c), "Copied %s -> %s\n", src, dst)
		}
	}
	return nil
}

func cmdMV(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdMV called", "args", c.Args().Slice())
	if c.Args().Len() != 2 {
		return fmt.Errorf("mv: need src dst")
	}
	src, dst := c.Args().Get(0), c.Args().Get(1)
	for _, p := range []string{src, dst} {
		if !treefs.IsLocal(p) {
			return unsupportedSchemeError("mv", p)
		}
	}
	filter, err := treeFilter(ctx, c)
	if err != nil {
		return err
	}
	if err := fsops.Move(src, dst, filter); err != nil {
		return fmt.Errorf("mv: %w", err)
	}
	if !c.Bool("q") {
		okColor.Fprintf(stdout(c), "Moved %s -> %s\n", src, dst)
	}
	return nil
}

func cmdRM(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdRM called", "args", c.Args().Slice())
	if c.Args().Len() == 0 {
		return fmt.Errorf("rm: need at least one path")
	}
	symlinks, files := c.Bool("symlinks"), c.Bool("files")
	if symlinks && files {
		return fmt.Errorf("rm: --symlinks and --files are exclusive")
	}
	for _, p := range c.Args().Slice() {
		var err error
		switch {
		case !treefs.IsLocal(p):
			if symlinks || files {
				return unsupportedSchemeError("rm", p)
			}
			err = treefs.Resolve(p).Remove(ctx, p)
		case symlinks:
			err = fsops.RemoveSymlinks(p)
		case files:
			err = fsops.RemoveFiles(p)
		default:
			err = fsops.Remove(p)
		}
		if err != nil {
			return fmt.Errorf("rm: %w", err)
		}
		if !c.Bool("q") {
			okColor.Fprintf(stdout(c), "Removed %s\n", p)
		}
	}
	return nil
}

func cmdCanExec(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("canexec: need a path")
	}
	if !fsops.CanExecute(c.Args().Get(0)) {
		return exitStatus(1)
	}
	return nil
}

// parseSince accepts an RFC3339 timestamp or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("since: want RFC3339 or duration, got %q", s)
	}
	return t, nil
}

func cmdNewer(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdNewer called", "args", c.Args().Slice())
	if c.Args().Len() != 1 {
		return fmt.Errorf("newer: need a path")
	}
	since, err := parseSince(c.String("since"), time.Now())
	if err != nil {
		return err
	}
	filter, err := excludeRegexp(c)
	if err != nil {
		return err
	}
	newer, err := fsops.NewerThan(c.Args().Get(0), filter, since)
	if err != nil {
		return err
	}
	if !newer {
		return exitStatus(1)
	}
	return nil
}

func cmdHash(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdHash called", "args", c.Args().Slice())
	if c.Args().Len() == 0 {
		return fmt.Errorf("hash: need at least one path")
	}
	filter, err := treeFilter(ctx, c)
	if err != nil {
		return err
	}
	for _, p := range c.Args().Slice() {
		var sum string
		if treefs.IsLocal(p) {
			sum, err = fsops.ContentHash(p, filter)
		} else {
			sum, err = treefs.Hash(ctx, p, filter)
		}
		if err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		fmt.Fprintf(stdout(c), "%s  %s\n", sum, p)
	}
	return nil
}

func cmdSed(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdSed called", "args", c.Args().Slice())
	if c.Args().Len() < 3 {
		return fmt.Errorf("sed: need PATTERN REPLACEMENT file...")
	}
	re, err := regexp.Compile(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("sed: %w", err)
	}
	repl := c.Args().Get(1)
	verbose := c.Bool("v")
	w := stdout(c)

	failed := 0
	for _, p := range c.Args().Slice()[2:] {
		changed, err := fsops.Substitute(p, re, repl)
		switch {
		case err != nil:
			errColor.Fprintf(stderr(c), "sed: %s: %v\n", p, err)
			failed++
		case changed:
			okColor.Fprintf(w, "changed %s\n", p)
		case verbose:
			reason := "no match"
			if r, err := detect.Sniff(p); err == nil && r.Binary {
				reason = "binary " + r.MIME
			}
			skipColor.Fprintf(w, "skipped %s (%s)\n", p, reason)
		}
	}
	if failed > 0 {
		return fmt.Errorf("sed: %d file(s) failed", failed)
	}
	return nil
}

func cmdRename(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdRename called", "args", c.Args().Slice())
	if c.Args().Len() != 3 {
		return fmt.Errorf("rename: need PATTERN REPLACEMENT path")
	}
	re, err := regexp.Compile(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	action := fsops.ActionCopy
	if c.Bool("move") {
		action = fsops.ActionMove
	}
	root := c.Args().Get(2)
	if !treefs.IsLocal(root) {
		return unsupportedSchemeError("rename", root)
	}
	return fsops.BatchRename(root, fsops.ReplaceName(re, c.Args().Get(1)), action)
}

func cmdCat(ctx context.Context, c *cli.Command) error {
	slog.Debug("cmdCat called", "args", c.Args().Slice())
	if c.Args().Len() == 0 {
		return fmt.Errorf("cat: need at least one file")
	}
	failed := false
	for _, p := range c.Args().Slice() {
		rc, err := treefs.Resolve(p).Read(ctx, p)
		if err != nil {
			errColor.Fprintf(stderr(c), "cat: %s: %v\n", p, err)
			failed = true
			continue
		}
		_, err = io.Copy(stdout(c), rc)
		rc.Close()
		if err != nil {
			errColor.Fprintf(stderr(c), "cat: %s: %v\n", p, err)
			failed = true
		}
	}
	if failed {
		return exitStatus(1)
	}
	return nil
}
