package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"

	"github.com/tg123/treeops/internal/config"
	"github.com/tg123/treeops/internal/treefs"
)

var mainver string = "(devel)"

func version() string {
	v := mainver

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v = fmt.Sprintf("%v, %v", v, s.Value[:min(9, len(s.Value))])
		case "vcs.time":
			v = fmt.Sprintf("%v, %v", v, s.Value)
		}
	}

	v = fmt.Sprintf("%v, %v", v, bi.GoVersion)

	return v
}

// exitStatus ends the process with a status code and no error message.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

type configKey struct{}

// configFrom returns the config loaded by the Before hook, or the defaults.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}

	if cmd.IsSet("loglevel") || cfg.LogLevel == "" {
		cfg.LogLevel = cmd.String("loglevel")
	}
	level, err := cfg.Level()
	if err != nil {
		return ctx, err
	}
	handler := slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logger initialized", "level", level, "config", cmd.String("config"))

	treefs.SetAzureOptions(cfg.AzureOptions())
	return context.WithValue(ctx, configKey{}, cfg), nil
}

func excludeFlag() cli.Flag {
	return &cli.StringFlag{Name: "x", Aliases: []string{"exclude"}, Usage: "Exclude entries whose name matches this regex"}
}

func globFlag() cli.Flag {
	return &cli.StringFlag{Name: "g", Aliases: []string{"glob"}, Usage: "Only include files whose relative path matches this glob (** allowed)"}
}

func quietFlag() cli.Flag {
	return &cli.BoolFlag{Name: "q", Aliases: []string{"quiet"}, Usage: "Suppress output"}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "treeops",
		Usage:   "recursive file tree operations (local + az:// / https://blob)",
		Version: version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "loglevel",
				Usage:   "Set log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("TREEOPS_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the config file (default ~/.treeops/config.yaml)",
				Sources: cli.EnvVars(config.EnvPath),
			},
		},
		Before: before,
		Commands: []*cli.Command{
			{
				Name:      "mkdir",
				Usage:     "Create directories and their parents",
				UsageText: "treeops mkdir path...",
				Action:    cmdMkdir,
			},
			{
				Name:      "ls",
				Usage:     "List directory contents",
				UsageText: "treeops ls [--dirs|--files] [-x REGEX] [-l] [path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dirs", Usage: "Only list directories"},
					&cli.BoolFlag{Name: "files", Usage: "Only list non-directories"},
					excludeFlag(),
					&cli.BoolFlag{Name: "l", Aliases: []string{"long"}, Usage: "List information about each entry"},
				},
				Action: cmdLS,
			},
			{
				Name:      "lstree",
				Usage:     "List every path below a directory",
				UsageText: "treeops lstree [--follow] [-g GLOB] [path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "follow", Usage: "Descend into symlinked directories"},
					globFlag(),
				},
				Action: cmdLSTree,
			},
			{
				Name:      "cp",
				Usage:     "Copy a file or tree",
				UsageText: "treeops cp [-x REGEX] [-g GLOB] [-q] src dst",
				Flags:     []cli.Flag{excludeFlag(), globFlag(), quietFlag()},
				Action:    cmdCP,
			},
			{
				Name:      "mv",
				Usage:     "Move a file or tree",
				UsageText: "treeops mv [-x REGEX] [-g GLOB] [-q] src dst",
				Flags:     []cli.Flag{excludeFlag(), globFlag(), quietFlag()},
				Action:    cmdMV,
			},
			{
				Name:      "rm",
				Usage:     "Remove files or trees",
				UsageText: "treeops rm [--symlinks|--files] [-q] path...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "symlinks", Usage: "Only remove symlinks below each path"},
					&cli.BoolFlag{Name: "files", Usage: "Only remove regular files below each path"},
					quietFlag(),
				},
				Action: cmdRM,
			},
			{
				Name:      "canexec",
				Usage:     "Exit 0 when the owner execute bit is set",
				UsageText: "treeops canexec path",
				Action:    cmdCanExec,
			},
			{
				Name:      "newer",
				Usage:     "Exit 0 when any file below path changed after --since",
				UsageText: "treeops newer --since (RFC3339|DURATION) [-x REGEX] path",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "since", Usage: "RFC3339 timestamp, or a duration meaning that long ago", Required: true},
					excludeFlag(),
				},
				Action: cmdNewer,
			},
			{
				Name:      "hash",
				Usage:     "Print the SHA-256 of a file or tree",
				UsageText: "treeops hash [-x REGEX] [-g GLOB] path...",
				Flags:     []cli.Flag{excludeFlag(), globFlag()},
				Action:    cmdHash,
			},
			{
				Name:      "sed",
				Usage:     "Replace every regex match in text files, in place",
				UsageText: "treeops sed [-v] PATTERN REPLACEMENT file...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "v", Aliases: []string{"verbose"}, Usage: "Report every file, including skipped ones"},
				},
				Action: cmdSed,
			},
			{
				Name:      "rename",
				Usage:     "Copy or move every file whose name matches PATTERN to its substituted name",
				UsageText: "treeops rename [--move] PATTERN REPLACEMENT path",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "move", Usage: "Move instead of copy"},
				},
				Action: cmdRename,
			},
			{
				Name:      "cat",
				Usage:     "Print file contents",
				UsageText: "treeops cat path...",
				Action:    cmdCat,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		var status exitStatus
		if errors.As(err, &status) {
			os.Exit(int(status))
		}
		slog.Error("App error", "err", err)
		os.Exit(1)
	}
}
