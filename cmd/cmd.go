// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/shared"
)

// newApp builds the root command around r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "plsd",
		Usage:   "Playlist daemon and client",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   shared.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load PLSD_* variables from a dotenv file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Before:   r.Configure,
		Commands: r.register(),
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, csv, json or m3u",
		Value:   "text",
	}
}

// daemonCommand runs and controls the playlist daemon
func daemonCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Run and control the playlist daemon",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Serve playlists in the foreground until interrupted",
				Action: r.DaemonRun,
			},
			{
				Name:   "start",
				Usage:  "Start the daemon in the background",
				Action: r.DaemonStart,
			},
			{
				Name:   "stop",
				Usage:  "Stop the running daemon",
				Action: r.DaemonStop,
			},
			{
				Name:  "status",
				Usage: "Report whether a daemon is running",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DaemonStatus,
			},
		},
	}
}

func createCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a playlist, or print the id of an existing one with the same name",
		ArgsUsage: "NAME",
		Action:    r.Create,
	}
}

func duplicateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "duplicate",
		Aliases:   []string{"dup"},
		Usage:     "Copy a playlist under a new name",
		ArgsUsage: "ID NAME",
		Action:    r.Duplicate,
	}
}

func destroyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "destroy",
		Aliases:   []string{"rm"},
		Usage:     "Destroy a playlist that nobody is using",
		ArgsUsage: "ID",
		Action:    r.Destroy,
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List playlists",
		Flags:   []cli.Flag{formatFlag()},
		Action:  r.List,
	}
}

func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a playlist and its items in play order",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.BoolFlag{
				Name:  "export",
				Usage: "Write to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Export file path (default {id}_items.{ext})",
			},
		},
		Action: r.Show,
	}
}

func renameCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a playlist",
		ArgsUsage: "ID NAME",
		Action:    r.Rename,
	}
}

func appendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "append",
		Aliases:   []string{"add"},
		Usage:     "Append items (object ids or local files) to a playlist",
		ArgsUsage: "ID ITEM...",
		Action:    r.Append,
	}
}

func insertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "insert",
		Usage:     "Insert items before a visual index",
		ArgsUsage: "ID INDEX ITEM...",
		Action:    r.Insert,
	}
}

func removeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove the item at a visual index",
		ArgsUsage: "ID INDEX",
		Action:    r.Remove,
	}
}

func moveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Aliases:   []string{"mv"},
		Usage:     "Move an item to another visual index",
		ArgsUsage: "ID FROM TO",
		Action:    r.Move,
	}
}

func clearCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Remove every item from a playlist",
		ArgsUsage: "ID",
		Action:    r.Clear,
	}
}

func shuffleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "shuffle",
		Usage:     "Shuffle a playlist's play order",
		ArgsUsage: "ID",
		Action:    r.Shuffle,
	}
}

func unshuffleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "unshuffle",
		Usage:     "Restore a playlist's original order",
		ArgsUsage: "ID",
		Action:    r.Unshuffle,
	}
}

func repeatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "repeat",
		Usage:     "Show or set whether a playlist wraps around",
		ArgsUsage: "ID [on|off]",
		Action:    r.Repeat,
	}
}

func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "next",
		Usage:     "Print the item played after INDEX, or the first one",
		ArgsUsage: "ID [INDEX]",
		Action:    r.Next,
	}
}

func prevCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "prev",
		Usage:     "Print the item played before INDEX, or the last one",
		ArgsUsage: "ID [INDEX]",
		Action:    r.Prev,
	}
}

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import an M3U, PLS or WPL file, or a directory of media files",
		ArgsUsage: "URI|PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base",
				Usage: "Base URI for relative entries",
			},
		},
		Action: r.Import,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print daemon signals as they arrive",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "id",
				Usage: "Only show signals for this playlist",
			},
		},
		Action: r.Watch,
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the default configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Destination (default: the --config path)",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}
