// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// rootFlags are accepted by every command.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log debug output",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only log errors",
		},
	}
}

// setupCommand handles first-run setup
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and local storage",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml from the template if absent, then create the database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the Spotify login lifecycle
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Log in through the browser (authorization code flow with PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored credential and the logged in account",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// artistsCommand lists followed artists
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artists",
		Usage: "Followed artists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List followed artists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ArtistsList,
			},
		},
	}
}

// countsCommand previews how many tracks a build would collect
func countsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "counts",
		Usage: "Preview per-artist track counts (Ctrl-C stops early and prints what was counted)",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Artist ID to count (repeatable, default all followed)",
			},
			&cli.BoolFlag{
				Name:  "singles-only",
				Usage: "Only count singles",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Counts,
	}
}

// buildCommand runs a full playlist build
func buildCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Collect every track of your followed artists into a new playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Playlist name (default from config)",
			},
			&cli.BoolFlag{
				Name:  "public",
				Usage: "Create a public playlist",
			},
			&cli.BoolFlag{
				Name:  "chronological",
				Usage: "Order tracks by release date instead of by artist",
			},
			&cli.BoolFlag{
				Name:  "singles-only",
				Usage: "Only use singles",
			},
			&cli.StringSliceFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Artist ID to include (repeatable, default all followed)",
			},
			&cli.StringFlag{
				Name:  "cover",
				Usage: "JPEG file (max 256 KiB) to upload as the playlist cover",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Collect tracks without creating a playlist",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export the track list: comma separated csv, json, md, txt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Export path without extension",
				Value:   "tracks",
			},
		},
		Action: r.Build,
	}
}

// historyCommand lists recorded builds
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded builds",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to show",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// cacheCommand manages the track count cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Track count cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached track counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "singles-only",
						Usage: "Only show counts taken with --singles-only",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached track count",
				Action: r.CacheClear,
			},
		},
	}
}

// apiCommand handles raw Web API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Raw authenticated Web API calls",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a Web API path (e.g. /me) and print the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// tuiCommand launches the interactive interface
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"ui"},
		Usage:   "Pick artists and build interactively",
		Action:  r.TUI,
	}
}
