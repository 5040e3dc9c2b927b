// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config file from the embedded template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles provider connections
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage provider connections",
		Commands: []*cli.Command{
			{
				Name:      "connect",
				Usage:     "Log in to a provider in the browser",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Action:    r.AuthConnect,
			},
			{
				Name:      "disconnect",
				Usage:     "Log out of a provider and forget its token",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Action:    r.AuthDisconnect,
			},
			{
				Name:  "status",
				Usage: "Show the connection state of every provider",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:      "capture",
				Usage:     "Store the token carried by a redirect URL (?service=..#access_token=..)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Action:    r.AuthCapture,
			},
		},
	}
}

// playlistsCommand lists a provider's playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "playlists",
		Aliases:   []string{"ls"},
		Usage:     "List playlists of a connected provider",
		Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Playlists,
	}
}

// songsCommand lists the songs of one playlist
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "songs",
		Usage:     "List songs of a playlist",
		Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Playlist ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table, json, csv, markdown, txt",
				Value:   "table",
			},
		},
		Action: r.Songs,
	}
}

// searchCommand looks one song up on a provider
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search a provider for a song",
		Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Usage:    "Song title",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "artist",
				Usage:    "Song artist",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

// syncCommand handles playlist synchronization
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize playlists between providers",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Copy a playlist's songs into one or more target providers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source provider",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Source playlist ID",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target provider (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title of created playlists (default: source playlist title)",
					},
					&cli.StringSliceFlag{
						Name:  "into",
						Usage: "Add songs to an existing playlist instead: provider=playlistID (repeatable)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: table, json, csv, markdown, txt",
						Value:   "table",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Hide progress updates",
					},
				},
				Action: r.SyncRun,
			},
		},
	}
}

// exportCommand writes playlists to disk
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export playlists of a provider to files",
		Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Playlist ID to export (repeatable, default: all)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: json, csv, markdown, txt",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: {provider}_export_{epoch})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent file writers",
				Value: 5,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Provider requests per second",
				Value: 5,
			},
		},
		Action: r.Export,
	}
}

// serveCommand runs the redirect-capture server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the redirect-capture page on the configured address",
		Action: r.Serve,
	}
}
