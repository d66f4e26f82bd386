// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// outputFlags are shared by every command that prints a table.
func outputFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON instead of a table",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}, extra...)
}

func limitFlag(value int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of items to fetch (0 for all)",
		Value:   value,
	}
}

// setupCommand writes the configuration file and initializes the credential database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and credential database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   r.configPath,
			},
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Spotify application client id",
			},
			&cli.StringFlag{
				Name:  "client-secret",
				Usage: "Spotify application client secret",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Loopback port registered as the redirect URI",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize in the browser and cache the token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached token and the signed-in user",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the cached token and stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistsCommand lists and manages the current user's playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "List your playlists",
		Flags:   outputFlags(limitFlag(50)),
		Action:  r.Playlists,
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: outputFlags(
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the playlist public",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
				),
				Action: r.PlaylistCreate,
			},
			{
				Name:  "delete",
				Usage: "Unfollow (delete) a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Action: r.PlaylistDelete,
			},
			{
				Name:  "follow",
				Usage: "Follow a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.PlaylistFollow,
			},
		},
	}
}

// tracksCommand lists the tracks of a playlist given by id or name.
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List the tracks of a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist"},
		},
		Flags:  outputFlags(limitFlag(0)),
		Action: r.Tracks,
	}
}

// albumsCommand lists an artist's albums.
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "albums",
		Usage: "List an artist's albums, newest first",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "artist"},
		},
		Flags: outputFlags(
			limitFlag(50),
			&cli.StringSliceFlag{
				Name:  "group",
				Usage: "Album groups to include (album, single, appears_on, compilation)",
			},
		),
		Action: r.Albums,
	}
}

// savedCommand lists the current user's library.
func savedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "saved",
		Usage: "List saved library items",
		Commands: []*cli.Command{
			{
				Name:   "tracks",
				Usage:  "List saved tracks",
				Flags:  outputFlags(limitFlag(50)),
				Action: r.SavedTracks,
			},
			{
				Name:   "albums",
				Usage:  "List saved albums",
				Flags:  outputFlags(limitFlag(50)),
				Action: r.SavedAlbums,
			},
			{
				Name:   "shows",
				Usage:  "List saved shows",
				Flags:  outputFlags(limitFlag(50)),
				Action: r.SavedShows,
			},
			{
				Name:   "artists",
				Usage:  "List followed artists",
				Flags:  outputFlags(limitFlag(50)),
				Action: r.FollowedArtists,
			},
		},
	}
}

// libraryCommand saves and removes library items by id.
func libraryCommand(r *Runner) *cli.Command {
	kind := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "Item type: track, album, show or artist",
			Value:   "track",
		}
	}
	return &cli.Command{
		Name:  "library",
		Usage: "Save or remove library items",
		Commands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Save items (follow artists)",
				ArgsUsage: "<id>...",
				Flags:     []cli.Flag{kind()},
				Action:    r.LibrarySave,
			},
			{
				Name:      "remove",
				Usage:     "Remove items (unfollow artists)",
				ArgsUsage: "<id>...",
				Flags:     []cli.Flag{kind()},
				Action:    r.LibraryRemove,
			},
		},
	}
}

// searchCommand searches the catalog.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the Spotify catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: outputFlags(
			limitFlag(10),
			&cli.StringSliceFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Result types: track, album, artist, playlist",
				Value:   []string{"track"},
			},
		),
		Action: r.Search,
	}
}

// overwriteCommand replaces a playlist's contents.
func overwriteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "overwrite",
		Usage: "Replace a playlist's tracks with another playlist's or a list of track ids",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source playlist name or ID",
			},
			&cli.StringFlag{
				Name:     "dest",
				Usage:    "Destination playlist name or ID",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "tracks",
				Usage: "Track ids to write instead of a source playlist",
			},
		},
		Action: r.Overwrite,
	}
}

// diffCommand compares two playlists.
func diffCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Compare and show missing tracks between two playlists",
		Flags: outputFlags(
			&cli.StringFlag{
				Name:     "source",
				Usage:    "Source playlist name or ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "dest",
				Usage:    "Destination playlist name or ID",
				Required: true,
			},
		),
		Action: r.Diff,
	}
}

// exportCommand writes playlists to disk.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export playlists to files with a manifest",
		ArgsUsage: "[playlist]...",
		Flags:     exportFlags(),
		Action:    r.Export,
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Export every playlist in your library",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Export format: json, csv, markdown or txt",
			Value:   "json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory (default spotify_export_<timestamp>)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of concurrent file writers",
			Value: 5,
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive browsing.
func tuiCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "log",
			Usage: "Log file written while the TUI runs",
			Value: "./tmp/spx-tui.log",
		},
	}
	for _, f := range exportFlags() {
		if f.Names()[0] != "all" {
			flags = append(flags, f)
		}
	}

	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse playlists and tracks interactively",
		Flags:   flags,
		Action:  r.TUI,
	}
}
