package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists the current user's playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := client.CurrentUserPlaylists().Collect(ctx, limit)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.render(cmd, playlists, formatter.PlaylistTable(playlists))
}

// PlaylistCreate creates a playlist owned by the current user.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	playlist, err := client.CreatePlaylist(ctx, name, cmd.Bool("public"), cmd.String("description"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	r.logger.Info("playlist created", "id", playlist.ID)
	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Created %s (%s)\n", playlist.Name, playlist.ID)
}

// PlaylistDelete unfollows a playlist given by id or name.
func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.playlistEngine(ctx)
	if err != nil {
		return err
	}

	playlist, err := engine.Resolve(ctx, nil, cmd.StringArg("playlist"))
	if err != nil {
		return err
	}
	if err := r.spotify.DeletePlaylist(ctx, playlist.ID); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.writePlain("✓ Deleted %s (%s)\n", playlist.Name, playlist.ID)
}

// PlaylistFollow follows a playlist by id.
func (r *Runner) PlaylistFollow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	if err := client.FollowPlaylist(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.writePlain("✓ Following %s\n", id)
}

// Tracks lists the playable tracks of a playlist given by id or name.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.playlistEngine(ctx)
	if err != nil {
		return err
	}

	playlist, err := engine.Resolve(ctx, nil, cmd.StringArg("playlist"))
	if err != nil {
		return err
	}

	tracks, err := r.spotify.PlaylistTracks(playlist.ID).Collect(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	r.writePlain("%s (%d tracks)\n", playlist.Name, playlist.TrackCount)
	return r.writePlain("%s\n", formatter.TrackTable(tracks))
}

// Albums lists an artist's albums.
func (r *Runner) Albums(ctx context.Context, cmd *cli.Command) error {
	artistID := cmd.StringArg("artist")
	if artistID == "" {
		return fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}

	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	albums, err := client.ArtistAlbums(artistID, cmd.StringSlice("group")...).Collect(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.render(cmd, albums, formatter.AlbumTable(albums))
}

// SavedTracks lists the user's saved tracks, most recently saved first.
func (r *Runner) SavedTracks(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	tracks, err := client.SavedTracks().Collect(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.render(cmd, tracks, formatter.TrackTable(tracks))
}

func (r *Runner) SavedAlbums(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	albums, err := client.SavedAlbums().Collect(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.render(cmd, albums, formatter.AlbumTable(albums))
}

func (r *Runner) SavedShows(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	shows, err := client.SavedShows().Collect(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return r.render(cmd, shows, formatter.ShowTable(shows))
}

// FollowedArtists walks the cursor pages of followed artists until limit is reached.
func (r *Runner) FollowedArtists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	var artists []models.Artist
	after := ""
	for {
		page, err := client.FollowedArtists(ctx, after)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
		}
		artists = append(artists, page.Items...)
		if page.After == "" || len(page.Items) == 0 || (limit > 0 && len(artists) >= limit) {
			break
		}
		after = page.After
	}
	if limit > 0 && len(artists) > limit {
		artists = artists[:limit]
	}
	return r.render(cmd, artists, formatter.ArtistTable(artists))
}

type libraryOp func(ctx context.Context, ids []string) error

// libraryOps maps an item type to its save and remove calls.
func libraryOps(client *services.SpotifyClient, kind string) (save, remove libraryOp, err error) {
	switch kind {
	case "track", "tracks":
		return client.SaveTracks, client.UnsaveTracks, nil
	case "album", "albums":
		return client.SaveAlbums, client.UnsaveAlbums, nil
	case "show", "shows":
		return client.SaveShows, client.UnsaveShows, nil
	case "artist", "artists":
		return client.FollowArtists, client.UnfollowArtists, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown type %q (must be track, album, show or artist)", shared.ErrInvalidFlag, kind)
	}
}

func (r *Runner) LibrarySave(ctx context.Context, cmd *cli.Command) error {
	return r.libraryUpdate(ctx, cmd, true)
}

func (r *Runner) LibraryRemove(ctx context.Context, cmd *cli.Command) error {
	return r.libraryUpdate(ctx, cmd, false)
}

// libraryUpdate sends ids in batches of [services.MaxLibraryIDs].
func (r *Runner) libraryUpdate(ctx context.Context, cmd *cli.Command, save bool) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one id", shared.ErrMissingArgument)
	}

	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	saveFn, removeFn, err := libraryOps(client, cmd.String("type"))
	if err != nil {
		return err
	}
	op, verb := removeFn, "Removed"
	if save {
		op, verb = saveFn, "Saved"
	}

	done := 0
	for batch := range slices.Chunk(ids, services.MaxLibraryIDs) {
		if err := op(ctx, batch); err != nil {
			return fmt.Errorf("%w: after %d of %d items: %w", shared.ErrAPIRequest, done, len(ids), err)
		}
		done += len(batch)
	}
	return r.writePlain("✓ %s %d %s(s)\n", verb, done, cmd.String("type"))
}

// Search runs a catalog search and prints one table per requested type.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	var types []services.SearchType
	for _, raw := range cmd.StringSlice("type") {
		for name := range strings.SplitSeq(raw, ",") {
			switch t := services.SearchType(strings.TrimSpace(name)); t {
			case services.SearchTracks, services.SearchAlbums, services.SearchArtists, services.SearchPlaylists:
				types = append(types, t)
			default:
				return fmt.Errorf("%w: unknown search type %q", shared.ErrInvalidFlag, name)
			}
		}
	}

	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	results, err := client.Search(ctx, query, types, cmd.Int("limit"), 0)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}
	if len(results.Tracks) > 0 {
		r.writePlain("Tracks\n%s\n", formatter.TrackTable(results.Tracks))
	}
	if len(results.Albums) > 0 {
		r.writePlain("Albums\n%s\n", formatter.AlbumTable(results.Albums))
	}
	if len(results.Artists) > 0 {
		r.writePlain("Artists\n%s\n", formatter.ArtistTable(results.Artists))
	}
	if len(results.Playlists) > 0 {
		r.writePlain("Playlists\n%s\n", formatter.PlaylistTable(results.Playlists))
	}
	return nil
}
