package tasks

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
)

// PlaylistService is the subset of [services.SpotifyClient] used by the engine.
type PlaylistService interface {
	Playlist(ctx context.Context, id string) (*models.Playlist, error)
	ExportPlaylist(ctx context.Context, id string) (*models.PlaylistExport, error)
	CurrentUserPlaylists() *services.Paginator[models.Playlist]
	ReplaceTracks(ctx context.Context, playlistID string, trackIDs []string) (string, error)
	AppendTracks(ctx context.Context, playlistID string, trackIDs []string, position *int) (string, error)
}

// PlaylistWriter rewrites playlist contents in API sized chunks.
type PlaylistWriter interface {
	Overwrite(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, trackIDs []string) (*OverwriteResult, error)
}

// OverwriteResult describes a completed overwrite.
type OverwriteResult struct {
	PlaylistID string
	SnapshotID string
	Tracks     int
	Requests   int
}

// ComparisonResult contains track comparison details between two playlists.
type ComparisonResult struct {
	SourcePlaylist *models.PlaylistExport // Source playlist
	DestPlaylist   *models.PlaylistExport // Destination playlist
	MatchedCount   int                    // Tracks found in both
	MissingInDest  []models.Track         // Tracks in source but not in dest
	ExtraInDest    []models.Track         // Tracks in dest but not in source
}

// PlaylistEngine runs multi-request playlist operations against Spotify.
type PlaylistEngine struct {
	spotify PlaylistService
}

func NewPlaylistEngine(spotify PlaylistService) *PlaylistEngine {
	return &PlaylistEngine{spotify: spotify}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *PlaylistEngine) ready() error {
	if e.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// Resolve looks a playlist up by ID, falling back to an exact name match
// among the current user's playlists.
func (e *PlaylistEngine) Resolve(ctx context.Context, progress chan<- ProgressUpdate, ref string) (*models.Playlist, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: playlist id or name", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, resolvingPlaylistUpdate(ref))

	pl, err := e.spotify.Playlist(ctx, ref)
	if err == nil {
		e.sendProgress(progress, foundPlaylistUpdate(pl))
		return pl, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	for candidate, listErr := range e.spotify.CurrentUserPlaylists().All(ctx) {
		if listErr != nil {
			return nil, fmt.Errorf("%w: failed to list playlists: %w", shared.ErrAPIRequest, listErr)
		}
		if candidate.Name == ref {
			e.sendProgress(progress, foundPlaylistUpdate(&candidate))
			return &candidate, nil
		}
	}

	return nil, fmt.Errorf("%w: no playlist found with id or name '%s'", shared.ErrPlaylistNotFound, ref)
}

// Overwrite replaces the playlist contents with trackIDs. The first chunk
// replaces, the rest append in order. An empty list clears the playlist.
func (e *PlaylistEngine) Overwrite(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, trackIDs []string) (*OverwriteResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	chunks := chunk(trackIDs, services.MaxTracksPerRequest)
	if len(chunks) == 0 {
		chunks = [][]string{{}}
	}

	result := &OverwriteResult{PlaylistID: playlistID, Tracks: len(trackIDs)}
	total := len(chunks)

	e.sendProgress(progress, replaceTracksUpdate(1, total, len(chunks[0])))
	snapshot, err := e.spotify.ReplaceTracks(ctx, playlistID, chunks[0])
	if err != nil {
		return nil, fmt.Errorf("failed to replace tracks: %w", err)
	}
	result.SnapshotID = snapshot
	result.Requests++

	for i, ids := range chunks[1:] {
		e.sendProgress(progress, appendTracksUpdate(i+2, total, len(ids)))
		snapshot, err := e.spotify.AppendTracks(ctx, playlistID, ids, nil)
		if err != nil {
			return result, fmt.Errorf("failed to append tracks %d-%d: %w",
				(i+1)*services.MaxTracksPerRequest, (i+1)*services.MaxTracksPerRequest+len(ids), err)
		}
		result.SnapshotID = snapshot
		result.Requests++
	}

	return result, nil
}

// OverwriteFrom copies the tracks of one playlist over another.
func (e *PlaylistEngine) OverwriteFrom(ctx context.Context, progress chan<- ProgressUpdate, sourceRef, destRef string) (*OverwriteResult, error) {
	src, err := e.Resolve(ctx, progress, sourceRef)
	if err != nil {
		return nil, err
	}
	dest, err := e.Resolve(ctx, progress, destRef)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 1, src.Name))
	export, err := e.spotify.ExportPlaylist(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to export source playlist: %w", shared.ErrAPIRequest, err)
	}

	ids := make([]string, 0, len(export.Tracks))
	for _, t := range export.Tracks {
		ids = append(ids, t.ID)
	}
	return e.Overwrite(ctx, progress, dest.ID, ids)
}

// Diff compares two playlists, matching by ISRC first and normalized title/artist second.
func (e *PlaylistEngine) Diff(ctx context.Context, progress chan<- ProgressUpdate, sourceID, destID string) (*ComparisonResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 2, sourceID))
	sourceExport, err := e.spotify.ExportPlaylist(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to export source playlist: %w", shared.ErrPlaylistNotFound, err)
	}

	e.sendProgress(progress, fetchDestUpdate(2, 2, destID))
	destExport, err := e.spotify.ExportPlaylist(ctx, destID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to export destination playlist: %w", shared.ErrPlaylistNotFound, err)
	}

	e.sendProgress(progress, compareUpdate(1, 2))
	destIndex := newTrackIndex(destExport.Tracks)
	sourceIndex := newTrackIndex(sourceExport.Tracks)

	result := &ComparisonResult{SourcePlaylist: sourceExport, DestPlaylist: destExport}
	for _, t := range sourceExport.Tracks {
		if destIndex.contains(t) {
			result.MatchedCount++
		} else {
			result.MissingInDest = append(result.MissingInDest, t)
		}
	}

	e.sendProgress(progress, compareUpdate(2, 2))
	for _, t := range destExport.Tracks {
		if !sourceIndex.contains(t) {
			result.ExtraInDest = append(result.ExtraInDest, t)
		}
	}

	return result, nil
}

type trackIndex struct {
	isrc map[string]struct{}
	keys map[string]struct{}
}

func newTrackIndex(tracks []models.Track) trackIndex {
	idx := trackIndex{isrc: make(map[string]struct{}), keys: make(map[string]struct{})}
	for _, t := range tracks {
		if t.ISRC != "" {
			idx.isrc[t.ISRC] = struct{}{}
		}
		idx.keys[normalizeTrackKey(t.Title, t.Artist)] = struct{}{}
	}
	return idx
}

func (idx trackIndex) contains(t models.Track) bool {
	if t.ISRC != "" {
		if _, ok := idx.isrc[t.ISRC]; ok {
			return true
		}
	}
	_, ok := idx.keys[normalizeTrackKey(t.Title, t.Artist)]
	return ok
}

// normalizeTrackKey lowercases title and artist and drops punctuation and
// whitespace so that cosmetic differences still match.
func normalizeTrackKey(title, artist string) string {
	clean := func(s string) string {
		var b strings.Builder
		for _, r := range strings.ToLower(s) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return clean(title) + "|" + clean(artist)
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
