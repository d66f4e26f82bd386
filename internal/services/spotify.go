// Spotify Web API client built on [Retrier] and [Paginator]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

const (
	playlistPageSize = 50
	trackPageSize    = 100
	albumPageSize    = 50
	episodePageSize  = 50
	categoryPageSize = 50
	libraryPageSize  = 50
	followedPageSize = 50

	// MaxTracksPerRequest bounds the items sent in one playlist mutation.
	MaxTracksPerRequest = 100
	// MaxLibraryIDs bounds the ids sent in one library or follow request.
	MaxLibraryIDs       = 50

	marketFromToken = "from_token"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	IsLocal     bool            `json:"is_local"`
	Type        string          `json:"type"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genres     []string  `json:"genres"`
	Popularity int       `json:"popularity"`
	Followers  followers `json:"followers"`
	URI        string    `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	URI         string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a simplified or full playlist object.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	SnapshotID  string            `json:"snapshot_id"`
	Tracks      playlistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

// SpotifyPlaylistItem represents a track within a playlist context. Track is nil for removed items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySavedAlbum represents an album saved in the user's library.
type SpotifySavedAlbum struct {
	AddedAt string       `json:"added_at"`
	Album   SpotifyAlbum `json:"album"`
}

// SpotifyShow represents a show.
type SpotifyShow struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Publisher     string `json:"publisher"`
	Description   string `json:"description"`
	TotalEpisodes int    `json:"total_episodes"`
	URI           string `json:"uri"`
}

// SpotifySavedShow represents a show saved in the user's library.
type SpotifySavedShow struct {
	AddedAt string      `json:"added_at"`
	Show    SpotifyShow `json:"show"`
}

// SpotifyEpisode represents a show episode.
type SpotifyEpisode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DurationMS  int    `json:"duration_ms"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

// SpotifyCategory represents a browse category.
type SpotifyCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyPage is the offset/total envelope shared by paginated endpoints.
type SpotifyPage[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

type cursors struct {
	After string `json:"after"`
}

type spotifyCursorPage[T any] struct {
	Items   []T     `json:"items"`
	Total   int     `json:"total"`
	Next    *string `json:"next"`
	Cursors cursors `json:"cursors"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SpotifyClient exposes domain operations over the Web API.
//
// Every request goes through the [Retrier]; paginated endpoints return a [Paginator] whose pages are
// each retried independently.
type SpotifyClient struct {
	api     *APIService
	retrier *Retrier
	tokens  TokenProvider
	logger  *log.Logger

	mu   sync.Mutex
	user *models.User
}

// NewSpotifyClient composes a transport and retrier into a client.
func NewSpotifyClient(api *APIService, retrier *Retrier, tokens TokenProvider, logger *log.Logger) *SpotifyClient {
	return &SpotifyClient{
		api:     api,
		retrier: retrier,
		tokens:  tokens,
		logger:  shared.Component(logger, "spotify"),
	}
}

func (s *SpotifyClient) Name() string {
	return "Spotify"
}

type refreshChecker interface {
	CheckAndRequestRefresh(ctx context.Context) (bool, error)
}

// call renews a nearly expired token, then performs one retried request.
func (s *SpotifyClient) call(ctx context.Context, method, path string, query url.Values, body, result any) error {
	if checker, ok := s.tokens.(refreshChecker); ok {
		if _, err := checker.CheckAndRequestRefresh(ctx); err != nil {
			s.logger.Warn("proactive token refresh failed", "error", err)
		}
	}

	return s.retrier.Run(ctx, func(ctx context.Context) error {
		return s.api.Do(ctx, method, path, query, body, result)
	})
}

func get[T any](ctx context.Context, s *SpotifyClient, path string, query url.Values) (T, error) {
	var out T
	err := s.call(ctx, http.MethodGet, path, query, nil, &out)
	return out, err
}

func pageQuery(limit, offset int) url.Values {
	return url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
}

// paginate builds a [Paginator] over path, converting each raw item with mapItems.
func paginate[R, T any](s *SpotifyClient, path string, pageSize int, extra url.Values, mapItems func(page SpotifyPage[R]) []T) *Paginator[T] {
	return NewPaginator(pageSize, FetchFunc[T](func(ctx context.Context, offset int) (models.Page[T], error) {
		s.logger.Debugf("fetching %s, offset: %d", path, offset)

		query := pageQuery(pageSize, offset)
		for k, v := range extra {
			query[k] = v
		}

		raw, err := get[SpotifyPage[R]](ctx, s, path, query)
		if err != nil {
			return models.Page[T]{}, err
		}
		return models.Page[T]{Offset: raw.Offset, Total: raw.Total, Items: mapItems(raw), Fetched: len(raw.Items)}, nil
	}))
}

func mapEach[R, T any](fn func(R) T) func(SpotifyPage[R]) []T {
	return func(page SpotifyPage[R]) []T {
		out := make([]T, 0, len(page.Items))
		for _, item := range page.Items {
			out = append(out, fn(item))
		}
		return out
	}
}

func marketQuery() url.Values {
	return url.Values{"market": {marketFromToken}}
}

// CurrentUser retrieves the authenticated user's profile. The result is cached for playlist creation.
func (s *SpotifyClient) CurrentUser(ctx context.Context) (*models.User, error) {
	raw, err := get[SpotifyUser](ctx, s, "/me", nil)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:          raw.ID,
		DisplayName: raw.DisplayName,
		Email:       raw.Email,
		Country:     raw.Country,
		Product:     raw.Product,
		Followers:   raw.Followers.Total,
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

func (s *SpotifyClient) userID(ctx context.Context) (string, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user != nil {
		return user.ID, nil
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyClient) Track(ctx context.Context, id string) (*models.Track, error) {
	raw, err := get[SpotifyTrack](ctx, s, "/tracks/"+url.PathEscape(id), marketQuery())
	if err != nil {
		return nil, err
	}
	track := convertTrack(raw)
	return &track, nil
}

// Album retrieves an album by ID.
func (s *SpotifyClient) Album(ctx context.Context, id string) (*models.Album, error) {
	s.logger.Debugf("fetching album %s", id)
	raw, err := get[SpotifyAlbum](ctx, s, "/albums/"+url.PathEscape(id), marketQuery())
	if err != nil {
		return nil, err
	}
	album := convertAlbum(raw)
	return &album, nil
}

// Artist retrieves an artist by ID.
func (s *SpotifyClient) Artist(ctx context.Context, id string) (*models.Artist, error) {
	raw, err := get[SpotifyArtist](ctx, s, "/artists/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	artist := convertArtist(raw)
	return &artist, nil
}

// Playlist retrieves playlist metadata by ID.
func (s *SpotifyClient) Playlist(ctx context.Context, id string) (*models.Playlist, error) {
	query := url.Values{"fields": {"id,name,description,owner(id,display_name),public,snapshot_id,tracks(total),uri"}}
	raw, err := get[SpotifyPlaylist](ctx, s, "/playlists/"+url.PathEscape(id), query)
	if err != nil {
		return nil, err
	}
	playlist := convertPlaylist(raw)
	return &playlist, nil
}

// Show retrieves a show by ID.
func (s *SpotifyClient) Show(ctx context.Context, id string) (*models.Show, error) {
	raw, err := get[SpotifyShow](ctx, s, "/shows/"+url.PathEscape(id), marketQuery())
	if err != nil {
		return nil, err
	}
	show := convertShow(raw)
	return &show, nil
}

// Episode retrieves an episode by ID.
func (s *SpotifyClient) Episode(ctx context.Context, id string) (*models.Episode, error) {
	raw, err := get[SpotifyEpisode](ctx, s, "/episodes/"+url.PathEscape(id), marketQuery())
	if err != nil {
		return nil, err
	}
	episode := convertEpisode(raw)
	return &episode, nil
}

// SearchType selects which collections a search returns.
type SearchType string

const (
	SearchTracks    SearchType = "track"
	SearchAlbums    SearchType = "album"
	SearchArtists   SearchType = "artist"
	SearchPlaylists SearchType = "playlist"
)

// Search runs query against the requested types, returning limit items of each from offset.
func (s *SpotifyClient) Search(ctx context.Context, query string, types []SearchType, limit, offset int) (*models.SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if len(types) == 0 {
		types = []SearchType{SearchTracks}
	}

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	params := pageQuery(limit, offset)
	params.Set("q", query)
	params.Set("type", strings.Join(names, ","))
	params.Set("market", marketFromToken)

	var raw struct {
		Tracks    SpotifyPage[SpotifyTrack]     `json:"tracks"`
		Albums    SpotifyPage[SpotifyAlbum]     `json:"albums"`
		Artists   SpotifyPage[SpotifyArtist]    `json:"artists"`
		Playlists SpotifyPage[*SpotifyPlaylist] `json:"playlists"`
	}
	if err := s.call(ctx, http.MethodGet, "/search", params, nil, &raw); err != nil {
		return nil, err
	}

	results := &models.SearchResults{}
	for _, t := range raw.Tracks.Items {
		results.Tracks = append(results.Tracks, convertTrack(t))
	}
	for _, a := range raw.Albums.Items {
		results.Albums = append(results.Albums, convertAlbum(a))
	}
	for _, a := range raw.Artists.Items {
		results.Artists = append(results.Artists, convertArtist(a))
	}
	for _, p := range raw.Playlists.Items {
		if p != nil {
			results.Playlists = append(results.Playlists, convertPlaylist(*p))
		}
	}
	return results, nil
}

// AlbumTracks returns up to limit tracks of an album starting at offset.
func (s *SpotifyClient) AlbumTracks(ctx context.Context, albumID string, limit, offset int) (models.Page[models.Track], error) {
	s.logger.Debugf("fetching album tracks %s", albumID)
	query := pageQuery(limit, offset)
	query.Set("market", marketFromToken)

	raw, err := get[SpotifyPage[SpotifyTrack]](ctx, s, "/albums/"+url.PathEscape(albumID)+"/tracks", query)
	if err != nil {
		return models.Page[models.Track]{}, err
	}
	return models.Page[models.Track]{Offset: raw.Offset, Total: raw.Total, Items: mapEach(convertTrack)(raw), Fetched: len(raw.Items)}, nil
}

// ArtistTopTracks returns the artist's most popular tracks.
func (s *SpotifyClient) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	raw, err := get[struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}](ctx, s, "/artists/"+url.PathEscape(artistID)+"/top-tracks", marketQuery())
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(raw.Tracks))
	for _, t := range raw.Tracks {
		tracks = append(tracks, convertTrack(t))
	}
	return tracks, nil
}

// RelatedArtists returns artists similar to the given artist.
func (s *SpotifyClient) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	raw, err := get[struct {
		Artists []SpotifyArtist `json:"artists"`
	}](ctx, s, "/artists/"+url.PathEscape(artistID)+"/related-artists", nil)
	if err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(raw.Artists))
	for _, a := range raw.Artists {
		artists = append(artists, convertArtist(a))
	}
	return artists, nil
}

// FollowedArtists returns one cursor page of followed artists. A non-empty after resumes after that artist ID.
func (s *SpotifyClient) FollowedArtists(ctx context.Context, after string) (models.CursorPage[models.Artist], error) {
	query := url.Values{"type": {"artist"}, "limit": {strconv.Itoa(followedPageSize)}}
	if after != "" {
		query.Set("after", after)
	}

	raw, err := get[struct {
		Artists spotifyCursorPage[SpotifyArtist] `json:"artists"`
	}](ctx, s, "/me/following", query)
	if err != nil {
		return models.CursorPage[models.Artist]{}, err
	}

	page := models.CursorPage[models.Artist]{Total: raw.Artists.Total, After: raw.Artists.Cursors.After}
	for _, a := range raw.Artists.Items {
		page.Items = append(page.Items, convertArtist(a))
	}
	return page, nil
}

// CurrentUserPlaylists pages through the user's playlists.
func (s *SpotifyClient) CurrentUserPlaylists() *Paginator[models.Playlist] {
	return paginate(s, "/me/playlists", playlistPageSize, nil, func(page SpotifyPage[*SpotifyPlaylist]) []models.Playlist {
		out := make([]models.Playlist, 0, len(page.Items))
		for _, p := range page.Items {
			if p == nil {
				s.logger.Warn("Could not process playlist, ignoring")
				continue
			}
			out = append(out, convertPlaylist(*p))
		}
		return out
	})
}

// PlaylistTracks pages through a playlist's tracks.
//
// Removed, local and unknown items are dropped with a warning; surviving tracks keep their position
// in the playlist as ListIndex.
func (s *SpotifyClient) PlaylistTracks(playlistID string) *Paginator[models.Track] {
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	return paginate(s, path, trackPageSize, marketQuery(), func(page SpotifyPage[SpotifyPlaylistItem]) []models.Track {
		return s.convertPlaylistItems(page)
	})
}

func (s *SpotifyClient) convertPlaylistItems(page SpotifyPage[SpotifyPlaylistItem]) []models.Track {
	out := make([]models.Track, 0, len(page.Items))
	for i, item := range page.Items {
		if !playableItem(item) {
			s.logger.Warn("Could not process item, ignoring", "offset", page.Offset+i, "added_at", item.AddedAt)
			continue
		}
		track := convertTrack(*item.Track)
		track.ListIndex = page.Offset + i
		track.AddedAt = parseAddedAt(item.AddedAt)
		out = append(out, track)
	}
	return out
}

func playableItem(item SpotifyPlaylistItem) bool {
	if item.Track == nil || item.IsLocal || item.Track.IsLocal {
		return false
	}
	if item.Track.ID == "" {
		return false
	}
	return item.Track.Type == "" || item.Track.Type == "track"
}

// ArtistAlbums pages through an artist's albums. Each page is ordered newest release first.
func (s *SpotifyClient) ArtistAlbums(artistID string, groups ...string) *Paginator[models.Album] {
	extra := marketQuery()
	if len(groups) > 0 {
		extra.Set("include_groups", strings.Join(groups, ","))
	}

	path := "/artists/" + url.PathEscape(artistID) + "/albums"
	return paginate(s, path, albumPageSize, extra, func(page SpotifyPage[SpotifyAlbum]) []models.Album {
		albums := mapEach(convertAlbum)(page)
		slices.SortStableFunc(albums, func(a, b models.Album) int {
			return b.Year() - a.Year()
		})
		return albums
	})
}

// ShowEpisodes pages through a show's episodes.
func (s *SpotifyClient) ShowEpisodes(showID string) *Paginator[models.Episode] {
	path := "/shows/" + url.PathEscape(showID) + "/episodes"
	return paginate(s, path, episodePageSize, marketQuery(), mapEach(convertEpisode))
}

// Categories pages through the browse categories.
func (s *SpotifyClient) Categories() *Paginator[models.Category] {
	return NewPaginator(categoryPageSize, FetchFunc[models.Category](func(ctx context.Context, offset int) (models.Page[models.Category], error) {
		s.logger.Debugf("fetching categories, offset: %d", offset)
		raw, err := get[struct {
			Categories SpotifyPage[SpotifyCategory] `json:"categories"`
		}](ctx, s, "/browse/categories", pageQuery(categoryPageSize, offset))
		if err != nil {
			return models.Page[models.Category]{}, err
		}
		page := raw.Categories
		return models.Page[models.Category]{Offset: page.Offset, Total: page.Total, Items: mapEach(convertCategory)(page), Fetched: len(page.Items)}, nil
	}))
}

// CategoryPlaylists pages through the playlists of a browse category.
func (s *SpotifyClient) CategoryPlaylists(categoryID string) *Paginator[models.Playlist] {
	path := "/browse/categories/" + url.PathEscape(categoryID) + "/playlists"
	return NewPaginator(categoryPageSize, FetchFunc[models.Playlist](func(ctx context.Context, offset int) (models.Page[models.Playlist], error) {
		s.logger.Debugf("fetching category playlists, offset: %d", offset)
		raw, err := get[struct {
			Playlists SpotifyPage[*SpotifyPlaylist] `json:"playlists"`
		}](ctx, s, path, pageQuery(categoryPageSize, offset))
		if err != nil {
			return models.Page[models.Playlist]{}, err
		}

		page := raw.Playlists
		items := make([]models.Playlist, 0, len(page.Items))
		for _, p := range page.Items {
			if p != nil {
				items = append(items, convertPlaylist(*p))
			}
		}
		return models.Page[models.Playlist]{Offset: page.Offset, Total: page.Total, Items: items, Fetched: len(page.Items)}, nil
	}))
}

// SavedTracks pages through the user's saved tracks.
func (s *SpotifyClient) SavedTracks() *Paginator[models.Track] {
	return paginate(s, "/me/tracks", libraryPageSize, marketQuery(), mapEach(func(st SpotifySavedTrack) models.Track {
		track := convertTrack(st.Track)
		track.AddedAt = parseAddedAt(st.AddedAt)
		return track
	}))
}

// SavedAlbums pages through the user's saved albums.
func (s *SpotifyClient) SavedAlbums() *Paginator[models.Album] {
	return paginate(s, "/me/albums", libraryPageSize, marketQuery(), mapEach(func(sa SpotifySavedAlbum) models.Album {
		album := convertAlbum(sa.Album)
		album.AddedAt = parseAddedAt(sa.AddedAt)
		return album
	}))
}

// SavedShows pages through the user's saved shows.
func (s *SpotifyClient) SavedShows() *Paginator[models.Show] {
	return paginate(s, "/me/shows", libraryPageSize, nil, mapEach(func(ss SpotifySavedShow) models.Show {
		return convertShow(ss.Show)
	}))
}

// ExportPlaylist retrieves a playlist with all of its tracks.
func (s *SpotifyClient) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks, err := s.PlaylistTracks(playlistID).Collect(ctx, 0)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistExport{Playlist: *playlist, Tracks: tracks}, nil
}

// CreatePlaylist creates a playlist owned by the current user and returns it.
func (s *SpotifyClient) CreatePlaylist(ctx context.Context, name string, public bool, description string) (*models.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"name": name, "public": public}
	if description != "" {
		body["description"] = description
	}

	var raw SpotifyPlaylist
	if err := s.call(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/playlists", nil, body, &raw); err != nil {
		return nil, err
	}
	playlist := convertPlaylist(raw)
	return &playlist, nil
}

// DeletePlaylist unfollows the playlist, which is how owners delete it.
func (s *SpotifyClient) DeletePlaylist(ctx context.Context, playlistID string) error {
	return s.call(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(playlistID)+"/followers", nil, nil, nil)
}

// FollowPlaylist adds the current user to the playlist's followers.
func (s *SpotifyClient) FollowPlaylist(ctx context.Context, playlistID string) error {
	return s.call(ctx, http.MethodPut, "/playlists/"+url.PathEscape(playlistID)+"/followers", nil, map[string]any{"public": true}, nil)
}

// AppendTracks adds up to [MaxTracksPerRequest] tracks. A nil position appends to the end.
func (s *SpotifyClient) AppendTracks(ctx context.Context, playlistID string, trackIDs []string, position *int) (string, error) {
	if err := checkBatch(trackIDs, MaxTracksPerRequest); err != nil {
		return "", err
	}

	body := map[string]any{"uris": trackURIs(trackIDs)}
	if position != nil {
		body["position"] = *position
	}

	var raw snapshotResponse
	if err := s.call(ctx, http.MethodPost, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, body, &raw); err != nil {
		return "", err
	}
	return raw.SnapshotID, nil
}

// ReplaceTracks sets the playlist to exactly trackIDs, at most [MaxTracksPerRequest] of them.
func (s *SpotifyClient) ReplaceTracks(ctx context.Context, playlistID string, trackIDs []string) (string, error) {
	if len(trackIDs) > MaxTracksPerRequest {
		return "", fmt.Errorf("%w: at most %d tracks per request", shared.ErrInvalidInput, MaxTracksPerRequest)
	}

	var raw snapshotResponse
	body := map[string]any{"uris": trackURIs(trackIDs)}
	if err := s.call(ctx, http.MethodPut, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, body, &raw); err != nil {
		return "", err
	}
	return raw.SnapshotID, nil
}

// DeleteTracks removes the specific occurrences of tracks, identified by ListIndex, from the given snapshot.
func (s *SpotifyClient) DeleteTracks(ctx context.Context, playlistID, snapshotID string, tracks []models.Track) (string, error) {
	if len(tracks) == 0 {
		return snapshotID, nil
	}
	if len(tracks) > MaxTracksPerRequest {
		return "", fmt.Errorf("%w: at most %d tracks per request", shared.ErrInvalidInput, MaxTracksPerRequest)
	}

	type itemPositions struct {
		URI       string `json:"uri"`
		Positions []int  `json:"positions"`
	}

	items := make([]itemPositions, 0, len(tracks))
	for _, t := range tracks {
		if t.ListIndex < 0 {
			return "", fmt.Errorf("%w: track %s has no playlist position", shared.ErrInvalidInput, t.ID)
		}
		items = append(items, itemPositions{URI: models.TrackURI(t.ID), Positions: []int{t.ListIndex}})
	}

	body := map[string]any{"tracks": items}
	if snapshotID != "" {
		body["snapshot_id"] = snapshotID
	}

	var raw snapshotResponse
	if err := s.call(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, body, &raw); err != nil {
		return "", err
	}
	return raw.SnapshotID, nil
}

func (s *SpotifyClient) library(ctx context.Context, method, path string, query url.Values, ids []string) error {
	if err := checkBatch(ids, MaxLibraryIDs); err != nil {
		return err
	}
	return s.call(ctx, method, path, query, map[string]any{"ids": ids}, nil)
}

func (s *SpotifyClient) SaveTracks(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodPut, "/me/tracks", nil, ids)
}

func (s *SpotifyClient) UnsaveTracks(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodDelete, "/me/tracks", nil, ids)
}

func (s *SpotifyClient) SaveAlbums(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodPut, "/me/albums", nil, ids)
}

func (s *SpotifyClient) UnsaveAlbums(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodDelete, "/me/albums", nil, ids)
}

func (s *SpotifyClient) SaveShows(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodPut, "/me/shows", nil, ids)
}

func (s *SpotifyClient) UnsaveShows(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodDelete, "/me/shows", nil, ids)
}

func (s *SpotifyClient) FollowArtists(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodPut, "/me/following", url.Values{"type": {"artist"}}, ids)
}

func (s *SpotifyClient) UnfollowArtists(ctx context.Context, ids []string) error {
	return s.library(ctx, http.MethodDelete, "/me/following", url.Values{"type": {"artist"}}, ids)
}

func checkBatch(ids []string, max int) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no IDs provided", shared.ErrMissingArgument)
	}
	if len(ids) > max {
		return fmt.Errorf("%w: maximum %d IDs allowed", shared.ErrInvalidInput, max)
	}
	return nil
}

func trackURIs(ids []string) []string {
	uris := make([]string, len(ids))
	for i, id := range ids {
		uris[i] = models.TrackURI(id)
	}
	return uris
}

func parseAddedAt(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

func convertTrack(t SpotifyTrack) models.Track {
	track := models.Track{
		ID:        t.ID,
		Title:     t.Name,
		Album:     t.Album.Name,
		Duration:  t.DurationMS / 1000,
		ISRC:      t.ExternalIDs.ISRC,
		URI:       t.URI,
		ListIndex: -1,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	return track
}

func convertAlbum(a SpotifyAlbum) models.Album {
	album := models.Album{
		ID:          a.ID,
		Name:        a.Name,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.TotalTracks,
		URI:         a.URI,
	}
	if len(a.Artists) > 0 {
		album.Artist = a.Artists[0].Name
	}
	return album
}

func convertArtist(a SpotifyArtist) models.Artist {
	return models.Artist{
		ID:         a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
		Followers:  a.Followers.Total,
		URI:        a.URI,
	}
}

func convertPlaylist(p SpotifyPlaylist) models.Playlist {
	owner := p.Owner.DisplayName
	if owner == "" {
		owner = p.Owner.ID
	}
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       owner,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
		SnapshotID:  p.SnapshotID,
		URI:         p.URI,
	}
}

func convertShow(s SpotifyShow) models.Show {
	return models.Show{
		ID:            s.ID,
		Name:          s.Name,
		Publisher:     s.Publisher,
		Description:   s.Description,
		TotalEpisodes: s.TotalEpisodes,
		URI:           s.URI,
	}
}

func convertEpisode(e SpotifyEpisode) models.Episode {
	return models.Episode{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Duration:    e.DurationMS / 1000,
		ReleaseDate: e.ReleaseDate,
		URI:         e.URI,
	}
}

func convertCategory(c SpotifyCategory) models.Category {
	return models.Category{ID: c.ID, Name: c.Name}
}
