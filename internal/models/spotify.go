package models

import (
	"strconv"
	"strings"
	"time"
)

// User is the authenticated account profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
	Product     string
	Followers   int
}

// Playlist represents playlist metadata without its items.
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
	SnapshotID  string
	URI         string
}

// PlaylistExport is a playlist together with its complete track listing.
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []Track
}

// Track represents a single track.
//
// ListIndex is the zero-based position within the playlist the track was read from, or -1 outside a playlist.
type Track struct {
	ID        string
	Title     string
	Artist    string
	Album     string
	Duration  int // Duration in seconds
	ISRC      string
	URI       string
	ListIndex int
	AddedAt   *time.Time
}

// Album represents an album or single.
type Album struct {
	ID          string
	Name        string
	Artist      string
	ReleaseDate string
	TotalTracks int
	URI         string
	AddedAt     *time.Time
}

// Year is the leading four digit year of ReleaseDate, or 0 when absent.
func (a Album) Year() int {
	if len(a.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(a.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// Artist represents a performing artist.
type Artist struct {
	ID         string
	Name       string
	Genres     []string
	Popularity int
	Followers  int
	URI        string
}

// Episode represents a single show episode.
type Episode struct {
	ID          string
	Name        string
	Description string
	Duration    int // Duration in seconds
	ReleaseDate string
	URI         string
}

// Show is a podcast or other episodic show.
type Show struct {
	ID            string
	Name          string
	Publisher     string
	Description   string
	TotalEpisodes int
	URI           string
}

// Category is a browse category.
type Category struct {
	ID   string
	Name string
}

// SearchResults groups the first page of each requested search type.
type SearchResults struct {
	Tracks    []Track
	Albums    []Album
	Artists   []Artist
	Playlists []Playlist
}

// CursorPage is a cursor-paginated window, used by followed artists.
type CursorPage[T any] struct {
	Items []T
	Total int
	After string
}

// Last reports whether the cursor is exhausted.
func (p CursorPage[T]) Last() bool {
	return p.After == "" || len(p.Items) == 0
}

// TrackURI converts a bare track ID into a spotify URI, leaving URIs untouched.
func TrackURI(id string) string {
	if strings.HasPrefix(id, "spotify:") {
		return id
	}
	return "spotify:track:" + id
}
