package formatter

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/spx/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

const maxCellWidth = 48

// Table renders rows under headers with rounded borders.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = truncate(cell, maxCellWidth)
		}
		t.Row(cells...)
	}

	return t.String()
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func PlaylistTable(playlists []models.Playlist) string {
	rows := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		rows = append(rows, []string{p.ID, p.Name, p.Owner, strconv.Itoa(p.TrackCount), Visibility(p.Public)})
	}
	return Table([]string{"ID", "Name", "Owner", "Tracks", "Visibility"}, rows)
}

// TrackTable lists tracks with their playlist position when known.
func TrackTable(tracks []models.Track) string {
	rows := make([][]string, 0, len(tracks))
	for i, t := range tracks {
		pos := i + 1
		if t.ListIndex >= 0 {
			pos = t.ListIndex + 1
		}
		rows = append(rows, []string{strconv.Itoa(pos), t.Title, t.Artist, t.Album, FormatDuration(t.Duration), t.ID})
	}
	return Table([]string{"#", "Title", "Artist", "Album", "Length", "ID"}, rows)
}

func AlbumTable(albums []models.Album) string {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, []string{a.Name, a.Artist, a.ReleaseDate, strconv.Itoa(a.TotalTracks), a.ID})
	}
	return Table([]string{"Name", "Artist", "Released", "Tracks", "ID"}, rows)
}

func ArtistTable(artists []models.Artist) string {
	rows := make([][]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, []string{a.Name, strings.Join(a.Genres, ", "), strconv.Itoa(a.Followers), a.ID})
	}
	return Table([]string{"Name", "Genres", "Followers", "ID"}, rows)
}

func ShowTable(shows []models.Show) string {
	rows := make([][]string, 0, len(shows))
	for _, s := range shows {
		rows = append(rows, []string{s.Name, s.Publisher, strconv.Itoa(s.TotalEpisodes), s.ID})
	}
	return Table([]string{"Name", "Publisher", "Episodes", "ID"}, rows)
}
