package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsPage MsgKind = iota
	MsgTracksPage
	MsgProgressUpdate
	MsgExportComplete
)

type playlistsPage struct {
	pager *services.Paginator[models.Playlist]
	items []models.Playlist
	err   error
}

type tracksPage struct {
	pager *services.Paginator[models.Track]
	items []models.Track
	err   error
}

type exportOutcome struct {
	result *tasks.BulkExportResult
	err    error
}

// playlistsPageMsg is the constructor for [MsgPlaylistsPage]
func playlistsPageMsg(pager *services.Paginator[models.Playlist], items []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsPage, data: playlistsPage{pager, items, err}}
}

// tracksPageMsg is the constructor for [MsgTracksPage]
func tracksPageMsg(pager *services.Paginator[models.Track], items []models.Track, err error) Msg {
	return Msg{kind: MsgTracksPage, data: tracksPage{pager, items, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// exportCompleteMsg is the constructor for [MsgExportComplete]
func exportCompleteMsg(result *tasks.BulkExportResult, err error) Msg {
	return Msg{kind: MsgExportComplete, data: exportOutcome{result, err}}
}
