package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	ExportView
	ResultView
)

// Browser supplies the lazily paginated collections the TUI walks.
type Browser interface {
	CurrentUserPlaylists() *services.Paginator[models.Playlist]
	PlaylistTracks(playlistID string) *services.Paginator[models.Track]
}

// Exporter writes playlists to disk, reporting progress.
type Exporter interface {
	BulkExport(ctx context.Context, prog chan<- tasks.ProgressUpdate, ids []string, opts tasks.BulkExportOpts) (*tasks.BulkExportResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	returnView ViewState
	browser    Browser
	exporter   Exporter
	exportOpts tasks.BulkExportOpts
	width      int
	height     int

	playlistList     list.Model
	playlistPager    *services.Paginator[models.Playlist]
	playlistsLoading bool

	trackList     list.Model
	trackPager    *services.Paginator[models.Track]
	tracksLoading bool
	trackTotal    int

	selected *models.Playlist

	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.BulkExportResult
	err          error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model. A nil exporter disables the export action.
func NewModel(ctx context.Context, browser Browser, exporter Exporter, exportOpts tasks.BulkExportOpts) *Model {
	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Spotify Playlists"
	styles.styleList(&playlists)
	tracks := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	styles.styleList(&tracks)

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		browser:      browser,
		exporter:     exporter,
		exportOpts:   exportOpts,
		playlistList: playlists,
		trackList:    tracks,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts loading the first page of the user's playlists.
func (m *Model) Init() tea.Cmd {
	m.playlistPager = m.browser.CurrentUserPlaylists()
	m.playlistsLoading = true
	return fetchPlaylistPage(m.ctx, m.playlistPager)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.err != nil && m.view != ResultView {
			return m.handleErrorKeys(msg)
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ExportView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsPage:
		page := msg.data.(playlistsPage)
		if page.pager != m.playlistPager {
			return m, nil
		}
		m.playlistsLoading = false
		if page.err != nil {
			m.err = page.err
			return m, nil
		}
		cmd := m.playlistList.SetItems(append(m.playlistList.Items(), playlistItems(page.items)...))
		return m, tea.Batch(cmd, m.loadMorePlaylists())

	case MsgTracksPage:
		page := msg.data.(tracksPage)
		if page.pager != m.trackPager {
			return m, nil
		}
		m.tracksLoading = false
		if page.err != nil {
			m.err = page.err
			return m, nil
		}
		m.trackTotal = page.pager.Total()
		cmd := m.trackList.SetItems(append(m.trackList.Items(), trackItems(page.items)...))
		return m, tea.Batch(cmd, m.loadMoreTracks())

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.doneChan)

	case MsgExportComplete:
		outcome := msg.data.(exportOutcome)
		m.result = outcome.result
		m.err = outcome.err
		m.progressChan, m.doneChan = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress esc to dismiss, q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.err = nil
	}
	return m, nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.openPlaylist(pl.playlist)
			}
		case key.Matches(msg, m.keys.export):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok && m.exporter != nil {
				m.selected = &pl.playlist
				m.returnView = PlaylistListView
				m.view = ConfirmView
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, tea.Batch(cmd, m.loadMorePlaylists())
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			if m.trackList.FilterState() == list.Unfiltered {
				m.view = PlaylistListView
				return m, nil
			}
		case key.Matches(msg, m.keys.export):
			if m.exporter != nil {
				m.returnView = TrackListView
				m.view = ConfirmView
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, tea.Batch(cmd, m.loadMoreTracks())
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = m.returnView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = ExportView
		return m, m.startExport()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.home), key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// openPlaylist switches to the track view with a fresh pager for pl.
func (m *Model) openPlaylist(pl models.Playlist) tea.Cmd {
	m.selected = &pl
	m.trackPager = m.browser.PlaylistTracks(pl.ID)
	m.trackTotal = pl.TrackCount
	m.tracksLoading = true
	m.trackList.ResetFilter()
	m.trackList.ResetSelected()
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", pl.Name)
	m.view = TrackListView
	return tea.Batch(m.trackList.SetItems(nil), fetchTrackPage(m.ctx, m.trackPager))
}

// atEnd reports whether the cursor sits on the last loaded item of an unfiltered list.
func atEnd(l list.Model) bool {
	if l.FilterState() != list.Unfiltered {
		return false
	}
	n := len(l.Items())
	return n == 0 || l.Index() >= n-1
}

func (m *Model) loadMorePlaylists() tea.Cmd {
	if m.playlistsLoading || m.playlistPager == nil || m.playlistPager.AtEnd() || !atEnd(m.playlistList) {
		return nil
	}
	m.playlistsLoading = true
	return fetchPlaylistPage(m.ctx, m.playlistPager)
}

func (m *Model) loadMoreTracks() tea.Cmd {
	if m.tracksLoading || m.trackPager == nil || m.trackPager.AtEnd() || !atEnd(m.trackList) {
		return nil
	}
	m.tracksLoading = true
	return fetchTrackPage(m.ctx, m.trackPager)
}

func fetchPlaylistPage(ctx context.Context, pager *services.Paginator[models.Playlist]) tea.Cmd {
	return func() tea.Msg {
		items, err := pager.NextPage(ctx)
		return playlistsPageMsg(pager, items, err)
	}
}

func fetchTrackPage(ctx context.Context, pager *services.Paginator[models.Track]) tea.Cmd {
	return func() tea.Msg {
		items, err := pager.NextPage(ctx)
		return tracksPageMsg(pager, items, err)
	}
}

func (m *Model) startExport() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan, m.doneChan = progress, done

	id := m.selected.ID
	exporter, opts, ctx := m.exporter, m.exportOpts, m.ctx
	go func() {
		result, err := exporter.BulkExport(ctx, progress, []string{id}, opts)
		done <- exportCompleteMsg(result, err)
	}()

	return waitForProgress(progress, done)
}

// waitForProgress yields the next progress update, or the completion message once the export returns.
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) status(loading bool, loaded, total int) string {
	s := fmt.Sprintf("%d of %d loaded", loaded, total)
	if loading {
		s += " • loading more..."
	}
	return styles.help.Render(s)
}

func (m *Model) renderPlaylistList() string {
	keys := []key.Binding{m.keys.enter, m.keys.quit}
	if m.exporter != nil {
		keys = []key.Binding{m.keys.enter, m.keys.export, m.keys.quit}
	}
	total := 0
	if m.playlistPager != nil && !m.playlistsLoading {
		total = m.playlistPager.Total()
	}
	return fmt.Sprintf("%s\n%s\n\n%s",
		m.playlistList.View(),
		m.status(m.playlistsLoading, len(m.playlistList.Items()), max(total, len(m.playlistList.Items()))),
		m.help.ShortHelpView(keys))
}

func (m *Model) renderTrackList() string {
	keys := []key.Binding{m.keys.back, m.keys.quit}
	if m.exporter != nil {
		keys = []key.Binding{m.keys.export, m.keys.back, m.keys.quit}
	}
	return fmt.Sprintf("%s\n%s\n\n%s",
		m.trackList.View(),
		m.status(m.tracksLoading, len(m.trackList.Items()), max(m.trackTotal, len(m.trackList.Items()))),
		m.help.ShortHelpView(keys))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Export '%s'?", m.selected.Name))
	format := string(m.exportOpts.Format)
	if format == "" {
		format = "json"
	}
	info := fmt.Sprintf("\nPlaylist: %s\nTracks: %d\nFormat: %s\nOutput: %s\n",
		m.selected.Name, m.selected.TrackCount, format, m.exportOpts.OutputDir)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderExport() string {
	title := styles.title.Render("Exporting Playlist")

	message := m.progress.Message
	if message == "" {
		message = "Fetching tracks..."
	}
	return fmt.Sprintf("%s\n\n%s", title, message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.home, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Export failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil || m.result.Manifest == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	var b strings.Builder
	manifest := m.result.Manifest
	if manifest.FailedExports > 0 {
		b.WriteString(styles.warn.Render(fmt.Sprintf("Exported %d of %d playlists", manifest.SuccessfulExports, manifest.TotalPlaylists)))
	} else {
		b.WriteString(styles.ok.Render("✓ Export Complete!"))
	}
	b.WriteString("\n")

	for _, entry := range manifest.Playlists {
		if entry.Error != "" {
			fmt.Fprintf(&b, "\n  ✗ %s: %s", entry.PlaylistName, entry.Error)
			continue
		}
		fmt.Fprintf(&b, "\n  %s", entry.PlaylistName)
		for _, f := range entry.Files {
			fmt.Fprintf(&b, "\n    • %s", f)
		}
	}
	if m.result.ManifestPath != "" {
		fmt.Fprintf(&b, "\n\nManifest: %s", m.result.ManifestPath)
	}

	return b.String() + "\n\n" + helpView
}
