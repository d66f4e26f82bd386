package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/tasks"
)

type fakeBrowser struct {
	playlists []models.Playlist
	tracks    map[string][]models.Track
	pageSize  int
	fetches   atomic.Int32
	err       error
}

func pageOf[T any](b *fakeBrowser, items []T) *services.Paginator[T] {
	return services.NewPaginator(b.pageSize, services.FetchFunc[T](func(ctx context.Context, offset int) (models.Page[T], error) {
		b.fetches.Add(1)
		if b.err != nil {
			return models.Page[T]{}, b.err
		}
		end := min(offset+b.pageSize, len(items))
		return models.Page[T]{Offset: offset, Total: len(items), Items: items[offset:end]}, nil
	}))
}

func (b *fakeBrowser) CurrentUserPlaylists() *services.Paginator[models.Playlist] {
	return pageOf(b, b.playlists)
}

func (b *fakeBrowser) PlaylistTracks(id string) *services.Paginator[models.Track] {
	return pageOf(b, b.tracks[id])
}

type fakeExporter struct {
	ids []string
	err error
}

func (f *fakeExporter) BulkExport(ctx context.Context, prog chan<- tasks.ProgressUpdate, ids []string, opts tasks.BulkExportOpts) (*tasks.BulkExportResult, error) {
	f.ids = ids
	prog <- tasks.ProgressUpdate{Phase: tasks.ExportPlaylist, Message: "exporting"}
	if f.err != nil {
		return nil, f.err
	}
	m := &formatter.Manifest{Format: opts.Format, TotalPlaylists: len(ids)}
	m.Add(ids[0], "Mix", []string{"out/" + ids[0] + ".json"}, nil)
	return &tasks.BulkExportResult{Manifest: m, ManifestPath: "out/export_manifest.json"}, nil
}

func newBrowser(playlists, tracks int) *fakeBrowser {
	b := &fakeBrowser{pageSize: 2, tracks: map[string][]models.Track{}}
	for i := range playlists {
		b.playlists = append(b.playlists, models.Playlist{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Playlist %d", i), TrackCount: tracks})
	}
	for i := range tracks {
		b.tracks["p0"] = append(b.tracks["p0"], models.Track{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Track %d", i), ListIndex: i})
	}
	return b
}

func newTestModel(t *testing.T, b *fakeBrowser, e Exporter) *Model {
	t.Helper()
	m := NewModel(context.Background(), b, e, tasks.BulkExportOpts{Format: formatter.FormatJSON, OutputDir: "out"})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// run executes cmd and feeds any resulting Msg back into the model, returning the follow-up command.
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var next []tea.Cmd
		for _, c := range msg {
			next = append(next, run(t, m, c))
		}
		return tea.Batch(next...)
	case Msg:
		_, next := m.Update(msg)
		return next
	}
	return nil
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel(t *testing.T) {
	t.Run("Init Loads First Page", func(t *testing.T) {
		b := newBrowser(5, 0)
		m := newTestModel(t, b, nil)

		run(t, m, m.Init())

		if got := len(m.playlistList.Items()); got != 2 {
			t.Fatalf("expected 2 playlists after first page, got %d", got)
		}
		if m.playlistsLoading {
			t.Error("expected loading to clear after page arrives")
		}
		if b.fetches.Load() != 1 {
			t.Errorf("expected a single fetch, got %d", b.fetches.Load())
		}
	})

	t.Run("Loads Next Page At List End", func(t *testing.T) {
		b := newBrowser(5, 0)
		m := newTestModel(t, b, nil)
		run(t, m, m.Init())

		m.playlistList.Select(0)
		if cmd := m.loadMorePlaylists(); cmd != nil {
			t.Fatal("expected no fetch with cursor above the end")
		}

		m.playlistList.Select(1)
		cmd := m.loadMorePlaylists()
		if cmd == nil {
			t.Fatal("expected fetch with cursor on last item")
		}
		if m.loadMorePlaylists() != nil {
			t.Error("expected a single in-flight fetch")
		}
		run(t, m, cmd)

		if got := len(m.playlistList.Items()); got != 4 {
			t.Fatalf("expected 4 playlists, got %d", got)
		}

		m.playlistList.Select(3)
		run(t, m, m.loadMorePlaylists())
		if got := len(m.playlistList.Items()); got != 5 {
			t.Fatalf("expected 5 playlists, got %d", got)
		}

		m.playlistList.Select(4)
		if m.loadMorePlaylists() != nil {
			t.Error("expected no fetch once the collection is exhausted")
		}
		if b.fetches.Load() != 3 {
			t.Errorf("expected 3 fetches, got %d", b.fetches.Load())
		}
	})

	t.Run("Open Playlist Loads Tracks", func(t *testing.T) {
		b := newBrowser(1, 3)
		m := newTestModel(t, b, nil)
		run(t, m, m.Init())

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != TrackListView {
			t.Fatalf("expected track view, got %d", m.view)
		}
		run(t, m, cmd)

		if got := len(m.trackList.Items()); got != 2 {
			t.Fatalf("expected first track page, got %d", got)
		}
		if !strings.Contains(m.View(), "2 of 3 loaded") {
			t.Errorf("expected loaded status, got:\n%s", m.View())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != PlaylistListView {
			t.Errorf("expected esc to return to playlists, got %d", m.view)
		}
	})

	t.Run("Stale Track Pages Are Dropped", func(t *testing.T) {
		b := newBrowser(1, 3)
		m := newTestModel(t, b, nil)

		stale := b.PlaylistTracks("p0")
		m.openPlaylist(b.playlists[0])

		m.Update(tracksPageMsg(stale, []models.Track{{ID: "old"}}, nil))
		if len(m.trackList.Items()) != 0 {
			t.Error("expected page from replaced pager to be ignored")
		}
		if !m.tracksLoading {
			t.Error("expected current fetch to remain in flight")
		}
	})

	t.Run("Fetch Error Is Shown And Dismissed", func(t *testing.T) {
		b := newBrowser(1, 0)
		b.err = errors.New("rate limited")
		m := newTestModel(t, b, nil)
		run(t, m, m.Init())

		if !strings.Contains(m.View(), "rate limited") {
			t.Errorf("expected error view, got:\n%s", m.View())
		}
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.err != nil {
			t.Error("expected esc to dismiss the error")
		}
	})

	t.Run("Export Flow", func(t *testing.T) {
		b := newBrowser(1, 0)
		exp := &fakeExporter{}
		m := newTestModel(t, b, exp)
		run(t, m, m.Init())

		m.Update(runeKey('e'))
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %d", m.view)
		}
		m.Update(runeKey('n'))
		if m.view != PlaylistListView {
			t.Fatalf("expected decline to return, got %d", m.view)
		}

		m.Update(runeKey('e'))
		_, cmd := m.Update(runeKey('y'))
		if m.view != ExportView {
			t.Fatalf("expected export view, got %d", m.view)
		}
		for cmd != nil {
			cmd = run(t, m, cmd)
		}

		if m.view != ResultView {
			t.Fatalf("expected result view, got %d", m.view)
		}
		if len(exp.ids) != 1 || exp.ids[0] != "p0" {
			t.Errorf("unexpected exported ids %v", exp.ids)
		}
		if view := m.View(); !strings.Contains(view, "out/p0.json") || !strings.Contains(view, "Export Complete") {
			t.Errorf("unexpected result view:\n%s", view)
		}

		m.Update(runeKey('r'))
		if m.view != PlaylistListView || m.result != nil {
			t.Error("expected r to reset to playlists")
		}
	})

	t.Run("Export Failure", func(t *testing.T) {
		b := newBrowser(1, 0)
		m := newTestModel(t, b, &fakeExporter{err: errors.New("disk full")})
		run(t, m, m.Init())

		m.Update(runeKey('e'))
		_, cmd := m.Update(runeKey('y'))
		for cmd != nil {
			cmd = run(t, m, cmd)
		}

		if !strings.Contains(m.View(), "Export failed: disk full") {
			t.Errorf("unexpected view:\n%s", m.View())
		}
	})

	t.Run("Export Disabled Without Exporter", func(t *testing.T) {
		b := newBrowser(1, 0)
		m := newTestModel(t, b, nil)
		run(t, m, m.Init())

		m.Update(runeKey('e'))
		if m.view != PlaylistListView {
			t.Errorf("expected export key to be ignored, got view %d", m.view)
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(t, newBrowser(0, 0), nil)
		_, cmd := m.Update(runeKey('q'))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}
