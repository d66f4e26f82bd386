package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
)

func newExportMock(n int) (*mockSpotify, []string) {
	mock := &mockSpotify{exports: map[string]*models.PlaylistExport{}}
	ids := make([]string, n)
	for i := range n {
		id := fmt.Sprintf("playlist%d", i+1)
		ids[i] = id
		mock.exports[id] = &models.PlaylistExport{
			Playlist: models.Playlist{ID: id, Name: fmt.Sprintf("Playlist %d", i+1), TrackCount: 1},
			Tracks:   []models.Track{{ID: "track-" + id, Title: "Song", Artist: "Artist", Duration: 200}},
		}
	}
	return mock, ids
}

func readManifest(t *testing.T, path string) formatter.Manifest {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var m formatter.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	return m
}

func TestBulkExport(t *testing.T) {
	ctx := context.Background()

	tc := []struct {
		name      string
		format    formatter.Format
		playlists int
		perExport int
	}{
		{"single playlist json export", formatter.FormatJSON, 1, 1},
		{"multiple playlists csv export", formatter.FormatCSV, 3, 2},
		{"markdown export", formatter.FormatMarkdown, 2, 1},
		{"text export", formatter.FormatText, 4, 1},
	}

	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			mock, ids := newExportMock(c.playlists)
			engine := NewPlaylistEngine(mock)
			dir := t.TempDir()

			result, err := engine.BulkExport(ctx, nil, ids, BulkExportOpts{Format: c.format, OutputDir: dir, NumWorkers: 2})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			m := result.Manifest
			if m.TotalPlaylists != c.playlists || m.SuccessfulExports != c.playlists || m.FailedExports != 0 {
				t.Errorf("unexpected counters %+v", m)
			}
			for _, entry := range m.Playlists {
				if len(entry.Files) != c.perExport {
					t.Errorf("%s: expected %d files, got %v", entry.PlaylistID, c.perExport, entry.Files)
				}
				for _, f := range entry.Files {
					if _, err := os.Stat(f); err != nil {
						t.Errorf("missing export file %s", f)
					}
				}
			}

			if result.ManifestPath != filepath.Join(dir, "export_manifest.json") {
				t.Errorf("unexpected manifest path %s", result.ManifestPath)
			}
			onDisk := readManifest(t, result.ManifestPath)
			if onDisk.Format != c.format || len(onDisk.Playlists) != c.playlists {
				t.Errorf("unexpected manifest on disk %+v", onDisk)
			}
		})
	}

	t.Run("partial failures", func(t *testing.T) {
		mock, ids := newExportMock(3)
		mock.exportErr = map[string]error{"playlist2": errors.New("forbidden")}
		engine := NewPlaylistEngine(mock)

		result, err := engine.BulkExport(ctx, nil, ids, BulkExportOpts{OutputDir: t.TempDir()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		m := result.Manifest
		if m.SuccessfulExports != 2 || m.FailedExports != 1 {
			t.Errorf("expected 2/1, got %d/%d", m.SuccessfulExports, m.FailedExports)
		}
		var failed *formatter.ManifestEntry
		for i := range m.Playlists {
			if m.Playlists[i].Status == "failed" {
				failed = &m.Playlists[i]
			}
		}
		if failed == nil || failed.PlaylistID != "playlist2" || !strings.Contains(failed.Error, "forbidden") {
			t.Errorf("unexpected failed entry %+v", failed)
		}
		if failed != nil && failed.PlaylistName != "Unknown (playlist2)" {
			t.Errorf("unexpected failed name %s", failed.PlaylistName)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		mock, ids := newExportMock(1)
		engine := NewPlaylistEngine(mock)

		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		dir := t.TempDir()
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })

		result, err := engine.BulkExport(ctx, nil, ids, BulkExportOpts{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Manifest.Format != formatter.FormatJSON {
			t.Errorf("expected json default, got %s", result.Manifest.Format)
		}
		if !strings.HasPrefix(result.Manifest.OutputDirectory, "spotify_export_") {
			t.Errorf("unexpected default directory %s", result.Manifest.OutputDirectory)
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		mock, ids := newExportMock(3)
		engine := NewPlaylistEngine(mock)
		progress := make(chan ProgressUpdate, 20)

		if _, err := engine.BulkExport(ctx, progress, ids, BulkExportOpts{OutputDir: t.TempDir()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		updates := drain(progress)
		if len(updates) != 6 {
			t.Errorf("expected 6 updates, got %d", len(updates))
		}
		for _, u := range updates {
			if u.Phase != ExportPlaylist || u.Total != 3 {
				t.Errorf("unexpected update %+v", u)
			}
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		mock, ids := newExportMock(5)
		engine := NewPlaylistEngine(mock)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		dir := t.TempDir()
		result, err := engine.BulkExport(cctx, nil, ids, BulkExportOpts{OutputDir: dir})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result == nil || result.ManifestPath != "" {
			t.Errorf("expected no manifest after cancellation, got %+v", result)
		}
	})

	t.Run("invalid output directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, nil, 0644); err != nil {
			t.Fatal(err)
		}

		engine := NewPlaylistEngine(&mockSpotify{})
		if _, err := engine.BulkExport(ctx, nil, []string{"x"}, BulkExportOpts{OutputDir: filepath.Join(file, "out")}); err == nil {
			t.Error("expected error creating output directory")
		}
	})

	t.Run("service not initialized", func(t *testing.T) {
		engine := NewPlaylistEngine(nil)
		if _, err := engine.BulkExport(ctx, nil, nil, BulkExportOpts{}); err == nil {
			t.Error("expected error")
		}
	})
}
