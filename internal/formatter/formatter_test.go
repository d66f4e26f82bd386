package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spx/internal/models"
	th "github.com/desertthunder/spx/internal/testing"
)

func sampleExport() *models.PlaylistExport {
	added := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	return &models.PlaylistExport{
		Playlist: models.Playlist{
			ID:          "test123",
			Name:        "Test Playlist",
			Description: "A test playlist",
			Owner:       "owner",
			TrackCount:  2,
			Public:      true,
		},
		Tracks: []models.Track{
			{
				ID:        "track1",
				Title:     "Song One",
				Artist:    "Artist One",
				Album:     "Album One",
				Duration:  180,
				ISRC:      "USRC12345678",
				ListIndex: 0,
				AddedAt:   &added,
			},
			{
				ID:        "track2",
				Title:     "Song Two",
				Artist:    "Artist Two",
				Duration:  240,
				ISRC:      "USRC87654321",
				ListIndex: 3,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  Format
	}{
		{"empty defaults to json", "", FormatJSON},
		{"json", "JSON", FormatJSON},
		{"csv", "csv", FormatCSV},
		{"md alias", "md", FormatMarkdown},
		{"markdown", " markdown ", FormatMarkdown},
		{"text alias", "text", FormatText},
		{"txt", "txt", FormatText},
	}

	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseFormat(c.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", c.input, got, c.want)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		if _, err := ParseFormat("xml"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{180, "3:00"},
		{605, "10:05"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-5, "0:00"},
	}

	for _, c := range tc {
		if got := FormatDuration(c.seconds); got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Position,ID,Title,Artist,Album,Duration,ISRC,Added" {
			t.Errorf("unexpected headers: %s", lines[0])
		}
		if lines[1] != "0,track1,Song One,Artist One,Album One,180,USRC12345678,2025-06-01T10:30:00Z" {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if lines[2] != "3,track2,Song Two,Artist Two,,240,USRC87654321," {
			t.Errorf("unexpected second row: %s", lines[2])
		}
	})

	t.Run("ExportToCSV Quotes Commas", func(t *testing.T) {
		export := sampleExport()
		export.Tracks[0].Title = "Hello, World"

		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), `"Hello, World"`) {
			t.Errorf("expected quoted title, got %s", data)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Test Playlist",
			"**Description**: A test playlist",
			"**Owner**: owner",
			"**Tracks**: 2",
			"**Visibility**: Public",
			"## Tracks",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. Artist Two - Song Two [4:00]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		export := sampleExport()
		export.Playlist.Description = ""

		data, err := ExportToText(export)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Playlist: Test Playlist\nTracks: 2\n\n") {
			t.Errorf("unexpected header, got: %s", output)
		}
		if !strings.Contains(output, "2. Artist Two - Song Two\n") {
			t.Errorf("Text missing track line, got: %s", output)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleExport().Playlist)
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		var got models.Playlist
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("metadata is not valid JSON: %v", err)
		}
		if got.ID != "test123" || got.TrackCount != 2 {
			t.Errorf("unexpected metadata %+v", got)
		}
		if strings.Contains(string(data), "track1") {
			t.Error("metadata should not include tracks")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "out")

		result, err := WriteCSVExport(sampleExport(), base)
		if err != nil {
			t.Fatalf("WriteCSVExport failed: %v", err)
		}

		if result.TracksFile != base+"_tracks.csv" || result.MetadataFile != base+"_metadata.json" {
			t.Errorf("unexpected paths %+v", result)
		}
		th.AssertFileExists(t, result.TracksFile)
		th.AssertFileExists(t, result.MetadataFile)
		if !strings.Contains(th.MustReadFile(t, result.TracksFile), "USRC12345678") {
			t.Error("CSV content missing ISRC")
		}
	})

	t.Run("WriteCSVExport Missing Directory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "missing", "out")
		if _, err := WriteCSVExport(sampleExport(), base); err == nil {
			t.Error("expected error writing into missing directory")
		}
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "playlist")

		file, err := WriteMarkdownExport(sampleExport(), dir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}
		if file != filepath.Join(dir, "README.md") {
			t.Errorf("unexpected file %s", file)
		}
		if !strings.Contains(th.MustReadFile(t, file), "# Test Playlist") {
			t.Error("markdown content missing title")
		}
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.txt")

		file, err := WriteTextExport(sampleExport(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		th.AssertFileMode(t, file, 0644)
		if !strings.Contains(th.MustReadFile(t, file), "1. Artist One - Song One") {
			t.Error("text content missing track")
		}
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.json")

		file, err := WriteJSONExport(sampleExport(), path)
		if err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}

		var got models.PlaylistExport
		if err := json.Unmarshal([]byte(th.MustReadFile(t, file)), &got); err != nil {
			t.Fatalf("export is not valid JSON: %v", err)
		}
		if len(got.Tracks) != 2 || got.Tracks[1].ListIndex != 3 {
			t.Errorf("unexpected tracks %+v", got.Tracks)
		}
		if got.Tracks[0].AddedAt == nil || got.Tracks[1].AddedAt != nil {
			t.Error("expected AddedAt to round trip")
		}
	})

	t.Run("WriteExport", func(t *testing.T) {
		tc := []struct {
			name   string
			format Format
			files  []string
		}{
			{"json", FormatJSON, []string{"test123.json"}},
			{"csv", FormatCSV, []string{"test123_tracks.csv", "test123_metadata.json"}},
			{"markdown", FormatMarkdown, []string{filepath.Join("test123", "README.md")}},
			{"text", FormatText, []string{"test123_tracks.txt"}},
		}

		for _, c := range tc {
			t.Run(c.name, func(t *testing.T) {
				dir := t.TempDir()

				files, err := WriteExport(sampleExport(), c.format, dir)
				if err != nil {
					t.Fatalf("WriteExport failed: %v", err)
				}
				if len(files) != len(c.files) {
					t.Fatalf("expected %d files, got %v", len(c.files), files)
				}
				for i, want := range c.files {
					if files[i] != filepath.Join(dir, want) {
						t.Errorf("file %d = %s, want %s", i, files[i], filepath.Join(dir, want))
					}
					th.AssertFileExists(t, files[i])
				}
			})
		}
	})
}

func TestManifest(t *testing.T) {
	t.Run("Add Counts Outcomes", func(t *testing.T) {
		m := &Manifest{Format: FormatCSV, TotalPlaylists: 2}
		m.Add("p1", "First", []string{"p1_tracks.csv"}, nil)
		m.Add("p2", "Second", nil, errors.New("boom"))

		if m.SuccessfulExports != 1 || m.FailedExports != 1 {
			t.Errorf("unexpected counters %d/%d", m.SuccessfulExports, m.FailedExports)
		}
		if m.Playlists[0].Status != "success" || m.Playlists[1].Status != "failed" {
			t.Errorf("unexpected statuses %+v", m.Playlists)
		}
		if m.Playlists[1].Error != "boom" || m.Playlists[1].Files != nil {
			t.Errorf("unexpected failed entry %+v", m.Playlists[1])
		}
	})

	t.Run("WriteManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "manifest.json")
		m := &Manifest{Format: FormatJSON, TotalPlaylists: 1, ExportedAt: time.Now().UTC()}
		m.Add("p1", "First", []string{"p1.json"}, nil)

		if err := WriteManifest(m, path); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}

		var got map[string]any
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &got); err != nil {
			t.Fatalf("manifest is not valid JSON: %v", err)
		}
		if got["format"] != "json" || got["successful_exports"] != float64(1) {
			t.Errorf("unexpected manifest %v", got)
		}
	})

	t.Run("WriteManifest Unwritable", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if err := WriteManifest(&Manifest{}, filepath.Join(file, "manifest.json")); err == nil {
			t.Error("expected error when parent is a file")
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("Headers And Cells", func(t *testing.T) {
		out := Table([]string{"A", "B"}, [][]string{{"one", "two"}})
		for _, want := range []string{"A", "B", "one", "two"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Truncates Long Cells", func(t *testing.T) {
		out := Table([]string{"Name"}, [][]string{{strings.Repeat("x", 100)}})
		if strings.Contains(out, strings.Repeat("x", maxCellWidth)) {
			t.Error("expected long cell to be truncated")
		}
		if !strings.Contains(out, "…") {
			t.Error("expected ellipsis")
		}
	})

	t.Run("TrackTable Positions", func(t *testing.T) {
		tracks := sampleExport().Tracks
		tracks = append(tracks, models.Track{ID: "loose", Title: "Loose", ListIndex: -1})

		out := TrackTable(tracks)
		for _, want := range []string{"Song One", "4:00", "loose"} {
			if !strings.Contains(out, want) {
				t.Errorf("track table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("PlaylistTable", func(t *testing.T) {
		out := PlaylistTable([]models.Playlist{{ID: "p1", Name: "Mix", Owner: "me", TrackCount: 12}})
		if !strings.Contains(out, "Private") || !strings.Contains(out, "12") {
			t.Errorf("unexpected playlist table:\n%s", out)
		}
	})
}
