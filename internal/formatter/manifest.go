package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestEntry records the outcome of exporting one playlist.
type ManifestEntry struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Status       string   `json:"status"` // success or failed
	Files        []string `json:"files,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	Format            Format          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	OutputDirectory   string          `json:"output_directory"`
	TotalPlaylists    int             `json:"total_playlists"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Playlists         []ManifestEntry `json:"playlists"`
}

// Add appends an entry and updates the counters. A nil err marks the export successful.
func (m *Manifest) Add(id, name string, files []string, err error) {
	entry := ManifestEntry{PlaylistID: id, PlaylistName: name, Files: files, Status: "success"}
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		m.FailedExports++
	} else {
		m.SuccessfulExports++
	}
	m.Playlists = append(m.Playlists, entry)
}

// WriteManifest writes m as indented JSON to path, creating parent directories.
func WriteManifest(m *Manifest, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
