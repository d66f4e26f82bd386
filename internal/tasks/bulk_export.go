package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: json, csv, markdown, txt
	OutputDir  string           // Base output directory (default: spotify_export_{epoch})
	NumWorkers int              // Concurrent writers (default: 5, max 10)
}

// BulkExportResult is the outcome of [PlaylistEngine.BulkExport].
type BulkExportResult struct {
	Manifest     *formatter.Manifest
	ManifestPath string
}

type exportJob struct {
	id     string
	export *models.PlaylistExport
}

type exportResult struct {
	id    string
	name  string
	files []string
	err   error
}

// BulkExport fetches each playlist in order and writes them out concurrently.
//
// Fetches run sequentially so request pacing stays with the client's rate limiter;
// file writes fan out over a worker pool. Partial failures are recorded in the
// manifest written to {OutputDir}/export_manifest.json.
func (e *PlaylistEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	opts.NumWorkers = min(opts.NumWorkers, 10)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := &formatter.Manifest{
		Format:          opts.Format,
		ExportedAt:      time.Now().UTC(),
		OutputDirectory: opts.OutputDir,
		TotalPlaylists:  len(ids),
		Playlists:       make([]formatter.ManifestEntry, 0, len(ids)),
	}

	jobs := make(chan exportJob, len(ids))
	results := make(chan exportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go exportWorker(&wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if ctx.Err() != nil {
				return
			}

			export, err := e.spotify.ExportPlaylist(ctx, id)
			if err != nil {
				results <- exportResult{
					id:   id,
					name: fmt.Sprintf("Unknown (%s)", id),
					err:  fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), export.Playlist.Name))
			jobs <- exportJob{id: id, export: export}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		manifest.Add(res.id, res.name, res.files, res.err)

		if res.err == nil {
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.name, len(res.files)))
		} else {
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.name, res.err))
		}
	}

	result := &BulkExportResult{Manifest: manifest}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("bulk export interrupted after %d of %d playlists: %w", completed, len(ids), err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func exportWorker(wg *sync.WaitGroup, jobs <-chan exportJob, results chan<- exportResult, opts BulkExportOpts) {
	defer wg.Done()

	for job := range jobs {
		files, err := formatter.WriteExport(job.export, opts.Format, opts.OutputDir)
		results <- exportResult{id: job.id, name: job.export.Playlist.Name, files: files, err: err}
	}
}
