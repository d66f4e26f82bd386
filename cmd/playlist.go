package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// printProgress writes updates until the returned stop function is called.
// stop closes the channel and waits for the printer to drain it.
func (r *Runner) printProgress() (chan<- tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			if update.Total > 0 {
				r.writePlain("→ [%d/%d] %s\n", update.Step, update.Total, update.Message)
			} else {
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()
	return progressCh, func() {
		close(progressCh)
		wg.Wait()
	}
}

// Overwrite replaces the destination playlist's tracks with those of --source or the ids given in --tracks.
func (r *Runner) Overwrite(ctx context.Context, cmd *cli.Command) error {
	source := cmd.String("source")
	dest := cmd.String("dest")
	trackIDs := cmd.StringSlice("tracks")

	switch {
	case source == "" && len(trackIDs) == 0:
		return fmt.Errorf("%w: either --source or --tracks must be provided", shared.ErrMissingArgument)
	case source != "" && len(trackIDs) > 0:
		return fmt.Errorf("%w: cannot specify both --source and --tracks", shared.ErrInvalidArgument)
	}

	engine, err := r.playlistEngine(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("overwriting playlist", "source", source, "dest", dest, "tracks", len(trackIDs))

	progressCh, stop := r.printProgress()
	var result *tasks.OverwriteResult
	if source != "" {
		result, err = engine.OverwriteFrom(ctx, progressCh, source, dest)
	} else {
		var playlist *models.Playlist
		if playlist, err = engine.Resolve(ctx, progressCh, dest); err == nil {
			result, err = engine.Overwrite(ctx, progressCh, playlist.ID, trackIDs)
		}
	}
	stop()

	if err != nil {
		if result != nil {
			r.writePlain("⚠ Wrote %d tracks in %d requests before failing\n", result.Tracks, result.Requests)
		}
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Overwrite Complete!")
	r.writePlain("Playlist: %s\n", result.PlaylistID)
	r.writePlain("Tracks: %d (%d requests)\n", result.Tracks, result.Requests)
	r.writePlain("Snapshot: %s\n", result.SnapshotID)
	return nil
}

// Diff compares two playlists given by id or name.
func (r *Runner) Diff(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.playlistEngine(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("diff requested", "source", cmd.String("source"), "dest", cmd.String("dest"))

	progressCh, stop := r.printProgress()
	result, err := r.diff(ctx, engine, progressCh, cmd.String("source"), cmd.String("dest"))
	stop()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("\n✓ Source: %s (%d tracks)\n", result.SourcePlaylist.Playlist.Name, len(result.SourcePlaylist.Tracks))
	r.writePlain("✓ Destination: %s (%d tracks)\n\n", result.DestPlaylist.Playlist.Name, len(result.DestPlaylist.Tracks))

	r.writePlainHeader("Comparison Results")
	r.writePlain("Matched: %d tracks\n", result.MatchedCount)
	r.writePlain("Missing from destination: %d tracks\n", len(result.MissingInDest))
	r.writePlain("Extra in destination: %d tracks\n\n", len(result.ExtraInDest))

	if len(result.MissingInDest) > 0 {
		r.writePlain("Missing from destination:\n%s\n", formatter.TrackTable(result.MissingInDest))
	}
	if len(result.ExtraInDest) > 0 {
		r.writePlain("Extra in destination (not in source):\n%s\n", formatter.TrackTable(result.ExtraInDest))
	}
	return nil
}

func (r *Runner) diff(ctx context.Context, engine *tasks.PlaylistEngine, progress chan<- tasks.ProgressUpdate, sourceRef, destRef string) (*tasks.ComparisonResult, error) {
	source, err := engine.Resolve(ctx, progress, sourceRef)
	if err != nil {
		return nil, err
	}
	dest, err := engine.Resolve(ctx, progress, destRef)
	if err != nil {
		return nil, err
	}
	return engine.Diff(ctx, progress, source.ID, dest.ID)
}

// Export writes the given playlists, or every playlist with --all, to disk along with a manifest.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.Args().Slice()
	all := cmd.Bool("all")
	switch {
	case len(refs) == 0 && !all:
		return fmt.Errorf("%w: pass playlist ids or names, or --all", shared.ErrMissingArgument)
	case len(refs) > 0 && all:
		return fmt.Errorf("%w: cannot combine playlist arguments with --all", shared.ErrInvalidArgument)
	}

	opts, err := exportOpts(cmd)
	if err != nil {
		return err
	}

	engine, err := r.playlistEngine(ctx)
	if err != nil {
		return err
	}

	var ids []string
	if all {
		playlists, err := r.spotify.CurrentUserPlaylists().Collect(ctx, 0)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	} else {
		for _, ref := range refs {
			playlist, err := engine.Resolve(ctx, nil, ref)
			if err != nil {
				return err
			}
			ids = append(ids, playlist.ID)
		}
	}

	r.logger.Info("exporting playlists", "count", len(ids), "format", opts.Format)

	progressCh, stop := r.printProgress()
	result, err := engine.BulkExport(ctx, progressCh, ids, opts)
	stop()
	if err != nil {
		return err
	}

	m := result.Manifest
	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", m.OutputDirectory)
	r.writePlain("Exported: %d/%d playlists\n", m.SuccessfulExports, m.TotalPlaylists)
	if m.FailedExports > 0 {
		r.writePlain("\nFailed to export %d playlists:\n", m.FailedExports)
		for _, entry := range m.Playlists {
			if entry.Error != "" {
				r.writePlain("  - %s: %s\n", entry.PlaylistName, entry.Error)
			}
		}
	}
	return r.writePlain("Manifest: %s\n", result.ManifestPath)
}

func exportOpts(cmd *cli.Command) (tasks.BulkExportOpts, error) {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return tasks.BulkExportOpts{}, fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}
	workers := cmd.Int("workers")
	if workers < 0 {
		return tasks.BulkExportOpts{}, fmt.Errorf("%w: --workers must not be negative", shared.ErrInvalidFlag)
	}
	return tasks.BulkExportOpts{Format: format, OutputDir: cmd.String("output"), NumWorkers: workers}, nil
}
