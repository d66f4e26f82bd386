// Package tasks runs multi-request playlist operations with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] drives a [PlaylistService] (satisfied by services.SpotifyClient):
//
//  1. [PlaylistEngine.Overwrite] : replace playlist contents with an arbitrary number of tracks
//     - The API accepts at most 100 tracks per request
//     - The first chunk replaces, later chunks append in order
//     - An empty track list clears the playlist
//
//  2. [PlaylistEngine.Resolve] : find a playlist by ID, falling back to an exact name match
//
//  3. [PlaylistEngine.Diff] : compare two playlists
//     - Matches tracks via ISRC (preferred) or normalized title/artist
//     - Reports matched count, missing tracks, and extra tracks
//
//  4. [PlaylistEngine.BulkExport] : write many playlists to disk with a manifest
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default so a slow or absent reader never stalls an operation.
package tasks
