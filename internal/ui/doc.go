// Package ui implements an interactive terminal browser using bubbletea's Elm architecture.
//
// The TUI walks the user's library without loading it all up front:
//  1. [PlaylistListView] : Browse the current user's playlists
//  2. [TrackListView] : Browse the tracks of the selected playlist
//  3. [ConfirmView] : Confirm exporting the selected playlist
//  4. [ExportView] : Monitor real-time progress updates
//  5. [ResultView] : Display the written files
//
// Both lists are backed by a services.Paginator. When the cursor reaches the last loaded item
// the next page is requested in a command, so only one fetch per list is ever in flight and
// pages from a pager that has since been replaced are dropped.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, e, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
