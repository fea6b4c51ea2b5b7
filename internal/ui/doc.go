// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for browsing a podcast library:
//  1. [ShowListView] : Browse saved shows
//  2. [EpisodeListView] : Episodes of the selected show with listening progress
//  3. [ConfirmView] : Confirm exporting the selected show
//  4. [ExportView] : Monitor real-time progress updates
//  5. [ResultView] : Display the written files or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from [tasks.Library.Export], providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, x, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
