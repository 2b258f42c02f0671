// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one build:
//  1. [LoadingView] : Fetch followed artists
//  2. [PickerView] : Filter and toggle artists (none selected means all)
//  3. [OptionsView] : Playlist name, visibility, ordering and release filter
//  4. [BuildingView] : Spinner and live progress from the engine
//  5. [DoneView] : Playlist link or the error that stopped the build
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.Engine], providing non-blocking status reporting during builds.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
