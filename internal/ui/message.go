package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgArtistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgBuildComplete
)

type artistsFetched struct {
	artists []models.Artist
	err     error
}

type buildComplete struct {
	result *tasks.RunResult
	err    error
}

// artistsFetchedMsg is the constructor for [MsgArtistsFetched]
func artistsFetchedMsg(artists []models.Artist, err error) Msg {
	return Msg{kind: MsgArtistsFetched, data: artistsFetched{artists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// buildCompleteMsg is the constructor for [MsgBuildComplete]
func buildCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgBuildComplete, data: buildComplete{result, err}}
}
