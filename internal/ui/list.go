package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/fanlist/internal/models"
)

var _ list.Item = artistItem{}

// artistItem wraps [models.Artist] to implement [list.Item].
//
// Selection lives on the model so toggling never has to rewrite list items.
type artistItem struct {
	artist models.Artist
	picked func(id string) bool
}

func (i artistItem) FilterValue() string { return i.artist.Name }
func (i artistItem) Title() string {
	return fmt.Sprintf("%s %s", checkbox(i.picked(i.artist.ID)), i.artist.Name)
}
func (i artistItem) Description() string { return i.artist.ID }

func artistItems(artists []models.Artist, picked func(id string) bool) []list.Item {
	items := make([]list.Item, len(artists))
	for i, a := range artists {
		items[i] = artistItem{artist: a, picked: picked}
	}
	return items
}
