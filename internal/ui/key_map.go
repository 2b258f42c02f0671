package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up            key.Binding
	down          key.Binding
	toggle        key.Binding
	all           key.Binding
	enter         key.Binding
	back          key.Binding
	edit          key.Binding
	public        key.Binding
	chronological key.Binding
	singles       key.Binding
	open          key.Binding
	restart       key.Binding
	quit          key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		toggle:        key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		all:           key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle all")),
		enter:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		edit:          key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit name")),
		public:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "public")),
		chronological: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chronological")),
		singles:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "singles only")),
		open:          key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		restart:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "start over")),
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.toggle, k.all, k.enter},
		{k.edit, k.public, k.chronological, k.singles, k.back},
		{k.open, k.restart, k.quit},
	}
}
