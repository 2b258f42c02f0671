package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/desertthunder/fanlist/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	PickerView
	OptionsView
	BuildingView
	DoneView
)

const maxLogLines = 8

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	view     ViewState
	engine   tasks.Engine
	defaults tasks.RunOptions
	width    int
	height   int

	artists  []models.Artist
	picked   map[string]bool
	list     list.Model
	name     textinput.Model
	editing  bool
	opts     tasks.RunOptions
	spinner  spinner.Model
	progress chan tasks.ProgressUpdate
	done     chan buildComplete
	last     tasks.ProgressUpdate
	lines    []string
	result   *tasks.RunResult
	err      error
	notice   string
	help     help.Model
	keys     keyMap

	openURL func(string) error
	onWait  func(hook func(url string, wait time.Duration))
}

// NewModel creates a new TUI model. defaults seeds the options view; its
// ArtistIDs are ignored in favor of the picker.
func NewModel(ctx context.Context, engine tasks.Engine, defaults tasks.RunOptions) *Model {
	if defaults.Name == "" {
		defaults.Name = shared.DefaultPlaylistName
	}

	name := textinput.New()
	name.Placeholder = shared.DefaultPlaylistName
	name.CharLimit = 100
	name.SetValue(defaults.Name)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	m := &Model{
		ctx:      ctx,
		view:     LoadingView,
		engine:   engine,
		defaults: defaults,
		picked:   map[string]bool{},
		name:     name,
		opts:     defaults,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
		openURL:  shared.OpenBrowser,
	}
	m.list = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	return m
}

// Init initializes the TUI by fetching followed artists.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchArtists())
}

// SetWaitHook registers set to receive a rate-limit reporter while a build
// runs and nil once it ends. The CLI passes the fetcher's SetOnWait.
func (m *Model) SetWaitHook(set func(hook func(url string, wait time.Duration))) {
	m.onWait = set
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error {
	return m.err
}

// Result returns the completed build, if any.
func (m *Model) Result() *tasks.RunResult {
	return m.result
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != BuildingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case PickerView:
			return m.handlePickerKeys(msg)
		case OptionsView:
			return m.handleOptionsKeys(msg)
		case BuildingView:
			if msg.String() == "ctrl+c" && m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case DoneView:
			return m.handleDoneKeys(msg)
		}
	}

	if m.view == PickerView {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgArtistsFetched:
		data := msg.data.(artistsFetched)
		if data.err != nil {
			m.err = data.err
			m.view = DoneView
			return m, nil
		}
		m.artists = data.artists
		m.list = list.New(artistItems(data.artists, m.isPicked), list.NewDefaultDelegate(), 0, 0)
		m.list.Title = "Followed artists"
		m.list.SetSize(m.width-4, m.height-6)
		m.list.AdditionalShortHelpKeys = func() []key.Binding {
			return []key.Binding{m.keys.toggle, m.keys.all, m.keys.enter}
		}
		m.view = PickerView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.last = update
		if update.Message != "" {
			m.lines = append(m.lines, update.Message)
			if len(m.lines) > maxLogLines {
				m.lines = m.lines[len(m.lines)-maxLogLines:]
			}
		}
		return m, m.waitForProgress()

	case MsgBuildComplete:
		data := msg.data.(buildComplete)
		m.result = data.result
		m.err = data.err
		m.view = DoneView
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.SettingFilter() {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.list.SelectedItem().(artistItem); ok {
			m.toggle(item.artist.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		m.toggleAll()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = OptionsView
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleOptionsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter", "esc":
			m.editing = false
			m.name.Blur()
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.name, cmd = m.name.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PickerView
	case key.Matches(msg, m.keys.edit):
		m.editing = true
		return m, m.name.Focus()
	case key.Matches(msg, m.keys.public):
		m.opts.Public = !m.opts.Public
	case key.Matches(msg, m.keys.chronological):
		m.opts.Chronological = !m.opts.Chronological
	case key.Matches(msg, m.keys.singles):
		m.opts.SinglesOnly = !m.opts.SinglesOnly
	case key.Matches(msg, m.keys.enter):
		m.view = BuildingView
		return m, tea.Batch(m.spinner.Tick, m.startBuild())
	}
	return m, nil
}

func (m *Model) handleDoneKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.open):
		if m.result != nil && m.result.Playlist != nil {
			if err := m.openURL(m.result.Playlist.URL); err != nil {
				m.notice = fmt.Sprintf("could not open browser: %v", err)
			}
		}
	case key.Matches(msg, m.keys.restart):
		if m.artists == nil {
			return m, nil
		}
		m.view = PickerView
		m.result = nil
		m.err = nil
		m.lines = nil
		m.notice = ""
		m.last = tasks.ProgressUpdate{}
	}
	return m, nil
}

func (m *Model) isPicked(id string) bool {
	return m.picked[id]
}

func (m *Model) toggle(id string) {
	if m.picked[id] {
		delete(m.picked, id)
		return
	}
	m.picked[id] = true
}

// toggleAll clears the selection when every artist is picked, otherwise picks every artist.
func (m *Model) toggleAll() {
	if len(m.picked) == len(m.artists) {
		m.picked = map[string]bool{}
		return
	}
	for _, a := range m.artists {
		m.picked[a.ID] = true
	}
}

// selectedIDs returns picked artist ids in followed order.
func (m *Model) selectedIDs() []string {
	ids := []string{}
	for _, a := range m.artists {
		if m.picked[a.ID] {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// RunOptions returns the options the next build would use.
func (m *Model) RunOptions() tasks.RunOptions {
	opts := m.opts
	opts.Name = strings.TrimSpace(m.name.Value())
	if opts.Name == "" {
		opts.Name = shared.DefaultPlaylistName
	}
	opts.ArtistIDs = m.selectedIDs()
	return opts
}

func (m *Model) fetchArtists() tea.Cmd {
	return func() tea.Msg {
		artists, err := m.engine.Artists(m.ctx, nil)
		return artistsFetchedMsg(artists, err)
	}
}

func (m *Model) startBuild() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progress = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan buildComplete, 1)
	m.lines = nil

	opts := m.RunOptions()
	progress, done := m.progress, m.done
	if m.onWait != nil {
		m.onWait(tasks.RateLimitReporter(progress))
	}
	go func() {
		result, err := m.engine.Run(ctx, opts, progress)
		if m.onWait != nil {
			m.onWait(nil)
		}
		if errors.Is(err, context.Canceled) {
			err = shared.ErrCancelled
		}
		done <- buildComplete{result, err}
	}()

	return m.waitForProgress()
}

// waitForProgress delivers the next progress update, or the build result once the run returns.
func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progress, m.done
	return func() tea.Msg {
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case res := <-done:
			return buildCompleteMsg(res.result, res.err)
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s Loading followed artists...\n\n%s", m.spinner.View(), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	case PickerView:
		return m.renderPicker()
	case OptionsView:
		return m.renderOptions()
	case BuildingView:
		return m.renderBuilding()
	case DoneView:
		return m.renderDone()
	default:
		return ""
	}
}

func (m *Model) renderPicker() string {
	count := len(m.picked)
	status := fmt.Sprintf("%d of %d selected", count, len(m.artists))
	if count == 0 {
		status = fmt.Sprintf("none selected, all %d artists will be used", len(m.artists))
	}
	return fmt.Sprintf("%s\n%s", m.list.View(), styles.help.Render(status))
}

func (m *Model) renderOptions() string {
	title := styles.title.Render("Playlist options")

	artists := fmt.Sprintf("%d selected", len(m.picked))
	if len(m.picked) == 0 {
		artists = "all followed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name:    %s\n", m.name.View())
	fmt.Fprintf(&b, "Artists: %s\n\n", artists)
	fmt.Fprintf(&b, "%s public\n", checkbox(m.opts.Public))
	fmt.Fprintf(&b, "%s chronological\n", checkbox(m.opts.Chronological))
	fmt.Fprintf(&b, "%s singles only\n", checkbox(m.opts.SinglesOnly))
	if len(m.opts.Cover) > 0 {
		b.WriteString("\ncover image attached\n")
	}

	helpKeys := []key.Binding{m.keys.edit, m.keys.public, m.keys.chronological, m.keys.singles, m.keys.enter, m.keys.back, m.keys.quit}
	if m.editing {
		helpKeys = []key.Binding{key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter/esc", "done"))}
	}

	return fmt.Sprintf("%s\n%s\n%s", title, styles.box.Render(b.String()), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderBuilding() string {
	title := styles.title.Render("Building playlist")

	phase := "Starting..."
	if m.last.Message != "" {
		phase = m.last.Message
	}
	if m.last.Total > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", phase, m.last.Step, m.last.Total)
	}

	var log strings.Builder
	for _, line := range m.lines {
		log.WriteString(styles.help.Render("  "+line) + "\n")
	}

	cancelHelp := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel"))
	return fmt.Sprintf("%s\n%s %s\n\n%s\n%s", title, m.spinner.View(), phase, log.String(), m.help.ShortHelpView([]key.Binding{cancelHelp}))
}

func (m *Model) renderDone() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}

	if m.err != nil {
		msg := fmt.Sprintf("Build failed: %v", m.err)
		if errors.Is(m.err, shared.ErrCancelled) {
			msg = "Build cancelled"
		}
		if errors.Is(m.err, shared.ErrAuthRequired) {
			msg += "\nRun `fanlist auth login` and try again."
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), m.help.ShortHelpView(helpKeys))
	}

	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + m.help.ShortHelpView(helpKeys)
	}

	title := styles.ok.Render("✓ Dry run complete, nothing was written")
	if m.result.Playlist != nil {
		title = styles.ok.Render("✓ Playlist created")
	}
	info := fmt.Sprintf("\nArtists: %d\nTracks:  %d", m.result.ArtistCount, len(m.result.Tracks))
	if m.result.Playlist != nil {
		info = fmt.Sprintf("\nName:    %s\nURL:     %s%s", m.result.Playlist.Name, m.result.Playlist.URL, info)
		helpKeys = append([]key.Binding{m.keys.open}, helpKeys...)
	}

	var notes string
	if m.notice != "" {
		notes = "\n\n" + styles.warn.Render(m.notice)
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, notes, m.help.ShortHelpView(helpKeys))
}
