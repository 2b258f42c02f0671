package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/desertthunder/fanlist/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/fanlist-tui.log"

// TUI launches the interactive artist picker and build screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	defaults, err := r.defaultRunOptions()
	if err != nil {
		return err
	}

	// Logs go to a file so they do not draw over the UI.
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.connect(); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.engine, defaults)
	if r.fetcher != nil {
		model.SetWaitHook(r.fetcher.SetOnWait)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if result := model.Result(); result != nil && result.Playlist != nil {
		r.writePlain("✓ %s: %s\n", result.Playlist.Name, result.Playlist.URL)
	}
	if err := model.Err(); err != nil && !errors.Is(err, shared.ErrCancelled) {
		return err
	}
	return nil
}
