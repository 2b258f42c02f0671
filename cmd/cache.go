package main

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/fanlist/internal/models"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// CacheList prints the cached track counts, largest first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if cmd.IsSet("singles-only") {
		criteria["singles_only"] = cmd.Bool("singles-only")
	}

	counts, err := r.counts.List(criteria)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return r.writePlain("No cached track counts. Run `fanlist counts` to fill the cache.\n")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ARTIST", "TRACKS", "FILTER", "COUNTED")
	for _, c := range counts {
		filter := "all releases"
		if c.SinglesOnly {
			filter = "singles"
		}
		t.Row(c.ArtistName, strconv.Itoa(c.Count), filter, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return r.writePlain("%s\n", t.String())
}

// CacheClear removes every cached track count.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	n, err := r.counts.Clear()
	if err != nil {
		return err
	}
	r.logger.Info("track count cache cleared", "removed", n)
	return r.writePlain("✓ Removed %d cached counts\n", n)
}

// History prints recorded builds, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	runs, err := r.runs.List(map[string]any{"limit": cmd.Int("limit")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(lo.Map(runs, func(run *models.BuildRun, _ int) runView { return newRunView(run) }), true)
	}
	if len(runs) == 0 {
		return r.writePlain("No builds recorded yet.\n")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "STARTED", "PLAYLIST", "STATUS", "ARTISTS", "TRACKS")
	for _, run := range runs {
		status := string(run.Status())
		if run.DryRun() {
			status += " (dry run)"
		}
		t.Row(
			strconv.Itoa(run.Sequence()),
			run.CreatedAt().Local().Format(time.DateTime),
			run.PlaylistName(),
			status,
			strconv.Itoa(run.ArtistCount()),
			strconv.Itoa(run.TrackCount()),
		)
	}
	r.writePlain("%s\n", t.String())

	for _, run := range runs {
		if run.Status() == models.RunFailed && run.ErrorMessage() != "" {
			r.writePlain("#%d failed: %s\n", run.Sequence(), run.ErrorMessage())
		}
	}
	return nil
}

// runView is the JSON shape of a recorded build.
type runView struct {
	ID            string     `json:"id"`
	Sequence      int        `json:"seq"`
	PlaylistName  string     `json:"playlist_name"`
	PlaylistID    string     `json:"playlist_id,omitempty"`
	PlaylistURL   string     `json:"playlist_url,omitempty"`
	Status        string     `json:"status"`
	ArtistCount   int        `json:"artist_count"`
	TrackCount    int        `json:"track_count"`
	Chronological bool       `json:"chronological"`
	SinglesOnly   bool       `json:"singles_only"`
	Public        bool       `json:"public"`
	DryRun        bool       `json:"dry_run"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func newRunView(run *models.BuildRun) runView {
	v := runView{
		ID:            run.ID(),
		Sequence:      run.Sequence(),
		PlaylistName:  run.PlaylistName(),
		PlaylistID:    run.PlaylistID(),
		Status:        string(run.Status()),
		ArtistCount:   run.ArtistCount(),
		TrackCount:    run.TrackCount(),
		Chronological: run.Chronological(),
		SinglesOnly:   run.SinglesOnly(),
		Public:        run.Public(),
		DryRun:        run.DryRun(),
		Error:         run.ErrorMessage(),
		CreatedAt:     run.CreatedAt(),
		FinishedAt:    run.FinishedAt(),
	}
	if v.PlaylistID != "" {
		v.PlaylistURL = models.PlaylistURL(v.PlaylistID)
	}
	return v
}
