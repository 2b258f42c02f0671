package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/fanlist/internal/formatter"
	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/desertthunder/fanlist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// withProgress runs fn with a progress channel that is printed as it fills.
// Rate-limit waits of the fetcher are reported on the same channel.
func withProgress[T any](r *Runner, fn func(progress chan<- tasks.ProgressUpdate) (T, error)) (T, error) {
	progress := make(chan tasks.ProgressUpdate, 64)
	if r.fetcher != nil {
		r.fetcher.SetOnWait(tasks.RateLimitReporter(progress))
	}
	done := r.renderProgress(progress)

	v, err := fn(progress)

	if r.fetcher != nil {
		r.fetcher.SetOnWait(nil)
	}
	close(progress)
	<-done
	return v, err
}

// defaultRunOptions reads build defaults from the [build] config section.
func (r *Runner) defaultRunOptions() (tasks.RunOptions, error) {
	b := r.config.Build
	opts := tasks.RunOptions{
		Name:          b.PlaylistName,
		Public:        b.Public,
		Chronological: b.Chronological,
		SinglesOnly:   b.SinglesOnly,
	}
	if opts.Name == "" {
		opts.Name = shared.DefaultPlaylistName
	}

	cover, err := readCover(b.CoverPath)
	if err != nil {
		return opts, err
	}
	opts.Cover = cover
	return opts, nil
}

// runOptions layers build flags over the config defaults.
func (r *Runner) runOptions(cmd *cli.Command) (tasks.RunOptions, error) {
	opts, err := r.defaultRunOptions()
	if err != nil && cmd.String("cover") == "" {
		return opts, err
	}

	if name := cmd.String("name"); name != "" {
		opts.Name = name
	}
	opts.Public = opts.Public || cmd.Bool("public")
	opts.Chronological = opts.Chronological || cmd.Bool("chronological")
	opts.SinglesOnly = opts.SinglesOnly || cmd.Bool("singles-only")
	opts.ArtistIDs = cmd.StringSlice("artist")
	opts.DryRun = cmd.Bool("dry-run")

	if path := cmd.String("cover"); path != "" {
		cover, err := readCover(path)
		if err != nil {
			return opts, err
		}
		opts.Cover = cover
	}
	return opts, nil
}

func readCover(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cover: %v", shared.ErrInvalidArgument, err)
	}
	if err := services.ValidateCover(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Build collects every track of the selected followed artists and writes them to a new playlist.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.runOptions(cmd)
	if err != nil {
		return err
	}
	formats, err := formatter.ParseFormats(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.connect(); err != nil {
		return err
	}

	r.logger.Info("starting build", "name", opts.Name, "dry_run", opts.DryRun, "artists", len(opts.ArtistIDs))
	result, err := withProgress(r, func(progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
		return r.engine.Run(ctx, opts, progress)
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrCancelled):
			return err
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}
		return fmt.Errorf("build failed: %w", err)
	}

	export := &formatter.Export{
		Name:          opts.Name,
		Public:        opts.Public,
		Chronological: opts.Chronological,
		SinglesOnly:   opts.SinglesOnly,
		ArtistCount:   result.ArtistCount,
		GeneratedAt:   time.Now(),
		Tracks:        result.Tracks,
	}

	if opts.DryRun {
		r.writePlainln("Dry run: %d tracks from %d artists, no playlist written", len(result.Tracks), result.ArtistCount)
		if len(formats) == 0 {
			text, err := formatter.ExportToText(export)
			if err != nil {
				return err
			}
			_, err = r.output.Write(text)
			return err
		}
	} else if result.Playlist != nil {
		export.Name = result.Playlist.Name
		r.writePlainln("✓ Created %s playlist %q", shared.Visibility(result.Playlist.Public), result.Playlist.Name)
		r.writePlain("  Tracks: %d from %d artists\n", len(result.Tracks), result.ArtistCount)
		r.writePlain("  URL: %s\n", result.Playlist.URL)
	}

	if len(formats) == 0 {
		return nil
	}
	paths, err := formatter.WriteExports(export, formats, cmd.String("output"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		r.writePlain("✓ Exported %s\n", path)
	}
	return nil
}

// ArtistsList prints the followed artists in the order Spotify returns them.
func (r *Runner) ArtistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	artists, err := withProgress(r, func(progress chan<- tasks.ProgressUpdate) ([]models.Artist, error) {
		return r.engine.Artists(ctx, progress)
	})
	if err != nil {
		return fmt.Errorf("failed to list followed artists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(artists, true)
	}
	if len(artists) == 0 {
		return r.writePlain("You do not follow any artists.\n")
	}

	r.writePlain("Following %d artists:\n\n", len(artists))
	for i, a := range artists {
		r.writePlain("%3d. %s\n", i+1, a.Name)
		r.writePlain("     ID: %s\n", a.ID)
	}
	return nil
}

// Counts previews per-artist track counts. An interrupt prints what was counted so far.
func (r *Runner) Counts(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	singlesOnly := cmd.Bool("singles-only")
	counts, err := withProgress(r, func(progress chan<- tasks.ProgressUpdate) ([]models.TrackCount, error) {
		return r.engine.Counts(ctx, cmd.StringSlice("artist"), singlesOnly, progress)
	})
	partial := errors.Is(err, shared.ErrCancelled)
	if err != nil && !partial {
		return fmt.Errorf("failed to count tracks: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(counts, true)
	}

	r.writePlain("%s\n", countsTable(counts))
	if partial {
		r.writePlain("Stopped early after %d artists.\n", len(counts))
	}
	return nil
}

// countsTable renders counts with a total row.
func countsTable(counts []models.TrackCount) string {
	total := 0
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ARTIST", "ID", "TRACKS")
	for _, c := range counts {
		total += c.Count
		t.Row(c.ArtistName, c.ArtistID, strconv.Itoa(c.Count))
	}
	t.Row("Total", "", strconv.Itoa(total))
	return t.String()
}
