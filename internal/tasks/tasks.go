// package tasks builds playlists from followed artists.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/samber/lo"
)

// RunOptions configures a single playlist build.
type RunOptions struct {
	Name          string   // Playlist name; defaults to [shared.DefaultPlaylistName]
	Public        bool     // Create a public playlist
	Chronological bool     // Order releases by date
	SinglesOnly   bool     // Only read singles
	ArtistIDs     []string // Followed artists to include; empty means all
	Cover         []byte   // Optional JPEG cover
	DryRun        bool     // Aggregate only, write nothing
}

// RunResult contains everything a build produced.
type RunResult struct {
	User        models.User
	Artists     []models.Artist  // Artists the tracks were collected from
	ArtistCount int              // Number of selected artists
	Tracks      []models.Track   // Final ordered track list
	Playlist    *models.Playlist // Created playlist; nil on dry runs
	Run         *models.BuildRun // Recorded run
}

// URIs returns the track URIs in playlist order.
func (r *RunResult) URIs() []string {
	return BuildTrackURIs(r.Tracks)
}

// RunRecorder persists build runs.
type RunRecorder interface {
	Create(run *models.BuildRun) error
	Update(run *models.BuildRun) error
}

// Engine defines the operations exposed to the CLI and TUI.
type Engine interface {
	// Artists lists followed artists in server order.
	Artists(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Artist, error)

	// Run aggregates tracks from the selected artists and writes them to a new playlist.
	Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error)

	// Counts previews per-artist track counts. Cancelling ctx returns the
	// counts gathered so far with [shared.ErrCancelled].
	Counts(ctx context.Context, artistIDs []string, singlesOnly bool, progress chan<- ProgressUpdate) ([]models.TrackCount, error)
}

// PlaylistEngine implements Engine on top of a [services.Service].
type PlaylistEngine struct {
	service services.Service
	runs    RunRecorder
	counts  CountCache
	logger  *log.Logger
	now     func() time.Time
}

var _ Engine = (*PlaylistEngine)(nil)

// NewPlaylistEngine creates a new PlaylistEngine. runs and counts are optional.
func NewPlaylistEngine(service services.Service, runs RunRecorder, counts CountCache, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		service: service,
		runs:    runs,
		counts:  counts,
		logger:  logger,
		now:     time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// RateLimitReporter adapts progress into a fetcher wait hook.
func RateLimitReporter(progress chan<- ProgressUpdate) func(url string, wait time.Duration) {
	return func(url string, wait time.Duration) {
		sendProgress(progress, RateLimitedUpdate(url, wait))
	}
}

// SelectArtists keeps the followed artists whose id is in ids, in followed
// order. Unknown ids are ignored and an empty ids keeps everyone.
func SelectArtists(followed []models.Artist, ids []string) []models.Artist {
	if len(ids) == 0 {
		return followed
	}
	want := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })
	return lo.Filter(followed, func(a models.Artist, _ int) bool {
		_, ok := want[a.ID]
		return ok
	})
}

func (e *PlaylistEngine) ready() error {
	if e.service == nil {
		return fmt.Errorf("%w: music service not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// Artists lists followed artists in server order.
func (e *PlaylistEngine) Artists(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Artist, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sendProgress(progress, fetchArtistsUpdate(-1))
	artists, err := e.service.FollowedArtists(ctx)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, fetchArtistsUpdate(len(artists)))
	return artists, nil
}

// Run performs a full build: profile, followed artists, selection, aggregation
// and, unless DryRun is set, playlist creation, item replacement and the
// optional cover upload. Every run is recorded when a [RunRecorder] is set.
//
// Cancelling ctx before the playlist is created stops the build with
// [shared.ErrCancelled]. After that the writes ignore cancellation.
func (e *PlaylistEngine) Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (result *RunResult, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = shared.DefaultPlaylistName
	}
	if len(opts.Cover) > 0 {
		if err := services.ValidateCover(opts.Cover); err != nil {
			return nil, err
		}
	}

	run := models.NewBuildRun(opts.Name, opts.Chronological, opts.SinglesOnly, opts.Public, opts.DryRun)
	e.record(run, true)
	result = &RunResult{Run: run}

	defer func() {
		if err != nil {
			run.Fail(err)
		} else {
			playlistID := ""
			if result.Playlist != nil {
				playlistID = result.Playlist.ID
			}
			run.Succeed(playlistID, len(result.Tracks))
		}
		e.record(run, false)
	}()

	sendProgress(progress, fetchProfileUpdate())
	user, err := e.service.Me(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read profile: %w", err)
	}
	result.User = user

	followed, err := e.Artists(ctx, progress)
	if err != nil {
		return result, fmt.Errorf("failed to read followed artists: %w", err)
	}

	artists := SelectArtists(followed, opts.ArtistIDs)
	if len(artists) == 0 {
		return result, shared.ErrNoArtists
	}
	result.Artists = artists
	result.ArtistCount = len(artists)
	run.SetArtistCount(len(artists))

	tracks, err := BuildTracks(ctx, e.service, artists, Options{
		Chronological: opts.Chronological,
		SinglesOnly:   opts.SinglesOnly,
		Now:           e.now,
	}, progress)
	if err != nil {
		return result, err
	}
	result.Tracks = tracks
	e.logger.Info("tracks collected", "artists", len(artists), "tracks", len(tracks))

	if opts.DryRun {
		sendProgress(progress, completeUpdate(result))
		return result, nil
	}

	if ctx.Err() != nil {
		return result, shared.ErrCancelled
	}
	// Writes ignore cancellation once the playlist exists.
	writeCtx := context.WithoutCancel(ctx)

	sendProgress(progress, creatingPlaylistUpdate(opts.Name))
	playlist, err := e.service.CreatePlaylist(writeCtx, user.ID, opts.Name, opts.Public)
	if err != nil {
		return result, fmt.Errorf("failed to create playlist: %w", err)
	}
	result.Playlist = &playlist
	run.SetPlaylistID(playlist.ID)
	sendProgress(progress, playlistCreatedUpdate(playlist))

	uris := BuildTrackURIs(tracks)
	sendProgress(progress, writeTracksUpdate(0, len(uris)))
	if err := e.service.ReplaceItems(writeCtx, playlist.ID, uris, func(done, total int) {
		sendProgress(progress, writeTracksUpdate(done, total))
	}); err != nil {
		return result, fmt.Errorf("failed to write tracks: %w", err)
	}

	if len(opts.Cover) > 0 {
		sendProgress(progress, uploadCoverUpdate())
		if err := e.service.UploadCover(writeCtx, playlist.ID, opts.Cover); err != nil {
			return result, err
		}
	}

	e.logger.Info("playlist written", "id", playlist.ID, "url", playlist.URL, "tracks", len(uris))
	sendProgress(progress, completeUpdate(result))
	return result, nil
}

// record persists run state. Failures are logged and never fail the build.
func (e *PlaylistEngine) record(run *models.BuildRun, create bool) {
	if e.runs == nil {
		return
	}

	var err error
	if create {
		err = e.runs.Create(run)
	} else {
		err = e.runs.Update(run)
	}
	if err != nil {
		e.logger.Warn("failed to record run", "run", run.ID(), "error", err)
	}
}

// Counts previews the track count of each selected artist.
func (e *PlaylistEngine) Counts(ctx context.Context, artistIDs []string, singlesOnly bool, progress chan<- ProgressUpdate) ([]models.TrackCount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	followed, err := e.Artists(ctx, progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, shared.ErrCancelled
		}
		return nil, err
	}

	artists := SelectArtists(followed, artistIDs)
	if len(artists) == 0 {
		return nil, shared.ErrNoArtists
	}

	index := make(map[string]int, len(artists))
	for i, a := range artists {
		index[a.ID] = i
	}

	counts, err := CountTracks(ctx, e.service, artists, singlesOnly, e.counts, func(artistID string, count int) {
		i := index[artistID]
		sendProgress(progress, countTracksUpdate(i+1, len(artists), artists[i], count))
	})

	now := e.now()
	out := make([]models.TrackCount, 0, len(counts))
	for _, a := range artists {
		n, ok := counts[a.ID]
		if !ok {
			continue
		}
		out = append(out, models.TrackCount{
			ArtistID:    a.ID,
			ArtistName:  a.Name,
			SinglesOnly: singlesOnly,
			Count:       n,
			UpdatedAt:   now,
		})
	}

	return out, err
}
