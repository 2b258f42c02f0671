package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [BuildRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// BuildRun records one playlist build.
type BuildRun struct {
	id            string
	sequence      int
	playlistName  string
	playlistID    string
	status        RunStatus
	artistCount   int
	trackCount    int
	chronological bool
	singlesOnly   bool
	public        bool
	dryRun        bool
	errorMessage  string
	createdAt     time.Time
	updatedAt     time.Time
	finishedAt    *time.Time
	deletedAt     *time.Time
}

// NewBuildRun creates a running BuildRun for the given playlist name and options.
func NewBuildRun(playlistName string, chronological, singlesOnly, public, dryRun bool) *BuildRun {
	now := time.Now()
	return &BuildRun{
		playlistName:  playlistName,
		status:        RunRunning,
		chronological: chronological,
		singlesOnly:   singlesOnly,
		public:        public,
		dryRun:        dryRun,
		createdAt:     now,
		updatedAt:     now,
	}
}

func (r *BuildRun) ID() string             { return r.id }
func (r *BuildRun) Sequence() int          { return r.sequence }
func (r *BuildRun) PlaylistName() string   { return r.playlistName }
func (r *BuildRun) PlaylistID() string     { return r.playlistID }
func (r *BuildRun) Status() RunStatus      { return r.status }
func (r *BuildRun) ArtistCount() int       { return r.artistCount }
func (r *BuildRun) TrackCount() int        { return r.trackCount }
func (r *BuildRun) Chronological() bool    { return r.chronological }
func (r *BuildRun) SinglesOnly() bool      { return r.singlesOnly }
func (r *BuildRun) Public() bool           { return r.public }
func (r *BuildRun) DryRun() bool           { return r.dryRun }
func (r *BuildRun) ErrorMessage() string   { return r.errorMessage }
func (r *BuildRun) CreatedAt() time.Time   { return r.createdAt }
func (r *BuildRun) UpdatedAt() time.Time   { return r.updatedAt }
func (r *BuildRun) FinishedAt() *time.Time { return r.finishedAt }
func (r *BuildRun) DeletedAt() *time.Time  { return r.deletedAt }

func (r *BuildRun) SetID(id string)                { r.id = id }
func (r *BuildRun) SetSequence(seq int)            { r.sequence = seq }
func (r *BuildRun) SetPlaylistID(id string)        { r.playlistID = id }
func (r *BuildRun) SetArtistCount(n int)           { r.artistCount = n }
func (r *BuildRun) SetTrackCount(n int)            { r.trackCount = n }
func (r *BuildRun) SetCreatedAt(t time.Time)       { r.createdAt = t }
func (r *BuildRun) SetUpdatedAt(t time.Time)       { r.updatedAt = t }
func (r *BuildRun) SetDeletedAt(t *time.Time)      { r.deletedAt = t }
func (r *BuildRun) SetFinishedAt(t *time.Time)     { r.finishedAt = t }
func (r *BuildRun) SetStatus(s RunStatus)          { r.status = s }
func (r *BuildRun) SetErrorMessage(message string) { r.errorMessage = message }

// Succeed marks the run finished without error.
func (r *BuildRun) Succeed(playlistID string, tracks int) {
	now := time.Now()
	r.status = RunSucceeded
	r.playlistID = playlistID
	r.trackCount = tracks
	r.finishedAt = &now
}

// Fail marks the run finished with err.
func (r *BuildRun) Fail(err error) {
	now := time.Now()
	r.status = RunFailed
	if err != nil {
		r.errorMessage = err.Error()
	}
	r.finishedAt = &now
}

// Validate checks required fields and status transitions.
func (r *BuildRun) Validate() error {
	if r.playlistName == "" {
		return fmt.Errorf("playlist name is required")
	}
	switch r.status {
	case RunRunning, RunSucceeded, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.artistCount < 0 || r.trackCount < 0 {
		return fmt.Errorf("counts cannot be negative")
	}
	if r.status == RunFailed && r.errorMessage == "" {
		return fmt.Errorf("failed run requires an error message")
	}
	return nil
}

// TrackCount is a cached result of the track count preview for one artist.
type TrackCount struct {
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	SinglesOnly bool      `json:"singles_only"`
	Count       int       `json:"count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
