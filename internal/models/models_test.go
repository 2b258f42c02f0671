package models

import (
	"errors"
	"testing"
)

func TestBuildRun(t *testing.T) {
	t.Run("NewBuildRun starts running", func(t *testing.T) {
		run := NewBuildRun("mix", true, false, false, false)
		if run.Status() != RunRunning {
			t.Errorf("expected running, got %s", run.Status())
		}
		if run.CreatedAt().IsZero() || run.FinishedAt() != nil {
			t.Error("expected created timestamp and no finish time")
		}
		if err := run.Validate(); err != nil {
			t.Errorf("expected valid run, got %v", err)
		}
	})

	t.Run("Succeed records playlist and count", func(t *testing.T) {
		run := NewBuildRun("mix", false, false, true, false)
		run.Succeed("pl1", 120)

		if run.Status() != RunSucceeded || run.PlaylistID() != "pl1" || run.TrackCount() != 120 {
			t.Errorf("unexpected run state: %s %s %d", run.Status(), run.PlaylistID(), run.TrackCount())
		}
		if run.FinishedAt() == nil {
			t.Error("expected finish time")
		}
	})

	t.Run("Fail keeps the error text", func(t *testing.T) {
		run := NewBuildRun("mix", false, false, false, false)
		run.Fail(errors.New("api error 500: boom"))

		if run.Status() != RunFailed || run.ErrorMessage() != "api error 500: boom" {
			t.Errorf("unexpected run state: %s %q", run.Status(), run.ErrorMessage())
		}
		if err := run.Validate(); err != nil {
			t.Errorf("expected valid failed run, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*BuildRun)
		}{
			{name: "empty name", mutate: func(r *BuildRun) { r.playlistName = "" }},
			{name: "unknown status", mutate: func(r *BuildRun) { r.SetStatus("paused") }},
			{name: "negative count", mutate: func(r *BuildRun) { r.SetTrackCount(-1) }},
			{name: "failed without message", mutate: func(r *BuildRun) { r.SetStatus(RunFailed) }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				run := NewBuildRun("mix", false, false, false, false)
				tt.mutate(run)
				if err := run.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})
}

func TestCatalogHelpers(t *testing.T) {
	if got := PlaylistURL("abc"); got != "https://open.spotify.com/playlist/abc" {
		t.Errorf("unexpected url %s", got)
	}

	if (User{ID: "u1"}).Name() != "u1" {
		t.Error("expected id fallback")
	}
	if (User{ID: "u1", DisplayName: "Ana"}).Name() != "Ana" {
		t.Error("expected display name")
	}

	if !(Track{ID: "t"}).FromTopTracks() {
		t.Error("track without album should be a top-tracks track")
	}
	if (Track{ID: "t", AlbumID: "a"}).FromTopTracks() {
		t.Error("album track reported as top-tracks track")
	}
}

func TestReleaseTrack(t *testing.T) {
	track := ReleaseTrack{ID: "t1", ArtistIDs: []string{"a1", "a2"}}

	if !track.CreditedTo("a2") {
		t.Error("expected a2 to be credited")
	}
	if track.CreditedTo("a3") {
		t.Error("a3 is not credited")
	}
	if (ReleaseTrack{ID: "t2"}).CreditedTo("a1") {
		t.Error("track without credits should not match")
	}
}
