package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FetchArtists
	ReadReleases
	Fallback
	Truncate
	CreatePlaylist
	WriteTracks
	UploadCover
	RateLimited
	CountPreview
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FetchArtists:
		return "fetch_artists"
	case ReadReleases:
		return "read_releases"
	case Fallback:
		return "fallback"
	case Truncate:
		return "truncate"
	case CreatePlaylist:
		return "create_playlist"
	case WriteTracks:
		return "write_tracks"
	case UploadCover:
		return "upload_cover"
	case RateLimited:
		return "rate_limited"
	case CountPreview:
		return "count_tracks"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func fetchProfileUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchProfile, Step: 1, Total: 1, Message: "Reading your profile..."}
}

func fetchArtistsUpdate(count int) ProgressUpdate {
	if count < 0 {
		return ProgressUpdate{Phase: FetchArtists, Message: "Reading followed artists..."}
	}
	return ProgressUpdate{
		Phase:   FetchArtists,
		Step:    count,
		Total:   count,
		Message: fmt.Sprintf("Following %d artists", count),
	}
}

func readReleasesUpdate(step, total int, artist models.Artist, albums int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadReleases,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d releases", step, total, artist.Name, albums),
		Data:    artist,
	}
}

func fallbackUpdate(step, total int, artist models.Artist, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fallback,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: no releases, using %d top tracks", step, total, artist.Name, tracks),
		Data:    artist,
	}
}

func truncateUpdate(from, to int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Truncate,
		Step:    to,
		Total:   from,
		Message: fmt.Sprintf("Keeping the first %d of %d tracks", to, from),
	}
}

func creatingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func playlistCreatedUpdate(pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func writeTracksUpdate(done, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("Added %d/%d tracks", done, total),
	}
}

func uploadCoverUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: UploadCover, Step: 1, Total: 1, Message: "Uploading cover image..."}
}

// RateLimitedUpdate reports a backoff sleep from the fetcher.
func RateLimitedUpdate(url string, wait time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RateLimited,
		Message: fmt.Sprintf("Rate limited, waiting %s", wait),
		Data:    url,
	}
}

func countTracksUpdate(step, total int, artist models.Artist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CountPreview,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d tracks", step, total, artist.Name, count),
		Data:    artist,
	}
}

func completeUpdate(result *RunResult) ProgressUpdate {
	msg := fmt.Sprintf("Done: %d tracks from %d artists", len(result.Tracks), result.ArtistCount)
	if result.Playlist != nil {
		msg = fmt.Sprintf("%s -> %s", msg, result.Playlist.URL)
	}
	return ProgressUpdate{Phase: Complete, Step: 1, Total: 1, Message: msg, Data: result}
}
