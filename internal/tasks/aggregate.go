package tasks

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/samber/lo"
)

// MaxTracks is the largest number of tracks a playlist can hold.
const MaxTracks = 10000

// Options selects how tracks are collected and ordered.
type Options struct {
	// Chronological orders each artist's releases by date and the final list by
	// (release date, track number).
	Chronological bool
	// SinglesOnly limits releases to singles.
	SinglesOnly bool
	// Now stamps top-track fallbacks. Defaults to [time.Now].
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// earliestRelease is where undated releases sort: before any real date.
var earliestRelease = time.Time{}

var releaseLayouts = map[string]string{
	"day":   time.DateOnly,
	"month": "2006-01",
	"year":  "2006",
}

// ParseReleaseDate normalizes a release date to a sortable instant in UTC.
//
// Year precision anchors to Jan 1 and month precision to the 1st. When the
// precision is missing or does not match the date, each layout is tried in
// turn. A missing or unparseable date is [time.Time]'s zero value so it sorts
// ahead of every dated release.
func ParseReleaseDate(date, precision string) time.Time {
	if date == "" {
		return earliestRelease
	}

	if layout, ok := releaseLayouts[precision]; ok {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}
	for _, layout := range []string{time.DateOnly, "2006-01", "2006"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}
	return earliestRelease
}

type datedAlbum struct {
	models.Album
	date time.Time
}

func byDiscAndNumber(a, b models.ReleaseTrack) int {
	if c := cmp.Compare(a.DiscNumber, b.DiscNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.TrackNumber, b.TrackNumber)
}

func byDateAndNumber(a, b models.Track) int {
	if c := a.AlbumDate.Compare(b.AlbumDate); c != 0 {
		return c
	}
	return cmp.Compare(a.TrackNumber, b.TrackNumber)
}

// BuildTracks collects every track of artists, visiting them one at a time in
// order.
//
// Artists without releases contribute their top tracks instead. Album tracks
// are kept only when the artist is credited on them, and a track id appears at
// most once across the whole result. The result holds at most [MaxTracks]
// entries. Any catalog error aborts the build.
func BuildTracks(
	ctx context.Context,
	catalog services.Catalog,
	artists []models.Artist,
	opts Options,
	progress chan<- ProgressUpdate,
) ([]models.Track, error) {
	now := opts.now()
	seen := make(map[string]struct{})
	out := make([]models.Track, 0)

	keep := func(id string) bool {
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		return true
	}

	for i, artist := range artists {
		albums, err := catalog.ArtistAlbums(ctx, artist.ID, opts.SinglesOnly)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases for %s: %w", artist.Name, err)
		}

		if len(albums) == 0 {
			top, err := catalog.TopTracks(ctx, artist.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list top tracks for %s: %w", artist.Name, err)
			}
			sendProgress(progress, fallbackUpdate(i+1, len(artists), artist, len(top)))

			for _, t := range top {
				if !keep(t.ID) {
					continue
				}
				out = append(out, models.Track{
					ID:         t.ID,
					URI:        t.URI,
					Name:       t.Name,
					ArtistID:   artist.ID,
					ArtistName: artist.Name,
					DiscNumber: t.DiscNumber,
					AlbumDate:  now,
				})
			}
			continue
		}

		sendProgress(progress, readReleasesUpdate(i+1, len(artists), artist, len(albums)))

		dated := lo.Map(albums, func(a models.Album, _ int) datedAlbum {
			return datedAlbum{Album: a, date: ParseReleaseDate(a.ReleaseDate, a.ReleaseDatePrecision)}
		})
		if opts.Chronological {
			slices.SortStableFunc(dated, func(a, b datedAlbum) int { return a.date.Compare(b.date) })
		}

		for _, album := range dated {
			tracks, err := catalog.AlbumTracks(ctx, album.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list tracks of %s: %w", album.Name, err)
			}
			tracks = slices.Clone(tracks)
			slices.SortStableFunc(tracks, byDiscAndNumber)

			for _, t := range tracks {
				if !t.CreditedTo(artist.ID) || !keep(t.ID) {
					continue
				}
				out = append(out, models.Track{
					ID:          t.ID,
					URI:         t.URI,
					Name:        t.Name,
					ArtistID:    artist.ID,
					ArtistName:  artist.Name,
					AlbumID:     album.ID,
					AlbumName:   album.Name,
					DiscNumber:  t.DiscNumber,
					TrackNumber: t.TrackNumber,
					AlbumDate:   album.date,
				})
			}
		}
	}

	if opts.Chronological {
		slices.SortStableFunc(out, byDateAndNumber)
	}

	if len(out) > MaxTracks {
		sendProgress(progress, truncateUpdate(len(out), MaxTracks))
		out = out[:MaxTracks]
	}

	return out, nil
}

// BuildTrackURIs returns the URIs of tracks in order.
func BuildTrackURIs(tracks []models.Track) []string {
	return lo.Map(tracks, func(t models.Track, _ int) string { return t.URI })
}
