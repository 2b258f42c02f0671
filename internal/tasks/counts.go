package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/desertthunder/fanlist/internal/shared"
)

// CountCache stores track counts keyed by artist and release filter.
type CountCache interface {
	GetCount(artistID string, singlesOnly bool) (int, bool)
	PutCount(artist models.Artist, singlesOnly bool, count int) error
}

// CountTracks previews how many tracks each artist would contribute.
//
// Each artist is counted on its own: tracks shared with another artist are
// counted for both. Artists without releases count their top tracks. onUpdate
// receives the running count after every album and the final count once per
// artist. Cached artists are reported from the cache without any request.
//
// Cancelling ctx stops the preview at the next artist or album boundary with
// [shared.ErrCancelled].
func CountTracks(
	ctx context.Context,
	catalog services.Catalog,
	artists []models.Artist,
	singlesOnly bool,
	cache CountCache,
	onUpdate func(artistID string, count int),
) (map[string]int, error) {
	if onUpdate == nil {
		onUpdate = func(string, int) {}
	}
	counts := make(map[string]int, len(artists))

	cancelled := func(err error) error {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return shared.ErrCancelled
		}
		return err
	}

	for _, artist := range artists {
		if ctx.Err() != nil {
			return counts, shared.ErrCancelled
		}

		if cache != nil {
			if n, ok := cache.GetCount(artist.ID, singlesOnly); ok {
				counts[artist.ID] = n
				onUpdate(artist.ID, n)
				continue
			}
		}

		albums, err := catalog.ArtistAlbums(ctx, artist.ID, singlesOnly)
		if err != nil {
			return counts, cancelled(fmt.Errorf("failed to list releases for %s: %w", artist.Name, err))
		}

		var count int
		if len(albums) == 0 {
			top, err := catalog.TopTracks(ctx, artist.ID)
			if err != nil {
				return counts, cancelled(fmt.Errorf("failed to list top tracks for %s: %w", artist.Name, err))
			}
			count = len(top)
		} else {
			seen := make(map[string]struct{})
			for _, album := range albums {
				tracks, err := catalog.AlbumTracks(ctx, album.ID)
				if err != nil {
					return counts, cancelled(fmt.Errorf("failed to list tracks of %s: %w", album.Name, err))
				}
				for _, t := range tracks {
					if t.CreditedTo(artist.ID) {
						seen[t.ID] = struct{}{}
					}
				}
				onUpdate(artist.ID, len(seen))

				if ctx.Err() != nil {
					return counts, shared.ErrCancelled
				}
			}
			count = len(seen)
		}

		counts[artist.ID] = count
		onUpdate(artist.ID, count)

		if cache != nil {
			if err := cache.PutCount(artist, singlesOnly, count); err != nil {
				return counts, fmt.Errorf("failed to cache count for %s: %w", artist.Name, err)
			}
		}
	}

	return counts, nil
}
