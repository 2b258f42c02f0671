package repositories

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fanlist/internal/models"
)

// CountCacheAdapter implements tasks.CountCache using TrackCountRepository.
//
// Counts older than MaxAge are treated as missing so new releases show up.
// Lookup failures are logged and reported as a miss.
type CountCacheAdapter struct {
	repo   *TrackCountRepository
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time
}

// NewCountCacheAdapter creates a new CountCacheAdapter. A zero maxAge never expires entries.
func NewCountCacheAdapter(repo *TrackCountRepository, maxAge time.Duration, logger *log.Logger) *CountCacheAdapter {
	if logger == nil {
		logger = log.Default()
	}
	return &CountCacheAdapter{repo: repo, maxAge: maxAge, logger: logger, now: time.Now}
}

// GetCount returns a cached, unexpired count.
func (a *CountCacheAdapter) GetCount(artistID string, singlesOnly bool) (int, bool) {
	tc, ok, err := a.repo.Get(artistID, singlesOnly)
	if err != nil {
		a.logger.Warn("track count lookup failed", "artist", artistID, "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	if a.maxAge > 0 && a.now().Sub(tc.UpdatedAt) > a.maxAge {
		return 0, false
	}
	return tc.Count, true
}

// PutCount stores a freshly computed count.
func (a *CountCacheAdapter) PutCount(artist models.Artist, singlesOnly bool, count int) error {
	return a.repo.Put(models.TrackCount{
		ArtistID:    artist.ID,
		ArtistName:  artist.Name,
		SinglesOnly: singlesOnly,
		Count:       count,
		UpdatedAt:   a.now(),
	})
}
