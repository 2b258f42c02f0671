package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
)

// TrackCountRepository stores track count previews keyed by (artist, release filter).
type TrackCountRepository struct {
	db *sql.DB
}

// NewTrackCountRepository creates a new TrackCountRepository with the given database connection
func NewTrackCountRepository(db *sql.DB) *TrackCountRepository {
	return &TrackCountRepository{db: db}
}

// Get returns the stored count for an artist and release filter. ok is false when nothing is stored.
func (r *TrackCountRepository) Get(artistID string, singlesOnly bool) (tc models.TrackCount, ok bool, err error) {
	query := `
		SELECT artist_id, artist_name, singles_only, track_count, updated_at
		FROM track_counts
		WHERE artist_id = ? AND singles_only = ?
	`

	tc, err = scanTrackCount(r.db.QueryRow(query, artistID, singlesOnly))
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackCount{}, false, nil
	}
	if err != nil {
		return models.TrackCount{}, false, err
	}
	return tc, true, nil
}

// Put inserts or replaces a count. A zero UpdatedAt is stamped with the current time.
func (r *TrackCountRepository) Put(tc models.TrackCount) error {
	if tc.ArtistID == "" {
		return fmt.Errorf("validation failed: artist id is required")
	}
	if tc.Count < 0 {
		return fmt.Errorf("validation failed: count cannot be negative")
	}
	if tc.UpdatedAt.IsZero() {
		tc.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO track_counts (artist_id, singles_only, artist_name, track_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(artist_id, singles_only) DO UPDATE SET
			artist_name = excluded.artist_name,
			track_count = excluded.track_count,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, tc.ArtistID, tc.SinglesOnly, tc.ArtistName, tc.Count, tc.UpdatedAt, tc.UpdatedAt); err != nil {
		return fmt.Errorf("failed to store track count: %w", err)
	}
	return nil
}

// List retrieves stored counts, largest first.
//
// Supported criteria: "singles_only" (bool).
func (r *TrackCountRepository) List(criteria map[string]any) ([]models.TrackCount, error) {
	query := `SELECT artist_id, artist_name, singles_only, track_count, updated_at FROM track_counts`
	args := []any{}

	if singlesOnly, ok := criteria["singles_only"].(bool); ok {
		query += " WHERE singles_only = ?"
		args = append(args, singlesOnly)
	}
	query += " ORDER BY track_count DESC, artist_name ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query track counts: %w", err)
	}
	defer rows.Close()

	counts := []models.TrackCount{}
	for rows.Next() {
		tc, err := scanTrackCount(rows)
		if err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// Clear removes every stored count and returns how many were removed.
func (r *TrackCountRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM track_counts`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear track counts: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func scanTrackCount(row rowScanner) (models.TrackCount, error) {
	var tc models.TrackCount

	err := row.Scan(&tc.ArtistID, &tc.ArtistName, &tc.SinglesOnly, &tc.Count, &tc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tc, err
	}
	if err != nil {
		return tc, fmt.Errorf("failed to scan track count: %w", err)
	}
	return tc, nil
}
