package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/shared"
)

const runColumns = `id, seq, playlist_name, playlist_id, status, artist_count, track_count,
	chronological, singles_only, is_public, dry_run, error,
	created_at, updated_at, finished_at, deleted_at`

// RunRepository implements models.Repository[*models.BuildRun] for build history.
//
// Handles run CRUD operations with soft delete support and status-based queries.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.BuildRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.BuildRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (
			id, seq, playlist_name, playlist_id, status, artist_count, track_count,
			chronological, singles_only, is_public, dry_run, error,
			created_at, updated_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.PlaylistName(),
		run.PlaylistID(),
		string(run.Status()),
		run.ArtistCount(),
		run.TrackCount(),
		run.Chronological(),
		run.SinglesOnly(),
		run.Public(),
		run.DryRun(),
		run.ErrorMessage(),
		run.CreatedAt(),
		run.UpdatedAt(),
		run.FinishedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// GetBySequence retrieves a run by its sequence number
func (r *RunRepository) GetBySequence(seq int) (*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE seq = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, seq))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: #%d", shared.ErrRunNotFound, seq)
	}
	return run, err
}

// Update writes the mutable state of a run: outcome, counts and timestamps
func (r *RunRepository) Update(run *models.BuildRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET playlist_id = ?, status = ?, artist_count = ?, track_count = ?, error = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.PlaylistID(),
		string(run.Status()),
		run.ArtistCount(),
		run.TrackCount(),
		run.ErrorMessage(),
		now,
		run.FinishedAt(),
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectRow(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "status" (string or [models.RunStatus]) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.BuildRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY seq DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.BuildRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

// scanRun scans a single row into a [models.BuildRun]. A missing row returns [sql.ErrNoRows] unwrapped.
func scanRun(row rowScanner) (*models.BuildRun, error) {
	var (
		id            string
		sequence      int
		playlistName  string
		playlistID    string
		status        string
		artistCount   int
		trackCount    int
		chronological bool
		singlesOnly   bool
		public        bool
		dryRun        bool
		errorMessage  string
		createdAt     time.Time
		updatedAt     time.Time
		finishedAt    sql.NullTime
		deletedAt     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistName, &playlistID, &status, &artistCount, &trackCount,
		&chronological, &singlesOnly, &public, &dryRun, &errorMessage,
		&createdAt, &updatedAt, &finishedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewBuildRun(playlistName, chronological, singlesOnly, public, dryRun)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetPlaylistID(playlistID)
	run.SetStatus(models.RunStatus(status))
	run.SetArtistCount(artistCount)
	run.SetTrackCount(trackCount)
	run.SetErrorMessage(errorMessage)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
