package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// ErrRunNotFound is returned when a run does not exist or was deleted.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, sequence, source, param, playlist_name, playlist_id, playlist_url, status, total, added, skipped, error, started_at, finished_at, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.Run] for pipeline run history.
//
// Runs are soft deleted; their resolutions are kept alongside in the resolutions table.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (id, sequence, source, param, playlist_name, playlist_id, playlist_url, status, total, added, skipped, error, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var sequence int
	err := withTx(r.db, func(tx *sql.Tx) error {
		var err error
		if sequence, err = nextSequence(tx, "runs"); err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		_, err = tx.Exec(query,
			id,
			sequence,
			string(run.Source),
			run.Param,
			run.PlaylistName,
			run.PlaylistID,
			run.PlaylistURL,
			string(run.Status),
			run.Total,
			run.Added,
			run.Skipped,
			run.Error,
			run.StartedAt,
			nullTime(run.FinishedAt),
			run.CreatedAt(),
			run.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`
	return scanRun(r.db.QueryRow(query, id))
}

// Update modifies an existing run in the database
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET playlist_name = ?, playlist_id = ?, playlist_url = ?, status = ?, total = ?, added = ?, skipped = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.PlaylistName,
		run.PlaylistID,
		run.PlaylistURL,
		string(run.Status),
		run.Total,
		run.Added,
		run.Skipped,
		run.Error,
		nullTime(run.FinishedAt),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectOne(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return expectOne(result, id)
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "source" (string), "status" (string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
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

// SaveResolutions stores the per-entry outcomes of a run, replacing any stored for the same positions.
func (r *RunRepository) SaveResolutions(runID string, resolutions []models.Resolution) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO resolutions (run_id, position, raw_title, raw_artist, clean_title, clean_artist, external_id, confidence, outcome, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare resolution insert: %w", err)
		}
		defer stmt.Close()

		for _, res := range resolutions {
			_, err := stmt.Exec(
				runID,
				res.Position,
				res.RawTitle,
				res.RawArtist,
				res.CleanTitle,
				res.CleanArtist,
				res.ExternalID,
				res.Confidence.String(),
				string(res.Outcome),
				res.Error,
			)
			if err != nil {
				return fmt.Errorf("failed to insert resolution %d: %w", res.Position, err)
			}
		}
		return nil
	})
}

// ListResolutions returns the stored outcomes of a run in position order.
func (r *RunRepository) ListResolutions(runID string) ([]models.Resolution, error) {
	query := `
		SELECT run_id, position, raw_title, raw_artist, clean_title, clean_artist, external_id, confidence, outcome, error
		FROM resolutions
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var out []models.Resolution
	for rows.Next() {
		var (
			res        models.Resolution
			confidence string
			outcome    string
		)
		err := rows.Scan(&res.RunID, &res.Position, &res.RawTitle, &res.RawArtist, &res.CleanTitle, &res.CleanArtist, &res.ExternalID, &confidence, &outcome, &res.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}

		res.Confidence, err = models.ParseConfidence(confidence)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution %d: %w", res.Position, err)
		}
		res.Outcome = models.Outcome(outcome)
		out = append(out, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a [models.Run]
func scanRun(s scanner) (*models.Run, error) {
	var (
		id         string
		sequence   int
		source     string
		status     string
		run        models.Run
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := s.Scan(
		&id, &sequence, &source, &run.Param, &run.PlaylistName, &run.PlaylistID, &run.PlaylistURL, &status,
		&run.Total, &run.Added, &run.Skipped, &run.Error, &run.StartedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Source = models.SourceTag(source)
	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreRun(id, sequence, createdAt, updatedAt, deleted, run), nil
}

func expectOne(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", ErrRunNotFound, id)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
