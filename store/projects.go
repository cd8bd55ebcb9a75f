package store

import (
	"context"
	"database/sql"

	"github.com/videditor/jobrunner/errors"
)

// GetProject reads the columns the runner needs from a project row.
// Returns nil, nil when the project does not exist.
func (r *Repository) GetProject(ctx context.Context, id string) (*Project, error) {
	query := `
		SELECT id, user_id, title, source_object_key, source_bucket,
			thumbnail_url, duration_seconds, status, created_at, updated_at
		FROM projects
		WHERE id = $1`

	var p Project
	var thumbnailURL sql.NullString
	var duration sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.SourceObjectKey,
		&p.SourceBucket,
		&thumbnailURL,
		&duration,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get project %s", id)
	}

	if thumbnailURL.Valid {
		p.ThumbnailURL = thumbnailURL.String
	}
	if duration.Valid {
		d := duration.Float64
		p.DurationSeconds = &d
	}
	return &p, nil
}

// SetProjectStatus updates the project's workflow status. Last writer wins;
// concurrent jobs for the same project are allowed to interleave here.
func (r *Repository) SetProjectStatus(ctx context.Context, id string, status ProjectStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return errors.Wrapf(err, "failed to set project %s status to %s", id, status)
	}
	return nil
}

// SetProjectThumbnail records the generated thumbnail and probed duration
// and flips the project to ready, in one statement.
func (r *Repository) SetProjectThumbnail(ctx context.Context, id, thumbnailObjectKey string, durationSeconds float64) error {
	query := `
		UPDATE projects
		SET thumbnail_url = $2, duration_seconds = $3, status = 'ready', updated_at = now()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, thumbnailObjectKey, durationSeconds)
	if err != nil {
		return errors.Wrapf(err, "failed to record thumbnail for project %s", id)
	}
	return nil
}

// SetProjectStatusTx is SetProjectStatus composed into a caller transaction.
func (r *Repository) SetProjectStatusTx(ctx context.Context, tx *sql.Tx, id string, status ProjectStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE projects SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return errors.Wrapf(err, "failed to set project %s status to %s", id, status)
	}
	return nil
}
