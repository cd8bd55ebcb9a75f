package store

import (
	"context"
	"database/sql"

	"github.com/videditor/jobrunner/errors"
)

// InsertShort persists a derived clip row. Each short gets a fresh id, so
// concurrent analysis jobs for the same project never collide here.
func (r *Repository) InsertShort(ctx context.Context, s *Short) error {
	query := `
		INSERT INTO shorts (id, project_id, title, transcription_slice, start_time, end_time,
			output_object_key, thumbnail_url, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`

	outputKey := sql.NullString{String: s.OutputObjectKey, Valid: s.OutputObjectKey != ""}
	thumbnailURL := sql.NullString{String: s.ThumbnailURL, Valid: s.ThumbnailURL != ""}
	errorMessage := sql.NullString{String: s.ErrorMessage, Valid: s.ErrorMessage != ""}

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.ProjectID, s.Title, s.TranscriptionSlice, s.StartTime, s.EndTime,
		outputKey, thumbnailURL, s.Status, errorMessage)
	if err != nil {
		err = errors.Wrap(err, "failed to insert short")
		err = errors.WithDetailf(err, "Short ID: %s", s.ID)
		err = errors.WithDetailf(err, "Project ID: %s", s.ProjectID)
		return err
	}
	return nil
}

// ListShortsByProject returns the project's shorts, oldest first.
func (r *Repository) ListShortsByProject(ctx context.Context, projectID string) ([]*Short, error) {
	query := `
		SELECT id, project_id, title, transcription_slice, start_time, end_time,
			output_object_key, thumbnail_url, status, error_message, created_at, updated_at
		FROM shorts
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shorts")
	}
	defer rows.Close()

	var shorts []*Short
	for rows.Next() {
		var s Short
		var outputKey, thumbnailURL, errorMessage sql.NullString
		if err := rows.Scan(
			&s.ID, &s.ProjectID, &s.Title, &s.TranscriptionSlice, &s.StartTime, &s.EndTime,
			&outputKey, &thumbnailURL, &s.Status, &errorMessage, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan short")
		}
		if outputKey.Valid {
			s.OutputObjectKey = outputKey.String
		}
		if thumbnailURL.Valid {
			s.ThumbnailURL = thumbnailURL.String
		}
		if errorMessage.Valid {
			s.ErrorMessage = errorMessage.String
		}
		shorts = append(shorts, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating shorts")
	}
	return shorts, nil
}
