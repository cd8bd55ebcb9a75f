package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/videditor/jobrunner/errors"
)

// InsertTranscriptionTx persists a transcription inside a caller
// transaction. The transcription handler composes this with the project
// status update and the analysis successor enqueue.
func (r *Repository) InsertTranscriptionTx(ctx context.Context, tx *sql.Tx, t *Transcription) error {
	segments, err := MarshalSegments(t.Segments)
	if err != nil {
		return errors.Wrap(err, "failed to marshal transcription segments")
	}

	query := `
		INSERT INTO transcriptions (id, project_id, text, segments, language, duration_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`

	language := sql.NullString{String: t.Language, Valid: t.Language != ""}
	duration := sql.NullFloat64{}
	if t.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *t.DurationSeconds, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, query, t.ID, t.ProjectID, t.Text, segments, language, duration); err != nil {
		err = errors.Wrap(err, "failed to insert transcription")
		err = errors.WithDetailf(err, "Transcription ID: %s", t.ID)
		err = errors.WithDetailf(err, "Project ID: %s", t.ProjectID)
		return err
	}
	return nil
}

// GetTranscriptionByProject returns the project's transcription, or
// nil, nil when none exists yet.
func (r *Repository) GetTranscriptionByProject(ctx context.Context, projectID string) (*Transcription, error) {
	query := `
		SELECT id, project_id, text, segments, language, duration_seconds, created_at, updated_at
		FROM transcriptions
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var t Transcription
	var segments []byte
	var language sql.NullString
	var duration sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&t.ID,
		&t.ProjectID,
		&t.Text,
		&segments,
		&language,
		&duration,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get transcription for project %s", projectID)
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &t.Segments); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal segments for transcription %s", t.ID)
		}
	}
	if language.Valid {
		t.Language = language.String
	}
	if duration.Valid {
		d := duration.Float64
		t.DurationSeconds = &d
	}
	return &t, nil
}
