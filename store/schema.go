package store

import (
	"context"
	"database/sql"

	"github.com/videditor/jobrunner/errors"
)

// schemaStatements are applied in order at startup. Everything is
// IF NOT EXISTS so a fleet of workers can race through EnsureSchema safely.
// The projects table is owned by the upload API; creating it here only
// covers fresh development databases.
var schemaStatements = []string{
	`DO $$ BEGIN
		CREATE TYPE job_type AS ENUM ('thumbnail', 'transcription', 'analysis', 'cutting', 'delivery');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE job_status AS ENUM ('queued', 'running', 'succeeded', 'failed', 'canceled');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE project_status AS ENUM ('uploading', 'ready', 'queued', 'processing', 'transcribing', 'analyzing', 'rendering', 'delivering', 'completed', 'error');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE short_status AS ENUM ('pending', 'processing', 'completed', 'error');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,

	`CREATE TABLE IF NOT EXISTS processing_jobs (
		id            VARCHAR(255) PRIMARY KEY,
		project_id    VARCHAR(255),
		short_id      VARCHAR(255),
		type          job_type NOT NULL,
		status        job_status NOT NULL DEFAULT 'queued',
		payload       JSONB,
		result        JSONB,
		error_message TEXT,
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_processing_jobs_project_id ON processing_jobs (project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_processing_jobs_status ON processing_jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_processing_jobs_type ON processing_jobs (type)`,
	`CREATE INDEX IF NOT EXISTS idx_processing_jobs_claim ON processing_jobs (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id                VARCHAR(255) PRIMARY KEY,
		user_id           VARCHAR(255) NOT NULL,
		title             TEXT NOT NULL,
		source_object_key TEXT NOT NULL,
		source_bucket     TEXT NOT NULL,
		thumbnail_url     TEXT,
		duration_seconds  DOUBLE PRECISION,
		file_size_bytes   BIGINT,
		status            project_status NOT NULL DEFAULT 'uploading',
		priority          REAL DEFAULT 0,
		error_message     TEXT,
		metadata          JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects (user_id)`,

	`CREATE TABLE IF NOT EXISTS transcriptions (
		id               VARCHAR(255) PRIMARY KEY,
		project_id       VARCHAR(255) NOT NULL,
		text             TEXT NOT NULL,
		segments         JSONB NOT NULL DEFAULT '[]',
		language         VARCHAR(16),
		duration_seconds DOUBLE PRECISION,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcriptions_project_id ON transcriptions (project_id)`,

	`CREATE TABLE IF NOT EXISTS shorts (
		id                  VARCHAR(255) PRIMARY KEY,
		project_id          VARCHAR(255) NOT NULL,
		title               TEXT NOT NULL DEFAULT '',
		transcription_slice TEXT NOT NULL,
		start_time          DOUBLE PRECISION NOT NULL,
		end_time            DOUBLE PRECISION NOT NULL,
		output_object_key   TEXT,
		thumbnail_url       TEXT,
		status              short_status NOT NULL DEFAULT 'pending',
		error_message       TEXT,
		metadata            JSONB,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shorts_project_id ON shorts (project_id)`,
}

// EnsureSchema applies the DDL idempotently.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply schema statement")
		}
	}
	return nil
}
