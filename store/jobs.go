package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
)

// Repository provides the typed operations over the queue store. All writes
// are transactional; multi-row compositions go through InTx.
type Repository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewRepository creates a repository over an open database handle.
func NewRepository(db *sql.DB, logger *zap.SugaredLogger) *Repository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Repository{db: db, logger: logger}
}

// DB exposes the underlying handle for health checks and teardown.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// InTx runs fn inside a transaction, rolling back on error.
func (r *Repository) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Warnw("Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// ClaimJobs atomically claims up to limit queued jobs in FIFO order and
// transitions them to running.
//
// The subquery's FOR UPDATE SKIP LOCKED lets concurrent claimers iterate
// past rows another transaction has locked instead of blocking, so a queued
// row is returned to at most one caller. The whole claim is a single
// statement and therefore a single implicit transaction.
func (r *Repository) ClaimJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit < 1 {
		return nil, errors.Newf("claim limit must be >= 1, got %d", limit)
	}

	query := `
		UPDATE processing_jobs
		SET status = 'running', started_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM processing_jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectColumns

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan claimed job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating claimed jobs")
	}

	return jobs, nil
}

// GetJob retrieves a job by ID. Returns nil, nil when no row exists.
func (r *Repository) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM processing_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}
	return job, nil
}

// EnqueueJob inserts a new queued job on the root handle.
func (r *Repository) EnqueueJob(ctx context.Context, job *Job) error {
	return r.enqueueJob(ctx, r.db, job)
}

// EnqueueJobTx inserts a new queued job inside a caller-supplied transaction
// so derived rows and the successor land atomically.
func (r *Repository) EnqueueJobTx(ctx context.Context, tx *sql.Tx, job *Job) error {
	return r.enqueueJob(ctx, tx, job)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) enqueueJob(ctx context.Context, ex execer, job *Job) error {
	query := `
		INSERT INTO processing_jobs (id, project_id, short_id, type, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'queued', $5, now(), now())`

	projectID := sql.NullString{String: job.ProjectID, Valid: job.ProjectID != ""}
	shortID := sql.NullString{String: job.ShortID, Valid: job.ShortID != ""}
	var payload any
	if len(job.Payload) > 0 {
		payload = []byte(job.Payload)
	}

	if _, err := ex.ExecContext(ctx, query, job.ID, projectID, shortID, job.Type, payload); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetailf(err, "Job ID: %s", job.ID)
		err = errors.WithDetailf(err, "Type: %s", job.Type)
		return err
	}
	return nil
}

// MarkSucceeded records a successful terminal transition. The guard on the
// current status makes a late writer a no-op: the return value reports
// whether the transition applied (false = stale, the row had already left
// running).
func (r *Repository) MarkSucceeded(ctx context.Context, id string, result any) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal job result")
	}

	query := `
		UPDATE processing_jobs
		SET status = 'succeeded', result = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'running'`

	res, err := r.db.ExecContext(ctx, query, id, resultJSON)
	if err != nil {
		return false, errors.Wrapf(err, "failed to mark job %s succeeded", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

// MarkFailed records a failed terminal transition with the error message.
// Always executed on the root handle so a rolled-back handler transaction
// cannot take the failure record down with it. Same stale semantics as
// MarkSucceeded.
func (r *Repository) MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error) {
	query := `
		UPDATE processing_jobs
		SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'running'`

	res, err := r.db.ExecContext(ctx, query, id, errorMessage)
	if err != nil {
		return false, errors.Wrapf(err, "failed to mark job %s failed", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

// CountJobsByStatus returns the number of jobs in the given status, used by
// operational tooling and tests.
func (r *Repository) CountJobsByStatus(ctx context.Context, status JobStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM processing_jobs WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count %s jobs", status)
	}
	return count, nil
}

// ListJobsByProject returns all jobs for a project ordered by creation,
// oldest first.
func (r *Repository) ListJobsByProject(ctx context.Context, projectID string) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns + `
		FROM processing_jobs
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs by project")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}
