package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, nil), mock
}

func jobRows(jobs ...*Job) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "project_id", "short_id", "type", "status", "payload", "result",
		"error_message", "started_at", "completed_at", "created_at", "updated_at",
	})
	for _, j := range jobs {
		var startedAt, completedAt any
		if j.StartedAt != nil {
			startedAt = *j.StartedAt
		}
		if j.CompletedAt != nil {
			completedAt = *j.CompletedAt
		}
		rows.AddRow(j.ID, j.ProjectID, j.ShortID, string(j.Type), string(j.Status),
			[]byte(j.Payload), []byte(j.Result), j.ErrorMessage,
			startedAt, completedAt, j.CreatedAt, j.UpdatedAt)
	}
	return rows
}

func TestClaimJobsReturnsClaimedBatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	started := now
	a := &Job{ID: "job-a", ProjectID: "proj-1", Type: JobTypeThumbnail,
		Status: JobStatusRunning, StartedAt: &started, CreatedAt: now, UpdatedAt: now}
	b := &Job{ID: "job-b", ProjectID: "proj-2", Type: JobTypeTranscription,
		Status: JobStatusRunning, StartedAt: &started, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`UPDATE processing_jobs\s+SET status = 'running'.*FOR UPDATE SKIP LOCKED.*RETURNING`).
		WithArgs(2).
		WillReturnRows(jobRows(a, b))

	jobs, err := repo.ClaimJobs(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, JobStatusRunning, jobs[0].Status)
	assert.Equal(t, JobTypeTranscription, jobs[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimJobsEmptyQueue(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE processing_jobs`).
		WithArgs(3).
		WillReturnRows(jobRows())

	jobs, err := repo.ClaimJobs(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestClaimJobsRejectsBadLimit(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.ClaimJobs(context.Background(), 0)
	assert.Error(t, err)
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM processing_jobs WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(jobRows())

	job, err := repo.GetJob(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestEnqueueJobInsertsQueuedRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	job := NewJob(JobTypeAnalysis, "proj-1", json.RawMessage(`{"projectId":"proj-1"}`))

	mock.ExpectExec(`INSERT INTO processing_jobs`).
		WithArgs(job.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), string(JobTypeAnalysis), []byte(job.Payload)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.EnqueueJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSucceededGuardsRunningStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE processing_jobs\s+SET status = 'succeeded'.*WHERE id = \$1 AND status = 'running'`).
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkSucceeded(context.Background(), "job-1", map[string]any{"message": "done"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkSucceededStaleTransition(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Row already left running; guarded update matches nothing.
	mock.ExpectExec(`UPDATE processing_jobs`).
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkSucceeded(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkFailedRecordsMessage(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE processing_jobs\s+SET status = 'failed', error_message = \$2, completed_at = now\(\)`).
		WithArgs("job-1", "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkFailed(context.Background(), "job-1", "boom")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkFailedStaleTransition(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE processing_jobs`).
		WithArgs("job-1", "boom").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkFailed(context.Background(), "job-1", "boom")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountJobsByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM processing_jobs WHERE status = \$1`).
		WithArgs(JobStatusQueued).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountJobsByStatus(context.Background(), JobStatusQueued)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsByProjectOrdersOldestFirst(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	a := &Job{ID: "job-a", ProjectID: "proj-1", Type: JobTypeThumbnail,
		Status: JobStatusSucceeded, CreatedAt: now.Add(-time.Hour), UpdatedAt: now}
	b := &Job{ID: "job-b", ProjectID: "proj-1", Type: JobTypeTranscription,
		Status: JobStatusQueued, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`SELECT .* FROM processing_jobs WHERE project_id = \$1 ORDER BY created_at ASC`).
		WithArgs("proj-1").
		WillReturnRows(jobRows(a, b))

	jobs, err := repo.ListJobsByProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, JobTypeTranscription, jobs[1].Type)
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	repo, mock := newMockRepo(t)

	job := NewJob(JobTypeTranscription, "proj-1", nil)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO processing_jobs`).
		WithArgs(job.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), string(JobTypeTranscription), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx *sql.Tx) error {
		return repo.EnqueueJobTx(context.Background(), tx, job)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx *sql.Tx) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
