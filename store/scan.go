package store

import (
	"database/sql"
)

// jobScanArgs holds the nullable columns of a processing_jobs row during a
// scan. Same pattern for every job SELECT so the column order lives in one
// place.
type jobScanArgs struct {
	ProjectID    sql.NullString
	ShortID      sql.NullString
	Payload      []byte
	Result       []byte
	ErrorMessage sql.NullString
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}

// jobSelectColumns is the column list every job SELECT uses, in scan order.
const jobSelectColumns = `id, project_id, short_id, type, status, payload, result,
	error_message, started_at, completed_at, created_at, updated_at`

func jobScanTargets(job *Job, args *jobScanArgs) []any {
	return []any{
		&job.ID,
		&args.ProjectID,
		&args.ShortID,
		&job.Type,
		&job.Status,
		&args.Payload,
		&args.Result,
		&args.ErrorMessage,
		&args.StartedAt,
		&args.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
}

func applyJobScanArgs(job *Job, args *jobScanArgs) {
	if args.ProjectID.Valid {
		job.ProjectID = args.ProjectID.String
	}
	if args.ShortID.Valid {
		job.ShortID = args.ShortID.String
	}
	if len(args.Payload) > 0 {
		job.Payload = args.Payload
	}
	if len(args.Result) > 0 {
		job.Result = args.Result
	}
	if args.ErrorMessage.Valid {
		job.ErrorMessage = args.ErrorMessage.String
	}
	if args.StartedAt.Valid {
		t := args.StartedAt.Time
		job.StartedAt = &t
	}
	if args.CompletedAt.Valid {
		t := args.CompletedAt.Time
		job.CompletedAt = &t
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob scans one job from a row or rows cursor.
func scanJob(row rowScanner) (*Job, error) {
	var job Job
	args := &jobScanArgs{}
	if err := row.Scan(jobScanTargets(&job, args)...); err != nil {
		return nil, err
	}
	applyJobScanArgs(&job, args)
	return &job, nil
}
