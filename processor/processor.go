// Package processor executes claimed jobs and drives the project workflow.
//
// The worker claims jobs and hands their IDs here. The processor re-reads
// each job, dispatches to the handler registered for its type, and records
// the terminal transition. Handlers chain the workflow by enqueueing the
// successor job alongside their own writes.
package processor

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/media"
	"github.com/videditor/jobrunner/store"
)

// Store is the slice of the job repository the processor needs.
type Store interface {
	GetJob(ctx context.Context, id string) (*store.Job, error)
	MarkSucceeded(ctx context.Context, id string, result any) (bool, error)
	MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error)
	EnqueueJob(ctx context.Context, job *store.Job) error
	EnqueueJobTx(ctx context.Context, tx *sql.Tx, job *store.Job) error
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	GetProject(ctx context.Context, id string) (*store.Project, error)
	SetProjectStatus(ctx context.Context, id string, status store.ProjectStatus) error
	SetProjectStatusTx(ctx context.Context, tx *sql.Tx, id string, status store.ProjectStatus) error
	SetProjectThumbnail(ctx context.Context, id, thumbnailObjectKey string, durationSeconds float64) error
	InsertTranscriptionTx(ctx context.Context, tx *sql.Tx, t *store.Transcription) error
	GetTranscriptionByProject(ctx context.Context, projectID string) (*store.Transcription, error)
	InsertShort(ctx context.Context, s *store.Short) error
}

// ObjectStore is the object storage surface handlers use.
type ObjectStore interface {
	Download(ctx context.Context, bucket, objectKey, destPath string) error
	Upload(ctx context.Context, bucket, objectKey, sourcePath, contentType string) error
	DefaultBucket() string
}

// MediaTools is the ffmpeg surface handlers use.
type MediaTools interface {
	Duration(ctx context.Context, videoPath string) (float64, error)
	ExtractThumbnail(ctx context.Context, videoPath, outputPath string, opts media.ThumbnailOptions) error
	ExtractClip(ctx context.Context, videoPath, outputPath string, startTime, endTime float64) error
}

// HandlerFunc runs one job to completion and returns its result payload.
// A returned error fails the job with the error text as the message.
type HandlerFunc func(ctx context.Context, job *store.Job) (any, error)

// Processor dispatches jobs to registered handlers. One processor is shared
// by all worker goroutines; Process is safe for concurrent use.
type Processor struct {
	store    Store
	logger   *zap.SugaredLogger
	handlers map[store.JobType]HandlerFunc

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates a processor with an empty handler registry.
func New(st Store, logger *zap.SugaredLogger) *Processor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Processor{
		store:    st,
		logger:   logger,
		handlers: make(map[store.JobType]HandlerFunc),
		active:   make(map[string]struct{}),
	}
}

// Register installs the handler for a job type, replacing any previous one.
func (p *Processor) Register(jobType store.JobType, fn HandlerFunc) {
	p.handlers[jobType] = fn
}

// Process runs the job with the given ID. A duplicate trigger for a job that
// is already in flight in this process is ignored. Errors are recorded on the
// job row; Process itself returns only after the terminal transition (or the
// decision to skip) is done.
func (p *Processor) Process(ctx context.Context, jobID string) {
	p.mu.Lock()
	if _, inFlight := p.active[jobID]; inFlight {
		p.mu.Unlock()
		p.logger.Debugw("Job already processing, skipping duplicate trigger", "job_id", jobID)
		return
	}
	p.active[jobID] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.active, jobID)
		p.mu.Unlock()
	}()

	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		p.logger.Errorw("Failed to load job", "job_id", jobID, "error", err)
		return
	}
	if job == nil {
		p.logger.Warnw("Job not found", "job_id", jobID)
		return
	}
	if job.Status != store.JobStatusRunning {
		p.logger.Infow("Job is not running, ignoring trigger",
			"job_id", jobID, "status", job.Status)
		return
	}

	p.logger.Infow("Processing job", "job_id", jobID, "type", job.Type)

	handler, ok := p.handlers[job.Type]
	if !ok {
		p.fail(ctx, job, errors.Newf("unknown job type: %s", job.Type))
		return
	}

	result, err := handler(ctx, job)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	transitioned, err := p.store.MarkSucceeded(ctx, jobID, result)
	if err != nil {
		p.logger.Errorw("Failed to record job success", "job_id", jobID, "error", err)
		return
	}
	if !transitioned {
		p.logger.Warnw("Job left running state before success could be recorded",
			"job_id", jobID, "type", job.Type)
		return
	}

	p.logger.Infow("Job completed successfully", "job_id", jobID, "type", job.Type)
}

func (p *Processor) fail(ctx context.Context, job *store.Job, cause error) {
	p.logger.Errorw("Job failed", "job_id", job.ID, "type", job.Type, "error", cause)

	transitioned, err := p.store.MarkFailed(ctx, job.ID, cause.Error())
	if err != nil {
		p.logger.Errorw("Failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	if !transitioned {
		p.logger.Warnw("Job left running state before failure could be recorded",
			"job_id", job.ID, "type", job.Type)
	}
}

// ActiveCount reports how many jobs this processor currently has in flight.
func (p *Processor) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}
