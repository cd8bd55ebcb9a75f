// Package worker polls the queue and fans claimed jobs out to the processor.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/store"
)

// DrainTimeout bounds how long Stop waits for in-flight jobs.
const DrainTimeout = 30 * time.Second

// Claimer claims up to limit queued jobs, marking them running.
type Claimer interface {
	ClaimJobs(ctx context.Context, limit int) ([]*store.Job, error)
}

// Runner executes a single claimed job to a terminal state.
type Runner interface {
	Process(ctx context.Context, jobID string)
}

// Worker runs the poll loop. Each poll claims at most the free concurrency
// budget and starts one goroutine per claimed job.
type Worker struct {
	claimer      Claimer
	runner       Runner
	logger       *zap.SugaredLogger
	concurrency  int
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	active  map[string]struct{}
	jobCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a worker. concurrency is the maximum number of jobs in flight
// at once; pollInterval is the delay between queue polls.
func New(claimer Claimer, runner Runner, concurrency int, pollInterval time.Duration, logger *zap.SugaredLogger) *Worker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Worker{
		claimer:      claimer,
		runner:       runner,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		active:       make(map[string]struct{}),
	}
}

// Start launches the poll loop. The first poll happens immediately. Calling
// Start on a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warnw("Worker already running")
		return
	}
	w.running = true
	// Jobs run on the parent context so stopping the poll loop does not
	// abort work already in flight.
	w.jobCtx = ctx
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.logger.Infow("Starting job worker",
		"concurrency", w.concurrency,
		"poll_interval", w.pollInterval,
	)

	go w.pollLoop(loopCtx)
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer close(w.done)

	w.poll(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll claims up to the free budget and dispatches each claimed job in its
// own goroutine. Claim failures are logged; the next tick retries.
func (w *Worker) poll(ctx context.Context) {
	w.mu.Lock()
	budget := w.concurrency - len(w.active)
	w.mu.Unlock()

	if budget <= 0 {
		w.logger.Debugw("At max concurrency, skipping poll",
			"active_jobs", w.ActiveJobs(), "concurrency", w.concurrency)
		return
	}

	jobs, err := w.claimer.ClaimJobs(ctx, budget)
	if err != nil {
		w.logger.Errorw("Failed to poll for jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		w.logger.Debugw("No queued jobs found")
		return
	}

	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	w.logger.Infow("Claimed jobs from queue", "count", len(jobs), "job_ids", ids)

	for _, job := range jobs {
		w.mu.Lock()
		if _, dup := w.active[job.ID]; dup {
			w.mu.Unlock()
			continue
		}
		w.active[job.ID] = struct{}{}
		w.mu.Unlock()

		w.wg.Add(1)
		go w.runJob(w.jobCtx, job.ID)
	}
}

func (w *Worker) runJob(ctx context.Context, jobID string) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorw("Job processing panicked", "job_id", jobID, "panic", r)
		}
		w.mu.Lock()
		delete(w.active, jobID)
		w.mu.Unlock()
	}()

	w.runner.Process(ctx, jobID)
}

// Stop halts claiming and waits up to DrainTimeout for in-flight jobs. Jobs
// still running at the deadline are abandoned with a warning; they stay in
// running state in the database.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Infow("Stopping job worker")
	cancel()
	<-done

	drained := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		w.logger.Infow("All jobs completed, worker stopped")
	case <-time.After(DrainTimeout):
		w.logger.Warnw("Stopping worker with active jobs still running",
			"active_jobs", w.ActiveJobs())
	}
}

// ActiveJobs reports the number of jobs currently in flight.
func (w *Worker) ActiveJobs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

// Concurrency reports the configured concurrency limit.
func (w *Worker) Concurrency() int {
	return w.concurrency
}
