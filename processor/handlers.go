package processor

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/ai"
	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/speech"
	"github.com/videditor/jobrunner/store"
)

// Handlers bundles the collaborators the job handlers need.
type Handlers struct {
	store       Store
	objects     ObjectStore
	media       MediaTools
	transcriber speech.Transcriber
	analyzer    ai.Analyzer
	logger      *zap.SugaredLogger
}

// NewHandlers builds the handler set.
func NewHandlers(
	st Store,
	objects ObjectStore,
	mediaTools MediaTools,
	transcriber speech.Transcriber,
	analyzer ai.Analyzer,
	logger *zap.SugaredLogger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handlers{
		store:       st,
		objects:     objects,
		media:       mediaTools,
		transcriber: transcriber,
		analyzer:    analyzer,
		logger:      logger,
	}
}

// RegisterAll installs every handler on the processor.
func (h *Handlers) RegisterAll(p *Processor) {
	p.Register(store.JobTypeThumbnail, h.HandleThumbnail)
	p.Register(store.JobTypeTranscription, h.HandleTranscription)
	p.Register(store.JobTypeAnalysis, h.HandleAnalysis)
	p.Register(store.JobTypeCutting, h.HandleCutting)
	p.Register(store.JobTypeDelivery, h.HandleDelivery)
}

// HandleCutting is a stub. Cutting of user-edited timelines is not wired up
// yet; the job succeeds without side effects so the queue drains cleanly.
func (h *Handlers) HandleCutting(ctx context.Context, job *store.Job) (any, error) {
	if job.ProjectID == "" {
		return nil, errors.New("cutting job requires projectId")
	}
	h.logger.Infow("Cutting job (stub implementation)",
		"job_id", job.ID, "project_id", job.ProjectID)
	return map[string]any{"message": "Cutting completed (stub)"}, nil
}

// HandleDelivery is a stub.
func (h *Handlers) HandleDelivery(ctx context.Context, job *store.Job) (any, error) {
	h.logger.Infow("Delivery job (stub implementation)", "job_id", job.ID)
	return map[string]any{"message": "Delivery completed (stub)"}, nil
}

// newTempFile creates an empty temp file and returns its path. Callers clean
// up with removeTemp. A var so tests can observe the paths handlers create.
var newTempFile = func(pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// removeTemp deletes temp files, logging cleanup failures instead of
// propagating them. Handler outcomes never depend on cleanup.
func (h *Handlers) removeTemp(jobID string, paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			h.logger.Warnw("Failed to clean up temporary file",
				"job_id", jobID, "temp_path", path, "error", err)
			continue
		}
		h.logger.Debugw("Cleaned up temporary file", "job_id", jobID, "temp_path", path)
	}
}
