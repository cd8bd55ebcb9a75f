package processor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/store"
)

// HandleTranscription downloads the source video, transcribes it, and stores
// the transcript. The transcript insert, the project status update, and the
// successor analysis job are committed in one transaction so a crash cannot
// leave a transcript without an analysis job behind it.
func (h *Handlers) HandleTranscription(ctx context.Context, job *store.Job) (any, error) {
	payload, err := decodeTranscriptionPayload(job)
	if err != nil {
		return nil, err
	}

	h.logger.Infow("Starting transcription",
		"job_id", job.ID, "project_id", job.ProjectID)

	if err := h.store.SetProjectStatus(ctx, job.ProjectID, store.ProjectStatusTranscribing); err != nil {
		return nil, errors.Wrap(err, "failed to mark project transcribing")
	}

	videoPath, err := newTempFile(fmt.Sprintf("video-%s-*.mp4", job.ID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp video file")
	}
	defer h.removeTemp(job.ID, videoPath)

	h.logger.Infow("Downloading video for transcription",
		"job_id", job.ID, "source_object_key", payload.SourceObjectKey)
	if err := h.objects.Download(ctx, payload.SourceBucket, payload.SourceObjectKey, videoPath); err != nil {
		return nil, errors.Wrap(err, "failed to download source video")
	}

	h.logger.Infow("Running transcription", "job_id", job.ID, "video_path", videoPath)
	result, err := h.transcriber.Transcribe(ctx, videoPath)
	if err != nil {
		return nil, errors.Wrap(err, "transcription failed")
	}

	h.logger.Infow("Saving transcription",
		"job_id", job.ID, "text_length", len(result.Text), "segment_count", len(result.Segments))

	transcription := store.NewTranscription(job.ProjectID, result.Text, result.Segments, result.Language)

	err = h.store.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.store.InsertTranscriptionTx(ctx, tx, transcription); err != nil {
			return errors.Wrap(err, "failed to insert transcription")
		}
		if err := h.store.SetProjectStatusTx(ctx, tx, job.ProjectID, store.ProjectStatusCompleted); err != nil {
			return errors.Wrap(err, "failed to mark project completed")
		}
		next := store.NewJob(store.JobTypeAnalysis, job.ProjectID, mustJSON(AnalysisPayload{
			ProjectID: job.ProjectID,
		}))
		if err := h.store.EnqueueJobTx(ctx, tx, next); err != nil {
			return errors.Wrap(err, "failed to enqueue analysis job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Infow("Enqueued analysis job",
		"job_id", job.ID, "project_id", job.ProjectID)

	return map[string]any{
		"message":         "Transcription completed",
		"textLength":      len(result.Text),
		"segmentCount":    len(result.Segments),
		"language":        result.Language,
		"transcriptionId": transcription.ID,
	}, nil
}
