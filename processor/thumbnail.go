package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/media"
	"github.com/videditor/jobrunner/store"
)

// HandleThumbnail downloads the source video, probes its duration, extracts
// a poster frame at 25% of the runtime, uploads it next to the source, and
// marks the project ready. On success it enqueues the transcription job for
// the same source.
func (h *Handlers) HandleThumbnail(ctx context.Context, job *store.Job) (any, error) {
	payload, err := decodeThumbnailPayload(job)
	if err != nil {
		return nil, err
	}

	h.logger.Infow("Starting thumbnail generation",
		"job_id", job.ID, "project_id", job.ProjectID)

	if err := h.store.SetProjectStatus(ctx, job.ProjectID, store.ProjectStatusProcessing); err != nil {
		return nil, errors.Wrap(err, "failed to mark project processing")
	}

	videoPath, err := newTempFile(fmt.Sprintf("video-%s-*.mp4", job.ID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp video file")
	}
	thumbPath, err := newTempFile(fmt.Sprintf("thumbnail-%s-*.jpg", job.ID))
	if err != nil {
		h.removeTemp(job.ID, videoPath)
		return nil, errors.Wrap(err, "failed to create temp thumbnail file")
	}
	defer h.removeTemp(job.ID, videoPath, thumbPath)

	h.logger.Infow("Downloading video for thumbnail extraction",
		"job_id", job.ID, "source_object_key", payload.SourceObjectKey)
	if err := h.objects.Download(ctx, payload.SourceBucket, payload.SourceObjectKey, videoPath); err != nil {
		return nil, errors.Wrap(err, "failed to download source video")
	}

	duration, err := h.media.Duration(ctx, videoPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to probe video duration")
	}
	h.logger.Infow("Video duration extracted",
		"job_id", job.ID, "duration_seconds", duration)

	// Timestamp left nil so the frame comes from 25% into the video.
	if err := h.media.ExtractThumbnail(ctx, videoPath, thumbPath, media.ThumbnailOptions{
		Width:   640,
		Height:  360,
		Quality: 5,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to extract thumbnail")
	}

	thumbnailObjectKey := fmt.Sprintf("%s/projects/%s/%d-thumbnail.jpg",
		payload.UserID, job.ProjectID, time.Now().UTC().UnixMilli())

	h.logger.Infow("Uploading thumbnail",
		"job_id", job.ID, "thumbnail_object_key", thumbnailObjectKey)
	if err := h.objects.Upload(ctx, payload.SourceBucket, thumbnailObjectKey, thumbPath, "image/jpeg"); err != nil {
		return nil, errors.Wrap(err, "failed to upload thumbnail")
	}

	if err := h.store.SetProjectThumbnail(ctx, job.ProjectID, thumbnailObjectKey, duration); err != nil {
		return nil, errors.Wrap(err, "failed to record thumbnail on project")
	}

	h.logger.Infow("Enqueueing transcription job",
		"job_id", job.ID, "project_id", job.ProjectID)
	next := store.NewJob(store.JobTypeTranscription, job.ProjectID, mustJSON(TranscriptionPayload{
		ProjectID:       job.ProjectID,
		SourceObjectKey: payload.SourceObjectKey,
		SourceBucket:    payload.SourceBucket,
	}))
	if err := h.store.EnqueueJob(ctx, next); err != nil {
		return nil, errors.Wrap(err, "failed to enqueue transcription job")
	}

	return map[string]any{
		"message":            "Thumbnail generated successfully",
		"thumbnailObjectKey": thumbnailObjectKey,
	}, nil
}
