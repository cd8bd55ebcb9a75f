package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videditor/jobrunner/ai"
	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/media"
	"github.com/videditor/jobrunner/store"
)

// HandleAnalysis asks the model for clip suggestions, cuts each one from the
// source video, and records a short row per suggestion. A failed clip gets an
// error-status row and the loop moves on; only failures before the loop fail
// the job.
func (h *Handlers) HandleAnalysis(ctx context.Context, job *store.Job) (any, error) {
	payload, err := decodeAnalysisPayload(job)
	if err != nil {
		return nil, err
	}

	h.logger.Infow("Starting analysis for short generation",
		"job_id", job.ID, "project_id", job.ProjectID, "shorts_count", payload.ShortsCount)

	if err := h.store.SetProjectStatus(ctx, job.ProjectID, store.ProjectStatusAnalyzing); err != nil {
		return nil, errors.Wrap(err, "failed to mark project analyzing")
	}

	project, err := h.store.GetProject(ctx, job.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load project")
	}
	if project == nil {
		return nil, errors.Newf("project not found: %s", job.ProjectID)
	}

	transcription, err := h.store.GetTranscriptionByProject(ctx, job.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transcription")
	}
	if transcription == nil {
		return nil, errors.Newf("no transcription found for project: %s", job.ProjectID)
	}
	if len(transcription.Segments) == 0 {
		return nil, errors.New("transcription has no segments")
	}

	suggestions, err := h.analyzer.SuggestShorts(ctx, transcription.Segments, payload.ShortsCount, payload.CustomPrompt)
	if err != nil {
		return nil, err
	}
	h.logger.Infow("Received short suggestions",
		"job_id", job.ID, "num_suggestions", len(suggestions))

	sourcePath, err := newTempFile(fmt.Sprintf("source-%s-*.mp4", job.ID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp source file")
	}
	defer h.removeTemp(job.ID, sourcePath)

	h.logger.Infow("Downloading source video",
		"job_id", job.ID, "source_object_key", project.SourceObjectKey)
	if err := h.objects.Download(ctx, project.SourceBucket, project.SourceObjectKey, sourcePath); err != nil {
		return nil, errors.Wrap(err, "failed to download source video")
	}

	// shortRows counts every row written, error rows included, so the result
	// reflects what the caller will find in the shorts table.
	shortRows := 0
	shorts := make([]map[string]any, 0, len(suggestions))
	for idx, suggestion := range suggestions {
		created, err := h.produceShort(ctx, job, project, sourcePath, idx, suggestion)
		if err != nil {
			h.logger.Errorw("Failed to process short",
				"job_id", job.ID, "index", idx, "error", err)
			if h.recordFailedShort(ctx, job, idx, suggestion, err) {
				shortRows++
			}
			continue
		}
		shortRows++
		shorts = append(shorts, created)
	}

	if err := h.store.SetProjectStatus(ctx, job.ProjectID, store.ProjectStatusCompleted); err != nil {
		return nil, errors.Wrap(err, "failed to mark project completed")
	}

	return map[string]any{
		"message":       "Analysis and short generation completed",
		"shortsCreated": shortRows,
		"shorts":        shorts,
	}, nil
}

// produceShort cuts one clip, extracts its thumbnail, uploads both, and
// records the completed short row.
func (h *Handlers) produceShort(
	ctx context.Context,
	job *store.Job,
	project *store.Project,
	sourcePath string,
	idx int,
	suggestion ai.Suggestion,
) (map[string]any, error) {
	shortID := uuid.NewString()

	h.logger.Infow("Processing short",
		"job_id", job.ID,
		"short_id", shortID,
		"index", idx,
		"start", suggestion.StartTime,
		"end", suggestion.EndTime,
		"duration", suggestion.Duration(),
	)

	clipPath, err := newTempFile(fmt.Sprintf("clip-%s-*.mp4", shortID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp clip file")
	}
	thumbPath, err := newTempFile(fmt.Sprintf("thumb-%s-*.jpg", shortID))
	if err != nil {
		h.removeTemp(job.ID, clipPath)
		return nil, errors.Wrap(err, "failed to create temp thumbnail file")
	}
	defer h.removeTemp(job.ID, clipPath, thumbPath)

	if err := h.media.ExtractClip(ctx, sourcePath, clipPath, suggestion.StartTime, suggestion.EndTime); err != nil {
		return nil, errors.Wrap(err, "failed to extract clip")
	}

	midpoint := suggestion.Duration() / 2
	if err := h.media.ExtractThumbnail(ctx, clipPath, thumbPath, media.ThumbnailOptions{
		Timestamp: &midpoint,
		Width:     640,
		Height:    360,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to extract clip thumbnail")
	}

	clipObjectKey := fmt.Sprintf("%s/projects/%s/shorts/%s.mp4", project.UserID, job.ProjectID, shortID)
	h.logger.Infow("Uploading clip", "short_id", shortID, "object_key", clipObjectKey)
	if err := h.objects.Upload(ctx, h.objects.DefaultBucket(), clipObjectKey, clipPath, "video/mp4"); err != nil {
		return nil, errors.Wrap(err, "failed to upload clip")
	}

	thumbObjectKey := fmt.Sprintf("%s/projects/%s/shorts/%s-thumb.jpg", project.UserID, job.ProjectID, shortID)
	if err := h.objects.Upload(ctx, h.objects.DefaultBucket(), thumbObjectKey, thumbPath, "image/jpeg"); err != nil {
		return nil, errors.Wrap(err, "failed to upload clip thumbnail")
	}

	title := shortTitle(suggestion.Transcription)
	now := time.Now().UTC()
	short := &store.Short{
		ID:                 shortID,
		ProjectID:          job.ProjectID,
		Title:              title,
		TranscriptionSlice: suggestion.Transcription,
		StartTime:          suggestion.StartTime,
		EndTime:            suggestion.EndTime,
		OutputObjectKey:    clipObjectKey,
		ThumbnailURL:       thumbObjectKey,
		Status:             store.ShortStatusCompleted,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := h.store.InsertShort(ctx, short); err != nil {
		return nil, errors.Wrap(err, "failed to insert short")
	}

	h.logger.Infow("Short created successfully", "short_id", shortID, "title", title)

	return map[string]any{
		"id":       shortID,
		"title":    title,
		"duration": suggestion.Duration(),
	}, nil
}

// recordFailedShort writes an error-status row for a clip that could not be
// produced and reports whether the row landed. Failure to record it is
// logged and swallowed so the remaining suggestions still get their chance.
func (h *Handlers) recordFailedShort(ctx context.Context, job *store.Job, idx int, suggestion ai.Suggestion, cause error) bool {
	now := time.Now().UTC()
	short := &store.Short{
		ID:                 uuid.NewString(),
		ProjectID:          job.ProjectID,
		Title:              fmt.Sprintf("Short %d (failed)", idx+1),
		TranscriptionSlice: suggestion.Transcription,
		StartTime:          suggestion.StartTime,
		EndTime:            suggestion.EndTime,
		Status:             store.ShortStatusError,
		ErrorMessage:       cause.Error(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := h.store.InsertShort(ctx, short); err != nil {
		h.logger.Errorw("Failed to record failed short",
			"job_id", job.ID, "index", idx, "error", err)
		return false
	}
	return true
}

// shortTitle derives a display title from the clip transcription, truncated
// to 50 characters.
func shortTitle(transcription string) string {
	if len(transcription) <= 50 {
		return strings.TrimSpace(transcription)
	}
	return strings.TrimSpace(transcription[:50]) + "..."
}
