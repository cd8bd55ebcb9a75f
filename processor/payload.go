package processor

import (
	"encoding/json"

	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/store"
)

// ThumbnailPayload carries the source video location for a thumbnail job.
type ThumbnailPayload struct {
	SourceObjectKey string `json:"sourceObjectKey"`
	SourceBucket    string `json:"sourceBucket"`
	UserID          string `json:"userId"`
}

// TranscriptionPayload carries the source video location for a transcription
// job. ProjectID duplicates the job column so downstream consumers of the
// payload alone can resolve the project.
type TranscriptionPayload struct {
	ProjectID       string `json:"projectId"`
	SourceObjectKey string `json:"sourceObjectKey"`
	SourceBucket    string `json:"sourceBucket"`
}

// AnalysisPayload tunes the short-generation pass. Both fields are optional.
type AnalysisPayload struct {
	ProjectID    string `json:"projectId"`
	ShortsCount  int    `json:"shortsCount,omitempty"`
	CustomPrompt string `json:"customPrompt,omitempty"`
}

func decodeThumbnailPayload(job *store.Job) (*ThumbnailPayload, error) {
	if job.ProjectID == "" {
		return nil, errors.New("thumbnail job requires projectId")
	}
	var p ThumbnailPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, errors.Wrap(err, "invalid thumbnail payload")
		}
	}
	if p.SourceObjectKey == "" || p.SourceBucket == "" || p.UserID == "" {
		return nil, errors.New("thumbnail job requires sourceObjectKey, sourceBucket, and userId in payload")
	}
	return &p, nil
}

func decodeTranscriptionPayload(job *store.Job) (*TranscriptionPayload, error) {
	if job.ProjectID == "" {
		return nil, errors.New("transcription job requires projectId")
	}
	var p TranscriptionPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, errors.Wrap(err, "invalid transcription payload")
		}
	}
	if p.SourceObjectKey == "" || p.SourceBucket == "" {
		return nil, errors.New("transcription job requires sourceObjectKey and sourceBucket in payload")
	}
	return &p, nil
}

func decodeAnalysisPayload(job *store.Job) (*AnalysisPayload, error) {
	if job.ProjectID == "" {
		return nil, errors.New("analysis job requires projectId")
	}
	p := AnalysisPayload{ShortsCount: 3}
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, errors.Wrap(err, "invalid analysis payload")
		}
	}
	if p.ShortsCount <= 0 {
		p.ShortsCount = 3
	}
	return &p, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Payload structs contain only plain fields; this cannot fail.
		panic(err)
	}
	return b
}
