package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProjectStatus labels where a project sits in the workflow. Writes are
// last-writer-wins; the currently-active job drives it.
type ProjectStatus string

const (
	ProjectStatusUploading    ProjectStatus = "uploading"
	ProjectStatusReady        ProjectStatus = "ready"
	ProjectStatusQueued       ProjectStatus = "queued"
	ProjectStatusProcessing   ProjectStatus = "processing"
	ProjectStatusTranscribing ProjectStatus = "transcribing"
	ProjectStatusAnalyzing    ProjectStatus = "analyzing"
	ProjectStatusRendering    ProjectStatus = "rendering"
	ProjectStatusDelivering   ProjectStatus = "delivering"
	ProjectStatusCompleted    ProjectStatus = "completed"
	ProjectStatusError        ProjectStatus = "error"
)

// Project is owned by the upload API; the runner reads the source location
// and writes status, thumbnail, and duration.
type Project struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Title           string        `json:"title"`
	SourceObjectKey string        `json:"source_object_key"`
	SourceBucket    string        `json:"source_bucket"`
	ThumbnailURL    string        `json:"thumbnail_url,omitempty"`
	DurationSeconds *float64      `json:"duration_seconds,omitempty"`
	Status          ProjectStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Segment is one timed span of transcribed speech. start <= end always;
// segments are stored in order with no gap requirements.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the speech-to-text output for a project, one per project.
type Transcription struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewTranscription builds a transcription row for a project.
func NewTranscription(projectID, text string, segments []Segment, language string) *Transcription {
	now := time.Now().UTC()
	return &Transcription{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Text:      text,
		Segments:  segments,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarshalSegments encodes segments for the JSONB column.
func MarshalSegments(segments []Segment) ([]byte, error) {
	if segments == nil {
		segments = []Segment{}
	}
	return json.Marshal(segments)
}

// ShortStatus tracks lifecycle of a derived clip.
type ShortStatus string

const (
	ShortStatusPending    ShortStatus = "pending"
	ShortStatusProcessing ShortStatus = "processing"
	ShortStatusCompleted  ShortStatus = "completed"
	ShortStatusError      ShortStatus = "error"
)

// Short is a clip produced by the analysis stage. Per-clip failures are
// recorded on the row, not the enclosing job.
type Short struct {
	ID                 string      `json:"id"`
	ProjectID          string      `json:"project_id"`
	Title              string      `json:"title"`
	TranscriptionSlice string      `json:"transcription_slice"`
	StartTime          float64     `json:"start_time"`
	EndTime            float64     `json:"end_time"`
	OutputObjectKey    string      `json:"output_object_key,omitempty"`
	ThumbnailURL       string      `json:"thumbnail_url,omitempty"`
	Status             ShortStatus `json:"status"`
	ErrorMessage       string      `json:"error_message,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}
