// Package speech is the speech-to-text collaborator. The production
// implementation shells out to a whisper.cpp CLI so the CPU-bound inference
// never runs on the scheduler's threads.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/store"
)

// Result is the full transcription output for one video.
type Result struct {
	Text     string
	Segments []store.Segment
	Language string
}

// Transcriber converts a local media file to text with timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*Result, error)
}

// WhisperCLI runs a whisper.cpp-compatible binary. The binary writes a JSON
// transcript next to the requested output prefix.
type WhisperCLI struct {
	binary string
	model  string
	logger *zap.SugaredLogger
}

// NewWhisperCLI builds the subprocess transcriber. Empty arguments take the
// defaults (whisper-cli on PATH, "small" model).
func NewWhisperCLI(binary, model string, logger *zap.SugaredLogger) *WhisperCLI {
	if binary == "" {
		binary = "whisper-cli"
	}
	if model == "" {
		model = "small"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WhisperCLI{binary: binary, model: model, logger: logger}
}

// whisperOutput mirrors whisper.cpp's --output-json document.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs the whisper subprocess and parses its JSON transcript.
func (w *WhisperCLI) Transcribe(ctx context.Context, mediaPath string) (*Result, error) {
	outPrefix := mediaPath + ".transcript"
	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	cmd := exec.CommandContext(ctx, w.binary,
		"--model", w.model,
		"--file", mediaPath,
		"--output-json",
		"--output-file", outPrefix,
		"--language", "auto",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	w.logger.Debugw("Running whisper transcription",
		"binary", w.binary,
		"model", w.model,
		"media_path", mediaPath,
	)

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Newf("whisper failed: %s", msg)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read whisper transcript")
	}

	return parseWhisperOutput(raw)
}

// parseWhisperOutput converts the CLI document into a Result. Millisecond
// offsets become float seconds, segment text is trimmed, and the full text
// is the space-joined segments.
func parseWhisperOutput(raw []byte) (*Result, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "failed to parse whisper transcript")
	}

	segments := make([]store.Segment, 0, len(out.Transcription))
	parts := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		segments = append(segments, store.Segment{
			Start: float64(seg.Offsets.From) / 1000.0,
			End:   float64(seg.Offsets.To) / 1000.0,
			Text:  text,
		})
		if text != "" {
			parts = append(parts, text)
		}
	}

	language := out.Result.Language
	if language == "" {
		language = "unknown"
	}

	return &Result{
		Text:     strings.TrimSpace(strings.Join(parts, " ")),
		Segments: segments,
		Language: language,
	}, nil
}
