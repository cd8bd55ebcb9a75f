// Package ai analyzes video transcripts for short-form clip candidates.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/store"
)

// Suggestion is one clip candidate extracted from a transcript.
type Suggestion struct {
	SegmentID     string
	StartTime     float64
	EndTime       float64
	Transcription string
}

// Duration returns the clip length in seconds.
func (s Suggestion) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Analyzer picks the best short-form clips out of a transcript.
type Analyzer interface {
	SuggestShorts(ctx context.Context, segments []store.Segment, count int, customPrompt string) ([]Suggestion, error)
}

// completer is the slice of the OpenRouter client the analyzer needs.
type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TranscriptAnalyzer implements Analyzer on top of an OpenRouter-style
// completion client.
type TranscriptAnalyzer struct {
	client completer
	logger *zap.SugaredLogger
}

// NewTranscriptAnalyzer builds an analyzer backed by the given completion
// client.
func NewTranscriptAnalyzer(client completer, logger *zap.SugaredLogger) *TranscriptAnalyzer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TranscriptAnalyzer{client: client, logger: logger}
}

// SuggestShorts formats the transcript, prompts the model, and parses the
// returned JSON array. Entries with missing fields or unparseable timestamps
// are skipped with a warning rather than failing the whole analysis.
func (a *TranscriptAnalyzer) SuggestShorts(ctx context.Context, segments []store.Segment, count int, customPrompt string) ([]Suggestion, error) {
	a.logger.Infow("Analyzing transcript for shorts",
		"num_shorts", count,
		"num_segments", len(segments),
		"has_custom_prompt", customPrompt != "",
	)

	prompt := buildPrompt(segments, count, customPrompt)

	content, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "transcript analysis failed")
	}

	suggestions, err := ParseSuggestions(content, a.logger)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, s := range suggestions {
		total += s.Duration()
	}
	a.logger.Infow("Analysis complete",
		"num_suggestions", len(suggestions),
		"total_duration", total,
	)

	return suggestions, nil
}

func buildPrompt(segments []store.Segment, count int, customPrompt string) string {
	customSection := ""
	if customPrompt != "" {
		customSection = fmt.Sprintf("\n\nCustom Instructions:\n%s\n", customPrompt)
	}

	transcript := FormatTranscript(segments)

	return fmt.Sprintf(`You are analyzing a video transcript to find the best moments for creating %d short-form videos (ideally between 30 and 45 seconds, max 60 seconds if needed for message consistency).
%s
Criteria for selection:
- Engaging moments (exciting, funny, emotionally compelling)
- High information density (valuable tips, insights, key points)
- Complete thoughts (not cut off mid-sentence or mid-idea)
- Natural start and end points (speech pauses, topic transitions)
- Self-contained segments that feel like standalone content, not fragments

CRITICAL - Flow & Naturalness Requirements:
- The segment MUST feel like a complete, standalone piece with a natural beginning and ending
- Viewers should NOT feel confused, disoriented, or like they're entering mid-conversation
- The opening should establish context naturally - avoid starting with pronouns ("it", "that", "this") without clear referents
- The ending should provide closure and feel conclusive - avoid cutting off mid-thought or mid-statement
- Avoid segments that would create jarring audio transitions or make the speaker sound abruptly interrupted
- Prioritize smooth, natural flow over raw engagement - a slightly less exciting segment with perfect flow is better than an engaging segment with abrupt cuts

Transcript with timestamps:
%s

Please identify the %d best segments. Each segment should be:
- Ideally between 30 and 45 seconds long, but can extend up to 60 seconds if needed to complete the thought/message
- Start and end at natural pauses (breath breaks, sentence completions, topic shifts)
- Contain a complete thought or idea that stands alone without requiring prior context
- Be engaging and valuable on its own
- Feel polished and intentional, not like a fragment ripped from a longer video

For each segment, provide:
1. The exact start and end timestamps
2. The full transcription of the spoken words in that segment

Return your response as a JSON array with this exact format:
[
  {
    "segment_id": "001",
    "start_time": "00:01:23,456",
    "end_time": "00:02:05,789",
    "transcription": "The exact words spoken in this segment..."
  }
]

Return ONLY the JSON array, no other text.`, count, customSection, transcript, count)
}

// rawSuggestion mirrors the JSON shape the model is asked to return.
type rawSuggestion struct {
	SegmentID     string `json:"segment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Transcription string `json:"transcription"`
}

// ParseSuggestions extracts suggestions from a model response. Markdown code
// fences around the JSON array are stripped. A response whose outer structure
// is not a JSON array is an error; individual malformed entries are skipped.
func ParseSuggestions(content string, logger *zap.SugaredLogger) ([]Suggestion, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = content[len("```json"):]
	} else if strings.HasPrefix(content, "```") {
		content = content[len("```"):]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	content = strings.TrimSpace(content)

	var raw []rawSuggestion
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON response from AI")
	}

	suggestions := make([]Suggestion, 0, len(raw))
	for _, r := range raw {
		if r.SegmentID == "" || r.Transcription == "" {
			logger.Warnw("Skipping invalid segment", "segment_id", r.SegmentID)
			continue
		}
		start, err := ParseTimestamp(r.StartTime)
		if err != nil {
			logger.Warnw("Skipping invalid segment", "segment_id", r.SegmentID, "error", err)
			continue
		}
		end, err := ParseTimestamp(r.EndTime)
		if err != nil {
			logger.Warnw("Skipping invalid segment", "segment_id", r.SegmentID, "error", err)
			continue
		}
		suggestions = append(suggestions, Suggestion{
			SegmentID:     r.SegmentID,
			StartTime:     start,
			EndTime:       end,
			Transcription: r.Transcription,
		})
	}

	return suggestions, nil
}

// ParseTimestamp converts "HH:MM:SS,mmm" or "MM:SS.mmm" to seconds. Comma and
// period are both accepted as the millisecond separator.
func ParseTimestamp(ts string) (float64, error) {
	ts = strings.ReplaceAll(ts, ",", ".")

	timePart := ts
	msPart := "0"
	if i := strings.Index(ts, "."); i >= 0 {
		timePart = ts[:i]
		msPart = ts[i+1:]
	}

	parts := strings.Split(timePart, ":")
	var total int
	switch len(parts) {
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, errors.Newf("invalid timestamp format: %s", ts)
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, errors.Newf("invalid timestamp format: %s", ts)
		}
		s, err := strconv.Atoi(parts[2])
		if err != nil {
			return 0, errors.Newf("invalid timestamp format: %s", ts)
		}
		total = h*3600 + m*60 + s
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, errors.Newf("invalid timestamp format: %s", ts)
		}
		s, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, errors.Newf("invalid timestamp format: %s", ts)
		}
		total = m*60 + s
	default:
		return 0, errors.Newf("invalid timestamp format: %s", ts)
	}

	frac, err := strconv.ParseFloat("0."+msPart, 64)
	if err != nil {
		return 0, errors.Newf("invalid timestamp format: %s", ts)
	}

	return float64(total) + frac, nil
}

// FormatTranscript renders segments as "HH:MM:SS - HH:MM:SS: text" lines for
// inclusion in a prompt.
func FormatTranscript(segments []store.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("%s - %s: %s",
			formatClock(seg.Start), formatClock(seg.End), strings.TrimSpace(seg.Text)))
	}
	return strings.Join(lines, "\n")
}

func formatClock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
