package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videditor/jobrunner/store"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:01:23,456", 83.456},
		{"00:01:23.456", 83.456},
		{"01:00:00,000", 3600},
		{"00:00:00,000", 0},
		{"01:23,500", 83.5},
		{"02:05.250", 125.25},
		{"00:00:07", 7},
		{"10:15:30,999", 36930.999},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "12", "a:b:c", "1:2:3:4", "xx:yy,zz"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}
}

func TestFormatTranscript(t *testing.T) {
	segments := []store.Segment{
		{Start: 0, End: 4.2, Text: "  welcome to the show  "},
		{Start: 4.2, End: 3671.9, Text: "a very long episode"},
	}

	got := FormatTranscript(segments)
	want := "00:00:00 - 00:00:04: welcome to the show\n" +
		"00:00:04 - 01:01:11: a very long episode"
	assert.Equal(t, want, got)
}

func TestParseSuggestionsPlainArray(t *testing.T) {
	content := `[
		{"segment_id":"001","start_time":"00:00:10,000","end_time":"00:00:45,500","transcription":"first"},
		{"segment_id":"002","start_time":"00:01:00,000","end_time":"00:01:35,000","transcription":"second"}
	]`

	suggestions, err := ParseSuggestions(content, nil)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "001", suggestions[0].SegmentID)
	assert.InDelta(t, 10.0, suggestions[0].StartTime, 1e-9)
	assert.InDelta(t, 35.5, suggestions[0].Duration(), 1e-9)
	assert.Equal(t, "second", suggestions[1].Transcription)
}

func TestParseSuggestionsStripsCodeFences(t *testing.T) {
	for _, content := range []string{
		"```json\n[{\"segment_id\":\"001\",\"start_time\":\"00:00:01,000\",\"end_time\":\"00:00:31,000\",\"transcription\":\"x\"}]\n```",
		"```\n[{\"segment_id\":\"001\",\"start_time\":\"00:00:01,000\",\"end_time\":\"00:00:31,000\",\"transcription\":\"x\"}]\n```",
	} {
		suggestions, err := ParseSuggestions(content, nil)
		require.NoError(t, err)
		require.Len(t, suggestions, 1)
		assert.InDelta(t, 30.0, suggestions[0].Duration(), 1e-9)
	}
}

func TestParseSuggestionsSkipsMalformedEntries(t *testing.T) {
	content := `[
		{"segment_id":"001","start_time":"00:00:10,000","end_time":"00:00:40,000","transcription":"good"},
		{"segment_id":"002","start_time":"not a time","end_time":"00:01:00,000","transcription":"bad start"},
		{"segment_id":"","start_time":"00:02:00,000","end_time":"00:02:30,000","transcription":"no id"},
		{"segment_id":"004","start_time":"00:03:00,000","end_time":"00:03:30,000","transcription":"also good"}
	]`

	suggestions, err := ParseSuggestions(content, nil)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "001", suggestions[0].SegmentID)
	assert.Equal(t, "004", suggestions[1].SegmentID)
}

func TestParseSuggestionsRejectsNonArray(t *testing.T) {
	_, err := ParseSuggestions(`{"not":"an array"}`, nil)
	assert.Error(t, err)

	_, err = ParseSuggestions("I could not find any good segments.", nil)
	assert.Error(t, err)
}

type stubCompleter struct {
	prompt   string
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func TestSuggestShortsBuildsPromptAndParses(t *testing.T) {
	stub := &stubCompleter{
		response: `[{"segment_id":"001","start_time":"00:00:05,000","end_time":"00:00:40,000","transcription":"the tip"}]`,
	}
	analyzer := NewTranscriptAnalyzer(stub, nil)

	segments := []store.Segment{{Start: 5, End: 40, Text: "the tip"}}
	suggestions, err := analyzer.SuggestShorts(context.Background(), segments, 2, "focus on humor")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	assert.Contains(t, stub.prompt, "creating 2 short-form videos")
	assert.Contains(t, stub.prompt, "Custom Instructions:\nfocus on humor")
	assert.Contains(t, stub.prompt, "00:00:05 - 00:00:40: the tip")
	assert.Contains(t, stub.prompt, "Return ONLY the JSON array")
}

func TestSuggestShortsPropagatesCompleterError(t *testing.T) {
	analyzer := NewTranscriptAnalyzer(&stubCompleter{err: assert.AnError}, nil)

	_, err := analyzer.SuggestShorts(context.Background(), []store.Segment{{Text: "x"}}, 3, "")
	assert.Error(t, err)
}
