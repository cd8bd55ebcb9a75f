package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhisperOutput(t *testing.T) {
	raw := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"offsets": {"from": 0, "to": 2500}, "text": "  Hello there. "},
			{"offsets": {"from": 2500, "to": 6120}, "text": " General remarks follow."}
		]
	}`)

	result, err := parseWhisperOutput(raw)
	require.NoError(t, err)

	assert.Equal(t, "Hello there. General remarks follow.", result.Text)
	assert.Equal(t, "en", result.Language)

	require.Len(t, result.Segments, 2)
	assert.InDelta(t, 0.0, result.Segments[0].Start, 1e-9)
	assert.InDelta(t, 2.5, result.Segments[0].End, 1e-9)
	assert.Equal(t, "Hello there.", result.Segments[0].Text)
	assert.InDelta(t, 6.12, result.Segments[1].End, 1e-9)
}

func TestParseWhisperOutputEmptyTranscript(t *testing.T) {
	result, err := parseWhisperOutput([]byte(`{"result": {}, "transcription": []}`))
	require.NoError(t, err)

	assert.Empty(t, result.Text)
	assert.Empty(t, result.Segments)
	assert.Equal(t, "unknown", result.Language)
}

func TestParseWhisperOutputSkipsBlankTextInJoin(t *testing.T) {
	raw := []byte(`{
		"result": {"language": "de"},
		"transcription": [
			{"offsets": {"from": 0, "to": 1000}, "text": "Erster Satz."},
			{"offsets": {"from": 1000, "to": 2000}, "text": "   "},
			{"offsets": {"from": 2000, "to": 3000}, "text": "Zweiter Satz."}
		]
	}`)

	result, err := parseWhisperOutput(raw)
	require.NoError(t, err)

	assert.Equal(t, "Erster Satz. Zweiter Satz.", result.Text)
	// The timed segment survives even when its text is blank.
	require.Len(t, result.Segments, 3)
	assert.Equal(t, "", result.Segments[1].Text)
}

func TestParseWhisperOutputRejectsInvalidJSON(t *testing.T) {
	_, err := parseWhisperOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestNewWhisperCLIDefaults(t *testing.T) {
	w := NewWhisperCLI("", "", nil)
	assert.Equal(t, "whisper-cli", w.binary)
	assert.Equal(t, "small", w.model)

	custom := NewWhisperCLI("/opt/whisper/main", "large-v3", nil)
	assert.Equal(t, "/opt/whisper/main", custom.binary)
	assert.Equal(t, "large-v3", custom.model)
}
