package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videditor/jobrunner/errors"
)

// roundTripFunc lets a test intercept the outgoing request.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body any) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(b)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestCompleteSendsAuthAndModel(t *testing.T) {
	client := NewClient(Config{APIKey: "sk-test", Model: "openai/gpt-4o"})

	var captured *http.Request
	var capturedBody completionRequest
	client.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &capturedBody)
		return jsonResponse(http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  hello  "}},
			},
		}), nil
	})})

	got, err := client.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NotNil(t, captured)
	assert.Equal(t, "Bearer sk-test", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "openai/gpt-4o", capturedBody.Model)
	assert.InDelta(t, 0.7, capturedBody.Temperature, 1e-9)
	assert.Equal(t, 4000, capturedBody.MaxTokens)
	require.Len(t, capturedBody.Messages, 1)
	assert.Equal(t, "user", capturedBody.Messages[0].Role)
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestCompleteAPIErrorNotRetried(t *testing.T) {
	client := NewClient(Config{APIKey: "sk-test"})

	calls := 0
	client.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "bad key"}), nil
	})})

	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, 1, calls)
}

func TestCompleteRetriesNetworkErrors(t *testing.T) {
	client := NewClient(Config{APIKey: "sk-test"})

	calls := 0
	client.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		}), nil
	})})

	got, err := client.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	client := NewClient(Config{APIKey: "sk-test"})
	client.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, map[string]any{"choices": []any{}}), nil
	})})

	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("connection refused")))
	assert.True(t, isRetryableError(errors.New("i/o timeout")))
	assert.True(t, isRetryableError(errors.New("network is unreachable")))
	assert.False(t, isRetryableError(errors.New("invalid request payload")))
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "sk-test"})
	assert.Equal(t, DefaultModel, client.model)
	assert.InDelta(t, 0.7, client.temp, 1e-9)
	assert.Equal(t, 4000, client.maxTokens)
	assert.True(t, client.IsConfigured())

	assert.False(t, NewClient(Config{}).IsConfigured())
}
