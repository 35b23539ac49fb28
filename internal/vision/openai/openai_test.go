package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/foodbot/internal/vision"
)

const appleJSON = `{"containsFood":true,"items":[{"name":"Apple","calories":95,"protein":0,"carbs":25,"fat":0}],"totalCalories":95,"totalProtein":0,"totalCarbs":25,"totalFat":0,"healthierAlternatives":"None needed"}`

func completionServer(t *testing.T, content string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if inspect != nil {
			inspect(body)
		}

		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
}

func newTestAnalyzer(baseURL string, timeout time.Duration) *OpenAIAnalyzer {
	return NewOpenAIAnalyzer(Options{
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		BaseURL:     baseURL + "/v1",
		MaxTokens:   1000,
		Temperature: 0.2,
		Timeout:     timeout,
	})
}

func TestOpenAIAnalyze(t *testing.T) {
	var captured map[string]any
	server := completionServer(t, vision.JSONStart+appleJSON+vision.JSONEnd, func(body map[string]any) {
		captured = body
	})
	defer server.Close()

	result, err := newTestAnalyzer(server.URL, 5*time.Second).Analyze(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8}), "image/jpeg")
	require.NoError(t, err)

	assert.True(t, result.ContainsFood)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Apple", result.Items[0].Name)
	assert.Equal(t, float64(95), result.TotalCalories)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, float64(1000), captured["max_tokens"])
	assert.InDelta(t, 0.2, captured["temperature"], 0.0001)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	assert.Equal(t, vision.AnalysisPrompt, parts[0].(map[string]any)["text"])
	imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", imageURL)
}

func TestOpenAIAnalyzeMalformedContent(t *testing.T) {
	server := completionServer(t, "I'm not able to help with that.", nil)
	defer server.Close()

	_, err := newTestAnalyzer(server.URL, 5*time.Second).Analyze(context.Background(), bytes.NewReader([]byte{0xFF}), "image/jpeg")
	assert.ErrorIs(t, err, vision.ErrMalformed)
}

func TestOpenAIAnalyzeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	_, err := newTestAnalyzer(server.URL, 5*time.Second).Analyze(context.Background(), bytes.NewReader([]byte{0xFF}), "image/jpeg")
	assert.Error(t, err)
}

func TestOpenAIAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestAnalyzer(server.URL, 50*time.Millisecond).Analyze(context.Background(), bytes.NewReader([]byte{0xFF}), "image/jpeg")
	assert.Error(t, err)
}

func TestOpenAIAnalyzeReadError(t *testing.T) {
	_, err := newTestAnalyzer("http://127.0.0.1:1", time.Second).Analyze(context.Background(), &errReader{}, "image/jpeg")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read image"))
}

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQI=", dataURI([]byte{1, 2}, "image/png"))
	assert.Equal(t, "data:image/jpeg;base64,AQI=", dataURI([]byte{1, 2}, "application/octet-stream"))
}

// errReader always returns an error on Read.
type errReader struct{}

func (e *errReader) Read(_ []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
