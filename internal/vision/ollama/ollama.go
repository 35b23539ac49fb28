package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vbonduro/foodbot/internal/vision"
)

type OllamaAnalyzer struct {
	host        string
	model       string
	maxTokens   int
	temperature float32
	client      *http.Client
}

func NewOllamaAnalyzer(host, model string, maxTokens int, temperature float32, timeout time.Duration) *OllamaAnalyzer {
	if maxTokens <= 0 {
		maxTokens = vision.DefaultMaxTokens
	}
	return &OllamaAnalyzer{
		host:        host,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

func (a *OllamaAnalyzer) Analyze(ctx context.Context, r io.Reader, _ string) (*vision.AnalysisResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	payload, err := json.Marshal(generateRequest{
		Model:  a.model,
		Prompt: vision.AnalysisPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(imageData)},
		Stream: false,
		Options: generateOptions{
			Temperature: a.temperature,
			NumPredict:  a.maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var respBody struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result, err := vision.ParseResponse(respBody.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama response: %w", err)
	}
	return result, nil
}
