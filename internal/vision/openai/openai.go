package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/vbonduro/foodbot/internal/vision"
)

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

type OpenAIAnalyzer struct {
	client      *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIAnalyzer(opts Options) *OpenAIAnalyzer {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = vision.DefaultMaxTokens
	}

	return &OpenAIAnalyzer{
		client:      goopenai.NewClientWithConfig(cfg),
		model:       opts.Model,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
	}
}

// dataURI encodes an image the way the chat-completions image_url part expects.
func dataURI(imageData []byte, mimeType string) string {
	return "data:" + normaliseMIME(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(imageData)
}

func (a *OpenAIAnalyzer) buildRequest(imageData []byte, mimeType string) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: vision.AnalysisPrompt},
				{
					Type:     goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{URL: dataURI(imageData, mimeType)},
				},
			},
		}},
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, r io.Reader, mimeType string) (*vision.AnalysisResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(imageData, mimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to call openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	content := resp.Choices[0].Message.Content
	result, err := vision.ParseResponse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse openai response: %w", err)
	}
	return result, nil
}

// normaliseMIME keeps the image types the vision endpoint accepts and maps
// everything else to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
