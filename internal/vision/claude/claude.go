package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

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

type ClaudeAnalyzer struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewClaudeAnalyzer(opts Options) *ClaudeAnalyzer {
	clientOpts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(opts.BaseURL))
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = vision.DefaultMaxTokens
	}

	return &ClaudeAnalyzer{
		client:      anthropic.NewClient(opts.APIKey, clientOpts...),
		model:       opts.Model,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
	}
}

// buildMessages constructs the Messages API payload for a vision request.
func buildMessages(imageData []byte, mimeType string) []anthropic.Message {
	return []anthropic.Message{{
		Role: anthropic.RoleUser,
		Content: []anthropic.MessageContent{
			anthropic.NewImageMessageContent(anthropic.MessageContentSource{
				Type:      anthropic.MessagesContentSourceTypeBase64,
				MediaType: normaliseMIME(mimeType),
				Data:      base64.StdEncoding.EncodeToString(imageData),
			}),
			anthropic.NewTextMessageContent(vision.AnalysisPrompt),
		},
	}}
}

func (a *ClaudeAnalyzer) Analyze(ctx context.Context, r io.Reader, mimeType string) (*vision.AnalysisResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	temperature := a.temperature
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
		Messages:    buildMessages(imageData, mimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	result, err := vision.ParseResponse(resp.GetFirstContentText())
	if err != nil {
		return nil, fmt.Errorf("failed to parse claude response: %w", err)
	}
	return result, nil
}

// normaliseMIME maps content types to the values the Anthropic API accepts.
// The Anthropic API accepts only jpeg, png, gif, and webp. Unknown types are
// coerced to jpeg; LINE serves photos as jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
