// Package dialogflow hands free text to a Dialogflow agent through its LINE
// integration and answers the agent's fulfillment calls.
package dialogflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/foodbot/internal/line"
)

type Forwarder struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
}

// NewForwarder targets <baseURL>/<agentID>/webhook. When secret is set the
// forwarded body is signed the same way LINE signs its own deliveries.
func NewForwarder(baseURL, agentID, secret string, timeout time.Duration, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		url:    baseURL + "/" + agentID + "/webhook",
		secret: secret,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// ForwardEvent wraps a single event in a webhook envelope and forwards it.
func (f *Forwarder) ForwardEvent(ctx context.Context, event line.Event) error {
	body, err := json.Marshal(line.WebhookBody{Events: []line.Event{event}})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return f.Forward(ctx, body)
}

// Forward posts a LINE webhook body to the agent.
func (f *Forwarder) Forward(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.secret != "" {
		req.Header.Set(line.SignatureHeader, line.Sign(f.secret, body))
	}

	f.logger.Info("forwarding to dialogflow", "url", f.url, "bytes", len(body))
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward to dialogflow: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			f.logger.Error("failed to close dialogflow response", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("forward to dialogflow: status %d", resp.StatusCode)
	}
	return nil
}
