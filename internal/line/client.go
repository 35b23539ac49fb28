package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/vbonduro/foodbot/internal/flex"
)

var (
	ErrRetrieval = errors.New("content retrieval failed")
	ErrDispatch  = errors.New("message dispatch failed")
)

const maxErrorBody = 4096

// RetrievalError reports a failed content download. Exactly one of StatusCode
// and Err is set.
type RetrievalError struct {
	MessageID  string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieve content %s: %v", e.MessageID, e.Err)
	}
	return fmt.Sprintf("retrieve content %s: status %d", e.MessageID, e.StatusCode)
}

func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }
func (e *RetrievalError) Unwrap() error        { return e.Err }

// DispatchError reports a failed reply or push call.
type DispatchError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }
func (e *DispatchError) Unwrap() error        { return e.Err }

// Client talks to the Messaging API (apiEndpoint) and the content host
// (dataEndpoint) through the LINE SDK.
type Client struct {
	token        string
	apiEndpoint  string
	dataEndpoint string
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewClient(token, apiEndpoint, dataEndpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token:        token,
		apiEndpoint:  apiEndpoint,
		dataEndpoint: dataEndpoint,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// The SDK clients hold the request context as mutable state, so each call
// gets its own.
func (c *Client) messaging(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	api, err := messaging_api.NewMessagingApiAPI(c.token,
		messaging_api.WithHTTPClient(c.httpClient),
		messaging_api.WithEndpoint(c.apiEndpoint),
	)
	if err != nil {
		return nil, err
	}
	return api.WithContext(ctx), nil
}

func (c *Client) blob(ctx context.Context) (*messaging_api.MessagingApiBlobAPI, error) {
	api, err := messaging_api.NewMessagingApiBlobAPI(c.token,
		messaging_api.WithBlobHTTPClient(c.httpClient),
		messaging_api.WithBlobEndpoint(c.dataEndpoint),
	)
	if err != nil {
		return nil, err
	}
	return api.WithContext(ctx), nil
}

// GetContent downloads the binary attached to a message and returns it with
// its content type.
func (c *Client) GetContent(ctx context.Context, messageID string) ([]byte, string, error) {
	api, err := c.blob(ctx)
	if err != nil {
		return nil, "", &RetrievalError{MessageID: messageID, Err: err}
	}

	resp, err := api.GetMessageContent(messageID)
	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return nil, "", &RetrievalError{MessageID: messageID, Err: err}
	}
	defer closeWithLog(resp.Body, "content body", c.logger)
	if resp.StatusCode != http.StatusOK {
		return nil, "", &RetrievalError{MessageID: messageID, StatusCode: resp.StatusCode}
	}
	if err != nil {
		return nil, "", &RetrievalError{MessageID: messageID, Err: err}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &RetrievalError{MessageID: messageID, Err: err}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	c.logger.Info("content retrieved", "message_id", messageID, "bytes", len(data), "mime_type", mimeType)
	return data, mimeType, nil
}

// Reply answers an event using its single-use reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...flex.Message) error {
	const endpoint = "/reply"
	c.logger.Info("sending reply", "messages", len(messages))

	sdkMessages, err := toSDK(messages)
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Err: err}
	}
	api, err := c.messaging(ctx)
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Err: err}
	}
	resp, _, err := api.ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   sdkMessages,
	})
	return c.dispatchResult(endpoint, resp, err)
}

// Push sends messages to a user outside of a reply window. Each call carries
// a fresh retry key so LINE deduplicates transport-level resends.
func (c *Client) Push(ctx context.Context, to string, messages ...flex.Message) error {
	const endpoint = "/push"
	c.logger.Info("pushing messages", "to", to, "messages", len(messages))

	sdkMessages, err := toSDK(messages)
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Err: err}
	}
	api, err := c.messaging(ctx)
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Err: err}
	}
	resp, _, err := api.PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: sdkMessages,
	}, uuid.NewString())
	return c.dispatchResult(endpoint, resp, err)
}

func (c *Client) dispatchResult(endpoint string, resp *http.Response, err error) error {
	if resp == nil {
		if err == nil {
			return nil
		}
		return &DispatchError{Endpoint: endpoint, Err: err}
	}
	defer closeWithLog(resp.Body, "dispatch body", c.logger)
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DispatchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// toSDK converts rendered messages to SDK messages, dropping nil entries so
// the API never sees a null message. Flex cards go through the SDK's own
// container decoder.
func toSDK(messages []flex.Message) ([]messaging_api.MessageInterface, error) {
	out := make([]messaging_api.MessageInterface, 0, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case nil:
		case *flex.TextMessage:
			out = append(out, messaging_api.TextMessage{Text: msg.Text})
		case *flex.FlexMessage:
			raw, err := json.Marshal(msg.Contents)
			if err != nil {
				return nil, fmt.Errorf("marshal flex contents: %w", err)
			}
			contents, err := messaging_api.UnmarshalFlexContainer(raw)
			if err != nil {
				return nil, fmt.Errorf("convert flex contents: %w", err)
			}
			out = append(out, messaging_api.FlexMessage{AltText: msg.AltText, Contents: contents})
		default:
			return nil, fmt.Errorf("unsupported message type %q", m.MessageType())
		}
	}
	return out, nil
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
