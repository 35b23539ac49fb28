package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the request body.
const SignatureHeader = "X-Line-Signature"

var ErrInvalidSignature = errors.New("invalid webhook signature")

const (
	EventMessage  = "message"
	MessageText   = "text"
	MessageImage  = "image"
	SourceUser    = "user"
	SourceGroup   = "group"
	SourceRoom    = "room"
	maxWebhookLen = 1 << 20
)

// WebhookBody is the envelope LINE posts to the webhook URL, reduced to the
// fields the bot routes on.
type WebhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	Source     Source   `json:"source"`
	Message    *Message `json:"message,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseRequest reads the webhook body, checks its signature against secret
// and decodes the events with the LINE SDK. An empty secret skips
// verification. The raw body is returned for forwarding.
func ParseRequest(r *http.Request, secret string) (*WebhookBody, []byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookLen))
	if err != nil {
		return nil, nil, fmt.Errorf("read webhook body: %w", err)
	}

	if secret != "" && !webhook.ValidateSignature(secret, r.Header.Get(SignatureHeader), raw) {
		return nil, raw, ErrInvalidSignature
	}

	var cb webhook.CallbackRequest
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, raw, fmt.Errorf("decode webhook body: %w", err)
	}

	body := &WebhookBody{Destination: cb.Destination, Events: make([]Event, 0, len(cb.Events))}
	for _, ev := range cb.Events {
		body.Events = append(body.Events, fromSDKEvent(ev))
	}
	return body, raw, nil
}

func fromSDKEvent(ev webhook.EventInterface) Event {
	e, ok := ev.(webhook.MessageEvent)
	if !ok {
		return Event{Type: ev.GetType()}
	}

	out := Event{
		Type:       EventMessage,
		ReplyToken: e.ReplyToken,
		Timestamp:  e.Timestamp,
		Source:     fromSDKSource(e.Source),
	}
	switch m := e.Message.(type) {
	case webhook.TextMessageContent:
		out.Message = &Message{ID: m.Id, Type: MessageText, Text: m.Text}
	case webhook.ImageMessageContent:
		out.Message = &Message{ID: m.Id, Type: MessageImage}
	case nil:
	default:
		out.Message = &Message{Type: m.GetType()}
	}
	return out
}

func fromSDKSource(src webhook.SourceInterface) Source {
	switch s := src.(type) {
	case webhook.UserSource:
		return Source{Type: SourceUser, UserID: s.UserId}
	case webhook.GroupSource:
		return Source{Type: SourceGroup, GroupID: s.GroupId, UserID: s.UserId}
	case webhook.RoomSource:
		return Source{Type: SourceRoom, RoomID: s.RoomId, UserID: s.UserId}
	case nil:
		return Source{}
	default:
		return Source{Type: s.GetType()}
	}
}

// Sign returns the base64 signature LINE would attach to body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
