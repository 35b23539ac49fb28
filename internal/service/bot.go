package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vbonduro/foodbot/internal/domain"
	"github.com/vbonduro/foodbot/internal/flex"
	"github.com/vbonduro/foodbot/internal/line"
	"github.com/vbonduro/foodbot/internal/metrics"
)

const (
	PhotoPrompt = "Please send me a photo of your food, and I'll analyze it for you!"
	HelpText    = "I can analyze food photos or answer nutrition questions. Please send me a photo or ask a question."
)

// textForwarder hands a text event to an NLU agent that replies on its own.
type textForwarder interface {
	ForwardEvent(ctx context.Context, event line.Event) error
}

type imageHandler interface {
	HandleImage(ctx context.Context, req AnalysisRequest) (Stage, error)
}

// Bot routes LINE webhook events.
type Bot struct {
	images     imageHandler
	dispatcher dispatcher
	forwarder  textForwarder
	metrics    *metrics.Pipeline
	logger     *slog.Logger
}

// NewBot returns a router. forwarder may be nil, in which case free text gets
// the help message.
func NewBot(images imageHandler, dispatcher dispatcher, forwarder textForwarder, m *metrics.Pipeline, logger *slog.Logger) *Bot {
	return &Bot{images: images, dispatcher: dispatcher, forwarder: forwarder, metrics: m, logger: logger}
}

// HandleEvents processes a delivery in order. A failure on one event does not
// stop the rest.
func (b *Bot) HandleEvents(ctx context.Context, events []line.Event) {
	for _, event := range events {
		if err := b.HandleEvent(ctx, event); err != nil {
			b.logger.Error("event handling failed", "type", event.Type, "error", err)
		}
	}
}

func (b *Bot) HandleEvent(ctx context.Context, event line.Event) error {
	if event.Type != line.EventMessage || event.Message == nil {
		b.count("ignored")
		b.logger.Info("ignoring event", "type", event.Type)
		return nil
	}

	switch event.Message.Type {
	case line.MessageImage:
		b.count("image")
		_, err := b.images.HandleImage(ctx, AnalysisRequest{
			MessageID:  event.Message.ID,
			UserID:     event.Source.UserID,
			ReplyToken: event.ReplyToken,
			Source:     domain.SourceLine,
		})
		return err
	case line.MessageText:
		return b.handleText(ctx, event)
	default:
		b.count("other")
		return b.dispatcher.Reply(ctx, event.ReplyToken, flex.NewTextMessage(HelpText))
	}
}

func (b *Bot) handleText(ctx context.Context, event line.Event) error {
	text := strings.ToLower(event.Message.Text)
	if strings.Contains(text, "analyze") && strings.Contains(text, "food") {
		b.count("prompt")
		return b.dispatcher.Reply(ctx, event.ReplyToken, flex.NewTextMessage(PhotoPrompt))
	}

	if b.forwarder == nil {
		b.count("help")
		return b.dispatcher.Reply(ctx, event.ReplyToken, flex.NewTextMessage(HelpText))
	}

	b.count("dialogflow")
	if err := b.forwarder.ForwardEvent(ctx, event); err != nil {
		b.logger.Warn("dialogflow forward failed, replying with help", "error", err)
		return b.dispatcher.Reply(ctx, event.ReplyToken, flex.NewTextMessage(HelpText))
	}
	return nil
}

func (b *Bot) count(route string) {
	if b.metrics != nil {
		b.metrics.Events.WithLabelValues(route).Inc()
	}
}
