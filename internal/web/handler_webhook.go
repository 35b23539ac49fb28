package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/foodbot/internal/dialogflow"
	"github.com/vbonduro/foodbot/internal/line"
)

const maxDialogflowBody = 1 << 20

func (s *Server) handleLineWebhook(w http.ResponseWriter, r *http.Request) {
	body, _, err := line.ParseRequest(r, s.opts.ChannelSecret)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			s.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		s.logger.Warn("webhook body rejected", "error", err)
		http.Error(w, "invalid webhook body", http.StatusBadRequest)
		return
	}

	s.logger.Info("webhook received", "events", len(body.Events))
	// Reply tokens stay valid after LINE hangs up, so finish the batch even
	// if the request context is cancelled.
	s.bot.HandleEvents(context.WithoutCancel(r.Context()), body.Events)

	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, "OK"); err != nil {
		s.logger.Error("write webhook response failed", "error", err)
	}
}

func (s *Server) handleDialogflowWebhook(w http.ResponseWriter, r *http.Request) {
	var req dialogflow.WebhookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDialogflowBody)).Decode(&req); err != nil {
		s.logger.Warn("dialogflow request rejected", "error", err)
		writeJSON(w, http.StatusOK, dialogflow.WebhookResponse{FulfillmentText: dialogflow.ErrorText}, s.logger)
		return
	}

	s.logger.Info("dialogflow fulfillment",
		"intent", req.QueryResult.Intent.DisplayName,
		"action", req.QueryResult.Action,
	)
	writeJSON(w, http.StatusOK, dialogflow.Fulfill(req), s.logger)
}
