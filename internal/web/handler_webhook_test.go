package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/foodbot/internal/dialogflow"
	"github.com/vbonduro/foodbot/internal/line"
)

const webhookBody = `{"destination":"Ubot","events":[{"type":"message","replyToken":"rt","source":{"type":"user","userId":"U1"},"message":{"id":"m-1","type":"image"}}]}`

func newWebhookServer(bot *fakeBot, secret string) *Server {
	return NewServer(bot, &fakeAnalysis{}, nil, nil, Options{ChannelSecret: secret, Gatherer: prometheus.NewRegistry()},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLineWebhook(t *testing.T) {
	bot := &fakeBot{}
	srv := newWebhookServer(bot, "secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(webhookBody))
	req.Header.Set(line.SignatureHeader, line.Sign("secret", []byte(webhookBody)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bot.batches, 1)
	require.Len(t, bot.batches[0], 1)
	assert.Equal(t, "m-1", bot.batches[0][0].Message.ID)
}

func TestLineWebhookRejects(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		wantCode  int
	}{
		{name: "missing signature", body: webhookBody, wantCode: http.StatusUnauthorized},
		{name: "forged signature", body: webhookBody, signature: line.Sign("guess", []byte(webhookBody)), wantCode: http.StatusUnauthorized},
		{name: "signed garbage", body: "not json", signature: line.Sign("secret", []byte("not json")), wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{}
			srv := newWebhookServer(bot, "secret")

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set(line.SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Empty(t, bot.batches)
		})
	}
}

func TestLineWebhookVerificationPing(t *testing.T) {
	bot := &fakeBot{}
	srv := newWebhookServer(bot, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"destination":"U","events":[]}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bot.batches, 1)
	assert.Empty(t, bot.batches[0])
}

func TestLineWebhookMethodNotAllowed(t *testing.T) {
	srv := newWebhookServer(&fakeBot{}, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDialogflowWebhook(t *testing.T) {
	srv := newWebhookServer(&fakeBot{}, "")

	body := `{"queryResult":{"queryText":"hi","intent":{"displayName":"food.analyze"}}}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dialogflow/webhook", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dialogflow.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.FulfillmentMessages, 1)
	assert.Equal(t, []string{"Please send me a photo of your food to analyze!"}, resp.FulfillmentMessages[0].Text.Text)
}

func TestDialogflowWebhookMalformed(t *testing.T) {
	srv := newWebhookServer(&fakeBot{}, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dialogflow/webhook", strings.NewReader("{")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fulfillmentText":"`+dialogflow.ErrorText+`"}`, rec.Body.String())
}
