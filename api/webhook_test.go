package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celim/oraculo/internal/log"
	"github.com/celim/oraculo/internal/oracle"
)

type fakeAnswerer struct {
	answer oracle.Answer
	calls  int
	lastQ  string
	lastU  string
}

func (f *fakeAnswerer) Answer(_ context.Context, question, userID string) oracle.Answer {
	f.calls++
	f.lastQ = question
	f.lastU = userID
	return f.answer
}

type fakeSender struct {
	err    error
	calls  int
	chatID int64
	text   string
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.calls++
	f.chatID = chatID
	f.text = text
	return f.err
}

func postUpdate(t *testing.T, handler *Webhook, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram",
		bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	handler.Telegram(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestWebhookFilterChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "no message payload",
			body:        `{"update_id": 1}`,
			wantMessage: "No message to process",
		},
		{
			name:        "explicit null message",
			body:        `{"update_id": 1, "message": null}`,
			wantMessage: "No message to process",
		},
		{
			name:        "bot sender",
			body:        `{"update_id": 1, "message": {"from": {"id": 9, "is_bot": true}, "chat": {"id": 5}, "text": "hi"}}`,
			wantMessage: "Bot message ignored",
		},
		{
			name:        "empty text",
			body:        `{"update_id": 1, "message": {"from": {"id": 9}, "chat": {"id": 5}, "text": ""}}`,
			wantMessage: "Empty message ignored",
		},
		{
			name:        "whitespace only text",
			body:        `{"update_id": 1, "message": {"from": {"id": 9}, "chat": {"id": 5}, "text": "   "}}`,
			wantMessage: "Empty message ignored",
		},
		{
			name:        "undecodable payload",
			body:        `{not json`,
			wantMessage: "No message to process",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			answerer := &fakeAnswerer{}
			sender := &fakeSender{}
			handler := NewWebhook(answerer, sender, nil, log.NewNop())

			rec, resp := postUpdate(t, handler, tt.body)

			assert.Equal(t, http.StatusOK, rec.Code,
				"filtered updates are acknowledged, never rejected")
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Zero(t, answerer.calls, "filters must not reach the orchestrator")
			assert.Zero(t, sender.calls)
		})
	}
}

func TestWebhookDispatchesToOrchestrator(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: oracle.Answer{
		AnswerText: "Espeto de Picanha - R$ 12,50", Succeeded: true,
	}}
	sender := &fakeSender{}
	handler := NewWebhook(answerer, sender, nil, log.NewNop())

	body := `{"update_id": 1, "message": {"from": {"id": 42}, "chat": {"id": 7}, "text": "quanto custa a picanha?"}}`
	rec, resp := postUpdate(t, handler, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Message processed", resp.Message)
	assert.Equal(t, true, resp.Data["succeeded"])

	assert.Equal(t, 1, answerer.calls)
	assert.Equal(t, "quanto custa a picanha?", answerer.lastQ)
	assert.Equal(t, "42", answerer.lastU, "user id comes from the sender, not the chat")

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, int64(7), sender.chatID)
	assert.Equal(t, "Espeto de Picanha - R$ 12,50", sender.text)
}

func TestWebhookHandlesEditedMessage(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: oracle.Answer{AnswerText: "ok", Succeeded: true}}
	sender := &fakeSender{}
	handler := NewWebhook(answerer, sender, nil, log.NewNop())

	body := `{"update_id": 1, "edited_message": {"from": {"id": 42}, "chat": {"id": 7}, "text": "pergunta editada"}}`
	_, resp := postUpdate(t, handler, body)

	assert.Equal(t, "Message processed", resp.Message)
	assert.Equal(t, "pergunta editada", answerer.lastQ)
}

func TestWebhookSendFailureStillAcks(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: oracle.Answer{AnswerText: "resposta", Succeeded: true}}
	sender := &fakeSender{err: assert.AnError}
	handler := NewWebhook(answerer, sender, nil, log.NewNop())

	body := `{"update_id": 1, "message": {"from": {"id": 42}, "chat": {"id": 7}, "text": "oi"}}`
	rec, resp := postUpdate(t, handler, body)

	assert.Equal(t, http.StatusOK, rec.Code,
		"delivery failures ride data.error, not the status code")
	assert.Equal(t, "failed to deliver answer", resp.Data["error"])
}

func TestWebhookFailedAnswerIsForwarded(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: oracle.Answer{
		AnswerText: "Desculpe, tive um problema.", Succeeded: false,
	}}
	sender := &fakeSender{}
	handler := NewWebhook(answerer, sender, nil, log.NewNop())

	body := `{"update_id": 1, "message": {"from": {"id": 42}, "chat": {"id": 7}, "text": "oi"}}`
	rec, resp := postUpdate(t, handler, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp.Data["succeeded"])
	assert.Equal(t, 1, sender.calls, "the user still receives the polite failure text")
	assert.True(t, strings.HasPrefix(sender.text, "Desculpe"))
}

func TestWhatsAppStubAcks(t *testing.T) {
	t.Parallel()

	handler := NewWebhook(&fakeAnswerer{}, &fakeSender{}, nil, log.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", nil)
	rec := httptest.NewRecorder()
	handler.WhatsApp(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
