package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/celim/oraculo/internal/oracle"
	"github.com/celim/oraculo/internal/telegram"
)

// Fixed acknowledgement messages for filtered updates. The transport gets
// a 200 either way so it never retries application-level rejections.
const (
	msgNoMessage    = "No message to process"
	msgBotIgnored   = "Bot message ignored"
	msgEmptyIgnored = "Empty message ignored"
	msgProcessed    = "Message processed"
)

// Answerer is the orchestrator surface the dispatcher consumes.
type Answerer interface {
	Answer(ctx context.Context, question, userID string) oracle.Answer
}

// WebhookInfoProvider exposes the current Telegram webhook registration,
// used by the debug endpoint.
type WebhookInfoProvider interface {
	GetWebhookInfo(ctx context.Context) (*telegram.WebhookInfo, error)
}

// Webhook dispatches inbound chat updates to the orchestrator.
type Webhook struct {
	oracle Answerer
	sender telegram.Sender
	info   WebhookInfoProvider
	logger *slog.Logger
}

// NewWebhook creates the dispatcher. info may be nil; the debug endpoint
// then reports it as unavailable.
func NewWebhook(answerer Answerer, sender telegram.Sender, info WebhookInfoProvider, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{oracle: answerer, sender: sender, info: info, logger: logger}
}

// Telegram handles POST /webhook/telegram. Filtering order: no message
// payload, bot sender, blank text. Each filter fast-rejects with a fixed
// acknowledgement and never reaches the orchestrator.
func (h *Webhook) Telegram(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("undecodable webhook payload", "error", err)
		writeAck(w, msgNoMessage, map[string]any{"error": "invalid payload"}, h.logger)
		return
	}

	msg := update.EffectiveMessage()
	if msg == nil {
		writeAck(w, msgNoMessage, nil, h.logger)
		return
	}
	if msg.From != nil && msg.From.IsBot {
		writeAck(w, msgBotIgnored, nil, h.logger)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		writeAck(w, msgEmptyIgnored, nil, h.logger)
		return
	}

	userID := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	answer := h.oracle.Answer(r.Context(), msg.Text, userID)

	data := map[string]any{"succeeded": answer.Succeeded}
	if err := h.sender.SendMessage(r.Context(), msg.Chat.ID, answer.AnswerText); err != nil {
		h.logger.Error("failed to send answer",
			"chat_id", msg.Chat.ID, "user_id", userID, "error", err)
		data["error"] = "failed to deliver answer"
	}
	writeAck(w, msgProcessed, data, h.logger)
}

// WhatsApp handles POST /webhook/whatsapp. The channel is acknowledged but
// not dispatched.
func (h *Webhook) WhatsApp(w http.ResponseWriter, r *http.Request) {
	writeAck(w, "WhatsApp channel not supported yet", nil, h.logger)
}

// Info handles GET /webhook/info: the current Telegram webhook registration
// as seen by the Bot API. Debug surface.
func (h *Webhook) Info(w http.ResponseWriter, r *http.Request) {
	if h.info == nil {
		writeAck(w, "webhook info unavailable", nil, h.logger)
		return
	}
	info, err := h.info.GetWebhookInfo(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch webhook info", "error", err)
		writeAck(w, "webhook info unavailable", map[string]any{"error": err.Error()}, h.logger)
		return
	}
	writeAck(w, "webhook info", map[string]any{
		"url":                  info.URL,
		"pending_update_count": info.PendingUpdateCount,
		"last_error_message":   info.LastErrorMessage,
	}, h.logger)
}
