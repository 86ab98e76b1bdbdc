package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celim/oraculo/internal/log"
)

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New("", log.NewNop())
	require.Error(t, err)
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer server.Close()

	client, err := New("123:abc", log.NewNop(), WithBaseURL(server.URL))
	require.NoError(t, err)

	require.NoError(t, client.SendMessage(context.Background(), 42, "Espeto de Picanha - R$ 12,50"))
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, float64(42), gotPayload["chat_id"])
	assert.Equal(t, "Espeto de Picanha - R$ 12,50", gotPayload["text"])
}

func TestSendMessageSurfacesBotAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	}))
	defer server.Close()

	client, err := New("123:abc", log.NewNop(), WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), 42, "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "blocked")
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/getMe", r.URL.Path)
		fmt.Fprint(w, `{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"Oráculo","username":"oraculo_bot"}}`)
	}))
	defer server.Close()

	client, err := New("123:abc", log.NewNop(), WithBaseURL(server.URL))
	require.NoError(t, err)

	me, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), me.ID)
	assert.Equal(t, "oraculo_bot", me.Username)
	assert.True(t, me.IsBot)
}

func TestGetWebhookInfo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"url":"https://example.com/webhook/telegram","pending_update_count":3}}`)
	}))
	defer server.Close()

	client, err := New("123:abc", log.NewNop(), WithBaseURL(server.URL))
	require.NoError(t, err)

	info, err := client.GetWebhookInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/webhook/telegram", info.URL)
	assert.Equal(t, 3, info.PendingUpdateCount)
}

func TestSendMessageHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	client, err := New("123:abc", log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, client.SendMessage(ctx, 42, "oi"))
}
