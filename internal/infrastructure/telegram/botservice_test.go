package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedConfig "github.com/icubam/icubam/internal/shared/config"
	"github.com/icubam/icubam/internal/shared/logger"
)

type recordedCall struct {
	Method string
	Body   map[string]any
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(method string, body map[string]any) (int, string)
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/botsecret/"), r.URL.Path)
		method := strings.TrimPrefix(r.URL.Path, "/botsecret/")
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Method: method, Body: body})
		f.mu.Unlock()

		status, payload := http.StatusOK, `{"ok":true,"result":true}`
		if f.respond != nil {
			status, payload = f.respond(method, body)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}
}

func (f *fakeAPI) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestBot(t *testing.T, api *fakeAPI) *BotService {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewBotService(sharedConfig.TelegramConfig{
		APIKey:     "secret",
		BotName:    "icubam_bot",
		APIBaseURL: srv.URL,
	}, logger.NewNop())
}

func TestBotService_Send(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api)

	ok := bot.Send(context.Background(), "1234", "ignored", "<b>hello</b>")
	require.True(t, ok)

	calls := api.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "1234", calls[0].Body["chat_id"])
	assert.Equal(t, "<b>hello</b>", calls[0].Body["text"])
	assert.Equal(t, "HTML", calls[0].Body["parse_mode"])
}

func TestBotService_SendSplitsLongMessages(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api)

	text := strings.Repeat("a", maxMessageLength) + "\n" + "tail"
	require.NoError(t, bot.SendMessage(context.Background(), "1", text))
	assert.Len(t, api.recorded(), 2)
}

func TestBotService_SendFailure(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, string) {
		return http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	}}
	bot := newTestBot(t, api)

	err := bot.SendMessage(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.True(t, Unreachable(err))
	assert.False(t, bot.Send(context.Background(), "1", "", "hi"))
}

func TestBotService_GetUpdates(t *testing.T) {
	api := &fakeAPI{respond: func(method string, body map[string]any) (int, string) {
		return http.StatusOK, `{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"chat":{"id":99,"type":"private"},"from":{"id":5,"first_name":"A","language_code":"en"},"text":"/start abc"}}]}`
	}}
	bot := newTestBot(t, api)

	updates, err := bot.GetUpdates(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(7), updates[0].UpdateID)
	assert.Equal(t, int64(99), updates[0].Message.Chat.ID)
	assert.Equal(t, "en", updates[0].Message.From.LanguageCode)
	assert.Equal(t, float64(7), api.recorded()[0].Body["offset"])
}

func TestBotService_RegisterWebhookRetries(t *testing.T) {
	var attempts atomic.Int32
	api := &fakeAPI{respond: func(method string, body map[string]any) (int, string) {
		if attempts.Add(1) < 2 {
			return http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`
		}
		return http.StatusOK, `{"ok":true,"result":true}`
	}}
	bot := newTestBot(t, api)

	require.NoError(t, bot.RegisterWebhook(context.Background(), "https://icubam.example/telegram", 5))
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, "https://icubam.example/telegram", api.recorded()[1].Body["url"])
}

func TestBotService_RegisterWebhookRejected(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"bad webhook"}`
	}}
	bot := newTestBot(t, api)

	err := bot.RegisterWebhook(context.Background(), "http://insecure", 5)
	require.Error(t, err)
	assert.Len(t, api.recorded(), 1, "client errors are not retried")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("para one\n\npara two", 12)
	assert.Equal(t, []string{"para one\n\n", "para two"}, chunks)

	chunks = splitMessage("ééééé", 2)
	assert.Equal(t, []string{"éé", "éé", "é"}, chunks)

	link := "https://icubam.example/update?id=0123456789abcdef"
	chunks = splitMessage("Bonjour Camille\n"+link+"\n", 50)
	assert.Equal(t, []string{"Bonjour Camille\n", link + "\n"}, chunks)
}

func TestUnreachable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"blocked", &APIError{Code: 403, Description: "Forbidden: bot was blocked by the user"}, true},
		{"chat not found", &APIError{Code: 400, Description: "Bad Request: chat not found"}, true},
		{"other bad request", &APIError{Code: 400, Description: "Bad Request: message is too long"}, false},
		{"rate limited", &APIError{Code: 429, RetryAfter: 3 * time.Second}, false},
		{"network", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unreachable(fmt.Errorf("send: %w", tt.err)))
		})
	}
}
