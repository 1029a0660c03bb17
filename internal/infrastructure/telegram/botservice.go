package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	sharedConfig "github.com/icubam/icubam/internal/shared/config"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// BotService provides the Telegram Bot API operations the server uses.
type BotService struct {
	config     sharedConfig.TelegramConfig
	httpClient *http.Client
	baseURL    string
	logger     logger.Interface
}

// NewBotService creates a bot client. cfg.APIBaseURL overrides the public
// endpoint, which tests point at an httptest server.
func NewBotService(cfg sharedConfig.TelegramConfig, log logger.Interface) *BotService {
	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	return &BotService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: fmt.Sprintf("%s/bot%s", apiBase, cfg.APIKey),
		logger:  log,
	}
}

// BotName is the bot's public handle used in invite links.
func (s *BotService) BotName() string {
	return s.config.BotName
}

// SetWebhook registers webhookURL for receiving updates. When a webhook
// secret is configured, Telegram echoes it in every delivery.
func (s *BotService) SetWebhook(ctx context.Context, webhookURL string) error {
	body := map[string]any{"url": webhookURL, "allowed_updates": []string{"message"}}
	if s.config.WebhookSecret != "" {
		body["secret_token"] = s.config.WebhookSecret
	}
	return s.call(ctx, "setWebhook", body)
}

// RegisterWebhook calls SetWebhook with exponential backoff. Rejections by
// the API (4xx) are not retried; 429 waits for the advertised delay.
func (s *BotService) RegisterWebhook(ctx context.Context, webhookURL string, maxTries uint) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.MaxInterval = 30 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.SetWebhook(ctx, webhookURL)
		if err == nil {
			return struct{}{}, nil
		}
		s.logger.Warnw("telegram webhook registration failed", "error", err)
		return struct{}{}, retryable(err)
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(maxTries))
	if err != nil {
		return fmt.Errorf("failed to register telegram webhook: %w", err)
	}
	s.logger.Infow("telegram webhook registered", "url", webhookURL)
	return nil
}

// DeleteWebhook removes the webhook so getUpdates can be used.
func (s *BotService) DeleteWebhook(ctx context.Context) error {
	return s.call(ctx, "deleteWebhook", nil)
}

// GetUpdates retrieves updates using long polling. timeout is in seconds.
func (s *BotService) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	body := map[string]any{"timeout": timeout}
	if offset > 0 {
		body["offset"] = offset
	}

	// Long polling needs a client that outlives the server-side timeout.
	client := &http.Client{Timeout: time.Duration(timeout+10) * time.Second}

	var updates []Update
	if err := s.do(ctx, client, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends an HTML message, split into several when too long.
func (s *BotService) SendMessage(ctx context.Context, chatID string, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		err := s.call(ctx, "sendMessage", map[string]any{
			"chat_id":                  chatID,
			"text":                     chunk,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Send delivers body to a chat and reports success. subject is unused on
// this channel.
func (s *BotService) Send(ctx context.Context, chatID, subject, body string) bool {
	if err := s.SendMessage(ctx, chatID, body); err != nil {
		s.logger.Warnw("telegram send failed",
			"chat_id", chatID,
			"unreachable", Unreachable(err),
			"error", err,
		)
		return false
	}
	return true
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Update represents a Telegram update from getUpdates or webhook.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// User represents a Telegram user.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

func (s *BotService) call(ctx context.Context, method string, body map[string]any) error {
	return s.do(ctx, s.httpClient, method, body, nil)
}

func (s *BotService) do(ctx context.Context, client *http.Client, method string, body map[string]any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.OK {
		apiErr := &APIError{Code: result.ErrorCode, Description: result.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if result.Parameters != nil {
			apiErr.RetryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}

	if out != nil && len(result.Result) > 0 {
		if err := json.Unmarshal(result.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}
