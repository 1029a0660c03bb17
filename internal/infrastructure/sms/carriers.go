package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	sharedConfig "github.com/icubam/icubam/internal/shared/config"
)

const defaultOriginator = "ICUBAM"

func originator(cfg sharedConfig.CarrierConfig) string {
	if cfg.Sender != "" {
		return cfg.Sender
	}
	return defaultOriginator
}

func orDefault(url, fallback string) string {
	if url == "" {
		return fallback
	}
	return url
}

// messageBird posts to the MessageBird REST API.
type messageBird struct {
	client *resty.Client
	from   string
}

func newMessageBird(cfg sharedConfig.CarrierConfig, timeout time.Duration) *messageBird {
	client := newClient(orDefault(cfg.URL, "https://rest.messagebird.com"), timeout).
		SetHeader("Authorization", "AccessKey "+cfg.Key)
	return &messageBird{client: client, from: originator(cfg)}
}

func (m *messageBird) name() string { return CarrierMessageBird }

func (m *messageBird) deliver(ctx context.Context, to, text string) error {
	var failure struct {
		Errors []struct {
			Code        int    `json:"code"`
			Description string `json:"description"`
		} `json:"errors"`
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"originator": m.from,
			"recipients": []string{to},
			"body":       text,
			"reference":  "icubam",
		}).
		SetError(&failure).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("messagebird request failed: %w", err)
	}
	if resp.IsError() {
		if len(failure.Errors) > 0 {
			return fmt.Errorf("messagebird error %d: %s", failure.Errors[0].Code, failure.Errors[0].Description)
		}
		return fmt.Errorf("messagebird returned status %d", resp.StatusCode())
	}
	return nil
}

// nexmo posts to the Nexmo (Vonage) SMS API, which answers 200 with a
// per-message status.
type nexmo struct {
	client *resty.Client
	cfg    sharedConfig.CarrierConfig
	from   string
}

func newNexmo(cfg sharedConfig.CarrierConfig, timeout time.Duration) *nexmo {
	return &nexmo{
		client: newClient(orDefault(cfg.URL, "https://rest.nexmo.com"), timeout),
		cfg:    cfg,
		from:   originator(cfg),
	}
}

func (n *nexmo) name() string { return CarrierNexmo }

func (n *nexmo) deliver(ctx context.Context, to, text string) error {
	var result struct {
		Messages []struct {
			Status    string `json:"status"`
			ErrorText string `json:"error-text"`
		} `json:"messages"`
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_key":    n.cfg.Key,
			"api_secret": n.cfg.Secret,
			"from":       n.from,
			"to":         strings.TrimPrefix(to, "+"),
			"text":       text,
		}).
		SetResult(&result).
		Post("/sms/json")
	if err != nil {
		return fmt.Errorf("nexmo request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("nexmo returned status %d", resp.StatusCode())
	}
	for _, m := range result.Messages {
		if m.Status != "0" {
			return fmt.Errorf("nexmo status %s: %s", m.Status, m.ErrorText)
		}
	}
	return nil
}

// twilio posts to the Twilio Messages resource. Key holds the account SID
// and Secret the auth token.
type twilio struct {
	client *resty.Client
	cfg    sharedConfig.CarrierConfig
	from   string
}

func newTwilio(cfg sharedConfig.CarrierConfig, timeout time.Duration) *twilio {
	client := newClient(orDefault(cfg.URL, "https://api.twilio.com"), timeout).
		SetBasicAuth(cfg.Key, cfg.Secret)
	return &twilio{client: client, cfg: cfg, from: originator(cfg)}
}

func (t *twilio) name() string { return CarrierTwilio }

func (t *twilio) deliver(ctx context.Context, to, text string) error {
	var failure struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("sid", t.cfg.Key).
		SetFormData(map[string]string{
			"From": t.from,
			"To":   to,
			"Body": text,
		}).
		SetError(&failure).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio error %d: %s", failure.Code, failure.Message)
	}
	return nil
}
