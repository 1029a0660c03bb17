// Package client calls the scheduler control routes of the messaging
// server on behalf of the command-line tools.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/icubam/icubam/internal/interfaces/dto"
	sharedConfig "github.com/icubam/icubam/internal/shared/config"
)

// ControlClient talks to POST /onoff and POST /schedule.
type ControlClient struct {
	http *resty.Client
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// NewControlClient targets cfg.BaseURL with cfg.Timeout seconds per call.
func NewControlClient(cfg sharedConfig.MessagingConfig) *ControlClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ControlClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// OnOff switches the reminders of a user.
func (c *ControlClient) OnOff(ctx context.Context, req dto.OnOffRequest) (*dto.OnOffResponse, error) {
	var out envelope[dto.OnOffResponse]
	if err := c.post(ctx, "/onoff", req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Schedule lists the pending messages of the ICUs userID manages.
func (c *ControlClient) Schedule(ctx context.Context, userID int64) ([]dto.ScheduledMessage, error) {
	var out envelope[[]dto.ScheduledMessage]
	if err := c.post(ctx, "/schedule", dto.ScheduleRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *ControlClient) post(ctx context.Context, path string, body any, out interface{ failure() string }) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(out).
		Post(path)
	if err != nil {
		return fmt.Errorf("messaging server unreachable: %w", err)
	}
	if resp.IsError() {
		if msg := out.failure(); msg != "" {
			return fmt.Errorf("POST %s: %s (status %d)", path, msg, resp.StatusCode())
		}
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode())
	}
	return nil
}

func (e *envelope[T]) failure() string {
	if e.Error == nil {
		return ""
	}
	if e.Error.Details != "" {
		return e.Error.Message + ": " + e.Error.Details
	}
	return e.Error.Message
}
