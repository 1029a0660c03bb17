package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// APIError is a refusal reported by the Bot API.
type APIError struct {
	Code        int
	Description string
	// RetryAfter is set on 429 answers.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

// Unreachable reports whether the chat can no longer be messaged: the user
// blocked the bot or the stored chat id is wrong. Retrying will not help;
// the operator must register again with /start.
func Unreachable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		return strings.Contains(strings.ToLower(apiErr.Description), "chat not found")
	}
	return false
}

// retryable wraps err for backoff.Retry: client errors stop the loop, rate
// limits wait for the delay the API asked for.
func retryable(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests && apiErr.RetryAfter > 0:
		return backoff.RetryAfter(int(apiErr.RetryAfter / time.Second))
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return backoff.Permanent(err)
	}
	return err
}
