package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/icubam/icubam/internal/shared/goroutine"
	"github.com/icubam/icubam/internal/shared/logger"
)

const (
	longPollSeconds = 30
	saveTimeout     = 5 * time.Second
)

// OffsetStore persists the last handled update id across restarts.
type OffsetStore interface {
	GetOffset(ctx context.Context) (int64, error)
	SaveOffset(ctx context.Context, offset int64) error
}

// UpdateHandler handles one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *Update) error
}

// UpdateSource is the part of BotService the polling loop needs.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error)
	DeleteWebhook(ctx context.Context) error
}

// PollingService receives updates with getUpdates long polling, for
// deployments that cannot expose the webhook.
type PollingService struct {
	source  UpdateSource
	handler UpdateHandler
	log     logger.Interface
	offsets OffsetStore // optional

	mu   sync.Mutex
	last int64
	stop context.CancelFunc
	done chan struct{}
}

// NewPollingService creates a polling service. offsets may be nil, in which
// case a restart resumes from whatever Telegram still holds.
func NewPollingService(source UpdateSource, handler UpdateHandler, log logger.Interface, offsets OffsetStore) *PollingService {
	return &PollingService{source: source, handler: handler, log: log, offsets: offsets}
}

// Start loads the stored offset and polls in the background. Calling it on
// a running service is a no-op.
func (s *PollingService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	if s.offsets != nil {
		stored, err := s.offsets.GetOffset(ctx)
		if err != nil {
			s.log.Warnw("polling offset unavailable, replaying pending updates", "error", err)
		} else if stored > s.last {
			s.last = stored
		}
	}

	// getUpdates is refused while a webhook is set.
	if err := s.source.DeleteWebhook(ctx); err != nil {
		s.log.Warnw("failed to delete webhook before polling", "error", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.done = make(chan struct{})
	done := s.done
	s.log.Infow("telegram polling started", "from", s.last)

	goroutine.SafeGo(s.log, "telegram-poll-loop", func() {
		defer close(done)
		s.loop(pollCtx)
	})
	return nil
}

// Stop interrupts the pending long poll and waits for the loop to exit.
func (s *PollingService) Stop() {
	s.mu.Lock()
	cancel, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Infow("telegram polling stopped")
}

// LastUpdateID is the highest update handled so far.
func (s *PollingService) LastUpdateID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *PollingService) loop(ctx context.Context) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = time.Minute

	for ctx.Err() == nil {
		last := s.LastUpdateID()
		var offset int64
		if last > 0 {
			offset = last + 1
		}

		updates, err := s.source.GetUpdates(ctx, offset, longPollSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := retry.NextBackOff()
			s.log.Errorw("getUpdates failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		if newest := s.process(ctx, updates, last); newest > last {
			s.commit(newest)
		}
	}
}

// process handles the updates above last and returns the highest id seen.
// Telegram may resend ids at or below last when the stored offset lagged.
func (s *PollingService) process(ctx context.Context, updates []Update, last int64) int64 {
	newest := last
	for i := range updates {
		u := &updates[i]
		if u.UpdateID <= last {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		s.handle(ctx, u)
		newest = max(newest, u.UpdateID)
	}
	return newest
}

func (s *PollingService) commit(newest int64) {
	s.mu.Lock()
	s.last = max(s.last, newest)
	s.mu.Unlock()

	if s.offsets == nil {
		return
	}
	// Detached from the poll context, which is already cancelled on shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.offsets.SaveOffset(ctx, newest); err != nil {
		s.log.Warnw("failed to save polling offset", "offset", newest, "error", err)
	}
}

func (s *PollingService) handle(ctx context.Context, u *Update) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("telegram update handler panicked", "update_id", u.UpdateID, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.handler.HandleUpdate(ctx, u); err != nil {
		s.log.Errorw("telegram update not handled", "update_id", u.UpdateID, "error", err)
	}
}
