// Package ingest persists bed counts submitted through the update form.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/queue"
)

// BedCountWriter is the store operation the writer loop calls.
type BedCountWriter interface {
	UpdateBedCount(ctx context.Context, caller *user.User, b *bedcount.BedCount, force bool) (int64, error)
}

// Writer is the single consumer of submitted bed counts. Submissions are
// already authenticated, so they are stored with force set and land in
// enqueue order.
type Writer struct {
	store  BedCountWriter
	queue  *queue.Queue[*bedcount.BedCount]
	logger logger.Interface
}

func NewWriter(store BedCountWriter, log logger.Interface) *Writer {
	return &Writer{
		store:  store,
		queue:  queue.New[*bedcount.BedCount](),
		logger: log,
	}
}

// Submit enqueues b. It never blocks.
func (w *Writer) Submit(b *bedcount.BedCount) {
	w.queue.Put(b)
}

// Pending is the number of submissions not yet written.
func (w *Writer) Pending() int {
	return w.queue.Len()
}

// Run writes submissions until ctx is done, then flushes what is left.
func (w *Writer) Run(ctx context.Context) error {
	w.logger.Infow("bed count writer started")
	for {
		b, err := w.queue.Get(ctx)
		if err != nil {
			break
		}
		// A write already dequeued completes even if ctx ends meanwhile.
		w.write(context.WithoutCancel(ctx), b)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if n := w.Drain(flushCtx); n > 0 {
		w.logger.Infow("flushed pending bed counts on shutdown", "count", n)
	}
	return nil
}

// Drain writes every queued submission synchronously and returns how many
// were processed.
func (w *Writer) Drain(ctx context.Context) int {
	n := 0
	for w.queue.Len() > 0 && ctx.Err() == nil {
		b, err := w.queue.Get(ctx)
		if err != nil {
			break
		}
		w.write(ctx, b)
		n++
	}
	return n
}

func (w *Writer) write(ctx context.Context, b *bedcount.BedCount) {
	id, err := w.store.UpdateBedCount(ctx, nil, b, true)
	if err != nil {
		if errors.Is(err, bedcount.ErrNegativeCounter) {
			w.logger.Warnw("rejected bed count", "icu_id", b.ICUID, "error", err)
			return
		}
		w.logger.Errorw("failed to store bed count", "icu_id", b.ICUID, "error", err)
		return
	}
	w.logger.Infow("bed count stored", "id", id, "icu_id", b.ICUID, "icu", b.ICUName)
}
