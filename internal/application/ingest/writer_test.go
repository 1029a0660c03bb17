package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/shared/logger"
)

type recordingStore struct {
	mu      sync.Mutex
	written []*bedcount.BedCount
	forced  []bool
	fail    error
}

func (s *recordingStore) UpdateBedCount(_ context.Context, caller *user.User, b *bedcount.BedCount, force bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	s.written = append(s.written, b)
	s.forced = append(s.forced, force)
	return int64(len(s.written)), nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func TestWriter_PreservesOrder(t *testing.T) {
	store := &recordingStore{}
	w := NewWriter(store, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	for i := 1; i <= 5; i++ {
		w.Submit(&bedcount.BedCount{ICUID: 1, NCovidOcc: i})
	}
	require.Eventually(t, func() bool { return store.count() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for i, b := range store.written {
		assert.Equal(t, i+1, b.NCovidOcc)
		assert.True(t, store.forced[i])
	}
}

func TestWriter_Drain(t *testing.T) {
	store := &recordingStore{}
	w := NewWriter(store, logger.NewNop())
	w.Submit(&bedcount.BedCount{ICUID: 1})
	w.Submit(&bedcount.BedCount{ICUID: 2})
	assert.Equal(t, 2, w.Pending())

	assert.Equal(t, 2, w.Drain(context.Background()))
	assert.Zero(t, w.Pending())
	assert.Equal(t, 2, store.count())
}

func TestWriter_FlushesOnShutdown(t *testing.T) {
	store := &recordingStore{}
	w := NewWriter(store, logger.NewNop())
	w.Submit(&bedcount.BedCount{ICUID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 1, store.count())
}

func TestWriter_StoreErrorDoesNotStopLoop(t *testing.T) {
	store := &recordingStore{fail: errors.New("db down")}
	w := NewWriter(store, logger.NewNop())
	w.Submit(&bedcount.BedCount{ICUID: 1})
	w.Submit(&bedcount.BedCount{ICUID: 2})

	assert.Equal(t, 2, w.Drain(context.Background()))
	assert.Zero(t, store.count())
}
