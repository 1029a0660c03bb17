package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/shared/logger"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]Update
	offsets []int64
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ int) ([]Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) > 0 {
		next := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return next, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedSource) DeleteWebhook(context.Context) error { return nil }

type memOffsets struct {
	mu     sync.Mutex
	offset int64
}

func (m *memOffsets) GetOffset(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset, nil
}

func (m *memOffsets) SaveOffset(_ context.Context, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = offset
	return nil
}

type recordingReceiver struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingReceiver) HandleMessage(_ context.Context, chatID, text, lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, chatID+"|"+text+"|"+lang)
}

func (r *recordingReceiver) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func textUpdate(id, chatID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			Chat: &Chat{ID: chatID},
			From: &User{ID: chatID, LanguageCode: "fr"},
			Text: text,
		},
	}
}

func TestPollingService_HandlesAndPersistsOffset(t *testing.T) {
	source := &scriptedSource{batches: [][]Update{
		{textUpdate(10, 1, "/start a"), textUpdate(11, 2, "hello")},
		// Already handled updates replayed after a restart are skipped.
		{textUpdate(11, 2, "hello"), textUpdate(12, 3, "/start b")},
	}}
	receiver := &recordingReceiver{}
	offsets := &memOffsets{}
	svc := NewPollingService(source, NewTextHandler(receiver), logger.NewNop(), offsets)

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return svc.LastUpdateID() == 12 }, 2*time.Second, 5*time.Millisecond)
	svc.Stop()

	assert.Equal(t, []string{"1|/start a|fr", "2|hello|fr", "3|/start b|fr"}, receiver.messages())
	off, _ := offsets.GetOffset(context.Background())
	assert.Equal(t, int64(12), off)
	assert.Equal(t, int64(0), source.offsets[0])
	assert.Equal(t, int64(12), source.offsets[1])
}

func TestPollingService_ResumesFromStoredOffset(t *testing.T) {
	source := &scriptedSource{batches: [][]Update{{textUpdate(5, 1, "old"), textUpdate(6, 1, "new")}}}
	receiver := &recordingReceiver{}
	svc := NewPollingService(source, NewTextHandler(receiver), logger.NewNop(), &memOffsets{offset: 5})

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return svc.LastUpdateID() == 6 }, 2*time.Second, 5*time.Millisecond)
	svc.Stop()

	assert.Equal(t, []string{"1|new|fr"}, receiver.messages())
	assert.Equal(t, int64(6), source.offsets[0])
}

func TestTextHandler_IgnoresNonText(t *testing.T) {
	receiver := &recordingReceiver{}
	h := NewTextHandler(receiver)

	require.NoError(t, h.HandleUpdate(context.Background(), &Update{UpdateID: 1}))
	require.NoError(t, h.HandleUpdate(context.Background(), nil))
	assert.Empty(t, receiver.messages())
}
