package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// advanceOffset stores ARGV[1] unless the key already holds a higher value.
var advanceOffset = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0") or 0
local want = tonumber(ARGV[1])
if want > cur then
	redis.call("SET", KEYS[1], ARGV[1])
	return want
end
return cur
`)

// PollingOffsetStore keeps the last handled Telegram update id of one bot so
// a restarted poller does not replay registrations.
type PollingOffsetStore struct {
	client *redis.Client
	key    string
}

// NewPollingOffsetStore namespaces the offset by bot name; two deployments
// sharing a Redis with different bots do not clash.
func NewPollingOffsetStore(client *redis.Client, bot string) *PollingOffsetStore {
	if bot == "" {
		bot = "default"
	}
	return &PollingOffsetStore{client: client, key: offsetKey(bot)}
}

func offsetKey(bot string) string {
	return "icubam:telegram:" + bot + ":offset"
}

func (s *PollingOffsetStore) GetOffset(ctx context.Context) (int64, error) {
	offset, err := s.client.Get(ctx, s.key).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read telegram offset %s: %w", s.key, err)
	}
	return offset, nil
}

// SaveOffset only moves the stored offset forward.
func (s *PollingOffsetStore) SaveOffset(ctx context.Context, offset int64) error {
	if err := advanceOffset.Run(ctx, s.client, []string{s.key}, offset).Err(); err != nil {
		return fmt.Errorf("save telegram offset %s: %w", s.key, err)
	}
	return nil
}
