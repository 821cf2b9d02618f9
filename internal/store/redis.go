package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"zeb-assist-backend/internal/types"
)

// redisStore keeps history in a Redis list per session, trimmed to the
// trailing window and expired after the TTL.
type redisStore struct {
	client      *redis.Client
	maxMessages int
	ttl         time.Duration
}

func historyKey(sessionID string) string {
	return "history:" + sessionID
}

func (s *redisStore) Append(ctx context.Context, sessionID string, msgs ...types.Message) error {
	key := historyKey(sessionID)
	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		vals = append(vals, string(b))
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	}
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	vals, err := s.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]types.Message, 0, len(vals))
	for _, v := range vals {
		var m types.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	// Refresh TTL on read
	_ = s.client.Expire(ctx, historyKey(sessionID), s.ttl).Err()
	return out, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
